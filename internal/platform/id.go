package platform

import (
	"crypto/rand"

	"github.com/google/uuid"
)

const (
	refAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	refLength   = 12
)

// NewID returns a time-ordered UUIDv7, so keyset pages over id follow
// creation order.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// NewReference returns prefix followed by a short random suffix, for
// engine-generated transaction references such as "renew_k2j4...".
func NewReference(prefix string) string {
	b := make([]byte, refLength)
	rand.Read(b)
	for i := range b {
		b[i] = refAlphabet[int(b[i])%len(refAlphabet)]
	}
	return prefix + string(b)
}
