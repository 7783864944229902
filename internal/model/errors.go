package model

import "errors"

// Sentinel errors returned by the engine. Callers match them with errors.Is;
// every layer wraps them with context using %w.
var (
	// ErrConflict means the requested transition is not valid for the current state.
	ErrConflict = errors.New("conflict")
	// ErrNotSubscribed means the subscriber has no subscription that allows the operation.
	ErrNotSubscribed = errors.New("not subscribed")
	// ErrInvalidTier means the tier is unknown or cannot be used for the operation.
	ErrInvalidTier = errors.New("invalid tier")
	// ErrQuotaExhausted means a consumable quota has no units left.
	ErrQuotaExhausted = errors.New("quota exhausted")
	// ErrNotFound means the subscriber, actor, record or assignment does not exist.
	ErrNotFound = errors.New("not found")
	// ErrTransientStore means the underlying store is temporarily unavailable.
	ErrTransientStore = errors.New("transient store error")
	// ErrInvalidInput means the request carried values the engine cannot accept.
	ErrInvalidInput = errors.New("invalid input")
)
