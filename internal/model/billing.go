package model

import "time"

// BillingKind classifies a billing history entry.
type BillingKind string

const (
	BillingCharge        BillingKind = "charge"
	BillingProration     BillingKind = "proration"
	BillingCreditNote    BillingKind = "credit"
	BillingCreditApplied BillingKind = "credit_applied"
	BillingRefund        BillingKind = "refund"
)

// BillingEntry is an immutable billing history row. Credits carry a negative
// amount; applying a credit to a later charge appends a positive credit_applied row.
type BillingEntry struct {
	ID               string        `json:"id"`
	SubscriptionID   string        `json:"subscription_id"`
	Kind             BillingKind   `json:"kind"`
	Amount           int64         `json:"amount"`
	Currency         string        `json:"currency"`
	Status           BillingStatus `json:"status"`
	PaymentMethodRef string        `json:"payment_method_ref,omitempty"`
	TransactionRef   string        `json:"transaction_ref,omitempty"`
	Description      string        `json:"description"`
	CreatedAt        time.Time     `json:"created_at"`
}

// OutstandingCredit returns the unapplied credit (a non-negative amount) in entries.
func OutstandingCredit(entries []BillingEntry) int64 {
	var sum int64
	for _, e := range entries {
		if e.Kind == BillingCreditNote || e.Kind == BillingCreditApplied {
			sum += e.Amount
		}
	}
	if sum >= 0 {
		return 0
	}
	return -sum
}
