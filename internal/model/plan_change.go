package model

import "time"

// PlanChange is a requested tier or billing-cycle change. While it is
// pending_payment or scheduled the live subscription keeps its old plan.
type PlanChange struct {
	ID                string           `json:"id"`
	SubscriptionID    string           `json:"subscription_id"`
	SubscriberID      string           `json:"subscriber_id"`
	FromTierID        string           `json:"from_tier_id"`
	ToTierID          string           `json:"to_tier_id"`
	FromCycle         BillingCycle     `json:"from_cycle"`
	ToCycle           BillingCycle     `json:"to_cycle"`
	// ProratedAmount is what remains to be paid after CreditApplied, the
	// outstanding credit netted against the proration.
	ProratedAmount    int64            `json:"prorated_amount"`
	CreditApplied     int64            `json:"credit_applied"`
	Currency          string           `json:"currency"`
	Immediate         bool             `json:"immediate"`
	EffectiveDate     time.Time        `json:"effective_date"`
	Status            PlanChangeStatus `json:"status"`
	ProviderReference string           `json:"provider_reference,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

// PlanChangeTransition moves a plan change between statuses. The store applies
// it only when the change is currently in one of From.
type PlanChangeTransition struct {
	ChangeID          string
	From              []PlanChangeStatus
	To                PlanChangeStatus
	ProviderReference string
}

// SubscriptionUpdate is a set of writes the store commits atomically: a
// compare-and-set of the subscription on ExpectedVersion, appended billing entries,
// and optionally a new plan change or a plan change transition.
type SubscriptionUpdate struct {
	Subscription    *Subscription
	ExpectedVersion int64
	Entries         []BillingEntry
	InsertChange    *PlanChange
	Transition      *PlanChangeTransition
}

// PaymentConfirmationSignal is the Temporal signal carrying a PaymentConfirmation.
const PaymentConfirmationSignal = "payment-confirmation"

// PaymentConfirmation is the asynchronous outcome of a charge reported by the
// payment collaborator.
type PaymentConfirmation struct {
	SubscriberID      string         `json:"subscriber_id"`
	PlanType          PlanType       `json:"plan_type"`
	BillingCycle      BillingCycle   `json:"billing_cycle"`
	Amount            int64          `json:"amount"`
	Currency          string         `json:"currency"`
	Outcome           PaymentOutcome `json:"outcome"`
	ProviderReference string         `json:"provider_reference"`
	PaymentMethodRef  string         `json:"payment_method_ref,omitempty"`
}

// PlanChangeWorkflowParams starts the workflow that waits for payment of a change.
type PlanChangeWorkflowParams struct {
	ChangeID     string        `json:"change_id"`
	SubscriberID string        `json:"subscriber_id"`
	Timeout      time.Duration `json:"timeout"`
}
