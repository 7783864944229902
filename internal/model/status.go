package model

// SubscriptionStatus is the persisted status of a subscription row.
type SubscriptionStatus string

// Subscription status constants.
const (
	StatusActive    SubscriptionStatus = "active"
	StatusCancelled SubscriptionStatus = "cancelled"
	StatusExpired   SubscriptionStatus = "expired"
)

// CommissionStatus is the payout status of a commission record.
type CommissionStatus string

const (
	CommissionPending  CommissionStatus = "pending"
	CommissionPaid     CommissionStatus = "paid"
	CommissionReversed CommissionStatus = "reversed"
)

// PlanChangeStatus tracks a requested plan change until it is applied or dropped.
type PlanChangeStatus string

const (
	PlanChangePendingPayment PlanChangeStatus = "pending_payment"
	PlanChangeScheduled      PlanChangeStatus = "scheduled"
	PlanChangeApplied        PlanChangeStatus = "applied"
	PlanChangeFailed         PlanChangeStatus = "failed"
	PlanChangeExpired        PlanChangeStatus = "expired"
)

// Open reports whether the change still blocks another change on the same subscription.
func (s PlanChangeStatus) Open() bool {
	return s == PlanChangePendingPayment || s == PlanChangeScheduled
}

// BillingStatus is the settlement status of a billing history entry.
type BillingStatus string

const (
	BillingPaid    BillingStatus = "paid"
	BillingPending BillingStatus = "pending"
	BillingFailed  BillingStatus = "failed"
	BillingCredit  BillingStatus = "credit"
)

// PaymentOutcome is reported by the payment provider collaborator.
type PaymentOutcome string

const (
	PaymentSuccess PaymentOutcome = "success"
	PaymentFailure PaymentOutcome = "failure"
)
