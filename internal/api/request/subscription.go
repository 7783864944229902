package request

import (
	"time"

	"github.com/edvin/entitlements/internal/model"
)

type StartTrial struct {
	Kind model.SubscriberKind `json:"kind" validate:"omitempty,subscriber_kind"`
}

type Upgrade struct {
	TierID        string             `json:"tier_id" validate:"required"`
	BillingCycle  model.BillingCycle `json:"billing_cycle" validate:"omitempty,cycle"`
	EffectiveDate *time.Time         `json:"effective_date"`
	Immediate     *bool              `json:"immediate"`
}

type Renew struct {
	TransactionRef string `json:"transaction_ref" validate:"required"`
}

type PaymentConfirmation struct {
	SubscriberID      string               `json:"subscriber_id" validate:"required"`
	PlanType          model.PlanType       `json:"plan_type"`
	BillingCycle      model.BillingCycle   `json:"billing_cycle" validate:"omitempty,cycle"`
	Amount            int64                `json:"amount" validate:"gte=0"`
	Currency          string               `json:"currency" validate:"omitempty,len=3"`
	Outcome           model.PaymentOutcome `json:"outcome" validate:"required,outcome"`
	ProviderReference string               `json:"provider_reference" validate:"required"`
	PaymentMethodRef  string               `json:"payment_method_ref"`
}

type JoinConfirmation struct {
	SubscriberID     string `json:"subscriber_id" validate:"required"`
	BenefitSessionID string `json:"benefit_session_id" validate:"required"`
	Attended         bool   `json:"attended"`
}

type BenefitSession struct {
	Category string `json:"category" validate:"required"`
}
