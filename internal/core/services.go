package core

import (
	"time"

	temporalclient "go.temporal.io/sdk/client"

	"github.com/edvin/entitlements/internal/catalog"
	"github.com/edvin/entitlements/internal/model"
)

// Options tunes engine policy. Zero values fall back to the defaults below.
type Options struct {
	TrialDays           int
	TrialQuota          int
	Rounding            model.RoundingMode
	Currency            string
	TaskQueue           string
	ConfirmationTimeout time.Duration
	// Now overrides the clock in tests.
	Now func() time.Time
}

const (
	defaultTrialDays           = 7
	defaultTrialQuota          = 1
	defaultTaskQueue           = "entitlements"
	defaultConfirmationTimeout = 30 * time.Minute
)

func (o Options) withDefaults() Options {
	if o.TrialDays <= 0 {
		o.TrialDays = defaultTrialDays
	}
	if o.TrialQuota <= 0 {
		o.TrialQuota = defaultTrialQuota
	}
	if o.Rounding == "" {
		o.Rounding = model.RoundHalfUp
	}
	if o.Currency == "" {
		o.Currency = "usd"
	}
	if o.TaskQueue == "" {
		o.TaskQueue = defaultTaskQueue
	}
	if o.ConfirmationTimeout <= 0 {
		o.ConfirmationTimeout = defaultConfirmationTimeout
	}
	if o.Now == nil {
		o.Now = func() time.Time { return time.Now().UTC() }
	}
	return o
}

type Services struct {
	Lifecycle   *LifecycleService
	Usage       *UsageService
	Entitlement *EntitlementService
	Tier        *TierService
	Commission  *CommissionService
	Billing     *BillingService
	PlanChange  *PlanChangeService
	Catalog     *catalog.Catalog
}

// NewServices wires the engine services. tc may be nil, in which case plan
// change payments are confirmed synchronously without Temporal.
func NewServices(store Store, cat *catalog.Catalog, tc temporalclient.Client, opts Options) *Services {
	opts = opts.withDefaults()
	lifecycle := NewLifecycleService(store, cat, opts)
	tier := NewTierService(store, cat, opts)
	return &Services{
		Lifecycle:   lifecycle,
		Usage:       NewUsageService(store, opts),
		Entitlement: NewEntitlementService(store, cat, opts),
		Tier:        tier,
		Commission:  NewCommissionService(store, tier, opts),
		Billing:     NewBillingService(store, opts),
		PlanChange:  NewPlanChangeService(store, lifecycle, tc, opts),
		Catalog:     cat,
	}
}
