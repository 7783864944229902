package core

import (
	"context"
	"time"

	"github.com/edvin/entitlements/internal/model"
)

// Store is the persistence surface the engine services run against. The
// Postgres and in-memory stores implement it with identical semantics: every
// method is atomic on its own, and methods documented as conditional fail
// with a model sentinel error instead of partially applying.
type Store interface {
	SubscriptionStore
	PlanChangeStore
	AssignmentStore
	CommissionStore
	BillingStore
	UsageStore
	BenefitStore

	Ping(ctx context.Context) error
}

type SubscriptionStore interface {
	// GetSubscription returns the subscriber's subscription row or ErrNotFound.
	GetSubscription(ctx context.Context, subscriberID string) (*model.Subscription, error)
	GetSubscriptionByID(ctx context.Context, id string) (*model.Subscription, error)

	// StartTrial inserts sub, or overwrites the subscriber's row when it is
	// neither a trial nor active. When nothing is written it returns the
	// existing row with created=false.
	StartTrial(ctx context.Context, sub *model.Subscription) (stored *model.Subscription, created bool, err error)

	// ConsumeQuota decrements an active, unexpired trial's quota by one and
	// cancels it when the quota reaches zero, in a single conditional write.
	ConsumeQuota(ctx context.Context, subscriptionID string, now time.Time) (*model.Subscription, error)

	// CancelSubscription moves an active row to cancelled with auto-renew off
	// and expires its scheduled plan changes.
	CancelSubscription(ctx context.Context, subscriberID string, now time.Time) (*model.Subscription, error)

	// ExpireSubscription moves an active or cancelled row whose end date is
	// not after now to expired.
	ExpireSubscription(ctx context.Context, subscriberID string, now time.Time) (*model.Subscription, error)

	// ListLapsed returns up to limit unexpired rows whose end date is not
	// after now and that will not renew: trials, cancelled rows and paid rows
	// with auto-renew off. Oldest end date first.
	ListLapsed(ctx context.Context, now time.Time, limit int) ([]model.Subscription, error)

	// ActivateSubscription upserts a paid subscription for sub.SubscriberID
	// and appends entries, unless the existing row is an unexpired active paid
	// subscription (ErrConflict).
	ActivateSubscription(ctx context.Context, sub *model.Subscription, entries ...model.BillingEntry) (*model.Subscription, error)

	// SaveSubscription commits u in one transaction. It fails with ErrConflict
	// when the stored version differs from u.ExpectedVersion or the plan
	// change transition does not apply.
	SaveSubscription(ctx context.Context, u model.SubscriptionUpdate) (*model.Subscription, error)
}

type PlanChangeStore interface {
	// CreatePlanChange fails with ErrConflict when the subscription already
	// has an open change.
	CreatePlanChange(ctx context.Context, change *model.PlanChange) error
	GetPlanChange(ctx context.Context, id string) (*model.PlanChange, error)
	// GetOpenPlanChange returns the pending_payment or scheduled change of a
	// subscription, or ErrNotFound.
	GetOpenPlanChange(ctx context.Context, subscriptionID string) (*model.PlanChange, error)
	// ResolvePlanChange applies t and appends entries atomically.
	ResolvePlanChange(ctx context.Context, t model.PlanChangeTransition, entries []model.BillingEntry) (*model.PlanChange, error)
}

type AssignmentStore interface {
	// ListAssignments returns an actor's timeline ordered by start date.
	ListAssignments(ctx context.Context, actorID string) ([]model.TierAssignment, error)
	// AssignTier closes the actor's open assignment at a.StartDate and
	// inserts a, serialized per actor. A start not after the open
	// assignment's start is ErrConflict.
	AssignTier(ctx context.Context, a *model.TierAssignment) error
}

type CommissionStore interface {
	// UpsertCommission inserts rec or recomputes the pending record with the
	// same (actor, source event). A non-pending existing record is ErrConflict.
	UpsertCommission(ctx context.Context, rec *model.CommissionRecord) (*model.CommissionRecord, error)
	GetCommission(ctx context.Context, id string) (*model.CommissionRecord, error)
	ListCommissions(ctx context.Context, actorID string, limit int, cursor string) ([]model.CommissionRecord, bool, error)
	// UpdateCommissionStatus moves a record in one of from to status to.
	UpdateCommissionStatus(ctx context.Context, id string, from []model.CommissionStatus, to model.CommissionStatus, now time.Time) (*model.CommissionRecord, error)
}

type BillingStore interface {
	AppendBilling(ctx context.Context, entry *model.BillingEntry) error
	ListBilling(ctx context.Context, subscriptionID string, limit int, cursor string) ([]model.BillingEntry, bool, error)
	OutstandingCredit(ctx context.Context, subscriptionID string) (int64, error)
	// FindBillingByTransactionRef returns the entry carrying ref, or ErrNotFound.
	FindBillingByTransactionRef(ctx context.Context, ref string) (*model.BillingEntry, error)
}

type UsageStore interface {
	AppendUsage(ctx context.Context, rec *model.UsageRecord) error
	ListUsage(ctx context.Context, subscriberID string, limit int, cursor string) ([]model.UsageRecord, bool, error)
}

type BenefitStore interface {
	GetBenefitSession(ctx context.Context, sessionID string) (*model.BenefitSession, error)
	UpsertBenefitSession(ctx context.Context, s *model.BenefitSession) error
}
