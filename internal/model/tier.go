package model

import "math"

// TierKind says who a tier applies to.
type TierKind string

const (
	TierKindStudent     TierKind = "student"
	TierKindInstitution TierKind = "institution"
	TierKindActor       TierKind = "actor"
)

// PlanType names a plan within a tier kind, e.g. "premium" or "professional".
type PlanType string

// PlanTypeTrial is the plan type carried by trial subscriptions.
const PlanTypeTrial PlanType = "trial"

// BillingCycle is the length of a paid period.
type BillingCycle string

const (
	CycleMonthly BillingCycle = "monthly"
	CycleAnnual  BillingCycle = "annual"
)

// Valid reports whether c is a known billing cycle.
func (c BillingCycle) Valid() bool {
	return c == CycleMonthly || c == CycleAnnual
}

// Tier is a plan definition from the tier catalog. Subscriber tiers carry prices
// and a feature set; actor tiers carry a commission rate.
type Tier struct {
	ID             string   `json:"id"`
	Kind           TierKind `json:"kind"`
	PlanType       PlanType `json:"plan_type"`
	DisplayName    string   `json:"display_name"`
	MonthlyPrice   int64    `json:"monthly_price"`
	AnnualPrice    int64    `json:"annual_price"`
	Currency       string   `json:"currency"`
	CommissionRate float64  `json:"commission_rate"`
	Features       []string `json:"features"`
	Active         bool     `json:"active"`
	Trial          bool     `json:"trial"`
	Default        bool     `json:"default"`
}

// Price returns the price for one billing cycle. ok is false when the tier is not
// sold on that cycle.
func (t Tier) Price(cycle BillingCycle) (price int64, ok bool) {
	switch cycle {
	case CycleMonthly:
		return t.MonthlyPrice, t.MonthlyPrice > 0
	case CycleAnnual:
		return t.AnnualPrice, t.AnnualPrice > 0
	}
	return 0, false
}

// HasFeature reports whether the tier includes a benefit category.
func (t Tier) HasFeature(category string) bool {
	for _, f := range t.Features {
		if f == category {
			return true
		}
	}
	return false
}

// RateBasisPoints converts the percentage rate to basis points (15.5% -> 1550).
func RateBasisPoints(rate float64) int64 {
	return int64(math.Round(rate * 100))
}

// SubscriberKind is the type of subscriber holding a subscription.
type SubscriberKind string

const (
	SubscriberStudent     SubscriberKind = "student"
	SubscriberInstitution SubscriberKind = "institution"
)

// TierKind returns the catalog tier kind sold to this subscriber kind.
func (k SubscriberKind) TierKind() TierKind {
	if k == SubscriberInstitution {
		return TierKindInstitution
	}
	return TierKindStudent
}

// Valid reports whether k is a known subscriber kind.
func (k SubscriberKind) Valid() bool {
	return k == SubscriberStudent || k == SubscriberInstitution
}
