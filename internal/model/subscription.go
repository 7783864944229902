package model

import "time"

// Subscription is the single subscription row a subscriber holds. The row is
// never deleted; cancellation and expiry are status transitions.
type Subscription struct {
	ID             string             `json:"id"`
	SubscriberID   string             `json:"subscriber_id"`
	SubscriberKind SubscriberKind     `json:"subscriber_kind"`
	PlanType       PlanType           `json:"plan_type"`
	BillingCycle   BillingCycle       `json:"billing_cycle"`
	Status         SubscriptionStatus `json:"status"`
	IsTrial        bool               `json:"is_trial"`
	StartDate      time.Time          `json:"start_date"`
	EndDate        time.Time          `json:"end_date"`
	AutoRenew      bool               `json:"auto_renew"`
	RemainingQuota int                `json:"remaining_quota"`
	TierID         string             `json:"tier_id"`
	Version        int64              `json:"version"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

// LifecycleState is the derived position of a subscription in the lifecycle.
type LifecycleState string

const (
	StateNoSubscription LifecycleState = "NO_SUBSCRIPTION"
	StateTrialActive    LifecycleState = "TRIAL_ACTIVE"
	StateTrialExhausted LifecycleState = "TRIAL_EXHAUSTED"
	StateTrialExpired   LifecycleState = "TRIAL_EXPIRED"
	StatePaidActive     LifecycleState = "PAID_ACTIVE"
	StateCancelled      LifecycleState = "CANCELLED"
	StateExpired        LifecycleState = "EXPIRED"
)

// State derives the lifecycle state at now. A nil subscription is NO_SUBSCRIPTION.
// A cancelled paid subscription stays CANCELLED until its end date passes.
func (s *Subscription) State(now time.Time) LifecycleState {
	if s == nil {
		return StateNoSubscription
	}
	ended := !now.Before(s.EndDate)
	if s.IsTrial {
		switch {
		case s.Status == StatusActive && !ended && s.RemainingQuota > 0:
			return StateTrialActive
		case s.Status == StatusExpired || (s.Status == StatusActive && ended):
			return StateTrialExpired
		}
		return StateTrialExhausted
	}
	switch s.Status {
	case StatusActive:
		if ended {
			return StateExpired
		}
		return StatePaidActive
	case StatusCancelled:
		if ended {
			return StateExpired
		}
		return StateCancelled
	}
	return StateExpired
}

// HasPaidAccess reports whether a paid subscription still grants its feature set.
// Cancelled subscriptions keep access until the paid period ends.
func (s *Subscription) HasPaidAccess(now time.Time) bool {
	st := s.State(now)
	return st == StatePaidActive || st == StateCancelled
}

// RemainingDays counts whole days left before the end date, never negative.
func (s *Subscription) RemainingDays(now time.Time) int {
	if s == nil || !now.Before(s.EndDate) {
		return 0
	}
	return int(DaysBetween(now, s.EndDate))
}

// TrialEligibility is the answer to "may this subscriber start a trial".
type TrialEligibility struct {
	Eligible       bool `json:"eligible"`
	Active         bool `json:"active"`
	RemainingDays  int  `json:"remaining_days"`
	RemainingSeats int  `json:"remaining_seats"`
}

// EvaluateTrialEligibility is the single source of the trial eligibility rule.
// A subscriber is eligible with no subscription row, or when the row is neither
// active nor a trial; a trial row, used up or not, is never replaced by another.
func EvaluateTrialEligibility(sub *Subscription, now time.Time) TrialEligibility {
	if sub == nil {
		return TrialEligibility{Eligible: true}
	}
	var e TrialEligibility
	e.Eligible = !sub.IsTrial && sub.Status != StatusActive
	if sub.IsTrial && sub.Status == StatusActive && now.Before(sub.EndDate) {
		e.Active = true
		e.RemainingDays = sub.RemainingDays(now)
		e.RemainingSeats = sub.RemainingQuota
	}
	return e
}

// DaysBetween counts 24-hour days from a to b, rounding a partial day up.
func DaysBetween(a, b time.Time) int64 {
	d := b.Sub(a)
	days := int64(d / (24 * time.Hour))
	if d%(24*time.Hour) > 0 {
		days++
	}
	return days
}

// AdvancePeriod returns the end of one billing cycle starting at start.
func AdvancePeriod(start time.Time, cycle BillingCycle) time.Time {
	if cycle == CycleAnnual {
		return start.AddDate(1, 0, 0)
	}
	return start.AddDate(0, 1, 0)
}
