package model

import "time"

// TierAssignment binds an actor to a commission tier for [StartDate, EndDate).
// A nil EndDate marks the actor's current open assignment.
type TierAssignment struct {
	ID             string     `json:"id"`
	ActorID        string     `json:"actor_id"`
	TierID         string     `json:"tier_id"`
	CommissionRate float64    `json:"commission_rate"`
	StartDate      time.Time  `json:"start_date"`
	EndDate        *time.Time `json:"end_date,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// Covers reports whether the assignment is in force at t.
func (a TierAssignment) Covers(t time.Time) bool {
	if t.Before(a.StartDate) {
		return false
	}
	return a.EndDate == nil || t.Before(*a.EndDate)
}

// Open reports whether the assignment has no end date.
func (a TierAssignment) Open() bool {
	return a.EndDate == nil
}

// ResolvedTier is the commission tier in force for an actor at a point in time.
type ResolvedTier struct {
	Tier           Tier            `json:"tier"`
	CommissionRate float64         `json:"commission_rate"`
	Assignment     *TierAssignment `json:"assignment,omitempty"`
	Fallback       bool            `json:"fallback"`
}
