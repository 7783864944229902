package model

import "time"

// CommissionRecord is the payable amount owed to an actor for one revenue event.
// It is unique per (ActorID, SourceEventID).
type CommissionRecord struct {
	ID               string           `json:"id"`
	ActorID          string           `json:"actor_id"`
	SourceEventID    string           `json:"source_event_id"`
	TierID           string           `json:"tier_id"`
	GrossAmount      int64            `json:"gross_amount"`
	Currency         string           `json:"currency"`
	CommissionRate   float64          `json:"commission_rate"`
	CommissionAmount int64            `json:"commission_amount"`
	Status           CommissionStatus `json:"status"`
	EventTime        time.Time        `json:"event_time"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// RevenueEvent is a completed, paid session reported by the session collaborator.
type RevenueEvent struct {
	ActorID       string    `json:"actor_id"`
	SourceEventID string    `json:"source_event_id"`
	GrossAmount   int64     `json:"gross_amount"`
	Currency      string    `json:"currency"`
	EventTime     time.Time `json:"event_time"`
}
