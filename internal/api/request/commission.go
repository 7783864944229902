package request

import "time"

type AssignTier struct {
	TierID    string    `json:"tier_id" validate:"required"`
	StartDate time.Time `json:"start_date"`
}

// SessionCompleted is the revenue event emitted when a paid session ends.
type SessionCompleted struct {
	ActorID       string    `json:"actor_id" validate:"required"`
	SourceEventID string    `json:"source_event_id" validate:"required"`
	GrossAmount   int64     `json:"gross_amount" validate:"gte=0"`
	Currency      string    `json:"currency" validate:"omitempty,len=3"`
	EventTime     time.Time `json:"event_time" validate:"required"`
}
