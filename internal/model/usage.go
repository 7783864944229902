package model

import "time"

// UsageRecord is one consumption or attendance event. Append-only.
type UsageRecord struct {
	ID               string    `json:"id"`
	SubscriberID     string    `json:"subscriber_id"`
	SubscriptionID   *string   `json:"subscription_id,omitempty"`
	BenefitSessionID string    `json:"benefit_session_id"`
	Attended         bool      `json:"attended"`
	CreatedAt        time.Time `json:"created_at"`
}

// JoinConfirmation is reported by the session join path after a join attempt.
type JoinConfirmation struct {
	SubscriberID     string `json:"subscriber_id"`
	BenefitSessionID string `json:"benefit_session_id"`
	Attended         bool   `json:"attended"`
}

// BenefitSession is a metered session together with the benefit category it
// belongs to. Rows are owned by the course collaborator.
type BenefitSession struct {
	SessionID string `json:"session_id"`
	Category  string `json:"category"`
}
