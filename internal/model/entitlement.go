package model

// ReasonCode explains why a benefit may not be consumed.
type ReasonCode string

const (
	ReasonNoSubscription     ReasonCode = "NO_SUBSCRIPTION"
	ReasonTrialExhausted     ReasonCode = "TRIAL_EXHAUSTED"
	ReasonPlanExpired        ReasonCode = "PLAN_EXPIRED"
	ReasonFeatureNotIncluded ReasonCode = "FEATURE_NOT_INCLUDED"
)

// Decision is the answer of the entitlement checker.
type Decision struct {
	Allowed    bool       `json:"allowed"`
	ReasonCode ReasonCode `json:"reason_code,omitempty"`
	Category   string     `json:"category,omitempty"`
	Trial      bool       `json:"trial"`
}

// Err maps a denial to the engine error the caller would get from consuming.
func (d Decision) Err() error {
	switch d.ReasonCode {
	case "":
		return nil
	case ReasonTrialExhausted:
		return ErrQuotaExhausted
	}
	return ErrNotSubscribed
}
