package enginectl

import "time"

type SeedConfig struct {
	APIURL          string              `yaml:"api_url"`
	BenefitSessions []BenefitSessionDef `yaml:"benefit_sessions"`
	Actors          []ActorDef          `yaml:"actors"`
}

type BenefitSessionDef struct {
	ID       string `yaml:"id"`
	Category string `yaml:"category"`
}

// ActorDef lists an actor's tier history in chronological order.
type ActorDef struct {
	ID          string          `yaml:"id"`
	Assignments []AssignmentDef `yaml:"assignments"`
}

type AssignmentDef struct {
	Tier  string    `yaml:"tier"`
	Start time.Time `yaml:"start"`
}
