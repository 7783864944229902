package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edvin/entitlements/internal/model"
)

func TestLoad_Default(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "usd", c.Currency())
	assert.Len(t, c.List(model.TierKindActor), 3)
	assert.Equal(t, "actor-standard", c.DefaultCommissionTier().ID)

	premium, ok := c.ByPlan("premium")
	require.True(t, ok)
	assert.Equal(t, "student-premium", premium.ID)
	assert.True(t, premium.Active)
	assert.Equal(t, "usd", premium.Currency)

	trial, ok := c.TrialTier(model.SubscriberStudent)
	require.True(t, ok)
	assert.Equal(t, "student-trial", trial.ID)

	trial, ok = c.TrialTier(model.SubscriberInstitution)
	require.True(t, ok)
	assert.Equal(t, "institution-trial", trial.ID)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tiers.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
currency: EUR
tiers:
  - id: host-a
    kind: actor
    plan_type: a
    commission_rate: 30
  - id: host-b
    kind: actor
    plan_type: b
    commission_rate: 12.5
`), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "eur", c.Currency())
	assert.Equal(t, "host-b", c.DefaultCommissionTier().ID, "lowest rate wins without an explicit default")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read tier catalog")
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"bad yaml", "tiers: [", "decode tier catalog"},
		{"no actor tier", "tiers:\n  - {id: s, kind: student, plan_type: basic, monthly_price: 1}\n", "no active actor tier"},
		{"unknown kind", "tiers:\n  - {id: x, kind: robot, plan_type: p}\n", "unknown kind"},
		{"rate out of range", "tiers:\n  - {id: x, kind: actor, plan_type: p, commission_rate: 150}\n", "outside 0-100"},
		{"duplicate id", "tiers:\n  - {id: x, kind: actor, plan_type: p}\n  - {id: x, kind: actor, plan_type: q}\n", "duplicate id"},
		{"duplicate plan", "tiers:\n  - {id: a, kind: student, plan_type: p}\n  - {id: b, kind: institution, plan_type: p}\n  - {id: c, kind: actor, plan_type: p}\n", "already used"},
		{"missing plan type", "tiers:\n  - {id: x, kind: actor}\n", "missing plan_type"},
		{"inactive actors only", "tiers:\n  - {id: x, kind: actor, plan_type: p, active: false}\n", "no active actor tier"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestSubscriberTier(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)

	tier, err := c.SubscriberTier("student-premium", model.SubscriberStudent, model.CycleAnnual)
	require.NoError(t, err)
	assert.Equal(t, int64(20000), tier.AnnualPrice)

	_, err = c.SubscriberTier("nope", model.SubscriberStudent, model.CycleMonthly)
	assert.ErrorIs(t, err, model.ErrInvalidTier)

	_, err = c.SubscriberTier("institution-starter", model.SubscriberStudent, model.CycleMonthly)
	assert.ErrorIs(t, err, model.ErrInvalidTier)

	_, err = c.SubscriberTier("student-trial", model.SubscriberStudent, model.CycleMonthly)
	assert.ErrorIs(t, err, model.ErrInvalidTier)

	_, err = c.SubscriberTier("student-basic", model.SubscriberStudent, "weekly")
	assert.ErrorIs(t, err, model.ErrInvalidTier)
}

func TestActorTier(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)

	tier, err := c.ActorTier("actor-silver")
	require.NoError(t, err)
	assert.Equal(t, 15.0, tier.CommissionRate)

	_, err = c.ActorTier("student-basic")
	assert.ErrorIs(t, err, model.ErrInvalidTier)
}
