// Package catalog holds the static tier catalog: subscription plans sold to
// students and institutions, and the commission tiers assigned to actors.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/edvin/entitlements/internal/model"
)

//go:embed tiers.yaml
var defaultTiers []byte

type catalogFile struct {
	Currency string     `yaml:"currency"`
	Tiers    []tierFile `yaml:"tiers"`
}

type tierFile struct {
	ID             string   `yaml:"id"`
	Kind           string   `yaml:"kind"`
	PlanType       string   `yaml:"plan_type"`
	DisplayName    string   `yaml:"display_name"`
	MonthlyPrice   int64    `yaml:"monthly_price"`
	AnnualPrice    int64    `yaml:"annual_price"`
	Currency       string   `yaml:"currency"`
	CommissionRate float64  `yaml:"commission_rate"`
	Features       []string `yaml:"features"`
	Active         *bool    `yaml:"active"`
	Trial          bool     `yaml:"trial"`
	Default        bool     `yaml:"default"`
}

// Catalog is an immutable, validated set of tiers.
type Catalog struct {
	currency string
	tiers    map[string]model.Tier
	order    []string
	byPlan   map[model.PlanType]string
	fallback string
}

// Load reads a catalog from path, or the built-in catalog when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Parse(defaultTiers)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tier catalog %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML catalog.
func Parse(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode tier catalog: %w", err)
	}
	if f.Currency == "" {
		f.Currency = "usd"
	}

	c := &Catalog{
		currency: strings.ToLower(f.Currency),
		tiers:    make(map[string]model.Tier, len(f.Tiers)),
		byPlan:   make(map[model.PlanType]string),
	}

	for _, tf := range f.Tiers {
		t, err := tf.toTier(c.currency)
		if err != nil {
			return nil, err
		}
		if _, dup := c.tiers[t.ID]; dup {
			return nil, fmt.Errorf("tier %s: duplicate id", t.ID)
		}
		if t.Kind != model.TierKindActor {
			if other, dup := c.byPlan[t.PlanType]; dup {
				return nil, fmt.Errorf("tier %s: plan type %s already used by %s", t.ID, t.PlanType, other)
			}
			c.byPlan[t.PlanType] = t.ID
		}
		c.tiers[t.ID] = t
		c.order = append(c.order, t.ID)
	}

	fallback, err := c.pickFallback()
	if err != nil {
		return nil, err
	}
	c.fallback = fallback
	return c, nil
}

func (tf tierFile) toTier(currency string) (model.Tier, error) {
	t := model.Tier{
		ID:             tf.ID,
		Kind:           model.TierKind(tf.Kind),
		PlanType:       model.PlanType(tf.PlanType),
		DisplayName:    tf.DisplayName,
		MonthlyPrice:   tf.MonthlyPrice,
		AnnualPrice:    tf.AnnualPrice,
		Currency:       strings.ToLower(tf.Currency),
		CommissionRate: tf.CommissionRate,
		Features:       tf.Features,
		Active:         tf.Active == nil || *tf.Active,
		Trial:          tf.Trial,
		Default:        tf.Default,
	}
	if t.Currency == "" {
		t.Currency = currency
	}
	if t.ID == "" {
		return t, fmt.Errorf("tier without id")
	}
	switch t.Kind {
	case model.TierKindStudent, model.TierKindInstitution, model.TierKindActor:
	default:
		return t, fmt.Errorf("tier %s: unknown kind %q", t.ID, tf.Kind)
	}
	if t.PlanType == "" {
		return t, fmt.Errorf("tier %s: missing plan_type", t.ID)
	}
	if t.CommissionRate < 0 || t.CommissionRate > 100 {
		return t, fmt.Errorf("tier %s: commission rate %.2f outside 0-100", t.ID, t.CommissionRate)
	}
	if t.MonthlyPrice < 0 || t.AnnualPrice < 0 {
		return t, fmt.Errorf("tier %s: negative price", t.ID)
	}
	if t.Trial && t.Kind == model.TierKindActor {
		return t, fmt.Errorf("tier %s: actor tiers cannot be trials", t.ID)
	}
	return t, nil
}

// pickFallback selects the tier used for actors without an assignment: the
// active actor tier flagged default, else the active actor tier with the
// lowest rate.
func (c *Catalog) pickFallback() (string, error) {
	var candidates []model.Tier
	for _, id := range c.order {
		t := c.tiers[id]
		if t.Kind != model.TierKindActor || !t.Active {
			continue
		}
		if t.Default {
			return t.ID, nil
		}
		candidates = append(candidates, t)
	}
	if len(candidates) == 0 {
		return "", fmt.Errorf("tier catalog has no active actor tier")
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].CommissionRate < candidates[j].CommissionRate
	})
	return candidates[0].ID, nil
}

// Currency is the catalog's default currency.
func (c *Catalog) Currency() string { return c.currency }

// Get returns a tier by id.
func (c *Catalog) Get(id string) (model.Tier, bool) {
	t, ok := c.tiers[id]
	return t, ok
}

// ByPlan returns the subscriber tier with the given plan type.
func (c *Catalog) ByPlan(plan model.PlanType) (model.Tier, bool) {
	id, ok := c.byPlan[plan]
	if !ok {
		return model.Tier{}, false
	}
	return c.tiers[id], true
}

// TrialTier returns the active trial tier sold to a subscriber kind.
func (c *Catalog) TrialTier(kind model.SubscriberKind) (model.Tier, bool) {
	for _, id := range c.order {
		t := c.tiers[id]
		if t.Trial && t.Active && t.Kind == kind.TierKind() {
			return t, true
		}
	}
	return model.Tier{}, false
}

// DefaultCommissionTier is the tier applied to an actor with no assignment.
func (c *Catalog) DefaultCommissionTier() model.Tier {
	return c.tiers[c.fallback]
}

// List returns all tiers in catalog order, optionally restricted to kind.
func (c *Catalog) List(kind model.TierKind) []model.Tier {
	var out []model.Tier
	for _, id := range c.order {
		t := c.tiers[id]
		if kind != "" && t.Kind != kind {
			continue
		}
		out = append(out, t)
	}
	return out
}

// SubscriberTier validates that tier id can be sold to kind on cycle and returns it.
func (c *Catalog) SubscriberTier(id string, kind model.SubscriberKind, cycle model.BillingCycle) (model.Tier, error) {
	t, ok := c.tiers[id]
	if !ok {
		return t, fmt.Errorf("tier %s: %w", id, model.ErrInvalidTier)
	}
	if !t.Active || t.Trial || t.Kind != kind.TierKind() {
		return t, fmt.Errorf("tier %s not sold to %s subscribers: %w", id, kind, model.ErrInvalidTier)
	}
	if _, ok := t.Price(cycle); !ok {
		return t, fmt.Errorf("tier %s has no %s price: %w", id, cycle, model.ErrInvalidTier)
	}
	return t, nil
}

// ActorTier validates that tier id is an active commission tier and returns it.
func (c *Catalog) ActorTier(id string) (model.Tier, error) {
	t, ok := c.tiers[id]
	if !ok || t.Kind != model.TierKindActor || !t.Active {
		return t, fmt.Errorf("commission tier %s: %w", id, model.ErrInvalidTier)
	}
	return t, nil
}
