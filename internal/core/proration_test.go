package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/edvin/entitlements/internal/model"
)

func TestProrate_MidpointUpgrade(t *testing.T) {
	start := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 30)
	mid := start.AddDate(0, 0, 15)

	p := Prorate(model.RoundHalfUp, 1000, 2000, start, end, mid, model.CycleMonthly, model.CycleMonthly)

	assert.Equal(t, int64(500), p.Amount)
	assert.Equal(t, int64(500), p.Charge)
	assert.Equal(t, int64(0), p.Credit)
	assert.Equal(t, int64(15), p.RemainingDays)
	assert.Equal(t, int64(30), p.TotalDays)
	assert.Equal(t, start, p.PeriodStart)
	assert.Equal(t, end, p.PeriodEnd)
}

func TestProrate_Downgrade(t *testing.T) {
	start := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 30)

	p := Prorate(model.RoundHalfUp, 2000, 1000, start, end, start.AddDate(0, 0, 10), model.CycleMonthly, model.CycleMonthly)

	assert.Equal(t, int64(-667), p.Amount, "-1000*20/30 = -666.67")
	assert.Equal(t, int64(667), p.Credit)
}

func TestProrate_RoundingModes(t *testing.T) {
	start := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 4)
	eff := start.AddDate(0, 0, 1)

	// (1002-1000)*3/4 = 1.5
	assert.Equal(t, int64(2), Prorate(model.RoundHalfUp, 1000, 1002, start, end, eff, model.CycleMonthly, model.CycleMonthly).Amount)
	assert.Equal(t, int64(2), Prorate(model.RoundHalfEven, 1000, 1002, start, end, eff, model.CycleMonthly, model.CycleMonthly).Amount)
	// (1001-1000)*2/4 = 0.5
	eff = start.AddDate(0, 0, 2)
	assert.Equal(t, int64(1), Prorate(model.RoundHalfUp, 1000, 1001, start, end, eff, model.CycleMonthly, model.CycleMonthly).Amount)
	assert.Equal(t, int64(0), Prorate(model.RoundHalfEven, 1000, 1001, start, end, eff, model.CycleMonthly, model.CycleMonthly).Amount)
}

func TestProrate_CycleChange(t *testing.T) {
	start := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 30)
	eff := start.AddDate(0, 0, 15)

	p := Prorate(model.RoundHalfUp, 1000, 10000, start, end, eff, model.CycleMonthly, model.CycleAnnual)

	assert.Equal(t, int64(500), p.Credit)
	assert.Equal(t, int64(10000), p.Charge)
	assert.Equal(t, int64(9500), p.Amount)
	assert.Equal(t, eff, p.PeriodStart)
	assert.Equal(t, eff.AddDate(1, 0, 0), p.PeriodEnd)
}

func TestProrate_AtPeriodEdges(t *testing.T) {
	start := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 30)

	assert.Equal(t, int64(1000), Prorate(model.RoundHalfUp, 1000, 2000, start, end, start, model.CycleMonthly, model.CycleMonthly).Amount)
	assert.Equal(t, int64(0), Prorate(model.RoundHalfUp, 1000, 2000, start, end, end, model.CycleMonthly, model.CycleMonthly).Amount)
	assert.Equal(t, int64(0), Prorate(model.RoundHalfUp, 1000, 2000, start, start, start, model.CycleMonthly, model.CycleMonthly).Amount)
}
