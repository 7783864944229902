package core

import (
	"time"

	"github.com/edvin/entitlements/internal/model"
)

// Proration is the money and period effect of switching plans mid-period.
// Amount is positive when the subscriber owes money and negative for a credit.
type Proration struct {
	Amount        int64     `json:"amount"`
	Credit        int64     `json:"credit"`
	Charge        int64     `json:"charge"`
	RemainingDays int64     `json:"remaining_days"`
	TotalDays     int64     `json:"total_days"`
	PeriodStart   time.Time `json:"period_start"`
	PeriodEnd     time.Time `json:"period_end"`
}

// Prorate computes the change from oldPrice on the current period
// [start, end) to newPrice on newCycle, effective at eff.
//
// On the same cycle the price difference is charged for the remaining days and
// the period is kept. On a cycle change the unused part of the old price is
// credited, the full new price charged, and a new period starts at eff.
func Prorate(mode model.RoundingMode, oldPrice, newPrice int64, start, end, eff time.Time, oldCycle, newCycle model.BillingCycle) Proration {
	total := model.DaysBetween(start, end)
	remaining := model.DaysBetween(eff, end)
	if remaining < 0 {
		remaining = 0
	}
	if remaining > total {
		remaining = total
	}

	p := Proration{RemainingDays: remaining, TotalDays: total, PeriodStart: start, PeriodEnd: end}
	if total <= 0 {
		return p
	}

	if oldCycle == newCycle {
		p.Amount = mode.Divide((newPrice-oldPrice)*remaining, total)
		if p.Amount >= 0 {
			p.Charge = p.Amount
		} else {
			p.Credit = -p.Amount
		}
		return p
	}

	p.Credit = mode.Divide(oldPrice*remaining, total)
	p.Charge = newPrice
	p.Amount = p.Charge - p.Credit
	p.PeriodStart = eff
	p.PeriodEnd = model.AdvancePeriod(eff, newCycle)
	return p
}
