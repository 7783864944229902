package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/edvin/entitlements/internal/catalog"
	"github.com/edvin/entitlements/internal/metrics"
	"github.com/edvin/entitlements/internal/model"
	"github.com/edvin/entitlements/internal/platform"
)

// LifecycleService owns the state machine of a subscriber's subscription.
type LifecycleService struct {
	store   Store
	catalog *catalog.Catalog
	opts    Options
}

func NewLifecycleService(store Store, cat *catalog.Catalog, opts Options) *LifecycleService {
	return &LifecycleService{store: store, catalog: cat, opts: opts.withDefaults()}
}

// Get returns the subscriber's subscription.
func (s *LifecycleService) Get(ctx context.Context, subscriberID string) (*model.Subscription, error) {
	sub, err := readWithRetry(ctx, func() (*model.Subscription, error) {
		return s.store.GetSubscription(ctx, subscriberID)
	})
	if err != nil {
		return nil, fmt.Errorf("get subscription for %s: %w", subscriberID, err)
	}
	return sub, nil
}

// lookup is Get without the not-found error: a missing row is (nil, nil).
func (s *LifecycleService) lookup(ctx context.Context, subscriberID string) (*model.Subscription, error) {
	sub, err := s.Get(ctx, subscriberID)
	if errors.Is(err, model.ErrNotFound) {
		return nil, nil
	}
	return sub, err
}

// StartTrial starts the subscriber's one-time trial. Calling it again while
// the trial is active returns the same trial with created=false.
func (s *LifecycleService) StartTrial(ctx context.Context, subscriberID string, kind model.SubscriberKind) (*model.Subscription, bool, error) {
	if subscriberID == "" || !kind.Valid() {
		return nil, false, fmt.Errorf("start trial: subscriber id and kind required: %w", model.ErrInvalidInput)
	}
	tier, ok := s.catalog.TrialTier(kind)
	if !ok {
		return nil, false, fmt.Errorf("start trial: no trial tier for %s: %w", kind, model.ErrInvalidTier)
	}

	now := s.opts.Now()
	existing, err := s.lookup(ctx, subscriberID)
	if err != nil {
		return nil, false, fmt.Errorf("start trial: %w", err)
	}
	if existing != nil {
		if err := s.trialConflict(existing, now); err != nil {
			return existing, false, err
		}
		if existing.IsTrial {
			return existing, false, nil
		}
	}

	sub := &model.Subscription{
		ID:             platform.NewID(),
		SubscriberID:   subscriberID,
		SubscriberKind: kind,
		PlanType:       tier.PlanType,
		BillingCycle:   model.CycleMonthly,
		Status:         model.StatusActive,
		IsTrial:        true,
		StartDate:      now,
		EndDate:        now.Add(time.Duration(s.opts.TrialDays) * 24 * time.Hour),
		RemainingQuota: s.opts.TrialQuota,
		TierID:         tier.ID,
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	stored, created, err := s.store.StartTrial(ctx, sub)
	if err != nil {
		return nil, false, fmt.Errorf("start trial for %s: %w", subscriberID, err)
	}
	if !created {
		// Lost a race; judge whatever row won.
		if err := s.trialConflict(stored, now); err != nil {
			return stored, false, err
		}
		return stored, false, nil
	}

	zerolog.Ctx(ctx).Info().Str("subscriber_id", subscriberID).Str("subscription_id", stored.ID).Msg("trial started")
	metrics.SubscriptionTransitions.WithLabelValues("start_trial").Inc()
	return stored, true, nil
}

// trialConflict returns ErrConflict unless existing may coexist with a trial
// start: nil for an active trial (returned as is) or a row that may be replaced.
func (s *LifecycleService) trialConflict(existing *model.Subscription, now time.Time) error {
	switch {
	case !existing.IsTrial && existing.Status == model.StatusActive:
		return fmt.Errorf("subscriber %s has an active paid subscription: %w", existing.SubscriberID, model.ErrConflict)
	case existing.IsTrial && existing.State(now) == model.StateTrialActive:
		return nil
	case existing.IsTrial:
		return fmt.Errorf("subscriber %s already used the trial: %w", existing.SubscriberID, model.ErrConflict)
	}
	return nil
}

// GetTrialEligibility reports whether the subscriber may start a trial.
func (s *LifecycleService) GetTrialEligibility(ctx context.Context, subscriberID string) (model.TrialEligibility, error) {
	sub, err := s.lookup(ctx, subscriberID)
	if err != nil {
		return model.TrialEligibility{}, fmt.Errorf("trial eligibility: %w", err)
	}
	return model.EvaluateTrialEligibility(sub, s.opts.Now()), nil
}

// UpgradeRequest asks to move a paid subscription to another tier or cycle.
type UpgradeRequest struct {
	SubscriberID string             `json:"subscriber_id"`
	TierID       string             `json:"tier_id"`
	BillingCycle model.BillingCycle `json:"billing_cycle"`
	// EffectiveDate defaults to now for immediate changes.
	EffectiveDate time.Time `json:"effective_date"`
	Immediate     bool      `json:"immediate"`
}

// UpgradeResult describes what Upgrade did. PaymentRequired is set when the
// change waits for a payment confirmation before it is applied.
type UpgradeResult struct {
	Subscription    *model.Subscription `json:"subscription"`
	Change          *model.PlanChange   `json:"change"`
	Proration       Proration           `json:"proration"`
	PaymentRequired bool                `json:"payment_required"`
}

// Upgrade changes a paid subscription's tier or billing cycle. An immediate
// change owing money is held as pending_payment; a credit or zero-cost change
// applies at once; a deferred change is scheduled for the next renewal.
func (s *LifecycleService) Upgrade(ctx context.Context, req UpgradeRequest) (*UpgradeResult, error) {
	now := s.opts.Now()
	sub, err := s.Get(ctx, req.SubscriberID)
	if err != nil {
		return nil, fmt.Errorf("upgrade: %w", notFoundAs(err, model.ErrNotSubscribed))
	}
	if sub.IsTrial || sub.State(now) != model.StatePaidActive {
		return nil, fmt.Errorf("upgrade %s: no active paid subscription: %w", req.SubscriberID, model.ErrNotSubscribed)
	}

	cycle := req.BillingCycle
	if cycle == "" {
		cycle = sub.BillingCycle
	}
	tier, err := s.catalog.SubscriberTier(req.TierID, sub.SubscriberKind, cycle)
	if err != nil {
		return nil, fmt.Errorf("upgrade %s: %w", req.SubscriberID, err)
	}
	if tier.ID == sub.TierID && cycle == sub.BillingCycle {
		return nil, fmt.Errorf("upgrade %s: already on %s %s: %w", req.SubscriberID, tier.ID, cycle, model.ErrConflict)
	}
	current, ok := s.catalog.Get(sub.TierID)
	if !ok {
		return nil, fmt.Errorf("upgrade %s: current tier %s not in catalog: %w", req.SubscriberID, sub.TierID, model.ErrInvalidTier)
	}

	_, err = s.store.GetOpenPlanChange(ctx, sub.ID)
	switch {
	case err == nil:
		return nil, fmt.Errorf("upgrade %s: a plan change is already open: %w", req.SubscriberID, model.ErrConflict)
	case !errors.Is(err, model.ErrNotFound):
		return nil, fmt.Errorf("upgrade %s: %w", req.SubscriberID, err)
	}

	change := &model.PlanChange{
		ID:             platform.NewID(),
		SubscriptionID: sub.ID,
		SubscriberID:   sub.SubscriberID,
		FromTierID:     sub.TierID,
		ToTierID:       tier.ID,
		FromCycle:      sub.BillingCycle,
		ToCycle:        cycle,
		Currency:       tier.Currency,
		Immediate:      req.Immediate,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	logger := zerolog.Ctx(ctx).With().Str("subscriber_id", sub.SubscriberID).Str("plan_change_id", change.ID).Logger()

	if !req.Immediate {
		change.EffectiveDate = sub.EndDate
		change.Status = model.PlanChangeScheduled
		if err := s.store.CreatePlanChange(ctx, change); err != nil {
			return nil, fmt.Errorf("schedule plan change for %s: %w", sub.SubscriberID, err)
		}
		logger.Info().Str("to_tier", tier.ID).Time("effective_date", change.EffectiveDate).Msg("plan change scheduled")
		metrics.PlanChanges.WithLabelValues(string(change.Status)).Inc()
		return &UpgradeResult{Subscription: sub, Change: change}, nil
	}

	eff := req.EffectiveDate
	if eff.IsZero() {
		eff = now
	}
	if eff.Before(sub.StartDate) || !eff.Before(sub.EndDate) {
		return nil, fmt.Errorf("upgrade %s: effective date %s outside current period: %w", sub.SubscriberID, eff.Format(time.RFC3339), model.ErrInvalidInput)
	}
	change.EffectiveDate = eff

	oldPrice, _ := current.Price(sub.BillingCycle)
	newPrice, _ := tier.Price(cycle)
	p := Prorate(s.opts.Rounding, oldPrice, newPrice, sub.StartDate, sub.EndDate, eff, sub.BillingCycle, cycle)
	change.ProratedAmount = p.Amount

	if p.Amount > 0 {
		credit, err := s.store.OutstandingCredit(ctx, sub.ID)
		if err != nil {
			return nil, fmt.Errorf("upgrade %s: %w", sub.SubscriberID, err)
		}
		change.CreditApplied = min(credit, p.Amount)
		change.ProratedAmount = p.Amount - change.CreditApplied
	}

	if change.ProratedAmount > 0 {
		change.Status = model.PlanChangePendingPayment
		if err := s.store.CreatePlanChange(ctx, change); err != nil {
			return nil, fmt.Errorf("create plan change for %s: %w", sub.SubscriberID, err)
		}
		logger.Info().Int64("amount", change.ProratedAmount).Int64("credit_applied", change.CreditApplied).Str("to_tier", tier.ID).Msg("plan change awaiting payment")
		metrics.PlanChanges.WithLabelValues(string(change.Status)).Inc()
		return &UpgradeResult{Subscription: sub, Change: change, Proration: p, PaymentRequired: true}, nil
	}

	change.Status = model.PlanChangeApplied
	updated := applyPlanChange(sub, change, tier, now)
	var entries []model.BillingEntry
	if p.Amount < 0 {
		entries = append(entries, model.BillingEntry{
			ID:             platform.NewID(),
			SubscriptionID: sub.ID,
			Kind:           model.BillingCreditNote,
			Amount:         p.Amount,
			Currency:       tier.Currency,
			Status:         model.BillingCredit,
			Description:    fmt.Sprintf("Proration credit %s -> %s", sub.TierID, tier.ID),
			CreatedAt:      now,
		})
	}
	if change.CreditApplied > 0 {
		entries = append(entries, creditAppliedEntry(sub.ID, tier.Currency, change.CreditApplied,
			fmt.Sprintf("Credit applied to proration %s -> %s", sub.TierID, tier.ID), now))
	}

	saved, err := s.store.SaveSubscription(ctx, model.SubscriptionUpdate{
		Subscription:    updated,
		ExpectedVersion: sub.Version,
		Entries:         entries,
		InsertChange:    change,
	})
	if err != nil {
		return nil, fmt.Errorf("apply plan change for %s: %w", sub.SubscriberID, err)
	}
	logger.Info().Int64("amount", p.Amount).Str("to_tier", tier.ID).Msg("plan change applied")
	metrics.PlanChanges.WithLabelValues(string(change.Status)).Inc()
	return &UpgradeResult{Subscription: saved, Change: change, Proration: p}, nil
}

// applyPlanChange returns a copy of sub moved to change's target plan. A cycle
// change starts a new period at the effective date.
func applyPlanChange(sub *model.Subscription, change *model.PlanChange, tier model.Tier, now time.Time) *model.Subscription {
	next := *sub
	next.TierID = tier.ID
	next.PlanType = tier.PlanType
	next.BillingCycle = change.ToCycle
	if change.Immediate && change.ToCycle != change.FromCycle {
		next.StartDate = change.EffectiveDate
		next.EndDate = model.AdvancePeriod(change.EffectiveDate, change.ToCycle)
	}
	next.Version = sub.Version + 1
	next.UpdatedAt = now
	return &next
}

func creditAppliedEntry(subscriptionID, currency string, amount int64, description string, now time.Time) model.BillingEntry {
	return model.BillingEntry{
		ID:             platform.NewID(),
		SubscriptionID: subscriptionID,
		Kind:           model.BillingCreditApplied,
		Amount:         amount,
		Currency:       currency,
		Status:         model.BillingCredit,
		Description:    description,
		CreatedAt:      now,
	}
}

// Cancel stops auto-renewal. Access continues until the end of the paid period.
func (s *LifecycleService) Cancel(ctx context.Context, subscriberID string) (*model.Subscription, error) {
	sub, err := s.store.CancelSubscription(ctx, subscriberID, s.opts.Now())
	if err != nil {
		return nil, fmt.Errorf("cancel subscription for %s: %w", subscriberID, notFoundAs(err, model.ErrNotSubscribed))
	}
	metrics.SubscriptionTransitions.WithLabelValues("cancel").Inc()
	zerolog.Ctx(ctx).Info().Str("subscriber_id", subscriberID).Time("end_date", sub.EndDate).Msg("subscription cancelled")
	return sub, nil
}

// Expire marks a subscription whose period has ended as expired.
func (s *LifecycleService) Expire(ctx context.Context, subscriberID string) (*model.Subscription, error) {
	sub, err := s.store.ExpireSubscription(ctx, subscriberID, s.opts.Now())
	if err != nil {
		return nil, fmt.Errorf("expire subscription for %s: %w", subscriberID, err)
	}
	metrics.SubscriptionTransitions.WithLabelValues("expire").Inc()
	return sub, nil
}

// ExpireLapsed expires up to limit subscriptions whose period ended without
// a renewal pending and returns how many it expired. Rows that changed
// underneath it are skipped.
func (s *LifecycleService) ExpireLapsed(ctx context.Context, limit int) (int, error) {
	now := s.opts.Now()
	lapsed, err := readWithRetry(ctx, func() ([]model.Subscription, error) {
		return s.store.ListLapsed(ctx, now, limit)
	})
	if err != nil {
		return 0, fmt.Errorf("expire lapsed subscriptions: %w", err)
	}

	expired := 0
	for _, sub := range lapsed {
		if _, err := s.store.ExpireSubscription(ctx, sub.SubscriberID, now); err != nil {
			if errors.Is(err, model.ErrConflict) {
				continue
			}
			return expired, fmt.Errorf("expire lapsed subscription %s: %w", sub.ID, err)
		}
		expired++
	}
	if expired > 0 {
		metrics.SubscriptionTransitions.WithLabelValues("expire").Add(float64(expired))
		zerolog.Ctx(ctx).Info().Int("expired", expired).Msg("lapsed subscriptions expired")
	}
	return expired, nil
}

// Renew rolls an auto-renewing paid subscription into its next period,
// applying a scheduled plan change and any outstanding credit.
func (s *LifecycleService) Renew(ctx context.Context, subscriberID, transactionRef string) (*model.Subscription, error) {
	now := s.opts.Now()
	sub, err := s.Get(ctx, subscriberID)
	if err != nil {
		return nil, fmt.Errorf("renew: %w", notFoundAs(err, model.ErrNotSubscribed))
	}
	switch {
	case sub.Status == model.StatusExpired:
		return nil, fmt.Errorf("renew %s: subscription expired: %w", subscriberID, model.ErrNotSubscribed)
	case sub.IsTrial:
		return nil, fmt.Errorf("renew %s: trials do not renew: %w", subscriberID, model.ErrConflict)
	case sub.Status != model.StatusActive || !sub.AutoRenew:
		return nil, fmt.Errorf("renew %s: auto-renew is off: %w", subscriberID, model.ErrConflict)
	}

	if transactionRef == "" {
		transactionRef = platform.NewReference("renew_")
	} else if _, err := s.store.FindBillingByTransactionRef(ctx, transactionRef); err == nil {
		return sub, nil
	} else if !errors.Is(err, model.ErrNotFound) {
		return nil, fmt.Errorf("renew %s: %w", subscriberID, err)
	}

	next := *sub
	update := model.SubscriptionUpdate{ExpectedVersion: sub.Version}

	change, err := s.store.GetOpenPlanChange(ctx, sub.ID)
	switch {
	case err == nil && change.Status == model.PlanChangeScheduled:
		tier, ok := s.catalog.Get(change.ToTierID)
		if !ok {
			return nil, fmt.Errorf("renew %s: scheduled tier %s not in catalog: %w", subscriberID, change.ToTierID, model.ErrInvalidTier)
		}
		next.TierID = tier.ID
		next.PlanType = tier.PlanType
		next.BillingCycle = change.ToCycle
		update.Transition = &model.PlanChangeTransition{
			ChangeID: change.ID,
			From:     []model.PlanChangeStatus{model.PlanChangeScheduled},
			To:       model.PlanChangeApplied,
		}
	case err != nil && !errors.Is(err, model.ErrNotFound):
		return nil, fmt.Errorf("renew %s: %w", subscriberID, err)
	}

	tier, ok := s.catalog.Get(next.TierID)
	if !ok {
		return nil, fmt.Errorf("renew %s: tier %s not in catalog: %w", subscriberID, next.TierID, model.ErrInvalidTier)
	}
	price, ok := tier.Price(next.BillingCycle)
	if !ok {
		return nil, fmt.Errorf("renew %s: tier %s has no %s price: %w", subscriberID, tier.ID, next.BillingCycle, model.ErrInvalidTier)
	}

	credit, err := s.store.OutstandingCredit(ctx, sub.ID)
	if err != nil {
		return nil, fmt.Errorf("renew %s: %w", subscriberID, err)
	}
	applied := min(credit, price)

	next.StartDate = sub.EndDate
	next.EndDate = model.AdvancePeriod(sub.EndDate, next.BillingCycle)
	next.Version = sub.Version + 1
	next.UpdatedAt = now
	update.Subscription = &next

	update.Entries = append(update.Entries, model.BillingEntry{
		ID:             platform.NewID(),
		SubscriptionID: sub.ID,
		Kind:           model.BillingCharge,
		Amount:         price - applied,
		Currency:       tier.Currency,
		Status:         model.BillingPaid,
		TransactionRef: transactionRef,
		Description:    fmt.Sprintf("Renewal %s %s", tier.DisplayName, next.BillingCycle),
		CreatedAt:      now,
	})
	if applied > 0 {
		update.Entries = append(update.Entries, creditAppliedEntry(sub.ID, tier.Currency, applied, "Credit applied to renewal", now))
	}

	saved, err := s.store.SaveSubscription(ctx, update)
	if err != nil {
		return nil, fmt.Errorf("renew subscription for %s: %w", subscriberID, err)
	}
	zerolog.Ctx(ctx).Info().Str("subscriber_id", subscriberID).Int64("charged", price-applied).Int64("credit_applied", applied).Time("end_date", saved.EndDate).Msg("subscription renewed")
	metrics.SubscriptionTransitions.WithLabelValues("renew").Inc()
	return saved, nil
}

// ConfirmPayment consumes a payment confirmation. It finalizes the open
// pending_payment plan change when there is one, and otherwise treats a
// successful payment as a paid checkout activating the subscription.
// Confirmations are idempotent on their provider reference.
func (s *LifecycleService) ConfirmPayment(ctx context.Context, ev model.PaymentConfirmation) (*model.Subscription, error) {
	if ev.SubscriberID == "" || ev.ProviderReference == "" {
		return nil, fmt.Errorf("confirm payment: subscriber id and provider reference required: %w", model.ErrInvalidInput)
	}
	if ev.Outcome != model.PaymentSuccess && ev.Outcome != model.PaymentFailure {
		return nil, fmt.Errorf("confirm payment: unknown outcome %q: %w", ev.Outcome, model.ErrInvalidInput)
	}
	logger := zerolog.Ctx(ctx).With().Str("subscriber_id", ev.SubscriberID).Str("provider_reference", ev.ProviderReference).Logger()

	if _, err := s.store.FindBillingByTransactionRef(ctx, ev.ProviderReference); err == nil {
		logger.Debug().Msg("duplicate payment confirmation ignored")
		return s.lookup(ctx, ev.SubscriberID)
	} else if !errors.Is(err, model.ErrNotFound) {
		return nil, fmt.Errorf("confirm payment: %w", err)
	}

	sub, err := s.lookup(ctx, ev.SubscriberID)
	if err != nil {
		return nil, fmt.Errorf("confirm payment: %w", err)
	}

	if sub != nil {
		change, err := s.store.GetOpenPlanChange(ctx, sub.ID)
		switch {
		case err == nil && change.Status == model.PlanChangePendingPayment:
			if !sub.IsTrial && sub.State(s.opts.Now()) == model.StatePaidActive {
				return s.finalizePlanChange(ctx, sub, change, ev)
			}
			// The period the change was priced against is gone.
			if _, err := s.ExpirePlanChange(ctx, change.ID); err != nil && !errors.Is(err, model.ErrConflict) {
				return nil, fmt.Errorf("confirm payment: %w", err)
			}
		case err != nil && !errors.Is(err, model.ErrNotFound):
			return nil, fmt.Errorf("confirm payment: %w", err)
		}
	}

	if ev.Outcome == model.PaymentFailure {
		if sub == nil {
			logger.Warn().Msg("payment failure for subscriber without subscription")
			return nil, nil
		}
		entry := s.paymentEntry(sub.ID, model.BillingCharge, ev.Amount, ev, model.BillingFailed, "Payment failed")
		if err := s.store.AppendBilling(ctx, &entry); err != nil {
			return nil, fmt.Errorf("record failed payment for %s: %w", ev.SubscriberID, err)
		}
		logger.Info().Msg("payment failure recorded")
		return sub, nil
	}

	return s.activate(ctx, sub, ev)
}

func (s *LifecycleService) activate(ctx context.Context, sub *model.Subscription, ev model.PaymentConfirmation) (*model.Subscription, error) {
	now := s.opts.Now()
	tier, ok := s.catalog.ByPlan(ev.PlanType)
	if !ok {
		return nil, fmt.Errorf("activate %s: unknown plan %s: %w", ev.SubscriberID, ev.PlanType, model.ErrInvalidTier)
	}
	kind := model.SubscriberKind(tier.Kind)
	if sub != nil && sub.SubscriberKind != kind {
		return nil, fmt.Errorf("activate %s: plan %s is not sold to %s subscribers: %w", ev.SubscriberID, ev.PlanType, sub.SubscriberKind, model.ErrInvalidTier)
	}
	cycle := ev.BillingCycle
	if cycle == "" {
		cycle = model.CycleMonthly
	}
	if _, err := s.catalog.SubscriberTier(tier.ID, kind, cycle); err != nil {
		return nil, fmt.Errorf("activate %s: %w", ev.SubscriberID, err)
	}
	if sub != nil && sub.State(now) == model.StatePaidActive {
		return nil, fmt.Errorf("activate %s: already has an active paid subscription: %w", ev.SubscriberID, model.ErrConflict)
	}

	// An engine-priced checkout nets credit left on a previous period. A
	// provider-reported amount was already charged, so credit carries forward.
	amount := ev.Amount
	var applied int64
	if amount == 0 {
		amount, _ = tier.Price(cycle)
		if sub != nil {
			credit, err := s.store.OutstandingCredit(ctx, sub.ID)
			if err != nil {
				return nil, fmt.Errorf("activate %s: %w", ev.SubscriberID, err)
			}
			applied = min(credit, amount)
			amount -= applied
		}
	}

	next := &model.Subscription{
		ID:             platform.NewID(),
		SubscriberID:   ev.SubscriberID,
		SubscriberKind: kind,
		PlanType:       tier.PlanType,
		BillingCycle:   cycle,
		Status:         model.StatusActive,
		StartDate:      now,
		EndDate:        model.AdvancePeriod(now, cycle),
		AutoRenew:      true,
		TierID:         tier.ID,
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if sub != nil {
		next.ID = sub.ID
		next.Version = sub.Version + 1
		next.CreatedAt = sub.CreatedAt
	}

	entry := s.paymentEntry(next.ID, model.BillingCharge, amount, ev, model.BillingPaid,
		fmt.Sprintf("Subscription %s %s", tier.DisplayName, cycle))
	if entry.Currency == "" {
		entry.Currency = tier.Currency
	}
	entries := []model.BillingEntry{entry}
	if applied > 0 {
		entries = append(entries, creditAppliedEntry(next.ID, entry.Currency, applied, "Credit applied to checkout", now))
	}

	saved, err := s.store.ActivateSubscription(ctx, next, entries...)
	if err != nil {
		return nil, fmt.Errorf("activate subscription for %s: %w", ev.SubscriberID, err)
	}
	zerolog.Ctx(ctx).Info().Str("subscriber_id", ev.SubscriberID).Str("tier", tier.ID).Msg("paid subscription activated")
	metrics.SubscriptionTransitions.WithLabelValues("activate").Inc()
	return saved, nil
}

func (s *LifecycleService) finalizePlanChange(ctx context.Context, sub *model.Subscription, change *model.PlanChange, ev model.PaymentConfirmation) (*model.Subscription, error) {
	logger := zerolog.Ctx(ctx).With().Str("subscriber_id", sub.SubscriberID).Str("plan_change_id", change.ID).Logger()
	transition := model.PlanChangeTransition{
		ChangeID:          change.ID,
		From:              []model.PlanChangeStatus{model.PlanChangePendingPayment},
		ProviderReference: ev.ProviderReference,
	}

	if ev.Outcome == model.PaymentFailure {
		transition.To = model.PlanChangeFailed
		entry := s.paymentEntry(sub.ID, model.BillingProration, change.ProratedAmount, ev, model.BillingFailed,
			fmt.Sprintf("Proration %s -> %s failed", change.FromTierID, change.ToTierID))
		if entry.Currency == "" {
			entry.Currency = change.Currency
		}
		if _, err := s.store.ResolvePlanChange(ctx, transition, []model.BillingEntry{entry}); err != nil {
			return nil, fmt.Errorf("fail plan change %s: %w", change.ID, err)
		}
		logger.Info().Msg("plan change payment failed")
		metrics.PlanChanges.WithLabelValues(string(model.PlanChangeFailed)).Inc()
		return sub, nil
	}

	tier, ok := s.catalog.Get(change.ToTierID)
	if !ok {
		return nil, fmt.Errorf("finalize plan change %s: tier %s not in catalog: %w", change.ID, change.ToTierID, model.ErrInvalidTier)
	}
	transition.To = model.PlanChangeApplied
	entry := s.paymentEntry(sub.ID, model.BillingProration, change.ProratedAmount, ev, model.BillingPaid,
		fmt.Sprintf("Proration %s -> %s", change.FromTierID, change.ToTierID))
	if entry.Currency == "" {
		entry.Currency = change.Currency
	}
	entries := []model.BillingEntry{entry}

	// Credit reserved at request time is consumed now. A renewal in between
	// bumps the subscription version, so the balance read here cannot go stale
	// without the save below failing.
	if change.CreditApplied > 0 {
		credit, err := s.store.OutstandingCredit(ctx, sub.ID)
		if err != nil {
			return nil, fmt.Errorf("finalize plan change %s: %w", change.ID, err)
		}
		if applied := min(credit, change.CreditApplied); applied > 0 {
			entries = append(entries, creditAppliedEntry(sub.ID, entry.Currency, applied,
				fmt.Sprintf("Credit applied to proration %s -> %s", change.FromTierID, change.ToTierID), s.opts.Now()))
		}
	}

	saved, err := s.store.SaveSubscription(ctx, model.SubscriptionUpdate{
		Subscription:    applyPlanChange(sub, change, tier, s.opts.Now()),
		ExpectedVersion: sub.Version,
		Entries:         entries,
		Transition:      &transition,
	})
	if err != nil {
		return nil, fmt.Errorf("finalize plan change %s: %w", change.ID, err)
	}
	logger.Info().Int64("amount", change.ProratedAmount).Str("to_tier", tier.ID).Msg("plan change applied")
	metrics.PlanChanges.WithLabelValues(string(model.PlanChangeApplied)).Inc()
	return saved, nil
}

// ExpirePlanChange drops a pending_payment change whose confirmation never
// arrived.
func (s *LifecycleService) ExpirePlanChange(ctx context.Context, changeID string) (*model.PlanChange, error) {
	change, err := s.store.ResolvePlanChange(ctx, model.PlanChangeTransition{
		ChangeID: changeID,
		From:     []model.PlanChangeStatus{model.PlanChangePendingPayment},
		To:       model.PlanChangeExpired,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("expire plan change %s: %w", changeID, err)
	}
	zerolog.Ctx(ctx).Info().Str("plan_change_id", changeID).Msg("plan change expired")
	metrics.PlanChanges.WithLabelValues(string(model.PlanChangeExpired)).Inc()
	return change, nil
}

// GetPlanChange returns a plan change by id.
func (s *LifecycleService) GetPlanChange(ctx context.Context, id string) (*model.PlanChange, error) {
	change, err := readWithRetry(ctx, func() (*model.PlanChange, error) {
		return s.store.GetPlanChange(ctx, id)
	})
	if err != nil {
		return nil, fmt.Errorf("get plan change %s: %w", id, err)
	}
	return change, nil
}

func (s *LifecycleService) paymentEntry(subscriptionID string, kind model.BillingKind, amount int64, ev model.PaymentConfirmation, status model.BillingStatus, desc string) model.BillingEntry {
	return model.BillingEntry{
		ID:               platform.NewID(),
		SubscriptionID:   subscriptionID,
		Kind:             kind,
		Amount:           amount,
		Currency:         ev.Currency,
		Status:           status,
		PaymentMethodRef: ev.PaymentMethodRef,
		TransactionRef:   ev.ProviderReference,
		Description:      desc,
		CreatedAt:        s.opts.Now(),
	}
}
