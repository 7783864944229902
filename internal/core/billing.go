package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/edvin/entitlements/internal/model"
	"github.com/edvin/entitlements/internal/platform"
)

// BillingService exposes the append-only billing history.
type BillingService struct {
	store Store
	opts  Options
}

func NewBillingService(store Store, opts Options) *BillingService {
	return &BillingService{store: store, opts: opts.withDefaults()}
}

// Append adds an entry to a subscription's billing history. Credits must be
// negative and every other kind non-negative.
func (s *BillingService) Append(ctx context.Context, entry *model.BillingEntry) error {
	if entry.SubscriptionID == "" {
		return fmt.Errorf("append billing entry: subscription id required: %w", model.ErrInvalidInput)
	}
	switch entry.Kind {
	case model.BillingCreditNote:
		if entry.Amount > 0 {
			return fmt.Errorf("append billing entry: credit must be negative: %w", model.ErrInvalidInput)
		}
	case model.BillingCharge, model.BillingProration, model.BillingCreditApplied, model.BillingRefund:
		if entry.Amount < 0 {
			return fmt.Errorf("append billing entry: %s must not be negative: %w", entry.Kind, model.ErrInvalidInput)
		}
	default:
		return fmt.Errorf("append billing entry: unknown kind %q: %w", entry.Kind, model.ErrInvalidInput)
	}
	if entry.ID == "" {
		entry.ID = platform.NewID()
	}
	if entry.Currency == "" {
		entry.Currency = s.opts.Currency
	}
	entry.Currency = strings.ToLower(entry.Currency)
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.opts.Now()
	}
	if err := s.store.AppendBilling(ctx, entry); err != nil {
		return fmt.Errorf("append billing entry to %s: %w", entry.SubscriptionID, err)
	}
	return nil
}

// ListBySubscription pages through billing history oldest first.
func (s *BillingService) ListBySubscription(ctx context.Context, subscriptionID string, limit int, cursor string) ([]model.BillingEntry, bool, error) {
	entries, hasMore, err := s.store.ListBilling(ctx, subscriptionID, limit, cursor)
	if err != nil {
		return nil, false, fmt.Errorf("list billing for %s: %w", subscriptionID, err)
	}
	return entries, hasMore, nil
}

// ListBySubscriber pages through the billing history of a subscriber's subscription.
func (s *BillingService) ListBySubscriber(ctx context.Context, subscriberID string, limit int, cursor string) ([]model.BillingEntry, bool, error) {
	sub, err := readWithRetry(ctx, func() (*model.Subscription, error) {
		return s.store.GetSubscription(ctx, subscriberID)
	})
	if err != nil {
		return nil, false, fmt.Errorf("list billing for subscriber %s: %w", subscriberID, err)
	}
	return s.ListBySubscription(ctx, sub.ID, limit, cursor)
}

// OutstandingCredit is the credit not yet applied to a charge.
func (s *BillingService) OutstandingCredit(ctx context.Context, subscriptionID string) (int64, error) {
	credit, err := readWithRetry(ctx, func() (int64, error) {
		return s.store.OutstandingCredit(ctx, subscriptionID)
	})
	if err != nil {
		return 0, fmt.Errorf("outstanding credit for %s: %w", subscriptionID, err)
	}
	return credit, nil
}
