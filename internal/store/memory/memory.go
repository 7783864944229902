// Package memory is an in-process Store. A single mutex serializes every
// operation, which gives each method the same atomicity the Postgres store
// gets from conditional statements and transactions.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/edvin/entitlements/internal/model"
)

type Store struct {
	mu sync.RWMutex

	subscriptions map[string]*model.Subscription // by subscriber id
	subByID       map[string]string              // subscription id -> subscriber id
	changes       map[string]*model.PlanChange
	assignments   map[string][]model.TierAssignment // by actor id
	commissions   map[string]*model.CommissionRecord
	commissionKey map[string]string // actor|event -> id
	billing       []model.BillingEntry
	usage         []model.UsageRecord
	sessions      map[string]model.BenefitSession
}

func New() *Store {
	return &Store{
		subscriptions: make(map[string]*model.Subscription),
		subByID:       make(map[string]string),
		changes:       make(map[string]*model.PlanChange),
		assignments:   make(map[string][]model.TierAssignment),
		commissions:   make(map[string]*model.CommissionRecord),
		commissionKey: make(map[string]string),
		sessions:      make(map[string]model.BenefitSession),
	}
}

func (s *Store) Ping(context.Context) error { return nil }

func copySub(sub *model.Subscription) *model.Subscription {
	c := *sub
	return &c
}

// ---------- Subscriptions ----------

func (s *Store) GetSubscription(_ context.Context, subscriberID string) (*model.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.subscriptions[subscriberID]
	if !ok {
		return nil, fmt.Errorf("subscription for %s: %w", subscriberID, model.ErrNotFound)
	}
	return copySub(sub), nil
}

func (s *Store) GetSubscriptionByID(_ context.Context, id string) (*model.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.byID(id)
	if !ok {
		return nil, fmt.Errorf("subscription %s: %w", id, model.ErrNotFound)
	}
	return copySub(sub), nil
}

func (s *Store) byID(id string) (*model.Subscription, bool) {
	subscriberID, ok := s.subByID[id]
	if !ok {
		return nil, false
	}
	sub, ok := s.subscriptions[subscriberID]
	return sub, ok
}

func (s *Store) put(sub *model.Subscription) {
	if old, ok := s.subscriptions[sub.SubscriberID]; ok && old.ID != sub.ID {
		delete(s.subByID, old.ID)
	}
	s.subscriptions[sub.SubscriberID] = copySub(sub)
	s.subByID[sub.ID] = sub.SubscriberID
}

func (s *Store) StartTrial(_ context.Context, sub *model.Subscription) (*model.Subscription, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.subscriptions[sub.SubscriberID]; ok {
		if existing.IsTrial || existing.Status == model.StatusActive {
			return copySub(existing), false, nil
		}
		// Keep the row identity of the replaced subscription.
		next := copySub(sub)
		next.ID = existing.ID
		next.CreatedAt = existing.CreatedAt
		next.Version = existing.Version + 1
		s.put(next)
		return copySub(next), true, nil
	}
	s.put(sub)
	return copySub(sub), true, nil
}

func (s *Store) ConsumeQuota(_ context.Context, subscriptionID string, now time.Time) (*model.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.byID(subscriptionID)
	switch {
	case !ok:
		return nil, fmt.Errorf("subscription %s: %w", subscriptionID, model.ErrNotFound)
	case sub.RemainingQuota <= 0:
		return nil, fmt.Errorf("subscription %s: %w", subscriptionID, model.ErrQuotaExhausted)
	case !sub.IsTrial || sub.Status != model.StatusActive || !now.Before(sub.EndDate):
		return nil, fmt.Errorf("subscription %s is not an active trial: %w", subscriptionID, model.ErrNotSubscribed)
	}

	sub.RemainingQuota--
	if sub.RemainingQuota == 0 {
		sub.Status = model.StatusCancelled
	}
	sub.Version++
	sub.UpdatedAt = now
	return copySub(sub), nil
}

func (s *Store) CancelSubscription(_ context.Context, subscriberID string, now time.Time) (*model.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subscriptions[subscriberID]
	if !ok {
		return nil, fmt.Errorf("subscription for %s: %w", subscriberID, model.ErrNotFound)
	}
	if sub.Status != model.StatusActive {
		return nil, fmt.Errorf("subscription for %s is %s: %w", subscriberID, sub.Status, model.ErrConflict)
	}
	sub.Status = model.StatusCancelled
	sub.AutoRenew = false
	sub.Version++
	sub.UpdatedAt = now
	s.expireScheduled(sub.ID, now)
	return copySub(sub), nil
}

func (s *Store) ExpireSubscription(_ context.Context, subscriberID string, now time.Time) (*model.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subscriptions[subscriberID]
	if !ok {
		return nil, fmt.Errorf("subscription for %s: %w", subscriberID, model.ErrNotFound)
	}
	if sub.Status == model.StatusExpired || now.Before(sub.EndDate) {
		return nil, fmt.Errorf("subscription for %s cannot expire yet: %w", subscriberID, model.ErrConflict)
	}
	sub.Status = model.StatusExpired
	sub.AutoRenew = false
	sub.Version++
	sub.UpdatedAt = now
	s.expireScheduled(sub.ID, now)
	return copySub(sub), nil
}

func (s *Store) ListLapsed(_ context.Context, now time.Time, limit int) ([]model.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Subscription
	for _, sub := range s.subscriptions {
		if sub.Status == model.StatusExpired || now.Before(sub.EndDate) {
			continue
		}
		if sub.IsTrial || sub.Status == model.StatusCancelled || !sub.AutoRenew {
			out = append(out, *sub)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].EndDate.Equal(out[j].EndDate) {
			return out[i].EndDate.Before(out[j].EndDate)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) expireScheduled(subscriptionID string, now time.Time) {
	for _, c := range s.changes {
		if c.SubscriptionID == subscriptionID && c.Status == model.PlanChangeScheduled {
			c.Status = model.PlanChangeExpired
			c.UpdatedAt = now
		}
	}
}

func (s *Store) ActivateSubscription(_ context.Context, sub *model.Subscription, entries ...model.BillingEntry) (*model.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.subscriptions[sub.SubscriberID]; ok {
		if !existing.IsTrial && existing.Status == model.StatusActive && sub.StartDate.Before(existing.EndDate) {
			return nil, fmt.Errorf("subscription for %s is paid and active: %w", sub.SubscriberID, model.ErrConflict)
		}
		sub = copySub(sub)
		sub.ID = existing.ID
		sub.CreatedAt = existing.CreatedAt
		sub.Version = existing.Version + 1
	}
	for i := range entries {
		entries[i].SubscriptionID = sub.ID
	}
	if err := s.appendEntries(entries...); err != nil {
		return nil, err
	}
	s.put(sub)
	return copySub(sub), nil
}

func (s *Store) SaveSubscription(_ context.Context, u model.SubscriptionUpdate) (*model.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.byID(u.Subscription.ID)
	if !ok {
		return nil, fmt.Errorf("subscription %s: %w", u.Subscription.ID, model.ErrNotFound)
	}
	if cur.Version != u.ExpectedVersion {
		return nil, fmt.Errorf("subscription %s changed concurrently: %w", cur.ID, model.ErrConflict)
	}

	var change *model.PlanChange
	if u.Transition != nil {
		c, err := s.checkTransition(*u.Transition)
		if err != nil {
			return nil, err
		}
		change = c
	}
	if u.InsertChange != nil {
		if u.InsertChange.Status.Open() && s.openChange(u.InsertChange.SubscriptionID) != nil {
			return nil, fmt.Errorf("subscription %s already has an open plan change: %w", u.InsertChange.SubscriptionID, model.ErrConflict)
		}
	}

	if err := s.appendEntries(u.Entries...); err != nil {
		return nil, err
	}

	now := u.Subscription.UpdatedAt
	if change != nil {
		change.Status = u.Transition.To
		if u.Transition.ProviderReference != "" {
			change.ProviderReference = u.Transition.ProviderReference
		}
		change.UpdatedAt = now
	}
	if u.InsertChange != nil {
		c := *u.InsertChange
		s.changes[c.ID] = &c
	}
	s.put(u.Subscription)
	return copySub(u.Subscription), nil
}

// ---------- Plan changes ----------

func (s *Store) openChange(subscriptionID string) *model.PlanChange {
	for _, c := range s.changes {
		if c.SubscriptionID == subscriptionID && c.Status.Open() {
			return c
		}
	}
	return nil
}

func (s *Store) checkTransition(t model.PlanChangeTransition) (*model.PlanChange, error) {
	c, ok := s.changes[t.ChangeID]
	if !ok {
		return nil, fmt.Errorf("plan change %s: %w", t.ChangeID, model.ErrNotFound)
	}
	if !slices.Contains(t.From, c.Status) {
		return nil, fmt.Errorf("plan change %s is %s: %w", t.ChangeID, c.Status, model.ErrConflict)
	}
	return c, nil
}

func (s *Store) CreatePlanChange(_ context.Context, change *model.PlanChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if change.Status.Open() && s.openChange(change.SubscriptionID) != nil {
		return fmt.Errorf("subscription %s already has an open plan change: %w", change.SubscriptionID, model.ErrConflict)
	}
	c := *change
	s.changes[c.ID] = &c
	return nil
}

func (s *Store) GetPlanChange(_ context.Context, id string) (*model.PlanChange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.changes[id]
	if !ok {
		return nil, fmt.Errorf("plan change %s: %w", id, model.ErrNotFound)
	}
	out := *c
	return &out, nil
}

func (s *Store) GetOpenPlanChange(_ context.Context, subscriptionID string) (*model.PlanChange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c := s.openChange(subscriptionID)
	if c == nil {
		return nil, fmt.Errorf("open plan change for %s: %w", subscriptionID, model.ErrNotFound)
	}
	out := *c
	return &out, nil
}

func (s *Store) ResolvePlanChange(_ context.Context, t model.PlanChangeTransition, entries []model.BillingEntry) (*model.PlanChange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.checkTransition(t)
	if err != nil {
		return nil, err
	}
	if err := s.appendEntries(entries...); err != nil {
		return nil, err
	}
	c.Status = t.To
	if t.ProviderReference != "" {
		c.ProviderReference = t.ProviderReference
	}
	c.UpdatedAt = time.Now().UTC()
	out := *c
	return &out, nil
}

// ---------- Tier assignments ----------

func (s *Store) ListAssignments(_ context.Context, actorID string) ([]model.TierAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.TierAssignment, 0, len(s.assignments[actorID]))
	for _, a := range s.assignments[actorID] {
		if a.EndDate != nil {
			end := *a.EndDate
			a.EndDate = &end
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *Store) AssignTier(_ context.Context, a *model.TierAssignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	timeline := s.assignments[a.ActorID]
	for i := range timeline {
		open := &timeline[i]
		if !open.Open() {
			continue
		}
		if !a.StartDate.After(open.StartDate) {
			return fmt.Errorf("start %s not after open assignment start %s: %w",
				a.StartDate.Format(time.RFC3339), open.StartDate.Format(time.RFC3339), model.ErrConflict)
		}
		end := a.StartDate
		open.EndDate = &end
	}
	timeline = append(timeline, *a)
	sort.SliceStable(timeline, func(i, j int) bool { return timeline[i].StartDate.Before(timeline[j].StartDate) })
	s.assignments[a.ActorID] = timeline
	return nil
}

// ---------- Commissions ----------

func commissionKey(actorID, eventID string) string { return actorID + "|" + eventID }

func (s *Store) UpsertCommission(_ context.Context, rec *model.CommissionRecord) (*model.CommissionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := commissionKey(rec.ActorID, rec.SourceEventID)
	if id, ok := s.commissionKey[key]; ok {
		existing := s.commissions[id]
		if existing.Status != model.CommissionPending {
			return nil, fmt.Errorf("commission for %s is %s: %w", rec.SourceEventID, existing.Status, model.ErrConflict)
		}
		existing.TierID = rec.TierID
		existing.GrossAmount = rec.GrossAmount
		existing.Currency = rec.Currency
		existing.CommissionRate = rec.CommissionRate
		existing.CommissionAmount = rec.CommissionAmount
		existing.EventTime = rec.EventTime
		existing.UpdatedAt = rec.UpdatedAt
		out := *existing
		return &out, nil
	}

	c := *rec
	s.commissions[c.ID] = &c
	s.commissionKey[key] = c.ID
	out := c
	return &out, nil
}

func (s *Store) GetCommission(_ context.Context, id string) (*model.CommissionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.commissions[id]
	if !ok {
		return nil, fmt.Errorf("commission %s: %w", id, model.ErrNotFound)
	}
	out := *c
	return &out, nil
}

func (s *Store) ListCommissions(_ context.Context, actorID string, limit int, cursor string) ([]model.CommissionRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var all []model.CommissionRecord
	for _, c := range s.commissions {
		if c.ActorID == actorID {
			all = append(all, *c)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return page(all, func(c model.CommissionRecord) string { return c.ID }, limit, cursor)
}

func (s *Store) UpdateCommissionStatus(_ context.Context, id string, from []model.CommissionStatus, to model.CommissionStatus, now time.Time) (*model.CommissionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.commissions[id]
	if !ok {
		return nil, fmt.Errorf("commission %s: %w", id, model.ErrNotFound)
	}
	if !slices.Contains(from, c.Status) {
		return nil, fmt.Errorf("commission %s is %s: %w", id, c.Status, model.ErrConflict)
	}
	c.Status = to
	c.UpdatedAt = now
	out := *c
	return &out, nil
}

// ---------- Billing ----------

func (s *Store) AppendBilling(_ context.Context, entry *model.BillingEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendEntries(*entry)
}

// appendEntries enforces that a transaction reference appears at most once.
func (s *Store) appendEntries(entries ...model.BillingEntry) error {
	for i, entry := range entries {
		if entry.TransactionRef == "" {
			continue
		}
		dup := slices.ContainsFunc(s.billing, func(e model.BillingEntry) bool { return e.TransactionRef == entry.TransactionRef })
		dup = dup || slices.ContainsFunc(entries[:i], func(e model.BillingEntry) bool { return e.TransactionRef == entry.TransactionRef })
		if dup {
			return fmt.Errorf("billing entry with ref %s: %w", entry.TransactionRef, model.ErrConflict)
		}
	}
	s.billing = append(s.billing, entries...)
	return nil
}

// ListBilling returns entries oldest first; the cursor is the id of the last
// entry of the previous page.
func (s *Store) ListBilling(_ context.Context, subscriptionID string, limit int, cursor string) ([]model.BillingEntry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var all []model.BillingEntry
	for _, e := range s.billing {
		if e.SubscriptionID == subscriptionID {
			all = append(all, e)
		}
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })
	return pageAfter(all, func(e model.BillingEntry) string { return e.ID }, limit, cursor)
}

func (s *Store) OutstandingCredit(_ context.Context, subscriptionID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var entries []model.BillingEntry
	for _, e := range s.billing {
		if e.SubscriptionID == subscriptionID {
			entries = append(entries, e)
		}
	}
	return model.OutstandingCredit(entries), nil
}

func (s *Store) FindBillingByTransactionRef(_ context.Context, ref string) (*model.BillingEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.billing {
		if e.TransactionRef == ref {
			out := e
			return &out, nil
		}
	}
	return nil, fmt.Errorf("billing entry with ref %s: %w", ref, model.ErrNotFound)
}

// ---------- Usage ----------

func (s *Store) AppendUsage(_ context.Context, rec *model.UsageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.usage = append(s.usage, *rec)
	return nil
}

func (s *Store) ListUsage(_ context.Context, subscriberID string, limit int, cursor string) ([]model.UsageRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var all []model.UsageRecord
	for _, r := range s.usage {
		if r.SubscriberID == subscriberID {
			all = append(all, r)
		}
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })
	return pageAfter(all, func(r model.UsageRecord) string { return r.ID }, limit, cursor)
}

// ---------- Benefit sessions ----------

func (s *Store) GetBenefitSession(_ context.Context, sessionID string) (*model.BenefitSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bs, ok := s.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("benefit session %s: %w", sessionID, model.ErrNotFound)
	}
	return &bs, nil
}

func (s *Store) UpsertBenefitSession(_ context.Context, bs *model.BenefitSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[bs.SessionID] = *bs
	return nil
}

// ---------- Pagination ----------

// page pages over items sorted by key, returning those with key > cursor.
func page[T any](items []T, key func(T) string, limit int, cursor string) ([]T, bool, error) {
	start := 0
	if cursor != "" {
		start = sort.Search(len(items), func(i int) bool { return key(items[i]) > cursor })
	}
	return cut(items[start:], limit)
}

// pageAfter pages over items in their given order, starting after the item
// whose key equals cursor. An unknown cursor yields an empty page.
func pageAfter[T any](items []T, key func(T) string, limit int, cursor string) ([]T, bool, error) {
	start := 0
	if cursor != "" {
		start = len(items)
		for i, it := range items {
			if key(it) == cursor {
				start = i + 1
				break
			}
		}
	}
	return cut(items[start:], limit)
}

func cut[T any](items []T, limit int) ([]T, bool, error) {
	if limit <= 0 || len(items) <= limit {
		return items, false, nil
	}
	return items[:limit], true, nil
}
