package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/edvin/entitlements/internal/catalog"
	"github.com/edvin/entitlements/internal/core"
	"github.com/edvin/entitlements/internal/model"
	"github.com/edvin/entitlements/internal/store/memory"
)

var t0 = time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

const day = 24 * time.Hour

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	svcs  *core.Services
	store *memory.Store
	clock *clock
}

// newTestEnv wires the services over an in-memory store with one live
// class session and one recorded course registered.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cat, err := catalog.Load("")
	require.NoError(t, err)

	c := &clock{now: t0}
	store := memory.New()
	ctx := context.Background()
	require.NoError(t, store.UpsertBenefitSession(ctx, &model.BenefitSession{SessionID: "live-1", Category: "live_class"}))
	require.NoError(t, store.UpsertBenefitSession(ctx, &model.BenefitSession{SessionID: "course-1", Category: "recorded_course"}))

	return &testEnv{
		svcs:  core.NewServices(store, cat, nil, core.Options{Now: c.Now}),
		store: store,
		clock: c,
	}
}

// activate buys plan for subscriberID with a successful checkout payment.
func (e *testEnv) activate(t *testing.T, subscriberID string, plan model.PlanType) *model.Subscription {
	t.Helper()
	sub, err := e.svcs.Lifecycle.ConfirmPayment(context.Background(), model.PaymentConfirmation{
		SubscriberID:      subscriberID,
		PlanType:          plan,
		BillingCycle:      model.CycleMonthly,
		Outcome:           model.PaymentSuccess,
		ProviderReference: "pay_" + subscriberID,
	})
	require.NoError(t, err)
	return sub
}

// newRequest creates a new HTTP request with an optional JSON body.
func newRequest(method, target string, body any) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	r := httptest.NewRequest(method, target, &buf)
	r.Header.Set("Content-Type", "application/json")
	return r
}

// withChiURLParam adds a chi URL parameter to the request context.
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	return withChiURLParams(r, map[string]string{key: value})
}

// withChiURLParams adds multiple chi URL parameters to the request context.
func withChiURLParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// decodeErrorResponse parses the JSON error response body into a map.
func decodeErrorResponse(rec *httptest.ResponseRecorder) map[string]string {
	var body map[string]string
	json.Unmarshal(rec.Body.Bytes(), &body)
	return body
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}
