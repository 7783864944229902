package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	temporalclient "go.temporal.io/sdk/client"
	temporalmocks "go.temporal.io/sdk/mocks"

	"github.com/edvin/entitlements/internal/catalog"
	"github.com/edvin/entitlements/internal/core"
	"github.com/edvin/entitlements/internal/model"
	"github.com/edvin/entitlements/internal/store/memory"
)

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("connection refused") }

func newTestServer(t *testing.T, pinger Pinger, tc temporalclient.Client) *Server {
	t.Helper()
	cat, err := catalog.Load("")
	require.NoError(t, err)
	store := memory.New()
	require.NoError(t, store.UpsertBenefitSession(context.Background(), &model.BenefitSession{SessionID: "live-1", Category: "live_class"}))
	if pinger == nil {
		pinger = store
	}
	return NewServer(zerolog.Nop(), core.NewServices(store, cat, nil, core.Options{}), pinger, tc)
}

func serve(s *Server, method, target, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, target, nil)
	} else {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	}
	s.ServeHTTP(rec, r)
	return rec
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t, nil, nil)
	rec := serve(s, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestReadyz(t *testing.T) {
	s := newTestServer(t, nil, nil)
	rec := serve(s, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"store":"ok"}`, rec.Body.String())
}

func TestReadyz_StoreDown(t *testing.T) {
	s := newTestServer(t, failingPinger{}, nil)
	rec := serve(s, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var checks map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &checks))
	assert.Equal(t, "connection refused", checks["store"])
}

func TestReadyz_Temporal(t *testing.T) {
	tc := &temporalmocks.Client{}
	tc.On("CheckHealth", mock.Anything, mock.Anything).Return(&temporalclient.CheckHealthResponse{}, nil)

	s := newTestServer(t, nil, tc)
	rec := serve(s, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"store":"ok","temporal":"ok"}`, rec.Body.String())
	tc.AssertExpectations(t)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, nil, nil)
	serve(s, http.MethodGet, "/healthz", "")
	rec := serve(s, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "engine_http_requests_total")
}

// TestTrialScenario drives a trial from start to the upgrade prompt through
// the routes.
func TestTrialScenario(t *testing.T) {
	s := newTestServer(t, nil, nil)

	rec := serve(s, http.MethodGet, "/api/v1/subscribers/stu-1/trial-eligibility", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"eligible":true`)

	rec = serve(s, http.MethodPost, "/api/v1/subscribers/stu-1/trial", `{"kind":"student"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = serve(s, http.MethodGet, "/api/v1/subscribers/stu-1/entitlements/live-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"allowed":true`)

	rec = serve(s, http.MethodPost, "/api/v1/attendance", `{"subscriber_id":"stu-1","benefit_session_id":"live-1","attended":true}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = serve(s, http.MethodGet, "/api/v1/subscribers/stu-1/entitlements/live-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"reason_code":"TRIAL_EXHAUSTED"`)

	rec = serve(s, http.MethodPost, "/api/v1/subscribers/stu-1/trial/consume", "")
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"upgrade_required"`)

	rec = serve(s, http.MethodPost, "/api/v1/subscribers/stu-1/trial", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"created":false`)
}

func TestRoutes(t *testing.T) {
	s := newTestServer(t, nil, nil)
	tests := []struct {
		method string
		path   string
		body   string
		want   int
	}{
		{http.MethodGet, "/api/v1/tiers", "", http.StatusOK},
		{http.MethodGet, "/api/v1/actors/act-1/tier", "", http.StatusOK},
		{http.MethodGet, "/api/v1/actors/act-1/tier-assignments", "", http.StatusOK},
		{http.MethodGet, "/api/v1/actors/act-1/commissions", "", http.StatusOK},
		{http.MethodGet, "/api/v1/subscribers/stu-1/subscription", "", http.StatusNotFound},
		{http.MethodGet, "/api/v1/subscribers/stu-1/billing-history", "", http.StatusNotFound},
		{http.MethodGet, "/api/v1/subscribers/stu-1/attendance", "", http.StatusOK},
		{http.MethodPost, "/api/v1/subscribers/stu-1/cancel", "", http.StatusPaymentRequired},
		{http.MethodPost, "/api/v1/subscribers/stu-1/renew", `{"transaction_ref":"r1"}`, http.StatusPaymentRequired},
		{http.MethodPost, "/api/v1/subscribers/stu-1/expire", "", http.StatusNotFound},
		{http.MethodPost, "/api/v1/subscribers/stu-1/upgrade", `{"tier_id":"student-premium"}`, http.StatusPaymentRequired},
		{http.MethodGet, "/api/v1/plan-changes/none", "", http.StatusNotFound},
		{http.MethodPost, "/api/v1/plan-changes/none/expire", "", http.StatusNotFound},
		{http.MethodPut, "/api/v1/benefit-sessions/course-9", `{"category":"recorded_course"}`, http.StatusOK},
		{http.MethodGet, "/api/v1/benefit-sessions/course-9", "", http.StatusOK},
		{http.MethodGet, "/api/v1/commissions/none", "", http.StatusNotFound},
		{http.MethodPost, "/api/v1/commissions/none/paid", "", http.StatusNotFound},
		{http.MethodPost, "/api/v1/commissions/none/reverse", "", http.StatusNotFound},
		{http.MethodPost, "/webhooks/payment-confirmation", `{"subscriber_id":"stu-2","plan_type":"basic","outcome":"failure","provider_reference":"p1"}`, http.StatusOK},
		{http.MethodGet, "/api/v1/unknown", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := serve(s, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}
