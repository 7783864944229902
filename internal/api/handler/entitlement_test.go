package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edvin/entitlements/internal/model"
)

func canConsume(h *Entitlement, subscriberID, sessionID string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.CanConsume(rec, withChiURLParams(newRequest(http.MethodGet, "/", nil), map[string]string{
		"id":        subscriberID,
		"sessionID": sessionID,
	}))
	return rec
}

func TestEntitlementHandler_CanConsume(t *testing.T) {
	env := newTestEnv(t)
	h := NewEntitlement(env.svcs.Entitlement)

	rec := canConsume(h, "stu-1", "live-1")
	require.Equal(t, http.StatusOK, rec.Code)
	d := decode[model.Decision](t, rec)
	assert.False(t, d.Allowed)
	assert.Equal(t, model.ReasonNoSubscription, d.ReasonCode)

	env.activate(t, "stu-1", "basic")

	d = decode[model.Decision](t, canConsume(h, "stu-1", "course-1"))
	assert.True(t, d.Allowed)

	d = decode[model.Decision](t, canConsume(h, "stu-1", "live-1"))
	assert.False(t, d.Allowed)
	assert.Equal(t, model.ReasonFeatureNotIncluded, d.ReasonCode)
}

func TestEntitlementHandler_CanConsume_UnknownSession(t *testing.T) {
	env := newTestEnv(t)
	h := NewEntitlement(env.svcs.Entitlement)

	rec := canConsume(h, "stu-1", "ghost")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEntitlementHandler_BenefitSession(t *testing.T) {
	env := newTestEnv(t)
	h := NewEntitlement(env.svcs.Entitlement)

	rec := httptest.NewRecorder()
	h.PutBenefitSession(rec, withChiURLParam(newRequest(http.MethodPut, "/", map[string]string{"category": "analytics"}), "id", "report-1"))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.GetBenefitSession(rec, withChiURLParam(newRequest(http.MethodGet, "/", nil), "id", "report-1"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.BenefitSession{SessionID: "report-1", Category: "analytics"}, decode[model.BenefitSession](t, rec))

	rec = httptest.NewRecorder()
	h.PutBenefitSession(rec, withChiURLParam(newRequest(http.MethodPut, "/", map[string]string{}), "id", "report-1"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
