package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/edvin/entitlements/internal/api/request"
	"github.com/edvin/entitlements/internal/api/response"
	"github.com/edvin/entitlements/internal/core"
	"github.com/edvin/entitlements/internal/model"
)

type PlanChange struct {
	svc *core.PlanChangeService
}

func NewPlanChange(svc *core.PlanChangeService) *PlanChange {
	return &PlanChange{svc: svc}
}

// Get godoc
//
//	@Summary		Get a plan change
//	@Tags			Plan Changes
//	@Param			id path string true "Plan change ID"
//	@Success		200 {object} model.PlanChange
//	@Failure		400 {object} response.ErrorBody
//	@Failure		404 {object} response.ErrorBody
//	@Failure		500 {object} response.ErrorBody
//	@Router			/plan-changes/{id} [get]
func (h *PlanChange) Get(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	change, err := h.svc.Get(r.Context(), id)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, change)
}

// Expire godoc
//
//	@Summary		Expire a pending plan change
//	@Tags			Plan Changes
//	@Param			id path string true "Plan change ID"
//	@Success		200 {object} model.PlanChange
//	@Failure		400 {object} response.ErrorBody
//	@Failure		404 {object} response.ErrorBody
//	@Failure		409 {object} response.ErrorBody
//	@Failure		500 {object} response.ErrorBody
//	@Router			/plan-changes/{id}/expire [post]
func (h *PlanChange) Expire(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	change, err := h.svc.ExpirePlanChange(r.Context(), id)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, change)
}

// PaymentConfirmation receives the payment collaborator's confirmation.
// Signature verification happens upstream.
//
//	@Summary		Receive a payment confirmation
//	@Description	Served at the server root, outside the /api/v1 base path.
//	@Tags			Webhooks
//	@Param			body body request.PaymentConfirmation true "Payment confirmation"
//	@Success		200 {object} map[string]any
//	@Failure		400 {object} response.ErrorBody
//	@Failure		409 {object} response.ErrorBody
//	@Failure		500 {object} response.ErrorBody
//	@Router			/webhooks/payment-confirmation [post]
func (h *PlanChange) PaymentConfirmation(w http.ResponseWriter, r *http.Request) {
	var req request.PaymentConfirmation
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	sub, err := h.svc.HandlePaymentConfirmation(r.Context(), model.PaymentConfirmation{
		SubscriberID:      req.SubscriberID,
		PlanType:          req.PlanType,
		BillingCycle:      req.BillingCycle,
		Amount:            req.Amount,
		Currency:          req.Currency,
		Outcome:           req.Outcome,
		ProviderReference: req.ProviderReference,
		PaymentMethodRef:  req.PaymentMethodRef,
	})
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string]any{"received": true, "subscription": sub})
}
