package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/edvin/entitlements/internal/api/request"
	"github.com/edvin/entitlements/internal/api/response"
	"github.com/edvin/entitlements/internal/core"
	"github.com/edvin/entitlements/internal/model"
)

type Subscription struct {
	lifecycle  *core.LifecycleService
	planChange *core.PlanChangeService
}

func NewSubscription(lifecycle *core.LifecycleService, planChange *core.PlanChangeService) *Subscription {
	return &Subscription{lifecycle: lifecycle, planChange: planChange}
}

// StartTrialResponse tells a caller whether its call created the trial.
type StartTrialResponse struct {
	Subscription *model.Subscription `json:"subscription"`
	Created      bool                `json:"created"`
}

// Get godoc
//
//	@Summary		Get a subscriber's subscription
//	@Tags			Subscriptions
//	@Param			id path string true "Subscriber ID"
//	@Success		200 {object} model.Subscription
//	@Failure		400 {object} response.ErrorBody
//	@Failure		404 {object} response.ErrorBody
//	@Failure		500 {object} response.ErrorBody
//	@Router			/subscribers/{id}/subscription [get]
func (h *Subscription) Get(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	sub, err := h.lifecycle.Get(r.Context(), id)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, sub)
}

// TrialEligibility godoc
//
//	@Summary		Check trial eligibility
//	@Tags			Subscriptions
//	@Param			id path string true "Subscriber ID"
//	@Success		200 {object} model.TrialEligibility
//	@Failure		400 {object} response.ErrorBody
//	@Failure		500 {object} response.ErrorBody
//	@Router			/subscribers/{id}/trial-eligibility [get]
func (h *Subscription) TrialEligibility(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	elig, err := h.lifecycle.GetTrialEligibility(r.Context(), id)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, elig)
}

// StartTrial is idempotent for callers: a repeated or refused start answers
// 200 with the subscription already on record.
//
//	@Summary		Start a free trial
//	@Tags			Subscriptions
//	@Param			id path string true "Subscriber ID"
//	@Param			body body request.StartTrial false "Subscriber kind"
//	@Success		201 {object} StartTrialResponse
//	@Success		200 {object} StartTrialResponse
//	@Failure		400 {object} response.ErrorBody
//	@Failure		500 {object} response.ErrorBody
//	@Router			/subscribers/{id}/trial [post]
func (h *Subscription) StartTrial(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req request.StartTrial
	if err := request.DecodeOptional(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Kind == "" {
		req.Kind = model.SubscriberStudent
	}

	sub, created, err := h.lifecycle.StartTrial(r.Context(), id, req.Kind)
	if errors.Is(err, model.ErrConflict) {
		if sub == nil {
			if sub, err = h.lifecycle.Get(r.Context(), id); err != nil {
				response.WriteServiceError(w, err)
				return
			}
		}
		response.WriteJSON(w, http.StatusOK, StartTrialResponse{Subscription: sub})
		return
	}
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	response.WriteJSON(w, status, StartTrialResponse{Subscription: sub, Created: created})
}

// Upgrade godoc
//
//	@Summary		Change tier or billing cycle
//	@Tags			Subscriptions
//	@Param			id path string true "Subscriber ID"
//	@Param			body body request.Upgrade true "Target plan"
//	@Success		200 {object} core.UpgradeResult
//	@Success		202 {object} core.UpgradeResult
//	@Failure		400 {object} response.ErrorBody
//	@Failure		404 {object} response.ErrorBody
//	@Failure		409 {object} response.ErrorBody
//	@Failure		500 {object} response.ErrorBody
//	@Router			/subscribers/{id}/upgrade [post]
func (h *Subscription) Upgrade(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req request.Upgrade
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	up := core.UpgradeRequest{
		SubscriberID: id,
		TierID:       req.TierID,
		BillingCycle: req.BillingCycle,
		Immediate:    true,
	}
	if req.Immediate != nil {
		up.Immediate = *req.Immediate
	}
	if req.EffectiveDate != nil {
		up.EffectiveDate = req.EffectiveDate.UTC()
	}

	res, err := h.planChange.RequestUpgrade(r.Context(), up)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}

	status := http.StatusOK
	if res.PaymentRequired {
		status = http.StatusAccepted
	}
	response.WriteJSON(w, status, res)
}

// Cancel godoc
//
//	@Summary		Cancel auto-renewal
//	@Tags			Subscriptions
//	@Param			id path string true "Subscriber ID"
//	@Success		200 {object} model.Subscription
//	@Failure		400 {object} response.ErrorBody
//	@Failure		404 {object} response.ErrorBody
//	@Failure		409 {object} response.ErrorBody
//	@Failure		500 {object} response.ErrorBody
//	@Router			/subscribers/{id}/cancel [post]
func (h *Subscription) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	sub, err := h.lifecycle.Cancel(r.Context(), id)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, sub)
}

// Renew godoc
//
//	@Summary		Renew a paid subscription
//	@Tags			Subscriptions
//	@Param			id path string true "Subscriber ID"
//	@Param			body body request.Renew true "Renewal payment"
//	@Success		200 {object} model.Subscription
//	@Failure		400 {object} response.ErrorBody
//	@Failure		404 {object} response.ErrorBody
//	@Failure		409 {object} response.ErrorBody
//	@Failure		500 {object} response.ErrorBody
//	@Router			/subscribers/{id}/renew [post]
func (h *Subscription) Renew(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req request.Renew
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	sub, err := h.lifecycle.Renew(r.Context(), id, req.TransactionRef)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, sub)
}

// Expire godoc
//
//	@Summary		Expire an ended subscription
//	@Tags			Subscriptions
//	@Param			id path string true "Subscriber ID"
//	@Success		200 {object} model.Subscription
//	@Failure		400 {object} response.ErrorBody
//	@Failure		404 {object} response.ErrorBody
//	@Failure		409 {object} response.ErrorBody
//	@Failure		500 {object} response.ErrorBody
//	@Router			/subscribers/{id}/expire [post]
func (h *Subscription) Expire(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	sub, err := h.lifecycle.Expire(r.Context(), id)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, sub)
}
