package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/edvin/entitlements/internal/api/request"
	"github.com/edvin/entitlements/internal/api/response"
	"github.com/edvin/entitlements/internal/core"
	"github.com/edvin/entitlements/internal/model"
)

type Entitlement struct {
	svc *core.EntitlementService
}

func NewEntitlement(svc *core.EntitlementService) *Entitlement {
	return &Entitlement{svc: svc}
}

// CanConsume answers 200 for both grants and denials; the decision carries
// the reason code.
//
//	@Summary		Check access to a benefit session
//	@Tags			Entitlements
//	@Param			id path string true "Subscriber ID"
//	@Param			sessionID path string true "Benefit session ID"
//	@Success		200 {object} model.Decision
//	@Failure		400 {object} response.ErrorBody
//	@Failure		500 {object} response.ErrorBody
//	@Router			/subscribers/{id}/entitlements/{sessionID} [get]
func (h *Entitlement) CanConsume(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	sessionID, err := request.RequireID(chi.URLParam(r, "sessionID"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	d, err := h.svc.CanConsume(r.Context(), id, sessionID)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, d)
}

// GetBenefitSession godoc
//
//	@Summary		Get a benefit session
//	@Tags			Benefit Sessions
//	@Param			id path string true "Benefit session ID"
//	@Success		200 {object} model.BenefitSession
//	@Failure		400 {object} response.ErrorBody
//	@Failure		404 {object} response.ErrorBody
//	@Failure		500 {object} response.ErrorBody
//	@Router			/benefit-sessions/{id} [get]
func (h *Entitlement) GetBenefitSession(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	session, err := h.svc.GetBenefitSession(r.Context(), id)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, session)
}

// PutBenefitSession godoc
//
//	@Summary		Register a benefit session category
//	@Tags			Benefit Sessions
//	@Param			id path string true "Benefit session ID"
//	@Param			body body request.BenefitSession true "Session category"
//	@Success		200 {object} model.BenefitSession
//	@Failure		400 {object} response.ErrorBody
//	@Failure		500 {object} response.ErrorBody
//	@Router			/benefit-sessions/{id} [put]
func (h *Entitlement) PutBenefitSession(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req request.BenefitSession
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	session := &model.BenefitSession{SessionID: id, Category: req.Category}
	if err := h.svc.PutBenefitSession(r.Context(), session); err != nil {
		response.WriteServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, session)
}
