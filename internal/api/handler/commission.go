package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/edvin/entitlements/internal/api/request"
	"github.com/edvin/entitlements/internal/api/response"
	"github.com/edvin/entitlements/internal/core"
	"github.com/edvin/entitlements/internal/model"
)

type Commission struct {
	svc *core.CommissionService
}

func NewCommission(svc *core.CommissionService) *Commission {
	return &Commission{svc: svc}
}

// Compute takes a session completion event. Replaying the event returns the
// record computed the first time.
//
//	@Summary		Compute commission for a completed session
//	@Tags			Commissions
//	@Param			body body request.SessionCompleted true "Session completion event"
//	@Success		200 {object} model.CommissionRecord
//	@Failure		400 {object} response.ErrorBody
//	@Failure		409 {object} response.ErrorBody
//	@Failure		500 {object} response.ErrorBody
//	@Router			/commissions [post]
func (h *Commission) Compute(w http.ResponseWriter, r *http.Request) {
	var req request.SessionCompleted
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := h.svc.ComputeCommission(r.Context(), model.RevenueEvent{
		ActorID:       req.ActorID,
		SourceEventID: req.SourceEventID,
		GrossAmount:   req.GrossAmount,
		Currency:      req.Currency,
		EventTime:     req.EventTime.UTC(),
	})
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, rec)
}

// Get godoc
//
//	@Summary		Get a commission record
//	@Tags			Commissions
//	@Param			id path string true "Commission ID"
//	@Success		200 {object} model.CommissionRecord
//	@Failure		400 {object} response.ErrorBody
//	@Failure		404 {object} response.ErrorBody
//	@Failure		500 {object} response.ErrorBody
//	@Router			/commissions/{id} [get]
func (h *Commission) Get(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := h.svc.Get(r.Context(), id)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, rec)
}

// ListByActor godoc
//
//	@Summary		List an actor's commissions
//	@Tags			Commissions
//	@Param			id path string true "Actor ID"
//	@Param			limit query int false "Page size" default(50)
//	@Param			cursor query string false "Pagination cursor"
//	@Success		200 {object} response.PaginatedResponse{items=[]model.CommissionRecord}
//	@Failure		400 {object} response.ErrorBody
//	@Failure		500 {object} response.ErrorBody
//	@Router			/actors/{id}/commissions [get]
func (h *Commission) ListByActor(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	pg, err := request.ParsePagination(r)
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	recs, hasMore, err := h.svc.ListByActor(r.Context(), id, pg.Limit, pg.Cursor)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}

	next := request.NextCursor(recs, hasMore, func(e model.CommissionRecord) string { return e.ID })
	response.WritePaginated(w, http.StatusOK, recs, next, hasMore)
}

// MarkPaid godoc
//
//	@Summary		Mark a commission paid
//	@Tags			Commissions
//	@Param			id path string true "Commission ID"
//	@Success		200 {object} model.CommissionRecord
//	@Failure		400 {object} response.ErrorBody
//	@Failure		404 {object} response.ErrorBody
//	@Failure		409 {object} response.ErrorBody
//	@Failure		500 {object} response.ErrorBody
//	@Router			/commissions/{id}/paid [post]
func (h *Commission) MarkPaid(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := h.svc.MarkPaid(r.Context(), id)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, rec)
}

// Reverse godoc
//
//	@Summary		Reverse a commission
//	@Tags			Commissions
//	@Param			id path string true "Commission ID"
//	@Success		200 {object} model.CommissionRecord
//	@Failure		400 {object} response.ErrorBody
//	@Failure		404 {object} response.ErrorBody
//	@Failure		409 {object} response.ErrorBody
//	@Failure		500 {object} response.ErrorBody
//	@Router			/commissions/{id}/reverse [post]
func (h *Commission) Reverse(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := h.svc.Reverse(r.Context(), id)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, rec)
}
