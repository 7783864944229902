package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/edvin/entitlements/internal/api/request"
	"github.com/edvin/entitlements/internal/api/response"
	"github.com/edvin/entitlements/internal/core"
	"github.com/edvin/entitlements/internal/model"
)

type Usage struct {
	svc *core.UsageService
}

func NewUsage(svc *core.UsageService) *Usage {
	return &Usage{svc: svc}
}

// ConsumeTrial godoc
//
//	@Summary		Consume one trial session
//	@Tags			Usage
//	@Param			id path string true "Subscriber ID"
//	@Success		200 {object} model.Subscription
//	@Failure		400 {object} response.ErrorBody
//	@Failure		404 {object} response.ErrorBody
//	@Failure		409 {object} response.ErrorBody
//	@Failure		500 {object} response.ErrorBody
//	@Router			/subscribers/{id}/trial/consume [post]
func (h *Usage) ConsumeTrial(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	sub, err := h.svc.ConsumeTrial(r.Context(), id)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, sub)
}

// ConfirmJoin takes the join confirmation of the session collaborator.
//
//	@Summary		Record a session join
//	@Tags			Usage
//	@Param			body body request.JoinConfirmation true "Join confirmation"
//	@Success		201 {object} core.JoinResult
//	@Failure		400 {object} response.ErrorBody
//	@Failure		404 {object} response.ErrorBody
//	@Failure		409 {object} response.ErrorBody
//	@Failure		500 {object} response.ErrorBody
//	@Router			/attendance [post]
func (h *Usage) ConfirmJoin(w http.ResponseWriter, r *http.Request) {
	var req request.JoinConfirmation
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.svc.ConfirmJoin(r.Context(), model.JoinConfirmation{
		SubscriberID:     req.SubscriberID,
		BenefitSessionID: req.BenefitSessionID,
		Attended:         req.Attended,
	})
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusCreated, res)
}

// ListAttendance godoc
//
//	@Summary		List attendance records
//	@Tags			Usage
//	@Param			id path string true "Subscriber ID"
//	@Param			limit query int false "Page size" default(50)
//	@Param			cursor query string false "Pagination cursor"
//	@Success		200 {object} response.PaginatedResponse{items=[]model.UsageRecord}
//	@Failure		400 {object} response.ErrorBody
//	@Failure		500 {object} response.ErrorBody
//	@Router			/subscribers/{id}/attendance [get]
func (h *Usage) ListAttendance(w http.ResponseWriter, r *http.Request) {
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
	recs, hasMore, err := h.svc.ListAttendance(r.Context(), id, pg.Limit, pg.Cursor)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}

	next := request.NextCursor(recs, hasMore, func(e model.UsageRecord) string { return e.ID })
	response.WritePaginated(w, http.StatusOK, recs, next, hasMore)
}
