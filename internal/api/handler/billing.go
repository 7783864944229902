package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/edvin/entitlements/internal/api/request"
	"github.com/edvin/entitlements/internal/api/response"
	"github.com/edvin/entitlements/internal/core"
	"github.com/edvin/entitlements/internal/model"
)

type Billing struct {
	svc *core.BillingService
}

func NewBilling(svc *core.BillingService) *Billing {
	return &Billing{svc: svc}
}

// History godoc
//
//	@Summary		List billing history
//	@Tags			Billing
//	@Param			id path string true "Subscriber ID"
//	@Param			limit query int false "Page size" default(50)
//	@Param			cursor query string false "Pagination cursor"
//	@Success		200 {object} response.PaginatedResponse{items=[]model.BillingEntry}
//	@Failure		400 {object} response.ErrorBody
//	@Failure		500 {object} response.ErrorBody
//	@Router			/subscribers/{id}/billing-history [get]
func (h *Billing) History(w http.ResponseWriter, r *http.Request) {
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
	entries, hasMore, err := h.svc.ListBySubscriber(r.Context(), id, pg.Limit, pg.Cursor)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}

	next := request.NextCursor(entries, hasMore, func(e model.BillingEntry) string { return e.ID })
	response.WritePaginated(w, http.StatusOK, entries, next, hasMore)
}
