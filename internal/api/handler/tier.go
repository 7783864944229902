package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/edvin/entitlements/internal/api/request"
	"github.com/edvin/entitlements/internal/api/response"
	"github.com/edvin/entitlements/internal/catalog"
	"github.com/edvin/entitlements/internal/core"
	"github.com/edvin/entitlements/internal/model"
)

type Tier struct {
	svc     *core.TierService
	catalog *catalog.Catalog
}

func NewTier(svc *core.TierService, cat *catalog.Catalog) *Tier {
	return &Tier{svc: svc, catalog: cat}
}

// List godoc
//
//	@Summary		List catalog tiers
//	@Tags			Tiers
//	@Param			kind query string false "Tier kind" Enums(student, institution, actor)
//	@Success		200 {array} model.Tier
//	@Failure		400 {object} response.ErrorBody
//	@Router			/tiers [get]
func (h *Tier) List(w http.ResponseWriter, r *http.Request) {
	kind := model.TierKind(r.URL.Query().Get("kind"))
	switch kind {
	case "", model.TierKindStudent, model.TierKindInstitution, model.TierKindActor:
	default:
		response.WriteError(w, http.StatusBadRequest, "unknown tier kind "+string(kind))
		return
	}

	tiers := h.catalog.List(kind)
	if tiers == nil {
		tiers = []model.Tier{}
	}
	response.WriteJSON(w, http.StatusOK, tiers)
}

// Resolve godoc
//
//	@Summary		Resolve an actor's active commission tier
//	@Tags			Tiers
//	@Param			id path string true "Actor ID"
//	@Param			at query string false "Instant to resolve at (RFC 3339)"
//	@Success		200 {object} model.ResolvedTier
//	@Failure		400 {object} response.ErrorBody
//	@Failure		500 {object} response.ErrorBody
//	@Router			/actors/{id}/tier [get]
func (h *Tier) Resolve(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	at, err := request.ParseTime(r, "at")
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	resolved, err := h.svc.ResolveActiveTier(r.Context(), id, at)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, resolved)
}

// ListAssignments godoc
//
//	@Summary		List an actor's tier assignments
//	@Tags			Tiers
//	@Param			id path string true "Actor ID"
//	@Success		200 {array} model.TierAssignment
//	@Failure		400 {object} response.ErrorBody
//	@Failure		500 {object} response.ErrorBody
//	@Router			/actors/{id}/tier-assignments [get]
func (h *Tier) ListAssignments(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	timeline, err := h.svc.ListAssignments(r.Context(), id)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}
	if timeline == nil {
		timeline = []model.TierAssignment{}
	}

	response.WriteJSON(w, http.StatusOK, timeline)
}

// Assign godoc
//
//	@Summary		Assign a commission tier
//	@Tags			Tiers
//	@Param			id path string true "Actor ID"
//	@Param			body body request.AssignTier true "Tier and start date"
//	@Success		201 {object} model.TierAssignment
//	@Failure		400 {object} response.ErrorBody
//	@Failure		409 {object} response.ErrorBody
//	@Failure		500 {object} response.ErrorBody
//	@Router			/actors/{id}/tier-assignments [post]
func (h *Tier) Assign(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req request.AssignTier
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	a, err := h.svc.AssignTier(r.Context(), id, req.TierID, req.StartDate)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusCreated, a)
}
