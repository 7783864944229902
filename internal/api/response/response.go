package response

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/edvin/entitlements/internal/model"
)

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, map[string]string{"error": message})
}

// ErrorBody is the JSON shape of engine errors. Code is a stable machine
// readable value; upgrade_required tells clients to send the user to checkout.
type ErrorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// ServiceErrorStatus maps an engine error to its HTTP status and code.
func ServiceErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, model.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, model.ErrNotSubscribed), errors.Is(err, model.ErrQuotaExhausted):
		return http.StatusPaymentRequired, "upgrade_required"
	case errors.Is(err, model.ErrInvalidTier):
		return http.StatusUnprocessableEntity, "invalid_tier"
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, model.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, model.ErrTransientStore):
		return http.StatusServiceUnavailable, "unavailable"
	}
	return http.StatusInternalServerError, "internal"
}

// WriteServiceError writes err with the status its sentinel maps to.
func WriteServiceError(w http.ResponseWriter, err error) {
	status, code := ServiceErrorStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	WriteJSON(w, status, ErrorBody{Error: msg, Code: code})
}

// PaginatedResponse wraps a list with pagination metadata.
type PaginatedResponse struct {
	Items      any    `json:"items"`
	NextCursor string `json:"next_cursor,omitempty"`
	HasMore    bool   `json:"has_more"`
}

// WritePaginated writes a paginated JSON response.
func WritePaginated(w http.ResponseWriter, status int, items any, nextCursor string, hasMore bool) {
	WriteJSON(w, status, PaginatedResponse{
		Items:      items,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	})
}
