package request

import (
	"fmt"
	"net/http"
	"strconv"
)

// Pagination is a keyset page request: Cursor is the id of the last item of
// the previous page.
type Pagination struct {
	Limit  int
	Cursor string
}

const (
	DefaultLimit = 50
	MaxLimit     = 200
)

// ParsePagination reads limit and cursor from the query. Limits above
// MaxLimit are clamped; a malformed limit is an error.
func ParsePagination(r *http.Request) (Pagination, error) {
	q := r.URL.Query()
	p := Pagination{Limit: DefaultLimit}

	if s := q.Get("limit"); s != "" {
		limit, err := strconv.Atoi(s)
		if err != nil || limit <= 0 {
			return p, fmt.Errorf("limit must be a positive integer")
		}
		p.Limit = min(limit, MaxLimit)
	}

	if c := q.Get("cursor"); c != "" {
		cursor, err := RequireID(c)
		if err != nil {
			return p, fmt.Errorf("invalid cursor: %w", err)
		}
		p.Cursor = cursor
	}

	return p, nil
}

// NextCursor returns the cursor for the page after items, or "" on the last page.
func NextCursor[T any](items []T, hasMore bool, id func(T) string) string {
	if !hasMore || len(items) == 0 {
		return ""
	}
	return id(items[len(items)-1])
}
