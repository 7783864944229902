package core

import (
	"errors"

	"github.com/edvin/entitlements/internal/model"
)

// errorLabel maps an operation error to a metrics label.
func errorLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, model.ErrConflict):
		return "conflict"
	case errors.Is(err, model.ErrNotSubscribed):
		return "not_subscribed"
	case errors.Is(err, model.ErrQuotaExhausted):
		return "quota_exhausted"
	case errors.Is(err, model.ErrInvalidTier):
		return "invalid_tier"
	case errors.Is(err, model.ErrNotFound):
		return "not_found"
	case errors.Is(err, model.ErrTransientStore):
		return "transient"
	case errors.Is(err, model.ErrInvalidInput):
		return "invalid_input"
	}
	return "error"
}

// notFoundAs rewrites ErrNotFound to target, leaving other errors untouched.
func notFoundAs(err, target error) error {
	if errors.Is(err, model.ErrNotFound) {
		return target
	}
	return err
}

func isNotFound(err error) bool {
	return errors.Is(err, model.ErrNotFound)
}
