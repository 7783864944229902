package request

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/edvin/entitlements/internal/model"
)

var validate = validator.New()

func init() {
	validate.RegisterValidation("cycle", func(fl validator.FieldLevel) bool {
		return model.BillingCycle(fl.Field().String()).Valid()
	})
	validate.RegisterValidation("subscriber_kind", func(fl validator.FieldLevel) bool {
		k := model.SubscriberKind(fl.Field().String())
		return k == model.SubscriberStudent || k == model.SubscriberInstitution
	})
	validate.RegisterValidation("outcome", func(fl validator.FieldLevel) bool {
		o := model.PaymentOutcome(fl.Field().String())
		return o == model.PaymentSuccess || o == model.PaymentFailure
	})
}

func Decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("validation error: %w", err)
	}
	return nil
}

// DecodeOptional is Decode for endpoints whose body may be empty.
func DecodeOptional(r *http.Request, v any) error {
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("invalid JSON: %w", err)
		}
	}
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("validation error: %w", err)
	}
	return nil
}

func RequireID(s string) (string, error) {
	if s == "" {
		return "", fmt.Errorf("missing required ID")
	}
	return s, nil
}

// ParseTime reads an RFC 3339 query parameter, returning zero when absent.
func ParseTime(r *http.Request, name string) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s: %w", name, err)
	}
	return t.UTC(), nil
}
