package enginectl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"

	"github.com/edvin/entitlements/internal/model"
)

// Status prints a subscriber's current subscription and trial eligibility.
func Status(ctx context.Context, client *Client, subscriberID string, out io.Writer) error {
	path := "/api/v1/subscribers/" + url.PathEscape(subscriberID)

	resp, err := client.Get(ctx, path+"/subscription")
	switch {
	case errors.Is(err, ErrNotFound):
		fmt.Fprintf(out, "Subscriber %q: no active subscription\n", subscriberID)
	case err != nil:
		return fmt.Errorf("get subscription: %w", err)
	default:
		var sub model.Subscription
		if err := resp.Decode(&sub); err != nil {
			return err
		}
		fmt.Fprintf(out, "Subscriber %q: %s %s (%s), ends %s\n",
			subscriberID, sub.PlanType, sub.Status, sub.BillingCycle, sub.EndDate.Format("2006-01-02"))
		if sub.IsTrial {
			fmt.Fprintf(out, "  Remaining quota: %d\n", sub.RemainingQuota)
		}
	}

	resp, err = client.Get(ctx, path+"/trial-eligibility")
	if err != nil {
		return fmt.Errorf("get trial eligibility: %w", err)
	}
	var elig model.TrialEligibility
	if err := resp.Decode(&elig); err != nil {
		return err
	}
	fmt.Fprintf(out, "  Trial eligible: %t\n", elig.Eligible)
	return nil
}
