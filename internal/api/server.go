package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	temporalclient "go.temporal.io/sdk/client"

	"github.com/edvin/entitlements/internal/api/handler"
	mw "github.com/edvin/entitlements/internal/api/middleware"
	"github.com/edvin/entitlements/internal/core"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	router         chi.Router
	logger         zerolog.Logger
	services       *core.Services
	store          Pinger
	temporalClient temporalclient.Client
}

// NewServer builds the HTTP API. temporalClient may be nil when plan change
// payments are confirmed synchronously.
func NewServer(logger zerolog.Logger, services *core.Services, store Pinger, temporalClient temporalclient.Client) *Server {
	s := &Server{
		router:         chi.NewRouter(),
		logger:         logger,
		services:       services,
		store:          store,
		temporalClient: temporalClient,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(mw.RequestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(mw.Metrics)
}

func (s *Server) setupRoutes() {
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Get("/healthz", s.handleHealthz)
	s.router.Get("/readyz", s.handleReadyz)

	planChange := handler.NewPlanChange(s.services.PlanChange)
	s.router.Post("/webhooks/payment-confirmation", planChange.PaymentConfirmation)

	s.router.Route("/api/v1", func(r chi.Router) {
		// Subscribers
		subscription := handler.NewSubscription(s.services.Lifecycle, s.services.PlanChange)
		usage := handler.NewUsage(s.services.Usage)
		billing := handler.NewBilling(s.services.Billing)
		entitlement := handler.NewEntitlement(s.services.Entitlement)
		r.Route("/subscribers/{id}", func(r chi.Router) {
			r.Get("/subscription", subscription.Get)
			r.Get("/trial-eligibility", subscription.TrialEligibility)
			r.Post("/trial", subscription.StartTrial)
			r.Post("/trial/consume", usage.ConsumeTrial)
			r.Post("/upgrade", subscription.Upgrade)
			r.Post("/cancel", subscription.Cancel)
			r.Post("/renew", subscription.Renew)
			r.Post("/expire", subscription.Expire)
			r.Get("/billing-history", billing.History)
			r.Get("/attendance", usage.ListAttendance)
			r.Get("/entitlements/{sessionID}", entitlement.CanConsume)
		})

		// Attendance
		r.Post("/attendance", usage.ConfirmJoin)

		// Benefit sessions
		r.Get("/benefit-sessions/{id}", entitlement.GetBenefitSession)
		r.Put("/benefit-sessions/{id}", entitlement.PutBenefitSession)

		// Plan changes
		r.Get("/plan-changes/{id}", planChange.Get)
		r.Post("/plan-changes/{id}/expire", planChange.Expire)

		// Tiers
		tier := handler.NewTier(s.services.Tier, s.services.Catalog)
		r.Get("/tiers", tier.List)
		r.Get("/actors/{id}/tier", tier.Resolve)
		r.Get("/actors/{id}/tier-assignments", tier.ListAssignments)
		r.Post("/actors/{id}/tier-assignments", tier.Assign)

		// Commissions
		commission := handler.NewCommission(s.services.Commission)
		r.Get("/actors/{id}/commissions", commission.ListByActor)
		r.Post("/commissions", commission.Compute)
		r.Get("/commissions/{id}", commission.Get)
		r.Post("/commissions/{id}/paid", commission.MarkPaid)
		r.Post("/commissions/{id}/reverse", commission.Reverse)
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := map[string]string{}
	healthy := true

	if err := s.store.Ping(ctx); err != nil {
		checks["store"] = err.Error()
		healthy = false
	} else {
		checks["store"] = "ok"
	}

	if s.temporalClient != nil {
		if _, err := s.temporalClient.CheckHealth(ctx, &temporalclient.CheckHealthRequest{}); err != nil {
			checks["temporal"] = err.Error()
			healthy = false
		} else {
			checks["temporal"] = "ok"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if healthy {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(checks)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
