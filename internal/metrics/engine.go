package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EntitlementDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "entitlement_decisions_total",
		Help: "Entitlement checks by outcome and denial reason.",
	}, []string{"allowed", "reason"})

	QuotaConsumptions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quota_consumptions_total",
		Help: "Trial quota consumption attempts by result.",
	}, []string{"result"})

	SubscriptionTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "subscription_transitions_total",
		Help: "Subscription lifecycle transitions by operation.",
	}, []string{"operation"})

	PlanChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "plan_changes_total",
		Help: "Plan changes by resulting status.",
	}, []string{"status"})

	CommissionsComputed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "commissions_computed_total",
		Help: "Commission computations by result.",
	}, []string{"result"})

	CommissionAmount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "commission_amount_minor_total",
		Help: "Sum of computed commission amounts in minor units.",
	}, []string{"currency"})

	StoreRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "store_read_retries_total",
		Help: "Idempotent store reads retried after a transient error.",
	})
)

var ActivityResults = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "activity_results_total",
	Help: "Temporal activity executions by activity name and result.",
}, []string{"activity", "result"})

var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "engine_http_requests_total",
		Help: "Engine API requests by method, route pattern and status.",
	}, []string{"method", "route", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "engine_http_request_duration_seconds",
		Help:    "Engine API request latency by method and route pattern.",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	}, []string{"method", "route"})

	HTTPInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "engine_http_requests_in_flight",
		Help: "Engine API requests currently being served.",
	})
)
