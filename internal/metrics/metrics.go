package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DonationsPublishedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "foodshare_donations_published_total",
		Help: "Total number of donations successfully published.",
	})

	DonationsReservedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "foodshare_donations_reserved_total",
		Help: "Total number of donations successfully reserved.",
	})

	DonationsCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "foodshare_donations_completed_total",
		Help: "Total number of donations handed over after pickup-code validation.",
	})

	PickupCodeMismatchTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "foodshare_pickup_code_mismatch_total",
		Help: "Total number of rejected pickup-code validation attempts.",
	})

	OperationErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "foodshare_operation_errors_total",
		Help: "Total number of errors encountered during specific operations.",
	},
		[]string{"operation"},
	)

	ActiveDonationCacheItems = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "foodshare_active_donation_cache_items",
		Help: "Current number of items in the active donation cache.",
	})
)
