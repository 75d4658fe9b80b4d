// internal/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BookingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "labsync_bookings_total",
			Help: "Total number of committed bookings",
		},
		[]string{"lab", "kind"},
	)

	BookedSlotsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "labsync_booked_slots_total",
			Help: "Total number of reservation rows written",
		},
		[]string{"lab"},
	)

	BookingRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "labsync_booking_rejections_total",
			Help: "Total number of rejected bookings by reason",
		},
		[]string{"lab", "reason"},
	)

	BookingHeadcount = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "labsync_booking_headcount",
			Help:    "Distribution of seats requested per booking",
			Buckets: prometheus.LinearBuckets(1, 2, 10),
		},
		[]string{"lab"},
	)

	BlockedSlotsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "labsync_blocked_slots_total",
			Help: "Total number of slots blocked by administrators",
		},
		[]string{"lab"},
	)

	DisplacedReservationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "labsync_displaced_reservations_total",
			Help: "Reservations removed because their slot got blocked",
		},
		[]string{"lab"},
	)

	ExportRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "labsync_export_runs_total",
			Help: "Total number of export runs per sink",
		},
		[]string{"sink", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method", "status"},
	)
)
