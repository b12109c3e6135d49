package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ingestion metrics
	EventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatewatch_events_total",
			Help: "Total number of events ingested",
		},
		[]string{"type", "status"},
	)

	ValidationErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gatewatch_validation_errors_total",
			Help: "Total number of events rejected by validation",
		},
	)

	// Geo enrichment metrics
	GeoLookupErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gatewatch_geo_lookup_errors_total",
			Help: "Total number of failed geo lookups",
		},
	)

	GeoCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gatewatch_geo_cache_hits_total",
			Help: "Total number of geo cache hits",
		},
	)

	// Ban registry metrics
	BansActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gatewatch_bans_active",
			Help: "Current number of active bans",
		},
	)

	BansTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatewatch_bans_total",
			Help: "Total number of ban transitions",
		},
		[]string{"action", "source"},
	)

	// Reaper metrics
	ReaperSweeps = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gatewatch_reaper_sweeps_total",
			Help: "Total number of expiry sweeps",
		},
	)

	ReaperExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gatewatch_reaper_expired_total",
			Help: "Total number of bans expired by the reaper",
		},
	)
)
