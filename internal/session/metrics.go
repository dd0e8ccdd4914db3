package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	activeSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cellgrid_active_sessions",
			Help: "Number of open editing sessions",
		},
	)

	sessionsEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cellgrid_sessions_evicted_total",
			Help: "Total number of sessions closed for inactivity",
		},
	)

	ocrDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cellgrid_ocr_duration_seconds",
			Help:    "OCR backend call duration in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 25, 50},
		},
		[]string{"kind"}, // kind: main, crop
	)

	ocrRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cellgrid_ocr_requests_total",
			Help: "Total number of OCR backend calls",
		},
		[]string{"kind", "status"},
	)

	tablesBuilt = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cellgrid_tables_per_document",
			Help:    "Number of table grids built per analyzed document",
			Buckets: []float64{0, 1, 2, 3, 5, 10, 25},
		},
	)

	headerInferenceTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cellgrid_header_inference_total",
			Help: "Header inference outcomes",
		},
		[]string{"outcome"}, // outcome: applied, failed, stale
	)

	eventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cellgrid_events_dropped_total",
			Help: "Events not delivered to slow subscribers",
		},
	)
)
