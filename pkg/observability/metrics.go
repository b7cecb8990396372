package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal tracks total number of HTTP requests
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gestion_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "status"},
	)

	// RequestDuration tracks request duration
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gestion_http_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	// MovimientosImportados tracks imported bank movements by outcome
	MovimientosImportados = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gestion_movimientos_importados_total",
			Help: "Bank movements imported, by outcome (nuevo, duplicado, error)",
		},
		[]string{"resultado"},
	)

	// MatchesPorNivel tracks matcher results by confidence tier
	MatchesPorNivel = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gestion_matches_por_nivel_total",
			Help: "Matcher results by confidence tier (A-F)",
		},
		[]string{"nivel"},
	)

	// PagosAplicados tracks payment allocations against coupons
	PagosAplicados = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gestion_pagos_aplicados_total",
			Help: "Payments allocated against coupons",
		},
	)

	// ImportDuration tracks full extract import duration
	ImportDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gestion_import_extracto_seconds",
			Help:    "Duration of a full bank extract import",
			Buckets: prometheus.DefBuckets,
		},
	)
)
