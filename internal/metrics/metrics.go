// Package metrics holds the Prometheus collectors of the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ItemsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "remarket_items_created_total",
		Help: "Total number of catalog items created",
	})

	ItemsUpdatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "remarket_items_updated_total",
		Help: "Total number of catalog item edits",
	})

	ItemsDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "remarket_items_deleted_total",
		Help: "Total number of catalog items deleted",
	})

	SalesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "remarket_sales_total",
		Help: "Total number of recorded sales",
	})

	SaleUnitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "remarket_sale_units_total",
		Help: "Total number of units sold",
	})

	StatusChangesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "remarket_status_changes_total",
		Help: "Total number of manual sold/available toggles",
	}, []string{"to"})

	CatalogItems = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "remarket_catalog_items",
		Help: "Number of items in the latest catalog snapshot",
	})

	CatalogRefreshFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "remarket_catalog_refresh_failures_total",
		Help: "Total number of failed catalog snapshot reloads",
	})

	UploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "remarket_uploads_total",
		Help: "Total number of photo uploads by result",
	}, []string{"result"})

	UploadBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "remarket_upload_bytes_total",
		Help: "Total number of compressed photo bytes uploaded",
	})

	UploadLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "remarket_upload_latency_seconds",
		Help:    "Latency of a complete multi-photo upload",
		Buckets: prometheus.DefBuckets,
	})

	ExtractionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "remarket_extractions_total",
		Help: "Total number of AI extraction calls by kind and result",
	}, []string{"kind", "result"})

	ImportDraftsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "remarket_import_drafts_total",
		Help: "Total number of drafts produced by imports",
	})

	ImportFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "remarket_import_failures_total",
		Help: "Total number of drafts that failed to be created on confirm",
	})

	AccessDeniedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "remarket_access_denied_total",
		Help: "Total number of sign-ins rejected by the allow-list",
	}, []string{"surface"})

	LiveViews = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "remarket_live_views",
		Help: "Number of open live catalog streams",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "remarket_http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)
