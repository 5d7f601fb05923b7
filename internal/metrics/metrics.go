// Package metrics holds the prometheus instruments for the extraction
// pipeline. Exposed on /metrics alongside the default Go collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SheetUploads counts accepted sheet photo uploads.
	SheetUploads = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bridgesheet_sheet_uploads_total",
		Help: "Sheet photos accepted for extraction.",
	})

	// JobOutcomes counts terminal job transitions by status.
	JobOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bridgesheet_ocr_jobs_total",
		Help: "Extraction jobs reaching a terminal state.",
	}, []string{"status"})

	// ConfirmResults counts per-entry confirm outcomes: kind is
	// attendance or mailing_list, result is created or skipped.
	ConfirmResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bridgesheet_confirm_entries_total",
		Help: "Reviewed entries committed or skipped during confirm.",
	}, []string{"kind", "result"})
)
