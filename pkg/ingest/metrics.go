package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	enqueuedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "resultdb_ingest_enqueued_total",
		Help: "Records accepted into a writer queue.",
	}, []string{"writer"})

	droppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "resultdb_ingest_dropped_total",
		Help: "Records refused at enqueue because the queue was full, closed or the request was cancelled.",
	}, []string{"writer"})

	flushTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "resultdb_ingest_flush_total",
		Help: "Batches committed by a writer.",
	}, []string{"writer"})

	flushFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "resultdb_ingest_flush_failures_total",
		Help: "Batches dropped after a failed commit.",
	}, []string{"writer"})

	flushBatchSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "resultdb_ingest_flush_batch_size",
		Help:    "Items per committed batch.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	}, []string{"writer"})

	flushDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "resultdb_ingest_flush_duration_seconds",
		Help:    "Wall time of one flush transaction.",
		Buckets: prometheus.DefBuckets,
	}, []string{"writer"})
)
