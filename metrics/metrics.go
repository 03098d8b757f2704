// Package metrics exposes the Prometheus instrumentation for map
// write-state cycles.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ShardsChosen records the shard count picked by the shard sizer, per
// type.
var ShardsChosen = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "mapstate_shards_chosen",
		Help: "Number of shards chosen for the current cycle",
	},
	[]string{"type"},
)

// BytesWritten accumulates bytes streamed out by WriteSnapshot /
// WriteCalculatedDelta, per type and per encoding kind (snapshot/delta).
var BytesWritten = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "mapstate_bytes_written_total",
		Help: "Bytes written by snapshot/delta writers",
	},
	[]string{"type", "kind"},
)

// HasherSkipped counts NOT_BINDABLE events: cycles where the primary-key
// hasher fell back to stager-chosen bucket hints.
var HasherSkipped = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "mapstate_hasher_skipped_total",
		Help: "Cycles where the primary-key hasher could not be bound",
	},
	[]string{"type"},
)

// EncodeDuration is the histogram for the wall time of a calculate+write
// pass, labelled by type and kind. No code in this module records
// observations into it; encode timing is attached to telemetry spans.
var EncodeDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "mapstate_encode_duration_seconds",
		Help:    "Duration of a snapshot or delta encode pass",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"type", "kind"},
)
