package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Relay metrics collectors
var (
	// Calls

	CallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_calls_total",
			Help: "Total number of relayed calls by outcome",
		},
		[]string{"mode", "outcome"},
	)

	CallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relay_call_duration_seconds",
			Help:    "Relayed call duration in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"mode", "outcome"},
	)

	CallErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_call_errors_total",
			Help: "Total number of failed calls by failing stage",
		},
		[]string{"mode", "stage"},
	)

	// Stream content

	ChunksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_chunks_total",
			Help: "Total number of chunks sent to callers",
		},
		[]string{"mode"},
	)

	ChunkBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_chunk_bytes_total",
			Help: "Total number of chunk bytes sent to callers",
		},
		[]string{"mode"},
	)

	ToolCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_tool_calls_total",
			Help: "Total number of tool calls observed in upstream events",
		},
		[]string{"mode", "tool"},
	)

	ThinkingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relay_thinking_duration_seconds",
			Help:    "Time from session start to the first content fragment",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"mode"},
	)

	// Transport

	ActiveStreams = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_active_streams",
			Help: "Number of inbound streams currently being served",
		},
	)

	RejectedStreamsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_rejected_streams_total",
			Help: "Total number of inbound streams rejected before relaying",
		},
		[]string{"procedure", "reason"},
	)

	BridgeRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_bridge_requests_total",
			Help: "Total number of SSE bridge requests",
		},
		[]string{"mode", "status"},
	)
)
