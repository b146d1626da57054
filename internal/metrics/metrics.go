// Package metrics exposes Prometheus instrumentation for the bridge.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Frame direction labels.
const (
	DirectionInbound  = "inbound"  // caller -> agent
	DirectionOutbound = "outbound" // agent -> caller
)

var (
	// ActiveBridges counts media-stream connections currently bridged.
	ActiveBridges = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "voicebridge_active_bridges",
		Help: "Number of currently active call bridges.",
	})

	// FramesRelayed counts audio frames passed through per direction.
	FramesRelayed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voicebridge_frames_relayed_total",
		Help: "Audio frames relayed between the telephony and agent sockets.",
	}, []string{"direction"})

	// FramesDropped counts frames discarded instead of relayed. Audio is
	// fire-and-forget: a frame with no open or routable destination is
	// dropped, never buffered.
	FramesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voicebridge_frames_dropped_total",
		Help: "Audio frames dropped because the destination was not routable.",
	}, []string{"direction"})

	// TransferAttempts counts operator handoff attempts by outcome.
	TransferAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voicebridge_transfer_attempts_total",
		Help: "Call transfer attempts by outcome.",
	}, []string{"outcome"})

	// DecodeFailures counts unparseable inbound frames per socket.
	DecodeFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voicebridge_decode_failures_total",
		Help: "Inbound messages dropped because they could not be decoded.",
	}, []string{"socket"})
)
