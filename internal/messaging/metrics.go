package messaging

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	connectedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "butterfly_ws_connected_clients",
			Help: "Number of open websocket connections",
		},
	)

	deliveredEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "butterfly_ws_events_delivered_total",
			Help: "Events delivered to connected clients",
		},
		[]string{"type"},
	)

	inboundFrames = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "butterfly_ws_frames_received_total",
			Help: "Inbound websocket frames by type",
		},
		[]string{"type"},
	)
)
