/*
 * Copyright (c) 2026, Oracle and/or its affiliates.
 * Licensed under the Universal Permissive License v 1.0 as shown at
 * https://oss.oracle.com/licenses/upl.
 */
package peer

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the peer-wide Prometheus collectors. They work unregistered;
// pass a registerer to expose them.
type Metrics struct {
	bytesSent        prometheus.Counter
	bytesReceived    prometheus.Counter
	messagesSent     prometheus.Counter
	messagesReceived prometheus.Counter
	requestTimeouts  prometheus.Counter
	pings            prometheus.Counter
	connOpens        prometheus.Counter
	openChannels     prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "coherence",
			Subsystem: "extend",
			Name:      name,
			Help:      help,
		})
	}
	m := &Metrics{
		bytesSent:        counter("bytes_sent_total", "Frame bytes written to peer connections."),
		bytesReceived:    counter("bytes_received_total", "Frame payload bytes read from peer connections."),
		messagesSent:     counter("messages_sent_total", "Messages sent on peer connections."),
		messagesReceived: counter("messages_received_total", "Messages decoded from peer connections."),
		requestTimeouts:  counter("request_timeouts_total", "Requests that expired before a response arrived."),
		pings:            counter("pings_total", "Heartbeat pings emitted."),
		connOpens:        counter("connection_opens_total", "Connections opened successfully."),
		openChannels: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "coherence",
			Subsystem: "extend",
			Name:      "open_channels",
			Help:      "Channels currently open, control channels included.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.bytesSent, m.bytesReceived, m.messagesSent, m.messagesReceived,
			m.requestTimeouts, m.pings, m.connOpens, m.openChannels)
	}
	return m
}
