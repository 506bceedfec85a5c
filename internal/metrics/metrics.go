// Package metrics holds the prometheus collectors of the relay, registered
// with the default registry and served on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Inbound = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailfunnel_inbound_total",
			Help: "Inbound messages processed, by provider and disposition.",
		},
		[]string{
			"provider",
			"disposition", // "forwarded", "rejected"
			"reason",      // "", "spam_score", "address_blocked"
		},
	)
	Outbound = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailfunnel_outbound_total",
			Help: "Outbound replies processed, by provider and disposition.",
		},
		[]string{
			"provider",
			"disposition", // "relayed", "not_a_reply", "unauthorized"
		},
	)
	TokenDecodeFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailfunnel_token_decode_failures_total",
			Help: "Relay addresses that did not decode, by kind.",
		},
		[]string{
			"kind", // "MALFORMED", "AUTH_FAILED", "WRONG_DOMAIN"
		},
	)
	TransportSend = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailfunnel_transport_send_total",
			Help: "Mail handed to a transport, by transport and result.",
		},
		[]string{
			"transport",
			"result", // "ok", "error"
		},
	)
	TransportDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mailfunnel_transport_send_duration_seconds",
			Help:    "Time spent handing mail to a transport.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		},
		[]string{"transport"},
	)
	WebhookAuthFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailfunnel_webhook_auth_failures_total",
			Help: "Webhook requests rejected for bad credentials, by provider.",
		},
		[]string{"provider"},
	)
)
