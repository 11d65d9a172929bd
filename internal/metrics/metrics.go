// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Label names.
const (
	LabelOp     = "op"
	LabelResult = "result"
	LabelCid    = "cid"
	LabelMethod = "method"
	LabelCode   = "code"
)

// Ledger metrics.
var (
	// Operations counts service calls by operation and outcome (ok or the error sentinel text).
	Operations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nftfarm",
			Name:      "operations_total",
			Help:      "Ledger operations by outcome.",
		},
		[]string{LabelOp, LabelResult},
	)

	TokensStaked = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "nftfarm",
			Name:      "tokens_staked",
			Help:      "Tokens held in the pool per collection.",
		},
		[]string{LabelCid},
	)

	Stakers = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "nftfarm",
			Name:      "stakers",
			Help:      "Accounts with a non-empty position per collection.",
		},
		[]string{LabelCid},
	)

	RequestsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nftfarm",
			Name:      "harvest_requests_completed_total",
			Help:      "Harvest requests leaving the pending state, by final status.",
		},
		[]string{LabelResult},
	)
)

// Oracle delivery metrics.
var (
	OracleDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nftfarm",
			Name:      "oracle_deliveries_total",
			Help:      "Outbox delivery attempts by outcome (sent, retry, failed).",
		},
		[]string{LabelResult},
	)

	OracleDeliveryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "nftfarm",
			Name:      "oracle_delivery_duration_seconds",
			Help:      "Latency of oracle query POSTs.",
			Buckets:   prometheus.DefBuckets,
		},
	)
)

// Transport metrics.
var (
	GRPCRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nftfarm",
			Name:      "grpc_requests_total",
			Help:      "gRPC calls by method and status code.",
		},
		[]string{LabelMethod, LabelCode},
	)
)
