// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Decisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "replymode_decisions_total",
		Help: "Reply-modality decisions by rule that decided and outcome",
	}, []string{"reason", "audio"})

	Replies = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "replymode_replies_total",
		Help: "Replies produced by delivered mode",
	}, []string{"mode"})

	SynthesisFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "replymode_synthesis_failures_total",
		Help: "Speech synthesis failures that fell back to text",
	}, []string{"backend"})

	Transcriptions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "replymode_transcriptions_total",
		Help: "Voice note transcriptions by backend and status",
	}, []string{"backend", "status"})

	DispatchLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "replymode_dispatch_seconds",
		Help:    "Time spent handling one inbound message",
		Buckets: prometheus.DefBuckets,
	})
)
