package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// statusTransitions counts idea status changes by source and target.
	statusTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ideaflow_status_transitions_total",
		Help: "Idea status transitions by origin, target and trigger",
	}, []string{"from", "to", "trigger"})

	// voteToggles counts vote toggles by resulting state.
	voteToggles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ideaflow_vote_toggles_total",
		Help: "Vote toggles by result",
	}, []string{"result"})

	// uploads counts attachment uploads by outcome.
	uploads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ideaflow_attachment_uploads_total",
		Help: "Attachment uploads by outcome",
	}, []string{"outcome"})

	uploadBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ideaflow_attachment_upload_bytes",
		Help:    "Size of accepted attachment uploads",
		Buckets: prometheus.ExponentialBuckets(1024, 4, 9),
	})
)
