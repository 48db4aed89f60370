package loading

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	schedulerLabel = "scheduler"
)

var (
	chunkPromotions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chunk_promotions",
		Help: "The number of chunks promoted from queued to loaded.",
	}, []string{
		schedulerLabel,
	})

	chunkEvictions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chunk_evictions",
		Help: "The number of loaded chunks evicted after leaving the visible set.",
	}, []string{
		schedulerLabel,
	})
)

func instrumentPromotions(scheduler string, n int) {
	chunkPromotions.
		With(prometheus.Labels{schedulerLabel: scheduler}).
		Add(float64(n))
}

func instrumentEvictions(scheduler string, n int) {
	chunkEvictions.
		With(prometheus.Labels{schedulerLabel: scheduler}).
		Add(float64(n))
}
