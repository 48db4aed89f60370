package optimizer

import (
	"strconv"
	"time"

	"github.com/galacticai-space/galactic/lod"
	"github.com/galacticai-space/galactic/models"
	"github.com/golang/geo/r3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	optimizerLabel = "optimizer"
	resultLabel    = "result"
	tierLabel      = "tier"
	operationLabel = "operation"
)

var (
	visibleChunks = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "visible_chunks",
		Help: "The number of chunks in the visible set.",
	}, []string{
		optimizerLabel,
	})

	loadedChunks = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "loaded_chunks",
		Help: "The number of chunks promoted to loaded.",
	}, []string{
		optimizerLabel,
	})

	queuedChunks = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "queued_chunks",
		Help: "The number of chunks waiting to be loaded.",
	}, []string{
		optimizerLabel,
	})

	indexedChunks = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "indexed_chunks",
		Help: "The number of occupied chunks in the spatial index.",
	}, []string{
		optimizerLabel,
	})

	indexedObjects = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "indexed_objects",
		Help: "The number of objects in the spatial index.",
	}, []string{
		optimizerLabel,
	})

	renderDistance = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "render_distance_chunks",
		Help: "The current render distance, in chunks.",
	}, []string{
		optimizerLabel,
	})

	maxObjectsPerChunk = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "max_objects_per_chunk",
		Help: "The current maximum number of rendered objects per chunk.",
	}, []string{
		optimizerLabel,
	})

	smoothedFPS = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "smoothed_fps",
		Help: "The smoothed frame rate.",
	}, []string{
		optimizerLabel,
	})

	warmupActive = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "warmup_active",
		Help: "Whether the warm-up phase is active.",
	}, []string{
		optimizerLabel,
	})

	renderDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "render_decisions",
		Help: "The number of should-render decisions.",
	}, []string{
		optimizerLabel,
		resultLabel,
	})

	lodDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lod_decisions",
		Help: "The number of level of detail decisions.",
	}, []string{
		optimizerLabel,
		tierLabel,
	})

	operationLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "optimizer_operation_latency",
		Help:    "The time to run an optimizer operation.",
		Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
	}, []string{
		optimizerLabel,
		operationLabel,
	})
)

// WithMetrics returns an optimizer that reports its state and the latency of
// its operations to prometheus.
func WithMetrics(o Optimizer, name string) Optimizer {
	return &optimizerWithMetrics{
		Optimizer: o,
		name:      name,
	}
}

type optimizerWithMetrics struct {
	Optimizer

	name string
}

func (o *optimizerWithMetrics) UpdateChunks(objects []models.Object) {
	o.measureLatency("update_chunks", func() {
		o.Optimizer.UpdateChunks(objects)
	})
}

func (o *optimizerWithMetrics) Tick() {
	o.measureLatency("tick", o.Optimizer.Tick)
	o.observe(o.Optimizer.Stats())
}

func (o *optimizerWithMetrics) ShouldRender(id string, position r3.Vector) bool {
	render := o.Optimizer.ShouldRender(id, position)

	renderDecisions.With(prometheus.Labels{
		optimizerLabel: o.name,
		resultLabel:    strconv.FormatBool(render),
	}).Inc()

	return render
}

func (o *optimizerWithMetrics) LODTier(id string, distance, fps float64) lod.Tier {
	tier := o.Optimizer.LODTier(id, distance, fps)

	lodDecisions.With(prometheus.Labels{
		optimizerLabel: o.name,
		tierLabel:      tier.String(),
	}).Inc()

	return tier
}

func (o *optimizerWithMetrics) VisibleObjectIDs() []string {
	var ids []string
	o.measureLatency("visible_object_ids", func() {
		ids = o.Optimizer.VisibleObjectIDs()
	})
	return ids
}

func (o *optimizerWithMetrics) observe(s Stats) {
	labels := prometheus.Labels{optimizerLabel: o.name}

	visibleChunks.With(labels).Set(float64(s.VisibleCount))
	loadedChunks.With(labels).Set(float64(s.LoadedCount))
	queuedChunks.With(labels).Set(float64(s.QueuedCount))
	indexedChunks.With(labels).Set(float64(s.TotalChunks))
	indexedObjects.With(labels).Set(float64(s.ObjectCount))
	renderDistance.With(labels).Set(float64(s.RenderDistance))
	maxObjectsPerChunk.With(labels).Set(float64(s.MaxObjectsPerChunk))
	smoothedFPS.With(labels).Set(s.FPS)

	var warmup float64
	if s.WarmupActive {
		warmup = 1
	}
	warmupActive.With(labels).Set(warmup)
}

func (o *optimizerWithMetrics) measureLatency(operation string, f func()) {
	start := time.Now()
	f()

	operationLatency.With(prometheus.Labels{
		optimizerLabel: o.name,
		operationLabel: operation,
	}).Observe(time.Since(start).Seconds())
}
