package optimizer

import (
	"context"
	"sync"
	"time"

	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/benbjohnson/clock"
	"github.com/galacticai-space/galactic/models"
)

// DefaultSummaryInterval is the summary interval used when WithLogs is given
// a non-positive one.
const DefaultSummaryInterval = time.Minute

// WithLogs returns an optimizer that logs its lifecycle, its phase changes and
// a periodic summary of its activity.
func WithLogs(o Optimizer, summaryInterval time.Duration, clk clock.Clock) Optimizer {
	if summaryInterval <= 0 {
		summaryInterval = DefaultSummaryInterval
	}
	if clk == nil {
		clk = clock.New()
	}

	ctx, cancel := context.WithCancel(context.Background())

	optimizer := &optimizerWithLogs{
		Optimizer:          o,
		clock:              clk,
		summaryInterval:    summaryInterval,
		closeSummaryWorker: cancel,
		counter:            make(map[string]int),
	}

	go optimizer.startSummaryWorker(ctx)
	return optimizer
}

type optimizerWithLogs struct {
	Optimizer

	clock              clock.Clock
	summaryInterval    time.Duration
	closeSummaryWorker func()
	counterMutex       sync.Mutex
	counter            map[string]int

	stateMutex sync.Mutex
	last       Stats
}

func (o *optimizerWithLogs) Initialize(camera *models.Camera) {
	o.Optimizer.Initialize(camera)

	stats := o.Optimizer.Stats()
	o.setLast(stats)

	logs.WithTag("optimizer_id", o.ID()).
		WithTag("warmup_active", stats.WarmupActive).
		WithTag("render_distance", stats.RenderDistance).
		WithTag("max_objects_per_chunk", stats.MaxObjectsPerChunk).
		Info("optimizer initialized")
}

func (o *optimizerWithLogs) UpdateChunks(objects []models.Object) {
	o.Optimizer.UpdateChunks(objects)
	o.incCounter("chunk_updates")

	logs.WithTag("optimizer_id", o.ID()).
		WithTag("objects", len(objects)).
		Debug("chunk assignment requested")
}

func (o *optimizerWithLogs) Tick() {
	o.Optimizer.Tick()
	o.incCounter("ticks")

	stats := o.Optimizer.Stats()

	o.stateMutex.Lock()
	prev := o.last
	o.last = stats
	o.stateMutex.Unlock()

	if prev.WarmupActive && !stats.WarmupActive {
		logs.WithTag("optimizer_id", o.ID()).
			WithTag("render_distance", stats.RenderDistance).
			WithTag("max_objects_per_chunk", stats.MaxObjectsPerChunk).
			Info("warm-up complete")
	}

	if prev.RenderDistance != stats.RenderDistance || prev.MaxObjectsPerChunk != stats.MaxObjectsPerChunk {
		logs.WithTag("optimizer_id", o.ID()).
			WithTag("fps", stats.FPS).
			WithTag("prev_render_distance", prev.RenderDistance).
			WithTag("render_distance", stats.RenderDistance).
			WithTag("prev_max_objects_per_chunk", prev.MaxObjectsPerChunk).
			WithTag("max_objects_per_chunk", stats.MaxObjectsPerChunk).
			Debug("render parameters changed")
	}

	if prev.TotalChunks != stats.TotalChunks || prev.ObjectCount != stats.ObjectCount {
		logs.WithTag("optimizer_id", o.ID()).
			WithTag("chunks", stats.TotalChunks).
			WithTag("objects", stats.ObjectCount).
			Debug("chunk assignment published")
	}
}

func (o *optimizerWithLogs) Focus(id string) {
	o.Optimizer.Focus(id)

	logs.WithTag("optimizer_id", o.ID()).
		WithTag("object_id", id).
		Info("object focused")
}

func (o *optimizerWithLogs) ClearFocus() {
	o.Optimizer.ClearFocus()

	logs.WithTag("optimizer_id", o.ID()).
		Info("focus cleared")
}

func (o *optimizerWithLogs) Close() {
	o.Optimizer.Close()
	o.closeSummaryWorker()
	o.logSummary()

	logs.WithTag("optimizer_id", o.ID()).
		Info("optimizer closed")
}

func (o *optimizerWithLogs) setLast(s Stats) {
	o.stateMutex.Lock()
	defer o.stateMutex.Unlock()

	o.last = s
}

func (o *optimizerWithLogs) startSummaryWorker(ctx context.Context) {
	ticker := o.clock.Ticker(o.summaryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			o.logSummary()
		}
	}
}

func (o *optimizerWithLogs) incCounter(name string) {
	o.counterMutex.Lock()
	defer o.counterMutex.Unlock()

	o.counter[name]++
}

func (o *optimizerWithLogs) logSummary() {
	o.counterMutex.Lock()
	defer o.counterMutex.Unlock()

	if len(o.counter) == 0 {
		return
	}

	stats := o.Optimizer.Stats()
	entry := logs.
		WithTag("optimizer_id", o.ID()).
		WithTag("time_interval", o.summaryInterval).
		WithTag("visible_chunks", stats.VisibleCount).
		WithTag("loaded_chunks", stats.LoadedCount).
		WithTag("queued_chunks", stats.QueuedCount).
		WithTag("total_chunks", stats.TotalChunks).
		WithTag("objects", stats.ObjectCount).
		WithTag("fps", stats.FPS)

	for k, v := range o.counter {
		entry = entry.WithTag(k, v)
		delete(o.counter, k)
	}

	entry.Info("optimizer activity summary")
}
