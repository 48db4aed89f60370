package optimizer

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/galacticai-space/galactic/featureflag"
	"github.com/galacticai-space/galactic/loading"
	"github.com/galacticai-space/galactic/lod"
	"github.com/galacticai-space/galactic/models"
	"github.com/galacticai-space/galactic/perf"
	"github.com/galacticai-space/galactic/spatial"
	"github.com/galacticai-space/galactic/visibility"
	"github.com/golang/geo/r3"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Optimizer decides which objects are worth rendering and at which level of
// detail.
type Optimizer interface {
	// Returns the optimizer identifier.
	ID() string

	// Sets the first camera, starts the chunk loading worker and begins the
	// warm-up phase.
	Initialize(camera *models.Camera)

	// Sets the camera used by the next evaluations.
	SetCamera(camera *models.Camera)

	// Replaces the indexed objects. The index picks them up progressively
	// during the next ticks.
	UpdateChunks(objects []models.Object)

	// Runs one frame of work. It is meant to be called once per frame.
	Tick()

	// Reports whether the object should be rendered.
	ShouldRender(id string, position r3.Vector) bool

	// Returns the level of detail of an object located at the given distance
	// from the camera. A non-positive fps uses the measured frame rate.
	LODTier(id string, distance, fps float64) lod.Tier

	// Returns the identifiers of the objects in the visible chunks.
	VisibleObjectIDs() []string

	// Restricts visibility to the given object.
	Focus(id string)

	ClearFocus()

	// Returns the smoothed frame rate.
	FPS() float64

	Stats() Stats

	// Stops the chunk loading worker.
	Close()
}

// Stats are diagnostic counters. They are informational only.
type Stats struct {
	ID                 string  `json:"id"`
	VisibleCount       int     `json:"visible_count"`
	LoadedCount        int     `json:"loaded_count"`
	QueuedCount        int     `json:"queued_count"`
	TotalChunks        int     `json:"total_chunks"`
	ObjectCount        int     `json:"object_count"`
	RenderDistance     int     `json:"render_distance"`
	MaxObjectsPerChunk int     `json:"max_objects_per_chunk"`
	FPS                float64 `json:"fps"`
	WarmupActive       bool    `json:"warmup_active"`
	Focused            string  `json:"focused,omitempty"`
}

// WarmupStage sets the render parameters once the given duration has elapsed
// since initialization.
type WarmupStage struct {
	After    time.Duration `yaml:"after"`
	Params   perf.Params   `yaml:"params"`
	Complete bool          `yaml:"complete"`
}

// DefaultWarmupStages returns the stages that progressively extend the
// rendered area after the first frames.
func DefaultWarmupStages() []WarmupStage {
	return []WarmupStage{
		{
			After:  time.Second,
			Params: perf.Params{RenderDistance: 3, MaxObjectsPerChunk: 50},
		},
		{
			After:    3 * time.Second,
			Params:   perf.Params{RenderDistance: 4, MaxObjectsPerChunk: 70},
			Complete: true,
		},
	}
}

// DefaultInitialParams are the render parameters used before any adjustment.
var DefaultInitialParams = perf.Params{
	RenderDistance:     2,
	MaxObjectsPerChunk: 40,
}

// Options configures a UniverseOptimizer. Zero values are replaced by
// defaults.
type Options struct {
	// The name used to label logs and metrics.
	Name string

	Index      spatial.IndexOptions
	Visibility visibility.Options
	Loading    loading.Options
	Monitor    perf.MonitorOptions
	LOD        lod.Policy

	WarmupStages []WarmupStage
	FeatureFlags featureflag.FeatureFlag
	Clock        clock.Clock
}

// UniverseOptimizer composes the spatial index, the visibility evaluator, the
// chunk loading scheduler, the frame rate monitor and the LOD policy.
type UniverseOptimizer struct {
	id           string
	clock        clock.Clock
	lod          lod.Policy
	warmupStages []WarmupStage
	skipWarmup   bool
	forceBypass  bool
	freezeParams bool

	index     *spatial.Index
	evaluator *visibility.Evaluator
	scheduler *loading.Scheduler
	monitor   *perf.Monitor

	mutex        sync.RWMutex
	camera       *models.Camera
	initialized  bool
	warmupActive bool
	warmupStart  time.Time
	warmupStage  int

	stopWorker func()
	closeOnce  sync.Once
}

func New(opts Options) *UniverseOptimizer {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.WarmupStages == nil {
		opts.WarmupStages = DefaultWarmupStages()
	}
	if opts.Monitor.Initial == (perf.Params{}) {
		opts.Monitor.Initial = DefaultInitialParams
	}
	if opts.LOD == (lod.Policy{}) {
		opts.LOD = lod.NewPolicy(0)
	}
	if opts.Name == "" {
		opts.Name = "galactic"
	}

	opts.Visibility.Clock = opts.Clock
	opts.Loading.Clock = opts.Clock
	if opts.Loading.Name == "" {
		opts.Loading.Name = opts.Name
	}

	o := &UniverseOptimizer{
		id:           uuid.NewString(),
		clock:        opts.Clock,
		lod:          opts.LOD,
		warmupStages: opts.WarmupStages,
		index:        spatial.NewIndex(opts.Index),
		monitor:      perf.NewMonitor(opts.Monitor),
		stopWorker:   func() {},
	}

	opts.FeatureFlags.IfSet(featureflag.FlagDisableFrustumCulling, func() {
		opts.Visibility.DisableCulling = true
	})
	opts.FeatureFlags.IfSet(featureflag.FlagDisableLoadPacing, func() {
		o.forceBypass = true
	})
	opts.FeatureFlags.IfSet(featureflag.FlagDisableAdaptiveQuality, func() {
		o.freezeParams = true
	})
	opts.FeatureFlags.IfSet(featureflag.FlagSkipWarmup, func() {
		o.skipWarmup = true
	})

	o.evaluator = visibility.NewEvaluator(opts.Visibility)
	o.scheduler = loading.New(opts.Loading)
	o.scheduler.SetBypass(o.forceBypass)
	o.monitor.SetFrozen(o.freezeParams)
	o.monitor.OnAdjustment(func(prev, next perf.Params, fps float64) {
		o.evaluator.Invalidate()
	})
	return o
}

func (o *UniverseOptimizer) ID() string {
	return o.id
}

func (o *UniverseOptimizer) Initialize(camera *models.Camera) {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	o.camera = camera
	if o.initialized {
		return
	}
	o.initialized = true

	ctx, cancel := context.WithCancel(context.Background())
	o.stopWorker = cancel
	o.scheduler.Start(ctx)

	if o.skipWarmup || len(o.warmupStages) == 0 {
		return
	}
	o.warmupActive = true
	o.warmupStart = o.clock.Now()
	o.warmupStage = 0
	o.scheduler.SetBypass(true)
	o.monitor.SetFrozen(true)
}

func (o *UniverseOptimizer) SetCamera(camera *models.Camera) {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	o.camera = camera
}

func (o *UniverseOptimizer) UpdateChunks(objects []models.Object) {
	o.index.Assign(objects)
}

func (o *UniverseOptimizer) Tick() {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	now := o.clock.Now()

	pending := o.index.Pending()
	if o.index.Advance() && pending {
		o.evaluator.Invalidate()
	}

	o.monitor.Sample(now)
	o.updateWarmup(now)

	params := o.monitor.CurrentParams()
	result, fresh := o.evaluator.Evaluate(o.camera, o.index, visibility.Params{
		RenderDistance: params.RenderDistance,
		ChunkSize:      o.index.ChunkSize(),
	})
	if fresh {
		o.scheduler.Sync(result.Keys)
	}
}

func (o *UniverseOptimizer) updateWarmup(now time.Time) {
	if !o.warmupActive {
		return
	}

	elapsed := now.Sub(o.warmupStart)
	for o.warmupStage < len(o.warmupStages) {
		stage := o.warmupStages[o.warmupStage]
		if elapsed < stage.After {
			return
		}

		o.warmupStage++
		o.monitor.SetParams(stage.Params)
		o.evaluator.Invalidate()

		if stage.Complete {
			break
		}
	}

	o.warmupActive = false
	o.scheduler.SetBypass(o.forceBypass)
	o.monitor.SetFrozen(o.freezeParams)
}

func (o *UniverseOptimizer) ShouldRender(id string, position r3.Vector) bool {
	o.mutex.RLock()
	defer o.mutex.RUnlock()

	if !o.index.Ready() {
		return true
	}

	k, rank, ok := o.index.Locate(id)
	if !ok {
		return false
	}

	if focused := o.evaluator.FocusedID(); focused != "" {
		return id == focused
	}

	if o.warmupActive {
		return true
	}

	result := o.evaluator.Result()
	if !result.Contains(k) || !o.scheduler.IsLoaded(k) {
		return false
	}

	params := o.monitor.CurrentParams()
	if rank >= params.MaxObjectsPerChunk {
		return false
	}

	sphere, _ := o.index.BoundingVolume(id)
	if models.IsFinite(position) {
		sphere.Center = position
	}
	return o.sphereVisible(sphere, params)
}

func (o *UniverseOptimizer) sphereVisible(sphere spatial.Sphere, params perf.Params) bool {
	return o.evaluator.ObjectVisible(sphere, float64(params.RenderDistance)*o.index.ChunkSize())
}

func (o *UniverseOptimizer) LODTier(id string, distance, fps float64) lod.Tier {
	o.mutex.RLock()
	defer o.mutex.RUnlock()

	if fps <= 0 {
		fps = o.monitor.SmoothedFPS()
	}

	policy := o.lod
	policy.MaxRenderRadius = float64(o.monitor.CurrentParams().RenderDistance) * o.index.ChunkSize()
	return policy.TierFor(distance, fps, o.warmupActive)
}

func (o *UniverseOptimizer) VisibleObjectIDs() []string {
	o.mutex.RLock()
	defer o.mutex.RUnlock()

	result := o.evaluator.Result()
	if focused := o.evaluator.FocusedID(); focused != "" {
		if _, _, ok := o.index.Locate(focused); ok {
			return []string{focused}
		}
		return []string{}
	}

	keys := result.Sorted()
	if o.warmupActive {
		return lo.FlatMap(keys, func(k spatial.ChunkKey, _ int) []string {
			return o.index.Members(k)
		})
	}

	params := o.monitor.CurrentParams()
	loaded := lo.Filter(keys, func(k spatial.ChunkKey, _ int) bool {
		return o.scheduler.IsLoaded(k)
	})
	return lo.FlatMap(loaded, func(k spatial.ChunkKey, _ int) []string {
		members := o.index.Members(k)
		members = members[:min(params.MaxObjectsPerChunk, len(members))]
		return lo.Filter(members, func(id string, _ int) bool {
			sphere, _ := o.index.BoundingVolume(id)
			return o.sphereVisible(sphere, params)
		})
	})
}

func (o *UniverseOptimizer) Focus(id string) {
	o.evaluator.Focus(id)
}

func (o *UniverseOptimizer) ClearFocus() {
	o.evaluator.ClearFocus()
}

func (o *UniverseOptimizer) FPS() float64 {
	return o.monitor.SmoothedFPS()
}

func (o *UniverseOptimizer) Stats() Stats {
	o.mutex.RLock()
	defer o.mutex.RUnlock()

	loads := o.scheduler.Stats()
	params := o.monitor.CurrentParams()

	return Stats{
		ID:                 o.id,
		VisibleCount:       len(o.evaluator.Result().Keys),
		LoadedCount:        loads.Loaded,
		QueuedCount:        loads.Queued,
		TotalChunks:        o.index.ChunkCount(),
		ObjectCount:        o.index.ObjectCount(),
		RenderDistance:     params.RenderDistance,
		MaxObjectsPerChunk: params.MaxObjectsPerChunk,
		FPS:                o.monitor.SmoothedFPS(),
		WarmupActive:       o.warmupActive,
		Focused:            o.evaluator.FocusedID(),
	}
}

// Ready reports whether the index has published its first assignment pass.
func (o *UniverseOptimizer) Ready() bool {
	return o.index.Ready()
}

// Index returns the underlying spatial index.
func (o *UniverseOptimizer) Index() *spatial.Index {
	return o.index
}

// Scheduler returns the underlying chunk loading scheduler.
func (o *UniverseOptimizer) Scheduler() *loading.Scheduler {
	return o.scheduler
}

func (o *UniverseOptimizer) Close() {
	o.closeOnce.Do(func() {
		o.mutex.Lock()
		defer o.mutex.Unlock()

		o.stopWorker()
	})
}
