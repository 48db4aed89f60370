package visibility

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/galacticai-space/galactic/models"
	"github.com/galacticai-space/galactic/spatial"
)

const DefaultMinInterval = 100 * time.Millisecond

// Params are the evaluation parameters that can change between frames.
type Params struct {
	// The render distance, in chunks.
	RenderDistance int
	ChunkSize      float64
}

// MaxDistance returns the render distance in world units.
func (p Params) MaxDistance() float64 {
	return float64(p.RenderDistance) * p.ChunkSize
}

// Result is the outcome of an evaluation. Keys must not be modified.
type Result struct {
	Keys       map[spatial.ChunkKey]struct{}
	Generation uint64
	FocusedID  string
}

func (r Result) Contains(k spatial.ChunkKey) bool {
	_, ok := r.Keys[k]
	return ok
}

// Sorted returns the visible keys in x, y, z order.
func (r Result) Sorted() []spatial.ChunkKey {
	keys := make([]spatial.ChunkKey, 0, len(r.Keys))
	for k := range r.Keys {
		keys = append(keys, k)
	}
	spatial.SortChunkKeys(keys)
	return keys
}

// Options configures an Evaluator.
type Options struct {
	// The minimum duration between two evaluations. Calls in between return
	// the cached result.
	MinInterval time.Duration

	// Skips the frustum tests, keeping only the distance based pruning.
	DisableCulling bool

	Clock clock.Clock
}

// Evaluator computes the set of visible chunks from a camera snapshot.
type Evaluator struct {
	minInterval    time.Duration
	disableCulling bool
	clock          clock.Clock

	mutex       sync.RWMutex
	lastRun     time.Time
	hasRun      bool
	invalidated bool
	result      Result
	frustum     spatial.Frustum
	camera      *models.Camera
	params      Params
	focusID     string
}

func NewEvaluator(opts Options) *Evaluator {
	if opts.MinInterval <= 0 {
		opts.MinInterval = DefaultMinInterval
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}

	return &Evaluator{
		minInterval:    opts.MinInterval,
		disableCulling: opts.DisableCulling,
		clock:          opts.Clock,
		result: Result{
			Keys: map[spatial.ChunkKey]struct{}{},
		},
	}
}

// Evaluate returns the visible chunk set and whether it was freshly computed.
// It runs at most once per MinInterval; a nil camera returns the cached
// result.
func (e *Evaluator) Evaluate(camera *models.Camera, index spatial.Partition, params Params) (Result, bool) {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	now := e.clock.Now()
	if e.hasRun && !e.invalidated && now.Sub(e.lastRun) < e.minInterval {
		return e.result, false
	}

	if e.focusID != "" {
		e.commit(now, e.evaluateFocus(index), camera, params)
		return e.result, true
	}

	if camera == nil {
		return e.result, false
	}

	if params.ChunkSize <= 0 {
		params.ChunkSize = index.ChunkSize()
	}
	if params.RenderDistance < 0 {
		params.RenderDistance = 0
	}

	frustum := spatial.NewFrustum(camera.ViewProjection())
	origin := spatial.ChunkKeyOf(camera.Position, params.ChunkSize)

	keys := make(map[spatial.ChunkKey]struct{})
	if !spatial.InChunkRange(camera.Position, params.ChunkSize) {
		e.frustum = frustum
		e.commit(now, keys, camera, params)
		return e.result, true
	}

	for _, k := range index.ChunksNear(origin, params.RenderDistance) {
		if !e.disableCulling && !frustum.IntersectsSphere(k.BoundingSphere(params.ChunkSize)) {
			continue
		}
		keys[k] = struct{}{}
	}

	e.frustum = frustum
	e.commit(now, keys, camera, params)
	return e.result, true
}

func (e *Evaluator) evaluateFocus(index spatial.Partition) map[spatial.ChunkKey]struct{} {
	keys := make(map[spatial.ChunkKey]struct{}, 1)
	if k, _, ok := index.Locate(e.focusID); ok {
		keys[k] = struct{}{}
	}
	return keys
}

func (e *Evaluator) commit(now time.Time, keys map[spatial.ChunkKey]struct{}, camera *models.Camera, params Params) {
	e.lastRun = now
	e.hasRun = true
	e.invalidated = false
	e.params = params
	if camera != nil {
		c := *camera
		e.camera = &c
	}

	e.result = Result{
		Keys:       keys,
		Generation: e.result.Generation + 1,
		FocusedID:  e.focusID,
	}
}

// ObjectVisible reports whether an object bounding sphere is inside the
// frustum and within maxDistance of the camera used by the last evaluation.
func (e *Evaluator) ObjectVisible(sphere spatial.Sphere, maxDistance float64) bool {
	e.mutex.RLock()
	defer e.mutex.RUnlock()

	if e.camera == nil {
		return false
	}

	if e.camera.DistanceTo(sphere.Center)-sphere.Radius > maxDistance {
		return false
	}

	if e.disableCulling {
		return true
	}
	return e.frustum.IntersectsSphere(sphere)
}

// Result returns the last computed result.
func (e *Evaluator) Result() Result {
	e.mutex.RLock()
	defer e.mutex.RUnlock()

	return e.result
}

// Camera returns a copy of the camera used by the last evaluation.
func (e *Evaluator) Camera() (models.Camera, bool) {
	e.mutex.RLock()
	defer e.mutex.RUnlock()

	if e.camera == nil {
		return models.Camera{}, false
	}
	return *e.camera, true
}

// Invalidate forces the next call to Evaluate to recompute.
func (e *Evaluator) Invalidate() {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	e.invalidated = true
}

// Focus restricts visibility to a single object until ClearFocus is called.
func (e *Evaluator) Focus(id string) {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	e.focusID = id
	e.invalidated = true
}

func (e *Evaluator) ClearFocus() {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	if e.focusID == "" {
		return
	}
	e.focusID = ""
	e.invalidated = true
}

func (e *Evaluator) FocusedID() string {
	e.mutex.RLock()
	defer e.mutex.RUnlock()

	return e.focusID
}
