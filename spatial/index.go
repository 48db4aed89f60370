package spatial

import (
	"sort"
	"sync"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/galacticai-space/galactic/models"
	"github.com/golang/geo/r3"
)

const (
	DefaultBatchSize   = 50
	DefaultRadiusScale = 2
	DefaultMaxRadius   = 20

	// ErrTypeMalformedObject is the error type reported for objects skipped
	// during an assignment pass.
	ErrTypeMalformedObject = "malformed_object"
)

// IndexOptions configures an Index. Zero values are replaced by defaults.
type IndexOptions struct {
	ChunkSize   float64
	BatchSize   int
	RadiusScale float64
	MaxRadius   float64
}

// Index buckets object positions into fixed size chunks.
//
// Assignments are processed in batches: Assign only records the objects and
// each call to Advance indexes up to BatchSize of them. Readers keep seeing
// the previously published snapshot until a pass completes, at which point
// the new snapshot replaces it as a whole.
type Index struct {
	chunkSize   float64
	batchSize   int
	radiusScale float64
	maxRadius   float64

	mutex      sync.RWMutex
	current    *snapshot
	pending    *assignment
	generation uint64
}

type entry struct {
	key      ChunkKey
	rank     int
	weight   float64
	position r3.Vector
	sphere   Sphere
}

// snapshot is immutable once published.
type snapshot struct {
	generation uint64
	chunks     map[ChunkKey][]string
	entries    map[string]entry
	skipped    int
}

type assignment struct {
	generation uint64
	objects    []models.Object
	next       int
	entries    map[string]entry
	skipped    int
}

func NewIndex(opts IndexOptions) *Index {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.RadiusScale <= 0 {
		opts.RadiusScale = DefaultRadiusScale
	}
	if opts.MaxRadius <= 0 {
		opts.MaxRadius = DefaultMaxRadius
	}

	return &Index{
		chunkSize:   opts.ChunkSize,
		batchSize:   opts.BatchSize,
		radiusScale: opts.RadiusScale,
		maxRadius:   opts.MaxRadius,
	}
}

func (idx *Index) ChunkSize() float64 {
	return idx.chunkSize
}

// Assign starts a new assignment pass with the given objects. A pass that is
// still in progress is discarded.
func (idx *Index) Assign(objects []models.Object) {
	idx.mutex.Lock()
	defer idx.mutex.Unlock()

	if idx.pending != nil {
		logs.WithTag("generation", idx.pending.generation).
			WithTag("processed", idx.pending.next).
			WithTag("total", len(idx.pending.objects)).
			Debug("discarding partial chunk assignment")
	}

	idx.generation++
	idx.pending = &assignment{
		generation: idx.generation,
		objects:    append([]models.Object(nil), objects...),
		entries:    make(map[string]entry, len(objects)),
	}
}

// Advance processes one batch of the pending pass and reports whether there is
// nothing left to process.
func (idx *Index) Advance() bool {
	idx.mutex.Lock()
	defer idx.mutex.Unlock()

	return idx.advance()
}

// Flush runs the pending pass to completion.
func (idx *Index) Flush() {
	idx.mutex.Lock()
	defer idx.mutex.Unlock()

	for !idx.advance() {
	}
}

func (idx *Index) advance() bool {
	a := idx.pending
	if a == nil {
		return true
	}

	end := a.next + idx.batchSize
	if end > len(a.objects) {
		end = len(a.objects)
	}

	for ; a.next < end; a.next++ {
		o := a.objects[a.next]
		if !o.Valid() || !InChunkRange(o.Position, idx.chunkSize) {
			a.skipped++
			logs.Warn(errors.New("skipping malformed object").
				WithType(ErrTypeMalformedObject).
				WithTag("object_id", o.ID).
				WithTag("index", a.next).
				WithTag("generation", a.generation))
			continue
		}

		a.entries[o.ID] = entry{
			key:      ChunkKeyOf(o.Position, idx.chunkSize),
			weight:   o.Weight,
			position: o.Position,
			sphere:   SphereForWeight(o.Position, o.Weight, idx.radiusScale, idx.maxRadius),
		}
	}

	if a.next < len(a.objects) {
		return false
	}

	idx.current = a.publish()
	idx.pending = nil
	return true
}

func (a *assignment) publish() *snapshot {
	chunks := make(map[ChunkKey][]string)
	for id, e := range a.entries {
		chunks[e.key] = append(chunks[e.key], id)
	}

	for k, ids := range chunks {
		sort.Slice(ids, func(i, j int) bool {
			wi := a.entries[ids[i]].weight
			wj := a.entries[ids[j]].weight
			if wi != wj {
				return wi > wj
			}
			return ids[i] < ids[j]
		})

		for rank, id := range ids {
			e := a.entries[id]
			e.rank = rank
			a.entries[id] = e
		}
		chunks[k] = ids
	}

	return &snapshot{
		generation: a.generation,
		chunks:     chunks,
		entries:    a.entries,
		skipped:    a.skipped,
	}
}

func (idx *Index) snapshot() *snapshot {
	idx.mutex.RLock()
	defer idx.mutex.RUnlock()

	return idx.current
}

// Ready reports whether a first assignment pass has been published.
func (idx *Index) Ready() bool {
	return idx.snapshot() != nil
}

// Pending reports whether an assignment pass is in progress.
func (idx *Index) Pending() bool {
	idx.mutex.RLock()
	defer idx.mutex.RUnlock()

	return idx.pending != nil
}

func (idx *Index) HasChunk(k ChunkKey) bool {
	s := idx.snapshot()
	if s == nil {
		return false
	}

	_, ok := s.chunks[k]
	return ok
}

// ChunksNear returns the sorted keys of the indexed chunks whose Euclidean
// chunk offset from origin is at most radius.
func (idx *Index) ChunksNear(origin ChunkKey, radius int) []ChunkKey {
	s := idx.snapshot()
	if s == nil || radius < 0 || len(s.chunks) == 0 {
		return []ChunkKey{}
	}

	maxDistSq := radius * radius
	keys := make([]ChunkKey, 0)

	// Scanning the stored chunks is cheaper than scanning the offset cube
	// when the index is sparse relative to the radius.
	side := 2*radius + 1
	if side*side*side > len(s.chunks) {
		for k := range s.chunks {
			if k.DistanceSquared(origin) <= maxDistSq {
				keys = append(keys, k)
			}
		}
		SortChunkKeys(keys)
		return keys
	}

	for dx := -radius; dx <= radius; dx++ {
		for dy := -radius; dy <= radius; dy++ {
			for dz := -radius; dz <= radius; dz++ {
				if dx*dx+dy*dy+dz*dz > maxDistSq {
					continue
				}

				k := origin.Offset(dx, dy, dz)
				if _, ok := s.chunks[k]; ok {
					keys = append(keys, k)
				}
			}
		}
	}
	return keys
}

// Members returns the ids assigned to a chunk, heaviest first.
func (idx *Index) Members(k ChunkKey) []string {
	s := idx.snapshot()
	if s == nil {
		return nil
	}
	return append([]string(nil), s.chunks[k]...)
}

func (idx *Index) BoundingVolume(id string) (Sphere, bool) {
	s := idx.snapshot()
	if s == nil {
		return Sphere{}, false
	}

	e, ok := s.entries[id]
	return e.sphere, ok
}

// Locate returns the chunk of an object and its rank within that chunk.
func (idx *Index) Locate(id string) (ChunkKey, int, bool) {
	s := idx.snapshot()
	if s == nil {
		return ChunkKey{}, 0, false
	}

	e, ok := s.entries[id]
	return e.key, e.rank, ok
}

func (idx *Index) Position(id string) (r3.Vector, bool) {
	s := idx.snapshot()
	if s == nil {
		return r3.Vector{}, false
	}

	e, ok := s.entries[id]
	return e.position, ok
}

func (idx *Index) ChunkCount() int {
	s := idx.snapshot()
	if s == nil {
		return 0
	}
	return len(s.chunks)
}

func (idx *Index) ObjectCount() int {
	s := idx.snapshot()
	if s == nil {
		return 0
	}
	return len(s.entries)
}

func (idx *Index) DebugInfo() DebugInfo {
	s := idx.snapshot()

	result := DebugInfo{
		ChunkSize: idx.chunkSize,
		Pending:   idx.Pending(),
		Occupancy: make(map[ChunkKey]int),
	}
	if s == nil {
		return result
	}

	result.ChunkCount = len(s.chunks)
	result.ObjectCount = len(s.entries)
	result.SkipCount = s.skipped
	result.Generation = s.generation

	first := true
	for k, ids := range s.chunks {
		result.Occupancy[k] = len(ids)

		if first {
			result.MinChunk = k
			result.MaxChunk = k
			first = false
			continue
		}

		result.MinChunk = ChunkKey{X: min(result.MinChunk.X, k.X), Y: min(result.MinChunk.Y, k.Y), Z: min(result.MinChunk.Z, k.Z)}
		result.MaxChunk = ChunkKey{X: max(result.MaxChunk.X, k.X), Y: max(result.MaxChunk.Y, k.Y), Z: max(result.MaxChunk.Z, k.Z)}
	}
	return result
}
