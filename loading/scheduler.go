package loading

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/galacticai-space/galactic/spatial"
)

const (
	DefaultBatchSize  = 5
	DefaultBatchPause = 50 * time.Millisecond
)

// Options configures a Scheduler. Zero values are replaced by defaults.
type Options struct {
	// The name reported in metrics.
	Name string

	// The number of chunks promoted at once.
	BatchSize int

	// The pause between two batches.
	BatchPause time.Duration

	Clock clock.Clock
}

// Stats is a point in time view of a Scheduler.
type Stats struct {
	Loaded   int    `json:"loaded"`
	Queued   int    `json:"queued"`
	Promoted uint64 `json:"promoted"`
	Evicted  uint64 `json:"evicted"`
}

// Scheduler paces how fast visible chunks become loaded. Newly visible chunks
// are queued once and promoted in small batches by a single worker; chunks
// that stop being visible are evicted from both the queue and the loaded set.
type Scheduler struct {
	name       string
	batchSize  int
	batchPause time.Duration
	clock      clock.Clock

	mutex    sync.Mutex
	queue    []spatial.ChunkKey
	queued   map[spatial.ChunkKey]struct{}
	loaded   map[spatial.ChunkKey]struct{}
	bypass   bool
	promoted uint64
	evicted  uint64

	wake      chan struct{}
	startOnce sync.Once
}

func New(opts Options) *Scheduler {
	if opts.Name == "" {
		opts.Name = "default"
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.BatchPause <= 0 {
		opts.BatchPause = DefaultBatchPause
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}

	return &Scheduler{
		name:       opts.Name,
		batchSize:  opts.BatchSize,
		batchPause: opts.BatchPause,
		clock:      opts.Clock,
		queued:     make(map[spatial.ChunkKey]struct{}),
		loaded:     make(map[spatial.ChunkKey]struct{}),
		wake:       make(chan struct{}, 1),
	}
}

// OnChunkBecameVisible queues a chunk for loading unless it is already loaded
// or queued. In bypass mode the chunk is loaded immediately.
func (s *Scheduler) OnChunkBecameVisible(k spatial.ChunkKey) {
	s.mutex.Lock()
	enqueued := s.enqueue(k)
	s.mutex.Unlock()

	if enqueued {
		s.signal()
	}
}

func (s *Scheduler) enqueue(k spatial.ChunkKey) bool {
	if _, ok := s.loaded[k]; ok {
		return false
	}

	if s.bypass {
		s.loaded[k] = struct{}{}
		s.promoted++
		instrumentPromotions(s.name, 1)
		return false
	}

	if _, ok := s.queued[k]; ok {
		return false
	}

	s.queue = append(s.queue, k)
	s.queued[k] = struct{}{}
	return true
}

func (s *Scheduler) IsLoaded(k spatial.ChunkKey) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	_, ok := s.loaded[k]
	return ok
}

func (s *Scheduler) IsQueued(k spatial.ChunkKey) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	_, ok := s.queued[k]
	return ok
}

// Evict marks a chunk as unloaded and drops it from the queue.
func (s *Scheduler) Evict(k spatial.ChunkKey) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.evict(func(key spatial.ChunkKey) bool {
		return key == k
	})
}

func (s *Scheduler) evict(match func(spatial.ChunkKey) bool) {
	var evicted int
	for k := range s.loaded {
		if match(k) {
			delete(s.loaded, k)
			evicted++
		}
	}

	queue := s.queue[:0]
	for _, k := range s.queue {
		if match(k) {
			delete(s.queued, k)
			continue
		}
		queue = append(queue, k)
	}
	s.queue = queue

	if evicted != 0 {
		s.evicted += uint64(evicted)
		instrumentEvictions(s.name, evicted)
	}
}

// Sync aligns the scheduler with a new visible set: chunks that are no
// longer visible are evicted and newly visible ones are queued.
func (s *Scheduler) Sync(visible map[spatial.ChunkKey]struct{}) {
	s.mutex.Lock()

	s.evict(func(k spatial.ChunkKey) bool {
		_, ok := visible[k]
		return !ok
	})

	keys := make([]spatial.ChunkKey, 0, len(visible))
	for k := range visible {
		keys = append(keys, k)
	}
	spatial.SortChunkKeys(keys)

	var enqueued bool
	for _, k := range keys {
		enqueued = s.enqueue(k) || enqueued
	}
	s.mutex.Unlock()

	if enqueued {
		s.signal()
	}
}

// DrainBatch promotes up to one batch of queued chunks and returns how many
// were promoted.
func (s *Scheduler) DrainBatch() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	n := s.batchSize
	if n > len(s.queue) {
		n = len(s.queue)
	}

	for _, k := range s.queue[:n] {
		delete(s.queued, k)
		s.loaded[k] = struct{}{}
	}
	s.queue = append(s.queue[:0], s.queue[n:]...)

	if n != 0 {
		s.promoted += uint64(n)
		instrumentPromotions(s.name, n)
	}
	return n
}

// SetBypass enables or disables pacing. Enabling it loads every queued chunk
// at once.
func (s *Scheduler) SetBypass(v bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.bypass = v
	if !v || len(s.queue) == 0 {
		return
	}

	for _, k := range s.queue {
		delete(s.queued, k)
		s.loaded[k] = struct{}{}
	}
	s.promoted += uint64(len(s.queue))
	instrumentPromotions(s.name, len(s.queue))
	s.queue = s.queue[:0]
}

func (s *Scheduler) Bypass() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return s.bypass
}

func (s *Scheduler) Stats() Stats {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return Stats{
		Loaded:   len(s.loaded),
		Queued:   len(s.queue),
		Promoted: s.promoted,
		Evicted:  s.evicted,
	}
}

// Queue returns a copy of the pending queue in promotion order.
func (s *Scheduler) Queue() []spatial.ChunkKey {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return append([]spatial.ChunkKey(nil), s.queue...)
}

// Start runs the promotion worker until ctx is done. Calling Start more than
// once has no effect.
func (s *Scheduler) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		go s.run(ctx)
	})
}

func (s *Scheduler) run(ctx context.Context) {
	for {
		if s.DrainBatch() != 0 {
			timer := s.clock.Timer(s.batchPause)
			select {
			case <-ctx.Done():
				timer.Stop()
				return

			case <-timer.C:
			}
			continue
		}

		select {
		case <-ctx.Done():
			return

		case <-s.wake:
		}
	}
}

func (s *Scheduler) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}
