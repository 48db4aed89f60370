package frame

import (
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// DefaultFrameDuration is the frame duration of a 60 fps display.
const DefaultFrameDuration = time.Second / 60

// Handler is a function called once per frame with the frame time.
type Handler func(now time.Time)

// Loop dispatches frames to the registered handlers at a fixed rate. Handlers
// are called in registration order.
type Loop struct {
	clock         clock.Clock
	frameDuration time.Duration

	startFrameOnce sync.Once
	closeFrameChan chan struct{}
	closeOnce      sync.Once

	frameMutex     sync.RWMutex
	frameHandlerID uint32
	frameHandlers  map[uint32]Handler
	frames         uint64
}

func NewLoop(frameDuration time.Duration, clk clock.Clock) *Loop {
	if frameDuration <= 0 {
		frameDuration = DefaultFrameDuration
	}
	if clk == nil {
		clk = clock.New()
	}

	return &Loop{
		clock:          clk,
		frameDuration:  frameDuration,
		closeFrameChan: make(chan struct{}),
		frameHandlers:  make(map[uint32]Handler),
	}
}

// HandleFrame registers h to be called on each frame. The returned function
// unregisters it.
func (l *Loop) HandleFrame(h Handler) (cancel func()) {
	l.frameMutex.Lock()
	defer l.frameMutex.Unlock()

	l.frameHandlerID++
	id := l.frameHandlerID
	l.frameHandlers[id] = h

	return func() {
		l.frameMutex.Lock()
		defer l.frameMutex.Unlock()

		delete(l.frameHandlers, id)
	}
}

// Start dispatches frames until Close is called. It blocks and only runs once.
func (l *Loop) Start() {
	l.startFrameOnce.Do(func() {
		ticker := l.clock.Ticker(l.frameDuration)
		defer ticker.Stop()

		for {
			select {
			case <-l.closeFrameChan:
				return

			case now := <-ticker.C:
				l.dispatch(now)
			}
		}
	})
}

func (l *Loop) dispatch(now time.Time) {
	l.frameMutex.Lock()
	l.frames++
	ids := make([]uint32, 0, len(l.frameHandlers))
	for id := range l.frameHandlers {
		ids = append(ids, id)
	}
	handlers := make([]Handler, 0, len(ids))
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		handlers = append(handlers, l.frameHandlers[id])
	}
	l.frameMutex.Unlock()

	for _, h := range handlers {
		h(now)
	}
}

// Frames returns the number of dispatched frames.
func (l *Loop) Frames() uint64 {
	l.frameMutex.RLock()
	defer l.frameMutex.RUnlock()

	return l.frames
}

func (l *Loop) Close() {
	l.closeOnce.Do(func() {
		close(l.closeFrameChan)
	})
}
