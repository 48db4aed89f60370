package smoketest

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/galacticai-space/galactic/models"
	"github.com/galacticai-space/galactic/optimizer"
	"github.com/galacticai-space/galactic/spatial"
	"github.com/golang/geo/r3"
	"github.com/samber/lo"
	"github.com/segmentio/encoding/json"
)

const DefaultTimeout = 5 * time.Second

// Options configures a smoke test.
type Options struct {
	// Returns a new optimizer. Each run uses its own instance that is closed
	// at the end of the run.
	NewOptimizer func() *optimizer.UniverseOptimizer

	// Called with the results of each run.
	SendResult func(context.Context, Results) error
}

// Request is the optional body of a smoke test request.
type Request struct {
	Timeout string `json:"timeout,omitempty"`
}

// Results are the outcome of a smoke test run.
type Results struct {
	Passed     bool    `json:"passed"`
	DurationMs float64 `json:"duration_ms"`
	Checks     []Check `json:"checks"`
}

type Check struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Error  string `json:"error,omitempty"`
}

// HandleSmokeTest runs the visibility pipeline against a scripted scene and
// responds with the results.
func HandleSmokeTest(ctx context.Context, opts Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		b, err := io.ReadAll(r.Body)
		if err != nil {
			logs.Warn(errors.New("reading body failed").Wrap(err))
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		timeout := DefaultTimeout
		if len(b) != 0 {
			var req Request
			if err := json.Unmarshal(b, &req); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}

			if req.Timeout != "" {
				if timeout, err = time.ParseDuration(req.Timeout); err != nil || timeout <= 0 {
					w.WriteHeader(http.StatusBadRequest)
					return
				}
			}
		}

		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		res := Run(ctx, opts.NewOptimizer)
		if opts.SendResult != nil {
			if err := opts.SendResult(ctx, res); err != nil {
				logs.Warn(errors.New("sending smoke test result failed").Wrap(err))
			}
		}

		body, err := json.Marshal(res)
		if err != nil {
			logs.Warn(errors.New("encoding smoke test result failed").Wrap(err))
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if !res.Passed {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}
		w.Write(body)
	}
}

// Run executes the smoke test checks in order. A failed check does not stop
// the following ones.
func Run(ctx context.Context, newOptimizer func() *optimizer.UniverseOptimizer) Results {
	start := time.Now()

	o := newOptimizer()
	defer o.Close()

	origin := spatial.ChunkKey{}
	far := spatial.ChunkKey{X: 10}
	chunkSize := o.Index().ChunkSize()

	checks := []struct {
		name string
		run  func() error
	}{
		{
			name: "empty universe",
			run: func() error {
				o.Initialize(lookingForward(origin.Center(chunkSize)))
				o.UpdateChunks(nil)
				o.Tick()

				if s := o.Stats(); s.VisibleCount != 0 || s.LoadedCount != 0 || s.QueuedCount != 0 {
					return errors.New("unexpected chunks").
						WithTag("stats", s)
				}
				return nil
			},
		},
		{
			name: "object at origin is visible",
			run: func() error {
				o.UpdateChunks([]models.Object{
					{ID: "origin", Position: origin.Center(chunkSize), Weight: 1},
					{ID: "far", Position: far.Center(chunkSize), Weight: 1},
				})
				o.Index().Flush()

				return waitFor(ctx, "origin chunk is not visible", func() bool {
					o.Tick()
					return lo.Contains(o.VisibleObjectIDs(), "origin") || o.Scheduler().IsQueued(origin)
				})
			},
		},
		{
			name: "object at origin is loaded",
			run: func() error {
				return waitFor(ctx, "origin chunk is not loaded", func() bool {
					o.Tick()
					return o.Scheduler().IsLoaded(origin)
				})
			},
		},
		{
			name: "camera jump evicts chunks",
			run: func() error {
				o.SetCamera(lookingForward(far.Center(chunkSize)))

				return waitFor(ctx, "origin chunk is still loaded", func() bool {
					o.Tick()
					return !o.Scheduler().IsLoaded(origin) && o.Scheduler().IsLoaded(far)
				})
			},
		},
	}

	res := Results{Passed: true}
	for _, c := range checks {
		check := Check{Name: c.name, Passed: true}
		if err := c.run(); err != nil {
			check.Passed = false
			check.Error = err.Error()
			res.Passed = false
		}
		res.Checks = append(res.Checks, check)
	}

	res.DurationMs = float64(time.Since(start)) / float64(time.Millisecond)
	return res
}

func waitFor(ctx context.Context, failure string, condition func() bool) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		if condition() {
			return nil
		}

		select {
		case <-ctx.Done():
			return errors.New(failure).Wrap(ctx.Err())

		case <-ticker.C:
		}
	}
}

func lookingForward(position r3.Vector) *models.Camera {
	return models.NewPerspectiveCamera(position, position.Add(r3.Vector{Z: -1}), 60, 16.0/9, 0.1, 10000)
}
