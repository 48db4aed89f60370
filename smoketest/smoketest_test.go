package smoketest

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/galacticai-space/galactic/featureflag"
	"github.com/galacticai-space/galactic/optimizer"
	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/require"
)

func newOptimizer(flags ...string) func() *optimizer.UniverseOptimizer {
	return func() *optimizer.UniverseOptimizer {
		return optimizer.New(optimizer.Options{
			Name:         "smoketest",
			FeatureFlags: featureflag.New(flags),
		})
	}
}

func TestRun(t *testing.T) {
	t.Run("paced loading", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		res := Run(ctx, newOptimizer(string(featureflag.FlagSkipWarmup)))
		require.True(t, res.Passed, "%+v", res.Checks)
		require.Len(t, res.Checks, 4)
		require.Positive(t, res.DurationMs)
	})

	t.Run("warm-up", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		res := Run(ctx, newOptimizer())
		require.True(t, res.Passed, "%+v", res.Checks)
	})

	t.Run("timeout", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		res := Run(ctx, newOptimizer(string(featureflag.FlagSkipWarmup)))
		require.False(t, res.Passed)
		require.True(t, res.Checks[0].Passed)
		require.False(t, res.Checks[len(res.Checks)-1].Passed)
		require.NotEmpty(t, res.Checks[len(res.Checks)-1].Error)
	})
}

func TestHandleSmokeTest(t *testing.T) {
	t.Run("smoke test success", func(t *testing.T) {
		var sent Results
		h := HandleSmokeTest(context.Background(), Options{
			NewOptimizer: newOptimizer(string(featureflag.FlagSkipWarmup)),
			SendResult: func(_ context.Context, res Results) error {
				sent = res
				return nil
			},
		})

		w := httptest.NewRecorder()
		h(w, httptest.NewRequest(http.MethodPost, "/smoke-test", bytes.NewBufferString(`{"timeout":"5s"}`)))
		require.Equal(t, http.StatusOK, w.Code)

		var res Results
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
		require.True(t, res.Passed)
		require.Equal(t, sent, res)
	})

	t.Run("bad request", func(t *testing.T) {
		h := HandleSmokeTest(context.Background(), Options{
			NewOptimizer: newOptimizer(),
		})

		w := httptest.NewRecorder()
		h(w, httptest.NewRequest(http.MethodPost, "/smoke-test", bytes.NewBufferString(`{"timeout":"soon"}`)))
		require.Equal(t, http.StatusBadRequest, w.Code)

		w = httptest.NewRecorder()
		h(w, httptest.NewRequest(http.MethodPost, "/smoke-test", bytes.NewBufferString(`{`)))
		require.Equal(t, http.StatusBadRequest, w.Code)

		w = httptest.NewRecorder()
		h(w, httptest.NewRequest(http.MethodGet, "/smoke-test", nil))
		require.Equal(t, http.StatusMethodNotAllowed, w.Code)
	})
}
