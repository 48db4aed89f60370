package main

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/http/pprof"
	"os"
	"reflect"
	"syscall"
	"time"

	"github.com/aukilabs/go-tooling/pkg/cli"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/go-tooling/pkg/metrics"
	"github.com/benbjohnson/clock"
	galacticconfig "github.com/galacticai-space/galactic/config"
	"github.com/galacticai-space/galactic/featureflag"
	"github.com/galacticai-space/galactic/frame"
	galactichttp "github.com/galacticai-space/galactic/http"
	"github.com/galacticai-space/galactic/models"
	"github.com/galacticai-space/galactic/optimizer"
	"github.com/galacticai-space/galactic/smoketest"
	"github.com/golang/geo/r3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/encoding/json"
)

var (
	// The Galactic version number. Set at build.
	version = "v0.1.0"

	infoGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name:        "galactic_info",
		Help:        "Galactic information.",
		ConstLabels: prometheus.Labels{"version": version},
	})
)

// This will effectively disable obfuscation of the config struct. Without it, the keys would get obfuscated causing the cli package to generate garbled command-line options.
// https://github.com/burrowers/garble/issues/403
var _ = reflect.TypeOf(config{})

type config struct {
	Addr               string        `cli:""        env:"GALACTIC_ADDR"                 help:"Listening address for the stats API."`
	AdminAddr          string        `cli:""        env:"GALACTIC_ADMIN_ADDR"           help:"Admin listening address."`
	LogLevel           string        `cli:""        env:"GALACTIC_LOG_LEVEL"            help:"Log level (debug|info|warning|error)."`
	LogIndent          bool          `cli:""        env:"GALACTIC_LOG_INDENT"           help:"Indent logs."`
	TuningFile         string        `cli:""        env:"GALACTIC_TUNING_FILE"          help:"YAML file that overrides the visibility tuning."`
	Transactions       int           `cli:""        env:"GALACTIC_TRANSACTIONS"         help:"The number of simulated transactions."`
	Seed               uint64        `cli:",hidden" env:"GALACTIC_SEED"                 help:"The seed of the simulated transactions."`
	RefreshInterval    time.Duration `cli:",hidden" env:"GALACTIC_REFRESH_INTERVAL"     help:"The duration between each batch of new simulated transactions."`
	OrbitPeriod        time.Duration `cli:",hidden" env:"GALACTIC_ORBIT_PERIOD"         help:"The duration of a full camera orbit."`
	OrbitRadius        float64       `cli:",hidden" env:"GALACTIC_ORBIT_RADIUS"         help:"The distance between the camera and the universe center."`
	FrameDuration      time.Duration `cli:",hidden" env:"GALACTIC_FRAME_DURATION"       help:"The duration of a frame."`
	LogSummaryInterval time.Duration `cli:",hidden" env:"GALACTIC_LOG_SUMMARY_INTERVAL" help:"The duration between each optimizer log summary."`
	ShutdownTimeout    time.Duration `cli:",hidden" env:"GALACTIC_SHUTDOWN_TIMEOUT"     help:"The time given to servers to finish in-flight requests."`
	FeatureFlags       []string      `cli:",hidden" env:"GALACTIC_FEATURE_FLAGS"        help:"Comma separated feature flags"`
	Version            bool          `cli:""        env:"-"                             help:"Show version."`
	Help               bool          `cli:""        env:"-"                             help:"Show help."`
}

func main() {
	conf := config{
		Addr:               ":4000",
		AdminAddr:          ":18190",
		LogLevel:           logs.InfoLevel.String(),
		Transactions:       2000,
		Seed:               1,
		RefreshInterval:    time.Second * 30,
		OrbitPeriod:        time.Minute,
		OrbitRadius:        1200,
		FrameDuration:      frame.DefaultFrameDuration,
		LogSummaryInterval: time.Minute,
		ShutdownTimeout:    time.Second * 5,
	}

	// set the information gauge to 1, useful for SUM query
	infoGauge.Set(1)

	ctx, cancel := cli.ContextWithSignals(context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer cancel()

	cli.Register().
		Help("Starts the Galactic visibility core against a simulated universe.").
		Options(&conf)
	cli.Load()

	if conf.Version {
		fmt.Println(version)
		os.Exit(0)
	}

	logs.SetLevel(logs.ParseLevel(conf.LogLevel))
	logs.Encoder = json.Marshal
	if conf.LogIndent {
		logs.Encoder = func(v any) ([]byte, error) {
			return json.MarshalIndent(v, "", "  ")
		}
	}

	errors.Encoder = json.Marshal

	if err := validateConfig(conf); err != nil {
		logs.Fatal(err)
	}

	tuning, err := loadTuning(conf)
	if err != nil {
		logs.Fatal(err)
	}

	clk := clock.New()
	base := optimizer.New(tuning.Options("galactic", featureflag.New(conf.FeatureFlags), clk))

	var o optimizer.Optimizer = base
	o = optimizer.WithLogs(o, conf.LogSummaryInterval, clk)
	o = optimizer.WithMetrics(o, "galactic")
	defer o.Close()

	universe := newUniverse(conf, clk.Now())
	o.UpdateChunks(universe.Objects())
	o.Initialize(orbitingCamera(conf, 0))

	loop := frame.NewLoop(conf.FrameDuration, clk)
	defer loop.Close()

	start := clk.Now()
	loop.HandleFrame(func(now time.Time) {
		o.SetCamera(orbitingCamera(conf, now.Sub(start)))
		o.Tick()
	})
	go loop.Start()

	go refreshUniverse(ctx, conf, clk, universe, o)

	var service http.ServeMux
	service.Handle("/health", galactichttp.HandleWithCORS(http.HandlerFunc(galactichttp.HandleHealthCheck)))
	service.Handle("/version", galactichttp.HandleWithCORS(galactichttp.HandleVersion(version)))
	service.Handle("/ready", galactichttp.HandleWithCORS(galactichttp.HandleReadyCheck(base.Ready)))
	service.Handle("/stats", galactichttp.HandleWithCORS(galactichttp.HandleJSON(o.Stats)))
	service.Handle("/visible", galactichttp.HandleWithCORS(galactichttp.HandleJSON(o.VisibleObjectIDs)))
	service.Handle("/chunks", galactichttp.HandleWithCORS(galactichttp.HandleJSON(base.Index().DebugInfo)))
	service.HandleFunc("/smoke-test", smoketest.HandleSmokeTest(ctx, smoketest.Options{
		NewOptimizer: func() *optimizer.UniverseOptimizer {
			return optimizer.New(tuning.Options("smoketest", featureflag.New(conf.FeatureFlags), clock.New()))
		},
		SendResult: func(_ context.Context, res smoketest.Results) error {
			logs.WithTag("passed", res.Passed).
				WithTag("duration_ms", res.DurationMs).
				WithTag("checks", res.Checks).
				Info("smoke test completed")
			return nil
		},
	}))

	var admin http.ServeMux
	admin.Handle("/metrics", promhttp.Handler())
	admin.HandleFunc("/health", galactichttp.HandleHealthCheck)
	admin.HandleFunc("/debug/pprof/", pprof.Index)
	admin.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	admin.HandleFunc("/debug/pprof/profile", pprof.Profile)
	admin.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	admin.HandleFunc("/debug/pprof/trace", pprof.Trace)
	admin.Handle("/debug/pprof/goroutine", pprof.Handler("goroutine"))
	admin.Handle("/debug/pprof/heap", pprof.Handler("heap"))
	admin.Handle("/debug/pprof/threadcreate", pprof.Handler("threadcreate"))
	admin.Handle("/debug/pprof/block", pprof.Handler("block"))
	admin.HandleFunc("/ready", galactichttp.HandleReadyCheck(base.Ready))

	logs.WithTag("version", version).
		WithTag("log_level", conf.LogLevel).
		WithTag("optimizer_id", o.ID()).
		WithTag("transactions", conf.Transactions).
		WithTag("feature_flags", conf.FeatureFlags).
		Info("starting galactic")

	galactichttp.ListenAndServe(ctx, conf.ShutdownTimeout,
		&http.Server{Addr: conf.Addr, Handler: metrics.HTTPHandler(&service,
			galactichttp.MetricsPathFormatter)},
		&http.Server{Addr: conf.AdminAddr, Handler: &admin},
	)
}

func validateConfig(conf config) error {
	switch {
	case conf.Transactions < 0:
		return errors.New("transactions must not be negative").
			WithTag("transactions", conf.Transactions)

	case conf.OrbitPeriod <= 0:
		return errors.New("orbit period must be positive").
			WithTag("orbit_period", conf.OrbitPeriod)

	case conf.RefreshInterval <= 0:
		return errors.New("refresh interval must be positive").
			WithTag("refresh_interval", conf.RefreshInterval)

	case conf.LogSummaryInterval <= 0:
		return errors.New("log summary interval must be positive").
			WithTag("log_summary_interval", conf.LogSummaryInterval)
	}
	return nil
}

func loadTuning(conf config) (galacticconfig.Tuning, error) {
	if conf.TuningFile == "" {
		return galacticconfig.Default(), nil
	}
	return galacticconfig.Load(conf.TuningFile)
}

// orbitingCamera returns a camera circling the universe center, elapsed time
// into its orbit.
func orbitingCamera(conf config, elapsed time.Duration) *models.Camera {
	angle := 2 * math.Pi * float64(elapsed%conf.OrbitPeriod) / float64(conf.OrbitPeriod)

	position := r3.Vector{
		X: math.Cos(angle) * conf.OrbitRadius,
		Y: conf.OrbitRadius / 6,
		Z: math.Sin(angle) * conf.OrbitRadius,
	}
	return models.NewPerspectiveCamera(position, r3.Vector{}, 60, 16.0/9, 0.1, 10000)
}
