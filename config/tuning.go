package config

import (
	"os"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/benbjohnson/clock"
	"github.com/galacticai-space/galactic/featureflag"
	"github.com/galacticai-space/galactic/loading"
	"github.com/galacticai-space/galactic/lod"
	"github.com/galacticai-space/galactic/optimizer"
	"github.com/galacticai-space/galactic/perf"
	"github.com/galacticai-space/galactic/spatial"
	"github.com/galacticai-space/galactic/visibility"
	"gopkg.in/yaml.v3"
)

// ErrTypeInvalidTuning is the error type returned when a tuning file holds
// inconsistent values.
const ErrTypeInvalidTuning = "invalid_tuning"

// Tuning holds the constants of the visibility core.
type Tuning struct {
	ChunkSize float64 `yaml:"chunk_size"`

	Index      IndexTuning      `yaml:"index"`
	Visibility VisibilityTuning `yaml:"visibility"`
	Loading    LoadingTuning    `yaml:"loading"`
	Monitor    MonitorTuning    `yaml:"monitor"`
	LOD        LODTuning        `yaml:"lod"`

	Warmup []optimizer.WarmupStage `yaml:"warmup"`
}

type IndexTuning struct {
	BatchSize   int     `yaml:"batch_size"`
	RadiusScale float64 `yaml:"radius_scale"`
	MaxRadius   float64 `yaml:"max_radius"`
}

type VisibilityTuning struct {
	MinInterval time.Duration `yaml:"min_interval"`
}

type LoadingTuning struct {
	BatchSize  int           `yaml:"batch_size"`
	BatchPause time.Duration `yaml:"batch_pause"`
}

type MonitorTuning struct {
	Window             int         `yaml:"window"`
	StabilizationCount int         `yaml:"stabilization_count"`
	LowWaterFPS        float64     `yaml:"low_water_fps"`
	HighWaterFPS       float64     `yaml:"high_water_fps"`
	Bounds             perf.Bounds `yaml:"bounds"`
	Initial            perf.Params `yaml:"initial"`
}

type LODTuning struct {
	HighFraction   float64 `yaml:"high_fraction"`
	MediumFraction float64 `yaml:"medium_fraction"`
	LowWaterFPS    float64 `yaml:"low_water_fps"`
	HighWaterFPS   float64 `yaml:"high_water_fps"`
}

// Default returns the built-in tuning.
func Default() Tuning {
	return Tuning{
		ChunkSize: spatial.DefaultChunkSize,
		Index: IndexTuning{
			BatchSize:   spatial.DefaultBatchSize,
			RadiusScale: spatial.DefaultRadiusScale,
			MaxRadius:   spatial.DefaultMaxRadius,
		},
		Visibility: VisibilityTuning{
			MinInterval: visibility.DefaultMinInterval,
		},
		Loading: LoadingTuning{
			BatchSize:  loading.DefaultBatchSize,
			BatchPause: loading.DefaultBatchPause,
		},
		Monitor: MonitorTuning{
			Window:             perf.DefaultWindow,
			StabilizationCount: perf.DefaultStabilizationCount,
			LowWaterFPS:        perf.DefaultLowWaterFPS,
			HighWaterFPS:       perf.DefaultHighWaterFPS,
			Bounds:             perf.DefaultBounds(),
			Initial:            optimizer.DefaultInitialParams,
		},
		LOD: LODTuning{
			HighFraction:   lod.DefaultHighFraction,
			MediumFraction: lod.DefaultMediumFraction,
			LowWaterFPS:    lod.DefaultLowWaterFPS,
			HighWaterFPS:   lod.DefaultHighWaterFPS,
		},
		Warmup: optimizer.DefaultWarmupStages(),
	}
}

// Load reads a YAML tuning file. Values missing from the file keep their
// default.
func Load(path string) (Tuning, error) {
	t := Default()

	raw, err := os.ReadFile(path)
	if err != nil {
		return t, errors.New("reading tuning file failed").
			WithTag("path", path).
			Wrap(err)
	}

	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, errors.New("decoding tuning file failed").
			WithTag("path", path).
			Wrap(err)
	}

	if err := t.Validate(); err != nil {
		return t, errors.New("loading tuning file failed").
			WithTag("path", path).
			Wrap(err)
	}
	return t, nil
}

// Validate checks that the tuning values are consistent.
func (t Tuning) Validate() error {
	invalid := func(field string, value any) error {
		return errors.New("invalid tuning value").
			WithType(ErrTypeInvalidTuning).
			WithTag("field", field).
			WithTag("value", value)
	}

	switch {
	case t.ChunkSize <= 0:
		return invalid("chunk_size", t.ChunkSize)

	case t.Index.BatchSize <= 0:
		return invalid("index.batch_size", t.Index.BatchSize)

	case t.Loading.BatchSize <= 0:
		return invalid("loading.batch_size", t.Loading.BatchSize)

	case t.Loading.BatchPause < 0:
		return invalid("loading.batch_pause", t.Loading.BatchPause)

	case t.Visibility.MinInterval < 0:
		return invalid("visibility.min_interval", t.Visibility.MinInterval)

	case t.Monitor.LowWaterFPS >= t.Monitor.HighWaterFPS:
		return invalid("monitor.low_water_fps", t.Monitor.LowWaterFPS)

	case t.LOD.LowWaterFPS >= t.LOD.HighWaterFPS:
		return invalid("lod.low_water_fps", t.LOD.LowWaterFPS)

	case t.LOD.HighFraction <= 0 || t.LOD.HighFraction > t.LOD.MediumFraction || t.LOD.MediumFraction > 1:
		return invalid("lod.high_fraction", t.LOD.HighFraction)
	}

	b := t.Monitor.Bounds
	switch {
	case b.Min.RenderDistance < 0 || b.Min.RenderDistance > b.Max.RenderDistance:
		return invalid("monitor.bounds.min.render_distance", b.Min.RenderDistance)

	case b.Min.MaxObjectsPerChunk < 0 || b.Min.MaxObjectsPerChunk > b.Max.MaxObjectsPerChunk:
		return invalid("monitor.bounds.min.max_objects_per_chunk", b.Min.MaxObjectsPerChunk)

	case b.RenderDistanceStep <= 0:
		return invalid("monitor.bounds.render_distance_step", b.RenderDistanceStep)

	case b.MaxObjectsPerChunkStep <= 0:
		return invalid("monitor.bounds.max_objects_per_chunk_step", b.MaxObjectsPerChunkStep)
	}

	var after time.Duration
	for i, s := range t.Warmup {
		if s.After < after {
			return invalid("warmup.after", i)
		}
		after = s.After
	}
	return nil
}

// Options returns the optimizer options matching the tuning.
func (t Tuning) Options(name string, flags featureflag.FeatureFlag, clk clock.Clock) optimizer.Options {
	return optimizer.Options{
		Name: name,
		Index: spatial.IndexOptions{
			ChunkSize:   t.ChunkSize,
			BatchSize:   t.Index.BatchSize,
			RadiusScale: t.Index.RadiusScale,
			MaxRadius:   t.Index.MaxRadius,
		},
		Visibility: visibility.Options{
			MinInterval: t.Visibility.MinInterval,
		},
		Loading: loading.Options{
			Name:       name,
			BatchSize:  t.Loading.BatchSize,
			BatchPause: t.Loading.BatchPause,
		},
		Monitor: perf.MonitorOptions{
			Window:             t.Monitor.Window,
			StabilizationCount: t.Monitor.StabilizationCount,
			LowWaterFPS:        t.Monitor.LowWaterFPS,
			HighWaterFPS:       t.Monitor.HighWaterFPS,
			Bounds:             t.Monitor.Bounds,
			Initial:            t.Monitor.Initial,
		},
		LOD: lod.Policy{
			HighFraction:   t.LOD.HighFraction,
			MediumFraction: t.LOD.MediumFraction,
			LowWaterFPS:    t.LOD.LowWaterFPS,
			HighWaterFPS:   t.LOD.HighWaterFPS,
		},
		WarmupStages: append([]optimizer.WarmupStage{}, t.Warmup...),
		FeatureFlags: flags,
		Clock:        clk,
	}
}
