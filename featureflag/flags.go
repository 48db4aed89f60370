package featureflag

type Flag string

const (
	FlagDisableFrustumCulling  Flag = "DISABLE_FRUSTUM_CULLING"
	FlagDisableLoadPacing      Flag = "DISABLE_LOAD_PACING"
	FlagDisableAdaptiveQuality Flag = "DISABLE_ADAPTIVE_QUALITY"
	FlagSkipWarmup             Flag = "SKIP_WARMUP"
)
