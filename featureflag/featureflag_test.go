package featureflag

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFeatureFlag(t *testing.T) {
	tests := []struct {
		name    string
		enabled []string
		flag    Flag
		isSet   bool
	}{
		{
			name:    "frustum culling disabled",
			enabled: []string{string(FlagDisableFrustumCulling)},
			flag:    FlagDisableFrustumCulling,
			isSet:   true,
		},
		{
			name:    "load pacing disabled",
			enabled: []string{string(FlagDisableLoadPacing), string(FlagSkipWarmup)},
			flag:    FlagDisableLoadPacing,
			isSet:   true,
		},
		{
			name:    "adaptive quality kept",
			enabled: []string{string(FlagSkipWarmup)},
			flag:    FlagDisableAdaptiveQuality,
		},
		{
			name:  "no flags",
			flag:  FlagSkipWarmup,
			isSet: false,
		},
		{
			name:    "unknown flags are accepted",
			enabled: []string{"EXPERIMENTAL"},
			flag:    "EXPERIMENTAL",
			isSet:   true,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			f := New(test.enabled)
			require.Equal(t, test.isSet, f.IsSet(test.flag))

			var ifSet, ifNotSet bool
			f.IfSet(test.flag, func() {
				ifSet = true
			})
			f.IfNotSet(test.flag, func() {
				ifNotSet = true
			})
			require.Equal(t, test.isSet, ifSet)
			require.Equal(t, !test.isSet, ifNotSet)
		})
	}

	t.Run("names are trimmed", func(t *testing.T) {
		f := New([]string{" SKIP_WARMUP ", "", "  "})
		require.True(t, f.IsSet(FlagSkipWarmup))
		require.Len(t, f, 1)
	})

	t.Run("zero value has no flags", func(t *testing.T) {
		var f FeatureFlag
		require.False(t, f.IsSet(FlagSkipWarmup))
	})
}
