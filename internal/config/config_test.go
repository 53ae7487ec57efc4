package config

import (
	"testing"

	"clusterkit/internal"
	"clusterkit/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"LOG_LEVEL", "SCAN_WORKERS", "STABILITY_WORKERS", "STABILITY_SEED",
		"STABILITY_EXPERIMENTS", "STABILITY_NOISE", "STABILITY_FRACTION", "STORE_DRIVER", "STORE_DSN", "METRICS_ENABLED"} {
		t.Setenv(key, "")
	}
	// An explicitly empty prefix disables real/imaginary merging.
	t.Setenv("IMAGINARY_PREFIX", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, internal.LogLevelInfo, cfg.Log.Level)
	assert.Equal(t, 1, cfg.Scan.Workers)
	assert.Equal(t, "", cfg.Scan.ImaginaryPrefix)
	assert.Equal(t, int64(42), cfg.Stability.Seed)
	assert.Equal(t, 10, cfg.Stability.Experiments)
	assert.Equal(t, 0.8, cfg.Stability.Fraction)
	assert.Equal(t, StoreNone, cfg.Store.Driver)
	assert.False(t, cfg.Metrics.Enabled)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("SCAN_WORKERS", "4")
	t.Setenv("IMAGINARY_PREFIX", "xxx")
	t.Setenv("STABILITY_SEED", "7")
	t.Setenv("STABILITY_EXPERIMENTS", "3")
	t.Setenv("STORE_DRIVER", "SQLite")
	t.Setenv("STORE_DSN", "file::memory:")
	t.Setenv("METRICS_ENABLED", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, internal.LogLevelDebug, cfg.Log.Level)
	assert.Equal(t, 4, cfg.Scan.Workers)
	assert.Equal(t, "xxx", cfg.Scan.ImaginaryPrefix)
	assert.Equal(t, int64(7), cfg.Stability.Seed)
	assert.Equal(t, 3, cfg.Stability.Experiments)
	assert.Equal(t, StoreSQLite, cfg.Store.Driver)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"zero workers", map[string]string{"SCAN_WORKERS": "0"}},
		{"zero experiments", map[string]string{"STABILITY_EXPERIMENTS": "0"}},
		{"fraction above one", map[string]string{"STABILITY_FRACTION": "1.5"}},
		{"negative noise", map[string]string{"STABILITY_NOISE": "-1"}},
		{"driver without dsn", map[string]string{"STORE_DRIVER": "postgres", "STORE_DSN": ""}},
		{"unknown driver", map[string]string{"STORE_DRIVER": "mongo", "STORE_DSN": "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
			assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
		})
	}
}
