package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"clusterkit/adapters/scan"
	"clusterkit/domain/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("LOG_LEVEL", "ERROR")
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "clusterkit dev\n", out)
}

func TestScanCmd(t *testing.T) {
	t.Setenv("STORE_DRIVER", "")
	out, err := execute(t, "scan", "--axis", "a=0,1", "--axis", "b=1i", "--model", "norm")
	require.NoError(t, err)
	assert.Contains(t, out, "2 points")
	assert.Contains(t, out, `{"index":0,"point":["(0+0i)","(0+1i)"],"output":[1]}`)
	assert.Contains(t, out, `{"index":1,"point":["(1+0i)","(0+1i)"],"output":[2]}`)
}

func TestScanCmd_NoPoints(t *testing.T) {
	t.Setenv("STORE_DRIVER", "")
	_, err := execute(t, "scan")
	require.Error(t, err)
	assert.True(t, core.IsConfigurationError(err))
}

func TestScanCmd_SaveAndShow(t *testing.T) {
	for _, driver := range []string{"sqlite", "excel"} {
		t.Run(driver, func(t *testing.T) {
			dir := t.TempDir()
			t.Setenv("STORE_DRIVER", driver)
			if driver == "sqlite" {
				t.Setenv("STORE_DSN", filepath.Join(dir, "clusterkit.db"))
			} else {
				t.Setenv("STORE_DSN", dir)
			}

			_, err := execute(t, "scan", "--range", "x=0:1:3", "--model", "zero", "--save", "demo")
			require.NoError(t, err)

			out, err := execute(t, "show", "demo")
			require.NoError(t, err)
			assert.Contains(t, out, "3 rows")
			assert.Contains(t, out, "scan.mode = equidist")
			assert.Contains(t, out, `"point":["(0.5+0i)"]`)

			out, err = execute(t, "show", "demo", "--profile")
			require.NoError(t, err)
			assert.Contains(t, out, "NORMAL_P")
			assert.NotContains(t, out, `"point"`)

			_, err = execute(t, "show", "missing")
			require.Error(t, err)
			assert.True(t, core.IsNotFoundError(err))

			out, err = execute(t, "list")
			require.NoError(t, err)
			assert.Equal(t, "demo\n", out)

			_, err = execute(t, "delete", "demo")
			require.NoError(t, err)
			_, err = execute(t, "delete", "demo")
			assert.True(t, core.IsNotFoundError(err))

			out, err = execute(t, "list")
			require.NoError(t, err)
			assert.Empty(t, out)
		})
	}
}

func TestSaveWithoutStore(t *testing.T) {
	t.Setenv("STORE_DRIVER", "")
	_, err := execute(t, "scan", "--axis", "a=1", "--save", "demo")
	require.Error(t, err)
	assert.True(t, core.IsConfigurationError(err))

	_, err = execute(t, "list")
	assert.True(t, core.IsConfigurationError(err))
}

func TestStabilityCmd_Noisy(t *testing.T) {
	t.Setenv("STORE_DRIVER", "")
	out, err := execute(t, "stability", "--range", "x=0:5:6", "--model", "norm",
		"--strategy", "noisy", "--experiments", "3", "--noise", "0", "--clusters", "2", "--parallel", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "strategy noisy_sample, 3 experiments, 0 not evaluable")
	assert.Contains(t, out, "matching_clusters")
	assert.Contains(t, out, "output_distance")
}

func TestStabilityCmd_NoisyEvaluatesEveryFOM(t *testing.T) {
	t.Setenv("STORE_DRIVER", "")
	out, err := execute(t, "stability", "--range", "x=0:5:6", "--model", "norm",
		"--strategy", "noisy", "--experiments", "3", "--noise", "0", "--clusters", "2", "--json")
	require.NoError(t, err)

	var decoded struct {
		Summary []struct {
			Name    string `json:"name"`
			N       int    `json:"n"`
			Missing int    `json:"missing"`
		} `json:"summary"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	require.Len(t, decoded.Summary, 4)
	for _, s := range decoded.Summary {
		assert.Equal(t, 3, s.N, s.Name)
		assert.Equal(t, 0, s.Missing, s.Name)
	}
}

func TestStabilityCmd_SubSampleJSON(t *testing.T) {
	t.Setenv("STORE_DRIVER", "")
	out, err := execute(t, "stability", "--range", "x=0:5:6", "--model", "norm",
		"--strategy", "subsample", "--fraction", "1", "--experiments", "2", "--json")
	require.NoError(t, err)

	var decoded struct {
		Strategy    string `json:"strategy"`
		Experiments []struct {
			Status string             `json:"status"`
			FOMs   map[string]float64 `json:"foms"`
		} `json:"experiments"`
		Summary []struct {
			Name string   `json:"name"`
			Mean *float64 `json:"mean"`
		} `json:"summary"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, "subsample", decoded.Strategy)
	require.Len(t, decoded.Experiments, 2)
	for _, e := range decoded.Experiments {
		assert.Equal(t, "evaluated", e.Status)
		assert.Equal(t, 1.0, e.FOMs["matching_clusters"])
		assert.Equal(t, 0.0, e.FOMs["average_bm_proximity"])
	}
	assert.Len(t, decoded.Summary, 3)
}

func TestStabilityCmd_UnknownStrategy(t *testing.T) {
	t.Setenv("STORE_DRIVER", "")
	_, err := execute(t, "stability", "--axis", "x=1,2", "--strategy", "bootstrap")
	require.Error(t, err)
}

func TestParseGridAxis(t *testing.T) {
	axis, err := parseGridAxis("c = 1, -0.5, 1+2i")
	require.NoError(t, err)
	assert.Equal(t, scan.GridAxis{Name: "c", Values: []complex128{1, -0.5, 1 + 2i}}, axis)

	for _, bad := range []string{"novalues", "=1,2", "c=1,x"} {
		_, err := parseGridAxis(bad)
		assert.True(t, core.IsInputError(err), bad)
	}
}

func TestParseRange(t *testing.T) {
	name, r, err := parseRange("im_x=-1:1:5")
	require.NoError(t, err)
	assert.Equal(t, "im_x", name)
	assert.Equal(t, scan.Range{Start: -1, Stop: 1, Count: 5}, r)

	for _, bad := range []string{"x", "x=1:2", "x=a:1:2", "x=0:1:1.5"} {
		_, _, err := parseRange(bad)
		assert.True(t, core.IsInputError(err), bad)
	}
}

func TestScanFlags_Exclusive(t *testing.T) {
	f := scanFlags{axes: []string{"a=1"}, ranges: []string{"b=0:1:2"}}
	err := f.configure(scan.New())
	assert.True(t, core.IsConfigurationError(err))

	f = scanFlags{ranges: []string{"b=0:1:2", "b=0:1:3"}}
	assert.True(t, core.IsConfigurationError(f.configure(scan.New())))
}
