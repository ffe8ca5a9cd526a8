package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swdee/go-speedcam"
	"github.com/swdee/go-speedcam/speed"
	"github.com/swdee/go-speedcam/tracker"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestEmptyConfigDefaults(t *testing.T) {
	cfg := Empty()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, speed.DefaultConfig(), cfg.SpeedConfig())
	assert.Equal(t, tracker.DefaultDistanceThreshold, cfg.GetDistanceThreshold())
	assert.Equal(t, tracker.GreedyMatch, cfg.GetMatchPolicy())
	assert.Equal(t, speedcam.DefaultVehicleClasses, cfg.GetClasses())
	assert.Equal(t, 1020, cfg.GetFrameWidth())
	assert.Equal(t, 500, cfg.GetFrameHeight())
	assert.Equal(t, 20.0, cfg.GetFPS())
	assert.Equal(t, 3, cfg.GetStride())
	assert.Equal(t, speed.KMPH, cfg.GetUnits())
	assert.Equal(t, "info", cfg.GetLogLevel())
	assert.Equal(t, "speedcam:events", cfg.GetRedisChannel())
	assert.Empty(t, cfg.GetDBPath())
	assert.Empty(t, cfg.GetListenAddr())
	assert.Equal(t, 0.0, cfg.GetNMSThreshold())
}

func TestLoadDefaultsFile(t *testing.T) {
	cfg, err := Load("speedcam.defaults.json")
	require.NoError(t, err)

	// the defaults file and the built in defaults agree
	assert.Equal(t, Empty().SpeedConfig(), cfg.SpeedConfig())
	assert.Equal(t, Empty().GetClasses(), cfg.GetClasses())
	assert.Equal(t, Empty().GetStride(), cfg.GetStride())
	assert.Equal(t, Empty().GetTrailSize(), cfg.GetTrailSize())
}

func TestLoadPartial(t *testing.T) {
	path := writeConfig(t, "cfg.json", `{"distance_m": 12.5, "policy": "continuous", "match_policy": "optimal"}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 12.5, cfg.GetDistanceM())
	assert.Equal(t, speed.Continuous, cfg.GetPolicy())
	assert.Equal(t, tracker.OptimalMatch, cfg.GetMatchPolicy())
	assert.Equal(t, speed.DefaultLineA, cfg.GetLineA())
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		file string
		body string
	}{
		{"wrong extension", "cfg.yaml", `{}`},
		{"bad json", "cfg.json", `{"offset":`},
		{"bad policy", "cfg.json", `{"policy": "sometimes"}`},
		{"negative distance", "cfg.json", `{"distance_m": -1}`},
		{"probability above one", "cfg.json", `{"min_probability": 1.5}`},
		{"overlapping lines", "cfg.json", `{"line_a": 300, "line_b": 305}`},
		{"empty class name", "cfg.json", `{"classes": ["car", ""]}`},
		{"bad listen addr", "cfg.json", `{"listen_addr": "nowhere"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.file, tt.body))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"SPEEDCAM_LINE_A":          "200",
		"SPEEDCAM_LINE_B":          "260",
		"SPEEDCAM_DISTANCE_M":      "15",
		"SPEEDCAM_POLICY":          "continuous",
		"SPEEDCAM_CLASSES":         "car, motorcycle",
		"SPEEDCAM_LISTEN_ADDR":     ":8080",
		"SPEEDCAM_SPEED_LIMIT_KMH": " ",
		"SPEEDCAM_NMS_THRESHOLD":   "0.45",
	}

	lookup := func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}

	cfg := Empty()
	require.NoError(t, cfg.ApplyEnv(lookup))

	assert.Equal(t, 200, cfg.GetLineA())
	assert.Equal(t, 260, cfg.GetLineB())
	assert.Equal(t, 15.0, cfg.GetDistanceM())
	assert.Equal(t, speed.Continuous, cfg.GetPolicy())
	assert.Equal(t, []string{"car", "motorcycle"}, cfg.GetClasses())
	assert.Equal(t, ":8080", cfg.GetListenAddr())
	assert.Equal(t, 0.0, cfg.GetSpeedLimitKMH())
	assert.Equal(t, 0.45, cfg.GetNMSThreshold())

	env["SPEEDCAM_OFFSET"] = "six"
	assert.Error(t, Empty().ApplyEnv(lookup))
}

func TestLoadDotEnv(t *testing.T) {
	path := writeConfig(t, ".env", "SPEEDCAM_TEST_DOTENV_STRIDE=5\n")
	t.Cleanup(func() { os.Unsetenv("SPEEDCAM_TEST_DOTENV_STRIDE") })

	require.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "absent.env"), path))
	assert.Equal(t, "5", os.Getenv("SPEEDCAM_TEST_DOTENV_STRIDE"))
}

func TestPipelineOptions(t *testing.T) {
	labels := []string{"person", "bicycle", "car", "motorcycle", "airplane", "bus", "train", "truck"}

	cfg := Empty()
	opts, err := cfg.PipelineOptions(labels)
	require.NoError(t, err)

	require.NotNil(t, opts.Filter)
	assert.True(t, opts.Filter.Allowed(2))
	assert.False(t, opts.Filter.Allowed(0))

	_, err = speedcam.NewPipeline(opts)
	assert.NoError(t, err)

	cfg.Classes = []string{"tram"}
	_, err = cfg.PipelineOptions(labels)
	assert.Error(t, err)
}
