package sim

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempYAML(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Len(t, cfg.Plant.Buffers, 9)
	assert.Equal(t, []string{"L1", "L2", "L3", "L4"}, cfg.Plant.Routing[OvenO1].Primary)
	assert.Equal(t, []string{"L5", "L6", "L7", "L8", "L9"}, cfg.Plant.Routing[OvenO2].Primary)
	assert.Empty(t, cfg.Plant.Routing[OvenO2].Fallback)

	total := 0.0
	for _, cw := range cfg.Simulation.Colors {
		total += cw.Weight
	}
	assert.InDelta(t, 1.0, total, 1e-9)
}

func TestLoadConfig_PartialOverride_KeepsDefaults(t *testing.T) {
	// GIVEN a file that only sets two controller fields
	path := writeTempYAML(t, `
controller:
  min_run: 3
  k_max: 8
`)

	// WHEN loaded
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	// THEN the fields are overridden and everything else keeps its default
	assert.Equal(t, 3, cfg.Controller.MinRun)
	assert.Equal(t, 8, cfg.Controller.KMax)
	def := DefaultConfig()
	assert.Equal(t, def.Controller.OccHigh, cfg.Controller.OccHigh)
	assert.Equal(t, def.Controller.Drain, cfg.Controller.Drain)
	assert.Equal(t, def.Plant.Buffers, cfg.Plant.Buffers)
	assert.Equal(t, def.Exact, cfg.Exact)
}

func TestLoadConfig_EmptyFile_IsDefault(t *testing.T) {
	cfg, err := LoadConfig(writeTempYAML(t, ""))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), *cfg)
}

func TestLoadConfig_CustomLayout(t *testing.T) {
	path := writeTempYAML(t, `
plant:
  buffers:
    - {id: A, capacity: 4}
    - {id: B, capacity: 6, reserve_headroom: 1}
  routing:
    O1: {primary: [A], fallback: [B]}
    O2: {primary: [B]}
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, []BufferConfig{{ID: "A", Capacity: 4}, {ID: "B", Capacity: 6, ReserveHeadroom: 1}}, cfg.Plant.Buffers)
	assert.Equal(t, []string{"B"}, cfg.Plant.Routing[OvenO1].Fallback)
}

func TestLoadConfig_SingleOvenLayout(t *testing.T) {
	// GIVEN a layout that routes only O1
	path := writeTempYAML(t, `
plant:
  buffers:
    - {id: A, capacity: 4}
    - {id: B, capacity: 4}
  routing:
    O1: {primary: [A, B]}
`)

	// WHEN loaded
	cfg, err := LoadConfig(path)

	// THEN the file's routing replaces the default table
	require.NoError(t, err)
	assert.Equal(t, map[OvenID]RouteConfig{OvenO1: {Primary: []string{"A", "B"}}}, cfg.Plant.Routing)
}

func TestLoadConfig_NoRouting_KeepsDefaultRouting(t *testing.T) {
	path := writeTempYAML(t, `
plant:
  buffers:
    - {id: L1, capacity: 10}
    - {id: L2, capacity: 10}
    - {id: L3, capacity: 10}
    - {id: L4, capacity: 10}
    - {id: L5, capacity: 12}
    - {id: L6, capacity: 12}
    - {id: L7, capacity: 12}
    - {id: L8, capacity: 12}
    - {id: L9, capacity: 12}
`)

	cfg, err := LoadConfig(path)

	require.NoError(t, err)
	assert.Equal(t, DefaultPlantConfig().Routing, cfg.Plant.Routing)
	assert.Equal(t, 10, cfg.Plant.Buffers[0].Capacity)
}

func TestConfig_ArrivalMeanSeconds(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Simulation.O2MeanSeconds = 4
	cfg.Plant.Routing["O3"] = RouteConfig{Primary: []string{"L1"}, MeanArrivalSeconds: 9}

	assert.Equal(t, 6.0, cfg.ArrivalMeanSeconds(OvenO1))
	assert.Equal(t, 4.0, cfg.ArrivalMeanSeconds(OvenO2))
	assert.Equal(t, 9.0, cfg.ArrivalMeanSeconds("O3"))
	assert.Zero(t, cfg.ArrivalMeanSeconds("O4"))
	require.NoError(t, cfg.Validate())

	r := cfg.Plant.Routing[OvenO1]
	r.MeanArrivalSeconds = 2
	cfg.Plant.Routing[OvenO1] = r
	assert.Equal(t, 2.0, cfg.ArrivalMeanSeconds(OvenO1))
}

func TestLoadConfig_UnknownField_Rejected(t *testing.T) {
	_, err := LoadConfig(writeTempYAML(t, "controller:\n  min_runn: 3\n"))
	assert.Error(t, err)
}

func TestLoadConfig_NonexistentFile(t *testing.T) {
	_, err := LoadConfig("/nonexistent/path.yaml")
	if err == nil {
		t.Fatal("expected error for nonexistent file")
	}
}

func TestLoadConfig_MalformedYAML(t *testing.T) {
	_, err := LoadConfig(writeTempYAML(t, "{{invalid yaml"))
	if err == nil {
		t.Fatal("expected error for malformed YAML")
	}
}

func TestLoadConfig_InvalidValues_WrapErrInvalidConfig(t *testing.T) {
	_, err := LoadConfig(writeTempYAML(t, "controller:\n  k_max: 0\n"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidConfig))
}

func TestConfig_Marshal_LoadsBack(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Controller.MinRun = 4
	data, err := cfg.Marshal()
	require.NoError(t, err)

	loaded, err := LoadConfig(writeTempYAML(t, string(data)))
	require.NoError(t, err)
	assert.Equal(t, cfg, *loaded)
}

func TestConfig_Validate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"no buffers", func(c *Config) { c.Plant.Buffers = nil }},
		{"duplicate buffer", func(c *Config) { c.Plant.Buffers[1].ID = "L1" }},
		{"zero capacity", func(c *Config) { c.Plant.Buffers[0].Capacity = 0 }},
		{"headroom fills buffer", func(c *Config) { c.Plant.Buffers[0].ReserveHeadroom = 14 }},
		{"unknown routed buffer", func(c *Config) {
			c.Plant.Routing[OvenO2] = RouteConfig{Primary: []string{"L99"}}
		}},
		{"buffer listed twice", func(c *Config) {
			c.Plant.Routing[OvenO1] = RouteConfig{Primary: []string{"L1"}, Fallback: []string{"L1"}}
		}},
		{"empty primary", func(c *Config) { c.Plant.Routing[OvenO2] = RouteConfig{} }},
		{"extra oven without mean", func(c *Config) {
			c.Plant.Routing["O3"] = RouteConfig{Primary: []string{"L1"}}
		}},
		{"negative route mean", func(c *Config) {
			c.Plant.Routing[OvenO2] = RouteConfig{Primary: []string{"L5"}, MeanArrivalSeconds: -1}
		}},
		{"unknown exact engine", func(c *Config) { c.Exact.Engine = "simplex" }},
		{"min run", func(c *Config) { c.Controller.MinRun = 0 }},
		{"occ high above one", func(c *Config) { c.Controller.OccHigh = 1.5 }},
		{"negative hold limit", func(c *Config) { c.Controller.HoldLimitSeconds = -1 }},
		{"exact horizon", func(c *Config) { c.Exact.Horizon = 0 }},
		{"exact time limit", func(c *Config) { c.Exact.TimeLimitSeconds = 0 }},
		{"oven mean", func(c *Config) { c.Simulation.O1MeanSeconds = 0 }},
		{"no colors", func(c *Config) { c.Simulation.Colors = nil }},
		{"zero color weight", func(c *Config) { c.Simulation.Colors[0].Weight = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}
