package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 16*time.Millisecond, cfg.Camera.Cadence)
	assert.Equal(t, 128, cfg.Detector.InputSize)
	assert.Equal(t, 0.1, cfg.Detector.ScoreThreshold)
	assert.Equal(t, 1, cfg.Detector.MaxFaces)
	assert.Equal(t, 10*time.Second, cfg.Detector.LoadRetry)
	assert.Equal(t, 3, cfg.Matcher.MaxCaptures)
	assert.Equal(t, 0.3, cfg.Matcher.Threshold)
	assert.Empty(t, cfg.Redis.Addr)
	assert.Empty(t, cfg.MQTT.Broker)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "facegate.yaml")
	data := `
server:
  addr: ":9090"
camera:
  cadence: 33ms
detector:
  backend: mock
  input_size: 224
  timeout: 2s
matcher:
  max_captures: 5
  threshold: 0.4
mqtt:
  broker: localhost:1883
  qos: 1
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 33*time.Millisecond, cfg.Camera.Cadence)
	assert.Equal(t, "mock", cfg.Detector.Backend)
	assert.Equal(t, 224, cfg.Detector.InputSize)
	assert.Equal(t, 2*time.Second, cfg.Detector.Timeout)
	assert.Equal(t, 5, cfg.Matcher.MaxCaptures)
	assert.Equal(t, 0.4, cfg.Matcher.Threshold)
	assert.Equal(t, "localhost:1883", cfg.MQTT.Broker)
	assert.Equal(t, byte(1), cfg.MQTT.QoS)

	// untouched sections keep their defaults
	assert.Equal(t, 1, cfg.Detector.MaxFaces)
	assert.Equal(t, "facegate/events", cfg.MQTT.Topic)
}

func TestLoad_EmptyPath(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Matcher.MaxCaptures)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0644))
	_, err = Load(path)
	assert.Error(t, err)

	path = filepath.Join(t.TempDir(), "invalid.yaml")
	require.NoError(t, os.WriteFile(path, []byte("matcher:\n  max_captures: 0\n"), 0644))
	_, err = Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_captures")
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("FACEGATE_ADDR", ":7000")
	t.Setenv("FACEGATE_DB", "/tmp/x.db")
	t.Setenv("FACEGATE_REDIS_ADDR", "localhost:6379")
	t.Setenv("FACEGATE_REDIS_DB", "2")
	t.Setenv("FACEGATE_MQTT_BROKER", "broker:1883")
	t.Setenv("FACEGATE_DETECTOR", "mock")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.Server.Addr)
	assert.Equal(t, "/tmp/x.db", cfg.Store.Path)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.Equal(t, "broker:1883", cfg.MQTT.Broker)
	assert.Equal(t, "mock", cfg.Detector.Backend)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"max captures", func(c *Config) { c.Matcher.MaxCaptures = 0 }},
		{"threshold", func(c *Config) { c.Matcher.Threshold = 0 }},
		{"input size zero", func(c *Config) { c.Detector.InputSize = 0 }},
		{"input size not multiple of 32", func(c *Config) { c.Detector.InputSize = 100 }},
		{"score threshold", func(c *Config) { c.Detector.ScoreThreshold = 1.5 }},
		{"max faces", func(c *Config) { c.Detector.MaxFaces = 0 }},
		{"backend", func(c *Config) { c.Detector.Backend = "tensorflow" }},
		{"cadence", func(c *Config) { c.Camera.Cadence = 0 }},
		{"store path", func(c *Config) { c.Store.Path = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
