// Package config loads facegate settings from YAML with environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete facegate configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Camera   CameraConfig   `yaml:"camera"`
	Detector DetectorConfig `yaml:"detector"`
	Matcher  MatcherConfig  `yaml:"matcher"`
	Store    StoreConfig    `yaml:"store"`
	Redis    RedisConfig    `yaml:"redis"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Plugins  PluginsConfig  `yaml:"plugins"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Addr      string `yaml:"addr"`
	StaticDir string `yaml:"static_dir"`
}

// CameraConfig contains capture settings.
type CameraConfig struct {
	DeviceID int           `yaml:"device_id"`
	Cadence  time.Duration `yaml:"cadence"` // pump tick interval
	Width    int           `yaml:"width"`
	Height   int           `yaml:"height"`
	Mirror   bool          `yaml:"mirror"`
}

// DetectorConfig contains face detection settings.
type DetectorConfig struct {
	Backend        string        `yaml:"backend"` // process, dlib, mock
	Python         string        `yaml:"python"`
	Script         string        `yaml:"script"`
	ModelDir       string        `yaml:"model_dir"`
	InputSize      int           `yaml:"input_size"`
	ScoreThreshold float64       `yaml:"score_threshold"`
	MaxFaces       int           `yaml:"max_faces"`
	Timeout        time.Duration `yaml:"timeout"`
	LoadRetry      time.Duration `yaml:"load_retry"`
	WarmupImage    string        `yaml:"warmup_image"`
}

// MatcherConfig contains registration and verification settings.
type MatcherConfig struct {
	MaxCaptures int     `yaml:"max_captures"`
	Threshold   float64 `yaml:"threshold"`
}

// StoreConfig contains persistence settings.
type StoreConfig struct {
	Path      string `yaml:"path"`
	ExportDir string `yaml:"export_dir"`
}

// RedisConfig contains descriptor cache settings. An empty Addr disables it.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

// MQTTConfig contains event publishing settings. An empty Broker disables it.
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Topic    string `yaml:"topic"`
	QoS      byte   `yaml:"qos"`
}

// PluginsConfig contains event hook settings.
type PluginsConfig struct {
	Dir     string        `yaml:"dir"`
	Timeout time.Duration `yaml:"timeout"`
}

// DataDir returns the per-user facegate directory.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".facegate"
	}
	return filepath.Join(home, ".facegate")
}

// Default returns the built-in configuration.
func Default() *Config {
	dir := DataDir()
	return &Config{
		Server: ServerConfig{
			Addr:      ":8080",
			StaticDir: "web",
		},
		Camera: CameraConfig{
			DeviceID: 0,
			Cadence:  16 * time.Millisecond,
			Width:    640,
			Height:   480,
			Mirror:   true,
		},
		Detector: DetectorConfig{
			Backend:        "process",
			InputSize:      128,
			ScoreThreshold: 0.1,
			MaxFaces:       1,
			Timeout:        5 * time.Second,
			LoadRetry:      10 * time.Second,
		},
		Matcher: MatcherConfig{
			MaxCaptures: 3,
			Threshold:   0.3,
		},
		Store: StoreConfig{
			Path:      filepath.Join(dir, "facegate.db"),
			ExportDir: filepath.Join(dir, "exports"),
		},
		Redis: RedisConfig{
			TTL: time.Hour,
		},
		MQTT: MQTTConfig{
			ClientID: "facegate",
			Topic:    "facegate/events",
		},
		Plugins: PluginsConfig{
			Dir:     filepath.Join(dir, "plugins"),
			Timeout: 5 * time.Second,
		},
	}
}

// Load reads the YAML file at path over the defaults, applies environment
// overrides and validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Server.Addr = getEnv("FACEGATE_ADDR", c.Server.Addr)
	c.Store.Path = getEnv("FACEGATE_DB", c.Store.Path)
	c.Redis.Addr = getEnv("FACEGATE_REDIS_ADDR", c.Redis.Addr)
	c.Redis.DB = getEnvInt("FACEGATE_REDIS_DB", c.Redis.DB)
	c.MQTT.Broker = getEnv("FACEGATE_MQTT_BROKER", c.MQTT.Broker)
	c.Detector.Backend = getEnv("FACEGATE_DETECTOR", c.Detector.Backend)
}

// Validate checks the configuration for values the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Matcher.MaxCaptures < 1 {
		return fmt.Errorf("matcher.max_captures must be >= 1")
	}
	if c.Matcher.Threshold <= 0 {
		return fmt.Errorf("matcher.threshold must be > 0")
	}

	if c.Detector.InputSize <= 0 || c.Detector.InputSize%32 != 0 {
		return fmt.Errorf("detector.input_size must be a positive multiple of 32")
	}
	if c.Detector.ScoreThreshold < 0 || c.Detector.ScoreThreshold > 1 {
		return fmt.Errorf("detector.score_threshold must be within [0, 1]")
	}
	if c.Detector.MaxFaces < 1 {
		return fmt.Errorf("detector.max_faces must be >= 1")
	}
	switch c.Detector.Backend {
	case "process", "dlib", "mock":
	default:
		return fmt.Errorf("unknown detector.backend %q", c.Detector.Backend)
	}

	if c.Camera.Cadence <= 0 {
		return fmt.Errorf("camera.cadence must be > 0")
	}

	if c.Store.Path == "" {
		return fmt.Errorf("store.path is required")
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
