// Package config loads llamadoc-voice configuration from a YAML file,
// an optional .env file and environment variables, in that order of
// increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from "5s" style strings or
// integer seconds.
type Duration time.Duration

// ToDuration converts d to a time.Duration.
func (d Duration) ToDuration() time.Duration { return time.Duration(d) }

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		*d = 0
		return nil
	}
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be a scalar")
	}

	switch value.Tag {
	case "!!int":
		i, err := strconv.ParseInt(value.Value, 10, 64)
		if err != nil {
			return err
		}
		*d = Duration(time.Duration(i) * time.Second)
		return nil
	default:
		if value.Value == "" {
			*d = 0
			return nil
		}
		if dur, err := time.ParseDuration(value.Value); err == nil {
			*d = Duration(dur)
			return nil
		}
		if i, err := strconv.ParseInt(value.Value, 10, 64); err == nil {
			*d = Duration(time.Duration(i) * time.Second)
			return nil
		}
		return fmt.Errorf("invalid duration: %q", value.Value)
	}
}

// Capture modes.
const (
	CaptureAuto      = "auto"
	CaptureRecognize = "recognize"
	CaptureRecord    = "record"
)

// Settings store kinds.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreBadger = "badger"
	StoreRedis  = "redis"
)

// Config is the full application configuration.
type Config struct {
	Backend     BackendConfig     `yaml:"backend"`
	Dashboard   DashboardConfig   `yaml:"dashboard"`
	Settings    SettingsConfig    `yaml:"settings"`
	Capture     CaptureConfig     `yaml:"capture"`
	Synthesis   SynthesisConfig   `yaml:"synthesis"`
	Transcriber TranscriberConfig `yaml:"transcriber"`
	OpenAI      OpenAIConfig      `yaml:"openai"`
	Google      GoogleConfig      `yaml:"google"`
	Audio       AudioConfig       `yaml:"audio"`
	LogLevel    string            `yaml:"log_level"`
}

// BackendConfig points at the LlamaDoc HTTP API.
type BackendConfig struct {
	URL     string   `yaml:"url"`
	Timeout Duration `yaml:"timeout"`
}

// DashboardConfig controls the local web dashboard.
type DashboardConfig struct {
	Port int `yaml:"port"`
}

// SettingsConfig selects where VoiceSettings are persisted.
type SettingsConfig struct {
	Store string      `yaml:"store"` // memory, file, badger, redis
	Path  string      `yaml:"path"`  // directory for file and badger stores
	Redis RedisConfig `yaml:"redis"`
}

// RedisConfig holds redis connection details.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// CaptureConfig controls how questions are captured from the microphone.
type CaptureConfig struct {
	Mode        string   `yaml:"mode"`     // auto, recognize, record
	Encoding    string   `yaml:"encoding"` // ogg, wav
	Language    string   `yaml:"language"`
	MaxDuration Duration `yaml:"max_duration"`
}

// SynthesisConfig selects the speech synthesis provider chain.
type SynthesisConfig struct {
	Providers []string          `yaml:"providers"` // backend, openai
	CacheDir  string            `yaml:"cache_dir"`
	Model     string            `yaml:"model"`  // OpenAI speech model
	Voices    map[string]string `yaml:"voices"` // voice type -> OpenAI voice
}

// TranscriberConfig selects the server transcription provider.
type TranscriberConfig struct {
	Provider string `yaml:"provider"` // backend, openai
}

// OpenAIConfig holds OpenAI credentials.
type OpenAIConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// GoogleConfig holds Google Cloud Speech credentials. Either field enables
// native recognition.
type GoogleConfig struct {
	CredentialsFile string `yaml:"credentials_file"`
	AccessToken     string `yaml:"access_token"`
}

// AudioConfig selects audio device backends.
type AudioConfig struct {
	Backend    string `yaml:"backend"` // auto, alsa, sox, mock
	Device     string `yaml:"device"`
	SampleRate int    `yaml:"sample_rate"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Backend: BackendConfig{
			URL:     "http://localhost:8000",
			Timeout: Duration(60 * time.Second),
		},
		Dashboard: DashboardConfig{Port: 8181},
		Settings: SettingsConfig{
			Store: StoreFile,
			Path:  defaultDataDir(),
		},
		Capture: CaptureConfig{
			Mode:        CaptureAuto,
			Encoding:    "ogg",
			Language:    "en-US",
			MaxDuration: Duration(30 * time.Second),
		},
		Synthesis: SynthesisConfig{
			Providers: []string{"backend"},
		},
		Transcriber: TranscriberConfig{Provider: "backend"},
		Audio: AudioConfig{
			Backend:    "auto",
			SampleRate: 16000,
		},
		LogLevel: "info",
	}
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return dir + "/llamadoc-voice"
	}
	return ".llamadoc-voice"
}

// Load reads path (optional), then .env (optional), then the environment.
// A missing file at either location is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(b, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		case errors.Is(err, fs.ErrNotExist):
		default:
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks enumerations and required values.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Backend.URL) == "" {
		return errors.New("config: backend.url is required")
	}
	switch c.Capture.Mode {
	case CaptureAuto, CaptureRecognize, CaptureRecord:
	default:
		return fmt.Errorf("config: unknown capture.mode %q", c.Capture.Mode)
	}
	switch c.Capture.Encoding {
	case "ogg", "wav":
	default:
		return fmt.Errorf("config: unknown capture.encoding %q", c.Capture.Encoding)
	}
	switch c.Settings.Store {
	case StoreMemory:
	case StoreFile, StoreBadger:
		if c.Settings.Path == "" {
			return fmt.Errorf("config: settings.path is required for the %s store", c.Settings.Store)
		}
	case StoreRedis:
		if c.Settings.Redis.Addr == "" {
			return errors.New("config: settings.redis.addr is required for the redis store")
		}
	default:
		return fmt.Errorf("config: unknown settings.store %q", c.Settings.Store)
	}
	for _, p := range c.Synthesis.Providers {
		if p != "backend" && p != "openai" {
			return fmt.Errorf("config: unknown synthesis provider %q", p)
		}
	}
	switch c.Transcriber.Provider {
	case "backend", "openai":
	default:
		return fmt.Errorf("config: unknown transcriber.provider %q", c.Transcriber.Provider)
	}
	return nil
}

// GoogleEnabled reports whether Google Cloud Speech credentials are set.
func (c *Config) GoogleEnabled() bool {
	return c.Google.CredentialsFile != "" || c.Google.AccessToken != ""
}
