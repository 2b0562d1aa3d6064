package tts

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Config is shared by the backend and OpenAI providers. The backend
// provider only reads Logger.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string

	// Voices overrides DefaultOpenAIVoices per voice type.
	Voices map[string]string

	// CacheDir receives audio rendered locally; playback reads it back
	// through a file:// URL.
	CacheDir string

	Timeout time.Duration
	Logger  *slog.Logger
}

// Option configures a provider.
type Option func(*Config)

func WithAPIKey(key string) Option { return func(c *Config) { c.APIKey = key } }
func WithBaseURL(u string) Option { return func(c *Config) { c.BaseURL = u } }
func WithModel(model string) Option { return func(c *Config) { c.Model = model } }
func WithCacheDir(dir string) Option { return func(c *Config) { c.CacheDir = dir } }
func WithTimeout(d time.Duration) Option { return func(c *Config) { c.Timeout = d } }

// WithVoice maps a settings voice type ("female") to a provider voice ("nova").
func WithVoice(voiceType, providerVoice string) Option {
	return func(c *Config) {
		if c.Voices == nil {
			c.Voices = make(map[string]string)
		}
		c.Voices[voiceType] = providerVoice
	}
}

// WithLogger sets the logger. A nil logger is ignored.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		if logger != nil {
			c.Logger = logger
		}
	}
}

// DefaultConfig writes local audio under the system temp dir.
func DefaultConfig() *Config {
	return &Config{
		CacheDir: filepath.Join(os.TempDir(), "llamadoc-voice", "tts"),
		Timeout:  30 * time.Second,
		Logger:   slog.Default(),
	}
}

// Apply runs opts against c.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// Validate requires an API key.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return ErrNoAPIKey
	}
	return nil
}
