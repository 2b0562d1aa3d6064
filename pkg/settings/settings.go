// Package settings holds the user's voice preferences and persists them.
//
// VoiceSettings are read once when the Manager is loaded, created with
// defaults on first run, and written back in full on every change.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
)

// Key is the fixed storage key for VoiceSettings.
const Key = "voiceSettings"

// Voice types offered to the user.
const (
	VoiceDefault = "default"
	VoiceFemale  = "female"
	VoiceMale    = "male"
)

// Rate bounds in words per minute.
const (
	DefaultRate = 180
	MinRate     = 50
	MaxRate     = 400
)

// VoiceSettings controls synthesized speech.
type VoiceSettings struct {
	VoiceType string  `json:"voiceType"`
	Rate      int     `json:"rate"`
	Volume    float64 `json:"volume"`
}

// Defaults returns {default, 180, 1.0}.
func Defaults() VoiceSettings {
	return VoiceSettings{
		VoiceType: VoiceDefault,
		Rate:      DefaultRate,
		Volume:    1.0,
	}
}

// ValidVoiceType reports whether v is one of the offered voice types.
func ValidVoiceType(v string) bool {
	switch v {
	case VoiceDefault, VoiceFemale, VoiceMale:
		return true
	}
	return false
}

// Normalize returns s with every field forced into range. Unknown voice
// types become default; a zero rate becomes the default rate.
func (s VoiceSettings) Normalize() VoiceSettings {
	if !ValidVoiceType(s.VoiceType) {
		s.VoiceType = VoiceDefault
	}
	switch {
	case s.Rate == 0:
		s.Rate = DefaultRate
	case s.Rate < MinRate:
		s.Rate = MinRate
	case s.Rate > MaxRate:
		s.Rate = MaxRate
	}
	switch {
	case math.IsNaN(s.Volume), s.Volume < 0:
		s.Volume = 0
	case s.Volume > 1:
		s.Volume = 1
	}
	return s
}

// Manager owns the current VoiceSettings and writes every change to a Store.
// It is safe for concurrent use.
type Manager struct {
	store  Store
	logger *slog.Logger

	mu        sync.RWMutex
	current   VoiceSettings
	listeners []func(VoiceSettings)
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// Load reads the settings from store. When nothing is stored yet, or the
// stored value cannot be decoded, defaults are written back.
func Load(ctx context.Context, store Store, opts ...Option) (*Manager, error) {
	m := &Manager{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("component", "settings")

	data, err := store.Get(ctx, Key)
	switch {
	case errors.Is(err, ErrNotFound):
		m.current = Defaults()
		if err := m.persist(ctx, m.current); err != nil {
			return nil, err
		}
		m.logger.Info("created default voice settings")
	case err != nil:
		return nil, fmt.Errorf("settings: load: %w", err)
	default:
		var s VoiceSettings
		if err := json.Unmarshal(data, &s); err != nil {
			m.logger.Warn("stored voice settings unreadable, resetting", "error", err)
			m.current = Defaults()
			if err := m.persist(ctx, m.current); err != nil {
				return nil, err
			}
			break
		}
		m.current = s.Normalize()
	}
	return m, nil
}

// Current returns a copy of the settings in effect.
func (m *Manager) Current() VoiceSettings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Update applies fn to a copy of the current settings, normalizes the
// result, makes it current and persists it. The new settings stay in
// effect even if persisting fails; the error is returned.
func (m *Manager) Update(ctx context.Context, fn func(*VoiceSettings)) (VoiceSettings, error) {
	m.mu.Lock()
	next := m.current
	fn(&next)
	next = next.Normalize()
	m.current = next
	listeners := append([]func(VoiceSettings){}, m.listeners...)
	m.mu.Unlock()

	for _, l := range listeners {
		l(next)
	}

	if err := m.persist(ctx, next); err != nil {
		m.logger.Error("persist voice settings failed", "error", err)
		return next, err
	}
	m.logger.Debug("voice settings saved", "voice", next.VoiceType, "rate", next.Rate, "volume", next.Volume)
	return next, nil
}

// SetVoiceType changes the voice. Unknown values fall back to default.
func (m *Manager) SetVoiceType(ctx context.Context, voice string) (VoiceSettings, error) {
	return m.Update(ctx, func(s *VoiceSettings) { s.VoiceType = voice })
}

// SetRate changes the speaking rate in words per minute.
func (m *Manager) SetRate(ctx context.Context, rate int) (VoiceSettings, error) {
	return m.Update(ctx, func(s *VoiceSettings) { s.Rate = rate })
}

// SetVolume changes the playback volume in [0, 1].
func (m *Manager) SetVolume(ctx context.Context, volume float64) (VoiceSettings, error) {
	return m.Update(ctx, func(s *VoiceSettings) { s.Volume = volume })
}

// OnChange registers fn to be called with the new settings after every
// Update. Listeners run synchronously in registration order.
func (m *Manager) OnChange(fn func(VoiceSettings)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

func (m *Manager) persist(ctx context.Context, s VoiceSettings) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("settings: encode: %w", err)
	}
	if err := m.store.Set(ctx, Key, data); err != nil {
		return fmt.Errorf("settings: save: %w", err)
	}
	return nil
}
