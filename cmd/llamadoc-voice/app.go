package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/teslashibe/llamadoc-voice/internal/config"
	applog "github.com/teslashibe/llamadoc-voice/internal/log"
	"github.com/teslashibe/llamadoc-voice/pkg/assistant"
	"github.com/teslashibe/llamadoc-voice/pkg/audioio"
	"github.com/teslashibe/llamadoc-voice/pkg/capture"
	"github.com/teslashibe/llamadoc-voice/pkg/capture/gcloud"
	"github.com/teslashibe/llamadoc-voice/pkg/history"
	"github.com/teslashibe/llamadoc-voice/pkg/llamadoc"
	"github.com/teslashibe/llamadoc-voice/pkg/notify"
	"github.com/teslashibe/llamadoc-voice/pkg/playback"
	"github.com/teslashibe/llamadoc-voice/pkg/settings"
	"github.com/teslashibe/llamadoc-voice/pkg/stt"
	"github.com/teslashibe/llamadoc-voice/pkg/tts"
)

// surfaces are where the assistant renders its output.
type surfaces interface {
	notify.Surface
	assistant.AnswerView
	assistant.StatusView
	history.View
}

// app is one fully wired assistant.
type app struct {
	client     *llamadoc.Client
	store      settings.Store
	settings   *settings.Manager
	session    *assistant.Session
	notifier   *notify.Channel
	playback   *playback.Controller
	synth      tts.Provider
	recognizer *gcloud.Recognizer
	panel      *history.Panel
	ctrl       *assistant.Controller
	logger     *slog.Logger
}

func newApp(ctx context.Context, cfg *config.Config, out surfaces) (_ *app, err error) {
	logger := applog.L()
	a := &app{logger: logger.With("component", "app")}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	a.client, err = llamadoc.New(cfg.Backend.URL,
		llamadoc.WithTimeout(cfg.Backend.Timeout.ToDuration()),
		llamadoc.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	a.store, err = settings.Open(ctx, settings.OpenOptions{
		Kind: cfg.Settings.Store,
		Dir:  cfg.Settings.Path,
		Redis: settings.RedisOptions{
			Addr:     cfg.Settings.Redis.Addr,
			Password: cfg.Settings.Redis.Password,
			DB:       cfg.Settings.Redis.DB,
		},
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("open settings store: %w", err)
	}
	a.settings, err = settings.Load(ctx, a.store, settings.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	a.session = assistant.NewSession()
	a.notifier = notify.New(out, notify.WithLogger(logger))

	ac := audioio.DefaultConfig()
	ac.Backend = audioio.Backend(cfg.Audio.Backend)
	ac.SampleRate = cfg.Audio.SampleRate
	ac.Device = cfg.Audio.Device
	logger.Debug("audio backends", "configured", ac.Backend, "available", audioio.AvailableBackends())
	newSource := func() (audioio.Source, error) { return audioio.NewSource(ac, logger) }
	newSink := func() (audioio.Sink, error) { return audioio.NewSink(ac, logger) }

	player := playback.NewSinkPlayer(newSink,
		playback.WithResolver(a.client.ResolveURL),
		playback.WithSinkLogger(logger),
	)
	a.playback = playback.New(player,
		playback.WithMuted(a.session.Muted),
		playback.WithVolume(func() float64 { return a.settings.Current().Volume }),
		playback.WithNotifier(a.notifier),
		playback.WithLogger(logger),
	)

	a.synth, err = newSynthesizer(cfg, a.client, logger)
	if err != nil {
		return nil, err
	}
	transcriber, err := newTranscriber(cfg, a.client, logger)
	if err != nil {
		return nil, err
	}

	var recognizer capture.Mechanism
	if cfg.GoogleEnabled() {
		opts := []gcloud.Option{
			gcloud.WithLanguage(cfg.Capture.Language),
			gcloud.WithMaxDuration(cfg.Capture.MaxDuration.ToDuration()),
			gcloud.WithLogger(logger),
		}
		if cfg.Google.CredentialsFile != "" {
			opts = append(opts, gcloud.WithCredentialsFile(cfg.Google.CredentialsFile))
		}
		if cfg.Google.AccessToken != "" {
			opts = append(opts, gcloud.WithAccessToken(cfg.Google.AccessToken))
		}
		r, err := gcloud.New(ctx, newSource, opts...)
		if err != nil {
			a.logger.Warn("speech recognition disabled", "error", err)
		} else {
			a.recognizer = r
			recognizer = r
		}
	}
	recorder := capture.NewRecorder(newSource,
		capture.WithMaxDuration(cfg.Capture.MaxDuration.ToDuration()),
		capture.WithFormat(audioio.Format(cfg.Capture.Encoding)),
		capture.WithRecorderLogger(logger),
	)

	a.panel = history.New(a.client, out,
		history.WithAnswerRenderer(out),
		history.WithPlayer(a.playback),
		history.WithSynthesizer(a.synth, a.voice),
		history.WithMuted(a.session.Muted),
		history.WithNotifier(a.notifier),
		history.WithLogger(logger),
	)

	mode, err := assistant.ParseMode(cfg.Capture.Mode)
	if err != nil {
		return nil, err
	}
	a.ctrl, err = assistant.New(assistant.Deps{
		Backend:     a.client,
		Transcriber: transcriber,
		Synthesizer: a.synth,
		Settings:    a.settings,
		Player:      a.playback,
		Notifier:    a.notifier,
		Answers:     out,
		Status:      out,
		Panel:       a.panel,
		Recognizer:  recognizer,
		Recorder:    recorder,
		Session:     a.session,
		Logger:      logger,
	}, assistant.WithMode(mode))
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (a *app) voice() tts.Voice {
	vs := a.settings.Current()
	return tts.Voice{Type: vs.VoiceType, Rate: vs.Rate, Volume: vs.Volume}
}

// useDocument makes uploadID active without uploading.
func (a *app) useDocument(ctx context.Context, uploadID string) {
	a.session.SetDocument(uploadID)
	a.panel.Load(ctx, uploadID)
}

// Close releases everything newApp acquired, in reverse order.
func (a *app) Close() error {
	var errs []error
	if a.ctrl != nil {
		errs = append(errs, a.ctrl.Close())
	}
	if a.playback != nil {
		errs = append(errs, a.playback.Close())
	}
	if a.recognizer != nil {
		errs = append(errs, a.recognizer.Close())
	}
	if a.synth != nil {
		errs = append(errs, a.synth.Close())
	}
	if a.notifier != nil {
		a.notifier.Close()
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	return errors.Join(errs...)
}

func newSynthesizer(cfg *config.Config, client *llamadoc.Client, logger *slog.Logger) (tts.Provider, error) {
	var providers []tts.Provider
	for _, name := range cfg.Synthesis.Providers {
		switch name {
		case "backend":
			providers = append(providers, tts.NewBackend(client, tts.WithLogger(logger)))
		case "openai":
			opts := []tts.Option{tts.WithAPIKey(cfg.OpenAI.APIKey), tts.WithLogger(logger)}
			if cfg.OpenAI.BaseURL != "" {
				opts = append(opts, tts.WithBaseURL(cfg.OpenAI.BaseURL))
			}
			if cfg.Synthesis.CacheDir != "" {
				opts = append(opts, tts.WithCacheDir(cfg.Synthesis.CacheDir))
			}
			if cfg.Synthesis.Model != "" {
				opts = append(opts, tts.WithModel(cfg.Synthesis.Model))
			}
			for voiceType, voice := range cfg.Synthesis.Voices {
				opts = append(opts, tts.WithVoice(voiceType, voice))
			}
			p, err := tts.NewOpenAI(opts...)
			if err != nil {
				return nil, fmt.Errorf("openai tts: %w", err)
			}
			providers = append(providers, p)
		}
	}
	return tts.NewChainWithLogger(logger, providers...)
}

func newTranscriber(cfg *config.Config, client *llamadoc.Client, logger *slog.Logger) (stt.Transcriber, error) {
	if cfg.Transcriber.Provider == "openai" {
		opts := []stt.Option{stt.WithAPIKey(cfg.OpenAI.APIKey), stt.WithLogger(logger)}
		if cfg.OpenAI.BaseURL != "" {
			opts = append(opts, stt.WithBaseURL(cfg.OpenAI.BaseURL))
		}
		t, err := stt.NewOpenAI(opts...)
		if err != nil {
			return nil, fmt.Errorf("openai transcription: %w", err)
		}
		return t, nil
	}
	return stt.NewBackend(client, stt.WithLogger(logger)), nil
}
