package stt

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/teslashibe/llamadoc-voice/pkg/apperr"
	"github.com/teslashibe/llamadoc-voice/pkg/audioio"
)

const opWhisper = "whisper"

// OpenAI transcribes with the OpenAI Whisper API.
type OpenAI struct {
	client *openai.Client
	config *Config
	logger *slog.Logger
}

// NewOpenAI creates a Whisper transcriber.
func NewOpenAI(opts ...Option) (*OpenAI, error) {
	cfg := DefaultConfig()
	cfg.Model = openai.Whisper1
	cfg.Apply(opts...)
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	return &OpenAI{
		client: openai.NewClientWithConfig(oc),
		config: cfg,
		logger: cfg.Logger.With("component", "stt.openai"),
	}, nil
}

// Transcribe implements Transcriber.
func (o *OpenAI) Transcribe(ctx context.Context, clip audioio.Clip) (string, error) {
	if clip.Empty() {
		return "", apperr.ErrNoSpeech
	}
	ctx, cancel := context.WithTimeout(ctx, o.config.Timeout)
	defer cancel()

	resp, err := o.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    o.config.Model,
		FilePath: clip.Filename("question"),
		Reader:   bytes.NewReader(clip.Data),
		Language: o.config.Language,
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		return "", classifyOpenAI(err)
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", apperr.ErrNoSpeech
	}
	o.logger.Debug("transcribed", "chars", len(text))
	return text, nil
}

// classifyOpenAI maps OpenAI failures onto the error taxonomy. Credential
// problems count as unavailable so the caller falls back.
func classifyOpenAI(err error) error {
	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}
	switch status {
	case http.StatusBadRequest:
		return apperr.Wrap(apperr.KindNoInput, opWhisper, err)
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotImplemented:
		return apperr.Wrap(apperr.KindUnavailable, opWhisper, err)
	default:
		return apperr.Wrap(apperr.KindNetwork, opWhisper, err)
	}
}

var _ Transcriber = (*OpenAI)(nil)
