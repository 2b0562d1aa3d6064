// Package llamadoc is a client for the LlamaDoc document Q&A backend.
//
// The backend indexes uploaded PDFs, answers questions about them,
// transcribes and synthesizes speech, and keeps a per-document history of
// question/answer turns. Every failure is returned classified with the
// apperr taxonomy so callers can pick a fallback without inspecting HTTP
// status codes themselves.
package llamadoc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/teslashibe/llamadoc-voice/internal/httpc"
	"github.com/teslashibe/llamadoc-voice/pkg/apperr"
	"github.com/teslashibe/llamadoc-voice/pkg/audioio"
)

// Endpoint names, used as error ops and in logs.
const (
	opUpload      = "upload"
	opQuery       = "query"
	opVoiceInput  = "voice-input"
	opTTS         = "tts"
	opSaveHistory = "save_history"
	opHistory     = "history"
	opDownload    = "download"
)

// DefaultHistoryLimit is how many turns ListHistory asks for.
const DefaultHistoryLimit = 50

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 64 << 10

// Client talks to one LlamaDoc backend.
type Client struct {
	base   *url.URL
	http   *http.Client
	logger *slog.Logger
	limit  int
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.http = c
	}
}

// WithTimeout uses a dedicated HTTP client with the given timeout.
// Question answering on small models can take a minute.
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) {
		cl.http = httpc.NewClient(d)
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(cl *Client) {
		cl.logger = l
	}
}

// WithHistoryLimit sets how many turns ListHistory requests.
func WithHistoryLimit(n int) Option {
	return func(cl *Client) {
		cl.limit = n
	}
}

// New creates a client for the backend at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, ErrNoBaseURL
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("llamadoc: parse base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("llamadoc: base URL must be http or https, got %q", baseURL)
	}

	c := &Client{
		base:   u,
		http:   httpc.Client,
		logger: slog.Default(),
		limit:  DefaultHistoryLimit,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "llamadoc")
	return c, nil
}

// BaseURL returns the backend address.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// endpoint joins path segments onto the base URL, escaping each segment.
func (c *Client) endpoint(segments ...string) string {
	return c.base.JoinPath(segments...).String()
}

// ResolveURL turns a backend-relative reference such as
// "/uploads/audio/x.wav" into an absolute URL. Absolute http(s) and file
// references are returned unchanged.
func (c *Client) ResolveURL(ref string) string {
	if ref == "" {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil || u.IsAbs() {
		return ref
	}
	return c.base.ResolveReference(u).String()
}

// do sends req and decodes a JSON response into out (if non-nil).
func (c *Client) do(req *http.Request, op string, out any) error {
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return ctxErr
		}
		return apperr.WrapMessage(apperr.KindNetwork, op, "Could not reach the server. Please try again.", err)
	}
	defer resp.Body.Close()

	c.logger.Debug("backend request",
		"op", op,
		"status", resp.StatusCode,
		"latency_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return classify(readAPIError(op, resp))
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperr.WrapMessage(apperr.KindNetwork, op, "Unexpected response from server.", fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// readAPIError extracts {"detail": ...} from an error response. FastAPI
// validation errors carry a list in detail; the first message is used.
func readAPIError(op string, resp *http.Response) *APIError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	e := &APIError{Op: op, StatusCode: resp.StatusCode}

	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if json.Unmarshal(body, &payload) == nil && len(payload.Detail) > 0 {
		var s string
		if json.Unmarshal(payload.Detail, &s) == nil {
			e.Detail = s
			return e
		}
		var list []struct {
			Msg string `json:"msg"`
		}
		if json.Unmarshal(payload.Detail, &list) == nil && len(list) > 0 {
			e.Detail = list[0].Msg
			return e
		}
		e.Detail = string(payload.Detail)
		return e
	}
	e.Detail = strings.TrimSpace(string(body))
	if e.Detail == "" {
		e.Detail = http.StatusText(resp.StatusCode)
	}
	return e
}

// UploadDocument uploads and indexes a PDF.
func (c *Client) UploadDocument(ctx context.Context, filename string, r io.Reader) (*Upload, error) {
	req, err := httpc.NewMultipartRequest(ctx, c.endpoint("upload"), nil,
		httpc.FilePart{Field: "file", Filename: filename, ContentType: "application/pdf", Body: r})
	if err != nil {
		return nil, err
	}
	var out Upload
	if err := c.do(req, opUpload, &out); err != nil {
		return nil, err
	}
	if out.UploadID == "" {
		return nil, apperr.WrapMessage(apperr.KindNetwork, opUpload, "Upload failed.", errors.New("response has no upload_id"))
	}
	c.logger.Info("document uploaded", "upload_id", out.UploadID, "file", filename)
	return &out, nil
}

// SubmitQuestion asks a question about an uploaded document.
func (c *Client) SubmitQuestion(ctx context.Context, uploadID, question string) (*QueryResult, error) {
	if uploadID == "" {
		return nil, apperr.ErrNoDocument
	}
	if strings.TrimSpace(question) == "" {
		return nil, apperr.Wrap(apperr.KindPrecondition, opQuery, ErrEmptyQuestion)
	}
	req, err := httpc.NewJSONRequest(ctx, http.MethodPost, c.endpoint("query"), map[string]string{
		"upload_id": uploadID,
		"question":  question,
	})
	if err != nil {
		return nil, err
	}
	var out QueryResult
	if err := c.do(req, opQuery, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// TranscribeAudio sends recorded audio for server-side speech recognition.
// A backend without its transcription dependencies answers 501, which is
// returned as apperr.KindUnavailable.
func (c *Client) TranscribeAudio(ctx context.Context, clip audioio.Clip) (string, error) {
	if clip.Empty() {
		return "", apperr.ErrNoSpeech
	}
	req, err := httpc.NewMultipartRequest(ctx, c.endpoint("voice-input"), nil,
		httpc.FilePart{Field: "audio", Filename: clip.Filename("recording"), ContentType: clip.MimeType, Body: bytes.NewReader(clip.Data)})
	if err != nil {
		return "", err
	}
	var out struct {
		Text string `json:"text"`
	}
	if err := c.do(req, opVoiceInput, &out); err != nil {
		return "", err
	}
	text := strings.TrimSpace(out.Text)
	if text == "" {
		return "", apperr.ErrNoSpeech
	}
	return text, nil
}

// SynthesizeSpeech renders text to an audio file on the backend and
// returns its (backend-relative) URL.
func (c *Client) SynthesizeSpeech(ctx context.Context, sr SpeechRequest) (string, error) {
	req, err := httpc.NewJSONRequest(ctx, http.MethodPost, c.endpoint("tts"), sr)
	if err != nil {
		return "", err
	}
	var out struct {
		AudioURL string `json:"audio_url"`
	}
	if err := c.do(req, opTTS, &out); err != nil {
		return "", err
	}
	if out.AudioURL == "" {
		return "", apperr.WrapMessage(apperr.KindNetwork, opTTS, "Voice response unavailable.", errors.New("response has no audio_url"))
	}
	return out.AudioURL, nil
}

// SaveHistoryEntry persists a turn. The request is always multipart so
// the question audio can travel with it.
func (c *Client) SaveHistoryEntry(ctx context.Context, rec HistoryRecord) (string, error) {
	if rec.UploadID == "" {
		return "", apperr.ErrNoDocument
	}
	fields := map[string]string{
		"upload_id":   rec.UploadID,
		"question":    rec.Question,
		"answer":      rec.Answer,
		"summary":     rec.Summary,
		"voice_type":  rec.VoiceType,
		"audio_speed": strconv.Itoa(rec.Rate),
		"is_muted":    strconv.FormatBool(rec.Muted),
	}
	if rec.AnswerAudioURL != "" {
		fields["answer_audio_url"] = rec.AnswerAudioURL
	}
	var files []httpc.FilePart
	if rec.QuestionAudio != nil && !rec.QuestionAudio.Empty() {
		files = append(files, httpc.FilePart{
			Field:       "question_audio",
			Filename:    rec.QuestionAudio.Filename("question"),
			ContentType: rec.QuestionAudio.MimeType,
			Body:        bytes.NewReader(rec.QuestionAudio.Data),
		})
	}
	req, err := httpc.NewMultipartRequest(ctx, c.endpoint("save_history"), fields, files...)
	if err != nil {
		return "", err
	}
	var out struct {
		HistoryID ID `json:"history_id"`
	}
	if err := c.do(req, opSaveHistory, &out); err != nil {
		return "", err
	}
	return string(out.HistoryID), nil
}

// ListHistory returns the persisted turns for a document, newest first.
func (c *Client) ListHistory(ctx context.Context, uploadID string) ([]HistoryEntry, error) {
	if uploadID == "" {
		return nil, apperr.ErrNoDocument
	}
	u := c.endpoint("history") + "?" + url.Values{
		"upload_id": {uploadID},
		"limit":     {strconv.Itoa(c.limit)},
	}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	var out []HistoryEntry
	if err := c.do(req, opHistory, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DownloadAnswer streams the latest answer for a document in format f
// into w and returns the suggested filename.
func (c *Client) DownloadAnswer(ctx context.Context, uploadID string, f Format, w io.Writer) (string, error) {
	if uploadID == "" {
		return "", apperr.ErrNoDocument
	}
	if _, err := ParseFormat(string(f)); err != nil {
		return "", apperr.Wrap(apperr.KindPrecondition, opDownload, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("download", uploadID, string(f)), nil)
	if err != nil {
		return "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", apperr.WrapMessage(apperr.KindNetwork, opDownload, "Could not reach the server. Please try again.", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", classify(readAPIError(opDownload, resp))
	}

	name := downloadName(uploadID, f)
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil && params["filename"] != "" {
		name = params["filename"]
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		return "", apperr.Wrap(apperr.KindNetwork, opDownload, err)
	}
	return name, nil
}

func downloadName(uploadID string, f Format) string {
	short := uploadID
	if len(short) > 8 {
		short = short[:8]
	}
	return "answer_" + short + "." + string(f)
}
