// Package openai implements the Transcriber interface using OpenAI's Audio
// Transcription API (Whisper).
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/caji-assist/replymode/internal/config"
	"github.com/caji-assist/replymode/internal/transcribe"
)

const transcriptionURL = "https://api.openai.com/v1/audio/transcriptions"

// Transcriber uses the OpenAI transcription endpoint.
type Transcriber struct {
	apiKey   string
	model    string
	language string
	prompt   string
	url      string
	client   *http.Client
}

// New creates a new OpenAI transcriber from config.
func New(cfg config.OpenAIConfig) *Transcriber {
	model := cfg.Model
	if model == "" {
		model = "whisper-1"
	}
	return &Transcriber{
		apiKey:   cfg.APIKey,
		model:    model,
		language: cfg.Language,
		prompt:   cfg.Prompt,
		url:      transcriptionURL,
		client:   &http.Client{Timeout: 60 * time.Second},
	}
}

// Name returns the backend identifier.
func (t *Transcriber) Name() string { return "openai" }

// Transcribe sends audio to the OpenAI Transcription API.
func (t *Transcriber) Transcribe(ctx context.Context, audio []byte, contentType string, opts transcribe.Opts) (string, error) {
	if t.apiKey == "" {
		return "", transcribe.ErrMissingAPIKey
	}
	if len(audio) == 0 {
		return "", fmt.Errorf("empty audio")
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	// WhatsApp voice notes are Ogg/Opus unless stated otherwise.
	part, err := writer.CreateFormFile("file", "audio"+extFromContentType(contentType))
	if err != nil {
		return "", fmt.Errorf("creating form file: %w", err)
	}
	if _, err := io.Copy(part, bytes.NewReader(audio)); err != nil {
		return "", fmt.Errorf("writing audio: %w", err)
	}

	_ = writer.WriteField("model", t.model)
	_ = writer.WriteField("response_format", "json")

	language := opts.Language
	if language == "" {
		language = t.language
	}
	if language != "" {
		_ = writer.WriteField("language", language)
	}
	prompt := opts.Prompt
	if prompt == "" {
		prompt = t.prompt
	}
	if prompt != "" {
		_ = writer.WriteField("prompt", prompt)
	}
	writer.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, body)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+t.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcription request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", transcribe.ErrQuotaExceeded
	}
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("transcription failed (status %d): %s", resp.StatusCode, respBody)
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding transcription: %w", err)
	}

	slog.Debug("transcription complete", "backend", "openai", "text_length", len(result.Text))
	return result.Text, nil
}

func extFromContentType(ct string) string {
	switch {
	case strings.Contains(ct, "wav"):
		return ".wav"
	case strings.Contains(ct, "mp3"), strings.Contains(ct, "mpeg"):
		return ".mp3"
	case strings.Contains(ct, "mp4"), strings.Contains(ct, "m4a"):
		return ".m4a"
	case strings.Contains(ct, "webm"):
		return ".webm"
	case strings.Contains(ct, "flac"):
		return ".flac"
	default:
		return ".ogg"
	}
}
