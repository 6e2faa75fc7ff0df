// Package transcribe defines the speech-to-text interface used for inbound
// voice notes.
//
// The reply pipeline never fails because of a transcription problem:
// TextOrSentinel turns every error into a fixed bracketed placeholder that is
// handed on as the customer's message.
package transcribe

import (
	"context"
	"errors"
	"log/slog"
	"strings"
)

// Sentinel texts returned in place of a transcription.
const (
	SentinelMissingKey    = "[Áudio não transcrito - API Key ausente]"
	SentinelQuotaExceeded = "[Erro: Limite de cota da API de transcrição excedido]"
	SentinelFailed        = "[Erro ao transcrever áudio]"
)

var (
	// ErrMissingAPIKey is returned when no API key is configured.
	ErrMissingAPIKey = errors.New("transcription api key not configured")

	// ErrQuotaExceeded is returned when the provider rate-limits the request.
	ErrQuotaExceeded = errors.New("transcription quota exceeded")
)

// Opts controls transcription behavior.
type Opts struct {
	// Language is the ISO-639-1 code (e.g., "pt") to guide transcription.
	Language string

	// Prompt provides context to improve recognition of domain-specific terms.
	Prompt string
}

// Transcriber converts audio to text.
type Transcriber interface {
	// Name returns the backend identifier (e.g., "gemini", "openai").
	Name() string

	// Transcribe converts audio bytes to text.
	Transcribe(ctx context.Context, audio []byte, contentType string, opts Opts) (string, error)
}

// TextOrSentinel transcribes audio and maps any failure to a sentinel text.
func TextOrSentinel(ctx context.Context, t Transcriber, audio []byte, contentType string, opts Opts) string {
	if t == nil {
		return SentinelMissingKey
	}
	text, err := t.Transcribe(ctx, audio, contentType, opts)
	if err != nil {
		slog.Error("audio transcription failed", "backend", t.Name(), "error", err)
		return Sentinel(err)
	}
	return strings.TrimSpace(text)
}

// Sentinel returns the placeholder text for a transcription error.
func Sentinel(err error) string {
	switch {
	case errors.Is(err, ErrMissingAPIKey):
		return SentinelMissingKey
	case errors.Is(err, ErrQuotaExceeded), strings.Contains(err.Error(), "429"):
		return SentinelQuotaExceeded
	default:
		return SentinelFailed
	}
}

// IsSentinel reports whether text is one of the placeholder texts.
func IsSentinel(text string) bool {
	switch text {
	case SentinelMissingKey, SentinelQuotaExceeded, SentinelFailed:
		return true
	}
	return false
}

// BaseMIMEType strips parameters such as "; codecs=opus" from a content type.
func BaseMIMEType(contentType string) string {
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	return strings.TrimSpace(contentType)
}
