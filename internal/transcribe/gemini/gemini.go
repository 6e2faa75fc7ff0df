// Package gemini implements the Transcriber interface with Gemini's
// multimodal generateContent API: the voice note is sent as inline data
// together with a literal-transcription instruction.
package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"github.com/caji-assist/replymode/internal/config"
	"github.com/caji-assist/replymode/internal/transcribe"
)

const (
	defaultModel  = "gemini-2.5-flash"
	defaultPrompt = "Transcreva este áudio para texto em português. Retorne APENAS a transcrição literal do que foi dito, sem comentários ou explicações adicionais."
)

// contentGenerator is the subset of *genai.Models used here.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Transcriber uses Gemini for speech-to-text.
type Transcriber struct {
	models contentGenerator // nil when no API key is configured
	model  string
}

// New creates a Gemini transcriber. A missing API key is not an error here:
// every call then fails with transcribe.ErrMissingAPIKey.
func New(ctx context.Context, cfg config.GeminiConfig) (*Transcriber, error) {
	t := &Transcriber{model: cfg.Model}
	if t.model == "" {
		t.model = defaultModel
	}
	if cfg.APIKey == "" {
		slog.Warn("gemini transcription has no api key, voice notes will not be transcribed")
		return t, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	t.models = client.Models
	return t, nil
}

// Name returns the backend identifier.
func (t *Transcriber) Name() string { return "gemini" }

// Transcribe sends the audio inline and returns the literal transcription.
func (t *Transcriber) Transcribe(ctx context.Context, audio []byte, contentType string, opts transcribe.Opts) (string, error) {
	if t.models == nil {
		return "", transcribe.ErrMissingAPIKey
	}
	if len(audio) == 0 {
		return "", fmt.Errorf("empty audio")
	}

	mime := transcribe.BaseMIMEType(contentType)
	if mime == "" {
		mime = "audio/ogg"
	}
	prompt := opts.Prompt
	if prompt == "" {
		prompt = defaultPrompt
	}

	contents := []*genai.Content{{
		Role: "user",
		Parts: []*genai.Part{
			{InlineData: &genai.Blob{MIMEType: mime, Data: audio}},
			{Text: prompt},
		},
	}}

	slog.Debug("gemini transcribe", "model", t.model, "mime_type", mime, "bytes", len(audio))
	resp, err := t.models.GenerateContent(ctx, t.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("gemini generate content: %w", err)
	}

	// A silent note yields an empty transcription, not an error.
	text := responseText(resp)
	slog.Debug("transcription complete", "backend", "gemini", "text_length", len(text))
	return text, nil
}

// responseText concatenates the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			sb.WriteString(part.Text)
		}
	}
	return strings.TrimSpace(sb.String())
}
