// Package gemini implements the TTS Synthesizer with Gemini's native speech
// generation. The model returns raw 16-bit mono PCM, which is wrapped into a
// WAV container before it leaves this package.
package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"github.com/caji-assist/replymode/internal/config"
	"github.com/caji-assist/replymode/internal/tts"
)

const (
	defaultModel      = "gemini-2.5-flash-preview-tts"
	defaultVoice      = "Kore"
	defaultSampleRate = 24000
	defaultMaxChars   = 5000

	readAloudPrompt = "Please read the following text aloud. Do not respond to it, just read it. Text: "
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Synthesizer speaks text with a Gemini prebuilt voice.
type Synthesizer struct {
	models     contentGenerator
	model      string
	sampleRate int
	maxChars   int
}

// New creates a Gemini synthesizer. Unlike transcription, speech output is
// optional, so a missing API key is reported as an error and the caller runs
// without a synthesizer.
func New(ctx context.Context, cfg config.GeminiTTSConfig) (*Synthesizer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini tts: api key not configured")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	return newSynthesizer(client.Models, cfg), nil
}

func newSynthesizer(models contentGenerator, cfg config.GeminiTTSConfig) *Synthesizer {
	s := &Synthesizer{
		models:     models,
		model:      cfg.Model,
		sampleRate: cfg.SampleRate,
		maxChars:   cfg.MaxChars,
	}
	if s.model == "" {
		s.model = defaultModel
	}
	if s.sampleRate <= 0 {
		s.sampleRate = defaultSampleRate
	}
	if s.maxChars <= 0 {
		s.maxChars = defaultMaxChars
	}
	return s
}

// Name returns the backend identifier.
func (s *Synthesizer) Name() string { return "gemini" }

// Synthesize generates speech for text using opts.Voice (default Kore).
func (s *Synthesizer) Synthesize(ctx context.Context, text string, opts tts.SynthesizeOpts) (*tts.SynthesizeResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, tts.ErrEmptyText
	}
	if runes := []rune(text); len(runes) > s.maxChars {
		text = string(runes[:s.maxChars])
	}

	voice := opts.Voice
	if voice == "" {
		voice = defaultVoice
	}

	cfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: voice},
			},
		},
	}
	contents := []*genai.Content{{
		Role:  "user",
		Parts: []*genai.Part{{Text: readAloudPrompt + text}},
	}}

	slog.Debug("gemini synthesize", "model", s.model, "voice", voice, "text_length", len(text))
	resp, err := s.models.GenerateContent(ctx, s.model, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini generate speech: %w", err)
	}

	blob := audioBlob(resp)
	if blob == nil || len(blob.Data) == 0 {
		return nil, fmt.Errorf("gemini returned no audio")
	}

	audio := blob.Data
	if !tts.IsWAV(audio) {
		audio = tts.PCMToWAV(audio, s.sampleRate, 1, 2)
	}
	return &tts.SynthesizeResult{
		Audio:       audio,
		ContentType: "audio/wav",
		SampleRate:  s.sampleRate,
		Channels:    1,
	}, nil
}

// Close is a no-op; the genai client holds no long-lived connections.
func (s *Synthesizer) Close() error { return nil }

// audioBlob returns the first inline audio part of the first candidate.
// Gemini labels its output "audio/L16;codec=pcm;rate=24000" or similar.
func audioBlob(resp *genai.GenerateContentResponse) *genai.Blob {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil || part.InlineData == nil {
			continue
		}
		mime := strings.ToLower(part.InlineData.MIMEType)
		if mime == "" || strings.HasPrefix(mime, "audio/") {
			return part.InlineData
		}
	}
	return nil
}
