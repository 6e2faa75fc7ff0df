package gemini

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/caji-assist/replymode/internal/config"
	"github.com/caji-assist/replymode/internal/tts"
)

type fakeModels struct {
	contents []*genai.Content
	cfg      *genai.GenerateContentConfig
	resp     *genai.GenerateContentResponse
	err      error
}

func (f *fakeModels) GenerateContent(_ context.Context, _ string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.contents = contents
	f.cfg = cfg
	return f.resp, f.err
}

func audioResponse(mime string, data []byte) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{
				{InlineData: &genai.Blob{MIMEType: mime, Data: data}},
			}},
		}},
	}
}

func TestSynthesizeWrapsPCM(t *testing.T) {
	fake := &fakeModels{resp: audioResponse("audio/L16;codec=pcm;rate=24000", []byte{0, 1, 2, 3})}
	s := newSynthesizer(fake, config.GeminiTTSConfig{})

	res, err := s.Synthesize(context.Background(), "Olá, tudo bem?", tts.SynthesizeOpts{Voice: "Puck"})
	require.NoError(t, err)

	assert.Equal(t, "audio/wav", res.ContentType)
	assert.Equal(t, 24000, res.SampleRate)
	assert.True(t, tts.IsWAV(res.Audio))
	assert.Len(t, res.Audio, 44+4)

	require.NotNil(t, fake.cfg)
	assert.Equal(t, []string{"AUDIO"}, fake.cfg.ResponseModalities)
	assert.Equal(t, "Puck", fake.cfg.SpeechConfig.VoiceConfig.PrebuiltVoiceConfig.VoiceName)
	assert.Equal(t, readAloudPrompt+"Olá, tudo bem?", fake.contents[0].Parts[0].Text)
}

func TestSynthesizeDefaultVoiceAndCap(t *testing.T) {
	fake := &fakeModels{resp: audioResponse("audio/L16", []byte{0, 0})}
	s := newSynthesizer(fake, config.GeminiTTSConfig{MaxChars: 10})

	_, err := s.Synthesize(context.Background(), strings.Repeat("á", 20), tts.SynthesizeOpts{})
	require.NoError(t, err)

	assert.Equal(t, defaultVoice, fake.cfg.SpeechConfig.VoiceConfig.PrebuiltVoiceConfig.VoiceName)
	assert.Equal(t, readAloudPrompt+strings.Repeat("á", 10), fake.contents[0].Parts[0].Text)
}

func TestSynthesizeKeepsWAV(t *testing.T) {
	wav := tts.PCMToWAV([]byte{9, 9}, 16000, 1, 2)
	s := newSynthesizer(&fakeModels{resp: audioResponse("audio/wav", wav)}, config.GeminiTTSConfig{})

	res, err := s.Synthesize(context.Background(), "oi", tts.SynthesizeOpts{})
	require.NoError(t, err)
	assert.Equal(t, wav, res.Audio)
}

func TestSynthesizeErrors(t *testing.T) {
	ctx := context.Background()

	s := newSynthesizer(&fakeModels{}, config.GeminiTTSConfig{})
	_, err := s.Synthesize(ctx, "   ", tts.SynthesizeOpts{})
	assert.ErrorIs(t, err, tts.ErrEmptyText)

	s = newSynthesizer(&fakeModels{err: errors.New("unavailable")}, config.GeminiTTSConfig{})
	_, err = s.Synthesize(ctx, "oi", tts.SynthesizeOpts{})
	assert.ErrorContains(t, err, "unavailable")

	s = newSynthesizer(&fakeModels{resp: &genai.GenerateContentResponse{}}, config.GeminiTTSConfig{})
	_, err = s.Synthesize(ctx, "oi", tts.SynthesizeOpts{})
	assert.ErrorContains(t, err, "no audio")
}

func TestNewRequiresKey(t *testing.T) {
	_, err := New(context.Background(), config.GeminiTTSConfig{})
	assert.Error(t, err)
}
