package dispatch

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caji-assist/replymode/internal/message"
	"github.com/caji-assist/replymode/internal/modestore"
	"github.com/caji-assist/replymode/internal/session"
	"github.com/caji-assist/replymode/internal/transcribe"
	"github.com/caji-assist/replymode/internal/transport"
	"github.com/caji-assist/replymode/internal/tts"
	"github.com/caji-assist/replymode/internal/ttspolicy"
)

type fakeSynth struct {
	mu    sync.Mutex
	texts []string
	voice string
	err   error
}

func (f *fakeSynth) Name() string { return "fake" }

func (f *fakeSynth) Synthesize(_ context.Context, text string, opts tts.SynthesizeOpts) (*tts.SynthesizeResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	f.voice = opts.Voice
	if f.err != nil {
		return nil, f.err
	}
	return &tts.SynthesizeResult{Audio: []byte("RIFF"), ContentType: "audio/wav"}, nil
}

func (f *fakeSynth) Close() error { return nil }

type fakeTranscriber struct {
	text string
	err  error
}

func (f fakeTranscriber) Name() string { return "fake" }

func (f fakeTranscriber) Transcribe(context.Context, []byte, string, transcribe.Opts) (string, error) {
	return f.text, f.err
}

type fakeTransport struct {
	name    string
	err     error
	target  message.Target
	payload []byte
}

func (f *fakeTransport) Name() string { return f.name }

func (f *fakeTransport) Listen(context.Context, transport.Service) error { return nil }

func (f *fakeTransport) Close() error { return nil }

func (f *fakeTransport) Send(_ context.Context, target message.Target, payload []byte) error {
	f.target = target
	f.payload = payload
	return f.err
}

type harness struct {
	d        *Dispatcher
	store    *modestore.Memory
	sessions *session.Store
	synth    *fakeSynth
	http     *fakeTransport
}

func newHarness(t *testing.T, tr transcribe.Transcriber) *harness {
	t.Helper()
	store := modestore.NewMemory()
	sessions := session.NewStore(session.Config{Voice: "Kore"})
	synth := &fakeSynth{}
	httpT := &fakeTransport{name: "http"}

	d := New(Deps{
		Evaluator:   ttspolicy.New(store),
		Sessions:    sessions,
		Store:       store,
		Transcriber: tr,
		Synthesizer: synth,
		Transports:  []transport.Transport{httpT},
	})
	d.now = func() time.Time { return time.Date(2025, 3, 7, 14, 5, 0, 0, time.UTC) }
	return &harness{d: d, store: store, sessions: sessions, synth: synth, http: httpT}
}

func (h *harness) enableTTS(sessionID, rules string) {
	on := true
	u := session.Update{TTSEnabled: &on}
	if rules != "" {
		u.Rules = json.RawMessage(rules)
	}
	h.sessions.Merge(sessionID, u)
}

func textMsg(text, response string) *message.Message {
	return &message.Message{
		SessionID:    "s1",
		RemoteJID:    "5511999999999@s.whatsapp.net",
		Text:         text,
		ResponseText: response,
	}
}

func TestHandleTextWhenTTSDisabled(t *testing.T) {
	h := newHarness(t, nil)

	reply, err := h.d.Handle(context.Background(), textMsg("oi", "Olá! Como posso ajudar?"))
	require.NoError(t, err)

	assert.NotEmpty(t, reply.MessageID)
	assert.Equal(t, "s1:5511999999999@s.whatsapp.net", reply.ContactID)
	assert.Equal(t, "07/03/2025 14:05", reply.LocalTime)
	assert.Equal(t, message.ReplyModeText, reply.Mode)
	assert.Empty(t, reply.Reason)
	require.Len(t, reply.Parts, 1)
	assert.Equal(t, message.TextPart("Olá! Como posso ajudar?"), reply.Parts[0])
	assert.Empty(t, h.synth.texts)
}

func TestHandleAudioWithoutRules(t *testing.T) {
	h := newHarness(t, nil)
	h.enableTTS("s1", "")

	reply, err := h.d.Handle(context.Background(), textMsg("oi", "Olá!"))
	require.NoError(t, err)

	assert.Equal(t, message.ReplyModeAudio, reply.Mode)
	assert.Equal(t, string(ttspolicy.ReasonNoRules), reply.Reason)
	require.Len(t, reply.Parts, 1)
	assert.Equal(t, message.PartAudio, reply.Parts[0].Kind)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("RIFF")), reply.Parts[0].Audio)
	assert.Equal(t, []string{"Olá!"}, h.synth.texts)
	assert.Equal(t, "Kore", h.synth.voice)
}

func TestHandleExtractsLinksFromSpokenText(t *testing.T) {
	h := newHarness(t, nil)
	h.enableTTS("s1", `{"audioOnly": true}`)

	reply, err := h.d.Handle(context.Background(), textMsg("catálogo?", "Veja o catálogo https://loja.com/c agora"))
	require.NoError(t, err)

	assert.Equal(t, message.ReplyModeAudio, reply.Mode)
	require.Len(t, reply.Parts, 2)
	assert.Equal(t, message.PartAudio, reply.Parts[0].Kind)
	assert.Equal(t, "🔗 Link: https://loja.com/c", reply.Parts[1].Text)

	require.Len(t, h.synth.texts, 1)
	assert.Contains(t, h.synth.texts[0], ", e segue abaixo o link")
	assert.NotContains(t, h.synth.texts[0], "https://")
}

func TestHandleOnlyLinksStaysText(t *testing.T) {
	h := newHarness(t, nil)
	h.enableTTS("s1", `{"audioOnly": true}`)

	reply, err := h.d.Handle(context.Background(), textMsg("link?", "https://loja.com/c"))
	require.NoError(t, err)

	assert.Equal(t, message.ReplyModeText, reply.Mode)
	assert.Equal(t, []message.Part{message.TextPart("https://loja.com/c")}, reply.Parts)
	assert.Empty(t, h.synth.texts)
}

func TestHandleSynthesisFailureFallsBackToText(t *testing.T) {
	h := newHarness(t, nil)
	h.synth.err = errors.New("quota")
	h.enableTTS("s1", "")

	reply, err := h.d.Handle(context.Background(), textMsg("oi", "Veja https://a.com e aproveite"))
	require.NoError(t, err)

	assert.Equal(t, message.ReplyModeText, reply.Mode)
	assert.Equal(t, []message.Part{message.TextPart("Veja https://a.com e aproveite")}, reply.Parts)
	assert.Empty(t, reply.Error)
}

func TestHandleTranscribesVoiceNotes(t *testing.T) {
	h := newHarness(t, fakeTranscriber{text: " qual o preço? "})
	h.enableTTS("s1", `{"audioOnAudioReceived": true}`)

	msg := &message.Message{
		SessionID:    "s1",
		RemoteJID:    "5511@s.whatsapp.net",
		Audio:        []byte("OggS"),
		ContentType:  "audio/ogg; codecs=opus",
		ResponseText: "Custa R$ 10.",
	}
	reply, err := h.d.Handle(context.Background(), msg)
	require.NoError(t, err)

	assert.Equal(t, "qual o preço?", reply.Transcript)
	assert.Equal(t, message.ReplyModeAudio, reply.Mode)
	assert.Equal(t, string(ttspolicy.ReasonAudioReceived), reply.Reason)
}

func TestHandleTranscriptionSentinels(t *testing.T) {
	h := newHarness(t, nil)
	msg := &message.Message{SessionID: "s1", RemoteJID: "r", Audio: []byte{1}, ResponseText: "ok"}

	reply, err := h.d.Handle(context.Background(), msg)
	require.NoError(t, err)
	assert.Equal(t, transcribe.SentinelMissingKey, reply.Transcript)

	h = newHarness(t, fakeTranscriber{err: transcribe.ErrQuotaExceeded})
	msg = &message.Message{SessionID: "s1", RemoteJID: "r", Audio: []byte{1}, ResponseText: "ok"}
	reply, err = h.d.Handle(context.Background(), msg)
	require.NoError(t, err)
	assert.Equal(t, transcribe.SentinelQuotaExceeded, reply.Transcript)
}

func TestHandleVoiceModeAcrossMessages(t *testing.T) {
	h := newHarness(t, nil)
	h.enableTTS("s1", `{"audioOnRequest": true}`)
	ctx := context.Background()

	reply, err := h.d.Handle(ctx, textMsg("Manda áudio, por favor", "Claro!"))
	require.NoError(t, err)
	assert.Equal(t, message.ReplyModeAudio, reply.Mode)
	assert.Equal(t, string(ttspolicy.ReasonStartPhrase), reply.Reason)

	reply, err = h.d.Handle(ctx, textMsg("e o frete?", "Grátis."))
	require.NoError(t, err)
	assert.Equal(t, message.ReplyModeAudio, reply.Mode)
	assert.Equal(t, string(ttspolicy.ReasonModeActive), reply.Reason)

	reply, err = h.d.Handle(ctx, textMsg("prefiro texto", "Ok."))
	require.NoError(t, err)
	assert.Equal(t, message.ReplyModeText, reply.Mode)
	assert.Equal(t, string(ttspolicy.ReasonStopPhrase), reply.Reason)

	state, err := h.d.AudioMode(ctx, "s1:5511999999999@s.whatsapp.net")
	require.NoError(t, err)
	assert.False(t, state.Enabled)
}

func TestHandleRequiresResponseText(t *testing.T) {
	h := newHarness(t, nil)

	reply, err := h.d.Handle(context.Background(), textMsg("oi", "  "))
	require.NoError(t, err)
	assert.Equal(t, "message has no response_text", reply.Error)
	assert.Empty(t, reply.Parts)

	reply, err = h.d.Handle(context.Background(), &message.Message{Type: message.IncomingAudio, ResponseText: "x"})
	require.NoError(t, err)
	assert.Equal(t, "audio message has no payload", reply.Error)

	reply, err = h.d.Handle(context.Background(), &message.Message{Type: "image", ResponseText: "x"})
	require.NoError(t, err)
	assert.Contains(t, reply.Error, "unsupported message type")
}

func TestHandleRoutesToTarget(t *testing.T) {
	h := newHarness(t, nil)
	msg := textMsg("oi", "Olá!")
	msg.ReplyTo = &message.Target{ServiceName: "gateway", Endpoint: "http://gw/replies", Protocol: "http"}

	reply, err := h.d.Handle(context.Background(), msg)
	require.NoError(t, err)
	assert.Equal(t, []string{"gateway"}, reply.RoutedTo)
	assert.Equal(t, "http://gw/replies", h.http.target.Endpoint)

	var sent message.Reply
	require.NoError(t, json.Unmarshal(h.http.payload, &sent))
	assert.Equal(t, reply.MessageID, sent.MessageID)

	h.http.err = errors.New("down")
	reply, err = h.d.Handle(context.Background(), msg)
	require.NoError(t, err)
	assert.Empty(t, reply.RoutedTo)

	msg.ReplyTo.Protocol = "mqtt"
	reply, err = h.d.Handle(context.Background(), msg)
	require.NoError(t, err)
	assert.Empty(t, reply.RoutedTo)
}

func TestDecide(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	res, err := h.d.Decide(ctx, message.DecisionRequest{})
	require.NoError(t, err)
	assert.Equal(t, message.DecisionResponse{Audio: true, Reason: string(ttspolicy.ReasonNoRules)}, res)

	res, err = h.d.Decide(ctx, message.DecisionRequest{
		Rules:        json.RawMessage(`"{\"audioOnAudioReceived\":true}"`),
		IncomingType: message.IncomingAudio,
	})
	require.NoError(t, err)
	assert.True(t, res.Audio)
	assert.Equal(t, string(ttspolicy.ReasonAudioReceived), res.Reason)

	_, err = h.d.Decide(ctx, message.DecisionRequest{IncomingType: "video"})
	assert.ErrorIs(t, err, transport.ErrInvalidRequest)
}

func TestSessionConfig(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	cfg, err := h.d.SessionConfig(ctx, "s9")
	require.NoError(t, err)
	assert.False(t, cfg.TTSEnabled)
	assert.Equal(t, "Kore", cfg.Voice)

	on, voice := true, "Aoede"
	cfg, err = h.d.UpdateSessionConfig(ctx, "s9", session.Update{TTSEnabled: &on, Voice: &voice})
	require.NoError(t, err)
	assert.True(t, cfg.TTSEnabled)
	assert.Equal(t, "Aoede", cfg.Voice)

	_, err = h.d.UpdateSessionConfig(ctx, "s9", session.Update{Rules: json.RawMessage(`{bad`)})
	assert.ErrorIs(t, err, transport.ErrInvalidRequest)

	_, err = h.d.SessionConfig(ctx, "")
	assert.ErrorIs(t, err, transport.ErrInvalidRequest)
}

func TestAudioMode(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	require.NoError(t, h.store.SetAudioMode(ctx, "c1", true))

	state, err := h.d.AudioMode(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, message.AudioModeState{ContactID: "c1", Enabled: true}, state)

	_, err = h.d.AudioMode(ctx, "")
	assert.ErrorIs(t, err, transport.ErrInvalidRequest)
}
