package ttspolicy

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caji-assist/replymode/internal/message"
	"github.com/caji-assist/replymode/internal/modestore"
)

func textInput(msg, contact string) Input {
	return Input{IncomingType: message.IncomingText, ResponseText: "...", LastUserMessage: msg, ContactID: contact}
}

func TestAbsentRulesAlwaysAudio(t *testing.T) {
	e := New(modestore.NewMemory())
	ctx := context.Background()

	for _, raw := range []RawRules{nil, Absent{}, FromAny(nil), FromAny(""), FromJSON(nil), FromJSON([]byte("null"))} {
		for _, in := range []Input{
			textInput("quero texto", "c1"),
			{IncomingType: message.IncomingAudio},
		} {
			d := e.Decide(ctx, raw, in)
			assert.True(t, d.Audio)
			assert.Equal(t, ReasonNoRules, d.Reason)
		}
	}
}

func TestUnparseableRulesFailOpen(t *testing.T) {
	e := New(modestore.NewMemory())
	for _, s := range []string{"not json", "{audioOnly:", "audio on request", "{\"audioOnly\": \"yes\"}"} {
		d := e.Decide(context.Background(), Serialized(s), textInput("sem áudio", "c1"))
		assert.True(t, d.Audio, s)
		assert.Equal(t, ReasonUnparseableRules, d.Reason, s)
	}
}

func TestAudioOnlyWins(t *testing.T) {
	store := modestore.NewMemory()
	e := New(store)
	rules := Parsed{AudioOnly: true, AudioOnRequest: true}

	d := e.Decide(context.Background(), rules, textInput("manda texto", "c1"))
	assert.True(t, d.Audio)
	assert.Equal(t, ReasonAudioOnly, d.Reason)

	// The short-circuit leaves the mode flag untouched.
	assert.Zero(t, store.Len())
}

func TestNoActiveRulesMeansAudio(t *testing.T) {
	e := New(modestore.NewMemory())
	for _, raw := range []RawRules{
		Parsed{},
		Serialized(`{}`),
		Serialized(`{"audioOnRequest": false, "audioOnAudioReceived": false}`),
		Serialized(`[]`),
		Serialized(`42`),
	} {
		d := e.Decide(context.Background(), raw, textInput("quero texto", "c1"))
		assert.True(t, d.Audio)
		assert.Equal(t, ReasonNoActiveRules, d.Reason)
	}
}

func TestAudioOnAudioReceived(t *testing.T) {
	e := New(modestore.NewMemory())
	rules := Serialized(`{"audioOnAudioReceived": true}`)

	d := e.Decide(context.Background(), rules, Input{IncomingType: message.IncomingAudio, ContactID: "c1"})
	assert.True(t, d.Audio)
	assert.Equal(t, ReasonAudioReceived, d.Reason)

	// A text message falls through every rule and lands on the audio
	// fallback rather than suppressing audio. Current behavior, kept as is.
	d = e.Decide(context.Background(), rules, textInput("oi", "c1"))
	assert.True(t, d.Audio)
	assert.Equal(t, ReasonFallback, d.Reason)
}

func TestAudioOnRequestWithoutContactFallsBack(t *testing.T) {
	store := modestore.NewMemory()
	e := New(store)
	d := e.Decide(context.Background(), Parsed{AudioOnRequest: true}, textInput("pode falar", ""))
	assert.True(t, d.Audio)
	assert.Equal(t, ReasonFallback, d.Reason)
	assert.Zero(t, store.Len())
}

func TestPersistentVoiceMode(t *testing.T) {
	store := modestore.NewMemory()
	e := New(store)
	ctx := context.Background()
	rules := Parsed{AudioOnRequest: true}

	steps := []struct {
		msg    string
		audio  bool
		reason Reason
		mode   bool
	}{
		{"oi, tudo bem?", false, ReasonModeInactive, false},
		{"Pode falar", true, ReasonStartPhrase, true},
		{"qualquer coisa", true, ReasonModeActive, true},
		{"quero texto", false, ReasonStopPhrase, false},
		{"outra coisa", false, ReasonModeInactive, false},
	}
	for _, step := range steps {
		d := e.Decide(ctx, rules, textInput(step.msg, "c1"))
		assert.Equal(t, step.audio, d.Audio, step.msg)
		assert.Equal(t, step.reason, d.Reason, step.msg)

		mode, err := store.AudioMode(ctx, "c1")
		require.NoError(t, err)
		assert.Equal(t, step.mode, mode, step.msg)
	}
}

func TestStopPhraseBeatsStartPhrase(t *testing.T) {
	store := modestore.NewMemory()
	e := New(store)
	ctx := context.Background()
	require.NoError(t, store.SetAudioMode(ctx, "c1", true))

	d := e.Decide(ctx, Parsed{AudioOnRequest: true}, textInput("pode falar, mas sem áudio", "c1"))
	assert.False(t, d.Audio)
	assert.Equal(t, ReasonStopPhrase, d.Reason)
}

func TestPhraseMatchingIsSubstringAndCaseInsensitive(t *testing.T) {
	e := New(modestore.NewMemory())
	rules := Parsed{AudioOnRequest: true}

	assert.True(t, e.Evaluate(context.Background(), rules, textInput("ME EXPLICA POR ÁUDIO?", "c1")))
	// Containment, not whole words.
	assert.True(t, e.Evaluate(context.Background(), rules, textInput("xyzpode falarxyz", "c2")))
}

func TestContactsAreIndependent(t *testing.T) {
	e := New(modestore.NewMemory())
	ctx := context.Background()
	rules := Parsed{AudioOnRequest: true}

	require.True(t, e.Evaluate(ctx, rules, textInput("manda áudio", "c1")))
	assert.True(t, e.Evaluate(ctx, rules, textInput("ok", "c1")))
	assert.False(t, e.Evaluate(ctx, rules, textInput("ok", "c2")))
}

func TestAudioReceivedDoesNotTouchMode(t *testing.T) {
	store := modestore.NewMemory()
	e := New(store)
	rules := Parsed{AudioOnRequest: true, AudioOnAudioReceived: true}

	d := e.Decide(context.Background(), rules, Input{IncomingType: message.IncomingAudio, LastUserMessage: "pode falar", ContactID: "c1"})
	assert.Equal(t, ReasonAudioReceived, d.Reason)
	assert.Zero(t, store.Len())
}

func TestCustomPhrases(t *testing.T) {
	e := New(modestore.NewMemory(), WithPhrases(Phrases{Start: []string{"  VOZ  "}}))
	rules := Parsed{AudioOnRequest: true}

	assert.True(t, e.Evaluate(context.Background(), rules, textInput("usa a voz", "c1")))
	// Stop list falls back to the defaults.
	assert.False(t, e.Evaluate(context.Background(), rules, textInput("manda texto", "c1")))
}

type failingStore struct {
	modestore.Memory
}

var errStoreDown = errors.New("store down")

func (f *failingStore) AudioMode(context.Context, string) (bool, error) { return true, errStoreDown }
func (f *failingStore) SetAudioMode(context.Context, string, bool) error { return errStoreDown }

func TestStoreFailuresDoNotEscape(t *testing.T) {
	e := New(&failingStore{})
	rules := Parsed{AudioOnRequest: true}

	// Phrase decisions stand even when the write fails.
	assert.True(t, e.Evaluate(context.Background(), rules, textInput("pode falar", "c1")))
	assert.False(t, e.Evaluate(context.Background(), rules, textInput("sem audio", "c1")))

	// A failed read is treated as text mode.
	d := e.Decide(context.Background(), rules, textInput("hmm", "c1"))
	assert.False(t, d.Audio)
	assert.Equal(t, ReasonModeInactive, d.Reason)
}

func TestConcurrentSameContact(t *testing.T) {
	store := modestore.NewMemory()
	e := New(store)
	rules := Parsed{AudioOnRequest: true}

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			msg := "pode falar"
			if i%2 == 1 {
				msg = "quero texto"
			}
			e.Evaluate(context.Background(), rules, textInput(msg, "c1"))
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, store.Len())
}
