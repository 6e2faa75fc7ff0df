// Package ttspolicy decides whether a reply is delivered as synthesized audio
// or as plain text.
//
// Rules are evaluated in a fixed order and the first match wins. Absent or
// malformed configuration always resolves to audio so a reply is never
// silently dropped. With audioOnRequest the customer toggles a persistent
// per-contact voice mode by saying start/stop phrases; the flag lives in an
// injected modestore.Store and is only touched by that rule.
package ttspolicy

import (
	"context"
	"hash/fnv"
	"log/slog"
	"strings"
	"sync"

	"github.com/caji-assist/replymode/internal/message"
	"github.com/caji-assist/replymode/internal/modestore"
)

// Reason names the rule that produced a decision.
type Reason string

const (
	ReasonNoRules          Reason = "no_rules"
	ReasonUnparseableRules Reason = "unparseable_rules"
	ReasonAudioOnly        Reason = "audio_only"
	ReasonNoActiveRules    Reason = "no_active_rules"
	ReasonAudioReceived    Reason = "audio_received"
	ReasonStopPhrase       Reason = "stop_phrase"
	ReasonStartPhrase      Reason = "start_phrase"
	ReasonModeActive       Reason = "mode_active"
	ReasonModeInactive     Reason = "mode_inactive"
	ReasonFallback         Reason = "fallback"
)

// Input is the per-message context of a decision.
type Input struct {
	IncomingType message.IncomingType

	// ResponseText is the reply that would be spoken. Not used by any rule yet.
	ResponseText string

	// LastUserMessage is matched against the start/stop phrases.
	LastUserMessage string

	// ContactID keys the voice-mode flag. Empty disables voice mode.
	ContactID string
}

// Decision is the outcome of an evaluation.
type Decision struct {
	Audio  bool
	Reason Reason
}

const lockStripes = 64

// Evaluator applies TTS rules. It is safe for concurrent use; evaluations for
// the same contact are serialized.
type Evaluator struct {
	store   modestore.Store
	phrases Phrases
	logger  *slog.Logger
	locks   [lockStripes]sync.Mutex
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithPhrases overrides the start/stop phrase lists.
func WithPhrases(p Phrases) Option {
	return func(e *Evaluator) { e.phrases = p.WithDefaults() }
}

// WithLogger sets the logger used for decision traces.
func WithLogger(l *slog.Logger) Option {
	return func(e *Evaluator) { e.logger = l }
}

// New creates an Evaluator backed by store.
func New(store modestore.Store, opts ...Option) *Evaluator {
	e := &Evaluator{
		store:   store,
		phrases: DefaultPhrases.WithDefaults(),
		logger:  slog.Default().With("component", "ttspolicy"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate returns true when the reply should be synthesized as audio.
func (e *Evaluator) Evaluate(ctx context.Context, rules RawRules, in Input) bool {
	return e.Decide(ctx, rules, in).Audio
}

// Decide evaluates the rules and reports which one decided.
func (e *Evaluator) Decide(ctx context.Context, raw RawRules, in Input) Decision {
	d := e.decide(ctx, raw, in)
	e.logger.Debug("tts decision",
		"audio", d.Audio,
		"reason", d.Reason,
		"incoming_type", in.IncomingType,
		"contact_id", in.ContactID)
	return d
}

func (e *Evaluator) decide(ctx context.Context, raw RawRules, in Input) Decision {
	rules, reason, ok := Normalize(raw)
	if !ok {
		return Decision{Audio: true, Reason: reason}
	}

	if rules.AudioOnly {
		return Decision{Audio: true, Reason: ReasonAudioOnly}
	}

	if !rules.hasActiveRule() {
		return Decision{Audio: true, Reason: ReasonNoActiveRules}
	}

	if rules.AudioOnAudioReceived && in.IncomingType == message.IncomingAudio {
		return Decision{Audio: true, Reason: ReasonAudioReceived}
	}

	if rules.AudioOnRequest && in.ContactID != "" {
		return e.decideVoiceMode(ctx, in)
	}

	// Also reached with only audioOnAudioReceived set and a text message.
	return Decision{Audio: true, Reason: ReasonFallback}
}

// decideVoiceMode runs the persistent per-contact toggle.
func (e *Evaluator) decideVoiceMode(ctx context.Context, in Input) Decision {
	mu := e.lockFor(in.ContactID)
	mu.Lock()
	defer mu.Unlock()

	lower := strings.ToLower(in.LastUserMessage)

	if e.phrases.WantsStop(lower) {
		e.setMode(ctx, in.ContactID, false)
		return Decision{Audio: false, Reason: ReasonStopPhrase}
	}

	if e.phrases.WantsStart(lower) {
		e.setMode(ctx, in.ContactID, true)
		return Decision{Audio: true, Reason: ReasonStartPhrase}
	}

	enabled, err := e.store.AudioMode(ctx, in.ContactID)
	if err != nil {
		e.logger.Warn("reading audio mode failed, assuming text mode",
			"contact_id", in.ContactID, "error", err)
		enabled = false
	}
	if enabled {
		return Decision{Audio: true, Reason: ReasonModeActive}
	}
	return Decision{Audio: false, Reason: ReasonModeInactive}
}

func (e *Evaluator) setMode(ctx context.Context, contactID string, enabled bool) {
	if err := e.store.SetAudioMode(ctx, contactID, enabled); err != nil {
		e.logger.Warn("persisting audio mode failed",
			"contact_id", contactID, "enabled", enabled, "error", err)
		return
	}
	e.logger.Info("audio mode changed", "contact_id", contactID, "enabled", enabled)
}

func (e *Evaluator) lockFor(contactID string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(contactID))
	return &e.locks[h.Sum32()%lockStripes]
}
