// Package dispatch implements the reply pipeline.
//
// The dispatcher receives customer messages from transports, transcribes
// voice notes, asks the TTS rule evaluator whether the assistant should
// answer with audio, synthesizes the reply when it should, and optionally
// forwards the finished reply to a downstream target. The sender always
// receives the reply, whatever happened to the forward.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/caji-assist/replymode/internal/chattext"
	"github.com/caji-assist/replymode/internal/message"
	"github.com/caji-assist/replymode/internal/metrics"
	"github.com/caji-assist/replymode/internal/modestore"
	"github.com/caji-assist/replymode/internal/session"
	"github.com/caji-assist/replymode/internal/transcribe"
	"github.com/caji-assist/replymode/internal/transport"
	"github.com/caji-assist/replymode/internal/tts"
	"github.com/caji-assist/replymode/internal/ttspolicy"
)

// Deps are the collaborators of a Dispatcher. Transcriber and Synthesizer may
// be nil: voice notes then become a sentinel text and every reply is text.
type Deps struct {
	Evaluator   *ttspolicy.Evaluator
	Sessions    *session.Store
	Store       modestore.Store
	Transcriber transcribe.Transcriber
	Synthesizer tts.Synthesizer
	Transports  []transport.Transport
	Location    *time.Location
}

// Dispatcher is the central reply engine. It implements transport.Service.
type Dispatcher struct {
	evaluator   *ttspolicy.Evaluator
	sessions    *session.Store
	store       modestore.Store
	transcriber transcribe.Transcriber
	synthesizer tts.Synthesizer
	transports  map[string]transport.Transport
	loc         *time.Location
	now         func() time.Time
}

var _ transport.Service = (*Dispatcher)(nil)

// New creates a new Dispatcher.
func New(deps Deps) *Dispatcher {
	tm := make(map[string]transport.Transport, len(deps.Transports))
	for _, t := range deps.Transports {
		tm[t.Name()] = t
	}
	loc := deps.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Dispatcher{
		evaluator:   deps.Evaluator,
		sessions:    deps.Sessions,
		store:       deps.Store,
		transcriber: deps.Transcriber,
		synthesizer: deps.Synthesizer,
		transports:  tm,
		loc:         loc,
		now:         time.Now,
	}
}

// Handle processes a single message through the full pipeline. Processing
// failures are reported in Reply.Error; the returned error is reserved for
// failures of the dispatcher itself.
func (d *Dispatcher) Handle(ctx context.Context, msg *message.Message) (*message.Reply, error) {
	start := time.Now()
	defer func() { metrics.DispatchLatency.Observe(time.Since(start).Seconds()) }()

	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = d.now()
	}
	contactID := msg.ContactKey()
	logger := slog.With("message_id", msg.ID, "contact_id", contactID, "session_id", msg.SessionID)

	reply := &message.Reply{
		MessageID: msg.ID,
		ContactID: contactID,
		LocalTime: chattext.FormatTimestamp(msg.Timestamp, d.loc),
	}

	incoming := msg.IncomingType()
	logger.Info("dispatch started", "incoming_type", incoming, "channel", msg.Channel)

	// Step 1: Transcribe voice notes that arrive without text.
	switch incoming {
	case message.IncomingAudio:
		if msg.Text == "" {
			if !msg.HasAudio() {
				reply.Error = "audio message has no payload"
				return reply, nil
			}
			msg.Text = d.transcribe(ctx, logger, msg)
			reply.Transcript = msg.Text
		}
	case message.IncomingText:
	default:
		reply.Error = fmt.Sprintf("unsupported message type %q", incoming)
		return reply, nil
	}

	// Step 2: The reply text comes from the upstream generator.
	if strings.TrimSpace(msg.ResponseText) == "" {
		reply.Error = "message has no response_text"
		return reply, nil
	}

	// Step 3: Decide the reply modality.
	cfg := d.sessions.Get(msg.SessionID)
	wantAudio := false
	if cfg.TTSEnabled && d.synthesizer != nil {
		dec := d.evaluator.Decide(ctx, cfg.RawRules(), ttspolicy.Input{
			IncomingType:    incoming,
			ResponseText:    msg.ResponseText,
			LastUserMessage: msg.Text,
			ContactID:       contactID,
		})
		metrics.Decisions.WithLabelValues(string(dec.Reason), strconv.FormatBool(dec.Audio)).Inc()
		reply.Reason = string(dec.Reason)
		wantAudio = dec.Audio
	}

	// Step 4: Build the outbound parts.
	if wantAudio {
		reply.Mode, reply.Parts = d.audioReply(ctx, logger, msg.ResponseText, cfg.Voice)
	} else {
		reply.Mode, reply.Parts = message.ReplyModeText, []message.Part{message.TextPart(msg.ResponseText)}
	}
	metrics.Replies.WithLabelValues(string(reply.Mode)).Inc()

	// Step 5: Forward to the named target, if any.
	if msg.ReplyTo != nil {
		d.route(ctx, logger, *msg.ReplyTo, reply)
	}

	logger.Info("dispatch complete", "mode", reply.Mode, "reason", reply.Reason,
		"parts", len(reply.Parts), "duration", time.Since(start))
	return reply, nil
}

func (d *Dispatcher) transcribe(ctx context.Context, logger *slog.Logger, msg *message.Message) string {
	backend := "none"
	if d.transcriber != nil {
		backend = d.transcriber.Name()
	}
	logger.Debug("transcribing audio", "backend", backend, "content_type", msg.ContentType, "bytes", len(msg.Audio))

	text := transcribe.TextOrSentinel(ctx, d.transcriber, msg.Audio, msg.ContentType, transcribe.Opts{})
	status := "ok"
	if transcribe.IsSentinel(text) {
		status = "error"
	}
	metrics.Transcriptions.WithLabelValues(backend, status).Inc()
	logger.Info("transcription complete", "status", status, "text_length", len(text))
	return text
}

// audioReply synthesizes text with its links pulled out. Links go into a
// follow-up text part. Any synthesis failure degrades to a text reply.
func (d *Dispatcher) audioReply(ctx context.Context, logger *slog.Logger, text, voice string) (message.ReplyMode, []message.Part) {
	textOnly := []message.Part{message.TextPart(text)}

	links := chattext.ExtractLinks(text)
	if links.OnlyLinks() {
		logger.Debug("reply is only links, sending text")
		return message.ReplyModeText, textOnly
	}

	res, err := d.synthesizer.Synthesize(ctx, links.CleanText, tts.SynthesizeOpts{Voice: voice})
	if err != nil {
		metrics.SynthesisFailures.WithLabelValues(d.synthesizer.Name()).Inc()
		logger.Warn("TTS synthesis failed, falling back to text", "backend", d.synthesizer.Name(), "error", err)
		return message.ReplyModeText, textOnly
	}
	logger.Info("TTS synthesis complete", "audio_bytes", len(res.Audio), "links", len(links.URLs))

	parts := []message.Part{message.AudioPart(res.Audio, res.ContentType)}
	if links.HasLinks() {
		parts = append(parts, message.TextPart(chattext.FormatLinkMessage(links.URLs)))
	}
	return message.ReplyModeAudio, parts
}

func (d *Dispatcher) route(ctx context.Context, logger *slog.Logger, target message.Target, reply *message.Reply) {
	t, ok := d.transports[target.Protocol]
	if !ok {
		logger.Warn("no transport for target protocol", "protocol", target.Protocol, "target", target.ServiceName)
		return
	}

	payload, err := json.Marshal(reply)
	if err != nil {
		logger.Error("marshalling reply", "error", err)
		return
	}
	if err := t.Send(ctx, target, payload); err != nil {
		logger.Error("failed to send to target", "target", target.ServiceName, "error", err)
		return
	}

	reply.RoutedTo = append(reply.RoutedTo, target.ServiceName)
	logger.Info("routed to target", "target", target.ServiceName)
}

// Decide runs the TTS rule evaluator alone.
func (d *Dispatcher) Decide(ctx context.Context, req message.DecisionRequest) (message.DecisionResponse, error) {
	incoming := req.IncomingType
	if incoming == "" {
		incoming = message.IncomingText
	}
	if incoming != message.IncomingText && incoming != message.IncomingAudio {
		return message.DecisionResponse{}, fmt.Errorf("%w: unsupported incoming_type %q", transport.ErrInvalidRequest, incoming)
	}

	dec := d.evaluator.Decide(ctx, ttspolicy.FromJSON(req.Rules), ttspolicy.Input{
		IncomingType:    incoming,
		ResponseText:    req.ResponseText,
		LastUserMessage: req.LastUserMessage,
		ContactID:       req.ContactID,
	})
	metrics.Decisions.WithLabelValues(string(dec.Reason), strconv.FormatBool(dec.Audio)).Inc()
	return message.DecisionResponse{Audio: dec.Audio, Reason: string(dec.Reason)}, nil
}

// SessionConfig returns a session's TTS configuration.
func (d *Dispatcher) SessionConfig(_ context.Context, sessionID string) (session.Config, error) {
	if sessionID == "" {
		return session.Config{}, fmt.Errorf("%w: session id is required", transport.ErrInvalidRequest)
	}
	return d.sessions.Get(sessionID), nil
}

// UpdateSessionConfig merges u into the session's TTS configuration.
// Rules must be valid JSON; whether they make sense is decided at evaluation
// time, where malformed rules fail open.
func (d *Dispatcher) UpdateSessionConfig(_ context.Context, sessionID string, u session.Update) (session.Config, error) {
	if sessionID == "" {
		return session.Config{}, fmt.Errorf("%w: session id is required", transport.ErrInvalidRequest)
	}
	if len(u.Rules) > 0 && !json.Valid(u.Rules) {
		return session.Config{}, fmt.Errorf("%w: tts_rules is not valid JSON", transport.ErrInvalidRequest)
	}
	cfg := d.sessions.Merge(sessionID, u)
	slog.Info("session config updated", "session_id", sessionID, "tts_enabled", cfg.TTSEnabled, "tts_voice", cfg.Voice)
	return cfg, nil
}

// AudioMode reports a contact's persistent voice-mode flag.
func (d *Dispatcher) AudioMode(ctx context.Context, contactID string) (message.AudioModeState, error) {
	if contactID == "" {
		return message.AudioModeState{}, fmt.Errorf("%w: contact id is required", transport.ErrInvalidRequest)
	}
	enabled, err := d.store.AudioMode(ctx, contactID)
	if err != nil {
		return message.AudioModeState{}, fmt.Errorf("reading audio mode: %w", err)
	}
	return message.AudioModeState{ContactID: contactID, Enabled: enabled}, nil
}
