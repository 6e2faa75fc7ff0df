// Package message defines the core data types flowing through the replymode pipeline.
package message

import (
	"encoding/base64"
	"encoding/json"
	"time"
)

// IncomingType is the modality of the customer's inbound message.
type IncomingType string

const (
	IncomingText  IncomingType = "text"
	IncomingAudio IncomingType = "audio"
)

// Channel identifies the messaging network a conversation lives on.
type Channel string

const (
	ChannelWhatsApp  Channel = "whatsapp"
	ChannelInstagram Channel = "instagram"
)

// ReplyMode is the modality chosen for the assistant's reply.
type ReplyMode string

const (
	ReplyModeText  ReplyMode = "text"
	ReplyModeAudio ReplyMode = "audio"
)

// Message represents an inbound customer message together with the reply the
// upstream generator produced for it.
type Message struct {
	// ID is a unique identifier for this message (UUID). Assigned on receipt if empty.
	ID string `json:"id"`

	// SessionID is the channel instance (one connected WhatsApp number or Instagram account).
	SessionID string `json:"session_id"`

	// RemoteJID is the customer's address on the channel.
	RemoteJID string `json:"remote_jid"`

	// ContactID overrides the derived "sessionId:remoteJid" conversation key.
	ContactID string `json:"contact_id,omitempty"`

	// Channel is the messaging network ("whatsapp", "instagram").
	Channel Channel `json:"channel,omitempty"`

	// Type forces the inbound modality. When empty it is derived from Audio.
	Type IncomingType `json:"type,omitempty"`

	// Audio is the raw voice note. Nil if the message is text-only.
	Audio []byte `json:"audio,omitempty"`

	// ContentType is the MIME type of the audio (e.g., "audio/ogg; codecs=opus").
	ContentType string `json:"content_type,omitempty"`

	// Text is the customer's text, or an upstream transcription of Audio.
	Text string `json:"text,omitempty"`

	// ResponseText is the assistant reply to deliver.
	ResponseText string `json:"response_text"`

	// ReplyTo optionally names a service that should also receive the reply.
	ReplyTo *Target `json:"reply_to,omitempty"`

	// Timestamp is when the message was received by replymode.
	Timestamp time.Time `json:"timestamp"`
}

// HasAudio returns true if the message contains an audio payload.
func (m *Message) HasAudio() bool {
	return len(m.Audio) > 0
}

// IncomingType returns the explicit Type, or audio when a payload is attached.
func (m *Message) IncomingType() IncomingType {
	if m.Type != "" {
		return m.Type
	}
	if m.HasAudio() {
		return IncomingAudio
	}
	return IncomingText
}

// ContactKey returns the stable conversation key. Empty when neither an
// explicit ContactID nor both halves of the derived key are known.
func (m *Message) ContactKey() string {
	if m.ContactID != "" {
		return m.ContactID
	}
	if m.SessionID == "" || m.RemoteJID == "" {
		return ""
	}
	return m.SessionID + ":" + m.RemoteJID
}

// Target defines a downstream service that should receive the reply.
type Target struct {
	// ServiceName is a human-readable identifier (e.g., "whatsapp-gateway").
	ServiceName string `json:"service_name"`

	// Endpoint is the address to reach this target.
	Endpoint string `json:"endpoint"`

	// Protocol is the protocol to use ("http", "grpc").
	Protocol string `json:"protocol"`
}

// PartKind distinguishes reply parts.
type PartKind string

const (
	PartText  PartKind = "text"
	PartAudio PartKind = "audio"
)

// Part is one outbound chat message. A reply may be an audio note followed by
// a text message carrying the links that were removed from the spoken text.
type Part struct {
	Kind PartKind `json:"kind"`

	// Text is set for text parts.
	Text string `json:"text,omitempty"`

	// Audio is the synthesized audio as a base64-encoded string.
	Audio string `json:"audio,omitempty"`

	// ContentType is the MIME type of Audio (e.g., "audio/wav").
	ContentType string `json:"content_type,omitempty"`
}

// TextPart builds a text reply part.
func TextPart(text string) Part {
	return Part{Kind: PartText, Text: text}
}

// AudioPart base64-encodes raw audio bytes into an audio reply part.
func AudioPart(audio []byte, contentType string) Part {
	return Part{
		Kind:        PartAudio,
		Audio:       base64.StdEncoding.EncodeToString(audio),
		ContentType: contentType,
	}
}

// Reply is the outcome of processing a message through the pipeline.
type Reply struct {
	// MessageID is the original message ID.
	MessageID string `json:"message_id"`

	// ContactID is the conversation key used for the audio-mode registry.
	ContactID string `json:"contact_id,omitempty"`

	// Transcript is the text produced by audio transcription (empty if text input).
	Transcript string `json:"transcript,omitempty"`

	// Mode is the modality that was actually delivered.
	Mode ReplyMode `json:"mode,omitempty"`

	// Reason is the rule that produced the voice/text decision.
	Reason string `json:"reason,omitempty"`

	// Parts are the outbound chat messages, in sending order.
	Parts []Part `json:"parts"`

	// LocalTime is the receipt time formatted as dd/MM/yyyy HH:mm.
	LocalTime string `json:"local_time,omitempty"`

	// RoutedTo lists the targets that received the reply.
	RoutedTo []string `json:"routed_to,omitempty"`

	// Error is set if processing failed at any stage.
	Error string `json:"error,omitempty"`
}

// DecisionRequest asks for a bare voice/text decision.
type DecisionRequest struct {
	// Rules is the TTS rule configuration: an object, a JSON-encoded string, or null.
	Rules json.RawMessage `json:"rules,omitempty" swaggertype:"object"`

	IncomingType    IncomingType `json:"incoming_type"`
	ResponseText    string       `json:"response_text,omitempty"`
	LastUserMessage string       `json:"last_user_message,omitempty"`
	ContactID       string       `json:"contact_id,omitempty"`
}

// DecisionResponse is the voice/text decision and the rule that made it.
type DecisionResponse struct {
	Audio  bool   `json:"audio"`
	Reason string `json:"reason"`
}

// AudioModeState reports a contact's persistent voice-mode flag.
type AudioModeState struct {
	ContactID string `json:"contact_id"`
	Enabled   bool   `json:"enabled"`
}
