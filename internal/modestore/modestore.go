// Package modestore holds the persistent per-contact audio-mode flag.
//
// A contact is in TEXT_MODE until the customer asks for voice replies and in
// AUDIO_MODE until they ask to stop. An absent entry is TEXT_MODE. Entries are
// created lazily and never deleted by replymode.
package modestore

import "context"

// Store is the contact audio-mode registry.
type Store interface {
	// AudioMode reports whether voice mode is active for the contact.
	// An unknown contact is not in voice mode.
	AudioMode(ctx context.Context, contactID string) (bool, error)

	// SetAudioMode records the contact's voice-mode flag.
	SetAudioMode(ctx context.Context, contactID string, enabled bool) error

	// Ping checks the backing store is reachable.
	Ping(ctx context.Context) error

	// Close releases any resources held by the store.
	Close() error
}
