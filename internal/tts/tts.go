// Package tts defines the interface for text-to-speech synthesis.
//
// Replies that the policy marks as audio are spoken with a Synthesizer. The
// dispatcher treats every synthesis error as a reason to fall back to a text
// reply, so backends only need to report failures, never recover from them.
package tts

import (
	"context"
	"errors"
)

// ErrEmptyText is returned when there is nothing left to speak.
var ErrEmptyText = errors.New("empty text for synthesis")

// SynthesizeOpts controls synthesis behavior.
type SynthesizeOpts struct {
	// Language is the ISO-639-1 code (e.g., "pt", "en") to select the voice.
	Language string

	// Voice overrides language-based voice selection (e.g., "Kore").
	Voice string
}

// Synthesizer converts text to audio.
type Synthesizer interface {
	// Name returns the backend identifier used in logs and metrics.
	Name() string

	// Synthesize generates audio from the given text.
	Synthesize(ctx context.Context, text string, opts SynthesizeOpts) (*SynthesizeResult, error)

	// Close releases any resources held by the synthesizer.
	Close() error
}

// SynthesizeResult holds the output of TTS synthesis.
type SynthesizeResult struct {
	// Audio is the synthesized audio as a WAV file.
	Audio []byte

	// ContentType is the MIME type of the audio (e.g., "audio/wav").
	ContentType string

	// SampleRate is the audio sample rate in Hz (e.g., 24000).
	SampleRate int

	// Channels is the number of audio channels (typically 1).
	Channels int
}
