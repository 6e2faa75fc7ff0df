// Package transport defines the interface for pluggable message transports.
//
// Each transport (gRPC, HTTP) exposes the same Service to its clients and can
// deliver finished replies to downstream targets speaking its protocol.
package transport

import (
	"context"
	"errors"

	"github.com/caji-assist/replymode/internal/message"
	"github.com/caji-assist/replymode/internal/session"
)

// ErrInvalidRequest marks caller mistakes. Transports map it to 400 /
// InvalidArgument; every other error is internal.
var ErrInvalidRequest = errors.New("invalid request")

// Service is the operation set every transport exposes.
type Service interface {
	// Handle runs a message through the reply pipeline.
	Handle(ctx context.Context, msg *message.Message) (*message.Reply, error)

	// Decide evaluates TTS rules without producing a reply.
	Decide(ctx context.Context, req message.DecisionRequest) (message.DecisionResponse, error)

	// SessionConfig returns a session's TTS configuration.
	SessionConfig(ctx context.Context, sessionID string) (session.Config, error)

	// UpdateSessionConfig merges a partial update into a session's configuration.
	UpdateSessionConfig(ctx context.Context, sessionID string, u session.Update) (session.Config, error)

	// AudioMode reports a contact's persistent voice-mode flag.
	AudioMode(ctx context.Context, contactID string) (message.AudioModeState, error)
}

// Transport is the interface that every transport adapter must implement.
type Transport interface {
	// Name returns the transport identifier ("grpc", "http").
	Name() string

	// Listen starts accepting requests and serves them with svc.
	// It blocks until the context is cancelled.
	Listen(ctx context.Context, svc Service) error

	// Send delivers a payload to a target address using this transport's protocol.
	Send(ctx context.Context, target message.Target, payload []byte) error

	// Close gracefully shuts down the transport, draining in-flight work.
	Close() error
}
