package tts

import (
	"context"
	"log/slog"

	"github.com/sony/gobreaker"

	"github.com/caji-assist/replymode/internal/config"
)

// Guarded wraps a Synthesizer in a circuit breaker. While the breaker is
// open, Synthesize fails fast with gobreaker.ErrOpenState and the caller
// falls back to a text reply.
type Guarded struct {
	next Synthesizer
	cb   *gobreaker.CircuitBreaker
}

// NewGuarded wraps next with a breaker configured from cfg.
func NewGuarded(next Synthesizer, cfg config.BreakerConfig) *Guarded {
	minRequests := cfg.MinRequests
	ratio := cfg.FailureRatio
	logger := slog.With("component", "tts-breaker", "backend", next.Name())

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "tts-" + next.Name(),
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests == 0 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= minRequests && failureRatio >= ratio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return &Guarded{next: next, cb: cb}
}

// Name returns the wrapped backend's name.
func (g *Guarded) Name() string { return g.next.Name() }

// State reports the breaker state.
func (g *Guarded) State() gobreaker.State { return g.cb.State() }

// Synthesize runs the wrapped synthesizer through the breaker. Empty text is
// rejected before reaching the breaker so it never counts as a failure.
func (g *Guarded) Synthesize(ctx context.Context, text string, opts SynthesizeOpts) (*SynthesizeResult, error) {
	if text == "" {
		return nil, ErrEmptyText
	}
	out, err := g.cb.Execute(func() (interface{}, error) {
		return g.next.Synthesize(ctx, text, opts)
	})
	if err != nil {
		return nil, err
	}
	return out.(*SynthesizeResult), nil
}

// Close closes the wrapped synthesizer.
func (g *Guarded) Close() error { return g.next.Close() }
