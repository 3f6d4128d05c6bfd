// Package processor turns a free-text status update plus the project's prior
// structured state into a new structured state via the language-model
// provider. The call is time-boxed per attempt and retried with backoff on
// transient failures; a response that fails to parse is never retried.
package processor

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	perrors "github.com/p-blackswan/pulsetrack/internal/errors"
	"github.com/p-blackswan/pulsetrack/internal/llm"
	"github.com/p-blackswan/pulsetrack/internal/metrics"
	"github.com/p-blackswan/pulsetrack/internal/retry"
	"github.com/p-blackswan/pulsetrack/internal/state"
)

// Request carries the context the processor embeds in the prompt.
type Request struct {
	ProjectName    string
	Goal           string
	InitialContext string
	Previous       *state.StructuredState
	UpdateText     string
}

// Processor orchestrates prompt construction, the model call, and parsing.
type Processor struct {
	provider llm.Provider
	retryCfg retry.Config
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

// Option configures the processor.
type Option func(*Processor)

// WithRetryConfig overrides the retry policy.
func WithRetryConfig(cfg retry.Config) Option {
	return func(p *Processor) { p.retryCfg = cfg }
}

// WithAttemptTimeout sets the per-attempt time box, independent of the
// retry/backoff policy.
func WithAttemptTimeout(d time.Duration) Option {
	return func(p *Processor) { p.retryCfg.AttemptTimeout = d }
}

// WithMetrics attaches metric recording to model calls.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Processor) { p.metrics = m }
}

// New creates a Processor backed by the given provider.
func New(provider llm.Provider, logger zerolog.Logger, opts ...Option) *Processor {
	p := &Processor{
		provider: provider,
		retryCfg: retry.DefaultConfig(),
		logger:   logger.With().Str("component", "processor").Logger(),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Process produces a new structured state for the update. On failure the
// returned error is a *perrors.ProcessingError; the caller records the update
// with a null state rather than aborting the cycle.
func (p *Processor) Process(ctx context.Context, req Request) (*state.StructuredState, error) {
	prompt, err := buildUserPrompt(req)
	if err != nil {
		return nil, &perrors.ProcessingError{Attempts: 0, Err: err}
	}

	var result *state.StructuredState
	attempts := 0
	retryErr := retry.Do(ctx, p.retryCfg, func(ctx context.Context) error {
		attempts++
		start := time.Now()
		resp, err := p.provider.Complete(ctx, llm.CompletionRequest{
			SystemPrompt: systemPrompt,
			Messages:     []llm.Message{{Role: llm.RoleUser, Content: prompt}},
		})
		if p.metrics != nil {
			outcome := "ok"
			if err != nil {
				outcome = "error"
			}
			p.metrics.RecordModelCall(outcome, time.Since(start))
		}
		if err != nil {
			p.logger.Warn().Int("attempt", attempts).Err(err).Msg("model call failed")
			return err
		}

		parsed, err := state.Parse(resp.Text)
		if err != nil {
			// Structurally invalid output is not coerced; it fails the
			// cycle loudly.
			p.logger.Warn().Int("attempt", attempts).Err(err).Msg("model output failed to parse")
			return fmt.Errorf("model output: %w", err)
		}
		result = parsed
		return nil
	})
	if retryErr != nil {
		return nil, &perrors.ProcessingError{Attempts: attempts, Err: retryErr}
	}

	p.logger.Debug().
		Str("project", req.ProjectName).
		Int("attempts", attempts).
		Msg("update processed")
	return result, nil
}
