package processor

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	perrors "github.com/p-blackswan/pulsetrack/internal/errors"
	"github.com/p-blackswan/pulsetrack/internal/llm"
	"github.com/p-blackswan/pulsetrack/internal/retry"
	"github.com/p-blackswan/pulsetrack/internal/state"
)

// mockProvider is a minimal llm.Provider for testing.
type mockProvider struct {
	responses []string
	errs      []error
	calls     int
	lastReq   llm.CompletionRequest
}

func (m *mockProvider) Complete(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	m.lastReq = req
	i := m.calls
	m.calls++
	if i < len(m.errs) && m.errs[i] != nil {
		return nil, m.errs[i]
	}
	text := ""
	if i < len(m.responses) {
		text = m.responses[i]
	}
	return &llm.CompletionResponse{Text: text, StopReason: llm.StopReasonEndTurn}, nil
}
func (m *mockProvider) ModelID() string { return "mock" }
func (m *mockProvider) MaxTokens() int  { return 1024 }

func fastRetry(attempts int) Option {
	return WithRetryConfig(retry.Config{
		MaxAttempts: attempts,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
	})
}

func testLogger() zerolog.Logger { return zerolog.Nop() }

func TestProcess_ValidJSON(t *testing.T) {
	provider := &mockProvider{responses: []string{
		`{"status_summary":"Landing page shipped.","completed":["landing page"],"blockers":["API keys"]}`,
	}}
	p := New(provider, testLogger())

	s, err := p.Process(context.Background(), Request{
		ProjectName: "Launch",
		UpdateText:  "Finished the landing page, now blocked on API keys",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(s.Completed) != 1 || s.Completed[0] != "landing page" {
		t.Errorf("unexpected completed: %v", s.Completed)
	}
	if len(s.Blockers) != 1 || s.Blockers[0] != "API keys" {
		t.Errorf("unexpected blockers: %v", s.Blockers)
	}
}

func TestProcess_FencedOutput(t *testing.T) {
	provider := &mockProvider{responses: []string{
		"```json\n{\"status_summary\":\"ok\",\"completed\":[]}\n```",
	}}
	p := New(provider, testLogger())

	s, err := p.Process(context.Background(), Request{ProjectName: "x", UpdateText: "hi"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.StatusSummary != "ok" {
		t.Errorf("unexpected summary: %q", s.StatusSummary)
	}
}

func TestProcess_InvalidJSON_NoRetry(t *testing.T) {
	provider := &mockProvider{responses: []string{"I had trouble with that."}}
	p := New(provider, testLogger(), fastRetry(5))

	_, err := p.Process(context.Background(), Request{ProjectName: "x", UpdateText: "hi"})
	if err == nil {
		t.Fatal("expected error")
	}
	var pe *perrors.ProcessingError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ProcessingError, got %T", err)
	}
	if provider.calls != 1 {
		t.Errorf("parse failures must not retry, got %d calls", provider.calls)
	}
}

func TestProcess_TransientFailure_Retries(t *testing.T) {
	provider := &mockProvider{
		errs: []error{perrors.ErrUnavailable, perrors.NewAPIError("anthropic", 503, "busy")},
		responses: []string{"", "",
			`{"status_summary":"third time lucky"}`,
		},
	}
	p := New(provider, testLogger(), fastRetry(5))

	s, err := p.Process(context.Background(), Request{ProjectName: "x", UpdateText: "hi"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if provider.calls != 3 {
		t.Errorf("expected 3 calls, got %d", provider.calls)
	}
	if s.StatusSummary != "third time lucky" {
		t.Errorf("unexpected summary: %q", s.StatusSummary)
	}
}

func TestProcess_ExhaustedRetries(t *testing.T) {
	provider := &mockProvider{errs: []error{
		perrors.ErrUnavailable, perrors.ErrUnavailable, perrors.ErrUnavailable,
		perrors.ErrUnavailable, perrors.ErrUnavailable,
	}}
	p := New(provider, testLogger(), fastRetry(5))

	_, err := p.Process(context.Background(), Request{ProjectName: "x", UpdateText: "hi"})
	var pe *perrors.ProcessingError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ProcessingError, got %v", err)
	}
	if pe.Attempts != 5 {
		t.Errorf("expected 5 attempts, got %d", pe.Attempts)
	}
}

func TestProcess_PromptEmbedsContext(t *testing.T) {
	provider := &mockProvider{responses: []string{`{"status_summary":"ok"}`}}
	p := New(provider, testLogger())

	prev := &state.StructuredState{
		StatusSummary: "Early days.",
		InProgress:    []string{"auth flow"},
	}
	_, err := p.Process(context.Background(), Request{
		ProjectName:    "Launch",
		Goal:           "Ship by September",
		InitialContext: "Greenfield SaaS product.",
		Previous:       prev,
		UpdateText:     "Auth flow is done",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	prompt := provider.lastReq.Messages[0].Content
	for _, want := range []string{"Launch", "Ship by September", "Greenfield SaaS product.", "auth flow", "Auth flow is done"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	if provider.lastReq.SystemPrompt == "" {
		t.Error("system prompt not set")
	}
}

func TestProcess_FirstUpdateMentionsNoBaseline(t *testing.T) {
	provider := &mockProvider{responses: []string{`{"status_summary":"ok"}`}}
	p := New(provider, testLogger())

	_, err := p.Process(context.Background(), Request{ProjectName: "x", UpdateText: "first!"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(provider.lastReq.Messages[0].Content, "no previous state") {
		t.Error("first-update prompt should state there is no previous state")
	}
}
