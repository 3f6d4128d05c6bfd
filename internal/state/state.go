// Package state defines the structured project state derived from free-text
// updates, and the normalization rules the rest of the core relies on.
package state

import (
	"encoding/json"
	"fmt"
	"strings"

	perrors "github.com/p-blackswan/pulsetrack/internal/errors"
)

// Effort is the estimated effort for a next action.
type Effort string

const (
	EffortLow    Effort = "low"
	EffortMedium Effort = "medium"
	EffortHigh   Effort = "high"
)

// NextAction is a single enriched task item.
//
// Persisted history may contain next actions in either of two shapes: a plain
// JSON string, or an object carrying task/effort/dependencies. UnmarshalJSON
// accepts both; Normalize makes the result canonical.
type NextAction struct {
	Task         string   `json:"task"`
	Effort       Effort   `json:"effort"`
	Dependencies []string `json:"dependencies"`
}

// UnmarshalJSON accepts either a bare string or a full task object.
func (a *NextAction) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var task string
		if err := json.Unmarshal(data, &task); err != nil {
			return err
		}
		*a = NextAction{Task: task, Effort: EffortMedium, Dependencies: []string{}}
		return nil
	}

	type alias NextAction
	var obj alias
	if err := json.Unmarshal(data, &obj); err != nil {
		return &perrors.MalformedStateError{
			Field:  "next_actions",
			Reason: fmt.Sprintf("item is neither string nor task object: %v", err),
		}
	}
	*a = NextAction(obj)
	return nil
}

// StructuredState is the immutable snapshot derived from one update.
type StructuredState struct {
	StatusSummary      string       `json:"status_summary"`
	Completed          []string     `json:"completed"`
	InProgress         []string     `json:"in_progress"`
	Blockers           []string     `json:"blockers"`
	IdeasCaptured      []string     `json:"ideas_captured"`
	DecisionsMade      []string     `json:"decisions_made"`
	NextActions        []NextAction `json:"next_actions"`
	ClarifyingQuestion string       `json:"clarifying_question"`
	EmotionalFeedback  string       `json:"emotional_feedback"`
}

// Normalize returns the canonical form of a next-action list: every item has
// a non-empty effort (default medium) and a non-nil dependency list. It is
// idempotent and must be applied at every read site — history written by
// older versions may predate the enriched shape.
func Normalize(actions []NextAction) []NextAction {
	out := make([]NextAction, len(actions))
	for i, a := range actions {
		if a.Effort == "" {
			a.Effort = EffortMedium
		}
		switch a.Effort {
		case EffortLow, EffortMedium, EffortHigh:
		default:
			a.Effort = EffortMedium
		}
		if a.Dependencies == nil {
			a.Dependencies = []string{}
		}
		out[i] = a
	}
	return out
}

// Normalized returns a copy of the state with canonical next actions and
// non-nil item lists.
func (s *StructuredState) Normalized() *StructuredState {
	if s == nil {
		return nil
	}
	out := *s
	out.NextActions = Normalize(s.NextActions)
	out.Completed = ensure(s.Completed)
	out.InProgress = ensure(s.InProgress)
	out.Blockers = ensure(s.Blockers)
	out.IdeasCaptured = ensure(s.IdeasCaptured)
	out.DecisionsMade = ensure(s.DecisionsMade)
	return &out
}

func ensure(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}

// Parse decodes model output into a StructuredState. Wrapping formatting
// artifacts (markdown code fences, leading prose) are stripped first;
// structurally invalid JSON fails loudly rather than being coerced.
func Parse(raw string) (*StructuredState, error) {
	cleaned := stripFences(raw)
	if cleaned == "" {
		return nil, &perrors.MalformedStateError{Field: "state", Reason: "empty model output"}
	}

	var s StructuredState
	if err := json.Unmarshal([]byte(cleaned), &s); err != nil {
		return nil, fmt.Errorf("parse structured state: %w", err)
	}
	return s.Normalized(), nil
}

// stripFences removes markdown code-fence wrapping and any prose outside the
// outermost JSON object.
func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end < start {
		return ""
	}
	return s[start : end+1]
}
