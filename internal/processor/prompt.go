package processor

import (
	"encoding/json"
	"fmt"
	"strings"
)

var systemPrompt = `You are a project status analyst. Given a project's context, its last known structured state, and a new free-text status update from the user, produce the project's new structured state.

Respond ONLY with valid JSON (no markdown, no explanation):
{
  "status_summary": "<2-3 sentence narrative of where the project stands>",
  "completed": ["<finished items>"],
  "in_progress": ["<items currently being worked on>"],
  "blockers": ["<things blocking progress>"],
  "ideas_captured": ["<ideas the user mentioned>"],
  "decisions_made": ["<decisions the user mentioned>"],
  "next_actions": [
    {"task": "<concrete next step>", "effort": "low|medium|high", "dependencies": ["<blocking items>"]}
  ],
  "clarifying_question": "<one open question for the user>",
  "emotional_feedback": "<short empathetic reflection on the user's tone>"
}

Rules:
- Carry forward items from the previous state unless the update says they changed.
- An item moves from in_progress to completed only when the update says it is done.
- Keep items short: a phrase, not a paragraph.
- blockers are concrete obstacles, not general worries.`

// buildUserPrompt embeds the project context, the serialized previous state,
// and the new update text.
func buildUserPrompt(req Request) (string, error) {
	var b strings.Builder

	fmt.Fprintf(&b, "Project: %s\n", req.ProjectName)
	if req.Goal != "" {
		fmt.Fprintf(&b, "Goal: %s\n", req.Goal)
	}
	if req.InitialContext != "" {
		fmt.Fprintf(&b, "\nProject background:\n%s\n", req.InitialContext)
	}

	if req.Previous != nil {
		prev, err := json.Marshal(req.Previous.Normalized())
		if err != nil {
			return "", fmt.Errorf("serialize previous state: %w", err)
		}
		fmt.Fprintf(&b, "\nPrevious structured state:\n%s\n", prev)
	} else {
		b.WriteString("\nThis is the first update; there is no previous state.\n")
	}

	fmt.Fprintf(&b, "\nNew status update:\n%s\n", req.UpdateText)
	return b.String(), nil
}
