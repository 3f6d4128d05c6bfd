package state

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextAction_UnmarshalString(t *testing.T) {
	var a NextAction
	err := json.Unmarshal([]byte(`"ship the landing page"`), &a)
	require.NoError(t, err)
	assert.Equal(t, "ship the landing page", a.Task)
	assert.Equal(t, EffortMedium, a.Effort)
	assert.Equal(t, []string{}, a.Dependencies)
}

func TestNextAction_UnmarshalObject(t *testing.T) {
	var a NextAction
	err := json.Unmarshal([]byte(`{"task":"wire payments","effort":"high","dependencies":["api keys"]}`), &a)
	require.NoError(t, err)
	assert.Equal(t, "wire payments", a.Task)
	assert.Equal(t, EffortHigh, a.Effort)
	assert.Equal(t, []string{"api keys"}, a.Dependencies)
}

func TestNextAction_UnmarshalMixedList(t *testing.T) {
	// One array mixing both permitted shapes must still decode.
	var actions []NextAction
	err := json.Unmarshal([]byte(`["plain item",{"task":"rich item","effort":"low"}]`), &actions)
	require.NoError(t, err)
	require.Len(t, actions, 2)
	assert.Equal(t, "plain item", actions[0].Task)
	assert.Equal(t, "rich item", actions[1].Task)
	assert.Equal(t, EffortLow, actions[1].Effort)
}

func TestNormalize_FillsDefaults(t *testing.T) {
	in := []NextAction{
		{Task: "a"},
		{Task: "b", Effort: "enormous"},
		{Task: "c", Effort: EffortHigh, Dependencies: []string{"a"}},
	}
	out := Normalize(in)
	assert.Equal(t, EffortMedium, out[0].Effort)
	assert.Equal(t, []string{}, out[0].Dependencies)
	assert.Equal(t, EffortMedium, out[1].Effort, "unknown effort collapses to medium")
	assert.Equal(t, EffortHigh, out[2].Effort)
}

func TestNormalize_Idempotent(t *testing.T) {
	in := []NextAction{{Task: "a"}, {Task: "b", Effort: EffortLow}}
	once := Normalize(in)
	twice := Normalize(once)
	assert.Equal(t, once, twice)
}

func TestNormalized_NilState(t *testing.T) {
	var s *StructuredState
	assert.Nil(t, s.Normalized())
}

func TestNormalized_NilSlices(t *testing.T) {
	s := &StructuredState{StatusSummary: "fine"}
	n := s.Normalized()
	assert.NotNil(t, n.Completed)
	assert.NotNil(t, n.Blockers)
	assert.NotNil(t, n.NextActions)
	assert.Empty(t, n.Blockers)
}

func TestParse_Plain(t *testing.T) {
	s, err := Parse(`{"status_summary":"On track.","completed":["landing page"],"blockers":["api keys"]}`)
	require.NoError(t, err)
	assert.Equal(t, "On track.", s.StatusSummary)
	assert.Equal(t, []string{"landing page"}, s.Completed)
	assert.Equal(t, []string{"api keys"}, s.Blockers)
}

func TestParse_CodeFenced(t *testing.T) {
	raw := "```json\n{\"status_summary\":\"fenced\",\"completed\":[]}\n```"
	s, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "fenced", s.StatusSummary)
}

func TestParse_ProseWrapped(t *testing.T) {
	raw := "Here is the updated state:\n{\"status_summary\":\"wrapped\"}\nLet me know if you need anything else."
	s, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "wrapped", s.StatusSummary)
}

func TestParse_InvalidJSON_FailsLoudly(t *testing.T) {
	_, err := Parse(`{"status_summary": not valid}`)
	assert.Error(t, err)
}

func TestParse_NoJSON(t *testing.T) {
	_, err := Parse("I could not produce a state this time, sorry.")
	assert.Error(t, err)
}

func TestParse_NormalizesNextActions(t *testing.T) {
	s, err := Parse(`{"status_summary":"x","next_actions":["do thing",{"task":"other","effort":"high"}]}`)
	require.NoError(t, err)
	require.Len(t, s.NextActions, 2)
	assert.Equal(t, EffortMedium, s.NextActions[0].Effort)
	assert.Equal(t, []string{}, s.NextActions[0].Dependencies)
	assert.Equal(t, EffortHigh, s.NextActions[1].Effort)
	assert.Equal(t, []string{}, s.NextActions[1].Dependencies)
}
