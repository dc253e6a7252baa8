package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePlanJSON(t *testing.T) {
	text := `{
		"title": "Ship release",
		"intent": "cut and publish v2",
		"tasks": [
			{"id": "t1", "description": "run tests", "action": "tool", "target": "bash"},
			{"id": "t2", "description": "write notes", "action": "inference", "target": "claude", "depends_on": ["t1"]}
		]
	}`

	parsed, err := parsePlanJSON(text)
	require.NoError(t, err)
	assert.Equal(t, "Ship release", parsed.Title)
	require.Len(t, parsed.Tasks, 2)
	assert.Equal(t, []string{"t1"}, parsed.Tasks[1].DependsOn)
}

func TestParsePlanJSONStripsFences(t *testing.T) {
	text := "Here is the plan:\n```json\n{\"title\": \"x\", \"tasks\": []}\n```\nDone."
	parsed, err := parsePlanJSON(text)
	require.NoError(t, err)
	assert.Equal(t, "x", parsed.Title)
}

func TestParsePlanJSONRepairsTrailingComma(t *testing.T) {
	text := `{"title": "x", "tasks": [{"id": "t1", "action": "tool", "target": "bash",},],}`
	parsed, err := parsePlanJSON(text)
	require.NoError(t, err)
	require.Len(t, parsed.Tasks, 1)
	assert.Equal(t, "t1", parsed.Tasks[0].ID)
}

func TestParsePlanJSONRejectsGarbage(t *testing.T) {
	_, err := parsePlanJSON("I cannot produce a plan for that.")
	require.Error(t, err)
}
