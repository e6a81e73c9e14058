package src

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskPlanExtraRoundTrip(t *testing.T) {
	raw := `{"architecture_diagram": "graph TD; A --> B",
		"implementation_steps": [{"filepath": "/App.tsx", "task_description": "build it"}],
		"notes": "keep it simple",
		"confidence": 0.9}`

	var tp TaskPlan
	require.NoError(t, json.Unmarshal([]byte(raw), &tp))
	assert.Equal(t, "graph TD; A --> B", tp.ArchitectureDiagram)
	require.Len(t, tp.Extra, 2)
	assert.JSONEq(t, `"keep it simple"`, string(tp.Extra["notes"]))
	assert.JSONEq(t, `0.9`, string(tp.Extra["confidence"]))

	tp.Plan = &Plan{Name: "Todo App"}
	out, err := json.Marshal(tp)
	require.NoError(t, err)

	var round map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(out, &round))
	assert.JSONEq(t, `"keep it simple"`, string(round["notes"]))
	assert.JSONEq(t, `0.9`, string(round["confidence"]))
	assert.Contains(t, string(round["plan"]), "Todo App")
}

func TestTaskPlanNoExtraFields(t *testing.T) {
	raw := `{"architecture_diagram": "d", "implementation_steps": []}`
	var tp TaskPlan
	require.NoError(t, json.Unmarshal([]byte(raw), &tp))
	assert.Nil(t, tp.Extra)
}
