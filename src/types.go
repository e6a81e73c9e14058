package src

import "encoding/json"

// PlanFile is a single file entry in a product plan.
type PlanFile struct {
	Path    string `json:"path"`
	Purpose string `json:"purpose"`
}

// Plan is the structured product plan produced by the planner stage.
// It is immutable once produced; the architect consumes it as-is.
type Plan struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	TechStack   string     `json:"techstack"`
	Features    []string   `json:"features"`
	Files       []PlanFile `json:"files"`
}

// ImplementationTask is one ordered step of a task plan.
type ImplementationTask struct {
	FilePath        string `json:"filepath"`
	TaskDescription string `json:"task_description"`
}

// TaskPlan is the architect's output: a component diagram plus ordered
// implementation steps. The plan back-reference is set by the orchestrator
// after the architect call returns; the model is never trusted to echo it.
//
// The schema is open: unknown fields from the model are captured in Extra
// and round-tripped unchanged, so downstream code never guesses at untyped
// keys on the core struct.
type TaskPlan struct {
	ArchitectureDiagram string               `json:"architecture_diagram"`
	ImplementationSteps []ImplementationTask `json:"implementation_steps"`
	Plan                *Plan                `json:"plan,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

var taskPlanKnownKeys = map[string]struct{}{
	"architecture_diagram": {},
	"implementation_steps": {},
	"plan":                 {},
}

func (tp *TaskPlan) UnmarshalJSON(data []byte) error {
	type core TaskPlan
	var c core
	if err := json.Unmarshal(data, &c); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for k := range taskPlanKnownKeys {
		delete(raw, k)
	}
	if len(raw) > 0 {
		c.Extra = raw
	}

	*tp = TaskPlan(c)
	return nil
}

func (tp TaskPlan) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, 3+len(tp.Extra))
	out["architecture_diagram"] = tp.ArchitectureDiagram
	out["implementation_steps"] = tp.ImplementationSteps
	if tp.Plan != nil {
		out["plan"] = tp.Plan
	}
	for k, v := range tp.Extra {
		if _, known := taskPlanKnownKeys[k]; !known {
			out[k] = v
		}
	}
	return json.Marshal(out)
}

// FileSet maps generated file paths (always starting with "/") to full file
// contents. It is produced once per run and mutated only by the normalizer.
type FileSet map[string]string

// Clone returns a shallow copy of the file set.
func (fs FileSet) Clone() FileSet {
	out := make(FileSet, len(fs))
	for k, v := range fs {
		out[k] = v
	}
	return out
}
