package src

// Stage labels the pipeline phase an Event reports. Values are part of
// the streaming wire contract.
type Stage string

const (
	StagePlanning          Stage = "planning"
	StagePlanComplete      Stage = "plan_complete"
	StageArchitecting      Stage = "architecting"
	StageArchitectComplete Stage = "architect_complete"
	StageCoding            Stage = "coding"
	StageCodingComplete    Stage = "coding_complete"
	StageReviewing         Stage = "reviewing"
	StageModifying         Stage = "modifying"
	StageComplete          Stage = "complete"
	StageSaved             Stage = "saved"
	StageSaveError         Stage = "save_error"
	StageError             Stage = "error"
)

// Event is one progress frame emitted by a streaming pipeline run. Only
// the fields relevant to the stage are set.
type Event struct {
	Stage     Stage   `json:"stage"`
	Message   string  `json:"message,omitempty"`
	Plan      string  `json:"plan,omitempty"`
	Architect string  `json:"architect,omitempty"`
	Diagram   string  `json:"diagram,omitempty"`
	Files     FileSet `json:"files,omitempty"`
	Review    string  `json:"review,omitempty"`
	Summary   string  `json:"summary,omitempty"`
	ProjectID string  `json:"project_id,omitempty"`
}

// eventBufferSize bounds how far the pipeline can run ahead of a slow
// consumer before emits block.
const eventBufferSize = 16
