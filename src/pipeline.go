package src

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
)

// Status messages streamed at the start of each stage.
const (
	msgPlanning  = "Constructing a Master Plan...."
	msgArchitect = "Orchestrating things...."
	msgCoding    = "Generating the code...."
	msgReviewing = "Reviewing code quality...."
	msgModifying = "Applying modifications...."
)

const visionPlannerPreamble = `Analyze this image carefully. Based on what you see:

1. If it's a UI/design mockup: Plan to replicate the exact layout, colors, components, and styling.
2. If it's a wireframe: Use this as the structural basis for the UI design.
3. If it's a photo/logo: Incorporate this appropriately (profile image, branding, etc.).

User's request: %s

Now create a detailed product plan as specified in the system instructions.`

// Request describes one generation run.
type Request struct {
	Prompt     string
	Attachment *Attachment
	UserID     string
	ProjectID  string
	AssetURL   string
}

// Result is the final artifact of a generation run.
type Result struct {
	Files         FileSet
	PlanText      string
	ArchitectText string
	Diagram       string
	Review        string
	ProjectID     string
}

// Pipeline chains the planner, architect, coder, and reviewer stages.
// The store is optional; when nil, runs complete without persistence.
type Pipeline struct {
	models *Models
	store  Store
	log    *slog.Logger
}

func NewPipeline(models *Models, store Store, log *slog.Logger) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{models: models, store: store, log: log}
}

// Run executes the full pipeline without streaming and returns the final
// artifact.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	return p.runStages(ctx, req, func(Event) {})
}

// Stream executes the full pipeline, delivering progress events on the
// returned channel. The channel is closed when the run finishes; a
// pipeline failure surfaces as a terminal error event rather than closing
// early.
func (p *Pipeline) Stream(ctx context.Context, req Request) <-chan Event {
	events := make(chan Event, eventBufferSize)
	go func() {
		defer close(events)
		emit := func(ev Event) { events <- ev }
		if _, err := p.runStages(ctx, req, emit); err != nil {
			p.log.Error("pipeline run failed", "error", err)
			emit(Event{Stage: StageError, Message: err.Error()})
		}
	}()
	return events
}

// runStages is the shared stage driver behind Run and Stream. Events are
// delivered through emit in stage order; persistence is best-effort and
// never fails the run.
func (p *Pipeline) runStages(ctx context.Context, req Request, emit func(Event)) (*Result, error) {
	processed, err := ProcessAttachment(req.Prompt, req.Attachment)
	if err != nil {
		return nil, err
	}

	// Stage 1: planning.
	emit(Event{Stage: StagePlanning, Message: msgPlanning})

	plan, err := p.runPlanner(ctx, processed, req.AssetURL)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, E(ErrCodeSchemaValidation, "Planner failed to create a plan")
	}
	planText := FormatPlanText(plan)
	emit(Event{Stage: StagePlanComplete, Plan: planText})

	// Stage 2: architecting.
	emit(Event{Stage: StageArchitecting, Message: msgArchitect})

	tp, err := p.runArchitect(ctx, plan)
	if err != nil {
		return nil, err
	}
	if tp == nil {
		return nil, E(ErrCodeSchemaValidation, "Architect failed to create implementation steps")
	}
	tp.Plan = plan
	architectText := FormatArchitectText(tp)
	diagram := ExtractDiagram(tp)
	emit(Event{Stage: StageArchitectComplete, Architect: architectText, Diagram: diagram})

	// Stage 3: coding.
	emit(Event{Stage: StageCoding, Message: msgCoding})

	files, err := p.runCoder(ctx, tp, req.AssetURL)
	if err != nil {
		return nil, err
	}
	emit(Event{Stage: StageCodingComplete, Files: files})

	// Stage 4: reviewing.
	emit(Event{Stage: StageReviewing, Message: msgReviewing})

	review := p.runReviewer(ctx, req.Prompt, planText, architectText, files)
	emit(Event{Stage: StageComplete, Files: files, Review: review})

	result := &Result{
		Files:         files,
		PlanText:      planText,
		ArchitectText: architectText,
		Diagram:       diagram,
		Review:        review,
		ProjectID:     req.ProjectID,
	}

	// Stage 5: persistence, best-effort.
	if req.UserID != "" && p.store != nil {
		p.persistRun(ctx, req, plan, result, emit)
	}
	return result, nil
}

func (p *Pipeline) runPlanner(ctx context.Context, in *ProcessedInput, assetURL string) (*Plan, error) {
	sreq := StructuredRequest{Schema: planSchema()}
	if in.ImageData != "" {
		// Vision path: the planner instructions move to the system prompt
		// and the image rides alongside an analysis preamble.
		sreq.System = PlannerPrompt(in.Text, assetURL)
		sreq.Prompt = fmt.Sprintf(visionPlannerPreamble, in.Text)
		sreq.Image = &ImagePayload{MediaType: in.ImageMIME, Data: in.ImageData}
	} else {
		sreq.Prompt = PlannerPrompt(in.Text, assetURL)
	}

	raw, err := p.models.Invoker.InvokeStructured(ctx, p.models.Planner, sreq)
	if err != nil {
		return nil, err
	}
	var plan Plan
	if err := json.Unmarshal(raw, &plan); err != nil {
		return nil, WrapErr(ErrCodeSchemaValidation, err, "planner output did not match the plan schema")
	}
	return &plan, nil
}

func (p *Pipeline) runArchitect(ctx context.Context, plan *Plan) (*TaskPlan, error) {
	planJSON, err := json.Marshal(plan)
	if err != nil {
		return nil, err
	}
	raw, err := p.models.Invoker.InvokeStructured(ctx, p.models.Architect, StructuredRequest{
		Prompt: ArchitectPrompt(string(planJSON)),
		Schema: taskPlanSchema(),
	})
	if err != nil {
		return nil, err
	}
	var tp TaskPlan
	if err := json.Unmarshal(raw, &tp); err != nil {
		return nil, WrapErr(ErrCodeSchemaValidation, err, "architect output did not match the task plan schema")
	}
	return &tp, nil
}

// runCoder generates the file set from the task plan, then normalizes
// duplicate entry points out of it.
func (p *Pipeline) runCoder(ctx context.Context, tp *TaskPlan, assetURL string) (FileSet, error) {
	tpJSON, err := json.Marshal(tp)
	if err != nil {
		return nil, err
	}
	raw, err := p.models.Invoker.InvokeText(ctx, p.models.Coder, CoderSystemPrompt(), CoderTaskPrompt(string(tpJSON), assetURL))
	if err != nil {
		return nil, err
	}
	ex, err := ExtractGenerated(raw)
	if err != nil {
		return nil, err
	}
	return NormalizeEntryPoints(ex.Files), nil
}

// runReviewer never fails the run: an unparseable review degrades to the
// raw model text, and an invocation error degrades to an empty review.
func (p *Pipeline) runReviewer(ctx context.Context, userPrompt, planText, architectText string, files FileSet) string {
	raw, err := p.models.Invoker.InvokeText(ctx, p.models.Reviewer, "", ReviewerPrompt(userPrompt, planText, architectText, files))
	if err != nil {
		p.log.Warn("reviewer invocation failed", "error", err)
		return ""
	}
	feedback, err := ExtractReviewFeedback(raw)
	if err != nil {
		return raw
	}
	return feedback
}

// persistRun writes the finished run to the store. Failures emit a
// save_error event and are otherwise swallowed.
func (p *Pipeline) persistRun(ctx context.Context, req Request, plan *Plan, result *Result, emit func(Event)) {
	projectID := req.ProjectID
	if projectID == "" {
		name := plan.Name
		if name == "" {
			name = truncate(req.Prompt, 50)
		}
		created, err := p.store.CreateProject(ctx, req.UserID, name, plan.Description)
		if err != nil {
			p.log.Warn("project create failed", "error", err)
			emit(Event{Stage: StageSaveError, Message: err.Error()})
			return
		}
		projectID = created
	}

	snapshot := Snapshot{
		Files:             SandpackFiles(result.Files),
		PlanSnapshot:      result.PlanText,
		ArchitectSnapshot: result.ArchitectText,
		DiagramSnapshot:   result.Diagram,
		ReviewSnapshot:    result.Review,
		Prompt:            req.Prompt,
	}
	if err := p.store.UpdateProjectSnapshots(ctx, projectID, snapshot); err != nil {
		p.log.Warn("snapshot save failed", "project_id", projectID, "error", err)
		emit(Event{Stage: StageSaveError, Message: err.Error()})
		return
	}

	// Version rows are supplementary; a failure here does not undo the
	// project save.
	if err := p.store.SaveVersion(ctx, projectID, Version{
		Prompt:            req.Prompt,
		Files:             result.Files,
		PlanSnapshot:      result.PlanText,
		ArchitectSnapshot: result.ArchitectText,
		DiagramSnapshot:   result.Diagram,
		ReviewSnapshot:    result.Review,
	}); err != nil {
		p.log.Warn("version save failed", "project_id", projectID, "error", err)
	}

	result.ProjectID = projectID
	emit(Event{Stage: StageSaved, ProjectID: projectID})
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		return string(r[:n])
	}
	return s
}
