package src

import (
	"context"
	"strings"
)

const defaultFollowupSummary = "Modifications applied successfully."

// FollowUpRequest describes a modification run against an existing
// generated project.
type FollowUpRequest struct {
	Prompt         string
	CurrentFiles   FileSet
	ReviewFeedback string
	UserID         string
	ProjectID      string
	AssetURL       string
}

// FollowUpResult is the artifact of a modification run.
type FollowUpResult struct {
	Files     FileSet
	Summary   string
	ProjectID string
}

// FollowUp runs the single-stage modification pipeline: no planner or
// architect, the coder rewrites the current entry file directly.
func (p *Pipeline) FollowUp(ctx context.Context, req FollowUpRequest) (*FollowUpResult, error) {
	return p.runFollowUp(ctx, req, func(Event) {})
}

// FollowUpStream is the streaming variant of FollowUp. Event order is
// modifying, complete, then an optional saved or save_error.
func (p *Pipeline) FollowUpStream(ctx context.Context, req FollowUpRequest) <-chan Event {
	events := make(chan Event, eventBufferSize)
	go func() {
		defer close(events)
		emit := func(ev Event) { events <- ev }
		if _, err := p.runFollowUp(ctx, req, emit); err != nil {
			p.log.Error("follow-up run failed", "error", err)
			emit(Event{Stage: StageError, Message: err.Error()})
		}
	}()
	return events
}

func (p *Pipeline) runFollowUp(ctx context.Context, req FollowUpRequest, emit func(Event)) (*FollowUpResult, error) {
	// The precondition is checked before any model call so a malformed
	// request costs nothing.
	currentCode := req.CurrentFiles[CanonicalEntryPoint]
	if currentCode == "" {
		currentCode = req.CurrentFiles[strings.TrimPrefix(CanonicalEntryPoint, "/")]
	}
	if currentCode == "" {
		return nil, E(ErrCodePrecondition, "No App.tsx found in current files")
	}

	emit(Event{Stage: StageModifying, Message: msgModifying})

	prompt := CoderFollowupPrompt(req.Prompt, currentCode, req.ReviewFeedback, req.AssetURL)
	raw, err := p.models.Invoker.InvokeText(ctx, p.models.Coder, CoderSystemPrompt(), prompt)
	if err != nil {
		return nil, err
	}
	ex, err := ExtractGenerated(raw)
	if err != nil {
		return nil, err
	}
	files := NormalizeEntryPoints(ex.Files)
	summary := ex.Summary
	if summary == "" {
		summary = defaultFollowupSummary
	}

	emit(Event{Stage: StageComplete, Files: files, Summary: summary})

	result := &FollowUpResult{Files: files, Summary: summary, ProjectID: req.ProjectID}
	if req.UserID != "" && req.ProjectID != "" && p.store != nil {
		p.persistFollowUp(ctx, req, result, emit)
	}
	return result, nil
}

// persistFollowUp saves the modified files while inheriting the plan,
// architecture, diagram, and review snapshots from the initial generation.
func (p *Pipeline) persistFollowUp(ctx context.Context, req FollowUpRequest, result *FollowUpResult, emit func(Event)) {
	var prior Snapshot
	if project, err := p.store.GetProjectWithCode(ctx, req.ProjectID); err != nil {
		p.log.Warn("prior snapshot fetch failed", "project_id", req.ProjectID, "error", err)
	} else if project.CodeSnapshot != nil {
		prior = *project.CodeSnapshot
	}

	snapshot := Snapshot{
		Files:             SandpackFiles(result.Files),
		PlanSnapshot:      prior.PlanSnapshot,
		ArchitectSnapshot: prior.ArchitectSnapshot,
		DiagramSnapshot:   prior.DiagramSnapshot,
		ReviewSnapshot:    prior.ReviewSnapshot,
		Prompt:            prior.Prompt,
		LastFollowup:      req.Prompt,
		FollowupSummary:   result.Summary,
	}
	if err := p.store.UpdateProjectSnapshots(ctx, req.ProjectID, snapshot); err != nil {
		p.log.Warn("follow-up snapshot save failed", "project_id", req.ProjectID, "error", err)
		emit(Event{Stage: StageSaveError, Message: err.Error()})
		return
	}

	if err := p.store.SaveVersion(ctx, req.ProjectID, Version{
		Prompt:  req.Prompt,
		Files:   result.Files,
		Summary: result.Summary,
	}); err != nil {
		p.log.Warn("follow-up version save failed", "project_id", req.ProjectID, "error", err)
	}

	emit(Event{Stage: StageSaved, ProjectID: req.ProjectID})
}
