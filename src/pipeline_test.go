package src

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubInvoker replays scripted stage responses instead of calling a model.
type stubInvoker struct {
	planJSON     string
	taskPlanJSON string
	coderText    string
	reviewerText string

	structuredCalls int
	textCalls       int
	err             error
}

func (s *stubInvoker) InvokeStructured(ctx context.Context, cfg ModelConfig, req StructuredRequest) (json.RawMessage, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.structuredCalls++
	switch req.Schema.Name {
	case "record_plan":
		return json.RawMessage(s.planJSON), nil
	case "record_task_plan":
		return json.RawMessage(s.taskPlanJSON), nil
	}
	return nil, errors.New("unexpected schema " + req.Schema.Name)
}

func (s *stubInvoker) InvokeText(ctx context.Context, cfg ModelConfig, system, prompt string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.textCalls++
	// The coder gets a system prompt, the reviewer does not.
	if system != "" {
		return s.coderText, nil
	}
	return s.reviewerText, nil
}

func happyInvoker() *stubInvoker {
	return &stubInvoker{
		planJSON: `{"name": "Todo App", "description": "A todo list", "techstack": "React, Tailwind",
			"features": ["add", "complete"],
			"files": [{"path": "/App.tsx", "purpose": "main component"}]}`,
		taskPlanJSON: `{"architecture_diagram": "graph TD; App --> List",
			"implementation_steps": [{"filepath": "/App.tsx", "task_description": "build it"}]}`,
		coderText:    `{"files": {"/App.tsx": "code", "/App.js": "dupe", "/package.json": "{}", "/README.md": "# Todo"}}`,
		reviewerText: `{"review_feedback": "Looks good."}`,
	}
}

func testModels(inv Invoker) *Models {
	return &Models{
		Planner:   ModelConfig{Model: "planner", MaxTokens: 64},
		Architect: ModelConfig{Model: "architect", MaxTokens: 64},
		Coder:     ModelConfig{Model: "coder", MaxTokens: 64},
		Reviewer:  ModelConfig{Model: "reviewer", MaxTokens: 64},
		Invoker:   inv,
	}
}

func collect(events <-chan Event) []Event {
	var out []Event
	for ev := range events {
		out = append(out, ev)
	}
	return out
}

func stages(events []Event) []Stage {
	out := make([]Stage, len(events))
	for i, ev := range events {
		out[i] = ev.Stage
	}
	return out
}

func TestStreamEventOrder(t *testing.T) {
	p := NewPipeline(testModels(happyInvoker()), nil, slog.Default())
	events := collect(p.Stream(context.Background(), Request{Prompt: "build a todo app"}))

	assert.Equal(t, []Stage{
		StagePlanning, StagePlanComplete,
		StageArchitecting, StageArchitectComplete,
		StageCoding, StageCodingComplete,
		StageReviewing, StageComplete,
	}, stages(events))

	final := events[len(events)-1]
	assert.Equal(t, "Looks good.", final.Review)
	assert.Contains(t, final.Files, "/App.tsx")
	assert.NotContains(t, final.Files, "/App.js", "duplicate entry point must be normalized out")
	assert.Contains(t, final.Files, "/README.md")
	assert.Contains(t, final.Files, "/package.json")
}

func TestRunBatch(t *testing.T) {
	p := NewPipeline(testModels(happyInvoker()), nil, slog.Default())
	result, err := p.Run(context.Background(), Request{Prompt: "build a todo app"})
	require.NoError(t, err)

	assert.Contains(t, result.PlanText, "Todo App")
	assert.Contains(t, result.ArchitectText, "/App.tsx")
	assert.Equal(t, "graph TD; App --> List", result.Diagram)
	assert.Equal(t, "Looks good.", result.Review)
	assert.True(t, HasEntryPoint(result.Files))
}

func TestStreamBrokenCoderOutput(t *testing.T) {
	inv := happyInvoker()
	inv.coderText = "I'm sorry, I had trouble with that request"
	p := NewPipeline(testModels(inv), nil, slog.Default())

	events := collect(p.Stream(context.Background(), Request{Prompt: "p"}))
	final := events[len(events)-1]
	assert.Equal(t, StageError, final.Stage)
	assert.Contains(t, final.Message, "no JSON object found")

	// The error event is terminal: no complete was emitted.
	for _, ev := range events {
		assert.NotEqual(t, StageComplete, ev.Stage)
	}
}

func TestStreamReviewerDegradesToRawText(t *testing.T) {
	inv := happyInvoker()
	inv.reviewerText = "plain prose review, not JSON at all"
	p := NewPipeline(testModels(inv), nil, slog.Default())

	events := collect(p.Stream(context.Background(), Request{Prompt: "p"}))
	final := events[len(events)-1]
	assert.Equal(t, StageComplete, final.Stage)
	assert.Equal(t, "plain prose review, not JSON at all", final.Review)
}

// failingStore fails every write so persistence degradation can be
// observed.
type failingStore struct{ Store }

func (failingStore) CreateProject(ctx context.Context, userID, name, description string) (string, error) {
	return "", errors.New("connection refused")
}

func TestStreamSaveErrorIsPostTerminal(t *testing.T) {
	p := NewPipeline(testModels(happyInvoker()), failingStore{}, slog.Default())
	events := collect(p.Stream(context.Background(), Request{Prompt: "p", UserID: "user-1"}))

	got := stages(events)
	require.GreaterOrEqual(t, len(got), 2)
	assert.Equal(t, StageComplete, got[len(got)-2], "run must complete before save_error")
	assert.Equal(t, StageSaveError, got[len(got)-1])
}

// memStore records pipeline persistence calls.
type memStore struct {
	Store
	projects  map[string]*Project
	snapshots map[string]Snapshot
	versions  map[string][]Version
}

func newMemStore() *memStore {
	return &memStore{
		projects:  map[string]*Project{},
		snapshots: map[string]Snapshot{},
		versions:  map[string][]Version{},
	}
}

func (m *memStore) CreateProject(ctx context.Context, userID, name, description string) (string, error) {
	id := "project-1"
	m.projects[id] = &Project{ID: id, UserID: userID, Name: name, Description: description}
	return id, nil
}

func (m *memStore) UpdateProjectSnapshots(ctx context.Context, projectID string, snapshot Snapshot) error {
	m.snapshots[projectID] = snapshot
	return nil
}

func (m *memStore) SaveVersion(ctx context.Context, projectID string, v Version) error {
	m.versions[projectID] = append(m.versions[projectID], v)
	return nil
}

func (m *memStore) GetProjectWithCode(ctx context.Context, projectID string) (*Project, error) {
	p, ok := m.projects[projectID]
	if !ok {
		return nil, ErrNotFound
	}
	if snap, ok := m.snapshots[projectID]; ok {
		p.CodeSnapshot = &snap
	}
	return p, nil
}

func TestStreamPersistsAndEmitsSaved(t *testing.T) {
	store := newMemStore()
	p := NewPipeline(testModels(happyInvoker()), store, slog.Default())
	events := collect(p.Stream(context.Background(), Request{Prompt: "build a todo app", UserID: "user-1"}))

	final := events[len(events)-1]
	require.Equal(t, StageSaved, final.Stage)
	assert.Equal(t, "project-1", final.ProjectID)

	snap := store.snapshots["project-1"]
	assert.Contains(t, snap.Files, "/App.tsx")
	assert.Contains(t, snap.PlanSnapshot, "Todo App")
	assert.Equal(t, "build a todo app", snap.Prompt)
	require.Len(t, store.versions["project-1"], 1)
}

func TestFollowUpStreamOrder(t *testing.T) {
	inv := happyInvoker()
	inv.coderText = `{"summary": "Added dark mode", "files": {"/App.tsx": "new code", "/package.json": "{}"}}`
	p := NewPipeline(testModels(inv), nil, slog.Default())

	events := collect(p.FollowUpStream(context.Background(), FollowUpRequest{
		Prompt:       "add dark mode",
		CurrentFiles: FileSet{"/App.tsx": "old code"},
	}))
	require.Equal(t, []Stage{StageModifying, StageComplete}, stages(events))
	assert.Equal(t, "Added dark mode", events[1].Summary)
	assert.Equal(t, "new code", events[1].Files["/App.tsx"])
}

func TestFollowUpPreconditionSkipsModel(t *testing.T) {
	inv := happyInvoker()
	p := NewPipeline(testModels(inv), nil, slog.Default())

	_, err := p.FollowUp(context.Background(), FollowUpRequest{
		Prompt:       "add dark mode",
		CurrentFiles: FileSet{"/index.tsx": "not the entry point"},
	})
	require.Error(t, err)
	assert.True(t, HasCode(err, ErrCodePrecondition))
	assert.Zero(t, inv.textCalls, "precondition failure must not invoke the model")
	assert.Zero(t, inv.structuredCalls)
}

func TestFollowUpDefaultSummary(t *testing.T) {
	inv := happyInvoker()
	inv.coderText = `{"files": {"/App.tsx": "new code"}}`
	p := NewPipeline(testModels(inv), nil, slog.Default())

	result, err := p.FollowUp(context.Background(), FollowUpRequest{
		Prompt:       "tweak",
		CurrentFiles: FileSet{"App.tsx": "old"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Modifications applied successfully.", result.Summary)
}

func TestFollowUpInheritsPriorSnapshots(t *testing.T) {
	store := newMemStore()
	store.projects["project-1"] = &Project{ID: "project-1", Name: "Todo App"}
	store.snapshots["project-1"] = Snapshot{
		PlanSnapshot:      "original plan",
		ArchitectSnapshot: "original architecture",
		DiagramSnapshot:   "graph TD; A --> B",
		ReviewSnapshot:    "original review",
		Prompt:            "original prompt",
	}

	inv := happyInvoker()
	inv.coderText = `{"summary": "Changed title", "files": {"/App.tsx": "v2"}}`
	p := NewPipeline(testModels(inv), store, slog.Default())

	events := collect(p.FollowUpStream(context.Background(), FollowUpRequest{
		Prompt:       "change the title",
		CurrentFiles: FileSet{"/App.tsx": "v1"},
		UserID:       "user-1",
		ProjectID:    "project-1",
	}))
	require.Equal(t, StageSaved, events[len(events)-1].Stage)

	snap := store.snapshots["project-1"]
	assert.Equal(t, "original plan", snap.PlanSnapshot)
	assert.Equal(t, "original review", snap.ReviewSnapshot)
	assert.Equal(t, "original prompt", snap.Prompt)
	assert.Equal(t, "change the title", snap.LastFollowup)
	assert.Equal(t, "Changed title", snap.FollowupSummary)
	assert.Equal(t, "v2", snap.Files["/App.tsx"].Code)
}

func TestPlanBackreferenceReachesCoder(t *testing.T) {
	inv := happyInvoker()
	var coderPrompt string
	recorder := &recordingInvoker{stub: inv, onText: func(system, prompt string) {
		if system != "" {
			coderPrompt = prompt
		}
	}}
	p := NewPipeline(testModels(recorder), nil, slog.Default())

	_, err := p.Run(context.Background(), Request{Prompt: "build a todo app"})
	require.NoError(t, err)
	// The task plan serialized into the coder prompt must carry the plan
	// injected after the architect stage.
	assert.Contains(t, coderPrompt, `"Todo App"`)
	assert.Contains(t, coderPrompt, "implementation_steps")
}

func TestTruncateRuneBoundary(t *testing.T) {
	assert.Equal(t, "ab", truncate("abcd", 2))
	assert.Equal(t, "abcd", truncate("abcd", 10))
	assert.Equal(t, "日本", truncate("日本語プロジェクト", 2))
	assert.True(t, utf8.ValidString(truncate("héllo wörld", 5)))
}

type recordingInvoker struct {
	stub   *stubInvoker
	onText func(system, prompt string)
}

func (r *recordingInvoker) InvokeStructured(ctx context.Context, cfg ModelConfig, req StructuredRequest) (json.RawMessage, error) {
	return r.stub.InvokeStructured(ctx, cfg, req)
}

func (r *recordingInvoker) InvokeText(ctx context.Context, cfg ModelConfig, system, prompt string) (string, error) {
	if r.onText != nil {
		r.onText(system, prompt)
	}
	return r.stub.InvokeText(ctx, cfg, system, prompt)
}
