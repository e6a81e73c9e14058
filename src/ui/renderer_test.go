package ui

import (
	"strings"
	"testing"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
)

func testState(mode Mode) State {
	ta := textarea.New()
	ta.SetWidth(80)
	return State{
		Mode:      mode,
		ServerURL: "http://localhost:8000",
		TextArea:  ta,
		Viewport:  viewport.New(80, 20),
		Spinner:   spinner.New(),
	}
}

func TestRenderContainsLogo(t *testing.T) {
	output := Render(testState(ModePrompt), NewStyles())
	if !strings.Contains(output, "DevOpus") {
		t.Errorf("Expected output to contain the DevOpus header")
	}
}

func TestRenderFooterContainsQuit(t *testing.T) {
	output := Render(testState(ModePrompt), NewStyles())
	if !strings.Contains(output, "ctrl+c: quit") {
		t.Errorf("Expected footer to contain quit help")
	}
}

func TestRenderStreamingShowsStage(t *testing.T) {
	s := testState(ModeStreaming)
	s.StageLabel = "architecting"
	output := Render(s, NewStyles())
	if !strings.Contains(output, "ARCHITECTING") {
		t.Errorf("Expected streaming view to show the stage label")
	}
}

func TestRenderResultListsFiles(t *testing.T) {
	s := testState(ModeResult)
	s.Files = []string{"/App.tsx", "/package.json"}
	s.ProjectID = "abc123"
	output := Render(s, NewStyles())
	if !strings.Contains(output, "/App.tsx") {
		t.Errorf("Expected result view to list generated files")
	}
	if !strings.Contains(output, "abc123") {
		t.Errorf("Expected result view to show the saved project id")
	}
}

func TestRenderResultShowsError(t *testing.T) {
	s := testState(ModeResult)
	s.ErrText = "Planner failed to create a plan"
	output := Render(s, NewStyles())
	if !strings.Contains(output, "Planner failed") {
		t.Errorf("Expected result view to surface the error")
	}
}

func TestTranscriptText(t *testing.T) {
	s := testState(ModeStreaming)
	s.PlanText = "plan"
	s.Diagram = "graph TD; A --> B"
	s.Review = "fine"
	out := TranscriptText(s)
	for _, want := range []string{"plan", "mermaid", "## Review"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected transcript to contain %q", want)
		}
	}
}
