package ui

import (
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
)

// Mode represents the current UI state
type Mode int

const (
	ModePrompt Mode = iota
	ModeStreaming
	ModeResult
)

// State contains all the data required to render the UI.
// This decouples the renderer from the main application logic.
type State struct {
	Mode      Mode
	ServerURL string

	// Streaming progress
	StageLabel    string
	IsThinking    bool
	PlanText      string
	ArchitectText string
	Diagram       string
	Review        string
	Files         []string
	Summary       string
	ProjectID     string
	ErrText       string

	// Bubble Tea models
	TextArea textarea.Model
	Viewport viewport.Model
	Spinner  spinner.Model
}
