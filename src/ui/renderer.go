package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const Logo = `
██████╗ ███████╗██╗   ██╗ ██████╗ ██████╗ ██╗   ██╗███████╗
██╔══██╗██╔════╝██║   ██║██╔═══██╗██╔══██╗██║   ██║██╔════╝
██║  ██║█████╗  ██║   ██║██║   ██║██████╔╝██║   ██║███████╗
██║  ██║██╔══╝  ╚██╗ ██╔╝██║   ██║██╔═══╝ ██║   ██║╚════██║
██████╔╝███████╗ ╚████╔╝ ╚██████╔╝██║     ╚██████╔╝███████║
╚═════╝ ╚══════╝  ╚═══╝   ╚═════╝ ╚═╝      ╚═════╝ ╚══════╝
            P R O M P T  ·  T O  ·  A P P L I C A T I O N
`

// Render generates the full UI string based on the provided state.
func Render(s State, styles Styles) string {
	header := renderHeader(s, styles)
	body := renderBody(s, styles)
	footer := renderFooter(s, styles)

	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
}

func renderHeader(s State, styles Styles) string {
	logoStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#AD8CFF")).Bold(true)
	subtitle := styles.Header.Render(fmt.Sprintf("DevOpus · %s", s.ServerURL))

	return lipgloss.JoinVertical(lipgloss.Left, logoStyle.Render(Logo), subtitle)
}

func renderFooter(s State, styles Styles) string {
	help := "ctrl+c: quit"
	switch s.Mode {
	case ModePrompt:
		help += " | enter: generate"
	case ModeResult:
		help += " | enter: follow-up modification"
	}
	return styles.Footer.Render(help)
}

func renderBody(s State, styles Styles) string {
	switch s.Mode {
	case ModePrompt:
		return renderPrompt(s, styles)
	case ModeStreaming:
		return renderStreaming(s, styles)
	case ModeResult:
		return renderResult(s, styles)
	default:
		return ""
	}
}

func renderPrompt(s State, styles Styles) string {
	title := styles.Subtitle.Render("Describe the app you want to build")
	return lipgloss.JoinVertical(lipgloss.Left, title, styles.Textarea.Render(s.TextArea.View()))
}

func renderStreaming(s State, styles Styles) string {
	lines := []string{styles.Stage.Render(strings.ToUpper(s.StageLabel))}
	if s.IsThinking {
		lines = append(lines, styles.Thinking.Render(fmt.Sprintf("%s working...", s.Spinner.View())))
	}
	lines = append(lines, s.Viewport.View())
	return styles.Panel.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func renderResult(s State, styles Styles) string {
	var lines []string
	if s.ErrText != "" {
		lines = append(lines, styles.Error.Render("✗ "+s.ErrText))
	} else {
		lines = append(lines, styles.Success.Render(fmt.Sprintf("✓ Generated %d files", len(s.Files))))
		for _, path := range s.Files {
			lines = append(lines, styles.Subtle.Render("  "+path))
		}
		if s.ProjectID != "" {
			lines = append(lines, styles.Accent.Render("Saved as project "+s.ProjectID))
		}
		if s.Summary != "" {
			lines = append(lines, styles.Subtitle.Render(s.Summary))
		}
	}
	lines = append(lines, s.Viewport.View(), styles.Textarea.Render(s.TextArea.View()))
	return styles.Panel.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

// TranscriptText builds the scrollback content shown in the viewport from
// the stage outputs received so far.
func TranscriptText(s State) string {
	var b strings.Builder
	if s.PlanText != "" {
		b.WriteString(s.PlanText + "\n\n")
	}
	if s.ArchitectText != "" {
		b.WriteString(s.ArchitectText + "\n\n")
	}
	if s.Diagram != "" {
		b.WriteString("```mermaid\n" + s.Diagram + "\n```\n\n")
	}
	if s.Review != "" {
		b.WriteString("## Review\n" + s.Review + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
