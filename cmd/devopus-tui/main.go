package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"github.com/devopus/devopus/src"
	"github.com/devopus/devopus/src/ui"
)

// Terminal client for a running devopus server: submit a prompt, watch
// the stage events stream in, then iterate with follow-up modifications.

type eventMsg src.Event

type streamClosedMsg struct{}

type model struct {
	state  ui.State
	styles ui.Styles
	client *http.Client
	server string
	userID string
	files  src.FileSet
	events <-chan src.Event
	width  int
	height int
}

func newModel(server, userID string) model {
	ta := textarea.New()
	ta.Placeholder = "Describe the app you want to build..."
	ta.Focus()
	ta.SetWidth(80)
	ta.SetHeight(4)

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return model{
		state: ui.State{
			Mode:      ui.ModePrompt,
			ServerURL: server,
			TextArea:  ta,
			Viewport:  viewport.New(80, 18),
			Spinner:   sp,
		},
		styles: ui.NewStyles(),
		client: &http.Client{Timeout: 15 * time.Minute},
		server: server,
		userID: userID,
	}
}

func (m model) Init() tea.Cmd {
	return textarea.Blink
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.state.TextArea.SetWidth(msg.Width - 6)
		m.state.Viewport.Width = msg.Width - 6
		m.state.Viewport.Height = msg.Height - 18
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			return m, tea.Quit
		case tea.KeyEnter:
			if m.state.Mode == ui.ModePrompt || m.state.Mode == ui.ModeResult {
				prompt := strings.TrimSpace(m.state.TextArea.Value())
				if prompt == "" {
					return m, nil
				}
				return m.startRun(prompt)
			}
		}

	case eventMsg:
		m.applyEvent(src.Event(msg))
		return m, tea.Batch(waitForEvent(m.events), m.state.Spinner.Tick)

	case streamClosedMsg:
		m.state.Mode = ui.ModeResult
		m.state.IsThinking = false
		m.state.TextArea.Reset()
		m.state.TextArea.Placeholder = "Describe a modification..."
		m.state.TextArea.Focus()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.state.Spinner, cmd = m.state.Spinner.Update(msg)
		return m, cmd
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.state.TextArea, cmd = m.state.TextArea.Update(msg)
	cmds = append(cmds, cmd)
	m.state.Viewport, cmd = m.state.Viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m model) View() string {
	return ui.Render(m.state, m.styles)
}

// startRun kicks off either an initial generation or a follow-up,
// depending on whether a file set already exists.
func (m model) startRun(prompt string) (tea.Model, tea.Cmd) {
	var endpoint string
	var payload any
	if len(m.files) == 0 {
		endpoint = "/generate-stream"
		payload = map[string]any{"prompt": prompt, "user_id": m.userID, "project_id": m.state.ProjectID}
	} else {
		endpoint = "/followup-stream"
		payload = map[string]any{
			"prompt":          prompt,
			"current_files":   m.files,
			"review_feedback": m.state.Review,
			"user_id":         m.userID,
			"project_id":      m.state.ProjectID,
		}
	}

	events, err := openStream(m.client, m.server+endpoint, payload)
	if err != nil {
		m.state.Mode = ui.ModeResult
		m.state.ErrText = err.Error()
		return m, nil
	}

	m.events = events
	m.state.Mode = ui.ModeStreaming
	m.state.IsThinking = true
	m.state.ErrText = ""
	m.state.StageLabel = "starting"
	m.state.TextArea.Blur()
	return m, tea.Batch(waitForEvent(events), m.state.Spinner.Tick)
}

func (m *model) applyEvent(ev src.Event) {
	m.state.StageLabel = string(ev.Stage)
	switch ev.Stage {
	case src.StagePlanComplete:
		m.state.PlanText = ev.Plan
	case src.StageArchitectComplete:
		m.state.ArchitectText = ev.Architect
		m.state.Diagram = ev.Diagram
	case src.StageCodingComplete, src.StageComplete:
		if ev.Files != nil {
			m.files = ev.Files
			m.state.Files = sortedPaths(ev.Files)
		}
		if ev.Review != "" {
			m.state.Review = ev.Review
		}
		if ev.Summary != "" {
			m.state.Summary = ev.Summary
		}
	case src.StageSaved:
		m.state.ProjectID = ev.ProjectID
	case src.StageError:
		m.state.ErrText = ev.Message
	}
	m.state.Viewport.SetContent(ui.TranscriptText(m.state))
	m.state.Viewport.GotoBottom()
}

func sortedPaths(files src.FileSet) []string {
	paths := make([]string, 0, len(files))
	for path := range files {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

func waitForEvent(events <-chan src.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return streamClosedMsg{}
		}
		return eventMsg(ev)
	}
}

// openStream posts the request and parses the SSE response into events on
// a channel, which is closed when the server finishes the stream.
func openStream(client *http.Client, url string, payload any) (<-chan src.Event, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	resp, err := client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		var detail struct {
			Detail string `json:"detail"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&detail)
		if detail.Detail != "" {
			return nil, fmt.Errorf("server: %s", detail.Detail)
		}
		return nil, fmt.Errorf("server returned status %d", resp.StatusCode)
	}

	events := make(chan src.Event)
	go func() {
		defer close(events)
		defer resp.Body.Close()
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 1024*1024), 16*1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			var ev src.Event
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
				continue
			}
			events <- ev
		}
	}()
	return events, nil
}

func main() {
	_ = godotenv.Load()

	server := os.Getenv("DEVOPUS_SERVER")
	if server == "" {
		server = "http://localhost:8000"
	}
	userID := os.Getenv("DEVOPUS_USER_ID")

	p := tea.NewProgram(newModel(server, userID), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
