package src

import (
	"bufio"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testServer(t *testing.T, store Store) *Server {
	t.Helper()
	p := NewPipeline(testModels(happyInvoker()), store, slog.Default())
	return NewServer(":0", p, store, nil, slog.Default())
}

func TestHealth(t *testing.T) {
	srv := testServer(t, nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, false, body["db_configured"])
}

func TestGenerateRequiresPrompt(t *testing.T) {
	srv := testServer(t, nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/generate", strings.NewReader(`{"prompt": ""}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGenerateBatch(t *testing.T) {
	srv := testServer(t, nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/generate",
		strings.NewReader(`{"prompt": "build a todo app"}`)))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Files     FileSet `json:"files"`
		Plan      string  `json:"plan"`
		Architect string  `json:"architect"`
		Diagram   string  `json:"diagram"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body.Files, "/App.tsx")
	assert.Contains(t, body.Plan, "Todo App")
	assert.Equal(t, "graph TD; App --> List", body.Diagram)
}

// decodeSSE parses "data: {...}" frames from an SSE body.
func decodeSSE(t *testing.T, body string) []Event {
	t.Helper()
	var events []Event
	scanner := bufio.NewScanner(strings.NewReader(body))
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev Event
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev))
		events = append(events, ev)
	}
	return events
}

func TestGenerateStream(t *testing.T) {
	srv := testServer(t, nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/generate-stream",
		strings.NewReader(`{"prompt": "build a todo app"}`)))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	events := decodeSSE(t, rec.Body.String())
	assert.Equal(t, []Stage{
		StagePlanning, StagePlanComplete,
		StageArchitecting, StageArchitectComplete,
		StageCoding, StageCodingComplete,
		StageReviewing, StageComplete,
	}, stages(events))
}

func TestFollowupStreamValidation(t *testing.T) {
	srv := testServer(t, nil)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/followup-stream",
		strings.NewReader(`{"prompt": "x"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/followup-stream",
		strings.NewReader(`{"prompt": "", "current_files": {"/App.tsx": "c"}}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFollowupStream(t *testing.T) {
	srv := testServer(t, nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/followup-stream",
		strings.NewReader(`{"prompt": "add dark mode", "current_files": {"/App.tsx": "old"}}`)))

	require.Equal(t, http.StatusOK, rec.Code)
	events := decodeSSE(t, rec.Body.String())
	require.Equal(t, []Stage{StageModifying, StageComplete}, stages(events))
}

func TestFollowupStreamMissingEntryPoint(t *testing.T) {
	srv := testServer(t, nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/followup-stream",
		strings.NewReader(`{"prompt": "tweak", "current_files": {"/index.tsx": "c"}}`)))

	require.Equal(t, http.StatusOK, rec.Code)
	events := decodeSSE(t, rec.Body.String())
	require.Len(t, events, 1)
	assert.Equal(t, StageError, events[0].Stage)
	assert.Contains(t, events[0].Message, "No App.tsx")
}

func TestProjectEndpointsWithoutStore(t *testing.T) {
	srv := testServer(t, nil)
	for _, tc := range []struct {
		method, path string
	}{
		{http.MethodPost, "/projects/save"},
		{http.MethodGet, "/projects/user/u1"},
		{http.MethodGet, "/projects/p1"},
		{http.MethodGet, "/projects/p1/latest"},
		{http.MethodGet, "/projects/p1/versions"},
		{http.MethodDelete, "/projects/p1"},
		{http.MethodGet, "/versions/v1"},
		{http.MethodPost, "/api/export-to-github"},
		{http.MethodPost, "/api/upload-asset"},
	} {
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, strings.NewReader("{}")))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, "%s %s", tc.method, tc.path)
	}
}

func TestGetProjectNotFound(t *testing.T) {
	srv := testServer(t, newMemStore())
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/projects/single/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	srv := testServer(t, nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/generate-stream", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestSanitizeRepoName(t *testing.T) {
	assert.Equal(t, "My-Todo-App", SanitizeRepoName("My Todo App", "id"))
	assert.Equal(t, "appv2", SanitizeRepoName("app!v2???", "id"))
	assert.Equal(t, "devopus-project-12345678", SanitizeRepoName("   ", "123456789abc"))
}
