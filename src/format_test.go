package src

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestFormatPlanText(t *testing.T) {
	plan := &Plan{
		Name:        "Todo App",
		Description: "A simple todo list",
		TechStack:   "React, TypeScript, Tailwind",
		Features:    []string{"add tasks", "complete tasks"},
		Files: []PlanFile{
			{Path: "/App.tsx", Purpose: "main component"},
		},
	}
	got := FormatPlanText(plan)
	assert.Contains(t, got, "📋 PROJECT PLAN")
	assert.Contains(t, got, "🎯 Name: Todo App")
	assert.Contains(t, got, "   1. add tasks")
	assert.Contains(t, got, "   2. complete tasks")
	assert.Contains(t, got, "   • /App.tsx")
	assert.Contains(t, got, "     └─ main component")
}

func TestFormatPlanTextNil(t *testing.T) {
	assert.Equal(t, "", FormatPlanText(nil))
}

func TestFormatArchitectTextTruncates(t *testing.T) {
	long := strings.Repeat("a", 200)
	tp := &TaskPlan{ImplementationSteps: []ImplementationTask{
		{FilePath: "/App.tsx", TaskDescription: long},
		{FilePath: "/util.ts", TaskDescription: "short"},
	}}
	got := FormatArchitectText(tp)
	assert.Contains(t, got, "📄 Step 1: /App.tsx")
	assert.Contains(t, got, strings.Repeat("a", 150)+"...")
	assert.NotContains(t, got, strings.Repeat("a", 151))
	assert.Contains(t, got, "📄 Step 2: /util.ts")
	assert.Contains(t, got, "short")
}

func TestFormatArchitectTextTruncatesOnRuneBoundary(t *testing.T) {
	long := strings.Repeat("日", 200)
	tp := &TaskPlan{ImplementationSteps: []ImplementationTask{
		{FilePath: "/App.tsx", TaskDescription: long},
	}}
	got := FormatArchitectText(tp)
	assert.True(t, utf8.ValidString(got))
	assert.Contains(t, got, strings.Repeat("日", 150)+"...")
	assert.NotContains(t, got, strings.Repeat("日", 151))
}

func TestExtractDiagramFenced(t *testing.T) {
	tp := &TaskPlan{ArchitectureDiagram: "```mermaid\ngraph TD\n  A --> B\n```"}
	assert.Equal(t, "graph TD\n  A --> B", ExtractDiagram(tp))
}

func TestExtractDiagramUnclosedFence(t *testing.T) {
	tp := &TaskPlan{ArchitectureDiagram: "```mermaid\ngraph TD\n  A --> B"}
	assert.Equal(t, "graph TD\n  A --> B", ExtractDiagram(tp))
}

func TestExtractDiagramBare(t *testing.T) {
	tp := &TaskPlan{ArchitectureDiagram: "graph TD\n  A --> B"}
	assert.Equal(t, "graph TD\n  A --> B", ExtractDiagram(tp))
}

func TestExtractDiagramMissing(t *testing.T) {
	assert.Equal(t, "", ExtractDiagram(nil))
	assert.Equal(t, "", ExtractDiagram(&TaskPlan{}))
}
