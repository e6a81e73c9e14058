package src

import (
	"fmt"
	"strings"
)

const stepDescLimit = 150

// FormatPlanText renders a Plan as the human-readable summary that is
// streamed to clients alongside the structured payload.
func FormatPlanText(plan *Plan) string {
	if plan == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString("📋 PROJECT PLAN\n")
	b.WriteString(strings.Repeat("=", 50) + "\n\n")
	fmt.Fprintf(&b, "🎯 Name: %s\n", plan.Name)
	fmt.Fprintf(&b, "📝 Description: %s\n", plan.Description)
	fmt.Fprintf(&b, "🛠️ Tech Stack: %s\n\n", plan.TechStack)
	b.WriteString("✨ FEATURES:\n")
	for i, feature := range plan.Features {
		fmt.Fprintf(&b, "   %d. %s\n", i+1, feature)
	}
	b.WriteString("\n📁 FILES TO GENERATE:\n")
	for _, f := range plan.Files {
		fmt.Fprintf(&b, "   • %s\n", f.Path)
		fmt.Fprintf(&b, "     └─ %s\n", f.Purpose)
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatArchitectText renders a TaskPlan's implementation steps, with long
// task descriptions truncated for readability.
func FormatArchitectText(tp *TaskPlan) string {
	if tp == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n🏗️ IMPLEMENTATION STEPS\n")
	b.WriteString(strings.Repeat("=", 50) + "\n\n")
	for i, step := range tp.ImplementationSteps {
		fmt.Fprintf(&b, "📄 Step %d: %s\n", i+1, step.FilePath)
		desc := step.TaskDescription
		if r := []rune(desc); len(r) > stepDescLimit {
			desc = string(r[:stepDescLimit]) + "..."
		}
		fmt.Fprintf(&b, "   %s\n\n", desc)
	}
	return strings.TrimRight(b.String(), "\n")
}

// ExtractDiagram pulls the Mermaid architecture diagram out of a TaskPlan,
// stripping a wrapping markdown fence when the model added one. A missing
// or empty diagram yields "" rather than an error.
func ExtractDiagram(tp *TaskPlan) string {
	if tp == nil {
		return ""
	}
	diagram := strings.TrimSpace(tp.ArchitectureDiagram)
	if diagram == "" {
		return ""
	}
	if strings.HasPrefix(diagram, "```") {
		lines := strings.Split(diagram, "\n")
		if len(lines) > 1 && strings.TrimSpace(lines[len(lines)-1]) == "```" {
			diagram = strings.Join(lines[1:len(lines)-1], "\n")
		} else {
			diagram = strings.Join(lines[1:], "\n")
		}
	}
	return strings.TrimSpace(diagram)
}
