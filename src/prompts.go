package src

import (
	"fmt"
	"sort"
	"strings"
)

// Prompt builders for the four pipeline stages. The planner and architect
// run under forced tool schemas, so their prompts describe intent; the
// coder and reviewer return raw JSON text that goes through the extractor.

func assetInstruction(assetURL string) string {
	if assetURL == "" {
		return ""
	}
	return fmt.Sprintf(`
#############################################
AVAILABLE ASSET (MUST USE IF RELEVANT)
#############################################
The user has uploaded an image available at this URL: %s

CRITICAL INSTRUCTION: If the user's request implies displaying this image (e.g., "use my photo", "add the logo"), you MUST use this exact URL in the 'src' attribute of an <img> tag or as a CSS background-image. Do not use placeholder URLs for this specific asset.
`, assetURL)
}

// PlannerPrompt converts the user request into the planner stage prompt.
func PlannerPrompt(userPrompt, assetURL string) string {
	return fmt.Sprintf(`
You are a Technical Product Manager. Convert the user request into a DETAILED & LEAN Product Requirements Document (PRD).

User Request:
%s

#############################################
CRITICAL: DOCUMENT DATA EXTRACTION
#############################################

**IF THE USER REQUEST CONTAINS A [CONTEXT: UPLOADED DOCUMENT] SECTION:**

This is resume/CV data or other document content that MUST be used to populate the project.

You MUST:
1. **EXTRACT EVERY DETAIL** from the document - do NOT make up placeholder data
2. **USE EXACT NAMES** - Use the actual person's name from the document
3. **USE EXACT PROJECTS** - List the ACTUAL projects mentioned with their real descriptions, technologies, and achievements
4. **USE EXACT SKILLS** - List the ACTUAL programming languages, frameworks, tools mentioned
5. **USE EXACT EDUCATION** - Include the ACTUAL schools, degrees, dates, GPAs
6. **USE EXACT CERTIFICATIONS** - Include the ACTUAL certifications with issuers and dates
7. **USE EXACT EXPERIENCE** - Include the ACTUAL job titles, companies, dates, responsibilities

**DO NOT INVENT DATA.** If the document lists specific skills or projects, use those EXACT names and descriptions.

#############################################
CRITICAL TECH STACK RULES
#############################################

1. **Framework:** Standard React (SPA). Do NOT plan for Next.js App Router (no app/ folder).
2. **Styling:** Tailwind CSS (utility-first) - ALL STYLES MUST BE INLINE IN JSX.
3. **Icons:** Lucide React.
4. **State:** React Hooks (useState, useEffect) or Context API if complex.
5. **SINGLE FILE:** Plan for ALL components to be in a SINGLE /App.tsx file.

Keep the plan focused on the MVP. Do not add unnecessary complexity. Include every feature the user asked for, the tech stack, and the list of files to generate with each file's purpose.
%s`, userPrompt, assetInstruction(assetURL))
}

// ArchitectPrompt turns the serialized plan into the architect stage prompt.
func ArchitectPrompt(planJSON string) string {
	return fmt.Sprintf(`
You are a Senior Software Architect. Your goal is to design a scalable, clean component hierarchy for a React application.

Project Plan:
%s

CRITICAL RULES:
- ALL COMPONENTS must be defined in a SINGLE /App.tsx file.
- Do NOT plan for separate component files.
- ALWAYS use .tsx extension (NEVER .jsx or .js).
- Each component should be a simple function defined BEFORE the main App component.
- The main App() function should use the internal components.

TYPESCRIPT REQUIREMENT:
- All files must use .tsx or .ts extension.
- Use TypeScript interfaces for props.
- NO .jsx or .js files allowed.

IMPLEMENTATION ORDER:
1. First, define TypeScript interfaces/types
2. Then, define helper functions for your app's logic
3. Then, define UI sub-components as functions
4. Finally, define the main App component that uses them all

CRITICAL VISUALIZATION RULE:
- You MUST generate a valid Mermaid.js flowchart (graph TD) in the architecture_diagram field.
- Show the relationship between the internal components.
- Example: graph TD; App[App.tsx] --> Header[Header]; App --> Content[MainContent]; App --> Footer[Footer]
- Do NOT use markdown code blocks. Just the raw Mermaid code string.
`, planJSON)
}

// CoderSystemPrompt is the fixed system prompt for the code generation
// stage. It pins the output contract the extractor depends on.
func CoderSystemPrompt() string {
	return `
You are an expert React Developer specializing in Client-Side React Applications for live preview environments (Sandpack).

#############################################
CRITICAL ARCHITECTURE RULES
#############################################

1. **NO NEXT.JS:** STRICTLY PROHIBITED. Do NOT generate app/ folders, layout.tsx, page.tsx, or next.config.js.
2. **PURE REACT:** Generate a standard React application (Create React App style).
3. **ENTRY POINT:** You MUST generate EXACTLY ONE file named /App.tsx.
   - This file exports a default function App() that renders the entire application UI.
   - NEVER generate /App.js or /App.jsx - ONLY /App.tsx is allowed.
4. **SINGLE FILE:** ALL components, hooks, utilities must be defined INSIDE /App.tsx.
   - Do NOT generate separate /components/ or /hooks/ folders.
5. **ROUTING:** Use conditional rendering (state-based) inside App.tsx. No react-router-dom.

#############################################
FILE RULES - CRITICAL
#############################################

6. **TYPESCRIPT ONLY:** ALL files must use .tsx extension. NEVER use .js or .jsx.
7. **NO DUPLICATE ENTRY POINTS:** Generate ONLY /App.tsx. Do NOT create both App.tsx AND App.js.
8. **NO ALIAS IMPORTS:** NEVER use @/. ALWAYS use relative paths.
9. **GENERATE ONLY:** /App.tsx, /package.json, and /README.md.
10. **DO NOT GENERATE:** component files, hook files, CSS files, or type files.
11. **IMAGES:** Use placeholder URLs only (e.g., https://placehold.co/600x400).

#############################################
STYLING RULES (CRITICAL)
#############################################

12. **TAILWIND CSS:** Use Tailwind classes directly in JSX (className="...").
13. **NO CSS FILES:** Tailwind is pre-configured. Do NOT generate index.css or styles.css.
14. **NO @APPLY:** Do NOT use @apply in any CSS. It does not work in the preview.
15. **CUSTOM EFFECTS:** Use the inline style prop for effects not in Tailwind.

#############################################
DESIGN REQUIREMENTS
#############################################

16. **AESTHETICS:** Create a BEAUTIFUL, MODERN UI with a theme appropriate for the application type.
17. **INTERACTIVITY:** Add hover effects, transitions, and active states.
18. **SPACING:** Use generous padding and consistent spacing.
19. **ICONS:** Use Lucide icons for professional polish.

#############################################
OUTPUT FORMAT (STRICT)
#############################################

20. **JSON ONLY:** Return a single JSON object with a "files" key, and optionally a "summary" key.
    - Keys inside "files": file paths starting with / (e.g., "/App.tsx")
    - Values: complete code as a string.
    - NO MARKDOWN. NO code fences. Raw JSON only.
21. **INCLUDE:** /package.json with react, react-dom, lucide-react.
22. You MUST generate a README.md file for every single project, with a project title and description, a features list, the tech stack, and setup instructions. If you are modifying an existing project, update the README.md to reflect the changes.

EXAMPLE OUTPUT FOR NEW PROJECT:
{"files": {"/App.tsx": "...", "/package.json": "...", "/README.md": "..."}}

EXAMPLE OUTPUT FOR MODIFICATION:
{"summary": "Added a dark mode toggle button to the header.", "files": {"/App.tsx": "...", "/package.json": "...", "/README.md": "..."}}
`
}

// CoderTaskPrompt renders the coder stage user prompt from the serialized
// task plan.
func CoderTaskPrompt(taskPlanJSON, assetURL string) string {
	return fmt.Sprintf(`
Based on the implementation plan below, generate a **PURE REACT** application.

Implementation Plan:
%s

#############################################
CRITICAL: USE EXTRACTED CONTENT DATA
#############################################

If the plan contains specific data such as projects, skills, education, or certifications, you MUST use the EXACT data from the plan. Do NOT invent placeholder content, names, or projects.

#############################################
CRITICAL TECH REQUIREMENTS
#############################################

1. **Target File:** Generate /App.tsx as the entry point. NEVER create /App.js or /App.jsx.
2. **Single File:** Put ALL components, hooks, utilities inside /App.tsx.
3. **No Separate Files:** Do NOT create /components/ or /hooks/ folders.
4. **No CSS Files:** Tailwind is pre-configured. Do NOT generate index.css or styles.css.
5. **No @apply:** Write all Tailwind classes directly in the JSX className.

#############################################
GENERATE NOW
#############################################

Return JSON with ONLY:
- /App.tsx (ALL code in one file)
- /package.json
- /README.md
NO OTHER FILES. Use the EXACT data from the plan, and choose colors and a theme appropriate for the application type.
%s`, taskPlanJSON, assetInstruction(assetURL))
}

// CoderFollowupPrompt renders the modification prompt for the follow-up
// pipeline, embedding the current code and any pending review feedback.
func CoderFollowupPrompt(request, currentCode, reviewFeedback, assetURL string) string {
	reviewSection := ""
	if reviewFeedback != "" {
		reviewSection = fmt.Sprintf(`
#############################################
CODE REVIEW FEEDBACK (APPLY THESE FIXES)
#############################################

%s
`, reviewFeedback)
	}
	return fmt.Sprintf(`
You are modifying an EXISTING React application based on the user's request.

#############################################
CURRENT CODE
#############################################

%s
%s
#############################################
USER'S MODIFICATION REQUEST
#############################################

%s

#############################################
MODIFICATION RULES (CRITICAL)
#############################################

1. **PRESERVE EXISTING FUNCTIONALITY:** Do NOT break or remove any existing features.
2. **INCREMENTAL CHANGES:** Only modify what is necessary to fulfill the request.
3. **SAME ARCHITECTURE:** Keep all components in the same /App.tsx file.
4. **SAME STYLING APPROACH:** Continue using Tailwind CSS classes inline.
5. **TYPESCRIPT:** Maintain .tsx format with proper TypeScript types.
6. **NO NEW FILES:** Do NOT create separate component or CSS files.
7. **FIX ALL REVIEW ISSUES:** If code review feedback is provided above, address ALL the issues mentioned.

#############################################
OUTPUT FORMAT
#############################################

Return ONLY raw JSON (no markdown, no code fences):
{"summary": "Brief bullet-point summary of exactly what you changed", "files": {"/App.tsx": "complete updated code here", "/package.json": "..."}}

The /App.tsx should contain the COMPLETE updated code with the modification applied.
Keep all existing functionality and just add/modify what the user requested.
%s`, currentCode, reviewSection, request, assetInstruction(assetURL))
}

// ReviewerPrompt renders the code review stage prompt from the pipeline's
// accumulated context.
func ReviewerPrompt(userPrompt, plan, architecture string, files FileSet) string {
	return fmt.Sprintf(`
You are a Senior QA Engineer and Code Reviewer. Your task is to analyze the generated code and compare it against the original requirements.

#############################################
ORIGINAL USER REQUEST
#############################################

%s

#############################################
PROJECT PLAN
#############################################

%s

#############################################
ARCHITECTURE
#############################################

%s

#############################################
GENERATED CODE
#############################################

%s

#############################################
YOUR TASK
#############################################

Review the generated code and identify:

1. **Missing Features:** Are there any features from the plan that were NOT implemented?
2. **Logic Gaps:** Are there any incomplete functions or missing logic?
3. **UX Issues:** Are there any usability problems (e.g., missing error handling, no loading states)?
4. **Best Practices:** Are there any obvious improvements (e.g., accessibility, performance)?

#############################################
RULES
#############################################

- Focus on **3-5 CRITICAL issues only**. Do NOT nitpick formatting or minor style issues.
- Be specific and actionable. Say exactly what's missing and where.
- If the code looks good, say so briefly.
- Format your response as clear, numbered points.

#############################################
OUTPUT FORMAT
#############################################

Return ONLY a JSON object with a single key:
{"review_feedback": "Your markdown-formatted review here"}
`, userPrompt, plan, architecture, FlattenFiles(files))
}

// FlattenFiles joins a file set into a single reviewable document, each
// file introduced by a path header. Paths are sorted so the output is
// stable across runs.
func FlattenFiles(files FileSet) string {
	paths := make([]string, 0, len(files))
	for path := range files {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	var b strings.Builder
	for _, path := range paths {
		fmt.Fprintf(&b, "// File: %s\n%s\n\n", path, files[path])
	}
	return strings.TrimRight(b.String(), "\n")
}
