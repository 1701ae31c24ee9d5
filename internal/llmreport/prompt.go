// Package llmreport implements the Prompt Assembler / Report Merger
// (C6): building the fixed-order LLM prompt for one changed file and
// validating/merging its structured reply back into an AnalysisReport
// (spec.md §4.6). The LLM client itself is out of scope (spec.md §1).
package llmreport

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Citation is one finding the prompt must surface with a code-snippet
// window: a primary (in-repo) downstream dependency or a cross-project
// impact.
type Citation struct {
	Project string // empty for in-repo (main) citations
	Type    string // "class_reference" | "api_call" | "rpc_reference" | ""
	File    string
	Line    int
	Snippet string
	Detail  string
	Window  CodeWindow
}

// CodeWindow is the structured ±K code-snippet context the prompt
// assembler uses exclusively (spec.md §9: the flattened string form
// exists only for UI-legacy consumers, see FlattenWindow).
type CodeWindow struct {
	TargetLine    int
	TargetCode    string
	ContextBefore []string
	ContextAfter  []string
}

// BuildCodeWindow slices ±k lines of context around targetLine
// (1-based) out of fileLines. Callers own reading the file; this
// function is pure so it can be tested without touching disk.
func BuildCodeWindow(fileLines []string, targetLine, k int) CodeWindow {
	w := CodeWindow{TargetLine: targetLine}
	idx := targetLine - 1
	if idx < 0 || idx >= len(fileLines) {
		return w
	}
	w.TargetCode = fileLines[idx]
	for i := idx - k; i < idx; i++ {
		if i >= 0 {
			w.ContextBefore = append(w.ContextBefore, fileLines[i])
		}
	}
	for i := idx + 1; i <= idx+k; i++ {
		if i < len(fileLines) {
			w.ContextAfter = append(w.ContextAfter, fileLines[i])
		}
	}
	return w
}

// FlattenWindow renders a CodeWindow as a single string with absolute
// line numbers, for UI-legacy consumers (spec.md §9). The prompt
// assembler does not call this.
func FlattenWindow(w CodeWindow) string {
	var b strings.Builder
	start := w.TargetLine - len(w.ContextBefore)
	line := start
	for _, l := range w.ContextBefore {
		fmt.Fprintf(&b, "%d| %s\n", line, l)
		line++
	}
	fmt.Fprintf(&b, "%d| %s\n", w.TargetLine, w.TargetCode)
	line = w.TargetLine + 1
	for _, l := range w.ContextAfter {
		fmt.Fprintf(&b, "%d| %s\n", line, l)
		line++
	}
	return b.String()
}

// PromptContext carries everything AssemblePrompt needs for one
// changed file (spec.md §4.6 "Prompt contract").
type PromptContext struct {
	FileName         string
	ChangeIntentStub string
	UnifiedDiff      string
	Downstream       []Citation
	CrossProject     []Citation
	ContextLinesK    int
}

// AssemblePrompt renders the fixed section order: change intent,
// unified diff, downstream findings grouped by finding kind (the
// citation's Detail, "reference" when empty; not by calling class),
// cross-project impacts grouped by project then type, then a
// code-snippet window per citation. A section with no content is
// omitted entirely rather than stubbed.
func AssemblePrompt(ctx PromptContext) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Analysis request: %s\n\n", ctx.FileName)

	if ctx.ChangeIntentStub != "" {
		fmt.Fprintf(&b, "## Change intent\n%s\n\n", ctx.ChangeIntentStub)
	}

	if ctx.UnifiedDiff != "" {
		fmt.Fprintf(&b, "## Diff\n```diff\n%s\n```\n\n", strings.TrimRight(ctx.UnifiedDiff, "\n"))
	}

	if len(ctx.Downstream) > 0 {
		b.WriteString("## Downstream dependencies (in-repo)\n")
		writeGroupedByDetail(&b, ctx.Downstream)
		b.WriteString("\n")
	}

	if len(ctx.CrossProject) > 0 {
		b.WriteString("## Cross-project impacts\n")
		writeGroupedByProjectThenType(&b, ctx.CrossProject)
		b.WriteString("\n")
	}

	allCitations := append(append([]Citation{}, ctx.Downstream...), ctx.CrossProject...)
	if len(allCitations) > 0 {
		b.WriteString("## Code context\n")
		for _, c := range allCitations {
			writeCitationWindow(&b, c)
		}
	}

	return b.String()
}

func writeGroupedByDetail(b *strings.Builder, citations []Citation) {
	groups := make(map[string][]Citation)
	for _, c := range citations {
		key := c.Detail
		if key == "" {
			key = "reference"
		}
		groups[key] = append(groups[key], c)
	}
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(b, "- %s:\n", k)
		for _, c := range groups[k] {
			fmt.Fprintf(b, "  - %s:%d `%s`\n", c.File, c.Line, strings.TrimSpace(c.Snippet))
		}
	}
}

func writeGroupedByProjectThenType(b *strings.Builder, citations []Citation) {
	byProject := make(map[string][]Citation)
	for _, c := range citations {
		byProject[c.Project] = append(byProject[c.Project], c)
	}
	projects := make([]string, 0, len(byProject))
	for p := range byProject {
		projects = append(projects, p)
	}
	sort.Strings(projects)

	for _, p := range projects {
		fmt.Fprintf(b, "- %s:\n", p)
		byType := make(map[string][]Citation)
		for _, c := range byProject[p] {
			byType[c.Type] = append(byType[c.Type], c)
		}
		types := make([]string, 0, len(byType))
		for t := range byType {
			types = append(types, t)
		}
		sort.Strings(types)
		for _, t := range types {
			fmt.Fprintf(b, "  - %s:\n", t)
			for _, c := range byType[t] {
				fmt.Fprintf(b, "    - %s:%d `%s`\n", c.File, c.Line, strings.TrimSpace(c.Snippet))
			}
		}
	}
}

func writeCitationWindow(b *strings.Builder, c Citation) {
	label := c.File + ":" + strconv.Itoa(c.Line)
	if c.Project != "" {
		label = c.Project + "/" + label
	}
	fmt.Fprintf(b, "### %s\n", label)
	for _, l := range c.Window.ContextBefore {
		fmt.Fprintf(b, "    %s\n", l)
	}
	fmt.Fprintf(b, ">>> %s\n", c.Window.TargetCode)
	for _, l := range c.Window.ContextAfter {
		fmt.Fprintf(b, "    %s\n", l)
	}
}
