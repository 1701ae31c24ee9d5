package javaindex

import (
	"regexp"
	"strings"
)

// methodDeclRe matches a method signature whose opening brace is on
// the same line — the common formatting case; methods whose brace
// wraps to the next line are not detected (spec.md §9: the rules are
// deliberately shallow).
var methodDeclRe = regexp.MustCompile(`^(?:@\w+(?:\([^)]*\))?\s*)*(?:public|private|protected|static|final|synchronized|abstract|native|\s)*[\w<>\[\],.?]+\s+(\w+)\s*\([^()]*\)\s*(?:throws\s+[\w.,\s]+)?\s*\{\s*$`)

// MethodRange is one method's body line span within a single file,
// used to intersect diff hunks against method bodies (spec.md §4.5
// step 5a).
type MethodRange struct {
	Name      string
	StartLine int
	EndLine   int
}

// ParseSingleFile recovers the FQN of a file's primary type using the
// same heuristics as Build, for the orchestrator's post-image parse of
// one changed file (spec.md §4.5 step 5a). ok is false if no primary
// class/interface/enum declaration was found.
func ParseSingleFile(content string) (fqn string, ok bool) {
	p := parseJavaFile(content)
	return p.FQN, p.HasPrimary
}

// ExtractMethods finds method bodies declared directly on the
// primary type (bracket depth 1) and returns their line ranges.
func ExtractMethods(content string) []MethodRange {
	var methods []MethodRange
	var openIdx []int // indices into methods, LIFO

	depth := 0
	for i, raw := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(trimLineComment(raw))

		if depth == 1 {
			if m := methodDeclRe.FindStringSubmatch(trimmed); m != nil {
				methods = append(methods, MethodRange{Name: m[1], StartLine: i + 1})
				openIdx = append(openIdx, len(methods)-1)
			}
		}

		delta := bracketDelta(trimmed)
		depth += delta

		if delta < 0 && depth == 1 && len(openIdx) > 0 {
			last := openIdx[len(openIdx)-1]
			if methods[last].EndLine == 0 {
				methods[last].EndLine = i + 1
			}
			openIdx = openIdx[:len(openIdx)-1]
		}
	}

	// Any method whose closing brace was never observed (malformed or
	// truncated source) still gets a usable range ending at its own line.
	for i := range methods {
		if methods[i].EndLine == 0 {
			methods[i].EndLine = methods[i].StartLine
		}
	}
	return methods
}
