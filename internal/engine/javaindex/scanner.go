package javaindex

import (
	"regexp"
	"strings"

	"github.com/cross-impact/impactengine/internal/domain"
)

// methodNameRe finds a plausible method/identifier name immediately
// preceding "(" on a line — used to look ahead from a mapping
// annotation to the method it decorates.
var methodNameRe = regexp.MustCompile(`\b([A-Za-z_]\w*)\s*\(`)

var controlKeywords = map[string]bool{
	"if": true, "for": true, "while": true, "switch": true, "catch": true, "new": true,
}

var annotationStripRe = regexp.MustCompile(`@\w+(?:\([^()]*\))?`)

// lookaheadMethodName scans from line index i forward a few lines for
// the method name a mapping annotation decorates — same line first
// (annotation and signature on one line), then up to 3 following
// lines, with any leading annotations stripped before matching.
func lookaheadMethodName(lines []string, i int) string {
	for j := i; j < len(lines) && j < i+4; j++ {
		candidate := strings.TrimSpace(trimLineComment(lines[j]))
		if candidate == "" {
			continue
		}
		stripped := strings.TrimSpace(annotationStripRe.ReplaceAllString(candidate, ""))
		if stripped == "" {
			continue
		}
		for _, m := range methodNameRe.FindAllStringSubmatch(stripped, -1) {
			if !controlKeywords[m[1]] {
				return m[1]
			}
		}
	}
	return ""
}

// fileParse is the result of parsing one Java file (§4.1).
type fileParse struct {
	Package     string
	SimpleName  string
	FQN         string
	HasPrimary  bool
	IsREST      bool // @RestController or @Controller
	BasePath    string
	APIEntries  []domain.APIEntry
	RPCEntries  []domain.RPCEntry
	Imports     domain.FileImports
	IsFeign     bool
	FeignName   string
	IsDubboImpl bool
}

func extractPathLiteral(args string) string {
	m := pathLiteralRe.FindStringSubmatch(args)
	if m == nil {
		return ""
	}
	return m[1]
}

func normalizeRoute(base, method string) string {
	combined := base
	if method != "" {
		if combined != "" && !strings.HasSuffix(combined, "/") && !strings.HasPrefix(method, "/") {
			combined += "/"
		}
		combined += method
	}
	for strings.Contains(combined, "//") {
		combined = strings.ReplaceAll(combined, "//", "/")
	}
	if combined == "" {
		combined = "/"
	}
	return combined
}

// verbFromRequestMapping derives the HTTP verb from a @RequestMapping
// argument list; defaults to REQUEST when no method= is present
// (spec.md §4.1 rule 4).
func verbFromRequestMapping(args string) string {
	switch {
	case strings.Contains(args, "RequestMethod.GET"):
		return "GET"
	case strings.Contains(args, "RequestMethod.POST"):
		return "POST"
	case strings.Contains(args, "RequestMethod.PUT"):
		return "PUT"
	case strings.Contains(args, "RequestMethod.DELETE"):
		return "DELETE"
	case strings.Contains(args, "RequestMethod.PATCH"):
		return "PATCH"
	default:
		return "REQUEST"
	}
}

// parseJavaFile scans one Java source file line by line, applying the
// heuristics of spec.md §4.1 with an explicit bracket-depth counter
// instead of a grammar (spec.md §9).
func parseJavaFile(content string) fileParse {
	var result fileParse
	result.Imports.Explicit = make(map[string]string)

	lines := strings.Split(content, "\n")

	depth := 0
	pendingClassAnnotations := classAnnotationState{}
	var pendingFieldAnnotation string // "dubbo" | "spring_di" | ""

	for idx, line := range lines {
		lineNo := idx + 1
		trimmed := strings.TrimSpace(trimLineComment(line))

		if result.Package == "" {
			if m := packageRe.FindStringSubmatch(trimmed); m != nil {
				result.Package = m[1]
			}
		}

		if wm := importWildcardRe.FindStringSubmatch(trimmed); wm != nil {
			result.Imports.Wildcards = append(result.Imports.Wildcards, wm[1])
		} else if m := importExplicitRe.FindStringSubmatch(trimmed); m != nil {
			fqn := m[1]
			simple := lastSegment(fqn)
			result.Imports.Explicit[simple] = fqn
		}

		if depth == 0 && !result.HasPrimary {
			if m := classDeclRe.FindStringSubmatch(trimmed); m != nil {
				result.HasPrimary = true
				result.SimpleName = m[2]
				if result.Package != "" {
					result.FQN = result.Package + "." + result.SimpleName
				} else {
					result.FQN = result.SimpleName
				}
				result.IsREST = pendingClassAnnotations.isREST
				result.BasePath = pendingClassAnnotations.basePath
				result.IsFeign = pendingClassAnnotations.isFeign
				result.FeignName = pendingClassAnnotations.feignName
				result.IsDubboImpl = pendingClassAnnotations.isDubboImpl
			}
		}

		if !result.HasPrimary {
			trackClassAnnotations(trimmed, &pendingClassAnnotations)
		}

		if result.HasPrimary && depth >= 1 {
			if verb, path, ok := matchAnyMapping(trimmed); ok {
				route := normalizeRoute(result.BasePath, path)
				result.APIEntries = append(result.APIEntries, domain.APIEntry{
					Route:  route,
					Verb:   verb,
					Line:   lineNo,
					Method: lookaheadMethodName(lines, idx),
				})
			}

			if dubboReferenceRe.MatchString(trimmed) || referenceRe.MatchString(trimmed) {
				pendingFieldAnnotation = "dubbo"
				continue
			}
			if autowiredRe.MatchString(trimmed) || resourceRe.MatchString(trimmed) {
				pendingFieldAnnotation = "spring_di"
				continue
			}
			if pendingFieldAnnotation != "" && trimmed != "" {
				if fieldType, ok := fieldTypeFromDecl(trimmed); ok {
					kind := domain.InjectionDubbo
					if pendingFieldAnnotation == "spring_di" {
						kind = domain.InjectionSpringDI
					}
					result.RPCEntries = append(result.RPCEntries, domain.RPCEntry{
						InterfaceFQN: fieldType,
						Line:         lineNo,
						Kind:         kind,
						Snippet:      trimmed,
					})
				}
				pendingFieldAnnotation = ""
			}
		}

		depth += bracketDelta(trimmed)
	}

	result.Imports.Package = result.Package
	return result
}

type classAnnotationState struct {
	isREST      bool
	basePath    string
	isFeign     bool
	feignName   string
	isDubboImpl bool
}

func trackClassAnnotations(line string, st *classAnnotationState) {
	if restControllerRe.MatchString(line) || controllerRe.MatchString(line) {
		st.isREST = true
	}
	if m := requestMappingRe.FindStringSubmatch(line); m != nil {
		st.basePath = extractPathLiteral(m[1])
	}
	if m := feignClientRe.FindStringSubmatch(line); m != nil {
		st.isFeign = true
		if nm := pathLiteralRe.FindStringSubmatch(m[1]); nm != nil {
			st.feignName = nm[1]
		}
	}
	if dubboServiceRe.MatchString(line) {
		st.isDubboImpl = true
	}
}

func matchAnyMapping(line string) (verb, path string, ok bool) {
	if m := requestMappingRe.FindStringSubmatch(line); m != nil {
		return verbFromRequestMapping(m[1]), extractPathLiteral(m[1]), true
	}
	if m := getMappingRe.FindStringSubmatch(line); m != nil {
		return "GET", extractPathLiteral(m[2]), true
	}
	if m := postMappingRe.FindStringSubmatch(line); m != nil {
		return "POST", extractPathLiteral(m[2]), true
	}
	if m := putMappingRe.FindStringSubmatch(line); m != nil {
		return "PUT", extractPathLiteral(m[2]), true
	}
	if m := deleteMappingRe.FindStringSubmatch(line); m != nil {
		return "DELETE", extractPathLiteral(m[2]), true
	}
	if m := patchMappingRe.FindStringSubmatch(line); m != nil {
		return "PATCH", extractPathLiteral(m[2]), true
	}
	return "", "", false
}

// fieldTypeFromDecl extracts the declared type's simple name from a
// field declaration line, rejecting corrupted identifiers.
func fieldTypeFromDecl(line string) (string, bool) {
	m := fieldDeclRe.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}
	typ := lastSegment(m[1])
	if !isIdentifierToken(typ) {
		return "", false
	}
	return typ, true
}

func lastSegment(fqn string) string {
	idx := strings.LastIndex(fqn, ".")
	if idx < 0 {
		return fqn
	}
	return fqn[idx+1:]
}

// trimLineComment strips a trailing "//" line comment. Heuristic only
// — block comments and strings containing "//" are not handled,
// consistent with spec.md's deliberately shallow parsing.
func trimLineComment(line string) string {
	if idx := strings.Index(line, "//"); idx >= 0 {
		return line[:idx]
	}
	return line
}

// bracketDelta counts net brace depth change on one line, ignoring
// braces inside string/char literals.
func bracketDelta(line string) int {
	delta := 0
	inString := false
	inChar := false
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case inString:
			if c == '\\' {
				i++
			} else if c == '"' {
				inString = false
			}
		case inChar:
			if c == '\\' {
				i++
			} else if c == '\'' {
				inChar = false
			}
		case c == '"':
			inString = true
		case c == '\'':
			inChar = true
		case c == '{':
			delta++
		case c == '}':
			delta--
		}
	}
	return delta
}
