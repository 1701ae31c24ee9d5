package javaindex

import (
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/cross-impact/impactengine/internal/domain"
)

var (
	quotedStringRe      = regexp.MustCompile(`"([^"]*)"`)
	restTemplateCallRe  = regexp.MustCompile(`[Rr]estTemplate\w*\.\s*(getForObject|postForObject|exchange)\s*\(`)
	webClientUriRe      = regexp.MustCompile(`\.uri\s*\(`)
	placeholderSegRe    = regexp.MustCompile(`\{[^}]*\}`)
)

// routeToRegex compiles route into a regex that treats any "{...}"
// segment as a wildcard, so "/orders/{id}" matches a literal like
// "/orders/{orderId}" (spec.md §4.2 placeholder tolerance).
func routeToRegex(route string) *regexp.Regexp {
	parts := placeholderSegRe.Split(route, -1)
	placeholders := placeholderSegRe.FindAllString(route, -1)
	var b strings.Builder
	b.WriteString("^")
	for i, p := range parts {
		b.WriteString(regexp.QuoteMeta(p))
		if i < len(placeholders) {
			b.WriteString(`\{[^}]+\}`)
		}
	}
	b.WriteString("$")
	return regexp.MustCompile(b.String())
}

func splitFQN(fqn string) (pkg, simpleName string) {
	idx := strings.LastIndex(fqn, ".")
	if idx < 0 {
		return "", fqn
	}
	return fqn[:idx], fqn[idx+1:]
}

func firstPathSegment(relPath string) string {
	relPath = filepath.ToSlash(relPath)
	if idx := strings.Index(relPath, "/"); idx >= 0 {
		return relPath[:idx]
	}
	return relPath
}

// FindUsages implements C2's find_usages(fqn): rules U1-U4 of spec.md
// §4.2. A malformed or unreadable file simply contributes no usages
// rather than failing the whole call.
func FindUsages(idx *domain.SymbolIndex, fqn string) []domain.Usage {
	pkg, simpleName := splitFQN(fqn)

	var usages []domain.Usage
	seen := make(map[string]bool)

	for _, rel := range idx.FilesScanned {
		imp, ok := idx.Imports[rel]
		if !ok {
			continue
		}
		if !isUsageCandidate(imp, pkg, simpleName, fqn) {
			continue
		}
		for _, u := range scanFileForUsages(idx.RepoRoot, rel, simpleName) {
			key := u.Path + "|" + strconv.Itoa(u.Line)
			if seen[key] {
				continue
			}
			seen[key] = true
			usages = append(usages, u)
		}
	}
	return usages
}

// isUsageCandidate applies rules U1-U3 to decide whether fqn's simple
// name could plausibly resolve to fqn within a file with imports imp.
func isUsageCandidate(imp domain.FileImports, pkg, simpleName, fqn string) bool {
	if explicitFQN, ok := imp.Explicit[simpleName]; ok {
		return explicitFQN == fqn // U1
	}
	for _, w := range imp.Wildcards {
		if w == pkg {
			return true // U2: no conflicting explicit import of the same simple name
		}
	}
	return imp.Package == pkg // U3
}

func scanFileForUsages(repoRoot, rel, simpleName string) []domain.Usage {
	content, err := os.ReadFile(filepath.Join(repoRoot, rel))
	if err != nil {
		return nil
	}
	wordRe := regexp.MustCompile(`\b` + regexp.QuoteMeta(simpleName) + `\b`)

	var usages []domain.Usage
	firstFound := false
	pendingAnnotation := false
	var annotationLine int
	var annotationSnippet string
	service := firstPathSegment(rel)

	lines := strings.Split(string(content), "\n")
	for i, raw := range lines {
		trimmed := strings.TrimSpace(trimLineComment(raw))
		if strings.HasPrefix(trimmed, "import ") {
			pendingAnnotation = false
			continue
		}

		if pendingAnnotation && trimmed != "" {
			if fieldType, ok := fieldTypeFromDecl(trimmed); ok && fieldType == simpleName {
				usages = append(usages, domain.Usage{
					Path: rel, Line: annotationLine, Snippet: annotationSnippet, Service: service, Detail: "injection",
				})
			}
			pendingAnnotation = false
		}

		if dubboReferenceRe.MatchString(trimmed) || referenceRe.MatchString(trimmed) ||
			autowiredRe.MatchString(trimmed) || resourceRe.MatchString(trimmed) {
			pendingAnnotation = true
			annotationLine = i + 1
			annotationSnippet = trimmed
		}

		if !firstFound && wordRe.MatchString(trimmed) {
			usages = append(usages, domain.Usage{
				Path: rel, Line: i + 1, Snippet: trimmed, Service: service,
			})
			firstFound = true
		}
	}
	return usages
}

// FindAPICallers implements C2's find_api_callers(route): RestTemplate
// and WebClient call-site literals, plus Feign-client-declared routes
// recorded in the index's API map (spec.md §4.2).
func FindAPICallers(idx *domain.SymbolIndex, route string) []domain.Usage {
	routeRe := routeToRegex(route)

	var usages []domain.Usage
	seen := make(map[string]bool)
	add := func(u domain.Usage) {
		key := u.Path + "|" + strconv.Itoa(u.Line)
		if seen[key] {
			return
		}
		seen[key] = true
		usages = append(usages, u)
	}

	for _, entries := range idx.APIMap {
		for _, e := range entries {
			if routeRe.MatchString(e.Route) {
				add(domain.Usage{
					Path:    e.File,
					Line:    e.Line,
					Snippet: e.Verb + " " + e.Route,
					Service: firstPathSegment(e.File),
					Detail:  "feign_declared",
				})
			}
		}
	}

	for _, rel := range idx.FilesScanned {
		content, err := os.ReadFile(filepath.Join(idx.RepoRoot, rel))
		if err != nil {
			continue
		}
		service := firstPathSegment(rel)
		lines := strings.Split(string(content), "\n")
		for i, raw := range lines {
			if !restTemplateCallRe.MatchString(raw) && !webClientUriRe.MatchString(raw) {
				continue
			}
			for _, m := range quotedStringRe.FindAllStringSubmatch(raw, -1) {
				if routeRe.MatchString(m[1]) {
					add(domain.Usage{
						Path:    rel,
						Line:    i + 1,
						Snippet: strings.TrimSpace(raw),
						Service: service,
					})
					break
				}
			}
		}
	}

	return usages
}