package javaindex

import "regexp"

// These patterns are the token classifiers applied by the line
// scanner (scanner.go) — spec.md §4.1's six parsing heuristics,
// expressed as the small set of regexes the spec calls for rather
// than a real grammar (spec.md §9: "the rules are deliberately
// shallow").
var (
	packageRe = regexp.MustCompile(`^\s*package\s+([\w.]+)\s*;`)

	// class|interface|enum <Name> — captures the primary type keyword
	// and name; bracket depth must be 0 at the match for it to count
	// as the primary declaration (scanner.go enforces depth).
	classDeclRe = regexp.MustCompile(`\b(class|interface|enum)\s+(\w+)`)

	restControllerRe = regexp.MustCompile(`@RestController\b`)
	controllerRe     = regexp.MustCompile(`@Controller\b`)

	// @RequestMapping("/foo") or @RequestMapping(value = "/foo", method = RequestMethod.GET)
	requestMappingRe = regexp.MustCompile(`@RequestMapping\s*\(([^)]*)\)`)
	getMappingRe     = regexp.MustCompile(`@GetMapping\s*(\(([^)]*)\))?`)
	postMappingRe    = regexp.MustCompile(`@PostMapping\s*(\(([^)]*)\))?`)
	putMappingRe     = regexp.MustCompile(`@PutMapping\s*(\(([^)]*)\))?`)
	deleteMappingRe  = regexp.MustCompile(`@DeleteMapping\s*(\(([^)]*)\))?`)
	patchMappingRe   = regexp.MustCompile(`@PatchMapping\s*(\(([^)]*)\))?`)

	// Pulls a quoted path out of an annotation argument list, whether
	// it's a bare string or a value="..."/path="..." pair.
	pathLiteralRe = regexp.MustCompile(`(?:value|path)?\s*=?\s*"([^"]*)"`)

	dubboReferenceRe = regexp.MustCompile(`@DubboReference\b`)
	referenceRe      = regexp.MustCompile(`@Reference\b`)
	autowiredRe      = regexp.MustCompile(`@Autowired\b`)
	resourceRe       = regexp.MustCompile(`@Resource\b`)

	// Field declaration: [modifiers] Type[<Generic>] name;  (also
	// matches "private final Foo foo;" and "public List<Foo> foos;").
	fieldDeclRe = regexp.MustCompile(`^\s*(?:private|protected|public|final|static|\s)*\s*([\w.]+)(?:<[^>]*>)?\s+(\w+)\s*[;=]`)

	importExplicitRe = regexp.MustCompile(`^\s*import\s+(?:static\s+)?([\w.]+)\s*;`)
	importWildcardRe = regexp.MustCompile(`^\s*import\s+(?:static\s+)?([\w.]+)\.\*\s*;`)

	feignClientRe = regexp.MustCompile(`@FeignClient\s*\(([^)]*)\)`)
	dubboServiceRe = regexp.MustCompile(`@DubboService\b`)

	identifierTokenRe = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)
)

// hasCorruptIdentifierMarker reports whether tok contains the stray
// bullet character observed in corrupted source (spec.md §9 Open
// Question 3: treat as data corruption, never a naming rule).
func hasCorruptIdentifierMarker(tok string) bool {
	for _, r := range tok {
		if r == '·' {
			return true
		}
	}
	return false
}

// isIdentifierToken reports whether tok is a plausible Java
// identifier and not corrupted data.
func isIdentifierToken(tok string) bool {
	if hasCorruptIdentifierMarker(tok) {
		return false
	}
	return identifierTokenRe.MatchString(tok)
}
