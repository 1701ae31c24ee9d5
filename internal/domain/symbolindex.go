package domain

// ClassEntry is a fully-qualified class name resolved to its source
// file, carrying the class-level annotations the cross-project tracer
// needs to decide whether a changed type is a Feign client or Dubbo
// service (spec.md §4.3 step 2b).
type ClassEntry struct {
	FQN            string
	File           string
	IsFeignClient  bool
	FeignName      string
	IsDubboService bool
}

// APIEntry is one HTTP route defined by a controller method.
type APIEntry struct {
	Route  string
	Verb   string
	File   string
	Line   int
	Method string // decorated method name, when resolvable
}

// InjectionKind distinguishes the annotation style behind an RPC entry.
type InjectionKind string

const (
	InjectionDubbo    InjectionKind = "dubbo"
	InjectionSpringDI InjectionKind = "spring_di"
)

// RPCEntry is an RPC (Dubbo or Feign-consumer) injection site.
// InterfaceFQN holds the injected field's declared type as written in
// the source (usually a simple name); it is not resolved to a
// fully-qualified name through the file's imports.
type RPCEntry struct {
	InterfaceFQN string
	File         string
	Line         int
	Kind         InjectionKind
	Snippet      string // the field-declaration source line, for citation accuracy
}

// SymbolIndex is the per-repo symbol table produced by the indexer (C1).
type SymbolIndex struct {
	RepoRoot     string
	CommitHash   string
	ClassMap     map[string]ClassEntry   // FQN -> entry
	SimpleNames  map[string][]string     // simple name -> FQNs (disambiguation)
	APIMap       map[string][]APIEntry   // route -> entries (multiple methods may share a route)
	RPCMap       map[string][]RPCEntry   // declared field type as written (see RPCEntry) -> injection sites
	FilesScanned []string                // relative paths, sorted
	Imports      map[string]FileImports  // relative path -> parsed imports for that file
}

// FileImports captures the explicit and wildcard imports of one file,
// plus its package declaration, for later usage-tracing resolution.
type FileImports struct {
	Package     string
	Explicit    map[string]string // simple name -> FQN
	Wildcards   []string          // package prefixes imported via "*"
}

// NewSymbolIndex returns an empty, ready-to-populate index.
func NewSymbolIndex(repoRoot, commitHash string) *SymbolIndex {
	return &SymbolIndex{
		RepoRoot:    repoRoot,
		CommitHash:  commitHash,
		ClassMap:    make(map[string]ClassEntry),
		SimpleNames: make(map[string][]string),
		APIMap:      make(map[string][]APIEntry),
		RPCMap:      make(map[string][]RPCEntry),
		Imports:     make(map[string]FileImports),
	}
}

// Usage is one reference site found by the usage tracer (C2).
type Usage struct {
	Path    string
	Line    int
	Snippet string
	Service string
	Detail  string
}
