// Package domain holds the entities shared across the cross-project
// impact engine: tasks, reports, project relations, and the symbol
// index records produced by the Java analyzer.
package domain

import "github.com/google/uuid"

// TaskStatus is the lifecycle state of an AnalysisTask.
type TaskStatus string

const (
	StatusPending    TaskStatus = "PENDING"
	StatusProcessing TaskStatus = "PROCESSING"
	StatusCompleted  TaskStatus = "COMPLETED"
	StatusFailed     TaskStatus = "FAILED"
)

// ProjectRelation is a configuration row linking a main repo to one
// related repo that should be scanned for cross-project impact.
type ProjectRelation struct {
	MainName      string
	MainGitURL    string
	RelatedName   string
	RelatedGitURL string
	RelatedBranch string
	Active        bool
}

// NormalizedBranch returns RelatedBranch, defaulting to "master".
func (r ProjectRelation) NormalizedBranch() string {
	if r.RelatedBranch == "" {
		return "master"
	}
	return r.RelatedBranch
}

// LogEntry is one line in an AnalysisTask's append-only log.
type LogEntry struct {
	Level   string
	Message string
}

// AnalysisTask is a single analysis run.
type AnalysisTask struct {
	ID                 string
	MainGitURL         string
	TargetBranch       string
	BaseCommit         string
	TargetCommit       string
	EnableCrossProject bool
	RelatedProjects    []ProjectRelation
	Status             TaskStatus
	Log                []LogEntry
	DurationMillis     int64
}

// NewTask constructs a task in PENDING state with a generated ID.
func NewTask(mainGitURL, targetBranch, baseCommit, targetCommit string, enableCrossProject bool, related []ProjectRelation) AnalysisTask {
	return AnalysisTask{
		ID:                 uuid.NewString(),
		MainGitURL:         mainGitURL,
		TargetBranch:       targetBranch,
		BaseCommit:         baseCommit,
		TargetCommit:       targetCommit,
		EnableCrossProject: enableCrossProject,
		RelatedProjects:    related,
		Status:             StatusPending,
	}
}

// AppendLog appends a line to the task's log, mutating in place.
func (t *AnalysisTask) AppendLog(level, message string) {
	t.Log = append(t.Log, LogEntry{Level: level, Message: message})
}

// DownstreamEntry is an in-repo (main-repo) downstream reference found
// by the usage tracer.
type DownstreamEntry struct {
	File    string
	Line    int
	Snippet string
	Detail  string
}

// ImpactType distinguishes the three kinds of cross-project impact.
type ImpactType string

const (
	ImpactClassReference ImpactType = "class_reference"
	ImpactAPICall        ImpactType = "api_call"
	ImpactRPCReference   ImpactType = "rpc_reference"
)

// Impact is one cross-repo reference to a changed symbol (the unit
// produced by the multi-project tracer, C3).
type Impact struct {
	Project string
	Type    ImpactType
	File    string
	Line    int
	Snippet string
	Detail  string
	API     string // populated only when Type == ImpactAPICall
}

// AnalysisReport is produced for one changed file.
type AnalysisReport struct {
	TaskID               string
	ProjectName          string
	FileName             string
	DiffContent          string
	RiskLevel            string
	ChangeIntent         string
	DownstreamDependency []DownstreamEntry
	CrossServiceImpact   []Impact
	FunctionalImpact     string
	TestStrategy         []string
	SourceProject        string // "main" or a related project name
	ConfidenceScore      float64
}
