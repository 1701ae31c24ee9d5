package llmreport

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/cross-impact/impactengine/internal/domain"
	"github.com/cross-impact/impactengine/internal/domainerr"
)

// ErrMissingRequiredFields is returned by ParseReply when the decoded
// reply is missing one of the required AnalysisReport fields (spec.md
// §4.6 "Reply contract").
var ErrMissingRequiredFields = errors.New("llm reply missing required fields")

// Reply is the LLM's structured response for one file. Unknown JSON
// fields are discarded by json.Unmarshal; required fields are
// risk_level and change_intent (the two fields a report cannot stand
// without — the rest may legitimately be empty for a trivial change).
type Reply struct {
	RiskLevel            string                  `json:"risk_level"`
	ChangeIntent         string                  `json:"change_intent"`
	DownstreamDependency []domain.DownstreamEntry `json:"downstream_dependency"`
	CrossServiceImpact   []domain.Impact          `json:"cross_service_impact"`
	FunctionalImpact     string                   `json:"functional_impact"`
	TestStrategy         []string                 `json:"test_strategy"`
}

// ParseReply decodes raw into a Reply, validating that the required
// fields are present. A shape or required-field failure is wrapped as
// domainerr.CodeLLM so the orchestrator's retry logic can recognize it.
func ParseReply(raw string) (*Reply, error) {
	var r Reply
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return nil, domainerr.Wrap(err, domainerr.CodeLLM, "decode llm reply")
	}
	if strings.TrimSpace(r.RiskLevel) == "" || strings.TrimSpace(r.ChangeIntent) == "" {
		return nil, domainerr.Wrap(ErrMissingRequiredFields, domainerr.CodeLLM, "llm reply missing required fields")
	}
	return &r, nil
}

// MergeReport builds the final AnalysisReport for one file, preferring
// the orchestrator's own statically-computed downstream/cross-project
// findings over anything the LLM echoed back — those are ground truth
// from C2/C3, the LLM's job is the narrative fields.
func MergeReport(taskID, projectName, fileName, diffContent, sourceProject string, downstream []domain.DownstreamEntry, crossImpact []domain.Impact, reply Reply) domain.AnalysisReport {
	return domain.AnalysisReport{
		TaskID:               taskID,
		ProjectName:          projectName,
		FileName:             fileName,
		DiffContent:          diffContent,
		RiskLevel:            reply.RiskLevel,
		ChangeIntent:         reply.ChangeIntent,
		DownstreamDependency: downstream,
		CrossServiceImpact:   crossImpact,
		FunctionalImpact:     reply.FunctionalImpact,
		TestStrategy:         reply.TestStrategy,
		SourceProject:        sourceProject,
	}
}

// FailedReport builds the FAILED-report placeholder persisted when the
// LLM reply still doesn't validate after one retry (spec.md §4.6).
func FailedReport(taskID, projectName, fileName, diffContent, sourceProject, reason string) domain.AnalysisReport {
	return domain.AnalysisReport{
		TaskID:        taskID,
		ProjectName:   projectName,
		FileName:      fileName,
		DiffContent:   diffContent,
		RiskLevel:     "UNKNOWN",
		ChangeIntent:  "LLM reply validation failed: " + reason,
		SourceProject: sourceProject,
	}
}
