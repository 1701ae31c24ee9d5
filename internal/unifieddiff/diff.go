// Package unifieddiff wraps sourcegraph/go-diff to turn a raw unified
// diff into the changed-file list and per-file changed-line ranges the
// orchestrator needs to drive C1/C2/C3 (spec.md §4.5 step 2 and 5a).
// Diff computation itself is out of scope — this package only
// consumes diffs the caller already produced (spec.md §1 Non-goals).
package unifieddiff

import (
	"strings"

	gdiff "github.com/sourcegraph/go-diff/diff"

	"github.com/cross-impact/impactengine/internal/domainerr"
)

// FileChange describes one file's changes in post-image terms.
type FileChange struct {
	OldPath      string
	NewPath      string
	Deleted      bool
	New          bool
	ChangedLines []int // post-image line numbers of added lines; removed lines add no entry
	Header       string
	Raw          string // this file's own unified diff text, for AnalysisReport.DiffContent
}

// Path is NewPath for additions/modifications, OldPath for deletions.
func (fc FileChange) Path() string {
	if fc.Deleted {
		return fc.OldPath
	}
	return fc.NewPath
}

// Parse reads a raw unified/git diff and returns one FileChange per
// file entry.
func Parse(patch string) ([]FileChange, error) {
	fileDiffs, err := gdiff.NewMultiFileDiffReader(strings.NewReader(patch)).ReadAllFiles()
	if err != nil {
		return nil, domainerr.Wrap(err, domainerr.CodeParse, "parse unified diff")
	}

	changes := make([]FileChange, 0, len(fileDiffs))
	for _, fd := range fileDiffs {
		changes = append(changes, fromFileDiff(fd))
	}
	return changes, nil
}

func fromFileDiff(fd *gdiff.FileDiff) FileChange {
	fc := FileChange{
		OldPath: strings.TrimPrefix(strings.TrimPrefix(fd.OrigName, "a/"), "b/"),
		NewPath: strings.TrimPrefix(strings.TrimPrefix(fd.NewName, "a/"), "b/"),
	}
	fc.Deleted = fd.NewName == "/dev/null"
	fc.New = fd.OrigName == "/dev/null"
	if len(fd.Extended) > 0 {
		fc.Header = strings.Join(fd.Extended, "\n")
	}
	if raw, err := gdiff.PrintFileDiff(fd); err == nil {
		fc.Raw = string(raw)
	}

	for _, hunk := range fd.Hunks {
		newLine := int(hunk.NewStartLine)
		for _, line := range strings.Split(string(hunk.Body), "\n") {
			switch {
			case strings.HasPrefix(line, "+") && !strings.HasPrefix(line, "+++"):
				fc.ChangedLines = append(fc.ChangedLines, newLine)
				newLine++
			case strings.HasPrefix(line, "-") && !strings.HasPrefix(line, "---"):
				// removed line: does not advance the post-image cursor
			default:
				newLine++
			}
		}
	}
	return fc
}

// ChangedPaths returns the post-image path of every non-deleted file
// in changes, in order.
func ChangedPaths(changes []FileChange) []string {
	paths := make([]string, 0, len(changes))
	for _, fc := range changes {
		if fc.Deleted {
			continue
		}
		paths = append(paths, fc.NewPath)
	}
	return paths
}

// IntersectsRange reports whether any changed line in fc falls within
// [startLine, endLine] inclusive — used to compute a file's
// changed_methods by intersecting diff hunks with method body ranges
// (spec.md §4.5 step 5a).
func (fc FileChange) IntersectsRange(startLine, endLine int) bool {
	for _, l := range fc.ChangedLines {
		if l >= startLine && l <= endLine {
			return true
		}
	}
	return false
}
