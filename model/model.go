// Package model defines the core domain types shared across all autopr packages.
// It has zero dependencies on other autopr packages.
package model

import "time"

// Step is a single unit of work in the implementation plan.
type Step struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Plan        string `json:"plan"`
}

// PlanErrorName is the sentinel step name the planner emits when it
// cannot produce a usable plan.
const PlanErrorName = "PlanError"

// IsPlanError reports whether a plan is the single-step planner failure sentinel.
func IsPlanError(steps []Step) bool {
	return len(steps) == 1 && steps[0].Name == PlanErrorName
}

// FileChange is a full replacement of one file's contents.
type FileChange struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// AccumulatedChanges is a ledger of per-path latest file contents built up
// across steps. At most one entry exists per path; order reflects the last
// touch (last-write-wins).
type AccumulatedChanges struct {
	order  []string
	byPath map[string]FileChange
}

// NewAccumulatedChanges returns an empty ledger.
func NewAccumulatedChanges() *AccumulatedChanges {
	return &AccumulatedChanges{byPath: make(map[string]FileChange)}
}

// Apply records a change, replacing any previous entry for the same path.
func (a *AccumulatedChanges) Apply(c FileChange) {
	if _, seen := a.byPath[c.Path]; seen {
		for i, p := range a.order {
			if p == c.Path {
				a.order = append(a.order[:i], a.order[i+1:]...)
				break
			}
		}
	}
	a.order = append(a.order, c.Path)
	a.byPath[c.Path] = c
}

// ApplyAll records a batch of changes in order.
func (a *AccumulatedChanges) ApplyAll(changes []FileChange) {
	for _, c := range changes {
		a.Apply(c)
	}
}

// Get returns the latest recorded change for a path.
func (a *AccumulatedChanges) Get(path string) (FileChange, bool) {
	c, ok := a.byPath[path]
	return c, ok
}

// Len returns the number of distinct paths in the ledger.
func (a *AccumulatedChanges) Len() int {
	return len(a.order)
}

// Changes returns the ledger entries in last-touch order.
func (a *AccumulatedChanges) Changes() []FileChange {
	out := make([]FileChange, 0, len(a.order))
	for _, p := range a.order {
		out = append(out, a.byPath[p])
	}
	return out
}

// FileDiff is one changed file extracted from a git diff.
type FileDiff struct {
	Path      string `json:"path"`
	RawPatch  string `json:"raw_patch"`
	Status    string `json:"status,omitempty"`
	Additions int    `json:"additions,omitempty"`
	Deletions int    `json:"deletions,omitempty"`
	Content   string `json:"content,omitempty"`
	Excluded  bool   `json:"excluded,omitempty"`
}

// PRContext bundles everything a review or gating prompt needs to know
// about the change under review.
type PRContext struct {
	Owner          string     `json:"owner"`
	Repo           string     `json:"repo"`
	PullNumber     int        `json:"pull_number,omitempty"`
	HeadRef        string     `json:"head_ref"`
	BaseRef        string     `json:"base_ref"`
	Title          string     `json:"title"`
	ChangedFiles   []FileDiff `json:"changed_files"`
	CommitMessages []string   `json:"commit_messages"`
}

// TestFile is an existing test file included in test-generation context.
type TestFile struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// PRContextWithTests extends PRContext with the repository's current test files.
type PRContextWithTests struct {
	PRContext
	ExistingTestFiles []TestFile `json:"existing_test_files"`
}

// FileAnalysis is the reviewer's commentary on one file.
type FileAnalysis struct {
	Path     string `json:"path"`
	Analysis string `json:"analysis"`
}

// ReviewAnalysis is the structured output of a code review.
type ReviewAnalysis struct {
	Summary            string         `json:"summary"`
	FileAnalyses       []FileAnalysis `json:"file_analyses"`
	OverallSuggestions []string       `json:"overall_suggestions"`
}

// TestAction says what to do with a proposed test file.
type TestAction string

const (
	TestActionCreate TestAction = "create"
	TestActionUpdate TestAction = "update"
	TestActionRename TestAction = "rename"
)

// TestProposal is one proposed test file from the test generator or repairer.
type TestProposal struct {
	Path        string     `json:"path"`
	TestContent string     `json:"test_content"`
	Action      TestAction `json:"action"`
	OldPath     string     `json:"old_path,omitempty"`
}

// GatingDecision is the structured output of the test-gating check.
type GatingDecision struct {
	ShouldGenerate bool   `json:"should_generate"`
	Reasoning      string `json:"reasoning"`
	Recommendation string `json:"recommendation"`
}

// RunStatus represents the current state of a pipeline run.
type RunStatus string

const (
	RunPending  RunStatus = "pending"
	RunPlanning RunStatus = "planning"
	RunStepping RunStatus = "stepping"
	RunFinal    RunStatus = "final_review"
	RunComplete RunStatus = "complete"
	RunError    RunStatus = "error"
)

// Run represents a single autopr pipeline execution.
type Run struct {
	ID        string    `json:"id"`
	Feature   string    `json:"feature"`
	Branch    string    `json:"branch"`
	Status    RunStatus `json:"status"`
	PRUrl     string    `json:"pr_url,omitempty"`
	PRNumber  int       `json:"pr_number,omitempty"`
	Steps     int       `json:"steps,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Event represents a single event in a run's lifecycle.
type Event struct {
	ID        int64     `json:"id"`
	RunID     string    `json:"run_id"`
	Type      string    `json:"type"` // "status", "output", "error", "done"
	Data      string    `json:"data"`
	CreatedAt time.Time `json:"created_at"`
}

// Truncate shortens a string to maxLen runes, ending it with "..." if
// truncated. For maxLen <= 3 the string is cut without the ellipsis.
func Truncate(s string, maxLen int) string {
	if maxLen <= 3 {
		r := []rune(s)
		if len(r) <= maxLen {
			return s
		}
		return string(r[:maxLen])
	}
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}
