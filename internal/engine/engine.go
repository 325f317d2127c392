// Package engine implements the autopr pipeline: plan the feature, apply
// each step as a commit with a partial review, then run the final review
// and test pass. It depends only on interfaces so every stage can be
// exercised with stubs.
package engine

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jxucoder/autopr/internal/config"
	"github.com/jxucoder/autopr/internal/github"
	"github.com/jxucoder/autopr/internal/reviewer"
	"github.com/jxucoder/autopr/internal/testgen"
	"github.com/jxucoder/autopr/internal/testrunner"
	"github.com/jxucoder/autopr/model"
)

// Outcome is the terminal state of a pipeline run.
type Outcome string

const (
	// OutcomeReadyForReview means every step committed and the final
	// review and test pass succeeded.
	OutcomeReadyForReview Outcome = "ready_for_review"

	// OutcomeNoPlan means the planner could not produce a usable plan.
	// The process exits 0 with a diagnostic; nothing was pushed.
	OutcomeNoPlan Outcome = "no_plan"

	// OutcomeTestsExhausted means tests were still failing after the
	// configured number of repair attempts.
	OutcomeTestsExhausted Outcome = "tests_exhausted"

	// OutcomeAborted means a step, VCS operation, or test run failed fatally.
	OutcomeAborted Outcome = "aborted"
)

// VCS is the version-control surface the pipeline drives.
type VCS interface {
	SwitchToBranch(ctx context.Context, name, base string) error
	Commit(ctx context.Context, message string) (bool, error)
	Push(ctx context.Context, branch string) error
	WriteFiles(changes []model.FileChange) error
	RemoveFile(relPath string) error
	Partial(ctx context.Context) ([]model.FileDiff, []string, error)
	Full(ctx context.Context, baseBranch string) ([]model.FileDiff, []string, error)
}

// Hosting is the pull-request and review-comment surface.
type Hosting interface {
	EnsurePullRequest(ctx context.Context, branch, base, title, body string) (github.PullRequest, error)
	UpdatePullRequestBody(ctx context.Context, number int, body string) error
	CreateComment(ctx context.Context, number int, body string) (int64, error)
	UpdateComment(ctx context.Context, commentID int64, body string) error
}

// Planner turns a feature request into implementation steps.
type Planner interface {
	Plan(ctx context.Context, featureRequest, snapshot, codeRules string) []model.Step
}

// Generator produces file changes for one step.
type Generator interface {
	Generate(ctx context.Context, step model.Step, accumulated *model.AccumulatedChanges, snapshot, codeRules string) []model.FileChange
}

// Reviewer analyses a set of changed files.
type Reviewer interface {
	Review(ctx context.Context, prCtx model.PRContext) model.ReviewAnalysis
}

// TestGenerator gates, generates, and repairs tests for a change.
type TestGenerator interface {
	Gate(ctx context.Context, testCtx model.PRContextWithTests, review *model.ReviewAnalysis) model.GatingDecision
	Generate(ctx context.Context, testCtx model.PRContextWithTests, reviewSummary string) []model.TestProposal
	Repair(ctx context.Context, testCtx model.PRContextWithTests, failingOutput string, attempt int) []model.TestProposal
}

// TestRunner executes the repository's test suite.
type TestRunner interface {
	Run(ctx context.Context) (testrunner.Result, error)
}

// SnapshotFunc captures a repository snapshot as prompt text.
type SnapshotFunc func(dir string) (string, error)

// RunStore persists runs and their event logs. Persistence is
// observational: a failing store never affects the pipeline outcome.
type RunStore interface {
	CreateRun(run *model.Run) error
	UpdateRun(run *model.Run) error
	AddEvent(event *model.Event) error
}

// EventBus publishes run events to live subscribers.
type EventBus interface {
	Publish(runID string, event *model.Event)
}

// Notifier reports a finished run to chat channels.
type Notifier interface {
	Notify(run *model.Run)
}

// Engine orchestrates a single pipeline run.
type Engine struct {
	cfg       *config.Config
	vcs       VCS
	hosting   Hosting
	planner   Planner
	generator Generator
	reviewer  Reviewer
	testgen   TestGenerator
	tests     TestRunner // nil when no test command is configured
	snapshot  SnapshotFunc

	// Observational sinks, all optional.
	store    RunStore
	bus      EventBus
	notifier Notifier
}

// New creates an Engine with all pipeline dependencies.
func New(
	cfg *config.Config,
	vcs VCS,
	hosting Hosting,
	planner Planner,
	generator Generator,
	rev Reviewer,
	tg TestGenerator,
	tests TestRunner,
	snapshot SnapshotFunc,
) *Engine {
	return &Engine{
		cfg:       cfg,
		vcs:       vcs,
		hosting:   hosting,
		planner:   planner,
		generator: generator,
		reviewer:  rev,
		testgen:   tg,
		tests:     tests,
		snapshot:  snapshot,
	}
}

// SetObservers wires the optional run store, event bus, and notifier.
func (e *Engine) SetObservers(st RunStore, bus EventBus, n Notifier) {
	e.store = st
	e.bus = bus
	e.notifier = n
}

type runState struct {
	run         *model.Run
	branch      string
	snapshot    string
	accumulated *model.AccumulatedChanges
	review      *model.ReviewAnalysis
	pr          github.PullRequest
	prOpened    bool

	lastCommentID   int64
	lastCommentBody string
}

const testStatusHeader = "## AI Test Status\n\n"

// Execute runs the full pipeline: branch, plan, per-step commits with
// partial reviews, then the final review and test pass.
func (e *Engine) Execute(ctx context.Context) (Outcome, error) {
	now := time.Now().UTC()
	branch := "agent/" + now.Format("20060102_1504")

	run := &model.Run{
		ID:        uuid.New().String()[:8],
		Feature:   e.cfg.FeatureRequest,
		Branch:    branch,
		Status:    model.RunPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if e.store != nil {
		if err := e.store.CreateRun(run); err != nil {
			log.Printf("engine: recording run failed: %v", err)
		}
	}
	st := &runState{run: run, branch: branch, accumulated: model.NewAccumulatedChanges()}

	e.emitEvent(run.ID, "status", "Switching to branch "+branch)
	if err := e.vcs.SwitchToBranch(ctx, branch, e.cfg.BaseBranch); err != nil {
		return e.abort(st, fmt.Errorf("switching to branch %s: %w", branch, err))
	}

	e.setStatus(st, model.RunPlanning)
	e.emitEvent(run.ID, "status", "Capturing repository snapshot")
	snap, err := e.snapshot(e.cfg.RepoDir)
	if err != nil {
		return e.abort(st, fmt.Errorf("capturing snapshot: %w", err))
	}
	st.snapshot = snap

	e.emitEvent(run.ID, "status", "Planning feature")
	steps := e.planner.Plan(ctx, e.cfg.FeatureRequest, snap, e.cfg.CodeRules)
	if model.IsPlanError(steps) {
		diag := steps[0].Plan
		log.Printf("engine: planning failed: %s", diag)
		e.emitEvent(run.ID, "error", "Planning failed: "+diag)
		run.Status = model.RunError
		run.Error = "PlanError: " + diag
		e.finishRun(st)
		return OutcomeNoPlan, nil
	}
	run.Steps = len(steps)
	e.setStatus(st, model.RunStepping)

	for i, step := range steps {
		if err := ctx.Err(); err != nil {
			return e.abort(st, err)
		}
		e.emitEvent(run.ID, "status", fmt.Sprintf("Step %d/%d: %s", i+1, len(steps), step.Name))
		outcome, err := e.partialStep(ctx, st, i+1, step)
		if err != nil {
			return e.abort(st, fmt.Errorf("step %d (%s): %w", i+1, step.Name, err))
		}
		if outcome == OutcomeTestsExhausted {
			return e.exhausted(st)
		}
	}

	if err := ctx.Err(); err != nil {
		return e.abort(st, err)
	}

	e.setStatus(st, model.RunFinal)
	outcome, err := e.finalFlow(ctx, st)
	if err != nil {
		return e.abort(st, err)
	}
	if outcome == OutcomeTestsExhausted {
		return e.exhausted(st)
	}

	run.Status = model.RunComplete
	e.emitEvent(run.ID, "done", run.PRUrl)
	e.finishRun(st)
	return OutcomeReadyForReview, nil
}

// partialStep applies one step: generate changes, commit, push, ensure the
// PR exists, and post a partial review of the step's commit. With step
// tests enabled it additionally runs the full test pass for the step.
func (e *Engine) partialStep(ctx context.Context, st *runState, i int, step model.Step) (Outcome, error) {
	changes := e.generator.Generate(ctx, step, st.accumulated, st.snapshot, e.cfg.CodeRules)
	if len(changes) == 0 {
		e.emitEvent(st.run.ID, "status", fmt.Sprintf("Step %d produced no file changes", i))
		return "", nil
	}

	st.accumulated.ApplyAll(changes)
	if err := e.vcs.WriteFiles(changes); err != nil {
		return "", fmt.Errorf("writing files: %w", err)
	}

	committed, err := e.vcs.Commit(ctx, fmt.Sprintf("Step %d: %s", i, step.Name))
	if err != nil {
		return "", fmt.Errorf("committing: %w", err)
	}
	if !committed {
		e.emitEvent(st.run.ID, "status", fmt.Sprintf("Step %d left the tree unchanged", i))
		return "", nil
	}
	if err := e.vcs.Push(ctx, st.branch); err != nil {
		return "", fmt.Errorf("pushing: %w", err)
	}

	// The PR is opened after the first commit so it never points at an
	// empty branch.
	if !st.prOpened {
		title := model.Truncate(e.cfg.FeatureRequest, 72)
		body := fmt.Sprintf("This is an AI-generated PR for feature: %q", e.cfg.FeatureRequest)
		pr, err := e.hosting.EnsurePullRequest(ctx, st.branch, e.cfg.BaseBranch, title, body)
		if err != nil {
			return "", fmt.Errorf("ensuring pull request: %w", err)
		}
		st.pr = pr
		st.prOpened = true
		st.run.PRUrl = pr.URL
		st.run.PRNumber = pr.Number
		e.updateRun(st)
		e.emitEvent(st.run.ID, "status", "Opened pull request "+pr.URL)
	}

	files, msgs, err := e.vcs.Partial(ctx)
	if err != nil {
		log.Printf("engine: partial diff failed, skipping step review: %v", err)
		return "", nil
	}

	header := fmt.Sprintf("**Step %d: %s**\n\n", i, step.Name)
	commentID := e.postComment(ctx, st, header+"Reviewing changes...")
	analysis := e.reviewer.Review(ctx, e.prContext(st, files, msgs))
	st.review = &analysis
	e.updateComment(ctx, st, commentID, header+reviewer.Markdown(analysis))

	if e.cfg.StepTests {
		return e.testPass(ctx, st, files, msgs, fmt.Sprintf("AI test generation - step %d", i))
	}
	return "", nil
}

// finalFlow reviews the full branch diff and runs the test pass.
func (e *Engine) finalFlow(ctx context.Context, st *runState) (Outcome, error) {
	if !st.prOpened {
		e.emitEvent(st.run.ID, "status", "No commits were produced; skipping final review")
		return "", nil
	}

	files, msgs, err := e.vcs.Full(ctx, e.cfg.BaseBranch)
	if err != nil {
		return "", fmt.Errorf("computing full diff: %w", err)
	}

	commentID := e.postComment(ctx, st, "## AI Code Review\n\nReviewing all changes...")
	analysis := e.reviewer.Review(ctx, e.prContext(st, files, msgs))
	st.review = &analysis
	e.updateComment(ctx, st, commentID, reviewer.Markdown(analysis))

	outcome, err := e.testPass(ctx, st, files, msgs, "AI test generation - final pass")
	if err != nil || outcome != "" {
		return outcome, err
	}

	if err := e.hosting.UpdatePullRequestBody(ctx, st.pr.Number, "All steps done. PR is ready for final review."); err != nil {
		log.Printf("engine: final PR body update failed: %v", err)
	}
	return "", nil
}

// testPass runs gating, optional test generation, the test suite, and the
// bounded repair loop. Returns OutcomeTestsExhausted when tests still fail
// after the configured number of repair attempts.
func (e *Engine) testPass(ctx context.Context, st *runState, files []model.FileDiff, msgs []string, genCommitMsg string) (Outcome, error) {
	testCtx := model.PRContextWithTests{
		PRContext:         e.prContext(st, files, msgs),
		ExistingTestFiles: e.existingTests(),
	}

	commentID := e.postComment(ctx, st, testStatusHeader+"Evaluating whether tests are needed...")

	decision := e.testgen.Gate(ctx, testCtx, st.review)
	if decision.ShouldGenerate {
		e.updateComment(ctx, st, commentID, testStatusHeader+"Generating tests...\n\n"+decision.Reasoning)

		summary := ""
		if st.review != nil {
			summary = st.review.Summary
		}
		proposals := e.testgen.Generate(ctx, testCtx, summary)
		if len(proposals) > 0 {
			if err := e.applyProposals(proposals); err != nil {
				return "", err
			}
			committed, err := e.vcs.Commit(ctx, genCommitMsg)
			if err != nil {
				return "", fmt.Errorf("committing generated tests: %w", err)
			}
			if committed {
				if err := e.vcs.Push(ctx, st.branch); err != nil {
					return "", fmt.Errorf("pushing generated tests: %w", err)
				}
			}
			e.updateComment(ctx, st, commentID, testStatusHeader+fmt.Sprintf("Generated %d test file(s). Running tests...", len(proposals)))
		}
	} else {
		e.updateComment(ctx, st, commentID, testStatusHeader+"No new tests required.\n\n"+decision.Reasoning)
	}

	if e.tests == nil {
		return "", nil
	}

	result, err := e.tests.Run(ctx)
	if err != nil {
		return "", fmt.Errorf("running tests: %w", err)
	}

	attempt := 0
	for result.Failed && attempt < e.cfg.MaxTestFixAttempts {
		attempt++
		e.emitEvent(st.run.ID, "status", fmt.Sprintf("Tests failing, fix attempt %d/%d", attempt, e.cfg.MaxTestFixAttempts))
		e.updateComment(ctx, st, commentID, testStatusHeader+fmt.Sprintf("Tests failing. Fix attempt %d/%d...", attempt, e.cfg.MaxTestFixAttempts))

		proposals := e.testgen.Repair(ctx, testCtx, result.Output, attempt)
		if len(proposals) > 0 {
			if err := e.applyProposals(proposals); err != nil {
				return "", err
			}
			committed, err := e.vcs.Commit(ctx, fmt.Sprintf("AI test fix attempt #%d", attempt))
			if err != nil {
				return "", fmt.Errorf("committing test fix: %w", err)
			}
			if committed {
				if err := e.vcs.Push(ctx, st.branch); err != nil {
					return "", fmt.Errorf("pushing test fix: %w", err)
				}
			}
		}

		result, err = e.tests.Run(ctx)
		if err != nil {
			return "", fmt.Errorf("running tests: %w", err)
		}
	}

	if result.Failed {
		e.updateComment(ctx, st, commentID, testStatusHeader+fmt.Sprintf("Tests failing after %d fix attempts.", e.cfg.MaxTestFixAttempts))
		return OutcomeTestsExhausted, nil
	}

	e.updateComment(ctx, st, commentID, testStatusHeader+"Tests passing.")
	return "", nil
}

func (e *Engine) applyProposals(proposals []model.TestProposal) error {
	for _, p := range proposals {
		if p.Action == model.TestActionRename && p.OldPath != "" {
			if err := e.vcs.RemoveFile(p.OldPath); err != nil {
				log.Printf("engine: removing %s failed: %v", p.OldPath, err)
			}
		}
		if err := e.vcs.WriteFiles([]model.FileChange{{Path: p.Path, Content: p.TestContent}}); err != nil {
			return fmt.Errorf("writing test %s: %w", p.Path, err)
		}
	}
	return nil
}

func (e *Engine) prContext(st *runState, files []model.FileDiff, msgs []string) model.PRContext {
	owner, repo := splitRepository(e.cfg.Repository)
	return model.PRContext{
		Owner:          owner,
		Repo:           repo,
		PullNumber:     st.pr.Number,
		HeadRef:        st.branch,
		BaseRef:        e.cfg.BaseBranch,
		Title:          model.Truncate(e.cfg.FeatureRequest, 72),
		ChangedFiles:   files,
		CommitMessages: msgs,
	}
}

// existingTests collects the current contents of the generated-test root
// so the gating and generation prompts see what already exists.
func (e *Engine) existingTests() []model.TestFile {
	root := filepath.Join(e.cfg.RepoDir, filepath.FromSlash(testgen.TestRoot))
	var out []model.TestFile
	filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		data, readErr := os.ReadFile(path)
		if readErr != nil {
			return nil
		}
		rel, relErr := filepath.Rel(e.cfg.RepoDir, path)
		if relErr != nil {
			return nil
		}
		out = append(out, model.TestFile{Path: filepath.ToSlash(rel), Content: string(data)})
		return nil
	})
	return out
}

// --- Terminal states ---

func (e *Engine) abort(st *runState, err error) (Outcome, error) {
	log.Printf("engine: run %s aborted: %v", st.run.ID, err)
	st.run.Status = model.RunError
	st.run.Error = err.Error()
	e.emitEvent(st.run.ID, "error", err.Error())

	// Leave a failure marker on the most recent status comment. Uses a
	// fresh context so the marker still posts after cancellation.
	if st.lastCommentID != 0 {
		e.updateComment(context.Background(), st, st.lastCommentID, st.lastCommentBody+"\n\n**Run aborted.**")
	}

	e.finishRun(st)
	return OutcomeAborted, err
}

func (e *Engine) exhausted(st *runState) (Outcome, error) {
	st.run.Status = model.RunError
	st.run.Error = fmt.Sprintf("tests failing after %d fix attempts", e.cfg.MaxTestFixAttempts)
	e.emitEvent(st.run.ID, "error", st.run.Error)
	e.finishRun(st)
	return OutcomeTestsExhausted, nil
}

// --- Observational helpers ---

func (e *Engine) setStatus(st *runState, status model.RunStatus) {
	st.run.Status = status
	e.updateRun(st)
}

func (e *Engine) updateRun(st *runState) {
	if e.store == nil {
		return
	}
	if err := e.store.UpdateRun(st.run); err != nil {
		log.Printf("engine: updating run record failed: %v", err)
	}
}

func (e *Engine) finishRun(st *runState) {
	e.updateRun(st)
	if e.notifier != nil {
		e.notifier.Notify(st.run)
	}
}

func (e *Engine) emitEvent(runID, eventType, data string) {
	log.Printf("run %s: %s", runID, data)
	if e.store == nil && e.bus == nil {
		return
	}
	event := &model.Event{
		RunID:     runID,
		Type:      eventType,
		Data:      data,
		CreatedAt: time.Now().UTC(),
	}
	if e.store != nil {
		if err := e.store.AddEvent(event); err != nil {
			log.Printf("engine: storing event failed: %v", err)
		}
	}
	if e.bus != nil {
		e.bus.Publish(runID, event)
	}
}

// --- Comment helpers (all best-effort) ---

func (e *Engine) postComment(ctx context.Context, st *runState, body string) int64 {
	id, err := e.hosting.CreateComment(ctx, st.pr.Number, body)
	if err != nil {
		log.Printf("engine: posting comment failed: %v", err)
		return 0
	}
	st.lastCommentID = id
	st.lastCommentBody = body
	return id
}

func (e *Engine) updateComment(ctx context.Context, st *runState, id int64, body string) {
	if id == 0 {
		return
	}
	if err := e.hosting.UpdateComment(ctx, id, body); err != nil {
		log.Printf("engine: updating comment failed: %v", err)
		return
	}
	st.lastCommentID = id
	st.lastCommentBody = body
}

func splitRepository(fullName string) (owner, repo string) {
	parts := strings.SplitN(fullName, "/", 2)
	if len(parts) != 2 {
		return fullName, ""
	}
	return parts[0], parts[1]
}
