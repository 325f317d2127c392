// Package testgen decides whether a diff needs tests and proposes test
// files for it, including repairs for failing suites.
package testgen

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/jxucoder/autopr/internal/llm"
	"github.com/jxucoder/autopr/model"
)

// GatingErrorReason is the reasoning attached to the default decision
// when the gating call fails.
const GatingErrorReason = "Gating error"

const gatingSystemPrompt = `You decide whether a code change requires new or updated unit tests.
Any new behavior not covered by an existing test requires tests.
Pure style or formatting changes do not.
Respond with ONLY a JSON object of the shape:
{"should_generate": true, "reasoning": "...", "recommendation": "..."}`

const generateSystemPrompt = `You write unit tests for a code change.
Tests use jest with @testing-library/react for component tests.
Every test file must live under __tests__/unit and be named <Base>.test.ts,
or <Base>.test.tsx when it renders components.
Emit complete file contents, never fragments.
Respond with ONLY a JSON object of the shape:
{"proposals": [{"path": "__tests__/unit/Base.test.ts", "test_content": "...", "action": "create|update|rename", "old_path": ""}]}`

const repairSystemPrompt = `You fix failing unit tests for a code change.
Tests use jest with @testing-library/react for component tests.
Every test file must live under __tests__/unit and be named <Base>.test.ts,
or <Base>.test.tsx when it renders components.
Emit the complete replacement content for each test file you change.
Respond with ONLY a JSON object of the shape:
{"proposals": [{"path": "__tests__/unit/Base.test.ts", "test_content": "...", "action": "create|update|rename", "old_path": ""}]}`

// TestGen bundles the gating, generation, and repair operations.
type TestGen struct {
	client llm.Client
}

// New creates a TestGen backed by the given LLM client.
func New(client llm.Client) *TestGen {
	return &TestGen{client: client}
}

type gatingResponse struct {
	ShouldGenerate bool   `json:"should_generate"`
	Reasoning      string `json:"reasoning"`
	Recommendation string `json:"recommendation"`
}

func (r *gatingResponse) Validate() error {
	if strings.TrimSpace(r.Reasoning) == "" {
		return fmt.Errorf("reasoning must not be empty")
	}
	return nil
}

type proposalsResponse struct {
	Proposals []model.TestProposal `json:"proposals"`
}

func (r *proposalsResponse) Validate() error {
	for i, p := range r.Proposals {
		if strings.TrimSpace(p.Path) == "" {
			return fmt.Errorf("proposal %d has an empty path", i+1)
		}
	}
	return nil
}

// Gate decides whether the change needs tests. On LLM failure the
// decision defaults to false with a sentinel reason.
func (t *TestGen) Gate(ctx context.Context, testCtx model.PRContextWithTests, review *model.ReviewAnalysis) model.GatingDecision {
	var sb strings.Builder
	writeChangeContext(&sb, testCtx)
	if review != nil {
		fmt.Fprintf(&sb, "\nReview summary:\n%s\n", review.Summary)
	}

	var resp gatingResponse
	err := llm.Generate(ctx, t.client, gatingSystemPrompt, sb.String(), llm.Options{}, &resp)
	if err != nil {
		log.Printf("testgen: gating failed: %v", err)
		return model.GatingDecision{ShouldGenerate: false, Reasoning: GatingErrorReason}
	}
	return model.GatingDecision{
		ShouldGenerate: resp.ShouldGenerate,
		Reasoning:      resp.Reasoning,
		Recommendation: resp.Recommendation,
	}
}

// Generate proposes test files for the change. Failures yield an empty
// list, which the caller treats as a no-op.
func (t *TestGen) Generate(ctx context.Context, testCtx model.PRContextWithTests, reviewSummary string) []model.TestProposal {
	var sb strings.Builder
	writeChangeContext(&sb, testCtx)
	if reviewSummary != "" {
		fmt.Fprintf(&sb, "\nReview summary:\n%s\n", reviewSummary)
	}
	sb.WriteString("\nPropose the unit tests this change needs.\n")

	return t.propose(ctx, generateSystemPrompt, sb.String(), testCtx)
}

// Repair proposes replacement test files given the failing output of the
// previous run. The failing output is included verbatim.
func (t *TestGen) Repair(ctx context.Context, testCtx model.PRContextWithTests, failingOutput string, attempt int) []model.TestProposal {
	var sb strings.Builder
	writeChangeContext(&sb, testCtx)
	fmt.Fprintf(&sb, "\nFix attempt #%d. The test suite is failing with this output:\n\n%s\n", attempt, failingOutput)
	sb.WriteString("\nPropose replacement test files that make the suite pass without weakening the assertions.\n")

	return t.propose(ctx, repairSystemPrompt, sb.String(), testCtx)
}

func (t *TestGen) propose(ctx context.Context, system, user string, testCtx model.PRContextWithTests) []model.TestProposal {
	var resp proposalsResponse
	err := llm.Generate(ctx, t.client, system, user, llm.Options{}, &resp)
	if err != nil {
		log.Printf("testgen: proposal generation failed: %v", err)
		return nil
	}
	return Postprocess(resp.Proposals, testCtx.ChangedFiles)
}

func writeChangeContext(sb *strings.Builder, testCtx model.PRContextWithTests) {
	fmt.Fprintf(sb, "Change: %s\nBranch %s into %s\n", testCtx.Title, testCtx.HeadRef, testCtx.BaseRef)
	sb.WriteString("\nChanged files:\n")
	for _, f := range testCtx.ChangedFiles {
		if f.Excluded {
			continue
		}
		fmt.Fprintf(sb, "\n%s (%s)\n%s\n", f.Path, f.Status, f.RawPatch)
		if f.Content != "" {
			fmt.Fprintf(sb, "\nCurrent content of %s:\n%s\n", f.Path, f.Content)
		}
	}
	if len(testCtx.ExistingTestFiles) > 0 {
		sb.WriteString("\nExisting test files:\n")
		for _, tf := range testCtx.ExistingTestFiles {
			fmt.Fprintf(sb, "\n%s\n---\n%s\n", tf.Path, tf.Content)
		}
	}
}
