// Package reviewer produces structured code reviews of a diff context.
package reviewer

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/jxucoder/autopr/internal/llm"
	"github.com/jxucoder/autopr/model"
)

const systemPrompt = `You are a thorough code reviewer. Review the change below and produce a
structured analysis: an overall summary, short per-file notes, and concrete
improvement suggestions.
Respond with ONLY a JSON object of the shape:
{"summary": "...", "file_analyses": [{"path": "...", "analysis": "..."}], "overall_suggestions": ["..."]}`

// FallbackSummary is the summary used when the review response cannot
// be parsed.
const FallbackSummary = "Review parse error"

// Reviewer reviews diff contexts.
type Reviewer struct {
	client llm.Client
}

// New creates a Reviewer backed by the given LLM client.
func New(client llm.Client) *Reviewer {
	return &Reviewer{client: client}
}

type reviewResponse struct {
	Summary            string               `json:"summary"`
	FileAnalyses       []model.FileAnalysis `json:"file_analyses"`
	OverallSuggestions []string             `json:"overall_suggestions"`
}

func (r *reviewResponse) Validate() error {
	if strings.TrimSpace(r.Summary) == "" {
		return fmt.Errorf("summary must not be empty")
	}
	return nil
}

// Review analyzes a diff context. It never fails: an LLM or schema error
// yields a fallback analysis because the review is advisory.
func (r *Reviewer) Review(ctx context.Context, prCtx model.PRContext) model.ReviewAnalysis {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Change: %s\nBranch %s into %s\n", prCtx.Title, prCtx.HeadRef, prCtx.BaseRef)
	if len(prCtx.CommitMessages) > 0 {
		sb.WriteString("\nCommits:\n")
		for _, m := range prCtx.CommitMessages {
			fmt.Fprintf(&sb, "- %s\n", m)
		}
	}
	sb.WriteString("\nChanged files:\n")
	for _, f := range prCtx.ChangedFiles {
		if f.Excluded {
			fmt.Fprintf(&sb, "\n%s (%s, content omitted)\n", f.Path, f.Status)
			continue
		}
		fmt.Fprintf(&sb, "\n%s (%s)\n%s\n", f.Path, f.Status, f.RawPatch)
	}

	var resp reviewResponse
	err := llm.Generate(ctx, r.client, systemPrompt, sb.String(), llm.Options{}, &resp)
	if err != nil {
		log.Printf("reviewer: review failed: %v", err)
		return model.ReviewAnalysis{Summary: FallbackSummary}
	}

	return model.ReviewAnalysis{
		Summary:            resp.Summary,
		FileAnalyses:       resp.FileAnalyses,
		OverallSuggestions: resp.OverallSuggestions,
	}
}

// Markdown renders a review as a comment body.
func Markdown(a model.ReviewAnalysis) string {
	var sb strings.Builder
	sb.WriteString("## AI Code Review\n\n")
	sb.WriteString(a.Summary)
	sb.WriteString("\n")

	if len(a.FileAnalyses) > 0 {
		sb.WriteString("\n### Files\n")
		for _, f := range a.FileAnalyses {
			fmt.Fprintf(&sb, "- **%s**: %s\n", f.Path, f.Analysis)
		}
	}
	if len(a.OverallSuggestions) > 0 {
		sb.WriteString("\n### Suggestions\n")
		for _, s := range a.OverallSuggestions {
			fmt.Fprintf(&sb, "- %s\n", s)
		}
	}
	return sb.String()
}
