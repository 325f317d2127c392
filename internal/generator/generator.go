// Package generator turns one plan step into full file contents for the
// working tree.
package generator

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/jxucoder/autopr/internal/llm"
	"github.com/jxucoder/autopr/model"
)

const systemPrompt = `You are a senior software engineer implementing one step of a larger plan.
For each file you need to create or modify, emit its COMPLETE new content.
Never emit diffs or partial files. An empty list means this step needs no code.
Respond with ONLY a JSON object of the shape:
{"changes": [{"path": "relative/path", "content": "full file content"}]}`

// Generator produces per-step file changes.
type Generator struct {
	client llm.Client
}

// New creates a Generator backed by the given LLM client.
func New(client llm.Client) *Generator {
	return &Generator{client: client}
}

// changesResponse wraps the list so an empty output is unambiguous.
type changesResponse struct {
	Changes []model.FileChange `json:"changes"`
}

func (r *changesResponse) Validate() error {
	for i, c := range r.Changes {
		if strings.TrimSpace(c.Path) == "" {
			return fmt.Errorf("change %d has an empty path", i+1)
		}
	}
	return nil
}

// Generate produces the file changes for one step. The prompt carries the
// base snapshot plus the accumulated overlay from earlier steps so the
// model sees their partial state without re-reading disk. Any LLM or
// schema failure yields an empty list, which the caller treats as a
// no-op step.
func (g *Generator) Generate(ctx context.Context, step model.Step, accumulated *model.AccumulatedChanges, snapshot, codeRules string) []model.FileChange {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Current step: %s\n%s\n\nDetailed plan:\n%s\n", step.Name, step.Description, step.Plan)
	sb.WriteString("\nCode rules:\n")
	sb.WriteString(codeRules)
	sb.WriteString("\n\nRepository snapshot:\n")
	sb.WriteString(snapshot)

	if accumulated != nil && accumulated.Len() > 0 {
		sb.WriteString("\n\nFiles already changed by earlier steps (these contents override the snapshot):\n")
		for _, c := range accumulated.Changes() {
			fmt.Fprintf(&sb, "\n%s\n---\n%s\n", c.Path, c.Content)
		}
	}

	var resp changesResponse
	err := llm.Generate(ctx, g.client, systemPrompt, sb.String(), llm.Options{}, &resp)
	if err != nil {
		log.Printf("generator: change generation failed for step %q: %v", step.Name, err)
		return nil
	}
	return resp.Changes
}
