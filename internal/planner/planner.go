// Package planner turns a feature request and a repository snapshot into
// an ordered implementation plan.
package planner

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/jxucoder/autopr/internal/llm"
	"github.com/jxucoder/autopr/model"
)

const systemPrompt = `You are a senior software engineer planning the implementation of a feature request.
Break the feature into a small ordered list of concrete implementation steps.
Each step must be independently committable and build on the previous steps.
Respond with ONLY a JSON object of the shape:
{"steps": [{"name": "...", "description": "...", "plan": "..."}]}`

// Planner produces implementation plans.
type Planner struct {
	client llm.Client
}

// New creates a Planner backed by the given LLM client.
func New(client llm.Client) *Planner {
	return &Planner{client: client}
}

type stepsResponse struct {
	Steps []model.Step `json:"steps"`
}

func (r *stepsResponse) Validate() error {
	if len(r.Steps) == 0 {
		return fmt.Errorf("plan must contain at least one step")
	}
	for i, s := range r.Steps {
		if strings.TrimSpace(s.Name) == "" {
			return fmt.Errorf("step %d has an empty name", i+1)
		}
	}
	return nil
}

// Plan produces the ordered step list for a feature request. It never
// returns an error: any LLM or schema failure yields a single sentinel
// PlanError step the caller treats as terminal.
func (p *Planner) Plan(ctx context.Context, featureRequest, snapshot, codeRules string) []model.Step {
	var sb strings.Builder
	sb.WriteString("Feature request:\n")
	sb.WriteString(featureRequest)
	sb.WriteString("\n\nCode rules:\n")
	sb.WriteString(codeRules)
	sb.WriteString("\n\nRepository snapshot:\n")
	sb.WriteString(snapshot)

	var resp stepsResponse
	err := llm.Generate(ctx, p.client, systemPrompt, sb.String(), llm.Options{HighReasoning: true}, &resp)
	if err != nil {
		log.Printf("planner: plan generation failed: %v", err)
		return []model.Step{{
			Name:        model.PlanErrorName,
			Description: "The planner could not produce a usable plan.",
			Plan:        err.Error(),
		}}
	}

	return resp.Steps
}
