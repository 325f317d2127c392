package testgen

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/jxucoder/autopr/internal/llm"
	"github.com/jxucoder/autopr/model"
)

type fakeClient struct {
	response string
	err      error
	lastUser string
}

func (f *fakeClient) Complete(_ context.Context, _, user string, _ llm.Options) (string, error) {
	f.lastUser = user
	return f.response, f.err
}

func sampleTestContext() model.PRContextWithTests {
	return model.PRContextWithTests{
		PRContext: model.PRContext{
			Title:   "Add widget",
			HeadRef: "agent/20250101_0900",
			BaseRef: "main",
			ChangedFiles: []model.FileDiff{
				{Path: "components/Widget.tsx", Status: "added", RawPatch: "+export function Widget() {}"},
			},
		},
	}
}

func TestGateParsesDecision(t *testing.T) {
	c := &fakeClient{response: `{"should_generate": true, "reasoning": "new behavior", "recommendation": "test the widget render"}`}

	got := New(c).Gate(context.Background(), sampleTestContext(), nil)
	if !got.ShouldGenerate {
		t.Error("expected should_generate=true")
	}
	if got.Reasoning != "new behavior" {
		t.Errorf("unexpected reasoning %q", got.Reasoning)
	}
}

func TestGateDefaultsToFalseOnFailure(t *testing.T) {
	c := &fakeClient{err: fmt.Errorf("provider unavailable")}

	got := New(c).Gate(context.Background(), sampleTestContext(), nil)
	if got.ShouldGenerate {
		t.Error("expected should_generate=false on failure")
	}
	if got.Reasoning != GatingErrorReason {
		t.Errorf("expected sentinel reason, got %q", got.Reasoning)
	}
}

func TestGenerateProposalsArePostprocessed(t *testing.T) {
	c := &fakeClient{response: `{"proposals": [
		{"path": "Widget.test.ts", "test_content": "test('renders', () => {})", "action": "create"}
	]}`}

	got := New(c).Generate(context.Background(), sampleTestContext(), "")
	if len(got) != 1 {
		t.Fatalf("expected 1 proposal, got %d", len(got))
	}
	if got[0].Path != "__tests__/unit/Widget.test.tsx" {
		t.Errorf("expected markup path under test root, got %q", got[0].Path)
	}
}

func TestGenerateFailureYieldsEmptyList(t *testing.T) {
	c := &fakeClient{err: fmt.Errorf("provider unavailable")}

	got := New(c).Generate(context.Background(), sampleTestContext(), "")
	if got != nil {
		t.Fatalf("expected nil proposals, got %v", got)
	}
}

func TestGeneratePromptNamesTestingLibraries(t *testing.T) {
	c := &fakeClient{response: `{"proposals": []}`}
	tg := New(c)
	tg.Generate(context.Background(), sampleTestContext(), "")

	if !strings.Contains(generateSystemPrompt, "jest") {
		t.Error("generation prompt must name jest")
	}
	if !strings.Contains(generateSystemPrompt, "@testing-library/react") {
		t.Error("generation prompt must name @testing-library/react")
	}
}

func TestRepairIncludesFailingOutputVerbatim(t *testing.T) {
	c := &fakeClient{response: `{"proposals": []}`}
	failing := "FAIL __tests__/unit/Widget.test.tsx\n  Cannot find module './Widget'"

	New(c).Repair(context.Background(), sampleTestContext(), failing, 2)

	if !strings.Contains(c.lastUser, failing) {
		t.Error("expected failing output verbatim in prompt")
	}
	if !strings.Contains(c.lastUser, "#2") {
		t.Error("expected attempt number in prompt")
	}
}

func TestPostprocessMarkupWinsDedup(t *testing.T) {
	changed := []model.FileDiff{
		{Path: "components/Widget.tsx", RawPatch: "+import React from 'react'"},
	}
	proposals := []model.TestProposal{
		{Path: "__tests__/unit/Widget.test.ts", TestContent: "plain", Action: model.TestActionCreate},
		{Path: "__tests__/unit/Widget.test.tsx", TestContent: "markup", Action: model.TestActionCreate},
	}

	got := Postprocess(proposals, changed)
	if len(got) != 1 {
		t.Fatalf("expected 1 surviving proposal, got %d", len(got))
	}
	if got[0].Path != "__tests__/unit/Widget.test.tsx" {
		t.Errorf("expected markup variant to win, got %q", got[0].Path)
	}
	if got[0].TestContent != "markup" {
		t.Errorf("expected markup content to survive, got %q", got[0].TestContent)
	}
}

func TestPostprocessPlainFileGetsPlainExtension(t *testing.T) {
	changed := []model.FileDiff{
		{Path: "lib/math.ts", RawPatch: "+export const add = (a, b) => a + b"},
	}
	proposals := []model.TestProposal{
		{Path: "math.test.tsx", TestContent: "t", Action: model.TestActionCreate},
	}

	got := Postprocess(proposals, changed)
	if got[0].Path != "__tests__/unit/math.test.ts" {
		t.Errorf("expected plain extension, got %q", got[0].Path)
	}
}

func TestPostprocessReactImportForcesMarkup(t *testing.T) {
	changed := []model.FileDiff{
		{Path: "components/Card.ts", Content: `import React from "react"`},
	}
	proposals := []model.TestProposal{
		{Path: "Card.test.ts", TestContent: "t", Action: model.TestActionCreate},
	}

	got := Postprocess(proposals, changed)
	if got[0].Path != "__tests__/unit/Card.test.tsx" {
		t.Errorf("expected markup extension from react import, got %q", got[0].Path)
	}
}

func TestPostprocessRewritesPathUnderTestRoot(t *testing.T) {
	proposals := []model.TestProposal{
		{Path: "src/utils.test.ts", TestContent: "t", Action: model.TestActionCreate},
	}

	got := Postprocess(proposals, nil)
	if !strings.HasPrefix(got[0].Path, TestRoot+"/") {
		t.Errorf("expected path under %s, got %q", TestRoot, got[0].Path)
	}
}

func TestPostprocessInvalidRenameBecomesCreate(t *testing.T) {
	proposals := []model.TestProposal{
		{Path: "utils.test.ts", TestContent: "t", Action: model.TestActionRename, OldPath: ""},
	}

	got := Postprocess(proposals, nil)
	if got[0].Action != model.TestActionCreate {
		t.Errorf("expected rename without old_path downgraded to create, got %q", got[0].Action)
	}
}

func TestPostprocessValidRenameKept(t *testing.T) {
	proposals := []model.TestProposal{
		{Path: "utils.test.ts", TestContent: "t", Action: model.TestActionRename, OldPath: "__tests__/unit/util.test.ts"},
	}

	got := Postprocess(proposals, nil)
	if got[0].Action != model.TestActionRename {
		t.Errorf("expected rename kept, got %q", got[0].Action)
	}
	if got[0].OldPath != "__tests__/unit/util.test.ts" {
		t.Errorf("unexpected old path %q", got[0].OldPath)
	}
}
