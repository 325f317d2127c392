package reviewer

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

func sampleContext() model.PRContext {
	return model.PRContext{
		Title:   "Add contact page",
		HeadRef: "agent/20250101_0900",
		BaseRef: "main",
		ChangedFiles: []model.FileDiff{
			{Path: "app/contact/page.tsx", Status: "added", RawPatch: "+<h1>Contact</h1>"},
		},
		CommitMessages: []string{"Step 1: Add contact page"},
	}
}

func TestReviewParsesAnalysis(t *testing.T) {
	c := &fakeClient{response: `{
		"summary": "Looks solid.",
		"file_analyses": [{"path": "app/contact/page.tsx", "analysis": "New page, no issues."}],
		"overall_suggestions": ["Add a page title."]
	}`}

	got := New(c).Review(context.Background(), sampleContext())
	if got.Summary != "Looks solid." {
		t.Errorf("unexpected summary %q", got.Summary)
	}
	if len(got.FileAnalyses) != 1 || got.FileAnalyses[0].Path != "app/contact/page.tsx" {
		t.Errorf("unexpected file analyses %+v", got.FileAnalyses)
	}
	if len(got.OverallSuggestions) != 1 {
		t.Errorf("unexpected suggestions %+v", got.OverallSuggestions)
	}
}

func TestReviewNeverFails(t *testing.T) {
	c := &fakeClient{err: fmt.Errorf("provider unavailable")}

	got := New(c).Review(context.Background(), sampleContext())
	if got.Summary != FallbackSummary {
		t.Errorf("expected fallback summary, got %q", got.Summary)
	}
	if len(got.FileAnalyses) != 0 || len(got.OverallSuggestions) != 0 {
		t.Errorf("fallback must carry empty lists, got %+v", got)
	}
}

func TestReviewPromptIncludesPatches(t *testing.T) {
	c := &fakeClient{response: `{"summary": "ok", "file_analyses": [], "overall_suggestions": []}`}
	New(c).Review(context.Background(), sampleContext())

	if !strings.Contains(c.lastUser, "+<h1>Contact</h1>") {
		t.Error("expected raw patch in prompt")
	}
	if !strings.Contains(c.lastUser, "Step 1: Add contact page") {
		t.Error("expected commit message in prompt")
	}
}

func TestMarkdownRendering(t *testing.T) {
	body := Markdown(model.ReviewAnalysis{
		Summary:            "Solid change.",
		FileAnalyses:       []model.FileAnalysis{{Path: "a.ts", Analysis: "fine"}},
		OverallSuggestions: []string{"add tests"},
	})

	for _, want := range []string{"## AI Code Review", "Solid change.", "**a.ts**", "add tests"} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in rendered review:\n%s", want, body)
		}
	}
}
