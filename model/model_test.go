package model

import "testing"

func TestTruncateShortString(t *testing.T) {
	got := Truncate("hello", 10)
	if got != "hello" {
		t.Fatalf("expected 'hello', got %q", got)
	}
}

func TestTruncateExactLength(t *testing.T) {
	got := Truncate("hello", 5)
	if got != "hello" {
		t.Fatalf("expected 'hello', got %q", got)
	}
}

func TestTruncateLongString(t *testing.T) {
	got := Truncate("hello world", 8)
	if got != "hello..." {
		t.Fatalf("expected 'hello...', got %q", got)
	}
}

func TestTruncateVerySmallMaxLen(t *testing.T) {
	got := Truncate("hello", 2)
	if got != "he" {
		t.Fatalf("expected 'he', got %q", got)
	}
}

func TestTruncateUnicode(t *testing.T) {
	got := Truncate("こんにちは世界", 6)
	if got != "こんに..." {
		t.Fatalf("expected 'こんに...', got %q", got)
	}
}

func TestIsPlanError(t *testing.T) {
	if !IsPlanError([]Step{{Name: PlanErrorName, Description: "schema mismatch"}}) {
		t.Fatal("expected single PlanError step to be detected")
	}
	if IsPlanError([]Step{{Name: "Add endpoint"}}) {
		t.Fatal("regular plan misdetected as PlanError")
	}
	if IsPlanError([]Step{{Name: PlanErrorName}, {Name: "Add endpoint"}}) {
		t.Fatal("multi-step plan containing PlanError name misdetected")
	}
	if IsPlanError(nil) {
		t.Fatal("empty plan misdetected as PlanError")
	}
}

func TestAccumulatedChangesLastWriteWins(t *testing.T) {
	acc := NewAccumulatedChanges()
	acc.Apply(FileChange{Path: "a.ts", Content: "v1"})
	acc.Apply(FileChange{Path: "b.ts", Content: "v1"})
	acc.Apply(FileChange{Path: "a.ts", Content: "v2"})

	if acc.Len() != 2 {
		t.Fatalf("expected 2 distinct paths, got %d", acc.Len())
	}

	got, ok := acc.Get("a.ts")
	if !ok || got.Content != "v2" {
		t.Fatalf("expected latest content 'v2' for a.ts, got %+v (ok=%v)", got, ok)
	}

	changes := acc.Changes()
	if changes[0].Path != "b.ts" || changes[1].Path != "a.ts" {
		t.Fatalf("expected last-touch order [b.ts a.ts], got %v", changes)
	}
}

func TestAccumulatedChangesApplyAll(t *testing.T) {
	acc := NewAccumulatedChanges()
	acc.ApplyAll([]FileChange{
		{Path: "x.ts", Content: "1"},
		{Path: "y.ts", Content: "1"},
		{Path: "x.ts", Content: "2"},
	})
	if acc.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", acc.Len())
	}
	if c, _ := acc.Get("x.ts"); c.Content != "2" {
		t.Fatalf("expected x.ts content '2', got %q", c.Content)
	}
}

func TestRunStatusConstants(t *testing.T) {
	statuses := []RunStatus{RunPending, RunPlanning, RunStepping, RunFinal, RunComplete, RunError}
	expected := []string{"pending", "planning", "stepping", "final_review", "complete", "error"}
	for i, s := range statuses {
		if string(s) != expected[i] {
			t.Fatalf("expected %q, got %q", expected[i], s)
		}
	}
}

func TestTestActionConstants(t *testing.T) {
	if string(TestActionCreate) != "create" {
		t.Fatalf("expected 'create', got %q", TestActionCreate)
	}
	if string(TestActionUpdate) != "update" {
		t.Fatalf("expected 'update', got %q", TestActionUpdate)
	}
	if string(TestActionRename) != "rename" {
		t.Fatalf("expected 'rename', got %q", TestActionRename)
	}
}
