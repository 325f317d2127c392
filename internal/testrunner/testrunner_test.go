package testrunner

import (
	"context"
	"strings"
	"testing"
)

func TestRunPassingCommand(t *testing.T) {
	r := New(t.TempDir(), "echo all tests passed")

	res, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Failed {
		t.Error("expected passing run")
	}
	if !strings.Contains(res.Output, "all tests passed") {
		t.Errorf("expected captured stdout, got %q", res.Output)
	}
}

func TestRunFailingCommand(t *testing.T) {
	r := New(t.TempDir(), "echo assertion failed >&2; exit 1")

	res, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run must not error on non-zero exit: %v", err)
	}
	if !res.Failed {
		t.Error("expected failing run")
	}
	if !strings.Contains(res.Output, "assertion failed") {
		t.Errorf("expected captured stderr, got %q", res.Output)
	}
}

func TestRunCapturesBothStreams(t *testing.T) {
	r := New(t.TempDir(), "echo to-stdout; echo to-stderr >&2")

	res, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !strings.Contains(res.Output, "to-stdout") || !strings.Contains(res.Output, "to-stderr") {
		t.Errorf("expected both streams captured, got %q", res.Output)
	}
}
