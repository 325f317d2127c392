package gitcli

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jxucoder/autopr/model"
)

// commandTimeout bounds every git invocation.
const commandTimeout = 2 * time.Minute

// Git is the version-control driver for one working tree.
type Git struct {
	runner Runner
	dir    string
}

// New creates a driver for the repository at dir.
func New(dir string) *Git {
	return &Git{runner: ExecRunner{}, dir: dir}
}

// NewWithRunner creates a driver with a custom command runner.
func NewWithRunner(dir string, r Runner) *Git {
	return &Git{runner: r, dir: dir}
}

// Dir returns the working tree path.
func (g *Git) Dir() string {
	return g.dir
}

func (g *Git) run(ctx context.Context, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()
	return g.runner.Run(ctx, g.dir, "git", args...)
}

// SwitchToBranch checks out the base branch, fast-forwards it from its
// remote, then switches to the named branch. If the branch already
// exists on the remote, the local branch tracks it and is rebased onto
// the remote head; otherwise it is created from base.
func (g *Git) SwitchToBranch(ctx context.Context, name, base string) error {
	if _, err := g.run(ctx, "checkout", base); err != nil {
		return fmt.Errorf("checking out base %s: %w", base, err)
	}
	if _, err := g.run(ctx, "pull", "--ff-only", "origin", base); err != nil {
		log.Printf("gitcli: fast-forward of %s failed, continuing with local tip: %v", base, err)
	}

	if g.remoteBranchExists(ctx, name) {
		if _, err := g.run(ctx, "checkout", name); err != nil {
			if _, err := g.run(ctx, "checkout", "-b", name, "origin/"+name); err != nil {
				return fmt.Errorf("tracking remote branch %s: %w", name, err)
			}
		}
		if _, err := g.run(ctx, "rebase", "origin/"+name); err != nil {
			return fmt.Errorf("rebasing onto origin/%s: %w", name, err)
		}
		return nil
	}

	if _, err := g.run(ctx, "checkout", "-b", name); err != nil {
		return fmt.Errorf("creating branch %s: %w", name, err)
	}
	return nil
}

func (g *Git) remoteBranchExists(ctx context.Context, name string) bool {
	out, err := g.run(ctx, "ls-remote", "--heads", "origin", name)
	return err == nil && strings.TrimSpace(out) != ""
}

// Commit stages everything and commits with the given message. It returns
// false without error when there is nothing to commit.
func (g *Git) Commit(ctx context.Context, message string) (bool, error) {
	if _, err := g.run(ctx, "add", "-A"); err != nil {
		return false, fmt.Errorf("staging changes: %w", err)
	}

	status, err := g.run(ctx, "status", "--porcelain")
	if err != nil {
		return false, fmt.Errorf("checking status: %w", err)
	}
	if strings.TrimSpace(status) == "" {
		return false, nil
	}

	if _, err := g.run(ctx, "commit", "-m", message); err != nil {
		return false, fmt.Errorf("committing: %w", err)
	}
	return true, nil
}

// Push publishes the branch to origin. If the remote branch already
// exists, the local branch is rebased onto it first so the push never
// needs force.
func (g *Git) Push(ctx context.Context, branch string) error {
	if g.remoteBranchExists(ctx, branch) {
		if _, err := g.run(ctx, "fetch", "origin", branch); err != nil {
			return fmt.Errorf("fetching origin/%s: %w", branch, err)
		}
		if _, err := g.run(ctx, "rebase", "origin/"+branch); err != nil {
			return fmt.Errorf("rebasing onto origin/%s: %w", branch, err)
		}
		if _, err := g.run(ctx, "push", "origin", branch); err != nil {
			return fmt.Errorf("pushing branch %s: %w", branch, err)
		}
		return nil
	}
	if _, err := g.run(ctx, "push", "-u", "origin", branch); err != nil {
		return fmt.Errorf("pushing branch %s: %w", branch, err)
	}
	return nil
}

// CurrentBranch returns the checked-out branch name.
func (g *Git) CurrentBranch(ctx context.Context) (string, error) {
	out, err := g.run(ctx, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", fmt.Errorf("resolving current branch: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// WriteFiles applies full-content file changes to the working tree,
// creating parent directories as needed.
func (g *Git) WriteFiles(changes []model.FileChange) error {
	for _, c := range changes {
		path := filepath.Join(g.dir, filepath.FromSlash(c.Path))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("creating directory for %s: %w", c.Path, err)
		}
		if err := os.WriteFile(path, []byte(c.Content), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", c.Path, err)
		}
	}
	return nil
}

// RemoveFile deletes a file from the working tree if it exists.
func (g *Git) RemoveFile(relPath string) error {
	path := filepath.Join(g.dir, filepath.FromSlash(relPath))
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing %s: %w", relPath, err)
	}
	return nil
}

// ReadFile reads a working-tree file. Missing files return ok=false.
func (g *Git) ReadFile(relPath string) (string, bool, error) {
	path := filepath.Join(g.dir, filepath.FromSlash(relPath))
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("reading %s: %w", relPath, err)
	}
	return string(data), true, nil
}
