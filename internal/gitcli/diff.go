package gitcli

import (
	"context"
	"fmt"
	"strings"

	"github.com/sourcegraph/go-diff/diff"

	"github.com/jxucoder/autopr/model"
)

// maxDiffContentBytes caps the working-tree content attached to each
// changed file.
const maxDiffContentBytes = 20000

var excludedDiffFiles = map[string]bool{
	"package-lock.json": true,
	"yarn.lock":         true,
	"pnpm-lock.yaml":    true,
	"bun.lockb":         true,
	"go.sum":            true,
	"Gemfile.lock":      true,
	"poetry.lock":       true,
	"Cargo.lock":        true,
}

// InitialCommitMessage is the sentinel message returned by Partial when
// HEAD has no parent to diff against.
const InitialCommitMessage = "(initial commit)"

// Partial extracts the diff of the most recent commit (HEAD~1..HEAD)
// together with its commit message. When HEAD has no parent, it returns
// an empty diff with a sentinel message.
func (g *Git) Partial(ctx context.Context) ([]model.FileDiff, []string, error) {
	if _, err := g.run(ctx, "rev-parse", "--verify", "HEAD~1"); err != nil {
		return nil, []string{InitialCommitMessage}, nil
	}

	raw, err := g.run(ctx, "diff", "HEAD~1", "HEAD")
	if err != nil {
		return nil, nil, fmt.Errorf("diffing last commit: %w", err)
	}

	msg, err := g.run(ctx, "log", "-1", "--format=%s", "HEAD")
	if err != nil {
		return nil, nil, fmt.Errorf("reading last commit message: %w", err)
	}

	files, err := g.parseDiff(raw)
	if err != nil {
		return nil, nil, err
	}
	return files, []string{strings.TrimSpace(msg)}, nil
}

// Full extracts the cumulative diff of the branch against its merge base
// with the base branch, plus all commit messages in the range.
func (g *Git) Full(ctx context.Context, baseBranch string) ([]model.FileDiff, []string, error) {
	baseRef := "origin/" + baseBranch
	if _, err := g.run(ctx, "rev-parse", "--verify", baseRef); err != nil {
		baseRef = baseBranch
	}

	mergeBase, err := g.run(ctx, "merge-base", baseRef, "HEAD")
	if err != nil {
		return nil, nil, fmt.Errorf("finding merge base with %s: %w", baseRef, err)
	}
	mergeBase = strings.TrimSpace(mergeBase)

	raw, err := g.run(ctx, "diff", mergeBase, "HEAD")
	if err != nil {
		return nil, nil, fmt.Errorf("diffing against merge base: %w", err)
	}

	logOut, err := g.run(ctx, "log", "--format=%s", mergeBase+"..HEAD")
	if err != nil {
		return nil, nil, fmt.Errorf("reading commit messages: %w", err)
	}

	var messages []string
	for _, line := range strings.Split(logOut, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			messages = append(messages, line)
		}
	}

	files, err := g.parseDiff(raw)
	if err != nil {
		return nil, nil, err
	}
	return files, messages, nil
}

// parseDiff turns raw unified diff output into per-file entries with
// stats and working-tree content attached.
func (g *Git) parseDiff(raw string) ([]model.FileDiff, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}

	parsed, err := diff.ParseMultiFileDiff([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("parsing diff: %w", err)
	}

	var files []model.FileDiff
	for _, fd := range parsed {
		fdiff := model.FileDiff{
			Path:   diffPath(fd),
			Status: diffStatus(fd),
		}

		stat := fd.Stat()
		fdiff.Additions = int(stat.Added + stat.Changed)
		fdiff.Deletions = int(stat.Deleted + stat.Changed)

		patch, err := diff.PrintFileDiff(fd)
		if err != nil {
			return nil, fmt.Errorf("printing diff for %s: %w", fdiff.Path, err)
		}
		fdiff.RawPatch = string(patch)

		if excludedDiffFiles[baseName(fdiff.Path)] {
			fdiff.Excluded = true
			files = append(files, fdiff)
			continue
		}

		if fdiff.Status != "deleted" {
			content, ok, err := g.ReadFile(fdiff.Path)
			if err != nil {
				return nil, err
			}
			if ok {
				if len(content) > maxDiffContentBytes {
					content = content[:maxDiffContentBytes] + "\n... [truncated]"
				}
				fdiff.Content = content
			}
		}

		files = append(files, fdiff)
	}
	return files, nil
}

func diffPath(fd *diff.FileDiff) string {
	name := fd.NewName
	if name == "/dev/null" {
		name = fd.OrigName
	}
	return strings.TrimPrefix(strings.TrimPrefix(name, "a/"), "b/")
}

func diffStatus(fd *diff.FileDiff) string {
	switch {
	case fd.OrigName == "/dev/null":
		return "added"
	case fd.NewName == "/dev/null":
		return "deleted"
	default:
		return "modified"
	}
}

func baseName(path string) string {
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return path
}
