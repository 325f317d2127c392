// Package snapshot renders a repository working tree as a single text
// document suitable for inclusion in an LLM prompt.
package snapshot

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// MaxFileBytes is the per-file content cap. Files larger than this are
// truncated and marked.
const MaxFileBytes = 20000

// TruncationMarker is appended to the content of capped files.
const TruncationMarker = "\n... [truncated]"

var ignoredDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	".next":        true,
	"dist":         true,
	"build":        true,
	"out":          true,
	".vercel":      true,
	"vendor":       true,
	"__pycache__":  true,
}

var ignoredFiles = map[string]bool{
	"package-lock.json": true,
	"yarn.lock":         true,
	"pnpm-lock.yaml":    true,
	"bun.lockb":         true,
	"go.sum":            true,
	"Gemfile.lock":      true,
	"poetry.lock":       true,
	"Cargo.lock":        true,
}

// File is one file captured in a snapshot.
type File struct {
	Path    string
	Content string
}

// Capture walks the tree rooted at dir and returns the non-ignored files
// in sorted path order. File contents are capped at MaxFileBytes.
func Capture(dir string) ([]File, error) {
	var files []File

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if path != dir && ignoredDirs[name] {
				return filepath.SkipDir
			}
			return nil
		}
		if ignoredFiles[name] {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}

		content := string(data)
		if len(content) > MaxFileBytes {
			content = content[:MaxFileBytes] + TruncationMarker
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}

		files = append(files, File{Path: filepath.ToSlash(rel), Content: content})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking repository: %w", err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// Render formats captured files as a prompt-ready document. Each file
// appears as its path, a separator line, and its content.
func Render(files []File) string {
	sections := make([]string, 0, len(files))
	for _, f := range files {
		sections = append(sections, fmt.Sprintf("%s\n---\n%s", f.Path, f.Content))
	}
	return strings.Join(sections, "\n\n")
}

// Text captures dir and renders it in one call.
func Text(dir string) (string, error) {
	files, err := Capture(dir)
	if err != nil {
		return "", err
	}
	return Render(files), nil
}
