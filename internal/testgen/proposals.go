package testgen

import (
	"strings"

	"github.com/jxucoder/autopr/model"
)

// TestRoot is the directory all generated tests live under.
const TestRoot = "__tests__/unit"

const (
	plainTestExt  = ".test.ts"
	markupTestExt = ".test.tsx"
)

// Postprocess normalizes raw proposals against the changed files:
// every proposal is rewritten under the test root with the extension the
// markup rule demands, invalid renames become creates, and at most one
// proposal survives per base name with the markup variant winning.
func Postprocess(proposals []model.TestProposal, changedFiles []model.FileDiff) []model.TestProposal {
	markupBases := make(map[string]bool)
	plainBases := make(map[string]bool)
	for _, f := range changedFiles {
		if f.Excluded {
			continue
		}
		base := baseName(f.Path)
		if isMarkupFile(f) {
			markupBases[base] = true
		} else {
			plainBases[base] = true
		}
	}

	type slot struct {
		index  int
		markup bool
	}
	byBase := make(map[string]slot)
	var out []model.TestProposal

	for _, p := range proposals {
		base := baseName(p.Path)
		if base == "" {
			continue
		}

		proposedMarkup := strings.HasSuffix(p.Path, markupTestExt) || strings.HasSuffix(p.Path, ".test.jsx")
		markup := proposedMarkup
		switch {
		case markupBases[base]:
			markup = true
		case plainBases[base]:
			markup = false
		}

		ext := plainTestExt
		if markup {
			ext = markupTestExt
		}
		p.Path = TestRoot + "/" + base + ext

		if p.Action == "" {
			p.Action = model.TestActionCreate
		}
		if p.Action == model.TestActionRename && (p.OldPath == "" || p.OldPath == p.Path) {
			p.Action = model.TestActionCreate
			p.OldPath = ""
		}

		if prev, seen := byBase[base]; seen {
			if proposedMarkup && !prev.markup {
				out[prev.index] = p
				byBase[base] = slot{index: prev.index, markup: true}
			}
			continue
		}
		byBase[base] = slot{index: len(out), markup: proposedMarkup}
		out = append(out, p)
	}

	return out
}

// isMarkupFile reports whether a changed file is component markup, by
// extension or by a react import in its content.
func isMarkupFile(f model.FileDiff) bool {
	if strings.HasSuffix(f.Path, ".tsx") || strings.HasSuffix(f.Path, ".jsx") {
		return true
	}
	for _, body := range []string{f.Content, f.RawPatch} {
		if strings.Contains(body, `from "react"`) ||
			strings.Contains(body, "from 'react'") ||
			strings.Contains(body, `require("react")`) {
			return true
		}
	}
	return false
}

// baseName extracts the base name of a source or test path:
// "src/Widget.tsx" and "__tests__/unit/Widget.test.tsx" both map to
// "Widget".
func baseName(path string) string {
	name := path
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	for _, suffix := range []string{".test.tsx", ".test.ts", ".test.jsx", ".test.js"} {
		if strings.HasSuffix(name, suffix) {
			return name[:len(name)-len(suffix)]
		}
	}
	if i := strings.LastIndex(name, "."); i > 0 {
		name = name[:i]
	}
	return name
}
