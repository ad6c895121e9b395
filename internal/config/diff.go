package config

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// DiffLines returns the lines that changed between two versions of a config
// file, prefixed with "- " for removed lines and "+ " for added ones.
// Unchanged lines are omitted.
func DiffLines(oldText, newText string) []string {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(oldText, newText)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var out []string
	for _, d := range diffs {
		var prefix string
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			prefix = "- "
		case diffmatchpatch.DiffInsert:
			prefix = "+ "
		default:
			continue
		}
		for _, line := range strings.Split(strings.TrimSuffix(d.Text, "\n"), "\n") {
			out = append(out, prefix+line)
		}
	}
	return out
}
