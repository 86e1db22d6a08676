package types

import (
	"fmt"
	"strings"
)

// UnifiedDiff renders a minimal unified-diff-style view of a single
// substitution. It exists for human review surfaces, not for patch
// tooling, so hunk offsets are best-effort.
func UnifiedDiff(filePath, original, fixed string, lineStart int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "--- a/%s\n+++ b/%s\n", filePath, filePath)
	origLines := strings.Split(original, "\n")
	fixedLines := strings.Split(fixed, "\n")
	fmt.Fprintf(&b, "@@ -%d,%d +%d,%d @@\n", lineStart, len(origLines), lineStart, len(fixedLines))
	for _, line := range origLines {
		b.WriteString("-" + line + "\n")
	}
	for _, line := range fixedLines {
		b.WriteString("+" + line + "\n")
	}
	return b.String()
}

// CountLines returns how many lines a snippet spans.
func CountLines(s string) int {
	if s == "" {
		return 1
	}
	return strings.Count(s, "\n") + 1
}
