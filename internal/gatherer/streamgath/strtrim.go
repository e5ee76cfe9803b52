package streamgath

import (
	"strings"
)

// trimStrToRect cuts s to at most maxHeight lines of maxWidth bytes,
// marking every cut with "[...]".
func trimStrToRect(s string, maxHeight int, maxWidth int) string {
	if s == "" {
		return ""
	}
	lines := strings.Split(s, "\n")
	if len(lines) > maxHeight {
		lines = append(lines[:maxHeight], "[...]")
	}
	var sb strings.Builder
	for i, line := range lines {
		if i > 0 {
			sb.WriteByte('\n')
		}
		if len(line) > maxWidth {
			sb.WriteString(line[:maxWidth])
			sb.WriteString("[...]")
		} else {
			sb.WriteString(line)
		}
	}
	return sb.String()
}
