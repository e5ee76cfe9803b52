package compiler

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityNote    Severity = "note"
)

// Diagnostic is a compiler message located in the submitted source, with
// the prelude already subtracted from Line.
type Diagnostic struct {
	Line    int      `json:"line"`
	Column  int      `json:"column"`
	Kind    Severity `json:"kind"`
	Message string   `json:"message"`
}

// CompileError is a source rejected by the compiler, or a module that lacks
// the exports a call needs.
type CompileError struct {
	Diagnostics []Diagnostic
	Stderr      string
}

func (e *CompileError) Error() string {
	for _, d := range e.Diagnostics {
		if d.Kind == SeverityError {
			return fmt.Sprintf("compilation failed: %d:%d: %s", d.Line, d.Column, d.Message)
		}
	}
	return "compilation failed"
}

var locRe = regexp.MustCompile(`^(\d+):(\d+): ([a-z ]+): (.*)$`)

// ParseDiagnostics extracts the diagnostics that point into srcPath from
// compiler stderr. Messages inside the prelude are dropped.
func ParseDiagnostics(stderr, srcPath string) []Diagnostic {
	var out []Diagnostic
	prefix := srcPath + ":"
	for _, line := range strings.Split(stderr, "\n") {
		line = strings.TrimRight(line, "\r")
		if !strings.HasPrefix(line, prefix) {
			continue
		}
		m := locRe.FindStringSubmatch(line[len(prefix):])
		if m == nil {
			continue
		}
		ln, err1 := strconv.Atoi(m[1])
		col, err2 := strconv.Atoi(m[2])
		if err1 != nil || err2 != nil || ln <= PreludeLines {
			continue
		}
		out = append(out, Diagnostic{
			Line:    ln - PreludeLines,
			Column:  col,
			Kind:    severity(m[3]),
			Message: m[4],
		})
	}
	return out
}

func severity(s string) Severity {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return SeverityNote
	}
	switch fields[len(fields)-1] {
	case "error":
		return SeverityError
	case "warning":
		return SeverityWarning
	}
	return SeverityNote
}
