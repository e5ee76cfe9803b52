// Package termgath prints job progress to a terminal.
package termgath

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/programme-lv/fnjudge/api"
)

var (
	pass   = color.New(color.FgGreen, color.Bold).SprintFunc()
	fail   = color.New(color.FgRed, color.Bold).SprintFunc()
	faint  = color.New(color.Faint).SprintFunc()
	header = color.New(color.FgCyan).SprintFunc()
)

type TerminalGatherer struct {
	StartedAt time.Time

	mu  sync.Mutex
	out io.Writer
}

func New(out io.Writer) *TerminalGatherer {
	return &TerminalGatherer{StartedAt: time.Now(), out: out}
}

func (t *TerminalGatherer) printf(format string, args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.out, format, args...)
}

func (t *TerminalGatherer) StartJob(systemInfo string) {
	t.printf("%s\n", header("== Job started =="))
	if systemInfo != "" {
		t.printf("%s\n", faint(systemInfo))
	}
}

func (t *TerminalGatherer) StartCompile(role api.Role) {
	t.printf("-- Compiling %s --\n", role)
}

func (t *TerminalGatherer) FinishCompile(role api.Role, cached bool) {
	if cached {
		t.printf("-- Compiled %s %s --\n", role, faint("(cached)"))
		return
	}
	t.printf("-- Compiled %s --\n", role)
}

func (t *TerminalGatherer) ReachTest(tc api.TestCase) {
	t.printf("-> Test %d %s\n", tc.Index, faint(tc.ID))
}

func (t *TerminalGatherer) FinishTest(o api.TestOutcome) {
	verdict := pass("PASS")
	if !o.Success {
		verdict = fail("FAIL")
	}
	t.printf("<- Test %d %s fuel=%d\n", o.Index, verdict, o.Fuel)
	if o.Error != nil {
		t.printf("   %s\n", *o.Error)
	}
	if !o.Success && !o.Hidden && o.Output != nil {
		t.printf("   expected %s, got %s\n", o.ExpectedOutput, *o.Output)
	}
}

func (t *TerminalGatherer) FinishJob(resp api.JobResponse) {
	dur := time.Since(t.StartedAt).Round(time.Millisecond)
	if resp.Error != nil {
		t.printf("%s %s: %s\n", fail("== Job failed =="), resp.Error.Kind, resp.Error.Message)
		for _, d := range resp.Error.Diagnostics {
			t.printf("   %d:%d: %s: %s\n", d.Line, d.Column, d.Kind, d.Message)
		}
		return
	}
	if r := resp.Result; r != nil {
		summary := fmt.Sprintf("%d passed, %d failed, %d fuel", len(r.PassedTests), len(r.FailedTests), r.TotalRuntime)
		if r.OverallPassed {
			summary = pass(summary)
		} else {
			summary = fail(summary)
		}
		t.printf("%s\n", summary)
		if r.Complexity != nil {
			t.printf("complexity: %s\n", *r.Complexity)
		}
	}
	t.printf("%s\n", header(fmt.Sprintf("== Job finished in %s ==", dur)))
}
