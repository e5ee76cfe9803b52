package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/bytecodealliance/wasmtime-go/v25"
	"github.com/fatih/color"
	"github.com/programme-lv/fnjudge/internal/compiler"
	"github.com/programme-lv/fnjudge/internal/environment"
	"github.com/programme-lv/fnjudge/internal/governor"
	"github.com/programme-lv/fnjudge/pkg/value"
)

type health int

const (
	okay health = iota
	warn
	fail
)

type feedbackRow struct {
	unit    string
	health  health
	message string
}

const probeWat = `
(module
  (memory (export "memory") 1)
  (func (export "malloc") (param i32) (result i32) (i32.const 1024))
  (func (export "add") (param i32 i32) (result i32)
    (i32.add (local.get 0) (local.get 1))))
`

func main() {
	cfg, err := environment.Load(os.Getenv("FNJUDGE_CONFIG"))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	feedback := []feedbackRow{
		ensureWorkspaceOk(cfg.Compiler.Workspace),
		ensureClangOk(cfg.Compiler.Clang),
		ensureSysrootOk(cfg.Compiler.Sysroot),
		ensureRuntimeOk(),
	}
	outputFeedback(feedback)

	for _, row := range feedback {
		if row.health == fail {
			os.Exit(1)
		}
	}
}

func ensureWorkspaceOk(dir string) feedbackRow {
	row := feedbackRow{unit: "Workspace"}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		row.health, row.message = fail, err.Error()
		return row
	}
	f, err := os.CreateTemp(dir, "health-*")
	if err != nil {
		row.health, row.message = fail, err.Error()
		return row
	}
	f.Close()
	os.Remove(f.Name())
	row.message = dir
	return row
}

func ensureClangOk(path string) feedbackRow {
	row := feedbackRow{unit: "Compiler"}
	out, err := exec.Command(path, "--version").CombinedOutput()
	if err != nil {
		row.health, row.message = fail, fmt.Sprintf("%s: %v", path, err)
		return row
	}
	first, _, _ := strings.Cut(string(out), "\n")
	row.message = first
	return row
}

func ensureSysrootOk(sysroot string) feedbackRow {
	row := feedbackRow{unit: "WASI sysroot"}
	if sysroot == "" {
		row.health, row.message = warn, "not configured, relying on the compiler default"
		return row
	}
	if _, err := os.Stat(filepath.Join(sysroot, "include")); err != nil {
		row.health, row.message = fail, err.Error()
		return row
	}
	row.message = sysroot
	return row
}

// ensureRuntimeOk runs a probe module through the same path submissions
// take: export verification, then a metered call.
func ensureRuntimeOk() feedbackRow {
	row := feedbackRow{unit: "Runtime"}
	wasm, err := wasmtime.Wat2Wasm(probeWat)
	if err != nil {
		row.health, row.message = fail, err.Error()
		return row
	}

	dir, err := os.MkdirTemp("", "fnjudge-health-")
	if err != nil {
		row.health, row.message = fail, err.Error()
		return row
	}
	defer os.RemoveAll(dir)
	art := &compiler.Artifact{Path: filepath.Join(dir, "probe.wasm")}
	if err := os.WriteFile(art.Path, wasm, 0o644); err != nil {
		row.health, row.message = fail, err.Error()
		return row
	}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := compiler.New(dir, nil, log).VerifyExports(ctx, art, []string{"add"}); err != nil {
		row.health, row.message = fail, err.Error()
		return row
	}

	gov := governor.New(governor.DefaultConfig(), log)
	defer gov.Close()
	prog, err := gov.Load(art.Path)
	if err != nil {
		row.health, row.message = fail, err.Error()
		return row
	}
	i32 := value.Signature{Kind: value.Int32, Shape: value.Single}
	res, err := prog.Run(ctx, value.Call{
		Name:    "add",
		Args:    []value.Value{value.NewSingle(value.Int32, int32(2)), value.NewSingle(value.Int32, int32(3))},
		Returns: i32,
	}, 0)
	if err != nil {
		row.health, row.message = fail, err.Error()
		return row
	}
	if res.Output.Scalar != int32(5) {
		row.health, row.message = fail, fmt.Sprintf("probe returned %v", res.Output)
		return row
	}
	row.message = fmt.Sprintf("probe call used %d fuel", res.Fuel)
	return row
}

func outputFeedback(feedback []feedbackRow) {
	labels := map[health]string{
		okay: color.HiGreenString("OKAY"),
		warn: color.HiYellowString("WARN"),
		fail: color.HiRedString("ERROR"),
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "UNIT\tMESSAGE\tHEALTH")
	for _, row := range feedback {
		fmt.Fprintf(w, "%s\t%s\t%s\n", row.unit, row.message, labels[row.health])
	}
	w.Flush()
}
