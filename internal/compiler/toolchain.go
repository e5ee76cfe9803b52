package compiler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// Toolchain turns a C++ source file into a wasm32-wasi reactor module.
type Toolchain interface {
	Compile(ctx context.Context, src, out string) (*Output, error)
}

// Output describes a finished compiler process. A non-zero ExitCode is a
// rejected source, not an error of the toolchain.
type Output struct {
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// Clang invokes clang++ from a WASI SDK.
type Clang struct {
	Path    string
	Sysroot string
	Timeout time.Duration
	Flags   []string
}

func (c *Clang) Args(src, out string) []string {
	args := []string{
		"--target=wasm32-wasi",
		"-O2",
		"-std=c++17",
		"-fno-exceptions",
		"-mexec-model=reactor",
		"-Wl,--export-all",
		"-Wl,--no-entry",
		"-Wl,--export=malloc",
		"-Wl,--export=free",
	}
	if c.Sysroot != "" {
		args = append(args, "--sysroot="+c.Sysroot)
	}
	args = append(args, c.Flags...)
	return append(args, "-o", out, src)
}

func (c *Clang) Compile(ctx context.Context, src, out string) (*Output, error) {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.Path, c.Args(src, out)...)
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	res := &Output{Stderr: stderr.String(), Duration: time.Since(start)}
	if ctx.Err() != nil {
		return nil, fmt.Errorf("compiler stopped after %s: %w", res.Duration, ctx.Err())
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	}
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", c.Path, err)
	}
	return res, nil
}
