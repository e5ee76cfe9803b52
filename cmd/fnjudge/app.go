package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/programme-lv/fnjudge/internal/compiler"
	"github.com/programme-lv/fnjudge/internal/environment"
	"github.com/programme-lv/fnjudge/internal/governor"
	"github.com/programme-lv/fnjudge/internal/tester"
	"github.com/programme-lv/fnjudge/internal/worker"
	"github.com/urfave/cli/v3"
)

// app holds the components every command wires together.
type app struct {
	cfg    environment.Config
	log    *slog.Logger
	gov    *governor.Governor
	tester *tester.Tester
	worker *worker.Worker
}

func newApp(cmd *cli.Command) (*app, error) {
	cfg, err := environment.Load(cmd.String("config"))
	if err != nil {
		return nil, err
	}
	if lvl := cmd.String("log-level"); lvl != "" {
		cfg.LogLevel = lvl
	}
	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.Compiler.Workspace, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	clang := &compiler.Clang{
		Path:    cfg.Compiler.Clang,
		Sysroot: cfg.Compiler.Sysroot,
		Timeout: cfg.Compiler.Timeout.Std(),
		Flags:   cfg.Compiler.Flags,
	}
	pipeline := compiler.New(cfg.Compiler.Workspace, clang, log.With("component", "compiler"))

	gov := governor.New(governor.Config{
		MemoryLimit:  cfg.Governor.MemoryMiB << 20,
		MaxInstances: cfg.Governor.MaxInstances,
		Timeout:      cfg.Governor.CallTimeout.Std(),
		EpochTick:    cfg.Governor.EpochTick.Std(),
	}, log.With("component", "governor"))

	t := tester.NewTester(pipeline, gov, tester.Config{
		FuelMultiplier:       cfg.Tester.FuelMultiplier,
		CustomFuelMultiplier: cfg.Tester.CustomFuelMultiplier,
	}, log.With("component", "tester"))

	w := worker.New(t, worker.Config{
		RunTimeout:      cfg.Jobs.RunTimeout.Std(),
		GenerateTimeout: cfg.Jobs.GenerateTimeout.Std(),
		CustomTimeout:   cfg.Jobs.CustomTimeout.Std(),
		MaxConcurrent:   cfg.Jobs.MaxConcurrent,
	}, log.With("component", "worker"))

	return &app{cfg: cfg, log: log, gov: gov, tester: t, worker: w}, nil
}

func (a *app) Close() {
	a.gov.Close()
}

func newLogger(level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      lvl,
		TimeFormat: time.TimeOnly,
	})), nil
}
