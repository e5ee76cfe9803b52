// Package governor runs calls against compiled guest modules, each call in
// a fresh wasmtime instance with memory limits, a fuel budget and a wall
// clock bound.
package governor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/bytecodealliance/wasmtime-go/v25"
	"github.com/programme-lv/fnjudge/internal/abi"
	"github.com/programme-lv/fnjudge/internal/invoke"
	"github.com/programme-lv/fnjudge/pkg/value"
)

// DefaultFuel is the budget of calls that carry none of their own.
const DefaultFuel uint64 = 1 << 48

type Config struct {
	// MemoryLimit caps the linear memory of one instance, in bytes.
	MemoryLimit int64
	// MaxInstances caps the instances a single store may create.
	MaxInstances int64
	// Timeout bounds one call on the wall clock. Zero leaves only the
	// context deadline.
	Timeout time.Duration
	// EpochTick is the granularity of background interruption.
	EpochTick time.Duration
}

func DefaultConfig() Config {
	return Config{
		MemoryLimit:  512 << 20,
		MaxInstances: 4,
		Timeout:      10 * time.Second,
		EpochTick:    10 * time.Millisecond,
	}
}

// Governor owns the wasmtime engine shared by all programs.
type Governor struct {
	cfg    Config
	engine *wasmtime.Engine
	log    *slog.Logger

	stop     chan struct{}
	stopOnce sync.Once
}

func New(cfg Config, log *slog.Logger) *Governor {
	if cfg.EpochTick <= 0 {
		cfg.EpochTick = DefaultConfig().EpochTick
	}
	wc := wasmtime.NewConfig()
	wc.SetConsumeFuel(true)
	wc.SetEpochInterruption(true)

	g := &Governor{
		cfg:    cfg,
		engine: wasmtime.NewEngineWithConfig(wc),
		log:    log,
		stop:   make(chan struct{}),
	}
	go g.tick()
	return g
}

func (g *Governor) tick() {
	t := time.NewTicker(g.cfg.EpochTick)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			g.engine.IncrementEpoch()
		case <-g.stop:
			return
		}
	}
}

// Close stops background interruption. Programs must not run afterwards.
func (g *Governor) Close() {
	g.stopOnce.Do(func() { close(g.stop) })
}

// Program is a compiled module that can be run any number of times.
type Program struct {
	gov     *Governor
	module  *wasmtime.Module
	exports []string
}

// Load compiles the module at path.
func (g *Governor) Load(path string) (*Program, error) {
	module, err := wasmtime.NewModuleFromFile(g.engine, path)
	if err != nil {
		return nil, &InternalError{Msg: "load module " + path, Err: err}
	}
	return g.program(module), nil
}

// Compile compiles an in-memory module.
func (g *Governor) Compile(wasm []byte) (*Program, error) {
	module, err := wasmtime.NewModule(g.engine, wasm)
	if err != nil {
		return nil, &InternalError{Msg: "compile module", Err: err}
	}
	return g.program(module), nil
}

func (g *Governor) program(module *wasmtime.Module) *Program {
	var exports []string
	for _, e := range module.Exports() {
		if e.Type().FuncType() != nil {
			exports = append(exports, e.Name())
		}
	}
	return &Program{gov: g, module: module, exports: exports}
}

// Exports lists the functions the module exports.
func (p *Program) Exports() []string {
	return p.exports
}

type Result struct {
	Output value.Value
	Fuel   uint64
	Stdout string
}

type runOptions struct {
	timeout time.Duration
	stdout  bool
}

type RunOption func(*runOptions)

// WithStdout captures what the guest writes to standard output.
func WithStdout() RunOption {
	return func(o *runOptions) { o.stdout = true }
}

// WithTimeout overrides the configured wall clock bound for one run.
func WithTimeout(d time.Duration) RunOption {
	return func(o *runOptions) { o.timeout = d }
}

type outcome struct {
	res Result
	err error
}

// Run executes call in a fresh instance with the given fuel budget. A
// budget of zero means DefaultFuel. When the wall clock or the context
// ends first Run returns immediately and the instance keeps running until
// its epoch deadline interrupts it.
func (p *Program) Run(ctx context.Context, call value.Call, budget uint64, opts ...RunOption) (Result, error) {
	o := runOptions{timeout: p.gov.cfg.Timeout}
	for _, opt := range opts {
		opt(&o)
	}
	if budget == 0 {
		budget = DefaultFuel
	}

	limit := o.timeout
	if dl, ok := ctx.Deadline(); ok {
		if left := time.Until(dl); limit <= 0 || left < limit {
			limit = left
		}
	}

	done := make(chan outcome, 1)
	go func() {
		res, err := p.run(call, budget, limit, o)
		done <- outcome{res: res, err: err}
	}()

	var timer <-chan time.Time
	if o.timeout > 0 {
		t := time.NewTimer(o.timeout)
		defer t.Stop()
		timer = t.C
	}

	select {
	case out := <-done:
		return out.res, out.err
	case <-timer:
		p.gov.log.Warn("abandoning guest call", "call", call.Name, "after", o.timeout)
		return Result{}, &TimeoutError{After: o.timeout}
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Result{}, &TimeoutError{After: limit}
		}
		return Result{}, &InternalError{Msg: "run cancelled", Err: ctx.Err()}
	}
}

func (p *Program) run(call value.Call, budget uint64, limit time.Duration, o runOptions) (Result, error) {
	store := wasmtime.NewStore(p.gov.engine)
	store.Limiter(p.gov.cfg.MemoryLimit, -1, p.gov.cfg.MaxInstances, -1, 1)
	store.SetEpochDeadline(p.epochDeadline(limit))

	wasi := wasmtime.NewWasiConfig()
	var stdoutPath string
	if o.stdout {
		f, err := os.CreateTemp("", "fnjudge-stdout-*")
		if err != nil {
			return Result{}, &InternalError{Msg: "create stdout file", Err: err}
		}
		stdoutPath = f.Name()
		f.Close()
		defer os.Remove(stdoutPath)
		if err := wasi.SetStdoutFile(stdoutPath); err != nil {
			return Result{}, &InternalError{Msg: "redirect stdout", Err: err}
		}
	}
	store.SetWasi(wasi)

	linker := wasmtime.NewLinker(p.gov.engine)
	if err := linker.DefineWasi(); err != nil {
		return Result{}, &InternalError{Msg: "define wasi", Err: err}
	}

	// Instantiation and static constructors run on the allocation allowance.
	if err := store.SetFuel(invoke.AllocationFuel); err != nil {
		return Result{}, &InternalError{Msg: "set fuel", Err: err}
	}
	inst, err := linker.Instantiate(store, p.module)
	if err != nil {
		return Result{}, &InternalError{Msg: "instantiate", Err: err}
	}
	if init := inst.GetFunc(store, "_initialize"); init != nil {
		if _, err := init.Call(store); err != nil {
			return Result{}, &InternalError{Msg: "initialize", Err: classifyCallErr(err)}
		}
	}

	guest, err := newInstanceGuest(store, inst, p.exports)
	if err != nil {
		return Result{}, &InternalError{Msg: "bind guest", Err: err}
	}
	if err := store.SetFuel(budget); err != nil {
		return Result{}, &InternalError{Msg: "set fuel", Err: err}
	}

	res, err := invoke.Invoke(guest, call)
	if err != nil {
		err = classify(err)
		var re *RuntimeError
		if stdoutPath != "" && errors.As(err, &re) {
			if re.Stdout, err = readStdout(stdoutPath); err != nil {
				return Result{}, err
			}
			return Result{}, re
		}
		return Result{}, err
	}

	out := Result{Output: res.Output, Fuel: res.Fuel}
	if stdoutPath != "" {
		if out.Stdout, err = readStdout(stdoutPath); err != nil {
			return Result{}, err
		}
	}
	return out, nil
}

// MaxStdout is how much captured standard output is kept. Anything past it
// is never read back.
const MaxStdout = 64 << 10

func readStdout(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", &InternalError{Msg: "read stdout", Err: err}
	}
	defer f.Close()
	b, err := io.ReadAll(io.LimitReader(f, MaxStdout))
	if err != nil {
		return "", &InternalError{Msg: "read stdout", Err: err}
	}
	return string(b), nil
}

// epochDeadline gives the background interruption twice the wall clock
// bound, so the outer timer always fires first.
func (p *Program) epochDeadline(limit time.Duration) uint64 {
	if limit <= 0 {
		return 1 << 40
	}
	return uint64(2*limit/p.gov.cfg.EpochTick) + 1
}

func classify(err error) error {
	var me *abi.MarshalError
	if errors.As(err, &me) {
		return &InternalError{Msg: "marshal", Err: err}
	}
	if errors.Is(err, invoke.ErrSymbolNotFound) {
		return &InternalError{Msg: "resolve symbol", Err: err}
	}
	var trap *invoke.TrapError
	if errors.As(err, &trap) {
		return &RuntimeError{Message: trap.Message, OutOfFuel: trap.OutOfFuel, Fuel: trap.Fuel}
	}
	return &InternalError{Msg: "invoke", Err: err}
}
