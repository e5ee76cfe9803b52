package tester

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/programme-lv/fnjudge/api"
	"github.com/programme-lv/fnjudge/internal/compiler"
	"github.com/programme-lv/fnjudge/internal/governor"
	"github.com/programme-lv/fnjudge/pkg/value"
)

type Config struct {
	// FuelMultiplier scales stored budgets of submission tests.
	FuelMultiplier float64
	// CustomFuelMultiplier scales the reference fuel for custom input runs.
	CustomFuelMultiplier float64
}

func DefaultConfig() Config {
	return Config{
		FuelMultiplier:       1.5,
		CustomFuelMultiplier: 20,
	}
}

// Program is a loaded module; *governor.Program implements it.
type Program interface {
	Run(ctx context.Context, call value.Call, budget uint64, opts ...governor.RunOption) (governor.Result, error)
}

type Tester struct {
	compiler   *compiler.Pipeline
	gov        *governor.Governor
	cfg        Config
	log        *slog.Logger
	systemInfo string
}

func NewTester(pipeline *compiler.Pipeline, gov *governor.Governor, cfg Config, log *slog.Logger) *Tester {
	return &Tester{
		compiler:   pipeline,
		gov:        gov,
		cfg:        cfg,
		log:        log,
		systemInfo: getSystemInfo(),
	}
}

func getSystemInfo() string {
	return fmt.Sprintf("%s/%s, %d CPUs, %s", runtime.GOOS, runtime.GOARCH, runtime.NumCPU(), runtime.Version())
}

// build compiles source, checks that it exports every symbol and loads it.
func (t *Tester) build(
	ctx context.Context,
	prefix compiler.Prefix,
	source string,
	role api.Role,
	symbols []string,
	gath ResultGatherer,
) (*governor.Program, error) {
	gath.StartCompile(role)
	art, err := t.compiler.Compile(ctx, prefix, source)
	if err != nil {
		return nil, err
	}
	if err := t.compiler.VerifyExports(ctx, art, symbols); err != nil {
		return nil, err
	}
	gath.FinishCompile(role, art.Cached)
	return t.gov.Load(art.Path)
}

func symbolsOf(calls ...value.Call) []string {
	set := mapset.NewThreadUnsafeSet[string]()
	for _, c := range calls {
		set.Add(c.Name)
	}
	return mapset.Sorted(set)
}
