package compiler

import (
	"context"
	"fmt"
	"os"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/programme-lv/fnjudge/internal/invoke"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

// RequiredExports must be present in every module regardless of the calls
// made against it.
var RequiredExports = []string{"malloc"}

// VerifyExports checks that the artifact exports linear memory, the
// allocator and a function for every symbol. Missing ones are reported as
// a CompileError so that the submitter sees them before any test runs.
func (p *Pipeline) VerifyExports(ctx context.Context, art *Artifact, symbols []string) error {
	wasm, err := os.ReadFile(art.Path)
	if err != nil {
		return fmt.Errorf("read artifact: %w", err)
	}

	rt := wazero.NewRuntimeWithConfig(ctx,
		wazero.NewRuntimeConfigInterpreter().WithCoreFeatures(api.CoreFeaturesV2))
	defer rt.Close(ctx)

	cm, err := rt.CompileModule(ctx, wasm)
	if err != nil {
		return fmt.Errorf("validate artifact: %w", err)
	}
	defer cm.Close(ctx)

	funcs := make([]string, 0, len(cm.ExportedFunctions()))
	for name := range cm.ExportedFunctions() {
		funcs = append(funcs, name)
	}

	var diags []Diagnostic
	if _, ok := cm.ExportedMemories()["memory"]; !ok {
		diags = append(diags, missing("memory"))
	}
	wanted := mapset.NewSet(RequiredExports...)
	wanted.Append(symbols...)
	for _, sym := range mapset.Sorted(wanted) {
		if _, err := invoke.ResolveSymbol(funcs, sym); err != nil {
			diags = append(diags, Diagnostic{Kind: SeverityError, Message: err.Error()})
		}
	}
	if len(diags) > 0 {
		return &CompileError{Diagnostics: diags}
	}
	return nil
}

func missing(name string) Diagnostic {
	return Diagnostic{Kind: SeverityError, Message: "module does not export " + name}
}
