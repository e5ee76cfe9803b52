// Package compiler builds submissions into guest modules, reusing the last
// artifact of a workspace when its source has not changed.
package compiler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/cespare/xxhash/v2"
)

const (
	sourceName   = "main.cpp"
	artifactName = "main.wasm"
	logName      = "main.log.json"
)

// Prefix names a workspace, e.g. {"subm", user, problem}. Components are
// escaped before they touch the filesystem so that distinct prefixes never
// share a directory.
type Prefix []string

func (p Prefix) path() []string {
	out := make([]string, 0, len(p))
	for _, c := range p {
		out = append(out, escape(c))
	}
	return out
}

func (p Prefix) String() string {
	return strings.Join(p.path(), "/")
}

// maxComponent keeps escaped names below common file name limits.
const maxComponent = 128

// escape keeps letters, digits and '-' and writes every other byte as '_'
// followed by two hex digits. Names longer than maxComponent are cut and
// end in '~' and the digest of the whole component, a character escape
// never produces.
func escape(s string) string {
	if s == "" {
		return "_"
	}
	const hex = "0123456789abcdef"
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '-' {
			sb.WriteByte(c)
			continue
		}
		sb.WriteByte('_')
		sb.WriteByte(hex[c>>4])
		sb.WriteByte(hex[c&0xF])
	}
	out := sb.String()
	if len(out) > maxComponent {
		out = fmt.Sprintf("%s~%016x", out[:maxComponent-17], xxhash.Sum64String(s))
	}
	return out
}

// Artifact is a compiled module on disk.
type Artifact struct {
	Path       string
	SourcePath string
	Hash       uint64
	Cached     bool
}

type Pipeline struct {
	root string
	tc   Toolchain
	log  *slog.Logger
}

func New(root string, tc Toolchain, log *slog.Logger) *Pipeline {
	return &Pipeline{root: root, tc: tc, log: log}
}

type compileLog struct {
	ExitCode       int    `json:"exit_code"`
	Stderr         string `json:"stderr"`
	DurationMs     int64  `json:"duration_ms"`
	Hash           string `json:"hash"`
	PreludeVersion int    `json:"prelude_version"`
}

// Compile builds source under prefix. Two workspaces never share an
// artifact; within one workspace identical source skips the compiler.
// Concurrent compiles of one workspace may both run the compiler.
func (p *Pipeline) Compile(ctx context.Context, prefix Prefix, source string) (*Artifact, error) {
	dir := filepath.Join(append([]string{p.root}, prefix.path()...)...)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}

	full := Prelude + source
	art := &Artifact{
		Path:       filepath.Join(dir, artifactName),
		SourcePath: filepath.Join(dir, sourceName),
		Hash:       xxhash.Sum64String(full),
	}

	if p.cached(art) {
		art.Cached = true
		p.log.Debug("compile cache hit", "prefix", prefix.String(), "hash", art.Hash)
		return art, nil
	}

	if err := os.WriteFile(art.SourcePath, []byte(full), 0o644); err != nil {
		return nil, fmt.Errorf("write source: %w", err)
	}
	out, err := p.tc.Compile(ctx, art.SourcePath, art.Path)
	if err != nil {
		_ = os.Remove(art.Path)
		return nil, fmt.Errorf("compile: %w", err)
	}
	p.writeLog(dir, art, out)
	p.log.Info("compiled", "prefix", prefix.String(), "exit", out.ExitCode, "duration", out.Duration)

	if out.ExitCode != 0 {
		_ = os.Remove(art.Path)
		return nil, &CompileError{
			Diagnostics: ParseDiagnostics(out.Stderr, art.SourcePath),
			Stderr:      strings.ReplaceAll(out.Stderr, art.SourcePath, sourceName),
		}
	}
	if _, err := os.Stat(art.Path); err != nil {
		return nil, fmt.Errorf("compiler produced no artifact: %w", err)
	}
	return art, nil
}

func (p *Pipeline) cached(art *Artifact) bool {
	if _, err := os.Stat(art.Path); err != nil {
		return false
	}
	prev, err := os.ReadFile(art.SourcePath)
	if err != nil {
		return false
	}
	return xxhash.Sum64(prev) == art.Hash
}

func (p *Pipeline) writeLog(dir string, art *Artifact, out *Output) {
	b, err := json.Marshal(compileLog{
		ExitCode:       out.ExitCode,
		Stderr:         out.Stderr,
		DurationMs:     out.Duration.Milliseconds(),
		Hash:           fmt.Sprintf("%016x", art.Hash),
		PreludeVersion: PreludeVersion,
	})
	if err == nil {
		err = os.WriteFile(filepath.Join(dir, logName), b, 0o644)
	}
	if err != nil {
		p.log.Warn("failed to write compile log", "dir", dir, "err", err)
	}
}

// IsCompileError reports whether err is a rejected submission.
func IsCompileError(err error) bool {
	var ce *CompileError
	return errors.As(err, &ce)
}
