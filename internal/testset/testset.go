// Package testset reads and writes test sets and job requests stored as
// JSON files, zstd-compressed when the name ends in .zst.
package testset

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"github.com/programme-lv/fnjudge/api"
)

func compressed(path string) bool {
	return filepath.Ext(path) == ".zst"
}

// ReadFile returns the decompressed contents of path.
func ReadFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if !compressed(path) {
		return io.ReadAll(f)
	}
	d, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd reader: %w", err)
	}
	defer d.Close()
	b, err := io.ReadAll(d)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress %s: %w", path, err)
	}
	return b, nil
}

// WriteFile writes data to path, compressing it first for .zst names.
func WriteFile(path string, data []byte) error {
	if !compressed(path) {
		return os.WriteFile(path, data, 0o644)
	}
	var buf bytes.Buffer
	e, err := zstd.NewWriter(&buf)
	if err != nil {
		return fmt.Errorf("failed to create zstd writer: %w", err)
	}
	if _, err := e.Write(data); err != nil {
		e.Close()
		return fmt.Errorf("failed to compress %s: %w", path, err)
	}
	if err := e.Close(); err != nil {
		return fmt.Errorf("failed to compress %s: %w", path, err)
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

func LoadTests(path string) ([]api.TestCase, error) {
	b, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	var tests []api.TestCase
	if err := json.Unmarshal(b, &tests); err != nil {
		return nil, fmt.Errorf("parse test set %s: %w", path, err)
	}
	return tests, nil
}

func SaveTests(path string, tests []api.TestCase) error {
	b, err := json.MarshalIndent(tests, "", "  ")
	if err != nil {
		return err
	}
	return WriteFile(path, b)
}

func LoadRequest(path string) (api.JobRequest, error) {
	b, err := ReadFile(path)
	if err != nil {
		return api.JobRequest{}, err
	}
	var req api.JobRequest
	if err := json.Unmarshal(b, &req); err != nil {
		return api.JobRequest{}, fmt.Errorf("parse request %s: %w", path, err)
	}
	return req, nil
}
