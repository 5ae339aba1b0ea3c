package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	m "mender.dev/pkg/mender/internal/model"
)

// ExecParser is an out-of-process StructuralParser. It runs a node script that
// receives a file path and prints a ParseOutput JSON document on stdout.
type ExecParser struct {
	runner CommandRunner
	node   string
	script string
}

// NewExecParser constructs an ExecParser running script with the node binary.
func NewExecParser(runner CommandRunner, node, script string) *ExecParser {
	if node == "" {
		node = "node"
	}

	return &ExecParser{runner: runner, node: node, script: script}
}

// Parse writes text to a temporary file and asks the script to parse it.
func (p *ExecParser) Parse(ctx context.Context, path m.Path, text string) (ParseOutput, error) {
	if FileKind(path) == "" {
		return ParseOutput{}, fmt.Errorf("%w: %s", ErrUnsupportedFile, path)
	}

	tmp, cleanup, err := writeScratchFile("", path, text)
	if err != nil {
		return ParseOutput{}, err
	}
	defer cleanup()

	stdout, stderr, code, err := p.runner.Run(ctx, filepath.Dir(tmp), p.node, p.script, tmp)
	if err != nil {
		return ParseOutput{}, fmt.Errorf("structural parser: %w", err)
	}

	var out ParseOutput
	if err := json.Unmarshal([]byte(strings.TrimSpace(stdout)), &out); err != nil {
		slog.Error("failed to decode parser output", "path", path, "exitCode", code, "stderr", stderr, "error", err)
		return ParseOutput{}, fmt.Errorf("decode parser output: %w", err)
	}

	if !out.Success {
		return out, fmt.Errorf("structural parser reported failure: %s", out.Error)
	}

	return out, nil
}

// writeScratchFile writes text to a temporary file in dir that keeps path's
// base name and extension so tooling picks the same dialect.
func writeScratchFile(dir string, path m.Path, text string) (string, func(), error) {
	file, err := os.CreateTemp(dir, ".mender-*-"+filepath.Base(string(path)))
	if err != nil {
		slog.Error("failed to create scratch file", "dir", dir, "error", err)
		return "", func() {}, fmt.Errorf("create scratch file: %w", err)
	}

	name := file.Name()
	cleanup := func() {
		if err := os.Remove(name); err != nil && !os.IsNotExist(err) {
			slog.Warn("failed to remove scratch file", "path", name, "error", err)
		}
	}

	if _, err := file.WriteString(text); err != nil {
		_ = file.Close()

		cleanup()

		return "", func() {}, fmt.Errorf("write scratch file: %w", err)
	}

	if err := file.Close(); err != nil {
		cleanup()
		return "", func() {}, fmt.Errorf("close scratch file: %w", err)
	}

	return name, cleanup, nil
}
