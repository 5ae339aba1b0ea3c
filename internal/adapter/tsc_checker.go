package adapter

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	m "mender.dev/pkg/mender/internal/model"
)

var tscLineRe = regexp.MustCompile(`^(.+)\((\d+),(\d+)\):\s+(error|warning|message)\s+TS(\d+):\s+(.+)$`)

// DefaultTSCArgs are the compiler flags used when none are configured.
var DefaultTSCArgs = []string{
	"--noEmit",
	"--pretty", "false",
	"--skipLibCheck",
	"--esModuleInterop",
	"--jsx", "react-jsx",
}

// TSCTypeChecker is an out-of-process TypeChecker that shells out to tsc.
type TSCTypeChecker struct {
	runner  CommandRunner
	command []string
	args    []string
}

// NewTSCTypeChecker constructs a TSCTypeChecker. command is the tsc invocation
// split into words, e.g. "npx tsc".
func NewTSCTypeChecker(runner CommandRunner, command string, args []string) *TSCTypeChecker {
	words := strings.Fields(command)
	if len(words) == 0 {
		words = []string{"npx", "tsc"}
	}

	if len(args) == 0 {
		args = DefaultTSCArgs
	}

	return &TSCTypeChecker{runner: runner, command: words, args: args}
}

// Check writes text next to path so relative imports resolve, then type-checks it.
func (c *TSCTypeChecker) Check(ctx context.Context, projectRoot m.Path, path m.Path, text string) (TypeOutput, error) {
	if FileKind(path) == "" {
		return TypeOutput{}, fmt.Errorf("%w: %s", ErrUnsupportedFile, path)
	}

	tmp, cleanup, err := writeScratchFile(filepath.Dir(string(path)), path, text)
	if err != nil {
		return TypeOutput{}, err
	}
	defer cleanup()

	dir := string(projectRoot)
	if dir == "" {
		dir = filepath.Dir(string(path))
	}

	argv := append(append(append([]string{}, c.command[1:]...), c.args...), tmp)

	stdout, stderr, code, err := c.runner.Run(ctx, dir, c.command[0], argv...)
	if err != nil {
		return TypeOutput{}, fmt.Errorf("type checker: %w", err)
	}

	diags := parseTSCOutput(stdout, filepath.Base(tmp))
	if code != 0 && len(diags) == 0 {
		slog.Error("type checker failed without diagnostics", "path", path, "exitCode", code, "stderr", stderr)
		return TypeOutput{}, fmt.Errorf("type checker exited with %d", code)
	}

	for i := range diags {
		diags[i].File = string(path)
	}

	return TypeOutput{Success: true, Diagnostics: diags}, nil
}

// parseTSCOutput extracts diagnostics reported against the file named base.
func parseTSCOutput(stdout string, base string) []RawTypeDiagnostic {
	diags := make([]RawTypeDiagnostic, 0)

	scanner := bufio.NewScanner(strings.NewReader(stdout))
	for scanner.Scan() {
		match := tscLineRe.FindStringSubmatch(strings.TrimSpace(scanner.Text()))
		if match == nil {
			continue
		}

		if filepath.Base(match[1]) != base {
			continue
		}

		line, _ := strconv.Atoi(match[2])
		col, _ := strconv.Atoi(match[3])
		code, _ := strconv.Atoi(match[5])

		diags = append(diags, RawTypeDiagnostic{
			Line:     line,
			Column:   col,
			Severity: match[4],
			Code:     code,
			Message:  match[6],
			Category: match[4],
			File:     match[1],
		})
	}

	return diags
}
