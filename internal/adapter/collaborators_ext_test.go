package adapter_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"mender.dev/pkg/mender/internal/adapter"
	"mender.dev/pkg/mender/internal/adapter/mocks"
	m "mender.dev/pkg/mender/internal/model"
)

func TestTSCTypeChecker_Check(t *testing.T) {
	dir := t.TempDir()
	path := m.Path(filepath.Join(dir, "a.test.ts"))

	runner := new(mocks.MockCommandRunner)
	runner.On("Run", mock.Anything, dir, "npx", mock.MatchedBy(func(args []string) bool {
		return len(args) > 1 && args[0] == "tsc" && strings.HasSuffix(args[len(args)-1], "-a.test.ts")
	})).Run(func(args mock.Arguments) {
		argv := args.Get(3).([]string)
		scratch := argv[len(argv)-1]

		data, err := os.ReadFile(scratch)
		require.NoError(t, err)
		assert.Equal(t, "let x = y;\n", string(data))
	}).Return("", "", 0, nil).Once()

	checker := adapter.NewTSCTypeChecker(runner, "npx tsc", nil)

	out, err := checker.Check(context.Background(), m.Path(dir), path, "let x = y;\n")
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.Empty(t, out.Diagnostics)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "scratch file must be removed")

	runner.AssertExpectations(t)
}

func TestTSCTypeChecker_FailureWithoutDiagnostics(t *testing.T) {
	dir := t.TempDir()

	runner := new(mocks.MockCommandRunner)
	runner.On("Run", mock.Anything, dir, "tsc", mock.Anything).Return("", "tsc: not found", 127, nil)

	checker := adapter.NewTSCTypeChecker(runner, "tsc", []string{"--noEmit"})

	_, err := checker.Check(context.Background(), m.Path(dir), m.Path(filepath.Join(dir, "a.test.ts")), "x")
	require.Error(t, err)
}

func TestExecParser_Parse(t *testing.T) {
	runner := new(mocks.MockCommandRunner)
	runner.On("Run", mock.Anything, mock.Anything, "node", mock.Anything).Return(
		`{"success":true,"isValid":false,"syntaxErrors":[{"line":2,"column":4,"message":"')' expected.","severity":"error","errorCode":"PARSE_ERROR","source":"typescript"}],"fileType":"typescript"}`,
		"", 0, nil,
	)

	parser := adapter.NewExecParser(runner, "", "parse.js")

	out, err := parser.Parse(context.Background(), "a.test.ts", "a\nb(\n")
	require.NoError(t, err)
	assert.False(t, out.IsValid)
	require.Len(t, out.SyntaxErrors, 1)
	assert.Equal(t, 2, out.SyntaxErrors[0].Line)
	assert.Equal(t, "PARSE_ERROR", out.SyntaxErrors[0].ErrorCode)
}

func TestExecParser_Failures(t *testing.T) {
	tests := []struct {
		name   string
		stdout string
	}{
		{"garbage output", "Segmentation fault"},
		{"reported failure", `{"success":false,"error":"boom"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := new(mocks.MockCommandRunner)
			runner.On("Run", mock.Anything, mock.Anything, "node", mock.Anything).Return(tt.stdout, "", 1, nil)

			_, err := adapter.NewExecParser(runner, "node", "parse.js").Parse(context.Background(), "a.test.ts", "x")
			require.Error(t, err)
		})
	}
}
