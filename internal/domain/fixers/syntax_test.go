package fixers

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	m "mender.dev/pkg/mender/internal/model"
)

func structural(line int, code m.Code) m.Diagnostic {
	return m.Diagnostic{Line: line, Column: 1, Code: code, Severity: m.SeverityError, Origin: m.EngineStructural, Message: string(code)}
}

func TestSyntaxFixGenerator_Handlers(t *testing.T) {
	tests := []struct {
		name       string
		line       string
		code       m.Code
		want       string
		fixType    m.FixType
		confidence float64
	}{
		{
			name:       "incomplete call",
			line:       "  jest.setSystemTime(new Date('2023-01-01');",
			code:       m.CodeIncompleteCall,
			want:       "  jest.setSystemTime(new Date('2023-01-01'));",
			fixType:    m.FixCallCompletion,
			confidence: 0.95,
		},
		{
			name:       "incomplete call after quoted terminator",
			line:       `const s = "a;b"; jest.setSystemTime(new Date(1);`,
			code:       m.CodeIncompleteCall,
			want:       `const s = "a;b"; jest.setSystemTime(new Date(1));`,
			fixType:    m.FixCallCompletion,
			confidence: 0.95,
		},
		{
			name:       "missing closing paren",
			line:       "    expect(screen.getByText('hi').toBeInTheDocument();",
			code:       m.CodeUnmatchedParen,
			want:       "    expect(screen.getByText('hi').toBeInTheDocument());",
			fixType:    m.FixParentheses,
			confidence: 0.9,
		},
		{
			name:       "missing closing paren without terminator",
			line:       "expect(a.toBe(1)",
			code:       m.CodeUnmatchedParen,
			want:       "expect(a.toBe(1))",
			fixType:    m.FixParentheses,
			confidence: 0.9,
		},
		{
			name:       "excess closing paren",
			line:       "expect(a).toBe(1));",
			code:       m.CodeUnmatchedParen,
			want:       "expect(a).toBe(1);",
			fixType:    m.FixParentheses,
			confidence: 0.72,
		},
		{
			name:       "duplicate arrow",
			line:       "it('works', () => => {",
			code:       m.CodeMalformedCallback,
			want:       "it('works', () => {",
			fixType:    m.FixAsyncPattern,
			confidence: 0.8,
		},
		{
			name:       "terminator before arrow",
			line:       "setTimeout(() ; => {",
			code:       m.CodeMalformedCallback,
			want:       "setTimeout(() => {",
			fixType:    m.FixAsyncPattern,
			confidence: 0.8,
		},
		{
			name:       "terminator inside parameters",
			line:       "beforeEach((done;) => {",
			code:       m.CodeMalformedCallback,
			want:       "beforeEach((done) => {",
			fixType:    m.FixAsyncPattern,
			confidence: 0.8,
		},
		{
			name:       "missing statement terminator",
			line:       "const a = 1",
			code:       m.CodeParseError,
			want:       "const a = 1;",
			fixType:    m.FixSemicolon,
			confidence: 0.7,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			unit := m.NewSourceUnit("a.test.ts", "// header\n"+tt.line+"\n")

			edits := NewSyntaxFixGenerator().Generate([]m.Diagnostic{structural(2, tt.code)}, unit)
			require.Len(t, edits, 1)

			e := edits[0]
			assert.Equal(t, 2, e.Line)
			assert.Equal(t, tt.line, e.OldText)
			assert.Equal(t, tt.want, e.NewText)
			assert.Equal(t, tt.fixType, e.FixType)
			assert.InDelta(t, tt.confidence, e.Confidence, 1e-9)
			assert.Equal(t, m.EngineStructural, e.Origin)
			assert.Equal(t, unit.Version, e.Version)
		})
	}
}

func TestSyntaxFixGenerator_NoEdit(t *testing.T) {
	tests := []struct {
		name string
		line string
		diag m.Diagnostic
	}{
		{"block opener spans lines", "describe('x', () => {", structural(1, m.CodeUnmatchedParen)},
		{"balanced line", "expect(a).toBe(1);", structural(1, m.CodeUnmatchedParen)},
		{"not a declaration", "expect(a)", structural(1, m.CodeParseError)},
		{"declaration continues", "const x = {", structural(1, m.CodeParseFailed)},
		{"incomplete call without terminator", "foo(bar", structural(1, m.CodeIncompleteCall)},
		{"line out of range", "const a = 1", structural(9, m.CodeParseError)},
		{"unsupported file", "const a = 1", structural(1, m.CodeUnsupportedType)},
		{
			name: "type origin ignored",
			line: "expect(a.toBe(1);",
			diag: m.Diagnostic{Line: 1, Code: m.CodeUnmatchedParen, Origin: m.EngineType},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			edits := NewSyntaxFixGenerator().Generate([]m.Diagnostic{tt.diag}, m.NewSourceUnit("a.test.ts", tt.line))
			assert.Empty(t, edits)
		})
	}
}

func TestSyntaxFixGenerator_OneEditPerLine(t *testing.T) {
	line := "jest.advanceTimersByTime(1000;"
	unit := m.NewSourceUnit("a.test.ts", line)

	diags := []m.Diagnostic{
		structural(1, m.CodeParseError),
		structural(1, m.CodeUnmatchedParen),
		structural(1, m.CodeIncompleteCall),
	}

	edits := NewSyntaxFixGenerator().Generate(diags, unit)
	require.Len(t, edits, 1)
	assert.Equal(t, m.FixCallCompletion, edits[0].FixType)
	assert.Equal(t, "jest.advanceTimersByTime(1000);", edits[0].NewText)
}

func TestSyntaxFixGenerator_Deterministic(t *testing.T) {
	text := "const a = 1\nexpect(a).toBe(1));\nit('x', () => => {\n});\n"
	unit := m.NewSourceUnit("a.test.ts", text)

	diags := []m.Diagnostic{
		structural(3, m.CodeMalformedCallback),
		structural(1, m.CodeParseError),
		structural(2, m.CodeUnmatchedParen),
	}
	reversed := []m.Diagnostic{diags[2], diags[1], diags[0]}

	gen := NewSyntaxFixGenerator()
	first := gen.Generate(diags, unit)
	second := gen.Generate(reversed, unit)

	require.Len(t, first, 3)
	assert.Empty(t, cmp.Diff(first, second))
	assert.Equal(t, []int{1, 2, 3}, []int{first[0].Line, first[1].Line, first[2].Line})
}
