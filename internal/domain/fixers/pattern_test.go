package fixers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	m "mender.dev/pkg/mender/internal/model"
)

func TestPatternFixGenerator_Rules(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		line    int
		want    string
		fixType m.FixType
	}{
		{
			name:    "terminator inside waitFor",
			text:    "    await waitFor(() => expect(screen.getByText('x')).toBeInTheDocument();)",
			line:    1,
			want:    "    await waitFor(() => expect(screen.getByText('x')).toBeInTheDocument());",
			fixType: m.FixAsyncPattern,
		},
		{
			name:    "terminator before arrow",
			text:    "setTimeout(() ; => {\n});",
			line:    1,
			want:    "setTimeout(() => {",
			fixType: m.FixAsyncPattern,
		},
		{
			name:    "jest helpers in a vitest file",
			text:    "import { vi } from 'vitest';\nconst fn = jest.fn();",
			line:    2,
			want:    "const fn = vi.fn();",
			fixType: m.FixMock,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			diags := []m.Diagnostic{
				{Line: tt.line, Code: m.CodeParseError, Origin: m.EngineStructural},
				{Line: tt.line, Code: m.TypeNameNotFound.Code(), Origin: m.EngineType},
			}

			edits := NewPatternFixGenerator().Generate(diags, m.NewSourceUnit("a.test.ts", tt.text))
			require.Len(t, edits, 1)

			assert.Equal(t, tt.line, edits[0].Line)
			assert.Equal(t, tt.want, edits[0].NewText)
			assert.Equal(t, tt.fixType, edits[0].FixType)
			assert.Equal(t, m.EngineContextual, edits[0].Origin)
			assert.InDelta(t, 0.75, edits[0].Confidence, 1e-9)
		})
	}
}

func TestPatternFixGenerator_OnlyDiagnosedLines(t *testing.T) {
	text := "const fn = jest.fn();\nawait waitFor(() => expect(a).toBe(1);)\n"
	unit := m.NewSourceUnit("a.test.ts", text)

	assert.Empty(t, NewPatternFixGenerator().Generate(nil, unit))

	// jest helpers stay as they are outside vitest files.
	edits := NewPatternFixGenerator().Generate([]m.Diagnostic{{Line: 1, Origin: m.EngineType}}, unit)
	assert.Empty(t, edits)
}

func TestDetectSemanticIssues(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []Finding
	}{
		{
			name: "await in sync test",
			text: "it('loads', () => {\n  await load();\n});\n",
			want: []Finding{{Line: 2, Message: "await used inside a non-async function"}},
		},
		{
			name: "await in async test",
			text: "it('loads', async () => {\n  await load();\n});\n",
		},
		{
			name: "await in nested sync callback",
			text: "it('x', async () => {\n  items.forEach((i) => {\n    await save(i);\n  });\n  await done();\n});\n",
			want: []Finding{{Line: 3, Message: "await used inside a non-async function"}},
		},
		{
			name: "await in a string",
			text: "it('x', () => {\n  log('await me');\n});\n",
		},
		{
			name: "mock against interface",
			text: "interface User { name: string }\nconst get = jest.fn();\nget.mockReturnValue({ id: 1 });\n",
			want: []Finding{{Message: "mock return values may not match the declared interface"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectSemanticIssues(tt.text))
		})
	}
}

func TestFinding_String(t *testing.T) {
	assert.Equal(t, "line 3: boom", Finding{Line: 3, Message: "boom"}.String())
	assert.Equal(t, "boom", Finding{Message: "boom"}.String())
}
