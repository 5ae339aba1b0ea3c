package ranking

import (
	"testing"

	"github.com/stretchr/testify/assert"

	m "mender.dev/pkg/mender/internal/model"
)

const reactTest = `import React from 'react';
import { render, screen } from '@testing-library/react';

describe('Button', () => {
  it('renders', () => {
    render(<Button />);
    expect(screen.getByText('hi')).toBeInTheDocument();
  });
});
`

func TestAnalyzeContext_ComponentTest(t *testing.T) {
	ctx := AnalyzeContext(reactTest, "src/Button.test.tsx")

	assert.Equal(t, m.Path("src/Button.test.tsx"), ctx.Path)
	assert.Equal(t, "tsx", ctx.FileKind)
	assert.Equal(t, FrameworkReact, ctx.Framework)
	assert.Equal(t, TestComponent, ctx.TestType)
	assert.Equal(t, []string{"react", "@testing-library/react"}, ctx.Imports)
	assert.Contains(t, ctx.Patterns, "expect_assertion")
	assert.Contains(t, ctx.Patterns, "component_render")
	assert.Contains(t, ctx.Patterns, "getByText")
	assert.Contains(t, ctx.Functions, "describe")
	assert.Empty(t, ctx.Variables)
	assert.Greater(t, ctx.Complexity, 0.0)
}

func TestAnalyzeContext_Classification(t *testing.T) {
	tests := []struct {
		name      string
		code      string
		path      m.Path
		framework string
		testType  string
	}{
		{"integration by path", "describe('api', () => {});", "tests/integration/api.test.ts", FrameworkJest, TestIntegration},
		{"unit", "test('adds', () => { expect(add(1, 2)).toBe(3); });", "add.test.js", FrameworkJavaScript, TestUnit},
		{"testing library", "import { screen } from '@testing-library/dom';", "a.test.ts", FrameworkTestingLibrary, TestUnknown},
		{"typescript", "interface Props { a: string }", "a.test.ts", FrameworkTypeScript, TestUnknown},
		{"vitest import", "import { describe, it } from 'vitest';\ndescribe('a', () => {});", "a.test.ts", FrameworkVitest, TestUnit},
		{"vitest globals", "const spy = vi.fn();\ntest('calls', () => { expect(spy).toHaveBeenCalled(); });", "a.test.ts", FrameworkVitest, TestUnit},
		{"jest mock is not vitest", "jest.mock('./api');\ndescribe('api', () => {});", "a.test.ts", FrameworkJest, TestUnit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := AnalyzeContext(tt.code, tt.path)
			assert.Equal(t, tt.framework, ctx.Framework)
			assert.Equal(t, tt.testType, ctx.TestType)
		})
	}
}

func TestAnalyzeContext_Extraction(t *testing.T) {
	code := "function setup() {}\nconst make = (a) => a;\nlet count = 0;\nif (count) {\n}\n"
	ctx := AnalyzeContext(code, "a.test.ts")

	assert.Equal(t, []string{"count", "make"}, ctx.Variables)
	assert.Contains(t, ctx.Functions, "setup")
	assert.Contains(t, ctx.Functions, "make")
	// 5 lines, 1 function keyword, 1 condition.
	assert.InDelta(t, (5*0.1+2+1.5)/10, ctx.Complexity, 1e-9)
}
