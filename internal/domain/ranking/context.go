package ranking

import (
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	m "mender.dev/pkg/mender/internal/model"
)

// Frameworks recognised by AnalyzeContext.
const (
	FrameworkReact          = "react"
	FrameworkTestingLibrary = "testing-library"
	FrameworkVitest         = "vitest"
	FrameworkJest           = "jest"
	FrameworkTypeScript     = "typescript"
	FrameworkJavaScript     = "javascript"
)

// Test classifications.
const (
	TestComponent   = "component"
	TestIntegration = "integration"
	TestUnit        = "unit"
	TestUnknown     = "unknown"
)

var (
	functionDeclRe = regexp.MustCompile(`function\s+(\w+)`)
	arrowConstRe   = regexp.MustCompile(`const\s+(\w+)\s*=\s*\(.*?\)\s*=>`)
	variableRe     = regexp.MustCompile(`(?:const|let|var)\s+(\w+)`)
	functionsRe    = regexp.MustCompile(`function|\(\s*\)\s*=>`)
	conditionsRe   = regexp.MustCompile(`\b(if|else|switch|case|while|for)\b`)
	vitestRe       = regexp.MustCompile(`from\s+['"]vitest['"]|\bvi\.`)
)

// CodeContext describes the file an edit lands in.
type CodeContext struct {
	Path       m.Path   `yaml:"path"`
	FileKind   string   `yaml:"file_kind"`
	Framework  string   `yaml:"framework"`
	Patterns   []string `yaml:"patterns"`
	Imports    []string `yaml:"imports"`
	Functions  []string `yaml:"functions"`
	Variables  []string `yaml:"variables"`
	TestType   string   `yaml:"test_type"`
	Complexity float64  `yaml:"complexity"`
}

// AnalyzeContext extracts the framework, test classification and the
// identifiers of code.
func AnalyzeContext(code string, path m.Path) CodeContext {
	return CodeContext{
		Path:       path,
		FileKind:   strings.TrimPrefix(strings.ToLower(filepath.Ext(string(path))), "."),
		Framework:  detectFramework(code),
		Patterns:   extractPatterns(code),
		Imports:    extractImports(code),
		Functions:  extractFunctions(code),
		Variables:  uniqueSorted(submatches(variableRe, code)),
		TestType:   classifyTestType(code, path),
		Complexity: complexity(code),
	}
}

func detectFramework(code string) string {
	switch {
	case strings.Contains(code, "from 'react'") || strings.Contains(code, `from "react"`) || strings.Contains(code, "import React"):
		return FrameworkReact
	case strings.Contains(code, "@testing-library"):
		return FrameworkTestingLibrary
	case vitestRe.MatchString(code):
		return FrameworkVitest
	case strings.Contains(code, "jest.") || strings.Contains(code, "describe("):
		return FrameworkJest
	case strings.Contains(code, "interface ") || strings.Contains(code, "type "):
		return FrameworkTypeScript
	default:
		return FrameworkJavaScript
	}
}

func extractPatterns(code string) []string {
	patterns := submatches(callRe, code)
	patterns = append(patterns, submatches(propertyRe, code)...)

	if strings.Contains(code, "expect(") {
		patterns = append(patterns, "expect_assertion")
	}

	if strings.Contains(code, "render(") {
		patterns = append(patterns, "component_render")
	}

	if strings.Contains(code, "waitFor(") {
		patterns = append(patterns, "async_wait")
	}

	if strings.Contains(strings.ToLower(code), "mock") {
		patterns = append(patterns, "mock_usage")
	}

	return uniqueSorted(patterns)
}

func extractImports(code string) []string {
	var imports []string

	for _, line := range strings.Split(code, "\n") {
		if !strings.HasPrefix(strings.TrimSpace(line), "import") {
			continue
		}

		if sub := importFromRe.FindStringSubmatch(line); sub != nil {
			imports = append(imports, sub[1])
		}
	}

	return imports
}

func extractFunctions(code string) []string {
	functions := submatches(functionDeclRe, code)
	functions = append(functions, submatches(arrowConstRe, code)...)
	functions = append(functions, submatches(callRe, code)...)

	return uniqueSorted(functions)
}

func classifyTestType(code string, path m.Path) string {
	switch {
	case strings.Contains(code, "render("):
		return TestComponent
	case strings.Contains(strings.ToLower(string(path)), "integration"):
		return TestIntegration
	case strings.Contains(code, "describe(") || strings.Contains(code, "it(") || strings.Contains(code, "test("):
		return TestUnit
	default:
		return TestUnknown
	}
}

func complexity(code string) float64 {
	lines := 0
	for _, line := range strings.Split(code, "\n") {
		if strings.TrimSpace(line) != "" {
			lines++
		}
	}

	functions := len(functionsRe.FindAllString(code, -1))
	conditions := len(conditionsRe.FindAllString(code, -1))

	return (float64(lines)*0.1 + float64(functions)*2 + float64(conditions)*1.5) / 10
}

func submatches(re *regexp.Regexp, code string) []string {
	var out []string
	for _, sub := range re.FindAllStringSubmatch(code, -1) {
		out = append(out, sub[1])
	}

	return out
}

func uniqueSorted(items []string) []string {
	if len(items) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))

	for _, item := range items {
		if !seen[item] {
			seen[item] = true
			out = append(out, item)
		}
	}

	sort.Strings(out)

	return out
}
