package fixers

import (
	"regexp"
	"sort"
	"strings"

	m "mender.dev/pkg/mender/internal/model"
)

const confidencePattern = 0.75

var (
	// waitFor(() => expect(x).toBeInTheDocument();) and friends.
	strayInnerTermRe = regexp.MustCompile(`\b((?:waitFor|act|expect|it|test)\(.*?);(\s*\))`)
	spacedArrowRe    = regexp.MustCompile(`\(\s*\)\s*;\s*=>`)
	jestMockCallRe   = regexp.MustCompile(`\bjest\.(fn|spyOn|mock|useFakeTimers|useRealTimers|advanceTimersByTime|setSystemTime|clearAllMocks|resetAllMocks|restoreAllMocks)\(`)
)

type patternRule struct {
	fixType     m.FixType
	description string
	apply       func(line string, vitest bool) string
}

var patternRules = []patternRule{
	{
		fixType:     m.FixAsyncPattern,
		description: "drop statement terminator inside callback argument",
		apply: func(line string, _ bool) string {
			out := strayInnerTermRe.ReplaceAllString(line, "$1$2")
			if out == line {
				return line
			}

			body := strings.TrimRight(out, " \t\r")
			if strings.HasSuffix(body, ")") {
				out = body + ";" + out[len(body):]
			}

			return out
		},
	},
	{
		fixType:     m.FixAsyncPattern,
		description: "remove terminator between callback parameters and arrow",
		apply: func(line string, _ bool) string {
			return spacedArrowRe.ReplaceAllString(line, "() =>")
		},
	},
	{
		fixType:     m.FixMock,
		description: "use vitest mock helpers",
		apply: func(line string, vitest bool) string {
			if !vitest {
				return line
			}

			return jestMockCallRe.ReplaceAllString(line, "vi.$1(")
		},
	},
}

// PatternFixGenerator rewrites common test idioms on lines that carry a
// diagnostic of any origin.
type PatternFixGenerator struct{}

// NewPatternFixGenerator constructs a PatternFixGenerator.
func NewPatternFixGenerator() *PatternFixGenerator {
	return &PatternFixGenerator{}
}

// Engine implements Generator.
func (g *PatternFixGenerator) Engine() m.Engine {
	return m.EngineContextual
}

// Generate applies the first matching rule to each diagnosed line.
func (g *PatternFixGenerator) Generate(diags []m.Diagnostic, unit m.SourceUnit) []m.Edit {
	vitest := vitestRe.MatchString(unit.Text)
	seen := make(map[int]bool, len(diags))
	lines := make([]int, 0, len(diags))

	for _, d := range diags {
		if d.Line < 1 || seen[d.Line] {
			continue
		}

		seen[d.Line] = true
		lines = append(lines, d.Line)
	}

	sort.Ints(lines)

	var edits []m.Edit

	for _, n := range lines {
		line, ok := unit.Line(n)
		if !ok {
			continue
		}

		for _, rule := range patternRules {
			out := rule.apply(line, vitest)
			if out == line {
				continue
			}

			edits = append(edits, newEdit(unit, n, line, fix{
				text:        out,
				confidence:  confidencePattern,
				fixType:     rule.fixType,
				description: rule.description,
			}, m.EngineContextual))

			break
		}
	}

	return edits
}
