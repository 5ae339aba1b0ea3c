// Package fixers holds the fix-generating engines. Each engine maps the
// diagnostics it understands to single-line edits and ignores the rest.
package fixers

import (
	"sort"
	"strings"

	m "mender.dev/pkg/mender/internal/model"
)

// Generator produces candidate edits for one SourceUnit version.
type Generator interface {
	Engine() m.Engine
	Generate(diags []m.Diagnostic, unit m.SourceUnit) []m.Edit
}

// fix is what a handler proposes for one line.
type fix struct {
	text        string
	confidence  float64
	fixType     m.FixType
	description string
}

// Handled reports which diagnostics g has a handler for and which it leaves remaining.
func Handled(diags []m.Diagnostic, handles func(m.Diagnostic) bool) (handled, remaining []m.Diagnostic) {
	for _, d := range diags {
		if handles(d) {
			handled = append(handled, d)
		} else {
			remaining = append(remaining, d)
		}
	}

	return handled, remaining
}

func sortByLineThen(diags []m.Diagnostic, less func(a, b m.Diagnostic) bool) {
	sort.SliceStable(diags, func(i, j int) bool {
		a, b := diags[i], diags[j]
		if a.Line != b.Line {
			return a.Line < b.Line
		}

		if less(a, b) {
			return true
		}

		if less(b, a) {
			return false
		}

		if a.Column != b.Column {
			return a.Column < b.Column
		}

		if a.Code != b.Code {
			return a.Code < b.Code
		}

		return a.Message < b.Message
	})
}

func isIdentByte(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func hasUnsafeCast(line string) bool {
	return strings.Contains(line, " as any") || strings.Contains(line, " as unknown")
}

func newEdit(unit m.SourceUnit, line int, old string, f fix, origin m.Engine) m.Edit {
	return m.Edit{
		Line:        line,
		OldText:     old,
		NewText:     f.text,
		FixType:     f.fixType,
		Confidence:  f.confidence,
		Origin:      origin,
		Description: f.description,
		Version:     unit.Version,
	}
}
