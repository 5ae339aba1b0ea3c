package adapter

import (
	"regexp"
	"strings"

	m "mender.dev/pkg/mender/internal/model"
)

// Lines containing one of these calls are checked for paren balance.
var testCallMarkers = []string{"expect(", "render(", "waitFor(", "screen.getBy"}

// Call shapes whose closing paren is commonly dropped before the terminator.
var incompleteCallShapes = []string{
	"setSystemTime(",
	"advanceTimersByTime(",
	"mockReturnValue(",
	"mockResolvedValue(",
	"toHaveBeenCalledWith(",
}

var (
	duplicateArrowRe  = regexp.MustCompile(`=>\s*=>`)
	strayParamTermRe  = regexp.MustCompile(`\(([^()]*);([^()]*)\)\s*=>`)
	strayArrowTermRe  = regexp.MustCompile(`\(\s*\)\s*;\s*=>`)
	openParamsTermRe  = regexp.MustCompile(`\(\s*;\s*=>`)
	callbackMalformed = []*regexp.Regexp{duplicateArrowRe, strayParamTermRe, strayArrowTermRe, openParamsTermRe}
)

// DetectPatterns scans text line by line for single-line defects that are
// common in test files and reports them as structural diagnostics.
func DetectPatterns(text string) []m.Diagnostic {
	diags := make([]m.Diagnostic, 0)

	for i, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "//") || strings.HasPrefix(trimmed, "*") {
			continue
		}

		lineNo := i + 1
		opens, closes := CountParens(line)

		if isIncompleteCall(line, opens, closes) {
			diags = append(diags, structuralDiag(lineNo, line, m.CodeIncompleteCall, "Incomplete call: missing ')' before ';'"))
		}

		if opens != closes && containsAny(line, testCallMarkers) {
			diags = append(diags, structuralDiag(lineNo, line, m.CodeUnmatchedParen, "Unmatched parentheses in test call"))
		}

		if isMalformedCallback(line) {
			diags = append(diags, structuralDiag(lineNo, line, m.CodeMalformedCallback, "Malformed callback parameter list"))
		}
	}

	return diags
}

// CountParens counts parentheses outside string literals.
func CountParens(line string) (opens, closes int) {
	var quote rune

	escaped := false

	for _, r := range line {
		switch {
		case escaped:
			escaped = false
		case r == '\\':
			escaped = true
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"' || r == '`':
			quote = r
		case r == '(':
			opens++
		case r == ')':
			closes++
		}
	}

	return opens, closes
}

func isIncompleteCall(line string, opens, closes int) bool {
	if opens <= closes || !containsAny(line, incompleteCallShapes) {
		return false
	}

	semi := OpenTerminator(line)
	if semi < 0 {
		return false
	}

	return !strings.Contains(line[semi:], ")")
}

// OpenTerminator returns the byte index of the first ';' outside string
// literals that follows an unclosed '(', or -1.
func OpenTerminator(line string) int {
	var quote rune

	escaped := false
	depth := 0

	for i, r := range line {
		switch {
		case escaped:
			escaped = false
		case r == '\\':
			escaped = true
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"' || r == '`':
			quote = r
		case r == '(':
			depth++
		case r == ')':
			depth--
		case r == ';' && depth > 0:
			return i
		}
	}

	return -1
}

func isMalformedCallback(line string) bool {
	for _, re := range callbackMalformed {
		if re.MatchString(line) {
			return true
		}
	}

	return false
}

func containsAny(line string, markers []string) bool {
	for _, marker := range markers {
		if strings.Contains(line, marker) {
			return true
		}
	}

	return false
}

func structuralDiag(line int, text string, code m.Code, msg string) m.Diagnostic {
	return m.Diagnostic{
		Line:     line,
		Column:   len(text) - len(strings.TrimLeft(text, " \t")) + 1,
		Message:  msg,
		Severity: m.SeverityError,
		Code:     code,
		Origin:   m.EngineStructural,
	}
}
