package fixers

import (
	"regexp"
	"strings"

	"mender.dev/pkg/mender/internal/adapter"
	m "mender.dev/pkg/mender/internal/model"
)

// Confidences of the structural handlers.
const (
	confidenceInsertParen  = 0.9
	confidenceRemoveParen  = confidenceInsertParen * 0.8
	confidenceCallComplete = 0.95
	confidenceCallback     = 0.8
	confidenceTerminator   = 0.7
)

type syntaxHandler struct {
	// rank orders handlers competing for one line; lower wins.
	rank int
	fix  func(line string) (fix, bool)
}

var syntaxHandlers = map[m.Code]syntaxHandler{
	m.CodeIncompleteCall:    {rank: 0, fix: fixIncompleteCall},
	m.CodeUnmatchedParen:    {rank: 1, fix: fixUnmatchedParen},
	m.CodeMalformedCallback: {rank: 2, fix: fixMalformedCallback},
	m.CodeParseError:        {rank: 3, fix: fixMissingTerminator},
	m.CodeParseFailed:       {rank: 3, fix: fixMissingTerminator},
}

var (
	duplicateArrowRe = regexp.MustCompile(`=>(\s*=>)+`)
	strayParamTermRe = regexp.MustCompile(`\(([^()]*);([^()]*)\)\s*=>`)
	strayArrowTermRe = regexp.MustCompile(`\(\s*\)\s*;\s*=>`)
	openParamsTermRe = regexp.MustCompile(`\(\s*;\s*=>`)

	statementPrefixes = []string{"const ", "let ", "var ", "return ", "throw ", "import "}
	// A line ending in one of these is complete or continues on the next line.
	openEndings = []string{";", "{", "}", ")", "]", ",", "(", "[", "=", "=>", "+", "-", "*", "/", "&&", "||", "?", ":", "."}
)

// SyntaxFixGenerator repairs structural diagnostics with single-line edits.
type SyntaxFixGenerator struct{}

// NewSyntaxFixGenerator constructs a SyntaxFixGenerator.
func NewSyntaxFixGenerator() *SyntaxFixGenerator {
	return &SyntaxFixGenerator{}
}

// Engine implements Generator.
func (g *SyntaxFixGenerator) Engine() m.Engine {
	return m.EngineStructural
}

// Handles reports whether d has a structural handler.
func (g *SyntaxFixGenerator) Handles(d m.Diagnostic) bool {
	if d.Origin != m.EngineStructural {
		return false
	}

	_, ok := syntaxHandlers[d.Code]

	return ok
}

// Generate emits at most one edit per line. When several diagnostics target a
// line, the highest-ranked handler that produces a change wins.
func (g *SyntaxFixGenerator) Generate(diags []m.Diagnostic, unit m.SourceUnit) []m.Edit {
	handled, _ := Handled(diags, g.Handles)
	sortByLineThen(handled, func(a, b m.Diagnostic) bool {
		return syntaxHandlers[a.Code].rank < syntaxHandlers[b.Code].rank
	})

	edits := make([]m.Edit, 0, len(handled))
	done := make(map[int]bool, len(handled))

	for _, d := range handled {
		if done[d.Line] {
			continue
		}

		line, ok := unit.Line(d.Line)
		if !ok {
			continue
		}

		f, ok := syntaxHandlers[d.Code].fix(line)
		if !ok || f.text == line {
			continue
		}

		done[d.Line] = true
		edits = append(edits, newEdit(unit, d.Line, line, f, m.EngineStructural))
	}

	return edits
}

// fixIncompleteCall inserts a single ')' before the first ';' left inside an
// open call.
func fixIncompleteCall(line string) (fix, bool) {
	opens, closes := adapter.CountParens(line)
	if opens <= closes {
		return fix{}, false
	}

	semi := adapter.OpenTerminator(line)
	if semi < 0 {
		return fix{}, false
	}

	return fix{
		text:        line[:semi] + ")" + line[semi:],
		confidence:  confidenceCallComplete,
		fixType:     m.FixCallCompletion,
		description: "close call before statement terminator",
	}, true
}

func fixUnmatchedParen(line string) (fix, bool) {
	opens, closes := adapter.CountParens(line)

	switch {
	case opens > closes:
		return insertClosingParens(line, opens-closes)
	case closes > opens:
		return removeClosingParens(line, closes-opens)
	default:
		return fix{}, false
	}
}

func insertClosingParens(line string, missing int) (fix, bool) {
	body := strings.TrimRight(line, " \t\r")
	trailing := line[len(body):]

	// Lines opening a block or argument list continue on the next line.
	if strings.HasSuffix(body, "{") || strings.HasSuffix(body, "(") || strings.HasSuffix(body, ",") || strings.HasSuffix(body, "=>") {
		return fix{}, false
	}

	parens := strings.Repeat(")", missing)

	var text string
	if strings.HasSuffix(body, ";") {
		text = body[:len(body)-1] + parens + ";" + trailing
	} else {
		text = body + parens + trailing
	}

	return fix{
		text:        text,
		confidence:  confidenceInsertParen,
		fixType:     m.FixParentheses,
		description: "insert missing closing parentheses",
	}, true
}

func removeClosingParens(line string, excess int) (fix, bool) {
	b := []byte(line)

	for i := len(b) - 1; i >= 0 && excess > 0; i-- {
		if b[i] == ')' {
			b = append(b[:i], b[i+1:]...)
			excess--
		}
	}

	if excess > 0 {
		return fix{}, false
	}

	return fix{
		text:        string(b),
		confidence:  confidenceRemoveParen,
		fixType:     m.FixParentheses,
		description: "remove excess closing parentheses",
	}, true
}

func fixMalformedCallback(line string) (fix, bool) {
	text := duplicateArrowRe.ReplaceAllString(line, "=>")
	text = strayParamTermRe.ReplaceAllStringFunc(text, func(match string) string {
		sub := strayParamTermRe.FindStringSubmatch(match)
		params := strings.TrimSpace(strings.TrimSpace(sub[1]) + " " + strings.TrimSpace(sub[2]))

		return "(" + params + ") =>"
	})
	text = strayArrowTermRe.ReplaceAllString(text, "() =>")
	text = openParamsTermRe.ReplaceAllString(text, "() =>")

	return fix{
		text:        text,
		confidence:  confidenceCallback,
		fixType:     m.FixAsyncPattern,
		description: "collapse malformed callback arrow",
	}, text != line
}

func fixMissingTerminator(line string) (fix, bool) {
	body := strings.TrimRight(line, " \t\r")
	trimmed := strings.TrimSpace(body)

	if !hasAnyPrefix(trimmed, statementPrefixes) {
		return fix{}, false
	}

	for _, ending := range openEndings {
		if strings.HasSuffix(trimmed, ending) {
			return fix{}, false
		}
	}

	return fix{
		text:        body + ";" + line[len(body):],
		confidence:  confidenceTerminator,
		fixType:     m.FixSemicolon,
		description: "append missing statement terminator",
	}, true
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}

	return false
}
