package fixers

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	functionOpenRe = regexp.MustCompile(`(\basync\s+)?(?:\([^()]*\)|[\w$]+)\s*=>\s*\{|(\basync\s+)?\bfunction\b[^{]*\{`)
	awaitRe        = regexp.MustCompile(`\bawait\b`)
	interfaceRe    = regexp.MustCompile(`(?m)^\s*(?:export\s+)?interface\s+\w+`)
)

// Finding is a problem that needs a human rather than an edit.
type Finding struct {
	Line    int
	Message string
}

func (f Finding) String() string {
	if f.Line == 0 {
		return f.Message
	}

	return fmt.Sprintf("line %d: %s", f.Line, f.Message)
}

type functionScope struct {
	depth int
	async bool
}

// DetectSemanticIssues reports patterns that no single-line fix can repair
// safely: await in a non-async function body, and mock return values checked
// against a declared interface.
func DetectSemanticIssues(text string) []Finding {
	var (
		findings []Finding
		scopes   []functionScope
		depth    int
	)

	for i, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "//") || strings.HasPrefix(trimmed, "*") {
			continue
		}

		for _, loc := range functionOpenRe.FindAllStringSubmatchIndex(line, -1) {
			async := loc[2] >= 0 || loc[4] >= 0
			opens, closes := countBraces(line[:loc[1]])
			scopes = append(scopes, functionScope{depth: depth + opens - closes, async: async})
		}

		if awaitRe.MatchString(stripStrings(line)) && len(scopes) > 0 && !scopes[len(scopes)-1].async {
			findings = append(findings, Finding{Line: i + 1, Message: "await used inside a non-async function"})
		}

		opens, closes := countBraces(line)
		depth += opens - closes

		for len(scopes) > 0 && depth < scopes[len(scopes)-1].depth {
			scopes = scopes[:len(scopes)-1]
		}
	}

	if strings.Contains(text, "mockReturnValue") && interfaceRe.MatchString(text) {
		findings = append(findings, Finding{Message: "mock return values may not match the declared interface"})
	}

	return findings
}

func countBraces(line string) (int, int) {
	clean := stripStrings(line)

	return strings.Count(clean, "{"), strings.Count(clean, "}")
}

// stripStrings blanks out quoted literals so their contents are not counted.
func stripStrings(line string) string {
	b := []byte(line)

	var quote byte

	for i := 0; i < len(b); i++ {
		c := b[i]

		if quote != 0 {
			if c == '\\' && i+1 < len(b) {
				b[i], b[i+1] = ' ', ' '
				i++

				continue
			}

			if c == quote {
				quote = 0
			} else {
				b[i] = ' '
			}

			continue
		}

		if c == '\'' || c == '"' || c == '`' {
			quote = c
		}
	}

	return string(b)
}
