package model

import "fmt"

// FixType names the class of repair an edit performs.
type FixType string

// Fix types emitted by the generators.
const (
	FixParentheses    FixType = "parentheses"
	FixCallCompletion FixType = "call_completion"
	FixAsyncPattern   FixType = "async_pattern"
	FixSemicolon      FixType = "semicolon"
	FixTypeAssertion  FixType = "type_assertion"
	FixTypeAnnotation FixType = "type_annotation"
	FixImport         FixType = "import_fix"
)

// Fix types predicted by the ranking heuristics.
const (
	FixAssertion FixType = "assertion_fix"
	FixAsync     FixType = "async_fix"
	FixMock      FixType = "mock_fix"
	FixSyntax    FixType = "syntax_fix"
	FixGeneral   FixType = "general_fix"
)

// Edit is a proposed whole-line replacement. It is valid only against the
// SourceUnit version it was computed from.
type Edit struct {
	Line        int
	OldText     string
	NewText     string
	FixType     FixType
	Confidence  float64
	Origin      Engine
	Description string
	Version     int
	// Order is the discovery order within one GENERATE phase.
	Order int
}

func (e Edit) String() string {
	return fmt.Sprintf("%s@%d %s (%.2f)", e.Origin, e.Line, e.FixType, e.Confidence)
}

// PatchSet is the set of edits applied in one iteration, sorted by line descending.
type PatchSet struct {
	Version int
	Edits   []Edit
}

// Len returns the number of edits in the set.
func (p PatchSet) Len() int {
	return len(p.Edits)
}
