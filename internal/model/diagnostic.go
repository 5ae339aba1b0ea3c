package model

import (
	"fmt"
	"strconv"
	"strings"
)

// Severity classifies how serious a diagnostic is.
type Severity uint8

// Available Severity values.
const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// ParseSeverity maps a collaborator severity string to a Severity. Unknown values are errors.
func ParseSeverity(value string) Severity {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "info", "message", "suggestion":
		return SeverityInfo
	case "warning", "warn":
		return SeverityWarning
	default:
		return SeverityError
	}
}

// Engine identifies which fix engine (or analysis path) produced an item.
// The numeric value is the engine's priority when edits collide.
type Engine uint8

// Available Engine values, lowest priority first.
const (
	EngineUnknown Engine = iota
	EngineContextual
	EngineType
	EngineStructural
)

// Priority returns the collision priority of the engine: structural > type > contextual.
func (e Engine) Priority() int {
	return int(e)
}

func (e Engine) String() string {
	switch e {
	case EngineStructural:
		return "structural"
	case EngineType:
		return "type"
	case EngineContextual:
		return "contextual"
	default:
		return "unknown"
	}
}

// Code is the kind of a diagnostic: a structural kind or a type-checker code such as TS2339.
type Code string

// Structural diagnostic kinds.
const (
	CodeUnmatchedParen    Code = "UNMATCHED_PAREN"
	CodeIncompleteCall    Code = "INCOMPLETE_CALL"
	CodeMalformedCallback Code = "MALFORMED_CALLBACK"
	CodeParseError        Code = "PARSE_ERROR"
	CodeParseFailed       Code = "PARSE_FAILED"
	CodeUnsupportedType   Code = "UNSUPPORTED_TYPE"
)

const typeCodePrefix = "TS"

// TypeCode is the numeric code reported by the type checker.
type TypeCode int

// Type-checker codes with dedicated handlers.
const (
	TypePropertyMissing  TypeCode = 2339
	TypePropertyMisspelt TypeCode = 2551
	TypeArgumentMismatch TypeCode = 2345
	TypeAssignMismatch   TypeCode = 2322
	TypeNameNotFound     TypeCode = 2304
	TypeObjectUnknown    TypeCode = 2571
	TypeValueUnknown     TypeCode = 18046
	TypeImplicitAnyParam TypeCode = 7006
)

// Code returns the diagnostic code for t, e.g. TS2339.
func (t TypeCode) Code() Code {
	return Code(fmt.Sprintf("%s%d", typeCodePrefix, int(t)))
}

// TypeCode extracts the numeric type-checker code, if c is one.
func (c Code) TypeCode() (TypeCode, bool) {
	raw := strings.TrimPrefix(string(c), typeCodePrefix)
	if raw == string(c) {
		return 0, false
	}

	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}

	return TypeCode(n), true
}

// Diagnostic is a single problem reported against a SourceUnit.
type Diagnostic struct {
	Line     int
	Column   int
	Message  string
	Severity Severity
	Code     Code
	Origin   Engine
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%d:%d %s %s: %s", d.Line, d.Column, d.Severity, d.Code, d.Message)
}

// NodeSummary is a coarse description of a syntax tree node.
type NodeSummary struct {
	Type   string `json:"type"`
	Name   string `json:"name,omitempty"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
}

// Analysis is what the parser adapter reports for one SourceUnit.
type Analysis struct {
	Valid       bool
	Diagnostics []Diagnostic
	Nodes       []NodeSummary
	FileKind    string
}

// Codes returns the distinct diagnostic codes of a, in first-seen order.
func (a Analysis) Codes() []Code {
	seen := make(map[Code]bool, len(a.Diagnostics))
	codes := make([]Code, 0, len(a.Diagnostics))

	for _, d := range a.Diagnostics {
		if seen[d.Code] {
			continue
		}

		seen[d.Code] = true
		codes = append(codes, d.Code)
	}

	return codes
}

// HasLine reports whether any diagnostic targets line.
func (a Analysis) HasLine(line int) bool {
	for _, d := range a.Diagnostics {
		if d.Line == line {
			return true
		}
	}

	return false
}
