package adapter

import (
	"context"
	"errors"
	"path/filepath"
	"strings"

	m "mender.dev/pkg/mender/internal/model"
)

// ErrUnsupportedFile is returned by collaborators for files they cannot analyze.
var ErrUnsupportedFile = errors.New("unsupported file type")

// RawSyntaxError is a structural problem as reported by a parser collaborator.
type RawSyntaxError struct {
	Line      int    `json:"line"`
	Column    int    `json:"column"`
	Message   string `json:"message"`
	Severity  string `json:"severity"`
	ErrorCode string `json:"errorCode"`
	Source    string `json:"source"`
}

// ParseOutput is the structural parser wire format.
type ParseOutput struct {
	Success      bool             `json:"success"`
	IsValid      bool             `json:"isValid"`
	SyntaxErrors []RawSyntaxError `json:"syntaxErrors"`
	ASTNodes     []m.NodeSummary  `json:"astNodes"`
	FileKind     string           `json:"fileType"`
	Error        string           `json:"error,omitempty"`
}

// RawTypeDiagnostic is a type problem as reported by a type-analysis collaborator.
type RawTypeDiagnostic struct {
	Line     int    `json:"line"`
	Column   int    `json:"column"`
	Message  string `json:"message"`
	Severity string `json:"severity"`
	Code     int    `json:"code"`
	Category string `json:"category"`
	File     string `json:"file"`
}

// TypeOutput is the type-analysis wire format.
type TypeOutput struct {
	Success         bool                `json:"success"`
	Diagnostics     []RawTypeDiagnostic `json:"diagnostics"`
	TypeDefinitions map[string]string   `json:"typeDefinitions,omitempty"`
	Imports         []string            `json:"imports,omitempty"`
	InferredTypes   map[string]string   `json:"inferredTypes,omitempty"`
}

// StructuralParser produces syntax diagnostics for a file's text.
type StructuralParser interface {
	Parse(ctx context.Context, path m.Path, text string) (ParseOutput, error)
}

// TypeChecker produces static-type diagnostics for a file's text within a project.
type TypeChecker interface {
	Check(ctx context.Context, projectRoot m.Path, path m.Path, text string) (TypeOutput, error)
}

// FileKind classifies path by extension; the empty string means unsupported.
func FileKind(path m.Path) string {
	switch strings.ToLower(filepath.Ext(string(path))) {
	case ".ts", ".mts", ".cts":
		return "typescript"
	case ".tsx":
		return "tsx"
	case ".js", ".mjs", ".cjs":
		return "javascript"
	case ".jsx":
		return "jsx"
	default:
		return ""
	}
}
