package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	m "mender.dev/pkg/mender/internal/model"
)

const (
	maxSyntaxErrors = 50
	maxTreeDepth    = 1000
	maxNodeSummary  = 200
	maxErrorContext = 40
)

// TreeSitterParser is an in-process StructuralParser backed by tree-sitter grammars.
type TreeSitterParser struct{}

// NewTreeSitterParser constructs a TreeSitterParser.
func NewTreeSitterParser() *TreeSitterParser {
	return &TreeSitterParser{}
}

// Parse parses text with the grammar matching path's extension.
func (p *TreeSitterParser) Parse(ctx context.Context, path m.Path, text string) (ParseOutput, error) {
	if err := ctx.Err(); err != nil {
		return ParseOutput{}, err
	}

	kind := FileKind(path)

	lang := languageFor(kind)
	if lang == nil {
		return ParseOutput{}, fmt.Errorf("%w: %s", ErrUnsupportedFile, path)
	}

	// A parser instance is not safe for concurrent use.
	parser := sitter.NewParser()
	parser.SetLanguage(lang)

	content := []byte(text)

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		slog.Error("tree-sitter parse failed", "path", path, "error", err)
		return ParseOutput{}, fmt.Errorf("tree-sitter parse: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil {
		return ParseOutput{}, fmt.Errorf("tree-sitter returned no root node for %s", path)
	}

	out := ParseOutput{
		Success:  true,
		IsValid:  !root.HasError(),
		FileKind: kind,
	}

	if root.HasError() {
		collectSyntaxErrors(root, content, &out.SyntaxErrors, 0)
	}

	out.ASTNodes = summarizeNodes(root, content)

	slog.Debug("tree-sitter parsed", "path", path, "valid", out.IsValid, "errors", len(out.SyntaxErrors))

	return out, nil
}

func languageFor(kind string) *sitter.Language {
	switch kind {
	case "typescript":
		return typescript.GetLanguage()
	case "tsx", "jsx":
		return tsx.GetLanguage()
	case "javascript":
		return javascript.GetLanguage()
	default:
		return nil
	}
}

func collectSyntaxErrors(node *sitter.Node, content []byte, out *[]RawSyntaxError, depth int) {
	if depth > maxTreeDepth || len(*out) >= maxSyntaxErrors {
		return
	}

	if node.IsError() || node.IsMissing() {
		start := node.StartPoint()

		msg := "Syntax error"
		if node.IsMissing() {
			msg = fmt.Sprintf("Missing %s", node.Type())
		} else if snippet := errorContext(node, content); snippet != "" {
			msg = fmt.Sprintf("Unexpected: %s", snippet)
		}

		*out = append(*out, RawSyntaxError{
			Line:      int(start.Row) + 1,
			Column:    int(start.Column) + 1,
			Message:   msg,
			Severity:  "error",
			ErrorCode: string(m.CodeParseError),
			Source:    "tree-sitter",
		})

		// Children of an ERROR node repeat the same problem.
		if node.IsError() {
			return
		}
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		collectSyntaxErrors(node.Child(i), content, out, depth+1)
	}
}

func errorContext(node *sitter.Node, content []byte) string {
	start, end := node.StartByte(), node.EndByte()
	if end > uint32(len(content)) {
		end = uint32(len(content))
	}

	if end <= start {
		return ""
	}

	snippet := strings.TrimSpace(string(content[start:end]))
	if idx := strings.IndexByte(snippet, '\n'); idx >= 0 {
		snippet = snippet[:idx]
	}

	if len(snippet) > maxErrorContext {
		snippet = snippet[:maxErrorContext] + "..."
	}

	return snippet
}

// summarizeNodes lists top-level imports and calls such as describe/it/test.
func summarizeNodes(root *sitter.Node, content []byte) []m.NodeSummary {
	nodes := make([]m.NodeSummary, 0)

	for i := 0; i < int(root.NamedChildCount()) && len(nodes) < maxNodeSummary; i++ {
		child := root.NamedChild(i)
		start := child.StartPoint()

		summary := m.NodeSummary{
			Type:   child.Type(),
			Line:   int(start.Row) + 1,
			Column: int(start.Column) + 1,
		}

		switch child.Type() {
		case "import_statement":
			if src := child.ChildByFieldName("source"); src != nil {
				summary.Name = strings.Trim(src.Content(content), `"'`)
			}
		case "expression_statement":
			if call := child.NamedChild(0); call != nil && call.Type() == "call_expression" {
				summary.Type = call.Type()
				if fn := call.ChildByFieldName("function"); fn != nil {
					summary.Name = fn.Content(content)
				}
			}
		}

		nodes = append(nodes, summary)
	}

	return nodes
}
