package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"mender.dev/pkg/mender/internal/metrics"
	m "mender.dev/pkg/mender/internal/model"
)

// Default collaborator bounds.
const (
	DefaultStructuralTimeout = 30 * time.Second
	DefaultTypeTimeout       = 60 * time.Second
)

// ParserAdapter turns a SourceUnit into an Analysis. It never fails: a
// collaborator crash or timeout becomes one synthetic PARSE_FAILED diagnostic.
type ParserAdapter interface {
	Analyze(ctx context.Context, unit m.SourceUnit, withTypes bool) m.Analysis
}

// ParserOptions configures a ParserAdapter.
type ParserOptions struct {
	StructuralTimeout time.Duration
	TypeTimeout       time.Duration
	Metrics           *metrics.Recorder
}

type parserAdapter struct {
	structural StructuralParser
	types      TypeChecker
	fs         SourceFSAdapter
	opts       ParserOptions

	mu    sync.RWMutex
	cache map[string]m.Analysis
	group singleflight.Group
}

// NewParserAdapter constructs a ParserAdapter. types may be nil, in which case
// the type-analysis path is skipped. fs resolves project roots for the type checker.
func NewParserAdapter(structural StructuralParser, types TypeChecker, fs SourceFSAdapter, opts ParserOptions) ParserAdapter {
	if opts.StructuralTimeout <= 0 {
		opts.StructuralTimeout = DefaultStructuralTimeout
	}

	if opts.TypeTimeout <= 0 {
		opts.TypeTimeout = DefaultTypeTimeout
	}

	return &parserAdapter{
		structural: structural,
		types:      types,
		fs:         fs,
		opts:       opts,
		cache:      make(map[string]m.Analysis),
	}
}

func (a *parserAdapter) Analyze(ctx context.Context, unit m.SourceUnit, withTypes bool) m.Analysis {
	withTypes = withTypes && a.types != nil
	key := fmt.Sprintf("%s|%s|%t", unit.Path, unit.Hash, withTypes)

	if cached, ok := a.lookup(key); ok {
		a.opts.Metrics.CacheLookup(true)
		return cached
	}

	a.opts.Metrics.CacheLookup(false)

	v, _, _ := a.group.Do(key, func() (any, error) {
		analysis := a.analyze(ctx, unit, withTypes)
		// Results produced under a cancelled caller are not representative.
		if ctx.Err() == nil {
			a.mu.Lock()
			a.cache[key] = analysis
			a.mu.Unlock()
		}

		return analysis, nil
	})

	return cloneAnalysis(v.(m.Analysis))
}

func (a *parserAdapter) lookup(key string) (m.Analysis, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	cached, ok := a.cache[key]
	if !ok {
		return m.Analysis{}, false
	}

	return cloneAnalysis(cached), true
}

func (a *parserAdapter) analyze(ctx context.Context, unit m.SourceUnit, withTypes bool) m.Analysis {
	kind := FileKind(unit.Path)
	if kind == "" {
		return m.Analysis{
			Valid: false,
			Diagnostics: []m.Diagnostic{{
				Line:     1,
				Column:   1,
				Message:  fmt.Sprintf("unsupported file type: %s", filepath.Ext(string(unit.Path))),
				Severity: m.SeverityError,
				Code:     m.CodeUnsupportedType,
				Origin:   m.EngineStructural,
			}},
		}
	}

	parseCtx, cancel := context.WithTimeout(ctx, a.opts.StructuralTimeout)
	out, err := a.structural.Parse(parseCtx, unit.Path, unit.Text)
	cancel()

	if err != nil {
		slog.Warn("structural parse failed", "path", unit.Path, "version", unit.Version, "error", err)
		a.opts.Metrics.ParseFailure(m.EngineStructural.String())

		return m.Analysis{
			Valid:       false,
			Diagnostics: []m.Diagnostic{parseFailed(m.EngineStructural, err)},
			FileKind:    kind,
		}
	}

	diags := make([]m.Diagnostic, 0, len(out.SyntaxErrors))
	for _, raw := range out.SyntaxErrors {
		diags = append(diags, fromSyntaxError(raw))
	}

	diags = append(diags, DetectPatterns(unit.Text)...)

	if withTypes {
		diags = append(diags, a.typeDiagnostics(ctx, unit)...)
	}

	diags = normalizeDiagnostics(diags)

	valid := out.IsValid
	for _, d := range diags {
		if d.Severity == m.SeverityError {
			valid = false
			break
		}
	}

	return m.Analysis{
		Valid:       valid,
		Diagnostics: diags,
		Nodes:       out.ASTNodes,
		FileKind:    kind,
	}
}

func (a *parserAdapter) typeDiagnostics(ctx context.Context, unit m.SourceUnit) []m.Diagnostic {
	root := m.Path(filepath.Dir(string(unit.Path)))
	if a.fs != nil {
		if found, err := a.fs.FindProjectRoot(unit.Path); err == nil {
			root = found
		} else {
			slog.Debug("project root not found, using file directory", "path", unit.Path, "error", err)
		}
	}

	typeCtx, cancel := context.WithTimeout(ctx, a.opts.TypeTimeout)
	defer cancel()

	out, err := a.types.Check(typeCtx, root, unit.Path, unit.Text)
	if err != nil {
		slog.Warn("type analysis failed", "path", unit.Path, "version", unit.Version, "error", err)
		a.opts.Metrics.ParseFailure(m.EngineType.String())

		return []m.Diagnostic{parseFailed(m.EngineType, err)}
	}

	diags := make([]m.Diagnostic, 0, len(out.Diagnostics))
	for _, raw := range out.Diagnostics {
		diags = append(diags, m.Diagnostic{
			Line:     raw.Line,
			Column:   raw.Column,
			Message:  raw.Message,
			Severity: m.ParseSeverity(raw.Severity),
			Code:     m.TypeCode(raw.Code).Code(),
			Origin:   m.EngineType,
		})
	}

	return diags
}

func fromSyntaxError(raw RawSyntaxError) m.Diagnostic {
	code := m.Code(raw.ErrorCode)
	if code == "" {
		code = m.CodeParseError
	}

	line := raw.Line
	if line < 1 {
		line = 1
	}

	return m.Diagnostic{
		Line:     line,
		Column:   raw.Column,
		Message:  raw.Message,
		Severity: m.ParseSeverity(raw.Severity),
		Code:     code,
		Origin:   m.EngineStructural,
	}
}

func parseFailed(origin m.Engine, err error) m.Diagnostic {
	return m.Diagnostic{
		Line:     1,
		Column:   1,
		Message:  fmt.Sprintf("parse failed: %v", err),
		Severity: m.SeverityError,
		Code:     m.CodeParseFailed,
		Origin:   origin,
	}
}

// normalizeDiagnostics sorts diagnostics and drops exact duplicates.
func normalizeDiagnostics(diags []m.Diagnostic) []m.Diagnostic {
	sort.SliceStable(diags, func(i, j int) bool {
		a, b := diags[i], diags[j]
		if a.Line != b.Line {
			return a.Line < b.Line
		}

		if a.Column != b.Column {
			return a.Column < b.Column
		}

		if a.Code != b.Code {
			return a.Code < b.Code
		}

		return a.Message < b.Message
	})

	out := diags[:0]

	for _, d := range diags {
		if len(out) > 0 && d == out[len(out)-1] {
			continue
		}

		out = append(out, d)
	}

	return out
}

func cloneAnalysis(a m.Analysis) m.Analysis {
	a.Diagnostics = append([]m.Diagnostic(nil), a.Diagnostics...)
	a.Nodes = append([]m.NodeSummary(nil), a.Nodes...)

	return a
}
