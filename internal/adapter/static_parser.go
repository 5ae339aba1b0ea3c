package adapter

import (
	"context"
	"sync/atomic"

	m "mender.dev/pkg/mender/internal/model"
)

// StaticParser is an in-memory StructuralParser with canned diagnostics.
type StaticParser struct {
	fn    func(ctx context.Context, path m.Path, text string) (ParseOutput, error)
	calls atomic.Int64
}

// NewStaticParser returns a parser answering every call with fn.
func NewStaticParser(fn func(ctx context.Context, path m.Path, text string) (ParseOutput, error)) *StaticParser {
	return &StaticParser{fn: fn}
}

// NewValidParser returns a parser that reports every text as valid.
func NewValidParser() *StaticParser {
	return NewStaticParser(func(context.Context, m.Path, string) (ParseOutput, error) {
		return ParseOutput{Success: true, IsValid: true}, nil
	})
}

// Parse implements StructuralParser.
func (p *StaticParser) Parse(ctx context.Context, path m.Path, text string) (ParseOutput, error) {
	p.calls.Add(1)
	return p.fn(ctx, path, text)
}

// Calls returns how many times Parse ran.
func (p *StaticParser) Calls() int {
	return int(p.calls.Load())
}

// StaticTypeChecker is an in-memory TypeChecker with canned diagnostics.
type StaticTypeChecker struct {
	fn    func(ctx context.Context, path m.Path, text string) (TypeOutput, error)
	calls atomic.Int64
}

// NewStaticTypeChecker returns a checker answering every call with fn.
func NewStaticTypeChecker(fn func(ctx context.Context, path m.Path, text string) (TypeOutput, error)) *StaticTypeChecker {
	return &StaticTypeChecker{fn: fn}
}

// Check implements TypeChecker.
func (c *StaticTypeChecker) Check(ctx context.Context, _ m.Path, path m.Path, text string) (TypeOutput, error) {
	c.calls.Add(1)
	return c.fn(ctx, path, text)
}

// Calls returns how many times Check ran.
func (c *StaticTypeChecker) Calls() int {
	return int(c.calls.Load())
}
