// Package controller provides output adapters for displaying repair results.
package controller

import (
	"context"

	m "mender.dev/pkg/mender/internal/model"
)

// StartOption is a functional option for Start method.
type StartOption func(*StartConfig)

// StartConfig holds configuration for starting the UI.
type StartConfig struct {
	dryRun   bool
	showDiff bool
}

// WithDryRun marks the session as a dry run.
func WithDryRun() StartOption {
	return func(c *StartConfig) {
		c.dryRun = true
	}
}

// WithDiff prints the unified diff of every changed file.
func WithDiff() StartOption {
	return func(c *StartConfig) {
		c.showDiff = true
	}
}

// UI displays the progress and outcome of a repair run.
// Display methods may be called from several workers at once.
type UI interface {
	Start(ctx context.Context, options ...StartOption) error
	Close(ctx context.Context)
	DisplayBatchStart(ctx context.Context, files int, threads int)
	DisplayFileResult(ctx context.Context, result m.FileResult)
	DisplayBatchReport(ctx context.Context, report m.BatchReport)
	DisplayLearnedModel(ctx context.Context, stats map[m.FixType]m.FixTypeStats)
}
