package adapter

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	m "mender.dev/pkg/mender/internal/model"
)

// ReportStore persists batch reports.
type ReportStore interface {
	SaveReport(path m.Path, report m.BatchReport) error
	LoadReport(path m.Path) (m.BatchReport, error)
}

type yamlReportStore struct{}

// NewReportStore returns a ReportStore that writes YAML documents.
func NewReportStore() ReportStore {
	return &yamlReportStore{}
}

func (s *yamlReportStore) SaveReport(path m.Path, report m.BatchReport) error {
	data, err := yaml.Marshal(report)
	if err != nil {
		slog.Error("failed to encode report", "path", path, "error", err)
		return fmt.Errorf("encode report: %w", err)
	}

	if dir := filepath.Dir(string(path)); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			slog.Error("failed to create report dir", "dir", dir, "error", err)
			return fmt.Errorf("create report dir: %w", err)
		}
	}

	if err := os.WriteFile(string(path), data, 0o600); err != nil {
		slog.Error("failed to write report", "path", path, "error", err)
		return fmt.Errorf("write report: %w", err)
	}

	return nil
}

func (s *yamlReportStore) LoadReport(path m.Path) (m.BatchReport, error) {
	data, err := os.ReadFile(string(path))
	if err != nil {
		return m.BatchReport{}, fmt.Errorf("read report: %w", err)
	}

	var report m.BatchReport
	if err := yaml.Unmarshal(data, &report); err != nil {
		return m.BatchReport{}, fmt.Errorf("decode report: %w", err)
	}

	return report, nil
}
