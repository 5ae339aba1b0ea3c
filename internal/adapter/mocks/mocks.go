// Package mocks provides testify mocks for the adapter interfaces.
package mocks

import (
	"context"
	"os"

	"github.com/stretchr/testify/mock"

	"mender.dev/pkg/mender/internal/adapter"
	m "mender.dev/pkg/mender/internal/model"
)

// MockCommandRunner is a mock of adapter.CommandRunner.
type MockCommandRunner struct {
	mock.Mock
}

// Run provides a mock function.
func (_m *MockCommandRunner) Run(ctx context.Context, dir string, name string, args ...string) (string, string, int, error) {
	ret := _m.Called(ctx, dir, name, args)

	return ret.String(0), ret.String(1), ret.Int(2), ret.Error(3)
}

// MockSourceFSAdapter is a mock of adapter.SourceFSAdapter.
type MockSourceFSAdapter struct {
	mock.Mock
}

// Walk provides a mock function.
func (_m *MockSourceFSAdapter) Walk(root m.Path, recursive bool, fn adapter.FilepathWalkFunc) error {
	ret := _m.Called(root, recursive, fn)
	return ret.Error(0)
}

// ReadFile provides a mock function.
func (_m *MockSourceFSAdapter) ReadFile(path m.Path) ([]byte, error) {
	ret := _m.Called(path)

	var r0 []byte
	if rf, ok := ret.Get(0).(func(m.Path) []byte); ok {
		r0 = rf(path)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).([]byte)
	}

	return r0, ret.Error(1)
}

// WriteFile provides a mock function.
func (_m *MockSourceFSAdapter) WriteFile(path m.Path, content []byte, perm os.FileMode) error {
	ret := _m.Called(path, content, perm)
	return ret.Error(0)
}

// FileInfo provides a mock function.
func (_m *MockSourceFSAdapter) FileInfo(path m.Path) (os.FileInfo, error) {
	ret := _m.Called(path)

	var r0 os.FileInfo
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(os.FileInfo)
	}

	return r0, ret.Error(1)
}

// FindProjectRoot provides a mock function.
func (_m *MockSourceFSAdapter) FindProjectRoot(startPath m.Path) (m.Path, error) {
	ret := _m.Called(startPath)
	return ret.Get(0).(m.Path), ret.Error(1)
}

// FindTestFiles provides a mock function.
func (_m *MockSourceFSAdapter) FindTestFiles(root m.Path, patterns []string, exclude []string) ([]m.Path, error) {
	ret := _m.Called(root, patterns, exclude)

	var r0 []m.Path
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]m.Path)
	}

	return r0, ret.Error(1)
}

var (
	_ adapter.CommandRunner   = (*MockCommandRunner)(nil)
	_ adapter.SourceFSAdapter = (*MockSourceFSAdapter)(nil)
)

// MockParserAdapter is a mock of adapter.ParserAdapter.
type MockParserAdapter struct {
	mock.Mock
}

// Analyze provides a mock function.
func (_m *MockParserAdapter) Analyze(ctx context.Context, unit m.SourceUnit, withTypes bool) m.Analysis {
	ret := _m.Called(ctx, unit, withTypes)

	if rf, ok := ret.Get(0).(func(context.Context, m.SourceUnit, bool) m.Analysis); ok {
		return rf(ctx, unit, withTypes)
	}

	return ret.Get(0).(m.Analysis)
}
