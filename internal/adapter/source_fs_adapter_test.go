package adapter

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	m "mender.dev/pkg/mender/internal/model"
)

func TestLocalSourceFSAdapter_Walk(t *testing.T) {
	t.Run("non recursive skips nested files", func(t *testing.T) {
		adapter := NewLocalSourceFSAdapter()

		root := t.TempDir()
		writeTestFile(t, filepath.Join(root, "app.test.ts"), "it('works', () => {});\n")

		nestedDir := filepath.Join(root, "nested")
		mustMkdir(t, nestedDir)
		writeTestFile(t, filepath.Join(nestedDir, "child.test.ts"), "it('nested', () => {});\n")

		var visited []string
		err := adapter.Walk(m.Path(root), false, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			visited = append(visited, path)
			return nil
		})
		if err != nil {
			t.Fatalf("Walk() error = %v", err)
		}

		for _, forbidden := range []string{nestedDir, filepath.Join(nestedDir, "child.test.ts")} {
			if containsPath(visited, forbidden) {
				t.Fatalf("Walk() unexpectedly visited %s when recursive is false", forbidden)
			}
		}

		if !containsPath(visited, filepath.Join(root, "app.test.ts")) {
			t.Fatalf("Walk() did not visit top-level file")
		}
	})

	t.Run("recursive visits nested files", func(t *testing.T) {
		adapter := NewLocalSourceFSAdapter()

		root := t.TempDir()
		nestedDir := filepath.Join(root, "nested")
		mustMkdir(t, nestedDir)
		child := filepath.Join(nestedDir, "child.test.ts")
		writeTestFile(t, child, "it('nested', () => {});\n")

		var visited []string
		err := adapter.Walk(m.Path(root), true, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			visited = append(visited, path)
			return nil
		})
		if err != nil {
			t.Fatalf("Walk() error = %v", err)
		}

		if !containsPath(visited, child) {
			t.Fatalf("Walk() did not visit nested file when recursive")
		}
	})
}

func TestLocalSourceFSAdapter_ReadWriteFile(t *testing.T) {
	adapter := NewLocalSourceFSAdapter()

	path := filepath.Join(t.TempDir(), "app.test.ts")
	writeTestFile(t, path, "const a = 1\n")

	if err := adapter.WriteFile(m.Path(path), []byte("const a = 1;\n"), 0o640); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	data, err := adapter.ReadFile(m.Path(path))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}

	if string(data) != "const a = 1;\n" {
		t.Fatalf("ReadFile() = %q", data)
	}

	info, err := adapter.FileInfo(m.Path(path))
	if err != nil {
		t.Fatalf("FileInfo() error = %v", err)
	}

	if info.Mode().Perm() != 0o640 {
		t.Fatalf("WriteFile() mode = %v, want 0640", info.Mode().Perm())
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}

	if len(entries) != 1 {
		t.Fatalf("WriteFile() left %d entries behind, want 1", len(entries))
	}
}

func TestLocalSourceFSAdapter_WriteFile_MissingDir(t *testing.T) {
	adapter := NewLocalSourceFSAdapter()

	err := adapter.WriteFile(m.Path(filepath.Join(t.TempDir(), "missing", "a.test.ts")), []byte("x"), 0o644)
	if err == nil {
		t.Fatalf("WriteFile() expected error for missing directory")
	}
}

func TestLocalSourceFSAdapter_FindProjectRoot(t *testing.T) {
	adapter := NewLocalSourceFSAdapter()

	root := t.TempDir()
	writeTestFile(t, filepath.Join(root, "package.json"), "{}\n")

	src := filepath.Join(root, "src", "components")
	if err := os.MkdirAll(src, 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}

	got, err := adapter.FindProjectRoot(m.Path(filepath.Join(src, "button.test.tsx")))
	if err != nil {
		t.Fatalf("FindProjectRoot() error = %v", err)
	}

	if string(got) != root {
		t.Fatalf("FindProjectRoot() = %s, want %s", got, root)
	}
}

func TestLocalSourceFSAdapter_FindTestFiles(t *testing.T) {
	adapter := NewLocalSourceFSAdapter()

	root := t.TempDir()
	mustMkdir(t, filepath.Join(root, "src"))
	mustMkdir(t, filepath.Join(root, "node_modules"))
	mustMkdir(t, filepath.Join(root, "legacy"))

	writeTestFile(t, filepath.Join(root, "src", "b.test.tsx"), "")
	writeTestFile(t, filepath.Join(root, "src", "a.spec.ts"), "")
	writeTestFile(t, filepath.Join(root, "src", "a.ts"), "")
	writeTestFile(t, filepath.Join(root, "src", ".mender-123-a.test.ts"), "")
	writeTestFile(t, filepath.Join(root, "node_modules", "dep.test.ts"), "")
	writeTestFile(t, filepath.Join(root, "legacy", "old.test.ts"), "")

	t.Run("default patterns", func(t *testing.T) {
		files, err := adapter.FindTestFiles(m.Path(root), nil, nil)
		if err != nil {
			t.Fatalf("FindTestFiles() error = %v", err)
		}

		want := []m.Path{
			m.Path(filepath.Join(root, "legacy", "old.test.ts")),
			m.Path(filepath.Join(root, "src", "a.spec.ts")),
			m.Path(filepath.Join(root, "src", "b.test.tsx")),
		}

		if fmt.Sprint(files) != fmt.Sprint(want) {
			t.Fatalf("FindTestFiles() = %v, want %v", files, want)
		}
	})

	t.Run("custom pattern and exclude", func(t *testing.T) {
		files, err := adapter.FindTestFiles(m.Path(root), []string{"*.test.ts"}, []string{"legacy/"})
		if err != nil {
			t.Fatalf("FindTestFiles() error = %v", err)
		}

		if len(files) != 0 {
			t.Fatalf("FindTestFiles() = %v, want none", files)
		}
	})

	t.Run("invalid exclude", func(t *testing.T) {
		if _, err := adapter.FindTestFiles(m.Path(root), nil, []string{"("}); err == nil {
			t.Fatalf("FindTestFiles() expected error for invalid regexp")
		}
	})
}

func writeTestFile(t *testing.T, path, contents string) {
	t.Helper()
	writeTestBytes(t, path, []byte(contents))
}

func writeTestBytes(t *testing.T, path string, contents []byte) {
	t.Helper()
	if err := os.WriteFile(path, contents, 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

func mustMkdir(t *testing.T, path string) {
	t.Helper()
	if err := os.Mkdir(path, 0o755); err != nil {
		t.Fatalf("failed to create dir %s: %v", path, err)
	}
}

func containsPath(paths []string, target string) bool {
	for _, p := range paths {
		if p == target {
			return true
		}
	}

	return false
}
