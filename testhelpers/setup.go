package testhelpers

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// Project is a temporary project tree.
type Project struct {
	t    *testing.T
	Root string
}

// NewProject writes files (slash-separated relative path -> content) into a
// fresh temporary directory.
func NewProject(t *testing.T, files map[string]string) *Project {
	t.Helper()
	p := &Project{t: t, Root: t.TempDir()}
	for name, content := range files {
		p.Write(name, content)
	}
	return p
}

// Path returns the absolute path of a project-relative name.
func (p *Project) Path(name string) string {
	return filepath.Join(p.Root, filepath.FromSlash(name))
}

// Write creates or replaces a file, creating parent directories.
func (p *Project) Write(name, content string) {
	p.t.Helper()
	path := p.Path(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		p.t.Fatalf("mkdir %s: %v", name, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		p.t.Fatalf("write %s: %v", name, err)
	}
}

// Read returns a file's content.
func (p *Project) Read(name string) string {
	p.t.Helper()
	b, err := os.ReadFile(p.Path(name))
	if err != nil {
		p.t.Fatalf("read %s: %v", name, err)
	}
	return string(b)
}

// Exists reports whether name exists.
func (p *Project) Exists(name string) bool {
	_, err := os.Stat(p.Path(name))
	return err == nil
}

// Rename moves a file or directory, creating the destination's parent.
func (p *Project) Rename(oldName, newName string) {
	p.t.Helper()
	if err := os.MkdirAll(filepath.Dir(p.Path(newName)), 0o755); err != nil {
		p.t.Fatalf("mkdir for %s: %v", newName, err)
	}
	if err := os.Rename(p.Path(oldName), p.Path(newName)); err != nil {
		p.t.Fatalf("rename %s -> %s: %v", oldName, newName, err)
	}
}

// Remove deletes a file or directory tree.
func (p *Project) Remove(name string) {
	p.t.Helper()
	if err := os.RemoveAll(p.Path(name)); err != nil {
		p.t.Fatalf("remove %s: %v", name, err)
	}
}

// WaitFor waits for a condition to become true with timeout
// Usage:
//
//	testhelpers.WaitFor(t, func() bool {
//	    return project.Read("doc.md") == want
//	}, 5*time.Second)
func WaitFor(t *testing.T, condition func() bool, timeout time.Duration) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for range ticker.C {
		if condition() {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("Condition not met within %v", timeout)
			return
		}
	}
}
