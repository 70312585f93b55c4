package testsupport

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

// WriteFile creates the target path's directory and writes the content.
func WriteFile(t testing.TB, path string, content []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("create directory for %s: %v", path, err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// WriteManifest marshals the descriptors into a manifest file under the
// test's temp directory and returns its path.
func WriteManifest(t testing.TB, descriptors any) string {
	t.Helper()
	data, err := json.MarshalIndent(descriptors, "", "  ")
	if err != nil {
		t.Fatalf("marshal manifest: %v", err)
	}
	path := filepath.Join(t.TempDir(), "manifest.json")
	WriteFile(t, path, data)
	return path
}
