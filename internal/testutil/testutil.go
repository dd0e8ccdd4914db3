package testutil

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

// GetProjectRoot returns the directory holding go.mod, starting from this
// source file so tests work from any package directory.
func GetProjectRoot() (string, error) {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return "", errors.New("failed to get caller information")
	}
	for dir := filepath.Dir(filename); ; dir = filepath.Dir(dir) {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		if filepath.Dir(dir) == dir {
			return "", errors.New("could not find go.mod above " + filepath.Dir(filename))
		}
	}
}

// TestdataPath joins elem below the project's testdata directory.
func TestdataPath(t *testing.T, elem ...string) string {
	t.Helper()

	root, err := GetProjectRoot()
	require.NoError(t, err, "Failed to find project root")
	return filepath.Join(append([]string{root, "testdata"}, elem...)...)
}

// LoadDocument reads a sample upload from testdata/documents.
func LoadDocument(t *testing.T, name string) []byte {
	t.Helper()

	data, err := os.ReadFile(TestdataPath(t, "documents", name)) //nolint:gosec // G304: Reading test fixture files with controlled paths
	require.NoError(t, err)
	return data
}
