package adapter

import (
	"crypto/sha256"
	"fmt"
	"io"
	"os"

	m "github.com/opaquebits/modelinspect/internal/model"
)

// ArtifactFS abstracts the filesystem operations the scan workflow needs.
// It hides direct `os` access so the workflow can be tested without
// touching the disk.
type ArtifactFS interface {
	// ReadFile loads a file from disk and returns its contents.
	ReadFile(path m.Path) ([]byte, error)

	// FileInfo returns metadata for a path so the workflow can check
	// existence and size before loading.
	FileInfo(path m.Path) (os.FileInfo, error)

	// HashFile returns a stable fingerprint (SHA-256) for the file at
	// path, recorded in reports for signing pipelines.
	HashFile(path m.Path) (string, error)
}

// LocalArtifactFS is the disk-backed ArtifactFS implementation.
type LocalArtifactFS struct{}

// NewLocalArtifactFS constructs a LocalArtifactFS ready to be wired into
// the workflow.
func NewLocalArtifactFS() *LocalArtifactFS {
	return &LocalArtifactFS{}
}

// ReadFile loads file contents from disk.
func (a *LocalArtifactFS) ReadFile(path m.Path) ([]byte, error) {
	return os.ReadFile(string(path))
}

// FileInfo returns os.FileInfo metadata for the given path.
func (a *LocalArtifactFS) FileInfo(path m.Path) (os.FileInfo, error) {
	return os.Stat(string(path))
}

// HashFile returns the SHA-256 hash of the file at the provided path.
func (a *LocalArtifactFS) HashFile(path m.Path) (string, error) {
	f, err := os.Open(string(path))
	if err != nil {
		return "", err
	}

	defer func() {
		_ = f.Close()
	}()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}

	return fmt.Sprintf("%x", h.Sum(nil)), nil
}
