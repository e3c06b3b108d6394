// Package blob stores published pipeline artifacts and hands back
// durable URLs for them.
package blob

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Store uploads a local file under a key and returns the URL the
// artifact is reachable at.
type Store interface {
	Upload(ctx context.Context, key, localPath string) (string, error)
}

// FileStore copies artifacts into a local directory. It stands in for
// a remote store during development and in tests.
type FileStore struct {
	baseDir string
}

// NewFileStore creates a FileStore rooted at baseDir.
func NewFileStore(baseDir string) *FileStore {
	return &FileStore{baseDir: baseDir}
}

// Upload copies the file to baseDir/key and returns a file:// URL.
func (s *FileStore) Upload(ctx context.Context, key, localPath string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	dst := filepath.Join(s.baseDir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("create store dir: %w", err)
	}

	in, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open artifact: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("create artifact copy: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return "", fmt.Errorf("copy artifact: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("close artifact copy: %w", err)
	}

	abs, err := filepath.Abs(dst)
	if err != nil {
		abs = dst
	}
	return "file://" + filepath.ToSlash(abs), nil
}
