package utils

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore keeps proof images on disk. Used for development and single-node setups;
// the files are served by the app under PublicBaseURL.
type LocalStore struct {
	Root          string
	PublicBaseURL string
}

func NewLocalStore(root, publicBaseURL string) *LocalStore {
	return &LocalStore{Root: root, PublicBaseURL: strings.TrimRight(publicBaseURL, "/")}
}

// EnsureDir creates the root directory if it doesn't exist
func (s *LocalStore) EnsureDir() error {
	return os.MkdirAll(s.Root, os.ModePerm)
}

// Put writes data to Root/key. The file is created exclusively so an
// existing object is never overwritten.
func (s *LocalStore) Put(_ context.Context, key string, data []byte, _ string) (string, error) {
	destPath, err := s.pathFor(key)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(destPath), os.ModePerm); err != nil {
		return "", fmt.Errorf("failed to create upload dir: %w", err)
	}

	dst, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return "", fmt.Errorf("%w: %s", ErrObjectExists, key)
		}
		return "", fmt.Errorf("failed to create file: %w", err)
	}

	if _, err := dst.Write(data); err != nil {
		dst.Close()
		_ = os.Remove(destPath)
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	if err := dst.Close(); err != nil {
		_ = os.Remove(destPath)
		return "", fmt.Errorf("failed to close file: %w", err)
	}

	return s.PublicBaseURL + "/" + filepath.ToSlash(key), nil
}

// pathFor resolves key inside Root and refuses anything that escapes it.
func (s *LocalStore) pathFor(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == "." || filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return filepath.Join(s.Root, clean), nil
}
