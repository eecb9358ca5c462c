package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// Directories used for the two kinds of uploaded media.
const (
	ChatFilesDir   = "chat-files"
	StatusMediaDir = "status-media"
)

// MediaStore persists uploaded payloads and returns a key that references them.
type MediaStore interface {
	Put(ctx context.Context, dir, filename string, r io.Reader) (string, error)
	Delete(ctx context.Context, key string) error
	URL(key string) string
}

// FSMediaStore stores media on an afero filesystem rooted at a directory.
type FSMediaStore struct {
	fs      afero.Fs
	baseURL string
}

// NewFSMediaStore constructs a store over fs; baseURL prefixes public URLs.
func NewFSMediaStore(fs afero.Fs, baseURL string) *FSMediaStore {
	return &FSMediaStore{fs: fs, baseURL: strings.TrimRight(baseURL, "/")}
}

// NewDiskMediaStore stores media under root on the local disk.
func NewDiskMediaStore(root, baseURL string) (*FSMediaStore, error) {
	osFs := afero.NewOsFs()
	if err := osFs.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create media root: %w", err)
	}
	return NewFSMediaStore(afero.NewBasePathFs(osFs, root), baseURL), nil
}

// Put writes r under dir with a fresh key that keeps the upload's extension.
func (s *FSMediaStore) Put(ctx context.Context, dir, filename string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create media dir: %w", err)
	}

	key := path.Join(dir, uuid.NewString()+strings.ToLower(filepath.Ext(filename)))
	f, err := s.fs.OpenFile(key, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("create media object: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = s.fs.Remove(key)
		return "", fmt.Errorf("write media object: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = s.fs.Remove(key)
		return "", fmt.Errorf("close media object: %w", err)
	}
	return key, nil
}

// Delete removes the object behind key. Missing objects are not an error.
func (s *FSMediaStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if key == "" || strings.Contains(key, "..") {
		return fmt.Errorf("invalid media key %q", key)
	}
	if err := s.fs.Remove(key); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete media object: %w", err)
	}
	return nil
}

// URL returns the public location of key.
func (s *FSMediaStore) URL(key string) string {
	return s.baseURL + "/" + key
}

// Fs exposes the underlying filesystem, e.g. for serving files over HTTP.
func (s *FSMediaStore) Fs() afero.Fs {
	return s.fs
}
