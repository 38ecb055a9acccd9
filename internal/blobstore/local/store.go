// Package local implements the blob store on a directory of the local filesystem.
package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"

	"github.com/listenupapp/bookreviews-server/internal/blobstore"
	"github.com/listenupapp/bookreviews-server/internal/id"
)

// Store keeps each blob as a file below a root directory.
type Store struct {
	root *os.Root
}

// New opens (creating if needed) the root directory.
func New(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("blob store directory cannot be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create blob directory: %w", err)
	}
	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, fmt.Errorf("open blob directory: %w", err)
	}
	return &Store{root: root}, nil
}

// Close releases the root directory handle.
func (s *Store) Close() error {
	return s.root.Close()
}

// Upload writes r to p, replacing any existing blob once the copy completed.
func (s *Store) Upload(ctx context.Context, p string, r io.Reader) error {
	p, err := blobstore.CleanPath(p)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if dir := path.Dir(p); dir != "." {
		if err := s.root.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create blob parent: %w", err)
		}
	}

	tmp := p + "." + id.MustGenerate("part")
	f, err := s.root.Create(tmp)
	if err != nil {
		return fmt.Errorf("create blob: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		s.root.Remove(tmp)
		return fmt.Errorf("write blob %s: %w", p, err)
	}
	if err := f.Close(); err != nil {
		s.root.Remove(tmp)
		return fmt.Errorf("close blob %s: %w", p, err)
	}
	if err := s.root.Rename(tmp, p); err != nil {
		s.root.Remove(tmp)
		return fmt.Errorf("commit blob %s: %w", p, err)
	}
	return nil
}

// Download copies the blob at p into w.
func (s *Store) Download(ctx context.Context, p string, w io.Writer) error {
	p, err := blobstore.CleanPath(p)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	f, err := s.root.Open(p)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%s: %w", p, blobstore.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("open blob %s: %w", p, err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("read blob %s: %w", p, err)
	}
	return nil
}
