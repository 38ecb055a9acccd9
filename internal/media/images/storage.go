// Package images stores avatar and cover image files on the local filesystem.
package images

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ErrNotFound is returned when no file exists for a name.
var ErrNotFound = errors.New("image not found")

// Storage keeps one PNG file per name under a single directory.
// Safe for concurrent use.
type Storage struct {
	dir string
	mu  sync.RWMutex
}

// NewStorage creates {basePath}/{subdir} if needed and returns a Storage rooted there.
// Example: NewStorage("/data", "avatars") stores files as /data/avatars/{name}.png.
func NewStorage(basePath, subdir string) (*Storage, error) {
	if basePath == "" {
		return nil, errors.New("base path cannot be empty")
	}
	if subdir == "" {
		return nil, errors.New("subdirectory cannot be empty")
	}

	dir := filepath.Join(basePath, subdir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s directory: %w", subdir, err)
	}

	return &Storage{dir: dir}, nil
}

// Save writes data as {name}.png, replacing any existing file.
// The write goes through a temp file so readers never see a partial image.
func (s *Storage) Save(name string, data []byte) error {
	if err := validName(name); err != nil {
		return err
	}
	if len(data) == 0 {
		return errors.New("image data cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write image file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close image file: %w", err)
	}
	if err := os.Rename(tmpName, s.Path(name)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("move image file: %w", err)
	}
	return nil
}

// Get reads {name}.png. Returns ErrNotFound if it does not exist.
func (s *Storage) Get(name string) ([]byte, error) {
	if err := validName(name); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.Path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read image file: %w", err)
	}
	return data, nil
}

// Exists reports whether {name}.png is present.
func (s *Storage) Exists(name string) bool {
	if validName(name) != nil {
		return false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, err := os.Stat(s.Path(name))
	return err == nil
}

// Delete removes {name}.png. Missing files are not an error.
func (s *Storage) Delete(name string) error {
	if err := validName(name); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.Path(name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete image file: %w", err)
	}
	return nil
}

// Path returns the filesystem path for name.
func (s *Storage) Path(name string) string {
	return filepath.Join(s.dir, name+".png")
}

// Dir returns the storage directory.
func (s *Storage) Dir() string {
	return s.dir
}

// ETag returns the hex SHA-256 of data, used for HTTP cache validation.
func ETag(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func validName(name string) error {
	if name == "" {
		return errors.New("image name cannot be empty")
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return fmt.Errorf("invalid image name %q", name)
	}
	return nil
}
