// Package blobstore defines the remote binary object store used for avatars and covers.
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
)

// ErrNotFound is returned when no object exists at a path.
var ErrNotFound = errors.New("blob not found")

// Store uploads and downloads objects by slash-separated path, e.g. "covers/dune_frank-herbert.png".
type Store interface {
	Upload(ctx context.Context, path string, r io.Reader) error
	Download(ctx context.Context, path string, w io.Writer) error
}

// CleanPath validates an object path and returns it in canonical form.
// Paths must be relative and must not escape the store root.
func CleanPath(p string) (string, error) {
	if p == "" {
		return "", errors.New("empty blob path")
	}
	if strings.HasPrefix(p, "/") || strings.Contains(p, `\`) {
		return "", fmt.Errorf("invalid blob path %q", p)
	}
	cleaned := path.Clean(p)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("invalid blob path %q", p)
	}
	return cleaned, nil
}
