package domain

import "strings"

// BookDetails is the result of one catalog lookup. It is never persisted.
type BookDetails struct {
	Title       string   `json:"title"`
	Authors     []string `json:"authors"`
	CoverURL    string   `json:"coverUrl"`
	Description string   `json:"description,omitempty"`
}

// IsEmpty reports whether the lookup found nothing usable.
func (b BookDetails) IsEmpty() bool {
	return b.Title == ""
}

// HasCanonicalNames reports whether both title and author list can replace user input.
func (b BookDetails) HasCanonicalNames() bool {
	return b.Title != "" && len(b.Authors) > 0
}

// JoinedAuthors returns the author list as a single display string.
func (b BookDetails) JoinedAuthors() string {
	return strings.Join(b.Authors, ", ")
}

// CachedImage is one entry of the local image cache.
type CachedImage struct {
	Key   string
	Bytes []byte
}
