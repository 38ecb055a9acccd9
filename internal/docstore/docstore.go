// Package docstore defines the remote document store: named collections of JSON
// documents addressed by string ids.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
)

// ErrNotFound is returned when a document does not exist.
var ErrNotFound = errors.New("document not found")

// Store opens collections and owns the backend connection.
type Store interface {
	Collection(name string) Collection
	Ping(ctx context.Context) error
	Close() error
}

// Collection is a set of JSON documents.
type Collection interface {
	// Add stores doc under a newly assigned id and returns it. The id is not written into doc.
	Add(ctx context.Context, doc any) (string, error)
	// Set creates or replaces the document with the given id.
	Set(ctx context.Context, id string, doc any) error
	// Get decodes the document into dest.
	Get(ctx context.Context, id string, dest any) error
	// Update merges fields into an existing document. Other fields are left untouched.
	Update(ctx context.Context, id string, fields map[string]any) error
	// Delete removes the document.
	Delete(ctx context.Context, id string) error
	// Query returns every document of the collection in the requested order.
	Query(ctx context.Context, q Query) ([]Document, error)
}

// Query orders a collection scan by one top-level field. Ties are broken by id.
type Query struct {
	OrderBy    string
	Descending bool
	// Limit caps the result size when positive.
	Limit int
}

// Document is a raw stored document.
type Document struct {
	ID   string
	Data json.RawMessage
}

// Decode unmarshals the document into dest.
func (d Document) Decode(dest any) error {
	if err := json.Unmarshal(d.Data, dest); err != nil {
		return fmt.Errorf("decode document %s: %w", d.ID, err)
	}
	return nil
}

var fieldName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidateField rejects field names that are not plain identifiers.
// Backends interpolate field names into JSON paths, so only identifiers are allowed.
func ValidateField(name string) error {
	if !fieldName.MatchString(name) {
		return fmt.Errorf("invalid field name %q", name)
	}
	return nil
}

// ValidateFields checks every key of an update map.
func ValidateFields(fields map[string]any) error {
	if len(fields) == 0 {
		return errors.New("no fields to update")
	}
	for name := range fields {
		if err := ValidateField(name); err != nil {
			return err
		}
	}
	return nil
}

// Marshal encodes a document value, accepting pre-encoded JSON as is.
func Marshal(doc any) ([]byte, error) {
	switch v := doc.(type) {
	case json.RawMessage:
		if !json.Valid(v) {
			return nil, errors.New("invalid JSON document")
		}
		return v, nil
	case []byte:
		if !json.Valid(v) {
			return nil, errors.New("invalid JSON document")
		}
		return v, nil
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return data, nil
}
