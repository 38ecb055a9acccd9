// Package id generates unique identifiers.
package id

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// documentAlphabet is alphanumeric only so document ids are safe in URL paths and blob names.
const documentAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// documentIDLength matches the length of ids assigned by hosted document stores.
const documentIDLength = 20

// Generate creates a prefixed unique ID using NanoID.
// Format: prefix-nanoid (e.g., "sse-V1StGXR8_Z5jdHi6B-myT").
func Generate(prefix string) (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + id, nil
}

// MustGenerate is like Generate but panics if ID generation fails.
func MustGenerate(prefix string) string {
	id, err := Generate(prefix)
	if err != nil {
		panic(fmt.Sprintf("failed to generate ID: %v", err))
	}
	return id
}

// Document creates an unprefixed alphanumeric id for a stored document.
func Document() (string, error) {
	id, err := gonanoid.Generate(documentAlphabet, documentIDLength)
	if err != nil {
		return "", fmt.Errorf("generate document id: %w", err)
	}
	return id, nil
}
