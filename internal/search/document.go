// Package search provides full-text search over the review feed using Bleve.
// The index lives in memory and is rebuilt from each feed snapshot.
package search

import "github.com/listenupapp/bookreviews-server/internal/domain"

// Document is one indexed review. Author names are denormalized into it so a single
// query matches books, authors and reviewers.
type Document struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Username  string `json:"username,omitempty"`
	Title     string `json:"title"`
	Author    string `json:"author"`
	Text      string `json:"text,omitempty"`
	Timestamp int64  `json:"timestamp"` // Unix millis
}

// NewDocument builds the document for a review written by username.
func NewDocument(r domain.Review, username string) Document {
	return Document{
		ID:        r.ID,
		UserID:    r.UserID,
		Username:  username,
		Title:     r.BookTitle,
		Author:    r.AuthorName,
		Text:      r.ReviewText,
		Timestamp: r.Timestamp,
	}
}

// toMap converts the document to a map whose keys match the index mapping.
func (d Document) toMap() map[string]any {
	m := map[string]any{
		"id":        d.ID,
		"type":      docType,
		"user_id":   d.UserID,
		"title":     d.Title,
		"author":    d.Author,
		"timestamp": d.Timestamp,
	}
	if d.Username != "" {
		m["username"] = d.Username
	}
	if d.Text != "" {
		m["text"] = d.Text
	}
	return m
}
