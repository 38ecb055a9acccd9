package domain

import "time"

// Review is a user's review of a book as stored in the bookReviews collection.
// ID is empty until the document store assigns one.
type Review struct {
	ID           string `json:"id"`
	UserID       string `json:"userId"`
	BookCoverURL string `json:"bookCoverUrl"`
	BookTitle    string `json:"bookTitle"`
	AuthorName   string `json:"authorName"`
	ReviewText   string `json:"reviewText"`
	// Timestamp is the creation time in Unix milliseconds.
	Timestamp int64 `json:"timestamp"`
}

// ReviewsCollection is the document store collection holding reviews.
const ReviewsCollection = "bookReviews"

// Review document field names used for ordering and partial updates.
const (
	ReviewFieldID        = "id"
	ReviewFieldCoverURL  = "bookCoverUrl"
	ReviewFieldTitle     = "bookTitle"
	ReviewFieldAuthor    = "authorName"
	ReviewFieldText      = "reviewText"
	ReviewFieldTimestamp = "timestamp"
)

// IsDraft reports whether the review has not been persisted yet.
func (r Review) IsDraft() bool {
	return r.ID == ""
}

// Equal reports full structural equality.
func (r Review) Equal(other Review) bool {
	return r == other
}

// SameBook reports whether both reviews name the same title and author.
func (r Review) SameBook(other Review) bool {
	return r.BookTitle == other.BookTitle && r.AuthorName == other.AuthorName
}

// CreatedAt returns the review timestamp as a time.Time.
func (r Review) CreatedAt() time.Time {
	return time.UnixMilli(r.Timestamp)
}

// StampNow sets the timestamp to the given instant.
func (r *Review) StampNow(now time.Time) {
	r.Timestamp = now.UnixMilli()
}
