// Package session persists the signed-in user preference.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/listenupapp/bookreviews-server/internal/localdb"
)

const (
	prefix     = "session:"
	currentKey = "current"
)

// Current is the persisted signed-in user.
type Current struct {
	UserID     string    `json:"userId"`
	SignedInAt time.Time `json:"signedInAt"`
}

// Store reads and writes the current user preference.
type Store struct {
	entity *localdb.Entity[Current]
	now    func() time.Time
}

// NewStore creates a session store on top of the local database.
func NewStore(db *localdb.Store) *Store {
	return &Store{
		entity: localdb.NewEntity[Current](db, prefix),
		now:    time.Now,
	}
}

// SetCurrent records userID as the signed-in user.
func (s *Store) SetCurrent(ctx context.Context, userID string) (*Current, error) {
	cur := &Current{UserID: userID, SignedInAt: s.now().UTC()}
	if err := s.entity.Set(ctx, currentKey, cur); err != nil {
		return nil, err
	}
	return cur, nil
}

// GetCurrent returns the signed-in user, or false when nobody is signed in.
func (s *Store) GetCurrent(ctx context.Context) (*Current, bool, error) {
	cur, err := s.entity.Get(ctx, currentKey)
	if errors.Is(err, localdb.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return cur, true, nil
}

// Clear signs the current user out.
func (s *Store) Clear(ctx context.Context) error {
	return s.entity.Delete(ctx, currentKey)
}
