// Package sse implements Server-Sent Events for real-time feed updates.
package sse

import (
	"time"

	"github.com/listenupapp/bookreviews-server/internal/dto"
)

// EventType represents the type of SSE Event.
type EventType string

const (
	// EventFeedLoading is sent when a feed refresh starts.
	EventFeedLoading EventType = "feed.loading"
	// EventFeedRefreshed is sent when a refresh published a new snapshot.
	EventFeedRefreshed EventType = "feed.refreshed"

	// EventReviewCreated represents a review creation event.
	EventReviewCreated EventType = "review.created"
	// EventReviewUpdated represents a review edit event.
	EventReviewUpdated EventType = "review.updated"
	// EventReviewDeleted represents a review deletion event.
	EventReviewDeleted EventType = "review.deleted"

	// EventUserUpdated is sent when a profile name or avatar changed.
	EventUserUpdated EventType = "user.updated"

	// EventHeartbeat represents a connection keepalive event.
	EventHeartbeat EventType = "heartbeat"
)

// Event represents an SSE event to be sent to clients.
type Event struct {
	// Seq is assigned by the Manager and increases with every queued event.
	Seq       uint64    `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
	Type      EventType `json:"type"`

	// UserID restricts delivery to one user's clients. Empty means everyone.
	UserID string `json:"-"`
}

// FeedLoadingEventData is the payload of feed.loading.
type FeedLoadingEventData struct {
	Loading bool `json:"loading"`
}

// FeedRefreshedEventData is the payload of feed.refreshed.
type FeedRefreshedEventData struct {
	Count int `json:"count"`
}

// ReviewEventData carries a renderable feed item.
type ReviewEventData struct {
	Review dto.FeedItem `json:"review"`
}

// ReviewIDEventData carries only the id of the affected review.
type ReviewIDEventData struct {
	ReviewID string `json:"reviewId"`
}

// UserEventData carries a renderable user profile.
type UserEventData struct {
	User dto.User `json:"user"`
}

// HeartbeatEventData is the data payload for heartbeat events.
type HeartbeatEventData struct {
	ServerTime time.Time `json:"server_time"`
}

// NewFeedLoadingEvent creates a feed.loading event.
func NewFeedLoadingEvent(loading bool) Event {
	return Event{
		Type:      EventFeedLoading,
		Data:      FeedLoadingEventData{Loading: loading},
		Timestamp: time.Now(),
	}
}

// NewFeedRefreshedEvent creates a feed.refreshed event.
func NewFeedRefreshedEvent(count int) Event {
	return Event{
		Type:      EventFeedRefreshed,
		Data:      FeedRefreshedEventData{Count: count},
		Timestamp: time.Now(),
	}
}

// NewReviewCreatedEvent creates a review.created event.
func NewReviewCreatedEvent(item dto.FeedItem) Event {
	return Event{
		Type:      EventReviewCreated,
		Data:      ReviewEventData{Review: item},
		Timestamp: time.Now(),
	}
}

// NewReviewUpdatedEvent creates a review.updated event.
func NewReviewUpdatedEvent(item dto.FeedItem) Event {
	return Event{
		Type:      EventReviewUpdated,
		Data:      ReviewEventData{Review: item},
		Timestamp: time.Now(),
	}
}

// NewReviewDeletedEvent creates a review.deleted event.
func NewReviewDeletedEvent(reviewID string) Event {
	return Event{
		Type:      EventReviewDeleted,
		Data:      ReviewIDEventData{ReviewID: reviewID},
		Timestamp: time.Now(),
	}
}

// NewUserUpdatedEvent creates a user.updated event.
func NewUserUpdatedEvent(user dto.User) Event {
	return Event{
		Type:      EventUserUpdated,
		Data:      UserEventData{User: user},
		Timestamp: time.Now(),
	}
}

// NewHeartbeatEvent creates a heartbeat event.
func NewHeartbeatEvent() Event {
	return Event{
		Type:      EventHeartbeat,
		Data:      HeartbeatEventData{ServerTime: time.Now()},
		Timestamp: time.Now(),
	}
}
