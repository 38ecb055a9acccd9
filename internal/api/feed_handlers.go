package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/listenupapp/bookreviews-server/internal/dto"
)

func (s *Server) registerFeedRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getFeed",
		Method:      http.MethodGet,
		Path:        "/api/v1/feed",
		Summary:     "Get feed",
		Description: "Returns the published review feed, newest first",
		Tags:        []string{"Feed"},
	}, s.handleGetFeed)

	huma.Register(s.api, huma.Operation{
		OperationID: "refreshFeed",
		Method:      http.MethodPost,
		Path:        "/api/v1/feed/refresh",
		Summary:     "Refresh feed",
		Description: "Reloads every review from the document store and returns the new feed",
		Tags:        []string{"Feed"},
	}, s.handleRefreshFeed)

	huma.Register(s.api, huma.Operation{
		OperationID: "searchFeed",
		Method:      http.MethodGet,
		Path:        "/api/v1/feed/search",
		Summary:     "Search feed",
		Description: "Full-text search over titles, authors, usernames and review text",
		Tags:        []string{"Feed"},
	}, s.handleSearchFeed)

	huma.Register(s.api, huma.Operation{
		OperationID: "deleteFeedItem",
		Method:      http.MethodDelete,
		Path:        "/api/v1/feed/{index}",
		Summary:     "Delete review at position",
		Description: "Deletes the review at the given feed position and refreshes the feed",
		Tags:        []string{"Feed"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleDeleteFeedItem)
}

// === DTOs ===

// FeedResponse contains the feed in API responses.
type FeedResponse struct {
	Items   []dto.FeedItem `json:"items" doc:"Feed items, newest first"`
	Loading bool           `json:"loading" doc:"Whether a refresh is in flight"`
}

// FeedOutput wraps the feed response for Huma.
type FeedOutput struct {
	Body FeedResponse
}

// SearchFeedInput contains parameters for searching the feed.
type SearchFeedInput struct {
	Query string `query:"q" required:"true" minLength:"1" doc:"Search query"`
	Limit int    `query:"limit" default:"20" minimum:"1" maximum:"100" doc:"Maximum number of results"`
}

// SearchFeedResponse contains search hits in API responses.
type SearchFeedResponse struct {
	Query string         `json:"query" doc:"The query that was run"`
	Items []dto.FeedItem `json:"items" doc:"Matching feed items, best match first"`
}

// SearchFeedOutput wraps the search response for Huma.
type SearchFeedOutput struct {
	Body SearchFeedResponse
}

// DeleteFeedItemInput contains parameters for deleting a review by position.
type DeleteFeedItemInput struct {
	Index int `path:"index" minimum:"0" doc:"Position in the feed"`
}

// ReviewIDResponse carries the id of an affected review.
type ReviewIDResponse struct {
	ID string `json:"id" doc:"Review ID"`
}

// ReviewIDOutput wraps the review id response for Huma.
type ReviewIDOutput struct {
	Body ReviewIDResponse
}

// === Handlers ===

func (s *Server) handleGetFeed(_ context.Context, _ *struct{}) (*FeedOutput, error) {
	return s.feedOutput(), nil
}

func (s *Server) handleRefreshFeed(ctx context.Context, _ *struct{}) (*FeedOutput, error) {
	if _, err := s.services.Feed.Refresh(ctx).Wait(ctx); err != nil {
		return nil, err
	}
	return s.feedOutput(), nil
}

func (s *Server) handleSearchFeed(ctx context.Context, input *SearchFeedInput) (*SearchFeedOutput, error) {
	limit := min(input.Limit, MaxSearchLimit)
	items, err := s.services.Feed.Search(ctx, input.Query, limit)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []dto.FeedItem{}
	}
	return &SearchFeedOutput{Body: SearchFeedResponse{Query: input.Query, Items: items}}, nil
}

func (s *Server) handleDeleteFeedItem(ctx context.Context, input *DeleteFeedItemInput) (*ReviewIDOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	reviewID, err := s.services.Feed.DeleteAtBy(ctx, input.Index, userID).Wait(ctx)
	if err != nil {
		return nil, err
	}
	return &ReviewIDOutput{Body: ReviewIDResponse{ID: reviewID}}, nil
}

func (s *Server) feedOutput() *FeedOutput {
	items := s.services.Feed.Items()
	if items == nil {
		items = []dto.FeedItem{}
	}
	return &FeedOutput{
		Body: FeedResponse{
			Items:   items,
			Loading: s.services.Feed.IsLoading(),
		},
	}
}
