package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/listenupapp/bookreviews-server/internal/dto"
	domainerrors "github.com/listenupapp/bookreviews-server/internal/errors"
	"github.com/listenupapp/bookreviews-server/internal/sse"
)

func (s *Server) registerUserRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "registerUser",
		Method:        http.MethodPost,
		Path:          "/api/v1/users",
		Summary:       "Register user",
		Description:   "Creates the profile of the identity in the bearer token and imports its photo as avatar",
		Tags:          []string{"Users"},
		DefaultStatus: http.StatusCreated,
		Security:      []map[string][]string{{"bearer": {}}},
		Middlewares:   huma.Middlewares{s.rateLimitByIP(s.limiter)},
	}, s.handleRegisterUser)

	huma.Register(s.api, huma.Operation{
		OperationID: "getUser",
		Method:      http.MethodGet,
		Path:        "/api/v1/users/{id}",
		Summary:     "Get user",
		Description: "Returns a user profile",
		Tags:        []string{"Users"},
	}, s.handleGetUser)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateUser",
		Method:      http.MethodPatch,
		Path:        "/api/v1/users/{id}",
		Summary:     "Update user",
		Description: "Changes the display name and optionally the avatar. Users can only update themselves",
		Tags:        []string{"Users"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleUpdateUser)

	huma.Register(s.api, huma.Operation{
		OperationID: "getUserReviews",
		Method:      http.MethodGet,
		Path:        "/api/v1/users/{id}/reviews",
		Summary:     "Get user reviews",
		Description: "Returns the reviews of a user from the published feed",
		Tags:        []string{"Users"},
	}, s.handleGetUserReviews)
}

// === DTOs ===

// RegisterUserInput contains the identity token.
type RegisterUserInput struct {
	Authorization string `header:"Authorization" required:"true" doc:"Bearer identity token"`
}

// UserOutput wraps a user profile for Huma.
type UserOutput struct {
	Body dto.User
}

// GetUserInput contains parameters for getting a user.
type GetUserInput struct {
	ID string `path:"id" doc:"User ID"`
}

// UpdateUserRequest is the request body for updating a profile.
type UpdateUserRequest struct {
	Name   string `json:"name" validate:"notblank,max=100" doc:"New display name"`
	Avatar []byte `json:"avatar,omitempty" doc:"New avatar image, base64 encoded"`
}

// UpdateUserInput contains parameters for updating a user.
type UpdateUserInput struct {
	ID   string `path:"id" doc:"User ID"`
	Body UpdateUserRequest
}

// UserReviewsResponse contains a user's reviews in API responses.
type UserReviewsResponse struct {
	Items []dto.FeedItem `json:"items" doc:"Reviews by the user, newest first. Index refers to the full feed"`
}

// UserReviewsOutput wraps the user reviews response for Huma.
type UserReviewsOutput struct {
	Body UserReviewsResponse
}

// === Handlers ===

func (s *Server) handleRegisterUser(ctx context.Context, input *RegisterUserInput) (*UserOutput, error) {
	token, ok := bearerToken(input.Authorization)
	if !ok {
		return nil, huma.Error401Unauthorized("Bearer identity token required")
	}

	user, err := s.services.Users.Register(ctx, token)
	if err != nil {
		return nil, err
	}

	if s.services.Session != nil {
		if _, err := s.services.Session.SetCurrent(ctx, user.ID); err != nil {
			s.logger.Warn("Failed to record signed-in user", "user_id", user.ID, "error", err)
		}
	}

	return &UserOutput{Body: s.services.Enricher.User(user.ID)}, nil
}

func (s *Server) handleGetUser(ctx context.Context, input *GetUserInput) (*UserOutput, error) {
	if _, ok := s.services.Users.Resolve(ctx, input.ID); !ok {
		return nil, domainerrors.NotFoundf("user %s not found", input.ID)
	}
	return &UserOutput{Body: s.services.Enricher.User(input.ID)}, nil
}

func (s *Server) handleUpdateUser(ctx context.Context, input *UpdateUserInput) (*UserOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}
	if userID != input.ID {
		return nil, domainerrors.Forbidden("users can only update their own profile")
	}
	if err := s.validator.Validate(input.Body); err != nil {
		return nil, err
	}
	if len(input.Body.Avatar) > MaxAvatarSize {
		return nil, domainerrors.Validationf("avatar exceeds %d bytes", MaxAvatarSize)
	}

	if err := s.services.Users.Update(ctx, userID, input.Body.Name, input.Body.Avatar); err != nil {
		return nil, err
	}

	// Update evicted the cached profile; resolve it again so the response is current.
	if _, ok := s.services.Users.Resolve(ctx, userID); !ok {
		s.logger.Warn("Failed to reload updated user", "user_id", userID)
	}

	user := s.services.Enricher.User(userID)
	if s.sseManager != nil {
		s.sseManager.Emit(sse.NewUserUpdatedEvent(user))
	}
	return &UserOutput{Body: user}, nil
}

func (s *Server) handleGetUserReviews(_ context.Context, input *GetUserInput) (*UserReviewsOutput, error) {
	items := s.services.Feed.ItemsForUser(input.ID)
	if items == nil {
		items = []dto.FeedItem{}
	}
	return &UserReviewsOutput{Body: UserReviewsResponse{Items: items}}, nil
}
