package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/listenupapp/bookreviews-server/internal/domain"
	domainerrors "github.com/listenupapp/bookreviews-server/internal/errors"
)

func (s *Server) registerReviewRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "createReview",
		Method:        http.MethodPost,
		Path:          "/api/v1/reviews",
		Summary:       "Post review",
		Description:   "Posts a review as the authenticated user. Title and author are replaced by catalog names when the catalog knows the book",
		Tags:          []string{"Reviews"},
		DefaultStatus: http.StatusCreated,
		Security:      []map[string][]string{{"bearer": {}}},
	}, s.handleCreateReview)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateReview",
		Method:      http.MethodPut,
		Path:        "/api/v1/reviews/{id}",
		Summary:     "Update review",
		Description: "Updates the title, author, cover and text of a review. Only the author may update it",
		Tags:        []string{"Reviews"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleUpdateReview)
}

// === DTOs ===

// ReviewRequest is the editable part of a review.
type ReviewRequest struct {
	BookTitle    string `json:"bookTitle" validate:"notblank,max=500" doc:"Book title"`
	AuthorName   string `json:"authorName" validate:"notblank,max=500" doc:"Author name"`
	ReviewText   string `json:"reviewText" validate:"max=10000" doc:"Review text"`
	BookCoverURL string `json:"bookCoverUrl,omitempty" validate:"omitempty,url" doc:"Cover image URL, replaced by the catalog cover when one is found"`
}

// CreateReviewInput contains parameters for posting a review.
type CreateReviewInput struct {
	Body ReviewRequest
}

// UpdateReviewInput contains parameters for updating a review.
type UpdateReviewInput struct {
	ID   string `path:"id" doc:"Review ID"`
	Body ReviewRequest
}

// === Handlers ===

func (s *Server) handleCreateReview(ctx context.Context, input *CreateReviewInput) (*ReviewIDOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.validator.Validate(input.Body); err != nil {
		return nil, err
	}

	review := domain.Review{
		UserID:       userID,
		BookCoverURL: input.Body.BookCoverURL,
		BookTitle:    input.Body.BookTitle,
		AuthorName:   input.Body.AuthorName,
		ReviewText:   input.Body.ReviewText,
	}

	reviewID, err := s.services.Feed.Post(ctx, review).Wait(ctx)
	if err != nil {
		return nil, err
	}
	return &ReviewIDOutput{Body: ReviewIDResponse{ID: reviewID}}, nil
}

func (s *Server) handleUpdateReview(ctx context.Context, input *UpdateReviewInput) (*ReviewIDOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.validator.Validate(input.Body); err != nil {
		return nil, err
	}

	current, err := s.services.Feed.Review(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	if current.UserID != userID {
		return nil, domainerrors.Forbidden("only the author can edit a review")
	}

	edited := current
	edited.BookTitle = input.Body.BookTitle
	edited.AuthorName = input.Body.AuthorName
	edited.ReviewText = input.Body.ReviewText
	if input.Body.BookCoverURL != "" {
		edited.BookCoverURL = input.Body.BookCoverURL
	}

	reviewID, err := s.services.Feed.Save(ctx, edited).Wait(ctx)
	if err != nil {
		return nil, err
	}

	if e, ok := domain.EditingReview(s.services.Feed.EditState()); ok && e.Original.ID == reviewID {
		s.services.Feed.FinishEdit()
	}
	return &ReviewIDOutput{Body: ReviewIDResponse{ID: reviewID}}, nil
}
