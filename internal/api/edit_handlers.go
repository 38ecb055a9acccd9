package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/listenupapp/bookreviews-server/internal/dto"
)

func (s *Server) registerEditRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getEditState",
		Method:      http.MethodGet,
		Path:        "/api/v1/edit",
		Summary:     "Get edit state",
		Description: "Returns the review currently staged for editing, if any",
		Tags:        []string{"Editing"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetEditState)

	huma.Register(s.api, huma.Operation{
		OperationID: "startEdit",
		Method:      http.MethodPost,
		Path:        "/api/v1/edit/{index}",
		Summary:     "Start editing",
		Description: "Stages the review at the given feed position for editing, replacing any previous edit",
		Tags:        []string{"Editing"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleStartEdit)

	huma.Register(s.api, huma.Operation{
		OperationID:   "finishEdit",
		Method:        http.MethodDelete,
		Path:          "/api/v1/edit",
		Summary:       "Finish editing",
		Description:   "Clears the edit slot",
		Tags:          []string{"Editing"},
		DefaultStatus: http.StatusNoContent,
		Security:      []map[string][]string{{"bearer": {}}},
	}, s.handleFinishEdit)
}

// EditStateOutput wraps the edit state for Huma.
type EditStateOutput struct {
	Body dto.EditState
}

// StartEditInput contains parameters for staging an edit.
type StartEditInput struct {
	Index int `path:"index" minimum:"0" doc:"Position in the feed"`
}

func (s *Server) handleGetEditState(ctx context.Context, _ *struct{}) (*EditStateOutput, error) {
	if _, err := GetUserID(ctx); err != nil {
		return nil, err
	}
	return &EditStateOutput{Body: dto.NewEditState(s.services.Feed.EditState())}, nil
}

func (s *Server) handleStartEdit(ctx context.Context, input *StartEditInput) (*EditStateOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	editing, err := s.services.Feed.StartEditBy(input.Index, userID)
	if err != nil {
		return nil, err
	}
	return &EditStateOutput{Body: dto.NewEditState(editing)}, nil
}

func (s *Server) handleFinishEdit(ctx context.Context, _ *struct{}) (*struct{}, error) {
	if _, err := GetUserID(ctx); err != nil {
		return nil, err
	}
	s.services.Feed.FinishEdit()
	return nil, nil
}
