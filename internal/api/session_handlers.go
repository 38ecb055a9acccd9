package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
)

func (s *Server) registerSessionRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getSession",
		Method:      http.MethodGet,
		Path:        "/api/v1/session",
		Summary:     "Get signed-in user",
		Description: "Returns the user recorded as signed in on this server",
		Tags:        []string{"Session"},
	}, s.handleGetSession)

	huma.Register(s.api, huma.Operation{
		OperationID: "setSession",
		Method:      http.MethodPut,
		Path:        "/api/v1/session",
		Summary:     "Sign in",
		Description: "Records the authenticated user as signed in",
		Tags:        []string{"Session"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleSetSession)

	huma.Register(s.api, huma.Operation{
		OperationID:   "clearSession",
		Method:        http.MethodDelete,
		Path:          "/api/v1/session",
		Summary:       "Sign out",
		Description:   "Forgets the signed-in user",
		Tags:          []string{"Session"},
		DefaultStatus: http.StatusNoContent,
		Security:      []map[string][]string{{"bearer": {}}},
	}, s.handleClearSession)
}

// SessionResponse describes the signed-in user.
type SessionResponse struct {
	SignedIn   bool       `json:"signedIn" doc:"Whether a user is signed in"`
	UserID     string     `json:"userId,omitempty" doc:"Signed-in user ID"`
	SignedInAt *time.Time `json:"signedInAt,omitempty" doc:"When the user signed in"`
}

// SessionOutput wraps the session response for Huma.
type SessionOutput struct {
	Body SessionResponse
}

func (s *Server) handleGetSession(ctx context.Context, _ *struct{}) (*SessionOutput, error) {
	cur, ok, err := s.services.Session.GetCurrent(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &SessionOutput{Body: SessionResponse{}}, nil
	}
	return &SessionOutput{
		Body: SessionResponse{SignedIn: true, UserID: cur.UserID, SignedInAt: &cur.SignedInAt},
	}, nil
}

func (s *Server) handleSetSession(ctx context.Context, _ *struct{}) (*SessionOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	cur, err := s.services.Session.SetCurrent(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &SessionOutput{
		Body: SessionResponse{SignedIn: true, UserID: cur.UserID, SignedInAt: &cur.SignedInAt},
	}, nil
}

func (s *Server) handleClearSession(ctx context.Context, _ *struct{}) (*struct{}, error) {
	if _, err := GetUserID(ctx); err != nil {
		return nil, err
	}
	if err := s.services.Session.Clear(ctx); err != nil {
		return nil, err
	}
	return nil, nil
}
