package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/listenupapp/bookreviews-server/internal/domain"
)

func (s *Server) registerBookRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "lookupBook",
		Method:      http.MethodGet,
		Path:        "/api/v1/books/lookup",
		Summary:     "Look up book",
		Description: "Returns the catalog's canonical title, authors, cover and description for a title and author",
		Tags:        []string{"Books"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleLookupBook)
}

// LookupBookInput contains parameters for a catalog lookup.
type LookupBookInput struct {
	Title  string `query:"title" required:"true" minLength:"1" doc:"Book title"`
	Author string `query:"author" doc:"Author name"`
}

// LookupBookResponse contains catalog data in API responses.
type LookupBookResponse struct {
	Found bool `json:"found" doc:"Whether the catalog matched the book"`
	domain.BookDetails
}

// LookupBookOutput wraps the lookup response for Huma.
type LookupBookOutput struct {
	Body LookupBookResponse
}

func (s *Server) handleLookupBook(ctx context.Context, input *LookupBookInput) (*LookupBookOutput, error) {
	if _, err := GetUserID(ctx); err != nil {
		return nil, err
	}

	details := s.services.Lookup.Lookup(ctx, input.Title, input.Author)
	if details.Authors == nil {
		details.Authors = []string{}
	}
	return &LookupBookOutput{
		Body: LookupBookResponse{
			Found:       !details.IsEmpty(),
			BookDetails: details,
		},
	}, nil
}
