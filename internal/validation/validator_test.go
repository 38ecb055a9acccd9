package validation_test

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/listenupapp/bookreviews-server/internal/errors"
	"github.com/listenupapp/bookreviews-server/internal/validation"
)

type reviewRequest struct {
	BookTitle  string `json:"bookTitle" validate:"notblank,max=300"`
	AuthorName string `json:"authorName" validate:"notblank"`
	ReviewText string `json:"reviewText" validate:"max=10"`
	CoverURL   string `json:"bookCoverUrl,omitempty" validate:"omitempty,http_url"`
}

func TestValidator_ValidateSuccess(t *testing.T) {
	v := validation.New()

	err := v.Validate(reviewRequest{BookTitle: "Dune", AuthorName: "Frank Herbert", ReviewText: "Great"})
	assert.NoError(t, err)
}

func TestValidator_ValidateErrors(t *testing.T) {
	v := validation.New()

	tests := []struct {
		name      string
		req       reviewRequest
		wantField string
		wantMsg   string
	}{
		{
			name:      "blank title",
			req:       reviewRequest{BookTitle: "   ", AuthorName: "A"},
			wantField: "bookTitle",
			wantMsg:   "must not be blank",
		},
		{
			name:      "missing author",
			req:       reviewRequest{BookTitle: "Dune"},
			wantField: "authorName",
			wantMsg:   "must not be blank",
		},
		{
			name:      "text too long",
			req:       reviewRequest{BookTitle: "Dune", AuthorName: "A", ReviewText: strings.Repeat("x", 11)},
			wantField: "reviewText",
			wantMsg:   "must not exceed 10 characters",
		},
		{
			name:      "bad cover url",
			req:       reviewRequest{BookTitle: "Dune", AuthorName: "A", CoverURL: "not a url"},
			wantField: "bookCoverUrl",
			wantMsg:   "must be a valid URL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.req)
			require.Error(t, err)

			var domainErr *domainerrors.Error
			require.True(t, domainerrors.As(err, &domainErr))
			assert.Equal(t, http.StatusBadRequest, domainErr.HTTPStatus())
			assert.Contains(t, domainErr.Message, tt.wantField)

			details, ok := domainErr.Details.(map[string]string)
			require.True(t, ok)
			assert.Equal(t, tt.wantMsg, details[tt.wantField])
		})
	}
}

func TestValidator_JSONFieldNames(t *testing.T) {
	v := validation.New()

	err := v.Validate(reviewRequest{AuthorName: "A"})
	require.Error(t, err)

	assert.Contains(t, err.Error(), "bookTitle")
	assert.NotContains(t, err.Error(), "BookTitle")
}
