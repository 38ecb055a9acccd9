package booklookup

import "github.com/listenupapp/bookreviews-server/internal/domain"

type volumesResponse struct {
	TotalItems int      `json:"totalItems"`
	Items      []volume `json:"items"`
}

type volume struct {
	ID         string     `json:"id"`
	VolumeInfo volumeInfo `json:"volumeInfo"`
}

type volumeInfo struct {
	Title       string     `json:"title"`
	Authors     []string   `json:"authors"`
	Description string     `json:"description"`
	ImageLinks  imageLinks `json:"imageLinks"`
}

type imageLinks struct {
	SmallThumbnail string `json:"smallThumbnail"`
	Thumbnail      string `json:"thumbnail"`
}

func (v volumeInfo) toDetails() domain.BookDetails {
	return domain.BookDetails{
		Title:       v.Title,
		Authors:     v.Authors,
		CoverURL:    v.ImageLinks.Thumbnail,
		Description: plainText(v.Description),
	}
}
