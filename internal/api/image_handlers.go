package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/listenupapp/bookreviews-server/internal/http/response"
	"github.com/listenupapp/bookreviews-server/internal/imagecache"
	"github.com/listenupapp/bookreviews-server/internal/media/images"
)

// handleGetCover serves a cached cover by its source URL.
func (s *Server) handleGetCover(w http.ResponseWriter, r *http.Request) {
	source := r.URL.Query().Get("url")
	if source == "" {
		response.BadRequest(w, "url query parameter is required", s.logger)
		return
	}

	data, ok := s.services.Images.Get(imagecache.CoverKey(source))
	if !ok {
		response.NotFound(w, "cover not cached", s.logger)
		return
	}
	s.writeImage(w, r, data, CacheOneWeek)
}

// handleGetAvatar serves a user's locally held avatar.
func (s *Server) handleGetAvatar(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		response.BadRequest(w, "user id is required", s.logger)
		return
	}

	data, ok := s.services.Users.Avatar(userID)
	if !ok {
		response.NotFound(w, "avatar not found", s.logger)
		return
	}
	// Avatars can be replaced, so clients revalidate with the ETag.
	s.writeImage(w, r, data, CacheNoStore)
}

func (s *Server) writeImage(w http.ResponseWriter, r *http.Request, data []byte, cacheControl string) {
	etag := `"` + images.ETag(data) + `"`
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", cacheControl)

	if match := r.Header.Get("If-None-Match"); match == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", http.DetectContentType(data))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.logger.Debug("Failed to write image", "path", r.URL.Path, "error", err)
	}
}
