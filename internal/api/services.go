package api

import (
	"github.com/listenupapp/bookreviews-server/internal/booklookup"
	"github.com/listenupapp/bookreviews-server/internal/docstore"
	"github.com/listenupapp/bookreviews-server/internal/dto"
	"github.com/listenupapp/bookreviews-server/internal/feed"
	"github.com/listenupapp/bookreviews-server/internal/identity"
	"github.com/listenupapp/bookreviews-server/internal/imagecache"
	"github.com/listenupapp/bookreviews-server/internal/search"
	"github.com/listenupapp/bookreviews-server/internal/session"
	"github.com/listenupapp/bookreviews-server/internal/userdir"
)

// Services groups the components used by the API server.
type Services struct {
	Feed     *feed.Coordinator
	Users    *userdir.Directory
	Lookup   *booklookup.Client
	Session  *session.Store
	Images   *imagecache.Cache
	Enricher *dto.Enricher
	Verifier *identity.Verifier
	Docs     docstore.Store // health checks only
	Search   *search.Index  // health checks only
}
