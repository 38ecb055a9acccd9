package providers

import (
	"github.com/samber/do/v2"

	"github.com/listenupapp/bookreviews-server/internal/logger"
	"github.com/listenupapp/bookreviews-server/internal/search"
)

// SearchIndexHandle wraps search.Index with Shutdownable.
type SearchIndexHandle struct {
	*search.Index
}

// Shutdown implements do.Shutdownable.
func (h *SearchIndexHandle) Shutdown() error {
	return h.Close()
}

// ProvideSearchIndex provides the in-memory feed search index.
// It is rebuilt from every published snapshot, so nothing is persisted.
func ProvideSearchIndex(i do.Injector) (*SearchIndexHandle, error) {
	log := do.MustInvoke[*logger.Logger](i)

	index, err := search.New(log.WithComponent("search"))
	if err != nil {
		return nil, err
	}

	log.Info("Search index initialized")

	return &SearchIndexHandle{Index: index}, nil
}
