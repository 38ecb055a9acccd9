package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/listenupapp/bookreviews-server/internal/async"
	"github.com/listenupapp/bookreviews-server/internal/config"
	"github.com/listenupapp/bookreviews-server/internal/dto"
	"github.com/listenupapp/bookreviews-server/internal/feed"
	"github.com/listenupapp/bookreviews-server/internal/logger"
	"github.com/listenupapp/bookreviews-server/internal/reviewstore"
)

// RunnerHandle wraps the feed's background runner with Shutdownable.
type RunnerHandle struct {
	*async.Runner
}

// ProvideRunner provides the runner that executes feed operations.
func ProvideRunner(i do.Injector) (*RunnerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	runner := async.NewRunner(cfg.Feed.Workers, log.WithComponent("runner"))
	log.Info("Feed runner started", "workers", cfg.Feed.Workers)

	return &RunnerHandle{Runner: runner}, nil
}

// ProvideFeedCoordinator provides the feed coordinator.
func ProvideFeedCoordinator(i do.Injector) (*feed.Coordinator, error) {
	log := do.MustInvoke[*logger.Logger](i)
	reviews := do.MustInvoke[*reviewstore.Store](i)
	runner := do.MustInvoke[*RunnerHandle](i)
	enricher := do.MustInvoke[*dto.Enricher](i)
	index := do.MustInvoke[*SearchIndexHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)

	return feed.New(feed.Deps{
		Store:    reviews,
		Runner:   runner.Runner,
		Enricher: enricher,
		Index:    index.Index,
		Events:   sseHandle.Manager,
		Logger:   log.WithComponent("feed"),
	}), nil
}

// LoadInitialFeed starts the first feed refresh. Clients observe it through
// the loading flag and feed.refreshed events.
func LoadInitialFeed(i do.Injector) {
	coordinator := do.MustInvoke[*feed.Coordinator](i)
	log := do.MustInvoke[*logger.Logger](i)

	task := coordinator.Refresh(context.Background())
	go func() {
		reviews, err := task.Wait(context.Background())
		if err != nil {
			log.Warn("Initial feed load failed", "error", err)
			return
		}
		log.Info("Initial feed loaded", "reviews", len(reviews))
	}()
}
