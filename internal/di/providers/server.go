package providers

import (
	"context"
	"net/http"

	"github.com/samber/do/v2"

	"github.com/listenupapp/bookreviews-server/internal/api"
	"github.com/listenupapp/bookreviews-server/internal/booklookup"
	"github.com/listenupapp/bookreviews-server/internal/config"
	"github.com/listenupapp/bookreviews-server/internal/dto"
	"github.com/listenupapp/bookreviews-server/internal/feed"
	"github.com/listenupapp/bookreviews-server/internal/identity"
	"github.com/listenupapp/bookreviews-server/internal/imagecache"
	"github.com/listenupapp/bookreviews-server/internal/logger"
	"github.com/listenupapp/bookreviews-server/internal/session"
	"github.com/listenupapp/bookreviews-server/internal/userdir"
)

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
	handler *api.Server
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := h.Server.Shutdown(ctx)
	h.handler.Close()
	return err
}

// ProvideHTTPServer provides the HTTP server.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	docs := do.MustInvoke[*DocStoreHandle](i)
	index := do.MustInvoke[*SearchIndexHandle](i)

	services := &api.Services{
		Feed:     do.MustInvoke[*feed.Coordinator](i),
		Users:    do.MustInvoke[*userdir.Directory](i),
		Lookup:   do.MustInvoke[*booklookup.Client](i),
		Session:  do.MustInvoke[*session.Store](i),
		Images:   do.MustInvoke[*imagecache.Cache](i),
		Enricher: do.MustInvoke[*dto.Enricher](i),
		Verifier: do.MustInvoke[*identity.Verifier](i),
		Docs:     docs.Store,
		Search:   index.Index,
	}

	handler := api.NewServer(services, sseHandle.Manager, api.Options{
		CORSOrigins: cfg.Server.CORSOrigins,
	}, log.Logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", "error", err)
		}
	}()

	return &HTTPServerHandle{Server: srv, handler: handler}, nil
}
