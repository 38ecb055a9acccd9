// Package providers contains dependency injection providers for the book review server.
package providers

import (
	"os"

	"github.com/samber/do/v2"

	"github.com/listenupapp/bookreviews-server/internal/config"
	"github.com/listenupapp/bookreviews-server/internal/logger"
)

// ProvideConfig provides the application configuration.
func ProvideConfig(i do.Injector) (*config.Config, error) {
	return config.LoadConfig(os.Args[1:])
}

// ProvideLogger provides the structured logger.
func ProvideLogger(i do.Injector) (*logger.Logger, error) {
	cfg := do.MustInvoke[*config.Config](i)

	log := logger.New(logger.Config{
		Level:       logger.ParseLevel(cfg.Logger.Level),
		AddSource:   cfg.App.Environment == "development",
		Environment: cfg.App.Environment,
	})

	log.Info("Starting Book Reviews Server",
		"environment", cfg.App.Environment,
		"log_level", cfg.Logger.Level,
		"data_path", cfg.Storage.DataPath,
		"docstore", cfg.DocStore.Driver,
		"blobstore", cfg.BlobStore.Driver,
	)

	return log, nil
}
