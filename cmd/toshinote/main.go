package main

import (
	"context"
	"log"

	"github.com/shimada839/toshinote/internal/cli"
	"github.com/shimada839/toshinote/internal/config"
	"github.com/shimada839/toshinote/internal/geocode"
	"github.com/shimada839/toshinote/internal/kvstore"
	"github.com/shimada839/toshinote/internal/logging"
	"github.com/shimada839/toshinote/internal/session"
	"github.com/shimada839/toshinote/internal/storage"
)

func main() {
	ctx := context.Background()
	cfg := config.LoadConfig()
	logger := logging.NewDefault()

	store, err := storage.Open(ctx, cfg.DatabasePath, logger)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer store.Close()

	kv := kvstore.NewSQLiteRepository(store.DB())

	geo := geocode.NewClient(
		geocode.WithEndpoint(cfg.GeocodeEndpoint),
		geocode.WithUserAgent(cfg.GeocodeUserAgent),
		geocode.WithLanguage(cfg.GeocodeLanguage),
		geocode.WithTimeout(cfg.GeocodeTimeout),
	)

	manager := session.NewManager(store, kv, geo, logger,
		session.WithSaveErrorHandler(func(err error) {
			logger.Error(ctx, "notebook save failed, the last edit may be lost on exit", "error", err)
		}),
	)
	if err := manager.Init(ctx); err != nil {
		log.Fatalf("%v", err)
	}
	defer manager.Wait()

	cli.NewApp(manager).Run(ctx)
}
