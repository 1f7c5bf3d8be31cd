// Package backend opens the store.Collection selected by configuration.
package backend

import (
	"context"

	"github.com/idilsaglam/itemsync/internal/config"
	"github.com/idilsaglam/itemsync/internal/errs"
	"github.com/idilsaglam/itemsync/internal/logging"
	"github.com/idilsaglam/itemsync/internal/store"
	"github.com/idilsaglam/itemsync/internal/store/cloudstore"
	"github.com/idilsaglam/itemsync/internal/store/jsonstore"
	"github.com/idilsaglam/itemsync/internal/store/memstore"
	"github.com/idilsaglam/itemsync/internal/store/sqlitestore"
)

// Open returns the collection named by cfg. The caller must Close it.
func Open(ctx context.Context, cfg *config.Config) (store.Collection, error) {
	logger := logging.NewLogger("store").WithField("backend", cfg.Backend)

	var (
		coll store.Collection
		err  error
	)
	switch cfg.Backend {
	case config.BackendMemory:
		coll = memstore.New()
	case config.BackendJSON:
		coll, err = jsonstore.Open(cfg.JSON.Path, logger)
	case config.BackendSQLite:
		coll, err = sqlitestore.Open(cfg.SQLite.Path, cfg.Collection, logger)
	case config.BackendFirestore:
		coll, err = cloudstore.Open(ctx, cloudstore.Config{
			Project:     cfg.Firestore.Project,
			Collection:  cfg.Collection,
			Credentials: cfg.Firestore.Credentials,
		}, logger)
	default:
		return nil, errs.UnknownBackend(cfg.Backend)
	}
	if err != nil {
		return nil, errs.Wrap(err, errs.ErrCodeStoreFailed, "open "+cfg.Backend+" backend")
	}
	logger.Debug("backend opened")
	return coll, nil
}
