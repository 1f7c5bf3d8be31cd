package backend

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/idilsaglam/itemsync/internal/config"
	"github.com/idilsaglam/itemsync/internal/errs"
	"github.com/idilsaglam/itemsync/internal/store/jsonstore"
	"github.com/idilsaglam/itemsync/internal/store/memstore"
	"github.com/idilsaglam/itemsync/internal/store/sqlitestore"
)

func baseConfig(t *testing.T, backend string) *config.Config {
	dir := t.TempDir()
	return &config.Config{
		Backend:    backend,
		Collection: "items",
		Timeout:    time.Second,
		JSON:       config.JSONConfig{Path: filepath.Join(dir, "items.json")},
		SQLite:     config.SQLiteConfig{Path: filepath.Join(dir, "items.db")},
	}
}

func TestOpenLocalBackends(t *testing.T) {
	tests := []struct {
		backend string
		check   func(t *testing.T, v any)
	}{
		{config.BackendMemory, func(t *testing.T, v any) { assert.IsType(t, &memstore.Store{}, v) }},
		{config.BackendJSON, func(t *testing.T, v any) { assert.IsType(t, &jsonstore.Store{}, v) }},
		{config.BackendSQLite, func(t *testing.T, v any) { assert.IsType(t, &sqlitestore.Store{}, v) }},
	}

	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			coll, err := Open(context.Background(), baseConfig(t, tt.backend))
			require.NoError(t, err)
			defer coll.Close()
			tt.check(t, coll)
		})
	}
}

func TestOpenUnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), baseConfig(t, "redis"))
	assert.True(t, errs.Is(err, errs.ErrCodeUnknownBackend))
}
