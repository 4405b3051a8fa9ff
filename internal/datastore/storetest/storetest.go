// Package storetest opens throwaway SQLite datastores for tests in other packages.
package storetest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tphakala/shiftledger/internal/conf"
	"github.com/tphakala/shiftledger/internal/datastore"
	"github.com/tphakala/shiftledger/internal/logger"
)

// Open returns a migrated SQLite store in t.TempDir(), closed on cleanup.
func Open(t testing.TB) *datastore.SQLiteStore {
	t.Helper()

	settings := &conf.Settings{}
	settings.Database.Type = conf.DatabaseSQLite
	settings.Database.SQLite.Path = filepath.Join(t.TempDir(), "shiftledger.db")

	store, ok := datastore.New(settings).(*datastore.SQLiteStore)
	require.True(t, ok)
	store.Logger = logger.NewDiscardLogger()

	require.NoError(t, store.Open())
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// SeedEmployee inserts or replaces an employee record as given.
func SeedEmployee(t testing.TB, store datastore.Interface, emp datastore.Employee) {
	t.Helper()
	_, err := store.UpsertEmployee(context.Background(), emp.Email, func(*datastore.Employee) (*datastore.Employee, error) {
		e := emp
		return &e, nil
	})
	require.NoError(t, err)
}
