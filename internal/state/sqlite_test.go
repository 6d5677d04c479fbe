package state

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := OpenStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_OpenClose(t *testing.T) {
	store := NewSQLiteStore()
	require.NoError(t, store.Open(":memory:"))
	assert.Equal(t, ":memory:", store.Path())
	require.NoError(t, store.Close())
}

func TestSQLiteStore_Migrate(t *testing.T) {
	store := setupTestStore(t)

	version, err := store.GetMigrationVersion()
	require.NoError(t, err)
	assert.Equal(t, int64(2), version)

	for _, table := range []string{"definitions", "conversions"} {
		rows, err := store.db.Query("SELECT 1 FROM " + table + " LIMIT 1")
		require.NoError(t, err, "table %s should exist", table)
		_ = rows.Close()
	}

	// running again is a no-op
	require.NoError(t, store.Migrate())
}

func TestSQLiteStore_NotOpened(t *testing.T) {
	store := NewSQLiteStore()
	ctx := context.Background()

	assert.Error(t, store.Migrate())
	assert.Error(t, store.SaveDefinition(ctx, &Definition{Name: "x"}))
	_, err := store.ListConversions(ctx, 1)
	assert.Error(t, err)
	assert.NoError(t, store.Close())
}

func TestOpenStore_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.db")

	store, err := OpenStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	// reopening keeps the schema
	store, err = OpenStore(path)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	require.NoError(t, store.SaveDefinition(context.Background(), &Definition{Name: "smoot", Kind: "unit", Line: "smoot = 1.7018 * meter"}))
}

func TestSQLiteStore_Definitions(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.SaveDefinition(ctx, &Definition{Name: "smoot", Kind: "unit", Line: "smoot = 1.7018 * meter", CreatedAt: base}))
	require.NoError(t, store.SaveDefinition(ctx, &Definition{Name: "half_smoot", Kind: "unit", Line: "half_smoot = smoot / 2", CreatedAt: base.Add(time.Second)}))

	defs, err := store.ListDefinitions(ctx)
	require.NoError(t, err)
	require.Len(t, defs, 2)
	assert.Equal(t, "smoot", defs[0].Name)
	assert.Equal(t, "half_smoot", defs[1].Name)
	assert.NotEmpty(t, defs[0].ID)
	assert.True(t, base.Equal(defs[0].CreatedAt))

	// saving the same name replaces the line and keeps its position
	require.NoError(t, store.SaveDefinition(ctx, &Definition{Name: "smoot", Kind: "unit", Line: "smoot = 1.70 * meter", CreatedAt: base.Add(2 * time.Second)}))
	defs, err = store.ListDefinitions(ctx)
	require.NoError(t, err)
	require.Len(t, defs, 2)
	assert.Equal(t, "smoot = 1.70 * meter", defs[0].Line)

	require.NoError(t, store.DeleteDefinition(ctx, "half_smoot"))
	err = store.DeleteDefinition(ctx, "half_smoot")
	assert.ErrorIs(t, err, ErrNotFound)

	defs, err = store.ListDefinitions(ctx)
	require.NoError(t, err)
	assert.Len(t, defs, 1)
}

func TestSQLiteStore_DefinitionAliases(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	saved := []*Definition{
		{Name: "smoot", Kind: "unit", Line: "smoot = 1.7018 * meter", CreatedAt: base},
		{Name: "smoot", Kind: "alias", Line: "@alias smoot = s2", CreatedAt: base.Add(time.Second)},
		{Name: "smoot", Kind: "alias", Line: "@alias smoot = s3", CreatedAt: base.Add(2 * time.Second)},
		{Name: "smoot", Kind: "alias", Line: "@alias smoot = s2", CreatedAt: base.Add(3 * time.Second)},
		{Name: "league", Kind: "unit", Line: "league = 3 * mile", CreatedAt: base.Add(4 * time.Second)},
	}
	for _, d := range saved {
		require.NoError(t, store.SaveDefinition(ctx, d))
	}

	defs, err := store.ListDefinitions(ctx)
	require.NoError(t, err)
	var lines []string
	for _, d := range defs {
		lines = append(lines, d.Line)
	}
	assert.Equal(t, []string{
		"smoot = 1.7018 * meter",
		"@alias smoot = s2",
		"@alias smoot = s3",
		"league = 3 * mile",
	}, lines)

	// removing a name drops its aliases too
	require.NoError(t, store.DeleteDefinition(ctx, "smoot"))
	defs, err = store.ListDefinitions(ctx)
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, "league", defs[0].Name)
}

func TestMigrate_KeepsDefinitionsFromFirstSchema(t *testing.T) {
	store := NewSQLiteStore()
	require.NoError(t, store.Open(":memory:"))
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, setupGoose())
	require.NoError(t, goose.UpTo(store.db, "migrations", 1))

	_, err := store.db.Exec(`INSERT INTO definitions (id, name, kind, line, created_at)
		VALUES ('a', 'smoot', 'unit', 'smoot = 1.7018 * meter', ?)`, time.Now().UTC())
	require.NoError(t, err)

	require.NoError(t, store.Migrate())
	require.NoError(t, store.SaveDefinition(context.Background(), &Definition{Name: "smoot", Kind: "alias", Line: "@alias smoot = s2"}))

	defs, err := store.ListDefinitions(context.Background())
	require.NoError(t, err)
	require.Len(t, defs, 2)
	assert.Equal(t, "smoot = 1.7018 * meter", defs[0].Line)
}

func TestSQLiteStore_Conversions(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	result := 1.609344

	entries := []*Conversion{
		{Magnitude: 1, Src: "mile", Dst: "km", Result: &result, CreatedAt: base},
		{Magnitude: 1, Src: "meter", Dst: "second", Error: "Cannot convert from 'meter' ([length]) to 'second' ([time])", CreatedAt: base.Add(time.Minute)},
		{Magnitude: 500, Src: "nm", Dst: "THz", Contexts: []string{"spectroscopy"}, CreatedAt: base.Add(2 * time.Minute)},
	}
	for _, c := range entries {
		require.NoError(t, store.RecordConversion(ctx, c))
		assert.NotEmpty(t, c.ID)
	}

	all, err := store.ListConversions(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)

	assert.Equal(t, "nm", all[0].Src, "newest first")
	assert.Equal(t, []string{"spectroscopy"}, all[0].Contexts)
	assert.Nil(t, all[0].Result)

	assert.Contains(t, all[1].Error, "Cannot convert")
	assert.Nil(t, all[1].Contexts)

	require.NotNil(t, all[2].Result)
	assert.InDelta(t, result, *all[2].Result, 1e-12)
	assert.Empty(t, all[2].Error)

	latest, err := store.ListConversions(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, latest, 2)

	n, err := store.ClearConversions(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	all, err = store.ListConversions(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, all)
}
