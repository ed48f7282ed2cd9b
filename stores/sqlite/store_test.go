package sqlite

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/ayukmr/lixel-server/core"
)

func setupTestDB(t *testing.T) (*sqliteStore, string) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	store, err := NewStore(dbPath)
	if err != nil {
		t.Fatalf("NewStore() failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store, dbPath
}

func TestNewStore(t *testing.T) {
	store, dbPath := setupTestDB(t)

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("NewStore() did not create database file")
	}

	var tableName string
	err := store.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='collections'").Scan(&tableName)
	if err != nil {
		t.Fatalf("collections table not created: %v", err)
	}
}

func TestLoad_EmptyDatabase(t *testing.T) {
	store, _ := setupTestDB(t)

	collection, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if len(collection.Canvases) != 0 {
		t.Errorf("Expected empty collection, got %d canvases", len(collection.Canvases))
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	store, _ := setupTestDB(t)
	ctx := context.Background()

	want := &core.Collection{Canvases: []core.Canvas{
		{ID: 7, Content: core.Grid{{"#fff", "#fff"}, {"#f00", "#fff"}}},
	}}
	if err := store.Save(ctx, want); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Round trip mismatch: got %+v, want %+v", got, want)
	}
}

func TestSave_Upserts(t *testing.T) {
	store, _ := setupTestDB(t)
	ctx := context.Background()

	for i := uint32(1); i <= 3; i++ {
		collection := &core.Collection{Canvases: []core.Canvas{{ID: i, Content: core.Grid{{"x"}}}}}
		if err := store.Save(ctx, collection); err != nil {
			t.Fatalf("Save() #%d failed: %v", i, err)
		}
	}

	var rows int
	if err := store.db.QueryRow("SELECT COUNT(*) FROM collections").Scan(&rows); err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if rows != 1 {
		t.Errorf("Expected a single document row, got %d", rows)
	}

	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if len(got.Canvases) != 1 || got.Canvases[0].ID != 3 {
		t.Errorf("Expected last save to win, got %+v", got.Canvases)
	}
}

func TestLoad_CorruptRow(t *testing.T) {
	store, _ := setupTestDB(t)

	_, err := store.db.Exec("INSERT INTO collections (name, data) VALUES (?, ?)", documentName, []byte("{broken"))
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	_, err = store.Load(context.Background())
	if !errors.Is(err, core.ErrStorageCorrupt) {
		t.Errorf("Expected ErrStorageCorrupt, got %v", err)
	}
}

func TestLoad_ClosedDatabase(t *testing.T) {
	store, _ := setupTestDB(t)
	_ = store.Close()

	_, err := store.Load(context.Background())
	if !errors.Is(err, core.ErrStorageUnavailable) {
		t.Errorf("Expected ErrStorageUnavailable, got %v", err)
	}

	err = store.Save(context.Background(), core.NewCollection())
	if !errors.Is(err, core.ErrStorageUnavailable) {
		t.Errorf("Expected ErrStorageUnavailable from Save, got %v", err)
	}
}

func TestPersistsAcrossReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "reopen.db")
	ctx := context.Background()

	first, err := NewStore(dbPath)
	if err != nil {
		t.Fatalf("NewStore() failed: %v", err)
	}
	want := &core.Collection{Canvases: []core.Canvas{{ID: 42, Content: core.Grid{{"#123456"}}}}}
	if err := first.Save(ctx, want); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	_ = first.Close()

	second, err := NewStore(dbPath)
	if err != nil {
		t.Fatalf("NewStore() reopen failed: %v", err)
	}
	defer second.Close()

	got, err := second.Load(ctx)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Reopened collection mismatch: got %+v, want %+v", got, want)
	}
}
