package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ayukmr/lixel-server/core"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

// documentName is the row holding the canvas collection.
const documentName = "canvases"

type sqliteStore struct {
	db *sql.DB
}

// NewStore opens (or creates) the database and ensures the collections table exists.
func NewStore(dataSourceName string) (*sqliteStore, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// A single connection serializes writers and keeps :memory: databases shared.
	db.SetMaxOpenConns(1)

	tableStmt := `CREATE TABLE IF NOT EXISTS collections (name TEXT PRIMARY KEY, data BLOB NOT NULL);`
	if _, err := db.Exec(tableStmt); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create collections table: %w", err)
	}

	return &sqliteStore{db}, nil
}

func (s *sqliteStore) Load(ctx context.Context) (*core.Collection, error) {
	log := logrus.WithField("document", documentName)

	var data []byte
	err := s.db.QueryRowContext(ctx, "SELECT data FROM collections WHERE name = ?", documentName).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("No collection stored yet, starting empty")
			return core.NewCollection(), nil
		}
		log.WithError(err).Error("Failed to read collection")
		return nil, fmt.Errorf("%w: %w", core.ErrStorageUnavailable, err)
	}

	collection, err := core.DecodeCollection(data)
	if err != nil {
		log.WithError(err).Error("Stored collection is corrupt")
		return nil, err
	}
	return collection, nil
}

func (s *sqliteStore) Save(ctx context.Context, collection *core.Collection) error {
	data, err := core.EncodeCollection(collection)
	if err != nil {
		return err
	}
	log := logrus.WithFields(logrus.Fields{
		"document":    documentName,
		"data_length": len(data),
	})

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		log.WithError(err).Error("Failed to begin transaction")
		return fmt.Errorf("%w: %w", core.ErrStorageUnavailable, err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO collections (name, data) VALUES (?, ?) ON CONFLICT(name) DO UPDATE SET data = excluded.data",
		documentName, data)
	if err != nil {
		log.WithError(err).Error("Failed to write collection")
		return fmt.Errorf("%w: %w", core.ErrStorageUnavailable, err)
	}

	if err := tx.Commit(); err != nil {
		log.WithError(err).Error("Failed to commit collection")
		return fmt.Errorf("%w: %w", core.ErrStorageUnavailable, err)
	}

	log.Debug("Collection saved")
	return nil
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}
