package filesystem

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ayukmr/lixel-server/core"
	"github.com/sirupsen/logrus"
)

// syncFile flushes a file to stable storage. Tests replace it to simulate a crash mid-save.
var syncFile = func(f *os.File) error { return f.Sync() }

type fsStore struct {
	path string
}

// NewStore creates a store that keeps the collection in a single JSON file at path.
// The parent directory is created if needed; the file itself appears on first save.
func NewStore(path string) (*fsStore, error) {
	if path == "" {
		return nil, fmt.Errorf("filesystem store: empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("filesystem store: create directory: %w", err)
	}
	return &fsStore{path: path}, nil
}

func (s *fsStore) Load(ctx context.Context) (*core.Collection, error) {
	log := logrus.WithField("file_path", s.path)

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Debug("Collection file does not exist yet, starting empty")
			return core.NewCollection(), nil
		}
		log.WithError(err).Error("Failed to read collection file")
		return nil, fmt.Errorf("%w: %w", core.ErrStorageUnavailable, err)
	}

	collection, err := core.DecodeCollection(data)
	if err != nil {
		log.WithError(err).Error("Collection file is corrupt")
		return nil, err
	}

	log.WithField("canvas_count", len(collection.Canvases)).Debug("Collection loaded")
	return collection, nil
}

// Save writes the document to a temp file beside the target, syncs it, and renames it into
// place. A reader sees either the old document or the new one, never a partial write.
func (s *fsStore) Save(ctx context.Context, collection *core.Collection) error {
	log := logrus.WithField("file_path", s.path)

	data, err := core.EncodeCollection(collection)
	if err != nil {
		return err
	}

	if err := writeFileAtomic(s.path, data, 0644); err != nil {
		log.WithError(err).Error("Failed to save collection file")
		return fmt.Errorf("%w: %w", core.ErrStorageUnavailable, err)
	}

	log.WithFields(logrus.Fields{
		"canvas_count": len(collection.Canvases),
		"data_length":  len(data),
	}).Debug("Collection saved")
	return nil
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	renamed := false
	defer func() {
		if !renamed {
			_ = os.Remove(tmpName)
		}
	}()

	if err := tmp.Chmod(perm); err != nil {
		_ = tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := syncFile(tmp); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	renamed = true

	syncDir(dir)
	return nil
}

// syncDir makes the rename durable. Some platforms cannot fsync a directory, and the rename
// has already happened by now, so failures are only logged.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	defer d.Close()

	if err := d.Sync(); err != nil {
		logrus.WithError(err).WithField("dir", dir).Debug("Directory sync failed")
	}
}
