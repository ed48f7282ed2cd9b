package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ayukmr/lixel-server/core"
	"github.com/ayukmr/lixel-server/metrics"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

// maxIDAttempts bounds id regeneration in Create. With random 32-bit ids this is only
// reached when the generator itself is broken.
const maxIDAttempts = 1024

var errIDSpaceExhausted = errors.New("could not allocate a unique canvas id")

// Notifier is told about committed changes. It is called after the save while the
// transaction lock is still held, so events for one canvas arrive in commit order.
// Implementations must not call back into the service.
type Notifier interface {
	CanvasPatched(id uint32, pixels []core.Pixel)
	CanvasDeleted(id uint32)
}

// Transform maps the loaded collection to the one to persist. Returning an error aborts the
// transaction without saving.
type Transform func(core.Collection) (core.Collection, error)

// CanvasService implements canvas operations as load/transform/save transactions over a
// CollectionStore. All transactions are serialized by one lock, so concurrent callers
// cannot lose each other's updates.
type CanvasService struct {
	mu       sync.RWMutex
	store    core.CollectionStore
	ids      core.IDGenerator
	notifier Notifier
	metrics  *metrics.Metrics
}

type Option func(*CanvasService)

func WithNotifier(n Notifier) Option {
	return func(s *CanvasService) { s.notifier = n }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *CanvasService) { s.metrics = m }
}

func New(store core.CollectionStore, ids core.IDGenerator, opts ...Option) *CanvasService {
	s := &CanvasService{store: store, ids: ids}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create stores a new canvas with the given content and returns its id. Content is stored
// as given; its shape is the caller's responsibility.
func (s *CanvasService) Create(ctx context.Context, content core.Grid) (id uint32, err error) {
	defer s.observe("create", time.Now(), &err)

	err = s.withCollection(ctx, "create", func(c core.Collection) (core.Collection, error) {
		candidate, err := s.allocateID(&c)
		if err != nil {
			return c, err
		}
		id = candidate
		c.Canvases = append(c.Canvases, core.Canvas{ID: id, Content: content.Clone()})
		return c, nil
	}, nil)
	if err != nil {
		return 0, err
	}

	logrus.WithFields(logrus.Fields{
		"canvas_id": id,
		"rows":      len(content),
	}).Info("Canvas created successfully")
	return id, nil
}

// allocateID draws candidates until one is not used in the collection.
func (s *CanvasService) allocateID(c *core.Collection) (uint32, error) {
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		candidate := s.ids.Next()
		if !c.Contains(candidate) {
			return candidate, nil
		}
		logrus.WithError(core.ErrDuplicateID).WithField("canvas_id", candidate).Debug("Regenerating canvas id")
	}
	return 0, errIDSpaceExhausted
}

// Delete removes the canvas with the given id. Deleting an unknown id succeeds.
func (s *CanvasService) Delete(ctx context.Context, id uint32) (err error) {
	defer s.observe("delete", time.Now(), &err)

	removed := 0
	err = s.withCollection(ctx, "delete", func(c core.Collection) (core.Collection, error) {
		kept := make([]core.Canvas, 0, len(c.Canvases))
		for _, canvas := range c.Canvases {
			if canvas.ID == id {
				removed++
				continue
			}
			kept = append(kept, canvas)
		}
		c.Canvases = kept
		return c, nil
	}, func() {
		if removed > 0 && s.notifier != nil {
			s.notifier.CanvasDeleted(id)
		}
	})
	if err != nil {
		return err
	}

	log := logrus.WithField("canvas_id", id)
	if removed == 0 {
		log.Debug("Delete of unknown canvas treated as success")
		return nil
	}
	log.Info("Canvas deleted successfully")
	return nil
}

// Content returns the grid of the canvas with the given id, or ErrNotFound.
func (s *CanvasService) Content(ctx context.Context, id uint32) (content core.Grid, err error) {
	defer s.observe("content", time.Now(), &err)

	collection, err := s.readCollection(ctx)
	if err != nil {
		return nil, err
	}

	i := collection.Index(id)
	if i < 0 {
		logrus.WithField("canvas_id", id).Warn("Canvas with specified ID not found")
		return nil, fmt.Errorf("canvas %d: %w", id, core.ErrNotFound)
	}
	return collection.Canvases[i].Content, nil
}

// Patch applies pixels to the canvas in list order, so a later pixel on the same cell wins.
// Every pixel is bounds-checked before any is applied: one bad coordinate rejects the whole
// batch with ErrOutOfBounds and nothing is saved.
func (s *CanvasService) Patch(ctx context.Context, id uint32, pixels []core.Pixel) (_ uint32, err error) {
	defer s.observe("patch", time.Now(), &err)

	log := logrus.WithFields(logrus.Fields{
		"canvas_id":   id,
		"pixel_count": len(pixels),
	})

	err = s.withCollection(ctx, "patch", func(c core.Collection) (core.Collection, error) {
		i := c.Index(id)
		if i < 0 {
			return c, fmt.Errorf("canvas %d: %w", id, core.ErrNotFound)
		}

		content := c.Canvases[i].Content
		for n, p := range pixels {
			if !content.InBounds(p.X, p.Y) {
				return c, fmt.Errorf("pixel %d at (%d,%d): %w", n, p.X, p.Y, core.ErrOutOfBounds)
			}
		}

		for _, p := range pixels {
			content[p.Y][p.X] = p.Color
		}
		return c, nil
	}, func() {
		if s.notifier != nil {
			s.notifier.CanvasPatched(id, pixels)
		}
	})
	if err != nil {
		log.WithError(err).Warn("Canvas patch rejected")
		return 0, err
	}

	log.Info("Canvas patched successfully")
	return id, nil
}

// observe records the operation once its named error result is final.
func (s *CanvasService) observe(op string, start time.Time, err *error) {
	s.metrics.Observe(op, start, *err)
}

// Ping loads the collection to check that storage is readable.
func (s *CanvasService) Ping(ctx context.Context) error {
	_, err := s.readCollection(ctx)
	return err
}

// withCollection runs one load/transform/save transaction under the write lock. The save is
// skipped when the transform fails, leaving the stored collection untouched. onCommit, if
// set, runs after a successful save before the lock is released.
func (s *CanvasService) withCollection(ctx context.Context, op string, fn Transform, onCommit func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := logrus.WithFields(logrus.Fields{
		"tx_id":     ulid.Make().String(),
		"operation": op,
	})

	collection, err := s.store.Load(ctx)
	if err != nil {
		log.WithError(err).Error("Failed to load collection")
		return err
	}

	next, err := fn(*collection)
	if err != nil {
		log.WithError(err).Debug("Transaction aborted")
		return err
	}

	if err := s.store.Save(ctx, &next); err != nil {
		log.WithError(err).Error("Failed to save collection")
		return err
	}

	log.WithField("canvas_count", len(next.Canvases)).Debug("Transaction committed")
	if onCommit != nil {
		onCommit()
	}
	return nil
}

func (s *CanvasService) readCollection(ctx context.Context) (*core.Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	collection, err := s.store.Load(ctx)
	if err != nil {
		logrus.WithError(err).Error("Failed to load collection")
		return nil, err
	}
	return collection, nil
}
