package canvases

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/ayukmr/lixel-server/core"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

// Service is the subset of the canvas service the handlers need.
type Service interface {
	Create(ctx context.Context, content core.Grid) (uint32, error)
	Delete(ctx context.Context, id uint32) error
	Content(ctx context.Context, id uint32) (core.Grid, error)
	Patch(ctx context.Context, id uint32, pixels []core.Pixel) (uint32, error)
	Ping(ctx context.Context) error
}

type (
	CreateRequest struct {
		Content core.Grid `json:"content"`
	}

	PatchRequest struct {
		Pixels []core.Pixel `json:"pixels"`
	}

	IDResponse struct {
		ID uint32 `json:"id"`
	}

	ContentResponse struct {
		Content core.Grid `json:"content"`
	}
)

func HandleCreate(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Content == nil {
			logrus.WithError(err).Warn("Invalid create canvas body")
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		id, err := svc.Create(r.Context(), req.Content)
		if err != nil {
			writeError(w, err)
			return
		}

		render.JSON(w, r, IDResponse{ID: id})
	}
}

func HandleDelete(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseID(w, r)
		if !ok {
			return
		}

		if err := svc.Delete(r.Context(), id); err != nil {
			writeError(w, err)
			return
		}

		w.WriteHeader(http.StatusOK)
	}
}

func HandleGetContent(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseID(w, r)
		if !ok {
			return
		}

		content, err := svc.Content(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}

		render.JSON(w, r, ContentResponse{Content: content})
	}
}

func HandlePatchContent(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseID(w, r)
		if !ok {
			return
		}

		var req PatchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logrus.WithError(err).WithField("canvas_id", id).Warn("Invalid patch canvas body")
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		patched, err := svc.Patch(r.Context(), id, req.Pixels)
		if err != nil {
			writeError(w, err)
			return
		}

		render.JSON(w, r, IDResponse{ID: patched})
	}
}

// HandleHealth reports whether the collection can currently be loaded.
func HandleHealth(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Ping(r.Context()); err != nil {
			logrus.WithError(err).Warn("Health check failed")
			http.Error(w, "Storage unavailable", http.StatusServiceUnavailable)
			return
		}

		render.JSON(w, r, map[string]string{"status": "ok"})
	}
}

func parseID(w http.ResponseWriter, r *http.Request) (uint32, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		logrus.WithField("canvas_id", raw).Warn("Invalid canvas id")
		http.Error(w, "Invalid canvas id", http.StatusBadRequest)
		return 0, false
	}
	return uint32(id), true
}

// writeError maps service errors to status codes. Not found has an empty body.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrNotFound):
		w.WriteHeader(http.StatusNotFound)
	case errors.Is(err, core.ErrOutOfBounds):
		http.Error(w, "Pixel out of bounds", http.StatusUnprocessableEntity)
	default:
		logrus.WithError(err).Error("Canvas operation failed")
		http.Error(w, "Failed to access canvas storage", http.StatusInternalServerError)
	}
}
