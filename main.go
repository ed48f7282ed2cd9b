package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/ayukmr/lixel-server/core"
	"github.com/ayukmr/lixel-server/handlers/api/canvases"
	"github.com/ayukmr/lixel-server/handlers/websocket"
	"github.com/ayukmr/lixel-server/metrics"
	"github.com/ayukmr/lixel-server/service"
	"github.com/ayukmr/lixel-server/stores"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	socketio "github.com/zishang520/socket.io/v2/socket"
)

const shutdownTimeout = 10 * time.Second

type RoomInfo struct {
	CanvasID string `json:"canvas_id"`
	Viewers  int    `json:"viewers"`
}

func setupRouter(svc canvases.Service, gatherer prometheus.Gatherer) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Logger)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"https://*", "http://*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "Content-Length", "Origin", "X-Requested-With"},
		MaxAge:         300,
	}))

	r.Route("/canvas", func(r chi.Router) {
		r.Post("/", canvases.HandleCreate(svc))
		r.Route("/{id}", func(r chi.Router) {
			r.Delete("/", canvases.HandleDelete(svc))
			r.Get("/content", canvases.HandleGetContent(svc))
			r.Put("/content", canvases.HandlePatchContent(svc))
		})
	})

	r.Get("/rooms", func(w http.ResponseWriter, r *http.Request) {
		activeRooms := websocket.GetActiveRooms()
		roomList := make([]RoomInfo, 0, len(activeRooms))
		for id, count := range activeRooms {
			roomList = append(roomList, RoomInfo{CanvasID: id, Viewers: count})
		}

		sort.Slice(roomList, func(i, j int) bool {
			if roomList[i].Viewers == roomList[j].Viewers {
				return roomList[i].CanvasID < roomList[j].CanvasID
			}
			return roomList[i].Viewers > roomList[j].Viewers
		})

		render.JSON(w, r, roomList)
	})

	r.Get("/healthz", canvases.HandleHealth(svc))
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return r
}

func newIDGenerator(kind string) (core.IDGenerator, error) {
	switch kind {
	case "", "random":
		return core.NewRandomGenerator(), nil
	case "sequence":
		return core.NewSequenceGenerator(1), nil
	default:
		return nil, fmt.Errorf("unknown id generator %q", kind)
	}
}

func waitForShutdown(server *http.Server, ioo *socketio.Server, store core.CollectionStore) {
	signalC := make(chan os.Signal, 1)
	signal.Notify(signalC, os.Interrupt, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	s := <-signalC
	logrus.WithField("signal", s.String()).Info("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logrus.WithError(err).Error("HTTP server shutdown failed")
	}
	ioo.Close(nil)

	if closer, ok := store.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			logrus.WithError(err).Error("Failed to close store")
		}
	}
}

func main() {
	logLevel := flag.String("loglevel", "info", "Set the logging level: debug, info, warn, error, fatal, panic")
	listenAddr := flag.String("listen", "127.0.0.1:5000", "Set the server listen address")
	flag.Parse()

	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid log level: %v\n", err)
		os.Exit(1)
	}
	logrus.SetLevel(level)

	if err := godotenv.Load(); err != nil {
		logrus.Debug("No .env file loaded")
	}

	store, err := stores.GetStore(context.Background(), stores.ConfigFromEnv())
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize storage")
	}

	ids, err := newIDGenerator(os.Getenv("ID_GENERATOR"))
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize id generator")
	}

	ioo := websocket.SetupSocketIO()
	svc := service.New(store, ids,
		service.WithNotifier(websocket.NewNotifier(ioo)),
		service.WithMetrics(metrics.New(prometheus.DefaultRegisterer)),
	)

	r := setupRouter(svc, prometheus.DefaultGatherer)
	r.Handle("/socket.io/", ioo.ServeHandler(nil))

	server := &http.Server{Addr: *listenAddr, Handler: r}

	logrus.WithField("addr", *listenAddr).Info("Starting server")
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithField("event", "start server").Fatal(err)
		}
	}()

	waitForShutdown(server, ioo, store)
}
