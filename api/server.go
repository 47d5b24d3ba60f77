package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"credit-analytics/models"
	"credit-analytics/services"
	"credit-analytics/storage"
	"credit-analytics/utils"
)

// Options tunes the HTTP surface.
type Options struct {
	MaxUploadBytes int64
	RateLimitRPS   float64
	RateLimitBurst int
}

// Server exposes the ingestor and analytics engine over HTTP for the browser UI.
type Server struct {
	store    *storage.DatasetStore
	ingestor *services.Ingestor
	hub      *Hub
	metrics  *Metrics
	limiter  *RateLimiter
	validate *validator.Validate
	logger   *slog.Logger
	opts     Options
}

// NewServer wires the handlers to store. Every successful upload replaces the
// store's dataset and is announced on the websocket hub.
func NewServer(store *storage.DatasetStore, ingestor *services.Ingestor, logger *slog.Logger, opts Options) *Server {
	if logger == nil {
		logger = utils.NopLogger()
	}
	logger = logger.With(slog.String("component", "api"))
	metrics := NewMetrics()

	s := &Server{
		store:    store,
		ingestor: ingestor,
		hub:      NewHub(logger, metrics),
		metrics:  metrics,
		limiter:  NewRateLimiter(opts.RateLimitRPS, opts.RateLimitBurst, logger),
		validate: validator.New(),
		logger:   logger,
		opts:     opts,
	}

	s.hub.greeting = func() *Event {
		if ds, ok := store.Current(); ok {
			return &Event{Type: EventDatasetLoaded, Dataset: newDatasetInfo(ds)}
		}
		return nil
	}
	store.Subscribe(s.onDatasetReplaced)
	if ds, ok := store.Current(); ok {
		metrics.dataset(ds.Len(), ds.Generation)
	}
	return s
}

func (s *Server) onDatasetReplaced(ds *models.Dataset) {
	s.metrics.dataset(ds.Len(), ds.Generation)
	s.hub.Broadcast(Event{Type: EventDatasetLoaded, Dataset: newDatasetInfo(ds)})
}

// Routes returns the complete router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, map[string]any{"status": "ok", "generation": s.store.Generation()})
	})
	r.Handle("/metrics", s.metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/ws", s.hub.ServeWS)

		r.Group(func(r chi.Router) {
			r.Use(render.SetContentType(render.ContentTypeJSON))

			r.With(s.limiter.Handler).Post("/datasets", s.UploadDataset)
			r.Get("/datasets/current", s.CurrentDataset)
			r.Get("/stats", s.Stats)
			r.Post("/compare", s.Compare)
		})
	})
	return r
}

// Close disconnects websocket clients.
func (s *Server) Close() {
	s.hub.Close()
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		s.logger.InfoContext(r.Context(), "http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Int("bytes", ww.BytesWritten()),
			slog.Duration("duration", time.Since(start)),
			slog.String("request_id", middleware.GetReqID(r.Context())))
	})
}
