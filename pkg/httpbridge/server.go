package httpbridge

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/soypete/voicejournal/pkg/logging"
	"github.com/soypete/voicejournal/pkg/metrics"
)

// maxBodyBytes caps journal request bodies; base64 inflates audio by a third.
const maxBodyBytes = 25 << 20

// Server represents the HTTP server
type Server struct {
	app          *AppContext
	logger       logging.Logger
	router       *mux.Router
	handler      http.Handler
	maxBodyBytes int64
}

// NewServer creates a new HTTP server
func NewServer(app *AppContext) *Server {
	s := &Server{
		app:          app,
		logger:       app.Logger.With("module", "httpbridge"),
		router:       mux.NewRouter(),
		maxBodyBytes: maxBodyBytes,
	}

	// Setup routes
	s.setupRoutes()

	c := cors.New(cors.Options{
		AllowedOrigins: app.Config.Server.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	})
	s.handler = c.Handler(s.router)

	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	r := s.router
	r.Use(s.instrument)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusNotFound, "Not found", "no route for "+r.URL.Path)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusMethodNotAllowed, "Method not allowed", r.Method+" is not supported on "+r.URL.Path)
	})

	r.HandleFunc("/", s.handleRoot).Methods(http.MethodGet)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/echo", s.handleEcho).Methods(http.MethodPost)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	// Journal routes; fixed paths before /journal/{id}
	r.HandleFunc("/journal", s.handleCreateJournal).Methods(http.MethodPost)
	r.HandleFunc("/journal/new", s.handleCreateJournal).Methods(http.MethodPost)
	r.HandleFunc("/journal/{id}/append", s.handleAppendJournal).Methods(http.MethodPost)
	r.HandleFunc("/journal", s.handleListJournals).Methods(http.MethodGet)
	r.HandleFunc("/journal/latest", s.handleLatestJournal).Methods(http.MethodGet)
	r.HandleFunc("/journal/latest-or-new", s.handleLatestOrNewJournal).Methods(http.MethodGet)
	r.HandleFunc("/journal/{id}", s.handleGetJournal).Methods(http.MethodGet)
}

// Handler returns the root handler, CORS included.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "starting HTTP server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	timeout := time.Duration(s.app.Config.Server.ShutdownTimeoutSeconds) * time.Second
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.logger.Info(shutdownCtx, "shutting down HTTP server")
	return srv.Shutdown(shutdownCtx)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// instrument records request counts and latency by route template.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		path := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tmpl, err := route.GetPathTemplate(); err == nil {
				path = tmpl
			}
		}
		elapsed := time.Since(start)

		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rec.status)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(elapsed.Seconds())
		s.logger.Debug(r.Context(), "request handled",
			"method", r.Method, "path", path, "status", rec.status, "duration_ms", elapsed.Milliseconds())
	})
}
