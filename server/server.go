package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/patrickhamzaokello/ColabFavourites/core/recommend"
	"github.com/patrickhamzaokello/ColabFavourites/logger"
)

const shutdownTimeout = 5 * time.Second

// NewRouter wires every HTTP route onto the engine. queryTimeout bounds each
// recommendation, search and lookup request.
func NewRouter(engine *recommend.Engine, queryTimeout time.Duration) *mux.Router {
	h := NewAPIHandler(engine, queryTimeout)

	router := mux.NewRouter()
	router.Use(corsMiddleware, accessLogMiddleware)

	// Preflight requests must match a route for the middleware to run.
	router.PathPrefix("/").Methods(http.MethodOptions).HandlerFunc(func(http.ResponseWriter, *http.Request) {})

	router.HandleFunc("/", h.RootHandler).Methods(http.MethodGet)
	router.HandleFunc("/health", h.HealthHandler).Methods(http.MethodGet)
	router.HandleFunc("/stats", h.StatsHandler).Methods(http.MethodGet)

	router.HandleFunc("/recommendations/similar-songs", h.SimilarSongsHandler).Methods(http.MethodPost)
	router.HandleFunc("/recommendations/content-based", h.ContentBasedHandler).Methods(http.MethodPost)
	router.HandleFunc("/recommendations/popular", h.PopularSongsHandler).Methods(http.MethodGet)

	router.HandleFunc("/songs/search/{query}", h.SearchSongsHandler).Methods(http.MethodGet)
	router.HandleFunc("/songs/{id}", h.GetSongHandler).Methods(http.MethodGet)
	router.HandleFunc("/users/{id}/history", h.UserHistoryHandler).Methods(http.MethodGet)

	router.HandleFunc("/admin/rebuild", h.RebuildHandler).Methods(http.MethodPost)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	return router
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func accessLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Debug("HTTP request",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Int("status", rec.status),
			logger.Duration("duration", time.Since(start)))
	})
}

// Run serves handler on addr until ctx is cancelled, then shuts down
// gracefully, giving in-flight requests a few seconds to finish.
func Run(ctx context.Context, addr string, handler http.Handler) error {
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server starting", logger.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("HTTP server stopped")
	return nil
}
