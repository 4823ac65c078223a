package server

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"

	"github.com/patrickhamzaokello/ColabFavourites/core/recommend"
	"github.com/patrickhamzaokello/ColabFavourites/logger"
)

const apiVersion = "1.0.0"

// APIHandler serves the recommendation endpoints.
type APIHandler struct {
	engine       *recommend.Engine
	queryTimeout time.Duration
}

func NewAPIHandler(engine *recommend.Engine, queryTimeout time.Duration) *APIHandler {
	return &APIHandler{engine: engine, queryTimeout: queryTimeout}
}

// SimilarSongsRequest is the body of POST /recommendations/similar-songs.
// Zero K and empty Metric select the configured defaults.
type SimilarSongsRequest struct {
	SongID int64  `json:"song_id"`
	K      int    `json:"k"`
	Metric string `json:"metric"`
}

// ContentBasedRequest is the body of POST /recommendations/content-based.
// SongTitle may also carry a numeric song id; SongID is used when it is empty.
type ContentBasedRequest struct {
	SongTitle        string `json:"song_title"`
	SongID           int64  `json:"song_id"`
	NRecommendations int    `json:"n_recommendations"`
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to encode response", logger.ErrorField(err))
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := recommend.HTTPStatus(err)
	resp := errorResponse{Error: err.Error()}
	if kind, ok := recommend.KindOf(err); ok {
		resp.Kind = string(kind)
	}
	if status >= http.StatusInternalServerError {
		logger.Warn("Request failed", logger.Int("status", status), logger.ErrorField(err))
	}
	writeJSON(w, status, resp)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg, Kind: string(recommend.KindInvalidParameter)})
}

// queryInt reads an optional integer query parameter; absent means 0.
func queryInt(r *http.Request, name string) (int, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}

func (h *APIHandler) withTimeout(r *http.Request) (context.Context, context.CancelFunc) {
	if h.queryTimeout <= 0 {
		return context.WithCancel(r.Context())
	}
	return context.WithTimeout(r.Context(), h.queryTimeout)
}

func (h *APIHandler) RootHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "MW Music Recommender API is running",
		"version": apiVersion,
	})
}

// HealthHandler answers 503 while storage is unreachable or no snapshot is published.
func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.withTimeout(r)
	defer cancel()

	health := h.engine.Health(ctx)
	status := http.StatusOK
	if health.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}

func (h *APIHandler) StatsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Stats())
}

func (h *APIHandler) SimilarSongsHandler(w http.ResponseWriter, r *http.Request) {
	var req SimilarSongsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "Invalid request body")
		return
	}
	metric, err := h.engine.ResolveMetric(req.Metric)
	if err != nil {
		writeError(w, err)
		return
	}

	ctx, cancel := h.withTimeout(r)
	defer cancel()

	res, err := h.engine.RecommendSimilar(ctx, req.SongID, req.K, metric)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *APIHandler) ContentBasedHandler(w http.ResponseWriter, r *http.Request) {
	var req ContentBasedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "Invalid request body")
		return
	}
	query := req.SongTitle
	if strings.TrimSpace(query) == "" && req.SongID > 0 {
		query = strconv.FormatInt(req.SongID, 10)
	}

	ctx, cancel := h.withTimeout(r)
	defer cancel()

	res, err := h.engine.RecommendContent(ctx, query, req.NRecommendations)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *APIHandler) PopularSongsHandler(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(r, "limit")
	if !ok {
		badRequest(w, "limit must be an integer")
		return
	}
	alg, err := h.engine.ResolvePopularity(r.URL.Query().Get("algorithm"))
	if err != nil {
		writeError(w, err)
		return
	}

	ctx, cancel := h.withTimeout(r)
	defer cancel()

	res, err := h.engine.RecommendPopular(ctx, limit, alg)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *APIHandler) SearchSongsHandler(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(r, "limit")
	if !ok {
		badRequest(w, "limit must be an integer")
		return
	}

	ctx, cancel := h.withTimeout(r)
	defer cancel()

	res, err := h.engine.SearchSongs(ctx, mux.Vars(r)["query"], limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *APIHandler) GetSongHandler(w http.ResponseWriter, r *http.Request) {
	songID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		badRequest(w, "song id must be an integer")
		return
	}

	ctx, cancel := h.withTimeout(r)
	defer cancel()

	song, err := h.engine.GetSong(ctx, songID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, song)
}

func (h *APIHandler) UserHistoryHandler(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(r, "limit")
	if !ok {
		badRequest(w, "limit must be an integer")
		return
	}

	ctx, cancel := h.withTimeout(r)
	defer cancel()

	res, err := h.engine.UserHistory(ctx, mux.Vars(r)["id"], limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// RebuildHandler runs (or joins) a rebuild and waits for it. The rebuild is
// not bound by the query timeout.
func (h *APIHandler) RebuildHandler(w http.ResponseWriter, r *http.Request) {
	res, err := h.engine.Rebuild(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	logger.Info("Rebuild requested over HTTP",
		logger.String("run_id", res.RunID),
		logger.Uint64("generation", res.Generation),
		logger.Bool("coalesced", res.Coalesced))
	writeJSON(w, http.StatusOK, res)
}
