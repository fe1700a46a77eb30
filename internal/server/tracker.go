package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"fortnite-tracker/internal/api"
	"fortnite-tracker/internal/constants"
	"fortnite-tracker/internal/coordinator"
	"fortnite-tracker/internal/domain"
	"fortnite-tracker/internal/middleware"
	"fortnite-tracker/internal/sensor"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

type TickHistory interface {
	Recent(ctx context.Context, player string, limit int) ([]domain.TickRecord, error)
}

type RateLimitSource interface {
	GetRateLimitInfo() api.RateLimitInfo
}

type TrackerServer struct {
	coord     *coordinator.Coordinator
	sensors   []*sensor.Sensor
	history   TickHistory
	rateLimit RateLimitSource
	logger    zerolog.Logger
}

func NewTrackerServer(coord *coordinator.Coordinator, history TickHistory, rateLimit RateLimitSource, logger zerolog.Logger) *TrackerServer {
	return &TrackerServer{
		coord:     coord,
		sensors:   sensor.Build(coord.Players(), coord),
		history:   history,
		rateLimit: rateLimit,
		logger:    logger,
	}
}

func (s *TrackerServer) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", s.health)
	r.Route("/api", func(r chi.Router) {
		r.Get("/snapshot", s.getSnapshot)
		r.Get("/players/{player}/stats/{key}", s.getStat)
		r.Get("/sensors", s.getSensors)
		r.Get("/ticks", s.getTicks)
		r.Get("/ratelimit", s.getRateLimit)
	})
	return r
}

func (s *TrackerServer) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]any{
		"status": "ok",
		"ticks":  s.coord.Snapshot().Ticks(),
	})
}

func (s *TrackerServer) getSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.coord.Snapshot())
}

type statResponse struct {
	Player string         `json:"player"`
	Key    domain.StatKey `json:"key"`
	Value  *float64       `json:"value"`
}

func (s *TrackerServer) getStat(w http.ResponseWriter, r *http.Request) {
	player := chi.URLParam(r, "player")
	key, err := domain.ParseStatKey(chi.URLParam(r, "key"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	snap := s.coord.Snapshot()
	if _, ok := snap.Get(player); !ok {
		writeError(w, r, http.StatusNotFound, "player is not tracked")
		return
	}

	resp := statResponse{Player: player, Key: key}
	if v, ok := snap.Read(player, key); ok {
		resp.Value = &v
	}
	writeJSON(w, r, http.StatusOK, resp)
}

func (s *TrackerServer) getSensors(w http.ResponseWriter, r *http.Request) {
	states := make([]sensor.State, 0, len(s.sensors))
	for _, sn := range s.sensors {
		states = append(states, sn.State())
	}
	writeJSON(w, r, http.StatusOK, states)
}

func (s *TrackerServer) getTicks(w http.ResponseWriter, r *http.Request) {
	limit := constants.TickHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, r, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	ctx, cancel := context.WithTimeout(r.Context(), constants.DatabaseTimeout)
	defer cancel()

	ticks, err := s.history.Recent(ctx, r.URL.Query().Get("player"), limit)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("request_id", middleware.GetRequestID(r.Context())).
			Msg("failed to load tick history")
		writeError(w, r, http.StatusInternalServerError, "failed to load tick history")
		return
	}
	if ticks == nil {
		ticks = []domain.TickRecord{}
	}
	writeJSON(w, r, http.StatusOK, ticks)
}

func (s *TrackerServer) getRateLimit(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.rateLimit.GetRateLimitInfo())
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zerolog.Ctx(r.Context()).Debug().Err(err).Str("path", r.URL.Path).Msg("failed to write response")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, map[string]string{"error": msg})
}
