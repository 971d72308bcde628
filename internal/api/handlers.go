package api

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/unklstewy/flighttrail/internal/history"
	"github.com/unklstewy/flighttrail/pkg/flight"
	"github.com/unklstewy/flighttrail/pkg/opensky"
	"go.uber.org/zap"
)

const (
	defaultTrajectoryHours = 6
	defaultAircraftHours   = 24
	maxPostedPositions     = 10000
	maxSettingBodyBytes    = 64 << 10
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.opts.Health == nil {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok", "database": "disabled"})
		return
	}
	if err := s.opts.Health(r.Context()); err != nil {
		s.logger.Warn("Health check failed", zap.Error(err))
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "database": err.Error()})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok", "database": "ok"})
}

// handleGetFlights returns live airborne positions for a region. When client
// tracking is on, the positions are also handed to the writer in the
// background.
func (s *Server) handleGetFlights(w http.ResponseWriter, r *http.Request) {
	if s.opts.Feed == nil {
		respondError(w, http.StatusServiceUnavailable, "feed not configured")
		return
	}

	name := r.URL.Query().Get("region")
	if name == "" {
		name = string(flight.RegionUSA)
	}
	region, err := flight.ParseFeedRegion(name)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	states, err := s.opts.Feed.GetStates(r.Context(), region.Bounds())
	if err != nil {
		s.respondFeedError(w, err)
		return
	}

	positions := flight.NormalizeAll(states, true)

	tracked := false
	if region.IsLedgerRegion() && len(positions) > 0 && s.opts.Settings.Get(r.Context()).ClientTracking {
		s.announceWrite(region, s.opts.Writer.WriteAsync(r.Context(), positions, region, flight.SourceClient))
		tracked = true
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"region":    region,
		"count":     len(positions),
		"flights":   positions,
		"tracked":   tracked,
		"timestamp": s.now().UTC(),
		"rateLimit": s.opts.Limits.Snapshot(),
	})
}

func (s *Server) respondFeedError(w http.ResponseWriter, err error) {
	if rle, ok := opensky.IsRateLimitError(err); ok {
		if rle.RetryAfter > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(rle.RetryAfter.Seconds()))))
		}
		respondError(w, http.StatusTooManyRequests, rle.Error())
		return
	}
	s.logger.Warn("Feed request failed", zap.Error(err))
	respondError(w, http.StatusBadGateway, "failed to fetch flights")
}

// announceWrite forwards the outcome of a background write to websocket
// clients. Without a hub the result is dropped.
func (s *Server) announceWrite(region flight.Region, results <-chan history.WriteResult) {
	if s.opts.Hub == nil {
		return
	}
	go func() {
		res, ok := <-results
		if !ok {
			return
		}
		data := map[string]any{"region": region, "saved": res.Saved, "skipped": res.Skipped}
		if res.Err != nil {
			data["error"] = res.Err.Error()
		}
		s.opts.Hub.Broadcast(Message{Type: MessageTypeWrite, Data: data})
	}()
}

type postPositionsRequest struct {
	Region    string          `json:"region"`
	Positions []flight.Report `json:"positions"`
}

// handlePostPositions stores positions reported by an interactive client.
// With ?wait=true the response carries the write summary.
func (s *Server) handlePostPositions(w http.ResponseWriter, r *http.Request) {
	if !s.opts.Settings.Get(r.Context()).ClientTracking {
		respondError(w, http.StatusForbidden, "client tracking is disabled")
		return
	}

	var req postPositionsRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 8<<20)).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	region, err := flight.ParseRegion(req.Region)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Positions) > maxPostedPositions {
		respondError(w, http.StatusRequestEntityTooLarge, "too many positions")
		return
	}

	positions, err := flight.NormalizeReports(req.Positions)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if r.URL.Query().Get("wait") == "true" {
		summary, err := s.opts.Writer.Write(r.Context(), positions, region, flight.SourceClient)
		body := map[string]any{"saved": summary.Saved, "skipped": summary.Skipped}
		if err != nil {
			body["error"] = err.Error()
		}
		respondJSON(w, http.StatusOK, body)
		return
	}

	s.announceWrite(region, s.opts.Writer.WriteAsync(r.Context(), positions, region, flight.SourceClient))
	respondJSON(w, http.StatusAccepted, map[string]any{"status": "accepted", "count": len(positions)})
}

func (s *Server) handleGetTrajectories(w http.ResponseWriter, r *http.Request) {
	hours, ok := parseHours(w, r, defaultTrajectoryHours)
	if !ok {
		return
	}

	var region *flight.Region
	if name := r.URL.Query().Get("region"); name != "" {
		parsed, err := flight.ParseRegion(name)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		region = &parsed
	}

	trajectories := s.opts.Reconstructor.Reconstruct(r.Context(), region, hours)
	respondJSON(w, http.StatusOK, map[string]any{
		"trajectories": trajectories,
		"count":        len(trajectories),
		"hours":        hours,
	})
}

func (s *Server) handleGetTrajectory(w http.ResponseWriter, r *http.Request) {
	hours, ok := parseHours(w, r, defaultAircraftHours)
	if !ok {
		return
	}

	icao := chi.URLParam(r, "icao")
	trajectory, found := s.opts.Reconstructor.ReconstructOne(r.Context(), icao, hours)
	if !found {
		respondError(w, http.StatusNotFound, "no trajectory for aircraft")
		return
	}
	respondJSON(w, http.StatusOK, trajectory)
}

// handleGetCurrentPosition estimates where an aircraft is at ?at= (RFC 3339,
// default now). The position is null when the last record is too old.
func (s *Server) handleGetCurrentPosition(w http.ResponseWriter, r *http.Request) {
	at := s.now().UTC()
	if raw := r.URL.Query().Get("at"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "at must be an RFC 3339 timestamp")
			return
		}
		at = parsed.UTC()
	}
	hours, ok := parseHours(w, r, defaultAircraftHours)
	if !ok {
		return
	}

	icao := chi.URLParam(r, "icao")
	trajectory, found := s.opts.Reconstructor.ReconstructOne(r.Context(), icao, hours)
	if !found {
		respondError(w, http.StatusNotFound, "no trajectory for aircraft")
		return
	}

	body := map[string]any{
		"icao24":   trajectory.ICAO24,
		"at":       at,
		"position": nil,
		"stale":    true,
	}
	if point, ok := flight.Extrapolate(trajectory, at); ok {
		body["position"] = point
		body["stale"] = false
	}
	respondJSON(w, http.StatusOK, body)
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	hours, ok := parseHours(w, r, defaultAircraftHours)
	if !ok {
		return
	}

	records := s.opts.Reconstructor.History(r.Context(), chi.URLParam(r, "icao"), hours)
	respondJSON(w, http.StatusOK, map[string]any{
		"positions": records,
		"count":     len(records),
	})
}

func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	if s.opts.Stats == nil {
		respondError(w, http.StatusServiceUnavailable, "database disabled")
		return
	}

	stats, err := s.opts.Stats.GetStats(r.Context())
	if err != nil {
		s.logger.Error("Failed to get stats", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to get stats")
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.opts.Settings.Get(r.Context()))
}

type putSettingRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func (s *Server) handlePutSetting(w http.ResponseWriter, r *http.Request) {
	var req putSettingRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSettingBodyBytes)).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := s.opts.Settings.Set(r.Context(), req.Key, req.Value)
	switch {
	case err == nil:
	case errors.Is(err, flight.ErrUnknownSetting), errors.Is(err, flight.ErrInvalidSetting):
		respondError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, history.ErrNoStore):
		respondError(w, http.StatusServiceUnavailable, "database disabled")
		return
	default:
		s.logger.Error("Failed to update setting", zap.String("key", req.Key), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to update setting")
		return
	}

	respondJSON(w, http.StatusOK, s.opts.Settings.Get(r.Context()))
}

// handleCron runs one collection job and returns its summary.
func (s *Server) handleCron(w http.ResponseWriter, r *http.Request) {
	if s.opts.Collector == nil {
		respondError(w, http.StatusServiceUnavailable, "collector not configured")
		return
	}
	respondJSON(w, http.StatusOK, s.opts.Collector.RunOnce(r.Context()))
}

func (s *Server) handleFeedStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"configured": s.opts.FeedConfigured,
		"rateLimit":  s.opts.Limits.Snapshot(),
		"limits": map[string]int{
			"anonymous":         opensky.AnonymousDailyLimit,
			"authenticated":     opensky.AuthenticatedDailyLimit,
			"activeContributor": opensky.ActiveContributorDailyLimit,
		},
	})
}

// parseHours reads ?hours=, writing a 400 response when it is invalid.
func parseHours(w http.ResponseWriter, r *http.Request, def float64) (float64, bool) {
	raw := r.URL.Query().Get("hours")
	if raw == "" {
		return def, true
	}

	hours, err := strconv.ParseFloat(raw, 64)
	if err != nil || !history.ValidHours(hours) {
		respondError(w, http.StatusBadRequest, "hours must be a positive number of hours")
		return 0, false
	}
	return hours, true
}
