// Package server exposes the tracker's HTTP surface. Every domain
// endpoint answers JSON of the shape {success, message, ...}; the HTTP
// status mirrors the result tag.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"osrs-tracker/internal/domain"
	"osrs-tracker/internal/period"
	"osrs-tracker/internal/service"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

type TrackerServer struct {
	playerSvc *service.PlayerService
	groupSvc  *service.GroupService
	logger    zerolog.Logger
}

func NewTrackerServer(playerSvc *service.PlayerService, groupSvc *service.GroupService, logger zerolog.Logger) *TrackerServer {
	return &TrackerServer{playerSvc: playerSvc, groupSvc: groupSvc, logger: logger}
}

// Routes registers every endpoint on the mux.
func (s *TrackerServer) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /players/get-player", s.handleGetPlayer)
	mux.HandleFunc("GET /players/get-gains", s.handleGetPlayerGains)
	mux.HandleFunc("GET /groups/get-group-id", s.handleGetGroupID)
	mux.HandleFunc("GET /groups/get-group-gains", s.handleGetGroupGains)
	mux.HandleFunc("GET /groups/group-rankings", s.handleGroupRankings)
	mux.HandleFunc("POST /groups/create-group", s.handleCreateGroup)
	mux.HandleFunc("POST /groups/add-members-to-group", s.handleAddMembers)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
}

func (s *TrackerServer) handleGetPlayer(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")
	result := s.playerSvc.FetchAndUpsertPlayer(r.Context(), username)
	writeJSON(w, result.Status, result)
}

func (s *TrackerServer) handleGetPlayerGains(w http.ResponseWriter, r *http.Request) {
	p, ref, ok := s.gainsParams(w, r)
	if !ok {
		return
	}
	username := r.URL.Query().Get("username")
	result := s.playerSvc.GetGains(r.Context(), p, username, ref)
	writeJSON(w, result.Status, result)
}

func (s *TrackerServer) handleGetGroupID(w http.ResponseWriter, r *http.Request) {
	result := s.groupSvc.GetGroupID(r.Context(), r.URL.Query().Get("groupName"))
	writeJSON(w, result.Status, result)
}

func (s *TrackerServer) handleGetGroupGains(w http.ResponseWriter, r *http.Request) {
	p, ref, ok := s.gainsParams(w, r)
	if !ok {
		return
	}
	groupName := r.URL.Query().Get("groupName")
	result := s.groupSvc.GetGainsForGroup(r.Context(), p, groupName, ref)
	writeJSON(w, result.Status, result)
}

func (s *TrackerServer) handleGroupRankings(w http.ResponseWriter, r *http.Request) {
	p, ref, ok := s.gainsParams(w, r)
	if !ok {
		return
	}
	groupName := r.URL.Query().Get("groupName")
	result := s.groupSvc.GetGroupRankings(r.Context(), p, groupName, ref)
	writeJSON(w, result.Status, result)
}

func (s *TrackerServer) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	result := s.groupSvc.CreateGroup(r.Context(), r.URL.Query().Get("groupName"))
	writeJSON(w, result.Status, result)
}

type addMembersRequest struct {
	GroupMembers []string `json:"groupMembers"`
}

func (s *TrackerServer) handleAddMembers(w http.ResponseWriter, r *http.Request) {
	var body addMembersRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, service.Result{
			Success: false,
			Message: "Invalid request body",
			Error:   err.Error(),
		})
		return
	}
	result := s.groupSvc.AddMembers(r.Context(), r.URL.Query().Get("groupName"), body.GroupMembers)
	writeJSON(w, result.Status, result)
}

func (s *TrackerServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// gainsParams parses the shared period and optional date query
// parameters. An unrecognized period is rejected for every endpoint
// alike; a missing date means "now".
func (s *TrackerServer) gainsParams(w http.ResponseWriter, r *http.Request) (domain.Period, time.Time, bool) {
	p, err := period.Parse(r.URL.Query().Get("period"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, service.Result{
			Success: false,
			Message: "Invalid period",
			Error:   err.Error(),
		})
		return "", time.Time{}, false
	}

	ref := time.Now().UTC()
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := parseDate(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, service.Result{
				Success: false,
				Message: "Invalid date",
				Error:   err.Error(),
			})
			return "", time.Time{}, false
		}
		ref = parsed
	}
	return p, ref, true
}

func parseDate(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
