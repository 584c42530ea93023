// Package api exposes the REST control surface: status, configuration,
// kill switch, manual shots, history and sensor series.
package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/goatboynz/ha-WaterME/internal/database/models"
	"github.com/goatboynz/ha-WaterME/internal/database/repositories"
	"github.com/goatboynz/ha-WaterME/internal/ha"
	"github.com/goatboynz/ha-WaterME/internal/services/scheduler"
)

// Server wires HTTP handlers to the scheduler and repositories.
type Server struct {
	scheduler *scheduler.Service
	rooms     *repositories.RoomRepository
	history   *repositories.HistoryRepository
	sensors   *repositories.SensorRepository
	ha        ha.Client
}

// NewServer creates the API server.
func NewServer(sched *scheduler.Service, rooms *repositories.RoomRepository,
	history *repositories.HistoryRepository, sensors *repositories.SensorRepository, client ha.Client) *Server {
	return &Server{
		scheduler: sched,
		rooms:     rooms,
		history:   history,
		sensors:   sensors,
		ha:        client,
	}
}

// Routes mounts all API routes on the given router.
func (s *Server) Routes(r chi.Router) {
	r.Get("/api/status", s.handleStatus)
	r.Get("/api/config", s.handleGetConfig)
	r.Put("/api/config", s.handlePutConfig)
	r.Post("/api/rooms", s.handleCreateRoom)
	r.Put("/api/rooms/{roomID}", s.handleUpdateRoom)
	r.Delete("/api/rooms/{roomID}", s.handleDeleteRoom)
	r.Post("/api/kill_switch/{state}", s.handleKillSwitch)
	r.Post("/api/manual/shot/{roomID}/{zoneID}", s.handleManualShot)
	r.Get("/api/history", s.handleHistory)
	r.Get("/api/sensors/{entityID}", s.handleSensorSeries)
	r.Get("/api/entities", s.handleEntities)
}

// zoneStatus is a zone's configuration merged with its runtime state.
type zoneStatus struct {
	models.Zone
	Runtime scheduler.ZoneRuntime `json:"runtime"`
}

// roomStatus is a room's configuration merged with its runtime state.
type roomStatus struct {
	models.Room
	Firing      bool         `json:"firing"`
	LastZoneRun *time.Time   `json:"lastZoneRunTime"`
	ZoneStatus  []zoneStatus `json:"zoneStatus"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	rooms, err := s.rooms.FindAll(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	statuses := make([]roomStatus, 0, len(rooms))
	for _, room := range rooms {
		rs := roomStatus{
			Room:        room,
			Firing:      s.scheduler.RoomFiring(room.ID),
			LastZoneRun: s.scheduler.RoomLastRun(room.ID),
		}
		for _, zone := range room.Zones {
			rs.ZoneStatus = append(rs.ZoneStatus, zoneStatus{
				Zone:    zone,
				Runtime: s.scheduler.ZoneState(zone.ID),
			})
		}
		statuses = append(statuses, rs)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "running",
		"kill_switch": s.scheduler.KillSwitchActive(),
		"rooms":       statuses,
	})
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	rooms, err := s.rooms.FindAll(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"rooms": rooms})
}

func (s *Server) handlePutConfig(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Rooms []models.Room `json:"rooms"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.rooms.ReplaceAll(r.Context(), body.Rooms); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var room models.Room
	if err := json.NewDecoder(r.Body).Decode(&room); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.rooms.Create(r.Context(), &room); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"status": "ok", "room": room})
}

func (s *Server) handleUpdateRoom(w http.ResponseWriter, r *http.Request) {
	var room models.Room
	if err := json.NewDecoder(r.Body).Decode(&room); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	room.ID = chi.URLParam(r, "roomID")
	existing, err := s.rooms.FindByID(r.Context(), room.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, errors.New("room not found"))
		return
	}
	if err := s.rooms.Update(r.Context(), &room); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok", "room": room})
}

func (s *Server) handleDeleteRoom(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")
	if err := s.rooms.Delete(r.Context(), roomID); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleKillSwitch(w http.ResponseWriter, r *http.Request) {
	state := chi.URLParam(r, "state")
	active := state == "true" || state == "1"
	s.scheduler.SetKillSwitch(active)
	writeJSON(w, http.StatusOK, map[string]bool{"kill_switch": active})
}

func (s *Server) handleManualShot(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")
	zoneID := chi.URLParam(r, "zoneID")

	var body struct {
		DurationSec float64 `json:"duration_sec"`
	}
	// Body is optional; an empty body falls back to the zone's P1 duration.
	_ = json.NewDecoder(r.Body).Decode(&body)

	err := s.scheduler.FireManualShot(r.Context(), roomID, zoneID, body.DurationSec)
	switch {
	case errors.Is(err, scheduler.ErrZoneNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, scheduler.ErrRoomBusy):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, scheduler.ErrKillSwitch):
		writeError(w, http.StatusLocked, err)
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
	default:
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "fired"})
	}
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}
	events, err := s.history.FindRecent(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"events": events})
}

func (s *Server) handleSensorSeries(w http.ResponseWriter, r *http.Request) {
	entityID := chi.URLParam(r, "entityID")
	points, err := s.sensors.FindSeries(r.Context(), entityID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"entity_id": entityID, "points": points})
}

func (s *Server) handleEntities(w http.ResponseWriter, r *http.Request) {
	domain := r.URL.Query().Get("domain")
	entities, err := s.ha.ListEntities(r.Context(), domain)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"entities": entities})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("API encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
