package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/mholland/senville-sync/internal/codec"
	"github.com/mholland/senville-sync/internal/engine"
	"github.com/mholland/senville-sync/internal/model"
)

type Server struct {
	eng *engine.Engine
}

type StatusResponse struct {
	Display   model.DisplayModel `json:"display"`
	Status    string             `json:"status"`
	LastError string             `json:"last_error,omitempty"`
	PollState string             `json:"poll_state"`
}

type PowerRequest struct {
	On bool `json:"on"`
}

type ModeRequest struct {
	Mode string `json:"mode"`
}

type TemperatureRequest struct {
	Value int `json:"value"`
	// Unit of Value: "C" or "F". Defaults to the operator's current unit.
	Unit string `json:"unit,omitempty"`
}

type FanRequest struct {
	Speed string `json:"speed"`
}

type SwingRequest struct {
	Axis string `json:"axis"`
	On   bool   `json:"on"`
}

type EditRequest struct {
	Field  string `json:"field"`
	Active bool   `json:"active"`
}

type UnitRequest struct {
	Unit string `json:"unit"`
}

type PollRequest struct {
	Enabled bool `json:"enabled"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func NewServer(eng *engine.Engine) *Server {
	return &Server{eng: eng}
}

// Handler builds the route table. Exposed separately from Start so tests can
// drive it through httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/power", s.handlePower)
	mux.HandleFunc("/api/mode", s.handleMode)
	mux.HandleFunc("/api/temperature", s.handleTemperature)
	mux.HandleFunc("/api/fan", s.handleFan)
	mux.HandleFunc("/api/swing", s.handleSwing)
	mux.HandleFunc("/api/unit", s.handleUnit)
	mux.HandleFunc("/api/edit", s.handleEdit)
	mux.HandleFunc("/api/refresh", s.handleRefresh)
	mux.HandleFunc("/api/poll", s.handlePoll)

	// CORS so a browser dashboard on another origin can drive the bridge
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		mux.ServeHTTP(w, r)
	})
}

func (s *Server) Start(port int) error {
	addr := fmt.Sprintf("0.0.0.0:%d", port)
	log.Info().Str("address", addr).Msg("Starting REST API server")
	return http.ListenAndServe(addr, s.Handler())
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	s.handleStatusBody(w)
}

func (s *Server) handlePower(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req PowerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	if err := s.eng.Issue(model.FieldPower, req.On); err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	log.Info().Bool("on", req.On).Msg("Power toggled via API")
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleMode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req ModeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	if err := s.eng.Issue(model.FieldMode, req.Mode); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid mode. Valid modes: auto, cool, dry, heat, fan")
		return
	}

	log.Info().Str("mode", req.Mode).Msg("Mode set via API")
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleTemperature(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req TemperatureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	unit := model.Unit(req.Unit)
	if unit == "" {
		unit = s.eng.Unit()
	}

	var celsius int
	switch unit {
	case model.UnitCelsius:
		celsius = req.Value
	case model.UnitFahrenheit:
		celsius = codec.FahrenheitToCelsius(req.Value)
	default:
		s.writeError(w, http.StatusBadRequest, "Invalid unit. Valid units: C, F")
		return
	}

	if celsius < model.MinTargetTempC || celsius > model.MaxTargetTempC {
		s.writeError(w, http.StatusBadRequest,
			fmt.Sprintf("Invalid temperature. Must be between %d°C and %d°C", model.MinTargetTempC, model.MaxTargetTempC))
		return
	}

	if err := s.eng.Issue(model.FieldTargetTemp, celsius); err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	log.Info().Int("celsius", celsius).Msg("Target temperature set via API")
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleFan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req FanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	if err := s.eng.Issue(model.FieldFanSpeed, req.Speed); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid fan speed. Valid speeds: low, med-low, medium, med-high, high, auto")
		return
	}

	log.Info().Str("speed", req.Speed).Msg("Fan speed set via API")
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleSwing(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req SwingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	var field model.Field
	switch req.Axis {
	case "vertical":
		field = model.FieldVSwing
	case "horizontal":
		field = model.FieldHSwing
	default:
		s.writeError(w, http.StatusBadRequest, "Invalid axis. Valid axes: vertical, horizontal")
		return
	}

	if err := s.eng.Issue(field, req.On); err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	log.Info().Str("axis", req.Axis).Bool("on", req.On).Msg("Swing set via API")
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleUnit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req UnitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	if err := s.eng.SetUnit(model.Unit(req.Unit)); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid unit. Valid units: C, F")
		return
	}

	log.Info().Str("unit", req.Unit).Msg("Temperature unit set via API")
	w.WriteHeader(http.StatusOK)
}

// handleEdit marks a field as operator-owned for the duration of an
// interaction, e.g. while a dashboard slider is being dragged, so polls do
// not snap the control back mid-drag. Deactivating releases the field
// without issuing a command.
func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req EditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	field := model.Field(req.Field)
	if !model.IsEditable(field) {
		s.writeError(w, http.StatusBadRequest, "Invalid field. Valid fields: power, mode, target_temp, fan_speed, vswing, hswing")
		return
	}

	if req.Active {
		s.eng.BeginEdit(field)
	} else {
		s.eng.EndEdit(field)
	}

	log.Info().Str("field", req.Field).Bool("active", req.Active).Msg("Edit guard toggled via API")
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	s.eng.Refresh()
	s.handleStatusBody(w)
}

// handleStatusBody writes the current status snapshot, shared by the refresh
// endpoint so a manual refresh returns what it just fetched.
func (s *Server) handleStatusBody(w http.ResponseWriter) {
	status, lastErr := s.eng.Status()
	resp := StatusResponse{
		Display:   s.eng.Snapshot(),
		Status:    status,
		PollState: s.eng.LoopState().String(),
	}
	if lastErr != nil {
		resp.LastError = lastErr.Error()
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePoll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req PollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	var err error
	if req.Enabled {
		err = s.eng.Resume()
	} else {
		err = s.eng.Pause()
	}
	if err != nil {
		s.writeError(w, http.StatusConflict, err.Error())
		return
	}

	log.Info().Bool("enabled", req.Enabled).Msg("Poll loop toggled via API")
	w.WriteHeader(http.StatusOK)
}

func (s *Server) writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{Error: message})
}
