package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mholland/senville-sync/internal/engine"
	"github.com/mholland/senville-sync/internal/model"
)

type fakeGateway struct {
	mu     sync.Mutex
	state  model.DeviceState
	pushes []model.DeviceState
}

func (g *fakeGateway) Fetch(ctx context.Context) (model.DeviceState, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state, nil
}

func (g *fakeGateway) Push(ctx context.Context, st model.DeviceState) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pushes = append(g.pushes, st)
	g.state = st
	return nil
}

func (g *fakeGateway) lastPush() (model.DeviceState, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.pushes) == 0 {
		return model.DeviceState{}, false
	}
	return g.pushes[len(g.pushes)-1], true
}

func setupTestServer(t *testing.T) (*Server, *fakeGateway, *engine.Engine) {
	t.Helper()
	gw := &fakeGateway{state: model.DeviceState{
		Running:     true,
		Mode:        2,
		TargetTempC: 24,
		IndoorTempC: 22,
		FanSpeed:    60,
	}}
	eng := engine.New(gw, engine.Options{PollInterval: time.Hour, SettleDelay: 10 * time.Millisecond})
	t.Cleanup(eng.Stop)
	eng.Refresh()

	return NewServer(eng), gw, eng
}

func doRequest(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestGetStatus(t *testing.T) {
	s, _, _ := setupTestServer(t)

	w := doRequest(t, s, http.MethodGet, "/api/status", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp StatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ON", resp.Display.Power)
	assert.Equal(t, "Cool", resp.Display.Mode)
	assert.Equal(t, "75°F", resp.Display.TargetTemp)
	assert.Equal(t, "Status updated", resp.Status)
	assert.Empty(t, resp.LastError)
	assert.Equal(t, "stopped", resp.PollState)
}

func TestSetPower(t *testing.T) {
	s, gw, _ := setupTestServer(t)

	w := doRequest(t, s, http.MethodPut, "/api/power", PowerRequest{On: false})
	assert.Equal(t, http.StatusOK, w.Code)

	require.Eventually(t, func() bool {
		st, ok := gw.lastPush()
		return ok && !st.Running
	}, time.Second, 5*time.Millisecond)
}

func TestSetMode(t *testing.T) {
	s, gw, _ := setupTestServer(t)

	tests := []struct {
		name           string
		mode           string
		expectedStatus int
	}{
		{"valid heat mode", "heat", http.StatusOK},
		{"valid cool mode", "cool", http.StatusOK},
		{"invalid mode", "turbo", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(t, s, http.MethodPut, "/api/mode", ModeRequest{Mode: tt.mode})
			assert.Equal(t, tt.expectedStatus, w.Code)
		})
	}

	require.Eventually(t, func() bool {
		st, ok := gw.lastPush()
		return ok && st.Mode == 2
	}, time.Second, 5*time.Millisecond)
}

func TestSetTemperature(t *testing.T) {
	tests := []struct {
		name            string
		req             TemperatureRequest
		expectedStatus  int
		expectedCelsius int
	}{
		{"celsius value", TemperatureRequest{Value: 22, Unit: "C"}, http.StatusOK, 22},
		{"fahrenheit value converted", TemperatureRequest{Value: 75, Unit: "F"}, http.StatusOK, 24},
		{"defaults to operator unit", TemperatureRequest{Value: 72}, http.StatusOK, 22},
		{"too low", TemperatureRequest{Value: 10, Unit: "C"}, http.StatusBadRequest, 0},
		{"too high", TemperatureRequest{Value: 99, Unit: "F"}, http.StatusBadRequest, 0},
		{"invalid unit", TemperatureRequest{Value: 22, Unit: "K"}, http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, gw, _ := setupTestServer(t)

			w := doRequest(t, s, http.MethodPut, "/api/temperature", tt.req)
			assert.Equal(t, tt.expectedStatus, w.Code)

			if tt.expectedStatus == http.StatusOK {
				require.Eventually(t, func() bool {
					st, ok := gw.lastPush()
					return ok && st.TargetTempC == tt.expectedCelsius
				}, time.Second, 5*time.Millisecond)
			}
		})
	}
}

func TestSetFan(t *testing.T) {
	s, gw, _ := setupTestServer(t)

	w := doRequest(t, s, http.MethodPut, "/api/fan", FanRequest{Speed: "high"})
	assert.Equal(t, http.StatusOK, w.Code)

	require.Eventually(t, func() bool {
		st, ok := gw.lastPush()
		return ok && st.FanSpeed == 100
	}, time.Second, 5*time.Millisecond)

	w = doRequest(t, s, http.MethodPut, "/api/fan", FanRequest{Speed: "warp"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSetSwing(t *testing.T) {
	s, gw, _ := setupTestServer(t)

	w := doRequest(t, s, http.MethodPut, "/api/swing", SwingRequest{Axis: "vertical", On: true})
	assert.Equal(t, http.StatusOK, w.Code)

	require.Eventually(t, func() bool {
		st, ok := gw.lastPush()
		return ok && st.VerticalSwing
	}, time.Second, 5*time.Millisecond)

	w = doRequest(t, s, http.MethodPut, "/api/swing", SwingRequest{Axis: "diagonal", On: true})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSetUnit(t *testing.T) {
	s, _, eng := setupTestServer(t)

	w := doRequest(t, s, http.MethodPut, "/api/unit", UnitRequest{Unit: "C"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, model.UnitCelsius, eng.Unit())
	assert.Equal(t, "24°C", eng.Snapshot().TargetTemp)

	w = doRequest(t, s, http.MethodPut, "/api/unit", UnitRequest{Unit: "K"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEditGuard(t *testing.T) {
	s, gw, eng := setupTestServer(t)

	w := doRequest(t, s, http.MethodPut, "/api/edit", EditRequest{Field: "target_temp", Active: true})
	assert.Equal(t, http.StatusOK, w.Code)

	gw.mu.Lock()
	gw.state.TargetTempC = 28
	gw.mu.Unlock()
	eng.Refresh()
	assert.Equal(t, "75°F", eng.Snapshot().TargetTemp, "held field must not be clobbered by a poll")

	w = doRequest(t, s, http.MethodPut, "/api/edit", EditRequest{Field: "target_temp", Active: false})
	assert.Equal(t, http.StatusOK, w.Code)

	eng.Refresh()
	assert.Equal(t, "82°F", eng.Snapshot().TargetTemp)

	w = doRequest(t, s, http.MethodPut, "/api/edit", EditRequest{Field: "indoor_temp", Active: true})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRefresh(t *testing.T) {
	s, gw, _ := setupTestServer(t)

	gw.mu.Lock()
	gw.state.TargetTempC = 27
	gw.mu.Unlock()

	w := doRequest(t, s, http.MethodPost, "/api/refresh", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp StatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "81°F", resp.Display.TargetTemp)
}

func TestPollToggle(t *testing.T) {
	s, _, eng := setupTestServer(t)
	require.NoError(t, eng.Start())

	w := doRequest(t, s, http.MethodPut, "/api/poll", PollRequest{Enabled: false})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, engine.Paused, eng.LoopState())

	// Pausing twice is a state error, not a silent no-op.
	w = doRequest(t, s, http.MethodPut, "/api/poll", PollRequest{Enabled: false})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doRequest(t, s, http.MethodPut, "/api/poll", PollRequest{Enabled: true})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, engine.Running, eng.LoopState())
}

func TestInvalidJSON(t *testing.T) {
	s, _, _ := setupTestServer(t)

	for _, path := range []string{"/api/power", "/api/mode", "/api/temperature", "/api/fan", "/api/swing", "/api/unit", "/api/edit", "/api/poll"} {
		t.Run(path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPut, path, bytes.NewBufferString("not json"))
			w := httptest.NewRecorder()
			s.Handler().ServeHTTP(w, req)

			assert.Equal(t, http.StatusBadRequest, w.Code)

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, "Invalid JSON payload", resp.Error)
		})
	}
}

func TestMethodNotAllowed(t *testing.T) {
	s, _, _ := setupTestServer(t)

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/status"},
		{http.MethodGet, "/api/power"},
		{http.MethodPost, "/api/mode"},
		{http.MethodGet, "/api/refresh"},
		{http.MethodGet, "/api/poll"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := doRequest(t, s, tt.method, tt.path, nil)
			assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
		})
	}
}
