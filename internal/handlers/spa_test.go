package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"spa_engine/internal/models"
	"spa_engine/internal/service"
)

func TestHealth_ReportsConnectionWithoutActivity(t *testing.T) {
	spa := &mockSpa{state: connectedState()}
	r := newTestRouter(&service.Service{Spa: spa}, WithVersion("1.2.3"))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	var out HealthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Status != "ok" || out.Version != "1.2.3" || out.Connection.ConnectionState != models.ConnConnected {
		t.Fatalf("unexpected health: %+v", out)
	}
	if state, _, snap, _ := spa.counts(); state != 0 || snap != 1 {
		t.Fatalf("health must read a snapshot without touching activity (GetState=%d Snapshot=%d)", state, snap)
	}
}

func TestGetState(t *testing.T) {
	spa := &mockSpa{state: connectedState()}
	r := newTestRouter(&service.Service{Spa: spa})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/spa/state", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	var st models.SpaState
	if err := json.Unmarshal(w.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.Temps.CurrentF == nil || *st.Temps.CurrentF != 100.4 || len(st.Pumps) != 1 {
		t.Fatalf("unexpected state: %+v", st)
	}
	if state, _, _, _ := spa.counts(); state != 1 {
		t.Fatalf("GetState calls = %d; want 1", state)
	}
}

func TestPostCommand(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		result   models.CommandResult
		wantCode int
		wantBody string
		wantCall bool
	}{
		{
			name:     "ok",
			body:     `{"type":"temp.set","payload":{"setpoint_f":102}}`,
			result:   models.CommandResult{OK: true},
			wantCode: http.StatusOK,
			wantBody: `{"ok":true}`,
			wantCall: true,
		},
		{
			name:     "domain failure is still 200",
			body:     `{"type":"nonexistent"}`,
			result:   models.CommandResult{OK: false, Error: "Unknown command"},
			wantCode: http.StatusOK,
			wantBody: `{"ok":false,"error":"Unknown command"}`,
			wantCall: true,
		},
		{
			name:     "malformed json",
			body:     `{"type":`,
			wantCode: http.StatusBadRequest,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			spa := &mockSpa{result: tc.result}
			r := newTestRouter(&service.Service{Spa: spa})

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/spa/command", bytes.NewBufferString(tc.body))
			req.Header.Set("Content-Type", "application/json")
			r.ServeHTTP(w, req)

			if w.Code != tc.wantCode {
				t.Fatalf("status=%d; want %d", w.Code, tc.wantCode)
			}
			if tc.wantBody != "" && w.Body.String() != tc.wantBody {
				t.Fatalf("body=%s; want %s", w.Body.String(), tc.wantBody)
			}
			_, _, _, calls := spa.counts()
			if (calls == 1) != tc.wantCall {
				t.Fatalf("Command calls = %d; wantCall=%v", calls, tc.wantCall)
			}
		})
	}
}

func TestPostCommand_PassesEnvelope(t *testing.T) {
	spa := &mockSpa{result: models.CommandResult{OK: true}}
	r := newTestRouter(&service.Service{Spa: spa})

	req := httptest.NewRequest(http.MethodPost, "/spa/command", bytes.NewBufferString(`{"type":"pump.cycle","payload":{"id":"P2"}}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(httptest.NewRecorder(), req)

	if spa.lastCmd.Type != models.CmdPumpCycle || string(spa.lastCmd.Payload) != `{"id":"P2"}` {
		t.Fatalf("unexpected command: %+v (%s)", spa.lastCmd, spa.lastCmd.Payload)
	}
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name       string
		origins    string
		origin     string
		method     string
		wantCode   int
		wantHeader string
	}{
		{name: "wildcard", origins: "*", origin: "http://ui.local", method: http.MethodGet, wantCode: http.StatusOK, wantHeader: "*"},
		{name: "listed origin", origins: "http://a.local, http://ui.local", origin: "http://ui.local", method: http.MethodGet, wantCode: http.StatusOK, wantHeader: "http://ui.local"},
		{name: "unlisted origin", origins: "http://a.local", origin: "http://evil.local", method: http.MethodGet, wantCode: http.StatusOK, wantHeader: ""},
		{name: "preflight", origins: "*", origin: "http://ui.local", method: http.MethodOptions, wantCode: http.StatusNoContent, wantHeader: "*"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			spa := &mockSpa{state: connectedState()}
			r := newTestRouter(&service.Service{Spa: spa}, WithCORSOrigins(tc.origins))

			w := httptest.NewRecorder()
			req := httptest.NewRequest(tc.method, "/spa/state", nil)
			req.Header.Set("Origin", tc.origin)
			r.ServeHTTP(w, req)

			if w.Code != tc.wantCode {
				t.Fatalf("status=%d; want %d", w.Code, tc.wantCode)
			}
			if got := w.Header().Get("Access-Control-Allow-Origin"); got != tc.wantHeader {
				t.Fatalf("allow-origin=%q; want %q", got, tc.wantHeader)
			}
		})
	}
}

func TestMetricsRoute(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("spa_up 1\n"))
	})

	r := newTestRouter(&service.Service{}, WithMetrics(metrics))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK || w.Body.String() != "spa_up 1\n" {
		t.Fatalf("metrics status=%d body=%q", w.Code, w.Body.String())
	}

	r = newTestRouter(&service.Service{})
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("metrics without collector status=%d; want 404", w.Code)
	}
}
