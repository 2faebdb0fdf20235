package handlers

import (
	"context"
	"sync"
	"time"

	"spa_engine/internal/models"
	"spa_engine/internal/service"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockSpa struct {
	mu         sync.Mutex
	state      models.SpaState
	connected  bool
	result     models.CommandResult
	lastCmd    models.Command
	cmdCalls   int
	stateCalls int
	noteCalls  int
	snapCalls  int
}

func (m *mockSpa) GetState() models.SpaState {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stateCalls++
	return m.state.Clone()
}

func (m *mockSpa) Snapshot() models.SpaState {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapCalls++
	return m.state.Clone()
}

func (m *mockSpa) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *mockSpa) NoteStateRequest() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.noteCalls++
}

func (m *mockSpa) Command(ctx context.Context, cmd models.Command) models.CommandResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cmdCalls++
	m.lastCmd = cmd
	return m.result
}

func (m *mockSpa) counts() (state, note, snap, cmd int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stateCalls, m.noteCalls, m.snapCalls, m.cmdCalls
}

type mockEventLog struct {
	resp     []models.SpaEvent
	err      error
	lastFrom time.Time
	lastTo   time.Time
	lastType string

	tail     []string
	tailErr  error
	lastTail int
}

func (m *mockEventLog) List(ctx context.Context, f service.LogFilter) ([]models.SpaEvent, error) {
	m.lastFrom = f.From
	m.lastTo = f.To
	m.lastType = f.Type
	return m.resp, m.err
}

func (m *mockEventLog) Tail(n int) ([]string, error) {
	m.lastTail = n
	return m.tail, m.tailErr
}

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service, opts ...Option) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(s, nil, opts...)
	return h.InitRoutes()
}

func connectedState() models.SpaState {
	cur, sp := 100.4, 102.0
	st := models.InitialSpaState(time.Date(2025, 7, 1, 8, 0, 0, 0, time.UTC), 104)
	st.Temps = models.Temps{CurrentF: &cur, SetpointF: &sp, Units: "C"}
	st.Pumps = []models.Pump{{ID: "P1", Label: "Pump 1", State: "off", Speed: "OFF"}}
	st.Meta.ConnectionState = models.ConnConnected
	return st
}
