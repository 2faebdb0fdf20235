package service

import (
	"sync"
	"time"

	"spa_engine/internal/logger"
	"spa_engine/internal/models"
)

// StateLogger writes a state summary to the event log at most once per
// configured interval.
type StateLogger struct {
	NopObserver

	log      *logger.Logger
	interval func() time.Duration
	now      func() time.Time

	mu   sync.Mutex
	last time.Time
}

func NewStateLogger(log *logger.Logger, cfg ConfigSource) *StateLogger {
	return &StateLogger{
		log:      log,
		interval: func() time.Duration { return cfg().StateLogInterval },
		now:      time.Now,
	}
}

func (s *StateLogger) StateChanged(st models.SpaState) {
	if s.log == nil {
		return
	}
	iv := s.interval()
	if iv <= 0 {
		return
	}
	now := s.now()
	s.mu.Lock()
	if !s.last.IsZero() && now.Sub(s.last) < iv {
		s.mu.Unlock()
		return
	}
	s.last = now
	s.mu.Unlock()

	pumpsOn := 0
	for _, p := range st.Pumps {
		if p.State == "on" {
			pumpsOn++
		}
	}
	kv := []any{
		"connection", st.Meta.ConnectionState,
		"heater", st.Heater.On,
		"lights", st.Lights.On,
		"pumps_on", pumpsOn,
		"errors", len(st.Errors),
	}
	if st.Temps.CurrentF != nil {
		kv = append(kv, "current_f", *st.Temps.CurrentF)
	}
	if st.Temps.SetpointF != nil {
		kv = append(kv, "setpoint_f", *st.Temps.SetpointF)
	}
	s.log.Infow("state_snapshot", kv...)
}
