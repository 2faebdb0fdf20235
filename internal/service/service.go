package service

import (
	"context"

	"spa_engine/internal/models"
)

// Spa is the surface the transport layers use to read state and issue
// commands.
type Spa interface {
	GetState() models.SpaState
	Snapshot() models.SpaState
	IsConnected() bool
	NoteStateRequest()
	Command(ctx context.Context, cmd models.Command) models.CommandResult
}

// EventLog exposes the event history and the tail of the event log file.
type EventLog interface {
	List(ctx context.Context, f LogFilter) ([]models.SpaEvent, error)
	Tail(n int) ([]string, error)
}

// Service aggregates what the handlers need.
type Service struct {
	Spa
	EventLog
}

func NewService(spa Spa, eventLog EventLog) *Service {
	return &Service{
		Spa:      spa,
		EventLog: eventLog,
	}
}
