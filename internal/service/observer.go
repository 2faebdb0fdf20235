package service

import (
	"time"

	"spa_engine/internal/models"
)

// Observer is notified by the SpaClient after the fact. Implementations
// must return quickly; they run on the lifecycle loop or a request
// goroutine.
type Observer interface {
	StateChanged(st models.SpaState)
	CommandHandled(cmdType string, err error)
	BackoffScheduled(d time.Duration)
}

// NopObserver can be embedded to implement only part of Observer.
type NopObserver struct{}

func (NopObserver) StateChanged(models.SpaState)   {}
func (NopObserver) CommandHandled(string, error)   {}
func (NopObserver) BackoffScheduled(time.Duration) {}
