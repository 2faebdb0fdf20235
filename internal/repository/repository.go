package repository

import (
	"context"
	"database/sql"
	"time"

	"spa_engine/internal/models"
)

// EventRepo stores connection and command events.
type EventRepo interface {
	Append(ctx context.Context, e models.SpaEvent) error
	List(ctx context.Context, from, to time.Time, typ string) ([]models.SpaEvent, error)
	Prune(ctx context.Context, maxRows int) (int64, error)
}

type Repository struct {
	EventRepo EventRepo
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		EventRepo: NewEventSQLite(db),
	}
}
