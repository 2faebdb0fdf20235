package service

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"spa_engine/internal/logger"
	"spa_engine/internal/models"
	"spa_engine/internal/repository"

	"github.com/google/uuid"
)

// pruneEvery is how many appends pass between row-count trims.
const pruneEvery = 50

// LogFilter supports history filtering by time range and type.
type LogFilter struct {
	From time.Time
	To   time.Time
	Type string
}

// LogTailer returns the last lines of the event log file.
type LogTailer interface {
	Tail(n int) ([]string, error)
}

// EventLogService writes events to the database and the event log file
// and answers history queries.
type EventLogService struct {
	eventRepo repository.EventRepo
	fileLog   *logger.Logger
	tailer    LogTailer
	maxRows   int
	appended  atomic.Int64
}

func NewEventLogService(eventRepo repository.EventRepo, fileLog *logger.Logger, tailer LogTailer, maxRows int) *EventLogService {
	return &EventLogService{eventRepo: eventRepo, fileLog: fileLog, tailer: tailer, maxRows: maxRows}
}

var (
	errInvalidTimeRange = errors.New("invalid time range: From must be <= To")
	errNoLogFile        = errors.New("event log file not configured")
)

// normalizeToUTC returns t in UTC, preserving zero time values.
func normalizeToUTC(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}

// normalizeEventType trims spaces and uppercases the event type filter.
func normalizeEventType(s string) string {
	return strings.TrimSpace(strings.ToUpper(s))
}

// normalizeAndValidateFilter prepares query parameters and validates the time range.
func normalizeAndValidateFilter(f LogFilter) (time.Time, time.Time, string, error) {
	from := normalizeToUTC(f.From)
	to := normalizeToUTC(f.To)

	if !from.IsZero() && !to.IsZero() && from.After(to) {
		return time.Time{}, time.Time{}, "", errInvalidTimeRange
	}

	eventType := normalizeEventType(f.Type)
	return from, to, eventType, nil
}

// Record stores e, filling in its id and time when missing.
func (s *EventLogService) Record(ctx context.Context, e models.SpaEvent) error {
	if e.EventID == "" {
		e.EventID = uuid.NewString()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	e.Type = normalizeEventType(e.Type)

	if s.fileLog != nil {
		kv := []any{"event_id", e.EventID, "type", e.Type}
		if e.Metadata != nil {
			kv = append(kv, "metadata", e.Metadata)
		}
		if e.Type == models.EventError || e.Type == models.EventCommandFailed {
			s.fileLog.Warnw(e.Description, kv...)
		} else {
			s.fileLog.Infow(e.Description, kv...)
		}
	}

	if s.eventRepo == nil {
		return nil
	}
	if err := s.eventRepo.Append(ctx, e); err != nil {
		return err
	}
	if s.maxRows > 0 && s.appended.Add(1)%pruneEvery == 0 {
		if _, err := s.eventRepo.Prune(ctx, s.maxRows); err != nil {
			return err
		}
	}
	return nil
}

func (s *EventLogService) List(ctx context.Context, f LogFilter) ([]models.SpaEvent, error) {
	from, to, typ, err := normalizeAndValidateFilter(f)
	if err != nil {
		return nil, err
	}
	return s.eventRepo.List(ctx, from, to, typ)
}

// Tail returns up to n of the newest lines of the event log file.
func (s *EventLogService) Tail(n int) ([]string, error) {
	if s.tailer == nil {
		return nil, errNoLogFile
	}
	return s.tailer.Tail(n)
}
