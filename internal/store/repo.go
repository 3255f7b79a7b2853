package store

import (
	"context"
	"fmt"
	"time"

	"github.com/ykvlv/lesson-bot/internal/domain"
)

// Repo is the lesson store contract used by the bot and the reminder sweep.
// Users are keyed by the string form of their Telegram id.
type Repo interface {
	Add(ctx context.Context, user string, day domain.Weekday, hhmm, subject string, r domain.Reminder) (domain.Lesson, error)
	Remove(ctx context.Context, user string, day domain.Weekday, hhmm, subject string) (bool, error)
	UpdateReminder(ctx context.Context, user string, day domain.Weekday, hhmm, subject string, r domain.Reminder) (bool, error)
	UpdateLastNotified(ctx context.Context, user string, day domain.Weekday, hhmm, subject string, at time.Time) (bool, error)
	ListForUser(ctx context.Context, user string) ([]domain.Lesson, error)
	ListAll(ctx context.Context) (map[string][]domain.Lesson, error)
	SeedFromTemplate(ctx context.Context, user string) (bool, error)
	Close() error
}

// Backend persists whole per-user lesson lists. SaveUser replaces the user's
// list atomically; LoadUser returns nil for an unknown user.
type Backend interface {
	LoadAll(ctx context.Context) (map[string][]domain.Lesson, error)
	LoadUser(ctx context.Context, user string) ([]domain.Lesson, error)
	SaveUser(ctx context.Context, user string, lessons []domain.Lesson) error
	Close() error
}

// Drivers accepted by OpenBackend.
const (
	DriverSQLite = "sqlite"
	DriverJSON   = "json"
)

// OpenBackend opens the backend selected by driver.
func OpenBackend(ctx context.Context, driver, dbPath, jsonPath string) (Backend, error) {
	switch driver {
	case DriverSQLite:
		return OpenSQLite(ctx, dbPath)
	case DriverJSON:
		return OpenJSON(jsonPath)
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}
