package storage

import (
	"context"
	"errors"
	"time"

	"github.com/storelens/collector/internal/models"
)

// Sentinel errors distinguishing write-path from read-path failures.
var (
	ErrWrite = errors.New("store write failed")
	ErrQuery = errors.New("store query failed")
)

// SessionUpsert carries one heartbeat hit into the session store. Now is the
// server receive time; the store derives date and timestamps from it so the
// clock can be injected in tests.
type SessionUpsert struct {
	SessionID  string
	PageID     string
	ShopDomain string
	UserID     string
	PageType   string
	PageTitle  string
	Country    string
	Now        time.Time
}

// EventUpsert carries one interaction hit into the event store.
type EventUpsert struct {
	SessionID   string
	ElementID   string
	ShopDomain  string
	Type        string
	ElementType string
	ElementName string
	Count       int64
	Now         time.Time
}

// SessionStore defines operations for session storage.
type SessionStore interface {
	// UpsertSession creates the session on first contact and extends it on
	// every later hit. Creation sets all fields; updates only advance
	// end_time (never backwards) and refresh page_type and page_title.
	UpsertSession(ctx context.Context, up SessionUpsert) (*models.Session, error)

	// LinkEvent appends an event reference to the session's ordered event
	// list. Linking the same event twice is a no-op.
	LinkEvent(ctx context.Context, sessionID, pageID, eventID string) error

	// SessionsInRange returns all sessions for the shop whose date falls in
	// [startDate, endDate] (inclusive, YYYY-MM-DD), with event references
	// populated in link order.
	SessionsInRange(ctx context.Context, shopDomain, startDate, endDate string) ([]*models.Session, error)
}

// EventStore defines operations for interaction event storage.
type EventStore interface {
	// UpsertEvent creates the event on first sight of (sessionID,
	// elementID) and increments its count on every later hit. The second
	// return value reports whether a new record was created, so the caller
	// knows to link it into the owning session.
	UpsertEvent(ctx context.Context, up EventUpsert) (*models.Event, bool, error)

	// EventsByIDs loads event records by ID. Unknown IDs are skipped.
	EventsByIDs(ctx context.Context, ids []string) ([]*models.Event, error)
}
