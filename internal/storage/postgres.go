package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/storelens/collector/internal/models"
)

// InitSchema creates the collector tables if they do not exist.
func InitSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS sessions (
			session_id  TEXT NOT NULL,
			page_id     TEXT NOT NULL,
			shop_domain TEXT NOT NULL,
			user_id     TEXT NOT NULL DEFAULT '',
			page_type   TEXT NOT NULL DEFAULT '',
			page_title  TEXT NOT NULL DEFAULT '',
			date        TEXT NOT NULL,
			start_time  BIGINT NOT NULL,
			end_time    BIGINT NOT NULL,
			country     TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (session_id, page_id)
		);
		CREATE INDEX IF NOT EXISTS idx_sessions_shop_date ON sessions (shop_domain, date);

		CREATE TABLE IF NOT EXISTS events (
			id           UUID PRIMARY KEY,
			session_id   TEXT NOT NULL,
			element_id   TEXT NOT NULL,
			shop_domain  TEXT NOT NULL,
			type         TEXT NOT NULL DEFAULT 'click',
			count        BIGINT NOT NULL DEFAULT 0,
			element_type TEXT NOT NULL DEFAULT '',
			element_name TEXT NOT NULL DEFAULT '',
			time         BIGINT NOT NULL,
			UNIQUE (session_id, element_id)
		);

		CREATE TABLE IF NOT EXISTS session_events (
			session_id TEXT NOT NULL,
			page_id    TEXT NOT NULL,
			event_id   UUID NOT NULL,
			seq        BIGSERIAL,
			PRIMARY KEY (session_id, page_id, event_id)
		);
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// PostgresSessionStore implements SessionStore using PostgreSQL.
type PostgresSessionStore struct {
	pool *pgxpool.Pool
}

func NewPostgresSessionStore(pool *pgxpool.Pool) *PostgresSessionStore {
	return &PostgresSessionStore{pool: pool}
}

// UpsertSession is a single atomic statement: inserts win the race, every
// other concurrent hit folds into the conflict branch. end_time never moves
// backwards and country is only set at creation.
func (s *PostgresSessionStore) UpsertSession(ctx context.Context, up SessionUpsert) (*models.Session, error) {
	ms := up.Now.UnixMilli()
	date := up.Now.Format("2006-01-02")

	var sess models.Session
	err := s.pool.QueryRow(ctx, `
		INSERT INTO sessions (session_id, page_id, shop_domain, user_id, page_type, page_title, date, start_time, end_time, country)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8, $9)
		ON CONFLICT (session_id, page_id) DO UPDATE SET
			end_time   = GREATEST(sessions.end_time, EXCLUDED.end_time),
			page_type  = EXCLUDED.page_type,
			page_title = EXCLUDED.page_title
		RETURNING session_id, page_id, shop_domain, user_id, page_type, page_title, date, start_time, end_time, country
	`, up.SessionID, up.PageID, up.ShopDomain, up.UserID, up.PageType, up.PageTitle, date, ms, up.Country).Scan(
		&sess.SessionID, &sess.PageID, &sess.ShopDomain, &sess.UserID,
		&sess.PageType, &sess.PageTitle, &sess.Date, &sess.StartTime, &sess.EndTime, &sess.Country,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert session: %w: %w", ErrWrite, err)
	}

	return &sess, nil
}

func (s *PostgresSessionStore) LinkEvent(ctx context.Context, sessionID, pageID, eventID string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO session_events (session_id, page_id, event_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (session_id, page_id, event_id) DO NOTHING
	`, sessionID, pageID, eventID)
	if err != nil {
		return fmt.Errorf("failed to link event: %w: %w", ErrWrite, err)
	}
	return nil
}

func (s *PostgresSessionStore) SessionsInRange(ctx context.Context, shopDomain, startDate, endDate string) ([]*models.Session, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT s.session_id, s.page_id, s.shop_domain, s.user_id, s.page_type, s.page_title,
		       s.date, s.start_time, s.end_time, s.country,
		       COALESCE(se.event_ids, '{}')
		FROM sessions s
		LEFT JOIN (
			SELECT session_id, page_id, array_agg(event_id::text ORDER BY seq) AS event_ids
			FROM session_events
			GROUP BY session_id, page_id
		) se ON se.session_id = s.session_id AND se.page_id = s.page_id
		WHERE s.shop_domain = $1 AND s.date >= $2 AND s.date <= $3
	`, shopDomain, startDate, endDate)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w: %w", ErrQuery, err)
	}
	defer rows.Close()

	var sessions []*models.Session
	for rows.Next() {
		var sess models.Session
		if err := rows.Scan(
			&sess.SessionID, &sess.PageID, &sess.ShopDomain, &sess.UserID,
			&sess.PageType, &sess.PageTitle, &sess.Date, &sess.StartTime, &sess.EndTime,
			&sess.Country, &sess.Events,
		); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w: %w", ErrQuery, err)
		}
		sessions = append(sessions, &sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read sessions: %w: %w", ErrQuery, err)
	}

	return sessions, nil
}

// PostgresEventStore implements EventStore using PostgreSQL.
type PostgresEventStore struct {
	pool *pgxpool.Pool
}

func NewPostgresEventStore(pool *pgxpool.Pool) *PostgresEventStore {
	return &PostgresEventStore{pool: pool}
}

// UpsertEvent creates or increments in one statement. The xmax = 0 check
// tells an insert apart from a conflict update on the returned row.
func (s *PostgresEventStore) UpsertEvent(ctx context.Context, up EventUpsert) (*models.Event, bool, error) {
	var ev models.Event
	var created bool
	err := s.pool.QueryRow(ctx, `
		INSERT INTO events (id, session_id, element_id, shop_domain, type, count, element_type, element_name, time)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (session_id, element_id) DO UPDATE SET
			count        = events.count + EXCLUDED.count,
			element_name = EXCLUDED.element_name
		RETURNING id, session_id, element_id, shop_domain, type, count, element_type, element_name, time, (xmax = 0)
	`, uuid.NewString(), up.SessionID, up.ElementID, up.ShopDomain, up.Type, up.Count,
		up.ElementType, up.ElementName, up.Now.UnixMilli()).Scan(
		&ev.ID, &ev.SessionID, &ev.ElementID, &ev.ShopDomain, &ev.Type,
		&ev.Count, &ev.ElementType, &ev.ElementName, &ev.Time, &created,
	)
	if err != nil {
		return nil, false, fmt.Errorf("failed to upsert event: %w: %w", ErrWrite, err)
	}

	return &ev, created, nil
}

func (s *PostgresEventStore) EventsByIDs(ctx context.Context, ids []string) ([]*models.Event, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, session_id, element_id, shop_domain, type, count, element_type, element_name, time
		FROM events WHERE id = ANY($1::uuid[])
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w: %w", ErrQuery, err)
	}
	defer rows.Close()

	var events []*models.Event
	for rows.Next() {
		var ev models.Event
		if err := rows.Scan(
			&ev.ID, &ev.SessionID, &ev.ElementID, &ev.ShopDomain, &ev.Type,
			&ev.Count, &ev.ElementType, &ev.ElementName, &ev.Time,
		); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w: %w", ErrQuery, err)
		}
		events = append(events, &ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read events: %w: %w", ErrQuery, err)
	}

	return events, nil
}
