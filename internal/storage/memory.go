package storage

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/storelens/collector/internal/models"
)

// MemoryStore is an in-memory implementation of SessionStore and EventStore
// for development and tests. A single mutex serializes all upserts, which
// gives the same lost-update-free behavior as the SQL statements.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*models.Session // key: sessionID + "\x00" + pageID
	links    map[string][]string        // same key; ordered, deduplicated event IDs
	events   map[string]*models.Event   // key: sessionID + "\x00" + elementID
	byID     map[string]*models.Event
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*models.Session),
		links:    make(map[string][]string),
		events:   make(map[string]*models.Event),
		byID:     make(map[string]*models.Event),
	}
}

func sessionKey(sessionID, pageID string) string { return sessionID + "\x00" + pageID }
func eventKey(sessionID, elementID string) string { return sessionID + "\x00" + elementID }

func (m *MemoryStore) UpsertSession(_ context.Context, up SessionUpsert) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := sessionKey(up.SessionID, up.PageID)
	ms := up.Now.UnixMilli()

	sess, ok := m.sessions[key]
	if !ok {
		sess = &models.Session{
			SessionID:  up.SessionID,
			PageID:     up.PageID,
			ShopDomain: up.ShopDomain,
			UserID:     up.UserID,
			PageType:   up.PageType,
			PageTitle:  up.PageTitle,
			Date:       up.Now.Format("2006-01-02"),
			StartTime:  ms,
			EndTime:    ms,
			Country:    up.Country,
		}
		m.sessions[key] = sess
	} else {
		if ms > sess.EndTime {
			sess.EndTime = ms
		}
		sess.PageType = up.PageType
		sess.PageTitle = up.PageTitle
	}

	return m.copySession(sess), nil
}

// LinkEvent records the reference independently of the session row, so a
// link racing ahead of the session heartbeat is not lost.
func (m *MemoryStore) LinkEvent(_ context.Context, sessionID, pageID, eventID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := sessionKey(sessionID, pageID)
	for _, id := range m.links[key] {
		if id == eventID {
			return nil
		}
	}
	m.links[key] = append(m.links[key], eventID)
	return nil
}

func (m *MemoryStore) SessionsInRange(_ context.Context, shopDomain, startDate, endDate string) ([]*models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*models.Session
	for _, sess := range m.sessions {
		if sess.ShopDomain != shopDomain {
			continue
		}
		if sess.Date < startDate || sess.Date > endDate {
			continue
		}
		out = append(out, m.copySession(sess))
	}
	return out, nil
}

func (m *MemoryStore) UpsertEvent(_ context.Context, up EventUpsert) (*models.Event, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := eventKey(up.SessionID, up.ElementID)

	ev, ok := m.events[key]
	if !ok {
		ev = &models.Event{
			ID:          uuid.NewString(),
			SessionID:   up.SessionID,
			ElementID:   up.ElementID,
			ShopDomain:  up.ShopDomain,
			Type:        up.Type,
			Count:       up.Count,
			ElementType: up.ElementType,
			ElementName: up.ElementName,
			Time:        up.Now.UnixMilli(),
		}
		m.events[key] = ev
		m.byID[ev.ID] = ev
		cp := *ev
		return &cp, true, nil
	}

	ev.Count += up.Count
	ev.ElementName = up.ElementName
	cp := *ev
	return &cp, false, nil
}

func (m *MemoryStore) EventsByIDs(_ context.Context, ids []string) ([]*models.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*models.Event
	for _, id := range ids {
		if ev, ok := m.byID[id]; ok {
			cp := *ev
			out = append(out, &cp)
		}
	}
	return out, nil
}

// copySession snapshots the session with its linked event IDs. Callers must
// hold at least a read lock.
func (m *MemoryStore) copySession(s *models.Session) *models.Session {
	cp := *s
	cp.Events = append([]string(nil), m.links[sessionKey(s.SessionID, s.PageID)]...)
	return &cp
}
