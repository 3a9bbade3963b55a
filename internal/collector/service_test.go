package collector

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/storelens/collector/internal/models"
	"github.com/storelens/collector/internal/storage"
)

func newTestService(t *testing.T, now time.Time) (*Service, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemoryStore()
	svc := NewService(store, store, zap.NewNop(), Options{
		Now: func() time.Time { return now },
	})
	return svc, store
}

func sessionHit(sessionID, pageID string) *models.BeaconHit {
	return &models.BeaconHit{
		ShopDomain: "shop.example",
		SessionID:  sessionID,
		UserID:     "u1",
		PageID:     pageID,
		PageType:   "product",
		PageTitle:  "Shoes",
	}
}

func TestRecordSessionHit(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	svc, store := newTestService(t, now)

	err := svc.Record(context.Background(), sessionHit("s1", "p1"))
	require.NoError(t, err)

	sessions, err := store.SessionsInRange(context.Background(), "shop.example", "2024-03-10", "2024-03-10")
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "s1", sessions[0].SessionID)
	assert.Equal(t, now.UnixMilli(), sessions[0].StartTime)
	assert.Empty(t, sessions[0].Events)
}

func TestRecordInteractionCreatesAndLinksEvent(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	svc, store := newTestService(t, now)
	ctx := context.Background()

	require.NoError(t, svc.Record(ctx, sessionHit("s1", "p1")))

	hit := sessionHit("s1", "p1")
	hit.ElementID = "btn-1"
	hit.ElementType = "Button"
	hit.ElementName = "Buy"
	hit.Count = "2"
	require.NoError(t, svc.Record(ctx, hit))

	sessions, err := store.SessionsInRange(ctx, "shop.example", "2024-03-10", "2024-03-10")
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	require.Len(t, sessions[0].Events, 1)

	events, err := store.EventsByIDs(ctx, sessions[0].Events)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "btn-1", events[0].ElementID)
	assert.Equal(t, "click", events[0].Type)
	assert.Equal(t, int64(2), events[0].Count)
}

func TestRecordInteractionIncrementsWithoutRelinking(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	svc, store := newTestService(t, now)
	ctx := context.Background()

	require.NoError(t, svc.Record(ctx, sessionHit("s1", "p1")))

	hit := sessionHit("s1", "p1")
	hit.ElementID = "btn-1"
	hit.Count = "1"
	require.NoError(t, svc.Record(ctx, hit))
	require.NoError(t, svc.Record(ctx, hit))

	sessions, err := store.SessionsInRange(ctx, "shop.example", "2024-03-10", "2024-03-10")
	require.NoError(t, err)
	require.Len(t, sessions[0].Events, 1)

	events, err := store.EventsByIDs(ctx, sessions[0].Events)
	require.NoError(t, err)
	assert.Equal(t, int64(2), events[0].Count)
}

func TestRecordUnparseableCountAddsNothing(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	svc, store := newTestService(t, now)
	ctx := context.Background()

	require.NoError(t, svc.Record(ctx, sessionHit("s1", "p1")))

	hit := sessionHit("s1", "p1")
	hit.ElementID = "btn-1"
	hit.Count = "banana"
	require.NoError(t, svc.Record(ctx, hit))

	hit2 := sessionHit("s1", "p1")
	hit2.ElementID = "btn-1"
	hit2.Count = "5"
	require.NoError(t, svc.Record(ctx, hit2))

	events, err := store.EventsByIDs(ctx, allEventIDs(t, store))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, int64(5), events[0].Count)
}

func TestRecordRejectsIncompleteHit(t *testing.T) {
	svc, _ := newTestService(t, time.Now())

	hit := sessionHit("s1", "")
	err := svc.Record(context.Background(), hit)
	assert.ErrorIs(t, err, ErrIncompleteHit)
}

func TestHitFromQueryClassification(t *testing.T) {
	q := url.Values{}
	q.Set("shopDomain", "shop.example")
	q.Set("sessionId", "s1")
	q.Set("pageId", "p1")
	hit := models.HitFromQuery(q)
	assert.False(t, hit.IsInteraction())

	q.Set("elementId", "btn-1")
	hit = models.HitFromQuery(q)
	assert.True(t, hit.IsInteraction())
}

func allEventIDs(t *testing.T, store *storage.MemoryStore) []string {
	t.Helper()
	sessions, err := store.SessionsInRange(context.Background(), "shop.example", "0000-00-00", "9999-99-99")
	require.NoError(t, err)
	var ids []string
	for _, s := range sessions {
		ids = append(ids, s.Events...)
	}
	return ids
}
