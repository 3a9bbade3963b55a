package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/storelens/collector/internal/models"
	"github.com/storelens/collector/internal/storage"
)

var trackingTypes = []string{"Slider", "Heading", "Button", "Image2"}

type fixture struct {
	t      *testing.T
	store  *storage.MemoryStore
	engine *Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := storage.NewMemoryStore()
	return &fixture{
		t:      t,
		store:  store,
		engine: NewEngine(store, store, trackingTypes, zap.NewNop()),
	}
}

// addSession creates a session starting at start and lasting d.
func (f *fixture) addSession(sessionID, pageID, userID string, start time.Time, d time.Duration) {
	f.t.Helper()
	ctx := context.Background()
	up := storage.SessionUpsert{
		SessionID: sessionID, PageID: pageID, ShopDomain: "shop.example",
		UserID: userID, PageType: "product", PageTitle: "Shoes", Now: start,
	}
	_, err := f.store.UpsertSession(ctx, up)
	require.NoError(f.t, err)
	if d > 0 {
		up.Now = start.Add(d)
		_, err = f.store.UpsertSession(ctx, up)
		require.NoError(f.t, err)
	}
}

func (f *fixture) addEvent(sessionID, pageID, elementID, elementType, elementName string, count int64, now time.Time) {
	f.t.Helper()
	ctx := context.Background()
	ev, created, err := f.store.UpsertEvent(ctx, storage.EventUpsert{
		SessionID: sessionID, ElementID: elementID, ShopDomain: "shop.example",
		Type: models.EventTypeClick, ElementType: elementType, ElementName: elementName,
		Count: count, Now: now,
	})
	require.NoError(f.t, err)
	if created {
		require.NoError(f.t, f.store.LinkEvent(ctx, sessionID, pageID, ev.ID))
	}
}

func (f *fixture) report(startDate, endDate string) []*PageReport {
	f.t.Helper()
	reports, err := f.engine.Report(context.Background(), "shop.example", startDate, endDate)
	require.NoError(f.t, err)
	return reports
}

func TestReportBounceRate(t *testing.T) {
	f := newFixture(t)
	day := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)

	// One bounce, one 90s session: 1*100/2 = 50.00.
	f.addSession("s1", "p1", "u1", day, 0)
	f.addSession("s2", "p1", "u2", day, 90*time.Second)

	reports := f.report("2024-03-10", "2024-03-10")
	require.Len(t, reports, 1)
	r := reports[0]
	assert.Equal(t, []float64{50}, r.BounceRate)
	// avg duration: (0 + 90) / 2 = 45.
	assert.Equal(t, []int64{45}, r.AvgSessionDuration)
	assert.Equal(t, int64(2), r.Totals.Session)
}

func TestReportSubSecondSessionWithEventIsNotBounce(t *testing.T) {
	f := newFixture(t)
	day := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)

	f.addSession("s1", "p1", "u1", day, 100*time.Millisecond)
	f.addEvent("s1", "p1", "btn-1", "Button", "Buy", 1, day)

	reports := f.report("2024-03-10", "2024-03-10")
	require.Len(t, reports, 1)
	assert.Equal(t, []float64{0}, reports[0].BounceRate)
}

func TestReportVisitorsDistinctPerDay(t *testing.T) {
	f := newFixture(t)
	day := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)

	f.addSession("s1", "p1", "u1", day, time.Minute)
	f.addSession("s2", "p1", "u1", day, time.Minute)
	f.addSession("s3", "p1", "u2", day, time.Minute)

	reports := f.report("2024-03-10", "2024-03-10")
	require.Len(t, reports, 1)
	assert.Equal(t, []int64{2}, reports[0].Visitors)
	assert.Equal(t, int64(2), reports[0].Totals.Visitors)
	assert.Equal(t, int64(3), reports[0].Totals.Session)
}

func TestReportAddToCartAndProductViews(t *testing.T) {
	f := newFixture(t)
	day := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)

	f.addSession("s1", "p1", "u1", day, time.Minute)
	f.addSession("s2", "p1", "u2", day, time.Minute)
	// 3 add-to-carts over 2 sessions: 3*100/2 = 150.00.
	f.addEvent("s1", "p1", "atc-1", "ProductATC", "ATC", 2, day)
	f.addEvent("s2", "p1", "atc-1", "ProductATC", "ATC", 1, day)
	// 1 product view over 2 sessions: 100/2 = 50.00.
	f.addEvent("s1", "p1", "pv-1", "ProductViewDetails", "View", 1, day)

	reports := f.report("2024-03-10", "2024-03-10")
	require.Len(t, reports, 1)
	r := reports[0]
	assert.Equal(t, []float64{150}, r.AddToCart)
	assert.Equal(t, []float64{50}, r.ProductViews)
	assert.Equal(t, float64(150), r.Totals.AddToCart)
	assert.Equal(t, float64(50), r.Totals.ProductViews)
}

func TestReportConversionBreakdown(t *testing.T) {
	f := newFixture(t)
	day := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)

	f.addSession("s1", "p1", "u1", day, time.Minute)
	f.addSession("s2", "p1", "u2", day, time.Minute)
	f.addSession("s3", "p1", "u3", day, time.Minute)
	f.addSession("s4", "p1", "u4", day, time.Minute)

	f.addEvent("s1", "p1", "btn-1", "Button", "Buy", 1, day)
	f.addEvent("s2", "p1", "btn-1", "Button", "Buy", 2, day)
	f.addEvent("s3", "p1", "sl-1", "Slider", "Hero", 1, day)
	// Non-tracked element types stay out of the breakdown.
	f.addEvent("s4", "p1", "atc-1", "ProductATC", "ATC", 5, day)

	reports := f.report("2024-03-10", "2024-03-10")
	require.Len(t, reports, 1)
	r := reports[0]

	require.Equal(t, []string{"Buy", "Hero"}, r.ConversionRate.Labels)
	// Buy: 3/4*100 = 75, Hero: 1/4*100 = 25.
	require.Equal(t, []float64{75, 25}, r.ConversionRate.Values)
	assert.Equal(t, float64(100), r.Totals.ConversionRate)
}

func TestReportNoConversionEvents(t *testing.T) {
	f := newFixture(t)
	day := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)

	f.addSession("s1", "p1", "u1", day, time.Minute)

	reports := f.report("2024-03-10", "2024-03-10")
	require.Len(t, reports, 1)
	r := reports[0]
	assert.Equal(t, []string{}, r.ConversionRate.Labels)
	assert.Equal(t, []float64{}, r.ConversionRate.Values)
	assert.Equal(t, float64(0), r.Totals.ConversionRate)
}

func TestReportMultiDayAndTotals(t *testing.T) {
	f := newFixture(t)
	day1 := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	day2 := time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC)

	f.addSession("s1", "p1", "u1", day1, 30*time.Second)
	f.addSession("s2", "p1", "u2", day2, 60*time.Second)
	f.addSession("s3", "p1", "u2", day2, 0)

	reports := f.report("2024-03-10", "2024-03-11")
	require.Len(t, reports, 1)
	r := reports[0]

	assert.Equal(t, []string{"2024-03-10", "2024-03-11"}, r.Dates)
	assert.Equal(t, []int64{30, 30}, r.AvgSessionDuration)
	assert.Equal(t, []float64{0, 50}, r.BounceRate)
	assert.Equal(t, []int64{1, 1}, r.Visitors)

	assert.Equal(t, int64(3), r.Totals.Session)
	assert.Equal(t, int64(2), r.Totals.Visitors)
	// (30+60+0)/3 = 30.
	assert.Equal(t, float64(30), r.Totals.AvgSessionDuration)
	// one bounce: 100/3 = 33.33.
	assert.Equal(t, 33.33, r.Totals.BounceRate)
}

func TestReportSplitsPages(t *testing.T) {
	f := newFixture(t)
	day := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)

	f.addSession("s1", "p2", "u1", day, time.Minute)
	f.addSession("s2", "p1", "u2", day, time.Minute)

	reports := f.report("2024-03-10", "2024-03-10")
	require.Len(t, reports, 2)
	assert.Equal(t, "p1", reports[0].ID)
	assert.Equal(t, "p2", reports[1].ID)
}

func TestReportRangeFiltering(t *testing.T) {
	f := newFixture(t)

	f.addSession("s1", "p1", "u1", time.Date(2024, 3, 9, 9, 0, 0, 0, time.UTC), time.Minute)
	f.addSession("s2", "p1", "u2", time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC), time.Minute)
	f.addSession("s3", "p1", "u3", time.Date(2024, 3, 12, 9, 0, 0, 0, time.UTC), time.Minute)

	reports := f.report("2024-03-10", "2024-03-11")
	require.Len(t, reports, 1)
	assert.Equal(t, []string{"2024-03-10"}, reports[0].Dates)
	assert.Equal(t, int64(1), reports[0].Totals.Session)
}

func TestReportEmptyRange(t *testing.T) {
	f := newFixture(t)
	reports := f.report("2024-03-10", "2024-03-11")
	assert.Empty(t, reports)
}
