package analytics

import (
	"context"
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/storelens/collector/internal/models"
	"github.com/storelens/collector/internal/storage"
)

// Engine turns raw sessions and events into per-page reports. The pipeline
// is a fixed composition of pure stages over a single snapshot read, so a
// report is internally consistent even while ingestion continues.
type Engine struct {
	sessions storage.SessionStore
	events   storage.EventStore
	tracking map[string]bool
	logger   *zap.Logger
}

func NewEngine(sessions storage.SessionStore, events storage.EventStore, trackingElementTypes []string, logger *zap.Logger) *Engine {
	tracking := make(map[string]bool, len(trackingElementTypes))
	for _, t := range trackingElementTypes {
		tracking[t] = true
	}
	return &Engine{
		sessions: sessions,
		events:   events,
		tracking: tracking,
		logger:   logger,
	}
}

// Report aggregates the shop's sessions whose date falls in
// [startDate, endDate] into one PageReport per distinct page.
func (e *Engine) Report(ctx context.Context, shopDomain, startDate, endDate string) ([]*PageReport, error) {
	sessions, err := e.sessions.SessionsInRange(ctx, shopDomain, startDate, endDate)
	if err != nil {
		return nil, fmt.Errorf("load sessions: %w", err)
	}

	eventsByID, err := e.loadEvents(ctx, sessions)
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}

	days := e.summarizeDays(groupByDay(sessions), eventsByID)
	pages := regroupByPage(days)
	reports := make([]*PageReport, 0, len(pages))
	for _, p := range pages {
		reports = append(reports, e.renderPage(p))
	}

	sort.Slice(reports, func(i, j int) bool { return reports[i].ID < reports[j].ID })
	return reports, nil
}

// loadEvents fetches every event referenced by the sessions, keyed by ID.
func (e *Engine) loadEvents(ctx context.Context, sessions []*models.Session) (map[string]*models.Event, error) {
	var ids []string
	seen := make(map[string]bool)
	for _, s := range sessions {
		for _, id := range s.Events {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}

	events, err := e.events.EventsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*models.Event, len(events))
	for _, ev := range events {
		byID[ev.ID] = ev
	}
	return byID, nil
}

// pageKey identifies one report page. A page whose type or title changed
// mid-range yields separate report entries.
type pageKey struct {
	PageID    string
	PageType  string
	PageTitle string
}

type dayKey struct {
	page pageKey
	date string
}

// dayGroup collects one page's sessions for one day.
type dayGroup struct {
	key      dayKey
	sessions []*models.Session
}

func groupByDay(sessions []*models.Session) []*dayGroup {
	byKey := make(map[dayKey]*dayGroup)
	var order []dayKey
	for _, s := range sessions {
		k := dayKey{
			page: pageKey{PageID: s.PageID, PageType: s.PageType, PageTitle: s.PageTitle},
			date: s.Date,
		}
		g, ok := byKey[k]
		if !ok {
			g = &dayGroup{key: k}
			byKey[k] = g
			order = append(order, k)
		}
		g.sessions = append(g.sessions, s)
	}

	groups := make([]*dayGroup, 0, len(order))
	for _, k := range order {
		groups = append(groups, byKey[k])
	}
	return groups
}

// dayStats is one page-day after metric extraction. The total fields carry
// the un-normalized sums; per-day normalization divides them by
// sessionCount, the page totals divide their sums by the page session
// count.
type dayStats struct {
	key           dayKey
	sessionCount  int64
	visitors      int64
	totalDuration int64
	totalBounce   int64
	totalATC      int64
	totalPV       int64
	crEvents      []*models.Event
}

// summarizeDays computes per-day stats: distinct visitors, bounce and
// duration sums, add-to-cart and product-view count sums (scaled by 100 so
// normalization yields percentages), and the tracked conversion events.
func (e *Engine) summarizeDays(groups []*dayGroup, eventsByID map[string]*models.Event) []*dayStats {
	days := make([]*dayStats, 0, len(groups))
	for _, g := range groups {
		d := &dayStats{key: g.key, sessionCount: int64(len(g.sessions))}

		users := make(map[string]bool)
		for _, s := range g.sessions {
			users[s.UserID] = true
			d.totalDuration += s.Duration()
			if s.Bounced() {
				d.totalBounce += 100
			}
			for _, id := range s.Events {
				ev, ok := eventsByID[id]
				if !ok {
					continue
				}
				switch ev.ElementType {
				case models.ElementTypeProductATC:
					d.totalATC += ev.Count * 100
				case models.ElementTypeProductViewDetails:
					d.totalPV += ev.Count * 100
				}
				if e.tracking[ev.ElementType] {
					d.crEvents = append(d.crEvents, ev)
				}
			}
		}
		d.visitors = int64(len(users))

		days = append(days, d)
	}

	sort.SliceStable(days, func(i, j int) bool { return days[i].key.date < days[j].key.date })
	return days
}

// pageGroup is one page's day rows in date order.
type pageGroup struct {
	key  pageKey
	days []*dayStats
}

func regroupByPage(days []*dayStats) []*pageGroup {
	byKey := make(map[pageKey]*pageGroup)
	var order []pageKey
	for _, d := range days {
		p, ok := byKey[d.key.page]
		if !ok {
			p = &pageGroup{key: d.key.page}
			byKey[d.key.page] = p
			order = append(order, d.key.page)
		}
		p.days = append(p.days, d)
	}

	pages := make([]*pageGroup, 0, len(order))
	for _, k := range order {
		pages = append(pages, byKey[k])
	}
	return pages
}

// renderPage normalizes the day rows into the parallel series, computes the
// page totals and the conversion breakdown.
func (e *Engine) renderPage(p *pageGroup) *PageReport {
	r := &PageReport{
		ID:    p.key.PageID,
		Type:  p.key.PageType,
		Title: p.key.PageTitle,
	}

	var sumSessions, sumVisitors, sumDuration, sumBounce, sumATC, sumPV int64
	var crEvents []*models.Event
	for _, d := range p.days {
		sc := float64(d.sessionCount)
		r.Dates = append(r.Dates, d.key.date)
		r.AvgSessionDuration = append(r.AvgSessionDuration, int64(math.Round(float64(d.totalDuration)/sc)))
		r.BounceRate = append(r.BounceRate, round2(float64(d.totalBounce)/sc))
		r.Visitors = append(r.Visitors, d.visitors)
		r.AddToCart = append(r.AddToCart, round2(float64(d.totalATC)/sc))
		r.ProductViews = append(r.ProductViews, round2(float64(d.totalPV)/sc))

		sumSessions += d.sessionCount
		sumVisitors += d.visitors
		sumDuration += d.totalDuration
		sumBounce += d.totalBounce
		sumATC += d.totalATC
		sumPV += d.totalPV
		crEvents = append(crEvents, d.crEvents...)
	}

	total := float64(sumSessions)
	r.Totals = Totals{
		Session:            sumSessions,
		Visitors:           sumVisitors,
		AvgSessionDuration: round2(float64(sumDuration) / total),
		BounceRate:         round2(float64(sumBounce) / total),
		AddToCart:          round2(float64(sumATC) / total),
		ProductViews:       round2(float64(sumPV) / total),
	}

	r.ConversionRate, r.Totals.ConversionRate = conversionBreakdown(crEvents, sumSessions)
	return r
}

// conversionBreakdown groups the page's tracked events by (elementId,
// elementName) in first-encounter order. Each value is the group's count
// sum as a percentage of the page's total sessions; the total is the sum of
// the values.
func conversionBreakdown(events []*models.Event, totalSessions int64) (ConversionBreakdown, float64) {
	breakdown := ConversionBreakdown{Labels: []string{}, Values: []float64{}}
	if len(events) == 0 {
		return breakdown, 0
	}

	type elemKey struct{ id, name string }
	counts := make(map[elemKey]int64)
	var order []elemKey
	for _, ev := range events {
		k := elemKey{id: ev.ElementID, name: ev.ElementName}
		if _, ok := counts[k]; !ok {
			order = append(order, k)
		}
		counts[k] += ev.Count
	}

	var total float64
	for _, k := range order {
		v := round2(float64(counts[k]) / float64(totalSessions) * 100)
		breakdown.Labels = append(breakdown.Labels, k.name)
		breakdown.Values = append(breakdown.Values, v)
		total += v
	}
	return breakdown, total
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
