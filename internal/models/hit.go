package models

import (
	"net/url"
	"strconv"
	"strings"
	"time"
)

// BeaconHit is one decoded /collect request. The beacon transport is a flat
// query string, so every field arrives as text; Count is kept raw and parsed
// with ParseCount at upsert time.
type BeaconHit struct {
	ShopDomain string
	SessionID  string
	UserID     string
	PageID     string
	PageType   string
	PageTitle  string

	ElementID   string
	ElementType string
	ElementName string
	Type        string
	Count       string

	RemoteIP   string
	UserAgent  string
	ReceivedAt time.Time
}

// HitFromQuery decodes the beacon query parameters. The cache-buster "t" and
// any unknown keys are ignored.
func HitFromQuery(q url.Values) *BeaconHit {
	return &BeaconHit{
		ShopDomain:  q.Get("shopDomain"),
		SessionID:   q.Get("sessionId"),
		UserID:      q.Get("userId"),
		PageID:      q.Get("pageId"),
		PageType:    q.Get("pageType"),
		PageTitle:   q.Get("pageTitle"),
		ElementID:   q.Get("elementId"),
		ElementType: q.Get("elementType"),
		ElementName: q.Get("elementName"),
		Type:        q.Get("type"),
		Count:       q.Get("count"),
	}
}

// IsInteraction reports whether this hit targets a trackable element (an
// event) as opposed to a session heartbeat.
func (h *BeaconHit) IsInteraction() bool {
	return h.ElementID != ""
}

// ParseCount converts the raw count to an integer increment. Absent or
// unparseable values become 0; fractional values are truncated.
func ParseCount(raw string) int64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return int64(f)
	}
	return 0
}
