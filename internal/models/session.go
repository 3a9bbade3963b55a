package models

import "math"

// Session represents one visitor's stay on a single storefront page. There is
// exactly one record per distinct (SessionID, PageID) pair; repeated heartbeat
// hits for the same pair only advance EndTime and refresh the page metadata.
type Session struct {
	SessionID  string `json:"sessionId"`
	PageID     string `json:"pageId"`
	ShopDomain string `json:"shopDomain"`
	UserID     string `json:"userId"`
	PageType   string `json:"pageType"`
	PageTitle  string `json:"pageTitle"`

	// Date is the calendar day of the first hit (server clock), YYYY-MM-DD.
	// Derived from StartTime at creation and never updated.
	Date string `json:"date"`

	// StartTime and EndTime are epoch-millisecond timestamps. StartTime is
	// set once at creation; EndTime is monotonically non-decreasing.
	StartTime int64 `json:"startTime"`
	EndTime   int64 `json:"endTime"`

	// Country is an optional GeoIP enrichment, ISO code or empty.
	Country string `json:"country,omitempty"`

	// Events holds references (IDs) to the interaction events recorded during
	// this session, in discovery order, without duplicates.
	Events []string `json:"events"`
}

// Duration returns the session duration in whole seconds, rounded to the
// nearest integer.
func (s *Session) Duration() int64 {
	return int64(math.Round(float64(s.EndTime-s.StartTime) / 1000))
}

// Bounced reports whether this session counts as a bounce: the visitor left
// within the same second and never interacted with a tracked element.
func (s *Session) Bounced() bool {
	return s.Duration() == 0 && len(s.Events) == 0
}
