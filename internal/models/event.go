package models

// EventTypeClick is the default interaction type when a beacon does not say
// otherwise.
const EventTypeClick = "click"

// Element type categories recognized by the aggregation engine.
const (
	ElementTypeProductATC         = "ProductATC"
	ElementTypeProductViewDetails = "ProductViewDetails"
)

// Event represents an accumulated interaction with a single trackable UI
// element within a session. There is exactly one record per distinct
// (SessionID, ElementID) pair; repeated hits add to Count.
type Event struct {
	// ID is a server-assigned identifier, referenced by the owning
	// Session's Events list.
	ID string `json:"id"`

	SessionID  string `json:"sessionId"`
	ElementID  string `json:"elementId"`
	ShopDomain string `json:"shopDomain"`

	// Type of the interaction, defaults to "click".
	Type string `json:"type"`

	// Count accumulates the reported counts of every hit. Monotonically
	// non-decreasing (hits report non-negative counts).
	Count int64 `json:"count"`

	ElementType string `json:"elementType"`

	// ElementName is a display label; the most recent hit wins.
	ElementName string `json:"elementName"`

	// Time is the epoch-millisecond creation timestamp, set once.
	Time int64 `json:"time"`
}
