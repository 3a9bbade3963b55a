package analytics

// ConversionBreakdown is the per-element conversion series of a page.
// Labels and Values are parallel; both empty when the page saw no tracked
// element interactions.
type ConversionBreakdown struct {
	Labels []string  `json:"labels"`
	Values []float64 `json:"values"`
}

// Totals holds the whole-range aggregates of a page.
type Totals struct {
	Session            int64   `json:"session"`
	Visitors           int64   `json:"visitors"`
	AvgSessionDuration float64 `json:"avgSessionDuration"`
	BounceRate         float64 `json:"bounceRate"`
	AddToCart          float64 `json:"addToCart"`
	ProductViews       float64 `json:"productViews"`
	ConversionRate     float64 `json:"conversionRate"`
}

// PageReport is one page's aggregated analytics over the queried range. The
// per-day slices are parallel to Dates. Revenue is a reserved placeholder
// populated by the date-fill step, always zeros.
type PageReport struct {
	ID    string `json:"_id"`
	Type  string `json:"type"`
	Title string `json:"title"`

	Dates              []string  `json:"dates"`
	AvgSessionDuration []int64   `json:"avgSessionDuration"`
	BounceRate         []float64 `json:"bounceRate"`
	Visitors           []int64   `json:"visitors"`
	AddToCart          []float64 `json:"addToCart"`
	ProductViews       []float64 `json:"productViews"`
	Revenue            []float64 `json:"revenue,omitempty"`

	ConversionRate ConversionBreakdown `json:"conversionRate"`
	Totals         Totals              `json:"totals"`
}
