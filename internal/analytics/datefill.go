package analytics

import "time"

const dateLayout = "2006-01-02"

// DateRange enumerates every calendar day from startDate to endDate
// inclusive. Invalid bounds yield an empty slice.
func DateRange(startDate, endDate string) []string {
	first, err := time.Parse(dateLayout, startDate)
	if err != nil {
		return nil
	}
	last, err := time.Parse(dateLayout, endDate)
	if err != nil {
		return nil
	}

	var dates []string
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d.Format(dateLayout))
	}
	return dates
}

// FillDates densifies each report's per-day series over the full range:
// every day in [startDate, endDate] gets a slot, days without data are
// zero, observed values land at their date's position. Also attaches the
// all-zero revenue placeholder. Dates, conversion breakdown and totals pass
// through untouched.
func FillDates(reports []*PageReport, startDate, endDate string) []*PageReport {
	fullDates := DateRange(startDate, endDate)
	n := len(fullDates)

	index := make(map[string]int, n)
	for i, d := range fullDates {
		index[d] = i
	}

	out := make([]*PageReport, 0, len(reports))
	for _, r := range reports {
		filled := &PageReport{
			ID:    r.ID,
			Type:  r.Type,
			Title: r.Title,

			Dates:              fullDates,
			AvgSessionDuration: make([]int64, n),
			BounceRate:         make([]float64, n),
			Visitors:           make([]int64, n),
			AddToCart:          make([]float64, n),
			ProductViews:       make([]float64, n),
			Revenue:            make([]float64, n),

			ConversionRate: r.ConversionRate,
			Totals:         r.Totals,
		}

		for i, date := range r.Dates {
			pos, ok := index[date]
			if !ok {
				continue
			}
			filled.AvgSessionDuration[pos] = r.AvgSessionDuration[i]
			filled.BounceRate[pos] = r.BounceRate[i]
			filled.Visitors[pos] = r.Visitors[i]
			filled.AddToCart[pos] = r.AddToCart[i]
			filled.ProductViews[pos] = r.ProductViews[i]
		}

		out = append(out, filled)
	}
	return out
}
