package report

import (
	"sort"
	"time"

	"flyshark/internal/domain"
)

// PricePoint is one (date, price) sample for a chart.
type PricePoint struct {
	Date  time.Time
	Price float64
}

// MinPriceByDate keeps the cheapest price per departure date, ordered by
// date.
func MinPriceByDate(rows []domain.ClassifiedOffer) []PricePoint {
	mins := make(map[time.Time]float64)
	for _, r := range rows {
		day := domain.DateOf(r.DepartureDate)
		price := r.Price.InexactFloat64()
		if cur, ok := mins[day]; !ok || price < cur {
			mins[day] = price
		}
	}
	return sortedPoints(mins)
}

// HistoryPoints turns stored observations into points keyed by when each
// fare was observed.
func HistoryPoints(history []domain.FareObservation) []PricePoint {
	points := make([]PricePoint, 0, len(history))
	for _, h := range history {
		points = append(points, PricePoint{Date: h.ObservedAt, Price: h.Price.InexactFloat64()})
	}
	sort.SliceStable(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })
	return points
}

func sortedPoints(m map[time.Time]float64) []PricePoint {
	out := make([]PricePoint, 0, len(m))
	for d, p := range m {
		out = append(out, PricePoint{Date: d, Price: p})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// dayIndex is the x coordinate used for regression: fractional days since
// origin.
func dayIndex(origin, t time.Time) float64 {
	return t.Sub(origin).Hours() / 24
}

// LinearTrend fits price = intercept + slope*x by least squares, where x is
// the fractional day count since the first point. ok is false with fewer
// than two points or when every point falls on the same instant.
func LinearTrend(points []PricePoint) (slope, intercept float64, ok bool) {
	if len(points) < 2 {
		return 0, 0, false
	}
	origin := points[0].Date
	n := float64(len(points))
	var sumX, sumY, sumXY, sumXX float64
	for _, p := range points {
		x := dayIndex(origin, p.Date)
		sumX += x
		sumY += p.Price
		sumXY += x * p.Price
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0, 0, false
	}
	slope = (n*sumXY - sumX*sumY) / denom
	intercept = (sumY - slope*sumX) / n
	return slope, intercept, true
}

// ProjectTrend extends the fitted line one point per day for days days past
// the last sample. It returns nil when no trend can be fitted.
func ProjectTrend(points []PricePoint, days int) []PricePoint {
	slope, intercept, ok := LinearTrend(points)
	if !ok || days <= 0 {
		return nil
	}
	origin := points[0].Date
	last := points[len(points)-1].Date
	out := make([]PricePoint, 0, days)
	for i := 1; i <= days; i++ {
		d := last.AddDate(0, 0, i)
		out = append(out, PricePoint{Date: d, Price: intercept + slope*dayIndex(origin, d)})
	}
	return out
}

func timeDays(days float64) time.Duration {
	return time.Duration(days * 24 * float64(time.Hour))
}
