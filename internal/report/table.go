// Package report renders search results for Slack and as downloadable files.
package report

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"flyshark/internal/domain"

	"github.com/shopspring/decimal"
)

// FormatPrice renders a price with two decimals and thousands separators,
// e.g. "4,200.50".
func FormatPrice(p decimal.Decimal) string {
	fixed := p.Abs().StringFixed(2)
	intPart, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	if p.IsNegative() {
		b.WriteByte('-')
	}
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	b.WriteByte('.')
	b.WriteString(frac)
	return b.String()
}

func returnDate(o domain.NormalizedOffer) string {
	if o.ReturnDate == nil {
		return "-"
	}
	return o.ReturnDate.Format(domain.DateLayout)
}

// FormatResultsTable renders rows as a monospace table for a Slack code
// block. At most limit rows are shown; limit <= 0 shows all.
func FormatResultsTable(rows []domain.ClassifiedOffer, currency string, limit int) string {
	if len(rows) == 0 {
		return "No fares found for the selected parameters."
	}
	shown := rows
	if limit > 0 && len(shown) > limit {
		shown = shown[:limit]
	}

	var b strings.Builder
	b.WriteString("```\n")
	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Route\tOut\tBack\tCarrier\tClass\tPrice (%s)\tStops\tDuration\tStatus\n", currency)
	for _, r := range shown {
		fmt.Fprintf(tw, "%s-%s\t%s\t%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			r.Origin, r.Destination,
			r.DepartureDate.Format(domain.DateLayout), returnDate(r.NormalizedOffer),
			r.Carrier, r.CabinClass.Display(), FormatPrice(r.Price),
			r.Connections, r.Duration, r.Label.Display())
	}
	tw.Flush()
	b.WriteString("```")
	if len(shown) < len(rows) {
		fmt.Fprintf(&b, "\n_%d more rows in the CSV._", len(rows)-len(shown))
	}
	return b.String()
}

// FormatCombinationsTable renders outbound and return pairs, cheapest first
// if the caller sorted them.
func FormatCombinationsTable(combos []domain.CombinedOffer, currency string, limit int) string {
	if len(combos) == 0 {
		return "No outbound and return combination matched."
	}
	shown := combos
	if limit > 0 && len(shown) > limit {
		shown = shown[:limit]
	}

	var b strings.Builder
	b.WriteString("```\n")
	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Out\tCarrier\tPrice\tStatus\tBack\tCarrier\tPrice\tStatus\tStay\tTotal (%s)\n", currency)
	for _, c := range shown {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%dd\t%s\n",
			c.Outbound.DepartureDate.Format(domain.DateLayout), c.Outbound.Carrier,
			FormatPrice(c.Outbound.Price), c.Outbound.Label.Display(),
			c.Return.DepartureDate.Format(domain.DateLayout), c.Return.Carrier,
			FormatPrice(c.Return.Price), c.Return.Label.Display(),
			c.StayDays(), FormatPrice(c.TotalPrice))
	}
	tw.Flush()
	b.WriteString("```")
	if len(shown) < len(combos) {
		fmt.Fprintf(&b, "\n_%d more combinations in the CSV._", len(combos)-len(shown))
	}
	return b.String()
}
