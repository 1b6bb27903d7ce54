package report

import (
	"encoding/csv"
	"io"
	"strconv"

	"flyshark/internal/domain"
)

var resultsHeader = []string{
	"origin", "destination", "carrier", "departure_date", "return_date", "cabin_class",
	"price", "status", "connections", "duration", "itinerary",
}

func optionalDate(o domain.NormalizedOffer) string {
	if o.ReturnDate == nil {
		return ""
	}
	return o.ReturnDate.Format(domain.DateLayout)
}

func WriteResultsCSV(w io.Writer, rows []domain.ClassifiedOffer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(resultsHeader); err != nil {
		return err
	}
	for _, r := range rows {
		record := []string{
			r.Origin, r.Destination, r.Carrier,
			r.DepartureDate.Format(domain.DateLayout), optionalDate(r.NormalizedOffer),
			string(r.CabinClass), r.Price.StringFixed(2), r.Label.Plain(),
			strconv.Itoa(r.Connections), r.Duration, r.Itinerary,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

var combinationsHeader = []string{
	"origin", "destination", "cabin_class",
	"outbound_date", "outbound_carrier", "outbound_price", "outbound_status", "outbound_itinerary",
	"return_date", "return_carrier", "return_price", "return_status", "return_itinerary",
	"stay_days", "total_price",
}

func WriteCombinationsCSV(w io.Writer, combos []domain.CombinedOffer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(combinationsHeader); err != nil {
		return err
	}
	for _, c := range combos {
		record := []string{
			c.Outbound.Origin, c.Outbound.Destination, string(c.Outbound.CabinClass),
			c.Outbound.DepartureDate.Format(domain.DateLayout), c.Outbound.Carrier,
			c.Outbound.Price.StringFixed(2), c.Outbound.Label.Plain(), c.Outbound.Itinerary,
			c.Return.DepartureDate.Format(domain.DateLayout), c.Return.Carrier,
			c.Return.Price.StringFixed(2), c.Return.Label.Plain(), c.Return.Itinerary,
			strconv.Itoa(c.StayDays()), c.TotalPrice.StringFixed(2),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
