package domain

// RawOffer mirrors the flight-offers payload returned by the provider. Only
// the fields the normalizer reads are decoded.
type RawOffer struct {
	ID                     string         `json:"id"`
	Price                  RawPrice       `json:"price"`
	Itineraries            []RawItinerary `json:"itineraries"`
	ValidatingAirlineCodes []string       `json:"validatingAirlineCodes"`
}

type RawPrice struct {
	Currency   string `json:"currency"`
	Total      string `json:"total"`
	GrandTotal string `json:"grandTotal"`
}

type RawItinerary struct {
	Duration string       `json:"duration"`
	Segments []RawSegment `json:"segments"`
}

type RawSegment struct {
	Departure   RawEndpoint `json:"departure"`
	Arrival     RawEndpoint `json:"arrival"`
	CarrierCode string      `json:"carrierCode"`
	Number      string      `json:"number"`
}

type RawEndpoint struct {
	IATACode string `json:"iataCode"`
	Terminal string `json:"terminal,omitempty"`
	At       string `json:"at"`
}
