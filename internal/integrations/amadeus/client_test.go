package amadeus

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"flyshark/internal/domain"
)

const offersPayload = `{
  "data": [{
    "id": "1",
    "price": {"currency": "BRL", "total": "4200.50", "grandTotal": "4200.50"},
    "validatingAirlineCodes": ["AF"],
    "itineraries": [{
      "duration": "PT11H30M",
      "segments": [{
        "departure": {"iataCode": "GRU", "at": "2026-12-01T18:00:00"},
        "arrival": {"iataCode": "CDG", "at": "2026-12-02T10:30:00"},
        "carrierCode": "AF", "number": "457"
      }]
    }]
  }]
}`

type fakeAmadeus struct {
	tokenCalls  atomic.Int32
	searchCalls atomic.Int32
	lastQuery   atomic.Value
	searchCode  int
	searchBody  string
}

func (f *fakeAmadeus) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/security/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		f.tokenCalls.Add(1)
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if r.Form.Get("grant_type") != "client_credentials" || r.Form.Get("client_id") != "id" || r.Form.Get("client_secret") != "secret" {
			t.Errorf("unexpected token form: %v", r.Form)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok-1","token_type":"Bearer","expires_in":1799}`))
	})
	mux.HandleFunc("/v2/shopping/flight-offers", func(w http.ResponseWriter, r *http.Request) {
		f.searchCalls.Add(1)
		if got := r.Header.Get("Authorization"); got != "Bearer tok-1" {
			t.Errorf("unexpected Authorization header: %q", got)
		}
		f.lastQuery.Store(r.URL.Query())
		code := f.searchCode
		if code == 0 {
			code = http.StatusOK
		}
		body := f.searchBody
		if body == "" {
			body = offersPayload
		}
		w.WriteHeader(code)
		_, _ = w.Write([]byte(body))
	})
	return mux
}

func newTestClient(t *testing.T, fake *fakeAmadeus) *Client {
	t.Helper()
	server := httptest.NewServer(fake.handler(t))
	t.Cleanup(server.Close)
	return NewClient(server.URL, "id", "secret", server.Client())
}

func query(cabin domain.CabinClass, withReturn bool) domain.FlightQuery {
	q := domain.FlightQuery{
		Origin:        "GRU",
		Destination:   "CDG",
		DepartureDate: time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC),
		CabinClass:    cabin,
	}
	if withReturn {
		ret := time.Date(2026, 12, 15, 0, 0, 0, 0, time.UTC)
		q.ReturnDate = &ret
	}
	return q
}

func TestSearchSendsQueryAndDecodesOffers(t *testing.T) {
	fake := &fakeAmadeus{}
	client := newTestClient(t, fake)

	offers, err := client.Search(context.Background(), query(domain.CabinBusiness, true))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(offers) != 1 || offers[0].Price.Total != "4200.50" {
		t.Fatalf("unexpected offers: %+v", offers)
	}
	if seg := offers[0].Itineraries[0].Segments[0]; seg.Departure.IATACode != "GRU" || seg.CarrierCode != "AF" {
		t.Fatalf("unexpected segment: %+v", seg)
	}

	params := fake.lastQuery.Load().(url.Values)
	want := map[string]string{
		"originLocationCode":      "GRU",
		"destinationLocationCode": "CDG",
		"departureDate":           "2026-12-01",
		"returnDate":              "2026-12-15",
		"adults":                  "1",
		"currencyCode":            "BRL",
		"max":                     "10",
		"travelClass":             "BUSINESS",
	}
	for k, v := range want {
		if got := params[k]; len(got) != 1 || got[0] != v {
			t.Fatalf("param %s = %v, want %s", k, got, v)
		}
	}
}

func TestSearchOmitsTravelClassForAnyCabin(t *testing.T) {
	fake := &fakeAmadeus{}
	client := newTestClient(t, fake)

	if _, err := client.Search(context.Background(), query(domain.CabinAny, false)); err != nil {
		t.Fatalf("Search: %v", err)
	}
	params := fake.lastQuery.Load().(url.Values)
	if _, ok := params["travelClass"]; ok {
		t.Fatalf("travelClass should be omitted, got %v", params["travelClass"])
	}
	if _, ok := params["returnDate"]; ok {
		t.Fatalf("returnDate should be omitted for one-way queries")
	}
}

func TestSearchCachesToken(t *testing.T) {
	fake := &fakeAmadeus{}
	client := newTestClient(t, fake)

	for i := 0; i < 3; i++ {
		if _, err := client.Search(context.Background(), query(domain.CabinEconomy, false)); err != nil {
			t.Fatalf("Search %d: %v", i, err)
		}
	}
	if got := fake.tokenCalls.Load(); got != 1 {
		t.Fatalf("token calls = %d, want 1", got)
	}
	if got := fake.searchCalls.Load(); got != 3 {
		t.Fatalf("search calls = %d, want 3", got)
	}
}

func TestSearchRefreshesExpiredToken(t *testing.T) {
	fake := &fakeAmadeus{}
	client := newTestClient(t, fake)
	now := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
	client.now = func() time.Time { return now }

	if _, err := client.Search(context.Background(), query(domain.CabinEconomy, false)); err != nil {
		t.Fatalf("Search: %v", err)
	}
	now = now.Add(time.Hour)
	if _, err := client.Search(context.Background(), query(domain.CabinEconomy, false)); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if got := fake.tokenCalls.Load(); got != 2 {
		t.Fatalf("token calls = %d, want 2", got)
	}
}

func TestSearchMapsProviderErrorDetail(t *testing.T) {
	fake := &fakeAmadeus{
		searchCode: http.StatusBadRequest,
		searchBody: `{"errors":[{"status":400,"code":477,"title":"INVALID FORMAT","detail":"departureDate must be in the future"}]}`,
	}
	client := newTestClient(t, fake)

	_, err := client.Search(context.Background(), query(domain.CabinEconomy, false))
	var serr *domain.SearchError
	if !errors.As(err, &serr) {
		t.Fatalf("expected SearchError, got %v", err)
	}
	if serr.StatusCode != http.StatusBadRequest || serr.Message != "departureDate must be in the future" {
		t.Fatalf("unexpected error %+v", serr)
	}
}

func TestSearchUndecodableBody(t *testing.T) {
	fake := &fakeAmadeus{searchBody: `<html>oops</html>`}
	client := newTestClient(t, fake)

	_, err := client.Search(context.Background(), query(domain.CabinEconomy, false))
	var serr *domain.SearchError
	if !errors.As(err, &serr) {
		t.Fatalf("expected SearchError, got %v", err)
	}
}

func TestSearchTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	baseURL := server.URL
	server.Close()

	client := NewClient(baseURL, "id", "secret", &http.Client{Timeout: time.Second})
	_, err := client.Search(context.Background(), query(domain.CabinEconomy, false))
	var serr *domain.SearchError
	if !errors.As(err, &serr) {
		t.Fatalf("expected SearchError, got %v", err)
	}
	if serr.Err == nil {
		t.Fatal("expected wrapped transport error")
	}
}

func TestStatusErrorFallsBackToStatusText(t *testing.T) {
	err := statusError(http.StatusServiceUnavailable, []byte("not json"))
	var serr *domain.SearchError
	if !errors.As(err, &serr) || serr.Message != "Service Unavailable" {
		t.Fatalf("unexpected error %v", err)
	}
}
