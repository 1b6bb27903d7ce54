// Package amadeus talks to the Amadeus Self-Service flight offers API.
package amadeus

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"flyshark/internal/config"
	"flyshark/internal/domain"
	"flyshark/internal/httpx"
)

const providerName = "amadeus"

// Tokens are refreshed this long before Amadeus says they expire.
const tokenExpirySlack = 30 * time.Second

type Client struct {
	baseURL      string
	clientID     string
	clientSecret string
	currency     string
	maxOffers    int
	httpClient   *http.Client

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
	now         func() time.Time
}

func NewClient(baseURL, clientID, clientSecret string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = httpx.ExternalHTTPClient()
	}
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		clientID:     clientID,
		clientSecret: clientSecret,
		currency:     "BRL",
		maxOffers:    10,
		httpClient:   httpClient,
		now:          time.Now,
	}
}

func FromConfig(cfg config.Config) *Client {
	c := NewClient(cfg.AmadeusBaseURL, cfg.AmadeusClientID, cfg.AmadeusClientSecret, nil)
	if cfg.CurrencyCode != "" {
		c.currency = cfg.CurrencyCode
	}
	if cfg.MaxOffers > 0 {
		c.maxOffers = cfg.MaxOffers
	}
	return c
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

type errorResponse struct {
	Errors []struct {
		Status int    `json:"status"`
		Code   int    `json:"code"`
		Title  string `json:"title"`
		Detail string `json:"detail"`
	} `json:"errors"`
	// OAuth endpoint errors use a different shape.
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

type offersResponse struct {
	Data []domain.RawOffer `json:"data"`
}

// Search returns the raw offers for one query. Every failure is a
// *domain.SearchError.
func (c *Client) Search(ctx context.Context, q domain.FlightQuery) ([]domain.RawOffer, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	apiURL := c.baseURL + "/v2/shopping/flight-offers?" + searchParams(q, c.currency, c.maxOffers).Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, &domain.SearchError{Provider: providerName, Message: "creating request", Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/vnd.amadeus+json")

	log.Printf("amadeus search start query=%s", q)
	started := time.Now()
	body, status, err := c.do(req)
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized {
		c.invalidateToken()
	}
	if status < 200 || status > 299 {
		return nil, statusError(status, body)
	}

	var parsed offersResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &domain.SearchError{Provider: providerName, StatusCode: status, Message: "undecodable response body", Err: err}
	}
	log.Printf("amadeus search done query=%s offers=%d elapsed=%s", q, len(parsed.Data), time.Since(started).Round(time.Millisecond))
	return parsed.Data, nil
}

func searchParams(q domain.FlightQuery, currency string, maxOffers int) url.Values {
	params := url.Values{}
	params.Set("originLocationCode", q.Origin)
	params.Set("destinationLocationCode", q.Destination)
	params.Set("departureDate", q.DepartureDate.Format(domain.DateLayout))
	if q.ReturnDate != nil {
		params.Set("returnDate", q.ReturnDate.Format(domain.DateLayout))
	}
	params.Set("adults", "1")
	params.Set("currencyCode", currency)
	params.Set("max", strconv.Itoa(maxOffers))
	if q.CabinClass != domain.CabinAny && q.CabinClass != "" {
		params.Set("travelClass", string(q.CabinClass))
	}
	return params
}

func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/security/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", &domain.SearchError{Provider: providerName, Message: "creating token request", Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	body, status, err := c.do(req)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", statusError(status, body)
	}

	var tok tokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return "", &domain.SearchError{Provider: providerName, StatusCode: status, Message: "undecodable token response", Err: err}
	}
	if tok.AccessToken == "" {
		return "", &domain.SearchError{Provider: providerName, StatusCode: status, Message: "token response has no access_token"}
	}

	c.token = tok.AccessToken
	c.tokenExpiry = c.now().Add(time.Duration(tok.ExpiresIn)*time.Second - tokenExpirySlack)
	log.Printf("amadeus token refreshed expires_in=%ds", tok.ExpiresIn)
	return c.token, nil
}

func (c *Client) invalidateToken() {
	c.mu.Lock()
	c.token = ""
	c.tokenExpiry = time.Time{}
	c.mu.Unlock()
}

func (c *Client) do(req *http.Request) ([]byte, int, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, &domain.SearchError{Provider: providerName, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, &domain.SearchError{Provider: providerName, StatusCode: resp.StatusCode, Message: "reading response", Err: err}
	}
	return body, resp.StatusCode, nil
}

func statusError(status int, body []byte) error {
	msg := http.StatusText(status)
	var parsed errorResponse
	if err := json.Unmarshal(body, &parsed); err == nil {
		switch {
		case len(parsed.Errors) > 0 && parsed.Errors[0].Detail != "":
			msg = parsed.Errors[0].Detail
		case len(parsed.Errors) > 0 && parsed.Errors[0].Title != "":
			msg = parsed.Errors[0].Title
		case parsed.ErrorDescription != "":
			msg = parsed.ErrorDescription
		}
	}
	if msg == "" {
		msg = fmt.Sprintf("status %d", status)
	}
	return &domain.SearchError{Provider: providerName, StatusCode: status, Message: msg}
}
