package slackbot

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"flyshark/internal/config"
	"flyshark/internal/domain"

	"github.com/shopspring/decimal"
)

const (
	faresUsage = "Usage: `/fares <DEST[,DEST...]|all> <YYYY-MM-DD> [days=N] [return=YYYY-MM-DD] [trip=round|out|back] [class=economy|business|any] [max=PRICE] [conn=none|0|1|2|3] [from=ORIG]`"
	sharkUsage = "Usage: `/shark <DEST> <YYYY-MM-DD> [days=N] [min=7] [max-stay=10] [max=PRICE] [class=economy|business|any] [from=ORIG]`"
	trendUsage = "Usage: `/fare-trend [ORIG] <DEST> [class=economy|business|any] [ahead=N]`"
)

const (
	defaultMinStay    = 7
	defaultMaxStay    = 10
	maxStayDays       = 30
	defaultTrendAhead = 30
	maxTrendAhead     = 365
	maxConnectionsArg = 3
)

// UsageError is a user input problem. Its message is shown with the
// command's usage line.
type UsageError struct {
	Reason string
	Usage  string
}

func (e *UsageError) Error() string {
	return e.Reason + "\n" + e.Usage
}

// Defaults are the config values a command falls back to.
type Defaults struct {
	Origin       string
	Destinations []string
	MaxPrice     decimal.Decimal
	CabinClass   domain.CabinClass
	MaxDays      int
}

func DefaultsFromConfig(cfg config.Config) Defaults {
	cabin, err := domain.ParseCabinClass(cfg.DefaultCabinClass)
	if err != nil {
		cabin = domain.CabinEconomy
	}
	maxDays := cfg.MaxDepartureDays
	if maxDays < 1 {
		maxDays = 14
	}
	return Defaults{
		Origin:       cfg.DefaultOrigin,
		Destinations: cfg.Destinations,
		MaxPrice:     decimal.NewFromFloat(cfg.DefaultMaxPrice),
		CabinClass:   cabin,
		MaxDays:      maxDays,
	}
}

// splitArgs separates positional words from key=value options. Keys are
// lower-cased; a repeated key is an error.
func splitArgs(text, usage string) ([]string, map[string]string, error) {
	var positional []string
	opts := make(map[string]string)
	for _, field := range strings.Fields(text) {
		key, val, ok := strings.Cut(field, "=")
		if !ok {
			positional = append(positional, field)
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		if key == "" || val == "" {
			return nil, nil, &UsageError{Reason: fmt.Sprintf("Malformed option %q.", field), Usage: usage}
		}
		if _, dup := opts[key]; dup {
			return nil, nil, &UsageError{Reason: fmt.Sprintf("Option %s given twice.", key), Usage: usage}
		}
		opts[key] = val
	}
	return positional, opts, nil
}

func checkKnown(opts map[string]string, usage string, known ...string) error {
	allowed := make(map[string]bool, len(known))
	for _, k := range known {
		allowed[k] = true
	}
	for k := range opts {
		if !allowed[k] {
			return &UsageError{Reason: fmt.Sprintf("Unknown option %s.", k), Usage: usage}
		}
	}
	return nil
}

func intOpt(opts map[string]string, key string, def, min, max int, usage string) (int, error) {
	raw, ok := opts[key]
	if !ok {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < min || n > max {
		return 0, &UsageError{Reason: fmt.Sprintf("%s must be a whole number between %d and %d.", key, min, max), Usage: usage}
	}
	return n, nil
}

func originOpt(opts map[string]string, d Defaults, usage string) (string, error) {
	raw := d.Origin
	if v, ok := opts["from"]; ok {
		raw = v
	}
	code, err := domain.NormalizeIATA(raw)
	if err != nil {
		return "", &UsageError{Reason: err.Error(), Usage: usage}
	}
	return code, nil
}

func cabinOpt(opts map[string]string, d Defaults, usage string) (domain.CabinClass, error) {
	raw, ok := opts["class"]
	if !ok {
		if d.CabinClass == "" {
			return domain.CabinEconomy, nil
		}
		return d.CabinClass, nil
	}
	cabin, err := domain.ParseCabinClass(raw)
	if err != nil {
		return "", &UsageError{Reason: err.Error(), Usage: usage}
	}
	return cabin, nil
}

// priceOpt reads max=. "none" and "0" disable the cap.
func priceOpt(opts map[string]string, d Defaults, usage string) (decimal.Decimal, error) {
	raw, ok := opts["max"]
	if !ok {
		return d.MaxPrice, nil
	}
	if strings.EqualFold(raw, "none") {
		return decimal.Zero, nil
	}
	p, err := decimal.NewFromString(raw)
	if err != nil || p.IsNegative() {
		return decimal.Zero, &UsageError{Reason: fmt.Sprintf("max must be a non-negative price, got %q.", raw), Usage: usage}
	}
	return p, nil
}

func dateArg(raw, usage string) (time.Time, error) {
	d, err := domain.ParseDate(raw)
	if err != nil {
		return time.Time{}, &UsageError{Reason: err.Error() + ".", Usage: usage}
	}
	return d, nil
}

func destinationsArg(raw string, d Defaults, usage string) ([]string, error) {
	if strings.EqualFold(raw, "all") {
		if len(d.Destinations) == 0 {
			return nil, &UsageError{Reason: "No destinations are configured for `all`.", Usage: usage}
		}
		return append([]string(nil), d.Destinations...), nil
	}
	var out []string
	seen := make(map[string]bool)
	for _, part := range strings.Split(raw, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		code, err := domain.NormalizeIATA(part)
		if err != nil {
			return nil, &UsageError{Reason: err.Error(), Usage: usage}
		}
		if !seen[code] {
			seen[code] = true
			out = append(out, code)
		}
	}
	if len(out) == 0 {
		return nil, &UsageError{Reason: "At least one destination is required.", Usage: usage}
	}
	return out, nil
}

// ParseFaresArgs parses `/fares` text into a multi-destination search.
func ParseFaresArgs(text string, d Defaults) (domain.SearchRequest, error) {
	positional, opts, err := splitArgs(text, faresUsage)
	if err != nil {
		return domain.SearchRequest{}, err
	}
	if err := checkKnown(opts, faresUsage, "days", "return", "trip", "class", "max", "conn", "from"); err != nil {
		return domain.SearchRequest{}, err
	}
	if len(positional) != 2 {
		return domain.SearchRequest{}, &UsageError{Reason: "Expected destinations and a departure date.", Usage: faresUsage}
	}

	dests, err := destinationsArg(positional[0], d, faresUsage)
	if err != nil {
		return domain.SearchRequest{}, err
	}
	departure, err := dateArg(positional[1], faresUsage)
	if err != nil {
		return domain.SearchRequest{}, err
	}
	origin, err := originOpt(opts, d, faresUsage)
	if err != nil {
		return domain.SearchRequest{}, err
	}
	cabin, err := cabinOpt(opts, d, faresUsage)
	if err != nil {
		return domain.SearchRequest{}, err
	}
	maxPrice, err := priceOpt(opts, d, faresUsage)
	if err != nil {
		return domain.SearchRequest{}, err
	}
	days, err := intOpt(opts, "days", 1, 1, d.MaxDays, faresUsage)
	if err != nil {
		return domain.SearchRequest{}, err
	}

	var maxConn *int
	if raw, ok := opts["conn"]; ok && !strings.EqualFold(raw, "none") {
		n, err := intOpt(opts, "conn", 0, 0, maxConnectionsArg, faresUsage)
		if err != nil {
			return domain.SearchRequest{}, err
		}
		maxConn = &n
	}

	var ret *time.Time
	if raw, ok := opts["return"]; ok {
		r, err := dateArg(raw, faresUsage)
		if err != nil {
			return domain.SearchRequest{}, err
		}
		ret = &r
	}

	tripKind := "out"
	if ret != nil {
		tripKind = "round"
	}
	if raw, ok := opts["trip"]; ok {
		tripKind = strings.ToLower(raw)
	}

	var trip domain.Trip
	switch tripKind {
	case "round":
		if ret == nil {
			return domain.SearchRequest{}, &UsageError{Reason: "Round trips need return=YYYY-MM-DD.", Usage: faresUsage}
		}
		trip = domain.RoundTripDates{Departure: departure, Return: *ret}
	case "out":
		trip = domain.OneWayOutDate{Departure: departure}
	case "back":
		trip = domain.OneWayBackDate{Departure: departure}
	default:
		return domain.SearchRequest{}, &UsageError{Reason: fmt.Sprintf("trip must be round, out or back, got %q.", tripKind), Usage: faresUsage}
	}
	if ret != nil && tripKind != "round" {
		return domain.SearchRequest{}, &UsageError{Reason: "return= only applies to round trips.", Usage: faresUsage}
	}

	req := domain.SearchRequest{
		Origin:         origin,
		Destinations:   dests,
		Trip:           trip,
		CabinClass:     cabin,
		DepartureDays:  days,
		MaxPrice:       maxPrice,
		MaxConnections: maxConn,
	}
	if err := req.Validate(); err != nil {
		return domain.SearchRequest{}, &UsageError{Reason: err.Error(), Usage: faresUsage}
	}
	return req, nil
}

// ParseSharkArgs parses `/shark` text into a best-combination search.
func ParseSharkArgs(text string, d Defaults) (domain.BestCombinationRequest, error) {
	positional, opts, err := splitArgs(text, sharkUsage)
	if err != nil {
		return domain.BestCombinationRequest{}, err
	}
	if err := checkKnown(opts, sharkUsage, "days", "min", "max-stay", "max", "class", "from"); err != nil {
		return domain.BestCombinationRequest{}, err
	}
	if len(positional) != 2 {
		return domain.BestCombinationRequest{}, &UsageError{Reason: "Expected one destination and a first departure date.", Usage: sharkUsage}
	}

	dest, err := domain.NormalizeIATA(positional[0])
	if err != nil {
		return domain.BestCombinationRequest{}, &UsageError{Reason: err.Error(), Usage: sharkUsage}
	}
	start, err := dateArg(positional[1], sharkUsage)
	if err != nil {
		return domain.BestCombinationRequest{}, err
	}
	origin, err := originOpt(opts, d, sharkUsage)
	if err != nil {
		return domain.BestCombinationRequest{}, err
	}
	cabin, err := cabinOpt(opts, d, sharkUsage)
	if err != nil {
		return domain.BestCombinationRequest{}, err
	}
	maxPrice, err := priceOpt(opts, d, sharkUsage)
	if err != nil {
		return domain.BestCombinationRequest{}, err
	}
	days, err := intOpt(opts, "days", 1, 1, d.MaxDays, sharkUsage)
	if err != nil {
		return domain.BestCombinationRequest{}, err
	}
	minStay, err := intOpt(opts, "min", defaultMinStay, 1, maxStayDays, sharkUsage)
	if err != nil {
		return domain.BestCombinationRequest{}, err
	}
	defMax := defaultMaxStay
	if defMax < minStay {
		defMax = minStay
	}
	maxStay, err := intOpt(opts, "max-stay", defMax, 1, maxStayDays, sharkUsage)
	if err != nil {
		return domain.BestCombinationRequest{}, err
	}

	req := domain.BestCombinationRequest{
		Origin:        origin,
		Destination:   dest,
		OutboundDates: domain.DateRange(start, days),
		CabinClass:    cabin,
		MaxPrice:      maxPrice,
		MinStay:       minStay,
		MaxStay:       maxStay,
	}
	if err := req.Validate(); err != nil {
		return domain.BestCombinationRequest{}, &UsageError{Reason: err.Error(), Usage: sharkUsage}
	}
	return req, nil
}

type TrendArgs struct {
	Origin      string
	Destination string
	CabinClass  domain.CabinClass
	AheadDays   int
}

func ParseTrendArgs(text string, d Defaults) (TrendArgs, error) {
	positional, opts, err := splitArgs(text, trendUsage)
	if err != nil {
		return TrendArgs{}, err
	}
	if err := checkKnown(opts, trendUsage, "class", "ahead"); err != nil {
		return TrendArgs{}, err
	}

	var originRaw, destRaw string
	switch len(positional) {
	case 1:
		originRaw, destRaw = d.Origin, positional[0]
	case 2:
		originRaw, destRaw = positional[0], positional[1]
	default:
		return TrendArgs{}, &UsageError{Reason: "Expected a destination, optionally preceded by an origin.", Usage: trendUsage}
	}
	origin, err := domain.NormalizeIATA(originRaw)
	if err != nil {
		return TrendArgs{}, &UsageError{Reason: err.Error(), Usage: trendUsage}
	}
	dest, err := domain.NormalizeIATA(destRaw)
	if err != nil {
		return TrendArgs{}, &UsageError{Reason: err.Error(), Usage: trendUsage}
	}
	if origin == dest {
		return TrendArgs{}, &UsageError{Reason: "Origin and destination must differ.", Usage: trendUsage}
	}
	cabin, err := cabinOpt(opts, d, trendUsage)
	if err != nil {
		return TrendArgs{}, err
	}
	ahead, err := intOpt(opts, "ahead", defaultTrendAhead, 0, maxTrendAhead, trendUsage)
	if err != nil {
		return TrendArgs{}, err
	}
	return TrendArgs{Origin: origin, Destination: dest, CabinClass: cabin, AheadDays: ahead}, nil
}
