// Package watch runs saved fare searches on a cron schedule and alerts when
// they turn up Cheap or Opportunity fares.
package watch

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"flyshark/internal/config"
	"flyshark/internal/domain"
	"flyshark/internal/fares"
	"flyshark/internal/report"

	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
)

// Alerts list at most this many fares.
const maxAlertRows = 10

type FareSearcher interface {
	Search(ctx context.Context, req domain.SearchRequest) (fares.SearchResult, error)
}

type Alert struct {
	Watch string
	Text  string
	Rows  []domain.ClassifiedOffer
}

type Notifier interface {
	Notify(ctx context.Context, alert Alert) error
}

// BuildRequest turns a watch into a search whose first departure is
// DaysAhead days after today in now's location.
func BuildRequest(w config.WatchConfig, defaultOrigin string, now time.Time) (domain.SearchRequest, error) {
	originRaw := w.Origin
	if strings.TrimSpace(originRaw) == "" {
		originRaw = defaultOrigin
	}
	origin, err := domain.NormalizeIATA(originRaw)
	if err != nil {
		return domain.SearchRequest{}, err
	}

	dests := make([]string, 0, len(w.Destinations))
	for _, d := range w.Destinations {
		code, err := domain.NormalizeIATA(d)
		if err != nil {
			return domain.SearchRequest{}, err
		}
		dests = append(dests, code)
	}

	cabinRaw := w.CabinClass
	if cabinRaw == "" {
		cabinRaw = "economy"
	}
	cabin, err := domain.ParseCabinClass(cabinRaw)
	if err != nil {
		return domain.SearchRequest{}, err
	}

	first := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, w.DaysAhead)

	var trip domain.Trip = domain.OneWayOutDate{Departure: first}
	if w.StayDays > 0 {
		trip = domain.RoundTripDates{Departure: first, Return: first.AddDate(0, 0, w.StayDays)}
	}

	days := w.WindowDays
	if days < 1 {
		days = 1
	}

	req := domain.SearchRequest{
		Origin:         origin,
		Destinations:   dests,
		Trip:           trip,
		CabinClass:     cabin,
		DepartureDays:  days,
		MaxPrice:       decimal.NewFromFloat(w.MaxPrice),
		MaxConnections: w.MaxConnections,
	}
	return req, req.Validate()
}

type RunResult struct {
	Search   fares.SearchResult
	Bargains []domain.ClassifiedOffer
	Notified bool
}

// RunWatch searches once and notifies if any Cheap or Opportunity fare
// passed the watch filters. A quiet run sends nothing.
func RunWatch(ctx context.Context, searcher FareSearcher, notifier Notifier, w config.WatchConfig, cfg config.Config, now time.Time) (RunResult, error) {
	req, err := BuildRequest(w, cfg.DefaultOrigin, now)
	if err != nil {
		return RunResult{}, fmt.Errorf("watch %s: %w", w.Name, err)
	}

	res, err := searcher.Search(ctx, req)
	if err != nil {
		return RunResult{}, fmt.Errorf("watch %s search: %w", w.Name, err)
	}
	out := RunResult{Search: res}
	for _, r := range res.Rows {
		if r.Label.IsBargain() {
			out.Bargains = append(out.Bargains, r)
		}
	}
	fares.SortRows(out.Bargains)
	log.Printf("watch run name=%s batch=%s rows=%d bargains=%d warnings=%d",
		w.Name, res.BatchID, len(res.Rows), len(out.Bargains), len(res.Warnings))

	if len(out.Bargains) == 0 || notifier == nil {
		return out, nil
	}
	alert := Alert{Watch: w.Name, Text: FormatAlert(w, req, out, cfg.CurrencyCode), Rows: out.Bargains}
	if err := notifier.Notify(ctx, alert); err != nil {
		return out, fmt.Errorf("watch %s notify: %w", w.Name, err)
	}
	out.Notified = true
	return out, nil
}

func FormatAlert(w config.WatchConfig, req domain.SearchRequest, run RunResult, currency string) string {
	first := req.Trip.FirstDeparture()
	last := first.AddDate(0, 0, req.DepartureDays-1)

	var b strings.Builder
	fmt.Fprintf(&b, ":shark: *Watch %s*: %d bargain fare(s) %s → %s, departing %s",
		w.Name, len(run.Bargains), req.Origin, strings.Join(req.Destinations, ", "), first.Format(domain.DateLayout))
	if req.DepartureDays > 1 {
		fmt.Fprintf(&b, " to %s", last.Format(domain.DateLayout))
	}
	b.WriteString("\n")
	b.WriteString(report.FormatResultsTable(run.Bargains, currency, maxAlertRows))
	if len(run.Search.Warnings) > 0 {
		fmt.Fprintf(&b, "\n:warning: %s", strings.Join(run.Search.Warnings, "\n:warning: "))
	}
	return b.String()
}

type scheduledWatch struct {
	watch config.WatchConfig
	sched cron.Schedule
}

func parseSchedules(watches []config.WatchConfig) ([]scheduledWatch, []error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	var out []scheduledWatch
	var errs []error
	for _, w := range watches {
		sched, err := parser.Parse(strings.TrimSpace(w.Schedule))
		if err != nil {
			errs = append(errs, fmt.Errorf("watch %s: invalid schedule '%s': %w", w.Name, w.Schedule, err))
			continue
		}
		out = append(out, scheduledWatch{watch: w, sched: sched})
	}
	return out, errs
}

// StartWatchScheduler starts one goroutine per watch. Each sleeps until its
// next cron time, runs, and repeats. Watches with a bad schedule are skipped.
func StartWatchScheduler(cfg config.Config, searcher FareSearcher, notifier Notifier) {
	if len(cfg.Watches) == 0 {
		log.Println("Fare watches disabled (no watches configured)")
		return
	}
	scheduled, errs := parseSchedules(cfg.Watches)
	for _, err := range errs {
		log.Printf("%v; watch disabled", err)
	}

	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	for _, sw := range scheduled {
		sw := sw
		log.Printf("Fare watch scheduled name=%s cron=%s destinations=%s", sw.watch.Name, sw.watch.Schedule, strings.Join(sw.watch.Destinations, ","))
		go func() {
			for {
				now := time.Now().In(loc)
				next := sw.sched.Next(now)
				wait := next.Sub(now)
				log.Printf("Next watch run name=%s at %s (in %s)", sw.watch.Name, next.Format("Mon Jan 2 15:04"), wait.Round(time.Minute))

				time.Sleep(wait)

				if _, err := RunWatch(context.Background(), searcher, notifier, sw.watch, cfg, time.Now().In(loc)); err != nil {
					log.Printf("Watch run error: %v", err)
				}
			}
		}()
	}
}
