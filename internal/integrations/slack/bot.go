// Package slackbot is the Slack surface of FlyShark: slash commands over
// Socket Mode, file uploads and watch alerts.
package slackbot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"flyshark/internal/config"
	"flyshark/internal/domain"
	"flyshark/internal/fares"
	"flyshark/internal/integrations/llm"
	"flyshark/internal/report"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/socketmode"
)

// Rows shown inline before pointing at the CSV.
const tableRowLimit = 20

// Trend charts read at most this many observations.
const trendHistoryLimit = 500

// FareService is what the commands need from the search layer.
type FareService interface {
	Search(ctx context.Context, req domain.SearchRequest) (fares.SearchResult, error)
	SearchBestCombinations(ctx context.Context, req domain.BestCombinationRequest) (fares.CombinationResult, error)
}

type TrendHistory interface {
	RecentFares(ctx context.Context, origin, destination string, cabin domain.CabinClass, limit int) ([]domain.FareObservation, error)
}

type Services struct {
	Fares    FareService
	History  TrendHistory
	Digester *llm.Digester // nil disables digests
}

func StartSlackBot(cfg config.Config, api *slack.Client, svc Services) error {
	client := socketmode.New(api)

	go func() {
		for evt := range client.Events {
			switch evt.Type {
			case socketmode.EventTypeConnecting:
				log.Println("Connecting to Slack with Socket Mode...")
			case socketmode.EventTypeConnectionError:
				log.Println("Slack Socket Mode connection failed, retrying...")
			case socketmode.EventTypeSlashCommand:
				client.Ack(*evt.Request)
				cmd, ok := evt.Data.(slack.SlashCommand)
				if !ok {
					continue
				}
				log.Printf("Slash command received: %s from user=%s channel=%s", cmd.Command, cmd.UserID, cmd.ChannelID)
				go handleSlashCommand(api, svc, cfg, cmd)
			}
		}
	}()

	log.Println("Slack bot connected via Socket Mode")
	return client.Run()
}

func handleSlashCommand(api *slack.Client, svc Services, cfg config.Config, cmd slack.SlashCommand) {
	switch cmd.Command {
	case "/fares":
		handleFares(api, svc, cfg, cmd)
	case "/shark":
		handleShark(api, svc, cfg, cmd)
	case "/fare-trend":
		handleTrend(api, svc, cfg, cmd)
	case "/fare-help":
		postEphemeral(api, cmd, helpText(cfg))
	}
}

func handleFares(api *slack.Client, svc Services, cfg config.Config, cmd slack.SlashCommand) {
	req, err := ParseFaresArgs(cmd.Text, DefaultsFromConfig(cfg))
	if err != nil {
		postEphemeral(api, cmd, err.Error())
		log.Printf("fares parse error user=%s text=%q: %v", cmd.UserID, cmd.Text, err)
		return
	}

	queries := len(req.Destinations) * max(req.DepartureDays, 1)
	postEphemeral(api, cmd, fmt.Sprintf(":mag: Searching %s → %s (%s, %s), %d quer%s...",
		req.Origin, strings.Join(req.Destinations, ", "), tripLabel(req.Trip), req.CabinClass.Display(),
		queries, plural(queries, "y", "ies")))

	ctx := context.Background()
	res, err := svc.Fares.Search(ctx, req)
	if err != nil {
		postEphemeral(api, cmd, fmt.Sprintf("Search failed: %v", err))
		log.Printf("fares search error user=%s: %v", cmd.UserID, err)
		return
	}

	title := fmt.Sprintf("%s → %s, %s", req.Origin, strings.Join(req.Destinations, ", "), tripLabel(req.Trip))
	msg := faresMessage(title, req, res, cfg.CurrencyCode)
	if svc.Digester != nil && len(res.Rows) > 0 {
		digest, usage, err := svc.Digester.Digest(ctx, llm.DigestInput{Title: title, Currency: cfg.CurrencyCode, Rows: res.Rows})
		if err != nil {
			log.Printf("fares digest error batch=%s: %v", res.BatchID, err)
		} else {
			msg = ":robot_face: " + digest + "\n\n" + msg
			log.Printf("fares digest batch=%s tokens=%d", res.BatchID, usage.TotalTokens())
		}
	}
	if _, _, err := api.PostMessage(cmd.ChannelID, slack.MsgOptionText(msg, false)); err != nil {
		log.Printf("fares post error channel=%s: %v", cmd.ChannelID, err)
		postEphemeral(api, cmd, msg)
	}
	if len(res.Rows) == 0 {
		return
	}

	route := req.Origin + "-" + strings.Join(req.Destinations, ",")
	now := time.Now().In(cfg.Location)
	csvName := report.FileName("fares", route, now, res.BatchID, "csv")
	uploadGenerated(api, cfg, cmd, csvName, "FlyShark fares "+title, "", func(w io.Writer) error {
		return report.WriteResultsCSV(w, res.Rows)
	})

	chartName := report.FileName("fares-chart", route, now, res.BatchID, "pdf")
	uploadGenerated(api, cfg, cmd, chartName, "Lowest price per day", "", func(w io.Writer) error {
		return report.WriteMinPriceChart(w, title, cfg.CurrencyCode, report.MinPriceByDate(res.Rows))
	})
}

func faresMessage(title string, req domain.SearchRequest, res fares.SearchResult, currency string) string {
	rows := append([]domain.ClassifiedOffer(nil), res.Rows...)
	fares.SortRows(rows)

	var b strings.Builder
	fmt.Fprintf(&b, ":shark: *FlyShark results* %s\n", title)
	fmt.Fprintf(&b, "%d fare(s) from %d search(es)", len(rows), res.Queries)
	if res.Filtered > 0 {
		fmt.Fprintf(&b, ", %d over the filters", res.Filtered)
		if !req.MaxPrice.IsZero() {
			fmt.Fprintf(&b, " (max %s)", report.FormatPrice(req.MaxPrice))
		}
	}
	b.WriteString("\n")
	b.WriteString(report.FormatResultsTable(rows, currency, tableRowLimit))
	writeWarnings(&b, res.Warnings)
	return b.String()
}

func handleShark(api *slack.Client, svc Services, cfg config.Config, cmd slack.SlashCommand) {
	req, err := ParseSharkArgs(cmd.Text, DefaultsFromConfig(cfg))
	if err != nil {
		postEphemeral(api, cmd, err.Error())
		log.Printf("shark parse error user=%s text=%q: %v", cmd.UserID, cmd.Text, err)
		return
	}

	postEphemeral(api, cmd, fmt.Sprintf(":shark: Hunting %s → %s combinations over %d outbound date(s), stays of %d-%d days. This can take a while...",
		req.Origin, req.Destination, len(req.OutboundDates), req.MinStay, req.MaxStay))

	ctx := context.Background()
	res, err := svc.Fares.SearchBestCombinations(ctx, req)
	if err != nil {
		postEphemeral(api, cmd, fmt.Sprintf("Search failed: %v", err))
		log.Printf("shark search error user=%s: %v", cmd.UserID, err)
		return
	}
	combos := append([]domain.CombinedOffer(nil), res.Combinations...)
	fares.SortCombinations(combos)

	title := fmt.Sprintf("%s ⇄ %s, %d-%d days", req.Origin, req.Destination, req.MinStay, req.MaxStay)
	var b strings.Builder
	fmt.Fprintf(&b, ":shark: *Best combinations* %s\n", title)
	fmt.Fprintf(&b, "%d combination(s) from %d search(es)\n", len(combos), res.Queries)
	b.WriteString(report.FormatCombinationsTable(combos, cfg.CurrencyCode, tableRowLimit))
	writeWarnings(&b, res.Warnings)
	msg := b.String()

	if svc.Digester != nil && len(combos) > 0 {
		digest, _, err := svc.Digester.Digest(ctx, llm.DigestInput{Title: title, Currency: cfg.CurrencyCode, Combinations: combos})
		if err != nil {
			log.Printf("shark digest error batch=%s: %v", res.BatchID, err)
		} else {
			msg = ":robot_face: " + digest + "\n\n" + msg
		}
	}
	if _, _, err := api.PostMessage(cmd.ChannelID, slack.MsgOptionText(msg, false)); err != nil {
		log.Printf("shark post error channel=%s: %v", cmd.ChannelID, err)
		postEphemeral(api, cmd, msg)
	}
	if len(combos) == 0 {
		return
	}

	name := report.FileName("shark", req.Origin+"-"+req.Destination, time.Now().In(cfg.Location), res.BatchID, "csv")
	uploadGenerated(api, cfg, cmd, name, "FlyShark combinations "+title, "", func(w io.Writer) error {
		return report.WriteCombinationsCSV(w, combos)
	})
}

func handleTrend(api *slack.Client, svc Services, cfg config.Config, cmd slack.SlashCommand) {
	args, err := ParseTrendArgs(cmd.Text, DefaultsFromConfig(cfg))
	if err != nil {
		postEphemeral(api, cmd, err.Error())
		return
	}

	history, err := svc.History.RecentFares(context.Background(), args.Origin, args.Destination, args.CabinClass, trendHistoryLimit)
	if err != nil {
		postEphemeral(api, cmd, fmt.Sprintf("Could not load fare history: %v", err))
		log.Printf("fare-trend history error route=%s-%s: %v", args.Origin, args.Destination, err)
		return
	}
	if len(history) == 0 {
		postEphemeral(api, cmd, fmt.Sprintf("No fare history yet for %s → %s (%s). Run `/fares` first.",
			args.Origin, args.Destination, args.CabinClass.Display()))
		return
	}

	points := report.HistoryPoints(history)
	projection := report.ProjectTrend(points, args.AheadDays)
	summary := trendSummary(args, points, projection, cfg.CurrencyCode)

	title := fmt.Sprintf("%s → %s %s price history", args.Origin, args.Destination, args.CabinClass.Display())
	name := report.FileName("trend", args.Origin+"-"+args.Destination, time.Now().In(cfg.Location), string(args.CabinClass), "pdf")
	uploadGenerated(api, cfg, cmd, name, title, summary, func(w io.Writer) error {
		return report.WriteTrendChart(w, title, cfg.CurrencyCode, points, projection)
	})
}

func trendSummary(args TrendArgs, points, projection []report.PricePoint, currency string) string {
	slope, _, ok := report.LinearTrend(points)
	msg := fmt.Sprintf(":chart_with_upwards_trend: %s → %s (%s): %d observation(s).",
		args.Origin, args.Destination, args.CabinClass.Display(), len(points))
	if !ok {
		return msg + " Not enough spread in the history to fit a trend."
	}
	direction := "flat"
	switch {
	case slope > 0.5:
		direction = "rising"
	case slope < -0.5:
		direction = "falling"
	}
	msg += fmt.Sprintf(" Trend is %s (%+.2f %s/day).", direction, slope, currency)
	if len(projection) > 0 {
		last := projection[len(projection)-1]
		msg += fmt.Sprintf(" Projected %s on %s.", formatFloatPrice(last.Price), last.Date.Format(domain.DateLayout))
	}
	return msg
}

func formatFloatPrice(p float64) string {
	return fmt.Sprintf("%.2f", p)
}

func writeWarnings(b *strings.Builder, warnings []string) {
	if len(warnings) == 0 {
		return
	}
	const maxWarnings = 5
	b.WriteString("\n")
	for i, w := range warnings {
		if i == maxWarnings {
			fmt.Fprintf(b, "\n:warning: ...and %d more warning(s)", len(warnings)-maxWarnings)
			break
		}
		fmt.Fprintf(b, "\n:warning: %s", w)
	}
}

// uploadGenerated writes a file under the report dir and uploads it to the
// command's channel. Failures are reported to the user and logged.
func uploadGenerated(api *slack.Client, cfg config.Config, cmd slack.SlashCommand, name, title, comment string, write func(io.Writer) error) {
	path, err := report.WriteFile(cfg.ReportOutputDir, name, write)
	if err != nil {
		if errors.Is(err, report.ErrNoChartData) {
			return
		}
		log.Printf("Error writing %s: %v", name, err)
		postEphemeral(api, cmd, fmt.Sprintf("Error writing %s: %v", name, err))
		return
	}

	fi, err := os.Stat(path)
	if err != nil {
		log.Printf("Error stating %s: %v", path, err)
		postEphemeral(api, cmd, fmt.Sprintf("Error reading generated file: %v", err))
		return
	}
	if fi.Size() <= 0 {
		log.Printf("Error uploading file: generated file is empty path=%s", path)
		return
	}

	_, err = api.UploadFileV2(slack.UploadFileV2Parameters{
		File:           path,
		FileSize:       int(fi.Size()),
		Filename:       filepath.Base(path),
		Channel:        cmd.ChannelID,
		Title:          title,
		InitialComment: comment,
	})
	if err != nil {
		log.Printf("Error uploading %s: %v", path, err)
		postEphemeral(api, cmd, "Error uploading file to channel. Check bot permissions.")
		return
	}
	log.Printf("uploaded file=%s size=%d channel=%s", path, fi.Size(), cmd.ChannelID)
}

func tripLabel(t domain.Trip) string {
	switch trip := t.(type) {
	case domain.RoundTripDates:
		return fmt.Sprintf("round trip %s / %s", trip.Departure.Format(domain.DateLayout), trip.Return.Format(domain.DateLayout))
	case domain.OneWayBackDate:
		return "return only " + trip.Departure.Format(domain.DateLayout)
	case domain.OneWayOutDate:
		return "one way " + trip.Departure.Format(domain.DateLayout)
	}
	return ""
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

func helpText(cfg config.Config) string {
	lines := []string{
		"*FlyShark Commands*",
		"",
		"`/fares <DEST[,DEST...]|all> <YYYY-MM-DD> [options]` — Search fares and rate them against history.",
		">`days=N` search N consecutive departure dates. `return=YYYY-MM-DD` makes it a round trip.",
		">`trip=round|out|back` `class=economy|business|any` `max=PRICE` (`max=none` for no cap) `conn=none|0|1|2|3` `from=ORIG`",
		">*Example:* `/fares CDG,FCO 2026-12-01 return=2026-12-15 days=3 max=5000`",
		"",
		"`/shark <DEST> <YYYY-MM-DD> [days=N] [min=7] [max-stay=10] [max=PRICE]` — Pair one-way fares into the cheapest round trips.",
		">Returns are searched for outbound fares under `max` or rated Cheap/Opportunity.",
		"",
		"`/fare-trend [ORIG] <DEST> [class=...] [ahead=30]` — Chart the fare history with a projected trend.",
		"`/fare-help` — Show this help.",
		"",
		fmt.Sprintf("Defaults: origin %s, max price %s %s, class %s, up to %d departure dates.",
			cfg.DefaultOrigin, report.FormatPrice(DefaultsFromConfig(cfg).MaxPrice), cfg.CurrencyCode,
			DefaultsFromConfig(cfg).CabinClass.Display(), DefaultsFromConfig(cfg).MaxDays),
		"Status: :fire: Opportunity, :large_green_circle: Cheap, :large_yellow_circle: Average, :red_circle: Expensive.",
	}
	return strings.Join(lines, "\n")
}

func postEphemeral(api *slack.Client, cmd slack.SlashCommand, text string) {
	postEphemeralTo(api, cmd.ChannelID, cmd.UserID, text)
}

func postEphemeralTo(api *slack.Client, channelID, userID, text string) {
	_, err := api.PostEphemeral(channelID, userID, slack.MsgOptionText(text, false))
	if err != nil {
		log.Printf("Error posting ephemeral: %v", err)
	}
}
