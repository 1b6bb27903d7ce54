package app

import (
	"log"
	"os"
	"strings"
	"time"

	"flyshark/internal/config"
	"flyshark/internal/fares"
	"flyshark/internal/httpx"
	"flyshark/internal/integrations/amadeus"
	"flyshark/internal/integrations/llm"
	slackbot "flyshark/internal/integrations/slack"
	"flyshark/internal/storage/postgres"
	"flyshark/internal/storage/sqlite"
	"flyshark/internal/watch"

	"github.com/slack-go/slack"
)

const postgresPingTimeout = 10 * time.Second

type fareStore interface {
	fares.Store
	slackbot.TrendHistory
	Close() error
}

func openStore(cfg config.Config) (fareStore, error) {
	switch cfg.StoreDriver {
	case "postgres":
		store, err := postgres.Open(cfg.PostgresURL)
		if err != nil {
			return nil, err
		}
		if err := store.Ping(postgresPingTimeout); err != nil {
			store.Close()
			return nil, err
		}
		return store, nil
	default:
		store, err := sqlite.Open(cfg.DBPath)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
}

func Main() {
	cfg := config.LoadConfig()
	appliedHTTPTimeout := httpx.ConfigureExternalHTTPClient(cfg.ExternalHTTPTimeoutSeconds)
	log.Printf(
		"Config loaded. Origin=%s Destinations=%d Currency=%s MaxPrice=%.2f Store=%s Concurrency=%d LLMProvider=%s Watches=%d Timezone=%s ExternalHTTPTimeout=%s",
		cfg.DefaultOrigin,
		len(cfg.Destinations),
		cfg.CurrencyCode,
		cfg.DefaultMaxPrice,
		cfg.StoreDriver,
		cfg.SearchConcurrency,
		cfg.LLMProvider,
		len(cfg.Watches),
		cfg.Timezone,
		appliedHTTPTimeout,
	)

	store, err := openStore(cfg)
	if err != nil {
		log.Fatalf("Failed to init fare store: %v", err)
	}
	defer store.Close()
	log.Printf("Fare store initialized driver=%s", cfg.StoreDriver)

	carriers := fares.DefaultCarrierNames()
	if cfg.CarrierNamesPath != "" {
		loaded, err := fares.LoadCarrierNames(cfg.CarrierNamesPath)
		if err != nil {
			log.Printf("Carrier names not loaded from %s, using built-in list: %v", cfg.CarrierNamesPath, err)
		} else {
			carriers = loaded
			log.Printf("Carrier names loaded: %d entries", len(loaded))
		}
	}

	provider := amadeus.NewRateLimited(
		amadeus.FromConfig(cfg),
		time.Duration(cfg.RateLimitIntervalMS)*time.Millisecond,
	)
	searcher := fares.NewSearcher(provider, store, carriers)
	searcher.Concurrency = cfg.SearchConcurrency

	if err := os.MkdirAll(cfg.ReportOutputDir, 0o755); err != nil {
		log.Fatalf("Failed to create report dir %s: %v", cfg.ReportOutputDir, err)
	}
	log.Printf("Report output dir: %s", cfg.ReportOutputDir)

	api := slack.New(
		cfg.SlackBotToken,
		slack.OptionAppLevelToken(cfg.SlackAppToken),
	)

	var notifier watch.Notifier
	if cfg.SlackAlertsConfigured() {
		notifier = slackbot.NewNotifier(api, cfg.AlertChannelID, cfg.AlertUsers)
		log.Printf("Watch alerts channel=%q users=%s", cfg.AlertChannelID, strings.Join(cfg.AlertUsers, ","))
	}
	watch.StartWatchScheduler(cfg, searcher, notifier)

	digester := llm.NewDigester(cfg)

	log.Println("Starting FlyShark...")
	err = slackbot.StartSlackBot(cfg, api, slackbot.Services{
		Fares:    searcher,
		History:  store,
		Digester: digester,
	})
	if err != nil {
		log.Fatalf("Slack bot error: %v", err)
	}
}
