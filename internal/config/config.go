package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const defaultExternalHTTPTimeout = 30 * time.Second
const defaultExternalHTTPTimeoutSeconds = int(defaultExternalHTTPTimeout / time.Second)

// DefaultDestinations is the destination catalog offered when none is
// configured.
var DefaultDestinations = []string{
	"CDG", "FCO", "LHR", "JFK", "MIA", "YYZ", "MAD", "BCN", "FRA", "AMS",
	"LAX", "SFO", "ORD", "DFW", "ATL", "BOS", "IAD", "SEA", "DEN", "LAS",
}

type Config struct {
	AmadeusClientID     string `yaml:"amadeus_client_id"`
	AmadeusClientSecret string `yaml:"amadeus_client_secret"`
	AmadeusBaseURL      string `yaml:"amadeus_base_url"`
	CurrencyCode        string `yaml:"currency_code"`
	MaxOffers           int    `yaml:"max_offers"`
	RateLimitIntervalMS int    `yaml:"rate_limit_interval_ms"`

	SlackBotToken  string   `yaml:"slack_bot_token"`
	SlackAppToken  string   `yaml:"slack_app_token"`
	AlertChannelID string   `yaml:"alert_channel_id"`
	AlertUsers     []string `yaml:"alert_users"`

	StoreDriver string `yaml:"store_driver"`
	DBPath      string `yaml:"db_path"`
	PostgresURL string `yaml:"postgres_url"`

	DefaultOrigin     string   `yaml:"default_origin"`
	Destinations      []string `yaml:"destinations"`
	DefaultMaxPrice   float64  `yaml:"default_max_price"`
	DefaultCabinClass string   `yaml:"default_cabin_class"`
	SearchConcurrency int      `yaml:"search_concurrency"`
	MaxDepartureDays  int      `yaml:"max_departure_days"`
	CarrierNamesPath  string   `yaml:"carrier_names_path"`

	ReportOutputDir string `yaml:"report_output_dir"`

	LLMProvider     string `yaml:"llm_provider"`
	LLMModel        string `yaml:"llm_model"`
	AnthropicAPIKey string `yaml:"anthropic_api_key"`
	OpenAIAPIKey    string `yaml:"openai_api_key"`

	ExternalHTTPTimeoutSeconds int    `yaml:"external_http_timeout_seconds"`
	Timezone                   string `yaml:"timezone"`

	Watches []WatchConfig `yaml:"watches"`

	Location *time.Location `yaml:"-"` // computed from Timezone, not from YAML
}

// WatchConfig is a saved search that runs on a cron schedule.
type WatchConfig struct {
	Name         string   `yaml:"name"`
	Origin       string   `yaml:"origin"`
	Destinations []string `yaml:"destinations"`
	// DaysAhead is the offset from today of the first departure date.
	DaysAhead  int `yaml:"days_ahead"`
	WindowDays int `yaml:"window_days"`
	// StayDays > 0 makes the watch a round trip of that length.
	StayDays       int     `yaml:"stay_days"`
	CabinClass     string  `yaml:"cabin_class"`
	MaxPrice       float64 `yaml:"max_price"`
	MaxConnections *int    `yaml:"max_connections"`
	Schedule       string  `yaml:"schedule"`
}

func LoadConfig() Config {
	var cfg Config

	configPath := "config.yaml"
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		configPath = envPath
	}
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			log.Fatalf("Error parsing %s: %v", configPath, err)
		}
		log.Printf("Loaded config from %s", configPath)
	}

	envOverride(&cfg.AmadeusClientID, "AMADEUS_CLIENT_ID")
	envOverride(&cfg.AmadeusClientSecret, "AMADEUS_CLIENT_SECRET")
	envOverride(&cfg.AmadeusBaseURL, "AMADEUS_BASE_URL")
	envOverride(&cfg.CurrencyCode, "CURRENCY_CODE")
	envOverrideInt(&cfg.MaxOffers, "MAX_OFFERS")
	envOverrideInt(&cfg.RateLimitIntervalMS, "RATE_LIMIT_INTERVAL_MS")
	envOverride(&cfg.SlackBotToken, "SLACK_BOT_TOKEN")
	envOverride(&cfg.SlackAppToken, "SLACK_APP_TOKEN")
	envOverride(&cfg.AlertChannelID, "ALERT_CHANNEL_ID")
	envOverrideList(&cfg.AlertUsers, "ALERT_USERS")
	envOverride(&cfg.StoreDriver, "STORE_DRIVER")
	envOverride(&cfg.DBPath, "DB_PATH")
	envOverride(&cfg.PostgresURL, "POSTGRES_URL")
	envOverride(&cfg.DefaultOrigin, "DEFAULT_ORIGIN")
	envOverrideList(&cfg.Destinations, "DESTINATIONS")
	envOverrideFloat(&cfg.DefaultMaxPrice, "DEFAULT_MAX_PRICE")
	envOverride(&cfg.DefaultCabinClass, "DEFAULT_CABIN_CLASS")
	envOverrideInt(&cfg.SearchConcurrency, "SEARCH_CONCURRENCY")
	envOverrideInt(&cfg.MaxDepartureDays, "MAX_DEPARTURE_DAYS")
	envOverride(&cfg.CarrierNamesPath, "CARRIER_NAMES_PATH")
	envOverride(&cfg.ReportOutputDir, "REPORT_OUTPUT_DIR")
	envOverride(&cfg.LLMProvider, "LLM_PROVIDER")
	envOverride(&cfg.LLMModel, "LLM_MODEL")
	envOverride(&cfg.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	envOverride(&cfg.OpenAIAPIKey, "OPENAI_API_KEY")
	envOverrideInt(&cfg.ExternalHTTPTimeoutSeconds, "EXTERNAL_HTTP_TIMEOUT_SECONDS")
	envOverride(&cfg.Timezone, "TIMEZONE")

	if cfg.AmadeusBaseURL == "" {
		cfg.AmadeusBaseURL = "https://test.api.amadeus.com"
	}
	if cfg.CurrencyCode == "" {
		cfg.CurrencyCode = "BRL"
	}
	if cfg.MaxOffers == 0 {
		cfg.MaxOffers = 10
	}
	if cfg.StoreDriver == "" {
		cfg.StoreDriver = "sqlite"
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "./flyshark.db"
	}
	if cfg.DefaultOrigin == "" {
		cfg.DefaultOrigin = "GRU"
	}
	if len(cfg.Destinations) == 0 {
		cfg.Destinations = append([]string(nil), DefaultDestinations...)
	}
	if cfg.DefaultMaxPrice == 0 {
		cfg.DefaultMaxPrice = 6500
	}
	if cfg.DefaultCabinClass == "" {
		cfg.DefaultCabinClass = "economy"
	}
	if cfg.SearchConcurrency == 0 {
		cfg.SearchConcurrency = 1
	}
	if cfg.MaxDepartureDays == 0 {
		cfg.MaxDepartureDays = 14
	}
	if cfg.ReportOutputDir == "" {
		cfg.ReportOutputDir = "./reports"
	}
	if cfg.LLMProvider == "" {
		cfg.LLMProvider = "none"
	}
	if cfg.ExternalHTTPTimeoutSeconds == 0 {
		cfg.ExternalHTTPTimeoutSeconds = defaultExternalHTTPTimeoutSeconds
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "Local"
	}

	cfg.DefaultOrigin = strings.ToUpper(strings.TrimSpace(cfg.DefaultOrigin))
	for i, d := range cfg.Destinations {
		cfg.Destinations[i] = strings.ToUpper(strings.TrimSpace(d))
	}

	required := map[string]string{
		"amadeus_client_id":     cfg.AmadeusClientID,
		"amadeus_client_secret": cfg.AmadeusClientSecret,
		"slack_bot_token":       cfg.SlackBotToken,
		"slack_app_token":       cfg.SlackAppToken,
	}
	for name, val := range required {
		if val == "" {
			log.Fatalf("Required config '%s' is not set (via config.yaml or env var)", name)
		}
	}

	switch cfg.StoreDriver {
	case "sqlite":
	case "postgres":
		if cfg.PostgresURL == "" {
			log.Fatalf("postgres_url is required when store_driver=postgres")
		}
	default:
		log.Fatalf("store_driver must be 'sqlite' or 'postgres', got '%s'", cfg.StoreDriver)
	}

	switch cfg.LLMProvider {
	case "none":
	case "anthropic":
		if cfg.AnthropicAPIKey == "" {
			log.Fatalf("anthropic_api_key is required when llm_provider=anthropic")
		}
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			log.Fatalf("openai_api_key is required when llm_provider=openai")
		}
	default:
		log.Fatalf("llm_provider must be 'none', 'anthropic' or 'openai', got '%s'", cfg.LLMProvider)
	}

	if strings.EqualFold(cfg.Timezone, "Local") {
		cfg.Location = time.Local
		cfg.Timezone = time.Local.String()
	} else {
		loc, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			log.Fatalf("invalid timezone '%s': %v", cfg.Timezone, err)
		}
		cfg.Location = loc
	}

	if !isIATA(cfg.DefaultOrigin) {
		log.Fatalf("invalid default_origin '%s': must be a 3-letter IATA code", cfg.DefaultOrigin)
	}
	for _, d := range cfg.Destinations {
		if !isIATA(d) {
			log.Fatalf("invalid destination '%s' in destinations: must be a 3-letter IATA code", d)
		}
	}
	if cfg.MaxOffers < 1 || cfg.MaxOffers > 250 {
		log.Fatalf("invalid max_offers '%d': must be between 1 and 250", cfg.MaxOffers)
	}
	if cfg.DefaultMaxPrice < 0 {
		log.Fatalf("invalid default_max_price '%f': must be >= 0", cfg.DefaultMaxPrice)
	}
	if cfg.SearchConcurrency < 1 {
		log.Fatalf("invalid search_concurrency '%d': must be >= 1", cfg.SearchConcurrency)
	}
	if cfg.MaxDepartureDays < 1 {
		log.Fatalf("invalid max_departure_days '%d': must be >= 1", cfg.MaxDepartureDays)
	}
	if cfg.RateLimitIntervalMS < 0 {
		log.Fatalf("invalid rate_limit_interval_ms '%d': must be >= 0", cfg.RateLimitIntervalMS)
	}
	for i, w := range cfg.Watches {
		if err := validateWatch(w); err != nil {
			log.Fatalf("invalid watches[%d] (%s): %v", i, w.Name, err)
		}
	}

	return cfg
}

func envOverride(field *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}

func envOverrideList(field *[]string, envKey string) {
	val := os.Getenv(envKey)
	if val == "" {
		return
	}
	*field = nil
	for _, part := range strings.Split(val, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			*field = append(*field, part)
		}
	}
}

func envOverrideInt(field *int, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.Atoi(val)
		if err != nil {
			log.Fatalf("invalid %s '%s': %v", envKey, val, err)
		}
		*field = parsed
	}
}

func envOverrideFloat(field *float64, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.ParseFloat(val, 64)
		if err != nil {
			log.Fatalf("invalid %s '%s': %v", envKey, val, err)
		}
		*field = parsed
	}
}

func (c Config) SlackAlertsConfigured() bool {
	return c.AlertChannelID != "" || len(c.AlertUsers) > 0
}

func (c Config) LLMConfigured() bool {
	return c.LLMProvider == "anthropic" || c.LLMProvider == "openai"
}

func isIATA(s string) bool {
	if len(s) != 3 {
		return false
	}
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

func validateWatch(w WatchConfig) error {
	if strings.TrimSpace(w.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if strings.TrimSpace(w.Schedule) == "" {
		return fmt.Errorf("schedule is required")
	}
	if len(w.Destinations) == 0 {
		return fmt.Errorf("at least one destination is required")
	}
	if w.DaysAhead < 0 || w.WindowDays < 0 || w.StayDays < 0 {
		return fmt.Errorf("days_ahead, window_days and stay_days must be >= 0")
	}
	if w.MaxPrice < 0 {
		return fmt.Errorf("max_price must be >= 0")
	}
	return nil
}
