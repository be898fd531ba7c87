package commands

import (
	"database/sql"
	"fmt"
	"slices"
	"time"

	"github.com/antzucaro/matchr"

	"parkwatch-backend/lib/browser"
	"parkwatch-backend/lib/configutil"
	configsqlite "parkwatch-backend/lib/configutil/sqlite"
	"parkwatch-backend/lib/pricestore"
	"parkwatch-backend/lib/scrape"
	"parkwatch-backend/lib/scrapers/boekingpro"
	"parkwatch-backend/lib/scrapers/bookingexperts"
	"parkwatch-backend/lib/scrapers/holidayagent"
	"parkwatch-backend/lib/scrapers/westerbergen"
)

type ScrapeConfig struct {
	Persons          int     `json:"persons"`
	RateLimitSeconds float64 `json:"rate_limit_seconds"`
	MaxRetries       int     `json:"max_retries"`
	TimeoutSeconds   int     `json:"timeout_seconds"`
	HorizonDays      int     `json:"horizon_days"`
	MaxPages         int     `json:"max_pages"`
}

type CompetitorConfig struct {
	Enabled  bool   `json:"enabled"`
	Platform string `json:"platform"`

	Competitor        string `json:"competitor"`
	AccommodationType string `json:"accommodation_type"`
	Url               string `json:"url"`

	// holidayagent
	ResortSlug string `json:"resort_slug"`
	LevelId    string `json:"level_id"`

	// westerbergen
	BaseUrl     string `json:"base_url"`
	BookingPage string `json:"booking_page"`
	ObjectType  string `json:"object_type"`
	RentalId    string `json:"rental_id"`
}

type Config struct {
	Database    configsqlite.Struct         `json:"database"`
	Scrape      ScrapeConfig                `json:"scrape"`
	Competitors map[string]CompetitorConfig `json:"competitors"`
}

func readConfig() (Config, error) {
	cfg, err := configutil.ReadConfig[Config]("config.json5")
	if err != nil {
		return Config{}, err
	}
	if cfg.Scrape.Persons <= 0 {
		cfg.Scrape.Persons = 4
	}
	if cfg.Scrape.MaxRetries <= 0 {
		cfg.Scrape.MaxRetries = 3
	}
	if cfg.Scrape.TimeoutSeconds <= 0 {
		cfg.Scrape.TimeoutSeconds = 60
	}
	if cfg.Scrape.HorizonDays <= 0 {
		cfg.Scrape.HorizonDays = 90
	}
	return cfg, nil
}

func openStore(cfg Config) (pricestore.Store, *sql.DB, error) {
	database, err := cfg.Database.OpenDB()
	if err != nil {
		return pricestore.Store{}, nil, err
	}
	err = pricestore.Migrate(database)
	if err != nil {
		database.Close()
		return pricestore.Store{}, nil, err
	}
	return pricestore.NewStore(database), database, nil
}

func buildExtractor(key string, cfg CompetitorConfig, opts ScrapeConfig, visible bool) (scrape.Extractor, error) {
	src := scrape.Source{
		Key:               key,
		Competitor:        cfg.Competitor,
		AccommodationType: cfg.AccommodationType,
		URL:               cfg.Url,
	}
	browserOpts := browser.Options{
		Headless: !visible,
		Timeout:  time.Duration(opts.TimeoutSeconds) * time.Second,
	}

	switch cfg.Platform {
	case "bookingexperts":
		return bookingexperts.New(src, browserOpts), nil
	case "boekingpro":
		return boekingpro.New(src, browserOpts), nil
	case "holidayagent":
		return holidayagent.New(src, holidayagent.Options{
			ResortSlug: cfg.ResortSlug,
			LevelID:    cfg.LevelId,
			Timeout:    time.Duration(opts.TimeoutSeconds) * time.Second,
		}), nil
	case "westerbergen":
		return westerbergen.New(src, westerbergen.Options{
			BaseURL:     cfg.BaseUrl,
			BookingPage: cfg.BookingPage,
			ObjectType:  cfg.ObjectType,
			RentalID:    cfg.RentalId,
			Timeout:     time.Duration(opts.TimeoutSeconds) * time.Second,
		}), nil
	}
	return nil, fmt.Errorf("competitor %q has unknown platform %q", key, cfg.Platform)
}

// enabledKeys returns the configured competitor keys in a stable order
// so runs always visit sources in the same sequence.
func enabledKeys(cfg Config) []string {
	var keys []string
	for key, c := range cfg.Competitors {
		if c.Enabled {
			keys = append(keys, key)
		}
	}
	slices.Sort(keys)
	return keys
}

// unknownKeyError points at the closest configured key, scraping runs
// are usually kicked off by hand and typos are common.
func unknownKeyError(requested string, cfg Config) error {
	best := ""
	bestScore := 0.0
	for key := range cfg.Competitors {
		score := matchr.JaroWinkler(requested, key, false)
		if score > bestScore {
			best = key
			bestScore = score
		}
	}
	if best == "" {
		return fmt.Errorf("unknown competitor %q, no competitors configured", requested)
	}
	return fmt.Errorf("unknown competitor %q, did you mean %q?", requested, best)
}
