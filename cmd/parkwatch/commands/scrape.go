package commands

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"parkwatch-backend/lib/datewindow"
	"parkwatch-backend/lib/pricestore"
	"parkwatch-backend/lib/restyutil"
	"parkwatch-backend/lib/scrape"
	"parkwatch-backend/lib/scrapers/holidayagent"
	"parkwatch-backend/lib/scrapers/westerbergen"
	"parkwatch-backend/lib/serviceutil"
	"parkwatch-backend/lib/telemetry"
	"parkwatch-backend/lib/timezone"
)

var (
	scrapeCompetitor *string
	scrapeDays       *int
	scrapeDryRun     *bool
	scrapeVisible    *bool
	scrapeVerbose    *bool
)

func init() {
	scrapeCompetitor = scrapeCmd.Flags().String("competitor", "", "Scrape only this competitor key.")
	scrapeDays = scrapeCmd.Flags().Int("days", 0, "Override the scrape horizon in days.")
	scrapeDryRun = scrapeCmd.Flags().Bool("dry-run", false, "Parse everything, persist nothing.")
	scrapeVisible = scrapeCmd.Flags().Bool("visible", false, "Run browsers headful for debugging.")
	scrapeVerbose = scrapeCmd.Flags().Bool("verbose", false, "Enable debug logging.")
	rootCmd.AddCommand(scrapeCmd)
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape [--competitor <key>] [--days <n>] [--dry-run] [--visible] [--verbose]",
	Short: "Scrapes all enabled competitors according to config.json5.",
	Run: func(cmd *cobra.Command, args []string) {
		telemetry.InitSlog(*scrapeVerbose)
		telemetry.InstrumentPerfStats(cmd.Context())
		if *scrapeVerbose {
			holidayagent.SetRestyInstrumentOutput(restyutil.NewFilesystemOutput(".dev/resty/holidayagent"))
			westerbergen.SetRestyInstrumentOutput(restyutil.NewFilesystemOutput(".dev/resty/westerbergen"))
		}

		cfg, err := readConfig()
		if err != nil {
			serviceutil.Fatal("failed to read config", err)
		}

		keys := enabledKeys(cfg)
		if *scrapeCompetitor != "" {
			if _, ok := cfg.Competitors[*scrapeCompetitor]; !ok {
				serviceutil.Fatal("bad --competitor flag", unknownKeyError(*scrapeCompetitor, cfg))
			}
			keys = []string{*scrapeCompetitor}
		}
		if len(keys) == 0 {
			slog.Warn("no competitors enabled, nothing to do")
			return
		}

		store, database, err := openStore(cfg)
		if err != nil {
			serviceutil.Fatal("failed to open database", err)
		}
		defer database.Close()

		horizonDays := cfg.Scrape.HorizonDays
		if *scrapeDays > 0 {
			horizonDays = *scrapeDays
		}
		now := timezone.Now()

		windowCfg := datewindow.DefaultConfig()
		windowCfg.DaysAhead = daysWithinHorizon(windowCfg.DaysAhead, horizonDays)

		opts := scrape.Options{
			RateLimit:  time.Duration(cfg.Scrape.RateLimitSeconds * float64(time.Second)),
			MaxRetries: cfg.Scrape.MaxRetries,
			Persons:    cfg.Scrape.Persons,
			Horizon:    now.AddDate(0, 0, horizonDays),
			MaxPages:   cfg.Scrape.MaxPages,
			DryRun:     *scrapeDryRun,
			Windows:    datewindow.Generate(now, windowCfg),
		}

		runner := scrape.NewRunner(store)
		statuses := runPass(cmd.Context(), runner, cfg, keys, opts)

		// one retry pass over whole failed sources, transient trouble
		// with one platform should not cost a day of price history
		var failed []string
		for _, key := range keys {
			if statuses[key] == pricestore.StatusFailed {
				failed = append(failed, key)
			}
		}
		if len(failed) > 0 && !*scrapeDryRun {
			slog.Info("retrying failed sources", "sources", failed)
			retried := runPass(cmd.Context(), runner, cfg, failed, opts)
			for key, status := range retried {
				statuses[key] = status
			}
		}

		exitCode := 0
		for _, key := range keys {
			slog.Info("final status", "competitor", key, "status", statuses[key])
			if statuses[key] == pricestore.StatusFailed {
				exitCode = 1
			}
		}
		if exitCode != 0 {
			os.Exit(exitCode)
		}
	},
}

func runPass(
	ctx context.Context,
	runner scrape.Runner,
	cfg Config,
	keys []string,
	opts scrape.Options,
) map[string]pricestore.Status {
	statuses := map[string]pricestore.Status{}

	for _, key := range keys {
		x, err := buildExtractor(key, cfg.Competitors[key], cfg.Scrape, *scrapeVisible)
		if err != nil {
			slog.Error("failed to build extractor", "competitor", key, "err", err)
			statuses[key] = pricestore.StatusFailed
			continue
		}

		entry, err := runner.Run(ctx, x, opts)
		if err != nil {
			slog.Error("run failed", "competitor", key, "err", err)
			statuses[key] = pricestore.StatusFailed
			continue
		}
		statuses[key] = entry.Status
	}
	return statuses
}

func daysWithinHorizon(daysAhead []int, horizonDays int) []int {
	var out []int
	for _, d := range daysAhead {
		if d <= horizonDays {
			out = append(out, d)
		}
	}
	return out
}
