package commands

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"parkwatch-backend/lib/serviceutil"
)

var latestCompetitor *string

func init() {
	latestCompetitor = latestCmd.Flags().String("competitor", "", "Show only this competitor.")
	rootCmd.AddCommand(latestCmd)
}

var latestCmd = &cobra.Command{
	Use:   "latest [--competitor <name>]",
	Short: "Shows the most recent price per stay window.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := readConfig()
		if err != nil {
			serviceutil.Fatal("failed to read config", err)
		}
		store, database, err := openStore(cfg)
		if err != nil {
			serviceutil.Fatal("failed to open database", err)
		}
		defer database.Close()

		records, err := store.LatestPrices(cmd.Context(), *latestCompetitor)
		if err != nil {
			serviceutil.Fatal("failed to query latest prices", err)
		}

		t := newTable()
		t.AppendHeader(table.Row{
			"Competitor", "Check-in", "Check-out", "Nights",
			"Price", "Available", "Special offer", "Scraped",
		})
		for _, r := range records {
			t.AppendRow(table.Row{
				r.Competitor,
				r.CheckIn.Format("2006-01-02"),
				r.CheckOut.Format("2006-01-02"),
				r.Nights(),
				formatPrice(r.Price),
				formatBool(r.Available),
				r.SpecialOffers,
				r.ScrapeDate,
			})
		}
		t.Render()
	},
}

func formatPrice(price *float64) string {
	if price == nil {
		return "-"
	}
	return fmt.Sprintf("€ %.2f", *price)
}

func formatBool(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
