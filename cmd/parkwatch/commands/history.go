package commands

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"parkwatch-backend/lib/serviceutil"
	"parkwatch-backend/lib/timezone"
)

func init() {
	rootCmd.AddCommand(historyCmd)
}

var historyCmd = &cobra.Command{
	Use:   "history <competitor> <check-in>",
	Short: "Shows how one stay's price moved across scrape days.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		checkIn, err := time.ParseInLocation(time.DateOnly, args[1], timezone.Location)
		if err != nil {
			return fmt.Errorf("check-in must be YYYY-MM-DD: %w", err)
		}

		cfg, err := readConfig()
		if err != nil {
			serviceutil.Fatal("failed to read config", err)
		}
		store, database, err := openStore(cfg)
		if err != nil {
			serviceutil.Fatal("failed to open database", err)
		}
		defer database.Close()

		records, err := store.History(cmd.Context(), args[0], checkIn)
		if err != nil {
			serviceutil.Fatal("failed to query history", err)
		}

		t := newTable()
		t.AppendHeader(table.Row{
			"Scrape day", "Check-out", "Nights", "Price", "Available", "Special offer",
		})
		for _, r := range records {
			t.AppendRow(table.Row{
				r.ScrapeDate,
				r.CheckOut.Format("2006-01-02"),
				r.Nights(),
				formatPrice(r.Price),
				formatBool(r.Available),
				r.SpecialOffers,
			})
		}
		t.Render()
		return nil
	},
}
