package commands

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"parkwatch-backend/lib/serviceutil"
)

var (
	summaryDate *string
	summaryDays *int
)

func init() {
	summaryDate = summaryCmd.Flags().String("date", "", "Scrape day to summarize, defaults to the latest.")
	summaryDays = summaryCmd.Flags().Int("days", 0, "Also show per-competitor stats over the last N days.")
	rootCmd.AddCommand(summaryCmd)
}

var summaryCmd = &cobra.Command{
	Use:   "summary [--date <YYYY-MM-DD>] [--days <n>]",
	Short: "Shows the outcome of a scrape day per competitor.",
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

		date := *summaryDate
		if date == "" {
			date, err = store.LatestScrapeDate(cmd.Context())
			if err != nil {
				serviceutil.Fatal("failed to resolve latest scrape day", err)
			}
			if date == "" {
				fmt.Println("no scrape runs recorded yet")
				return
			}
		}

		entries, err := store.ScrapeSummary(cmd.Context(), date)
		if err != nil {
			serviceutil.Fatal("failed to query summary", err)
		}

		fmt.Printf("scrape day %s\n", date)
		t := newTable()
		t.AppendHeader(table.Row{"Competitor", "Status", "Records", "Error", "Duration"})
		for _, e := range entries {
			t.AppendRow(table.Row{
				e.Competitor,
				e.Status,
				e.RecordsScraped,
				e.ErrorMessage,
				e.Duration.Round(time.Second),
			})
		}
		t.Render()

		if *summaryDays > 0 {
			stats, err := store.ScrapeStats(cmd.Context(), *summaryDays)
			if err != nil {
				serviceutil.Fatal("failed to query stats", err)
			}

			fmt.Printf("\nlast %d days\n", *summaryDays)
			st := newTable()
			st.AppendHeader(table.Row{"Competitor", "Status", "Runs", "Avg records", "Avg duration"})
			for _, s := range stats {
				st.AppendRow(table.Row{
					s.Competitor,
					s.Status,
					s.Count,
					fmt.Sprintf("%.1f", s.AvgRecords),
					s.AvgDuration.Round(time.Second),
				})
			}
			st.Render()
		}
	},
}
