// Package pricestore owns the persisted price time series. Rows are
// versioned by scrape date: a later scrape supersedes an earlier one
// logically, never physically.
package pricestore

import (
	"context"
	"database/sql"
	"slices"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"parkwatch-backend/lib/pricestore/db"
	"parkwatch-backend/lib/timezone"
)

var tracer = otel.Tracer("parkwatch.lib.pricestore")

// OwnUnitName is the competitor_name under which the operator's own
// unit is stored.
const OwnUnitName = "Westerbergen"

type Status string

const (
	StatusSuccess Status = "success"
	StatusPartial Status = "partial"
	StatusFailed  Status = "failed"
	StatusDryRun  Status = "dry-run"
)

// Record is one quoted price for one (competitor, check-in, check-out)
// combination observed on one scrape day.
type Record struct {
	Competitor        string
	AccommodationType string
	CheckIn           time.Time
	CheckOut          time.Time
	// nil means the price could not be read. A nil price never
	// overwrites a stored one unless SoldOut is set.
	Price     *float64
	Available bool
	// SoldOut marks an affirmatively observed sold-out state, as
	// opposed to a parse failure that also yields a nil price.
	SoldOut       bool
	MinNights     int
	SpecialOffers string
	Persons       int
}

// Nights returns the stay length implied by the date pair, counted in
// calendar days.
func (r Record) Nights() int {
	nights := 0
	for d := r.CheckIn; d.Before(r.CheckOut); d = d.AddDate(0, 0, 1) {
		nights++
	}
	return nights
}

type LogEntry struct {
	Competitor     string
	Status         Status
	RecordsScraped int
	ErrorMessage   string
	Duration       time.Duration
}

type Store struct {
	db  *sql.DB
	qry *db.Queries

	// Now is the capture clock, overridable in tests to simulate
	// scrape days.
	Now func() time.Time
}

func NewStore(database *sql.DB) Store {
	return Store{
		db:  database,
		qry: db.New(database),
		Now: timezone.Now,
	}
}

// Migrate creates the schema if it does not exist yet and switches the
// database to WAL so report readers don't block the scrape writer.
func Migrate(database *sql.DB) error {
	_, err := database.Exec("PRAGMA journal_mode=WAL")
	if err != nil {
		return err
	}
	_, err = database.Exec(db.Schema)
	return err
}

// SavePrice upserts one record under the merge rule: on conflict for
// the same (competitor, check-in, check-out, scrape-day) key, price
// and availability are only overwritten when the incoming price is
// known or the record affirmatively reports a sold-out state. All
// other fields always take the newest value.
func (s Store) SavePrice(ctx context.Context, rec Record) error {
	ctx, span := tracer.Start(ctx, "SavePrice")
	defer span.End()

	now := s.Now()
	params := db.UpsertPriceParams{
		CompetitorName:    rec.Competitor,
		AccommodationType: rec.AccommodationType,
		CheckInDate:       rec.CheckIn.Format(time.DateOnly),
		CheckOutDate:      rec.CheckOut.Format(time.DateOnly),
		Price:             nullFloat(rec.Price),
		Available:         boolInt(rec.Available),
		MinNights:         sql.NullInt64{Int64: int64(rec.MinNights), Valid: rec.MinNights > 0},
		SpecialOffers:     nullString(rec.SpecialOffers),
		Persons:           int64(rec.Persons),
		ScrapeTimestamp:   now.Format(time.RFC3339),
		ScrapeDate:        now.Format(time.DateOnly),
	}

	var err error
	if rec.SoldOut {
		err = s.qry.UpsertObservedPrice(ctx, db.UpsertObservedPriceParams(params))
	} else {
		err = s.qry.UpsertPrice(ctx, params)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// StoredRecord is a Record as it exists in the database, along with
// its versioning fields.
type StoredRecord struct {
	Record
	ScrapeTimestamp time.Time
	ScrapeDate      string
}

// LatestPrices returns, per (competitor, check-in, check-out) key, only
// the row with the most recent capture timestamp. An empty competitor
// returns all sources.
func (s Store) LatestPrices(ctx context.Context, competitor string) ([]StoredRecord, error) {
	ctx, span := tracer.Start(ctx, "LatestPrices")
	defer span.End()

	var rows []db.Price
	var err error
	if competitor == "" {
		rows, err = s.qry.GetLatestPrices(ctx)
	} else {
		rows, err = s.qry.GetLatestPricesByCompetitor(ctx, competitor)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return fromRows(rows), nil
}

// ComparisonRows returns the rows of one scrape day whose stay length
// is in the accepted set. The night count is derived from the date
// pair, not from the stored min_nights field.
func (s Store) ComparisonRows(ctx context.Context, scrapeDate string, nights []int) ([]StoredRecord, error) {
	ctx, span := tracer.Start(ctx, "ComparisonRows")
	defer span.End()

	rows, err := s.qry.GetPricesByScrapeDate(ctx, scrapeDate)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	var out []StoredRecord
	for _, rec := range fromRows(rows) {
		if slices.Contains(nights, rec.Nights()) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// History returns all rows across scrape days for one stay, ordered by
// capture time.
func (s Store) History(ctx context.Context, competitor string, checkIn time.Time) ([]StoredRecord, error) {
	ctx, span := tracer.Start(ctx, "History")
	defer span.End()

	rows, err := s.qry.GetPriceHistory(ctx, db.GetPriceHistoryParams{
		CompetitorName: competitor,
		CheckInDate:    checkIn.Format(time.DateOnly),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return fromRows(rows), nil
}

// ScrapeDates returns all distinct scrape days, most recent first.
func (s Store) ScrapeDates(ctx context.Context) ([]string, error) {
	return s.qry.GetScrapeDates(ctx)
}

// LatestScrapeDate returns the most recent scrape day, or "" when the
// store is empty.
func (s Store) LatestScrapeDate(ctx context.Context) (string, error) {
	return s.qry.GetLatestScrapeDate(ctx)
}

// LogScrape appends one audit row; entries are never updated.
func (s Store) LogScrape(ctx context.Context, entry LogEntry) error {
	ctx, span := tracer.Start(ctx, "LogScrape")
	defer span.End()

	err := s.qry.InsertScrapeLog(ctx, db.InsertScrapeLogParams{
		CompetitorName: entry.Competitor,
		Timestamp:      s.Now().Format(time.RFC3339),
		Status:         string(entry.Status),
		RecordsScraped: int64(entry.RecordsScraped),
		ErrorMessage:   nullString(entry.ErrorMessage),
		DurationSeconds: sql.NullFloat64{
			Float64: entry.Duration.Seconds(),
			Valid:   true,
		},
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

type SummaryEntry struct {
	Competitor     string
	Timestamp      time.Time
	Status         Status
	RecordsScraped int
	ErrorMessage   string
	Duration       time.Duration
}

// ScrapeSummary returns the latest log entry per competitor for one
// calendar day.
func (s Store) ScrapeSummary(ctx context.Context, date string) ([]SummaryEntry, error) {
	ctx, span := tracer.Start(ctx, "ScrapeSummary")
	defer span.End()

	rows, err := s.qry.GetScrapeSummary(ctx, date)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	out := make([]SummaryEntry, len(rows))
	for i, r := range rows {
		ts, _ := time.ParseInLocation(time.RFC3339, r.Timestamp, timezone.Location)
		out[i] = SummaryEntry{
			Competitor:     r.CompetitorName,
			Timestamp:      ts,
			Status:         Status(r.Status),
			RecordsScraped: int(r.RecordsScraped),
			ErrorMessage:   r.ErrorMessage.String,
			Duration:       time.Duration(r.DurationSeconds.Float64 * float64(time.Second)),
		}
	}
	return out, nil
}

type StatEntry struct {
	Competitor  string
	Status      Status
	Count       int
	AvgRecords  float64
	AvgDuration time.Duration
}

// ScrapeStats aggregates log outcomes per competitor and status over
// the last `days` days.
func (s Store) ScrapeStats(ctx context.Context, days int) ([]StatEntry, error) {
	cutoff := s.Now().AddDate(0, 0, -days).Format(time.RFC3339)
	rows, err := s.qry.GetScrapeStats(ctx, cutoff)
	if err != nil {
		return nil, err
	}

	out := make([]StatEntry, len(rows))
	for i, r := range rows {
		out[i] = StatEntry{
			Competitor:  r.CompetitorName,
			Status:      Status(r.Status),
			Count:       int(r.Count),
			AvgRecords:  r.AvgRecords.Float64,
			AvgDuration: time.Duration(r.AvgDuration.Float64 * float64(time.Second)),
		}
	}
	return out, nil
}

func fromRows(rows []db.Price) []StoredRecord {
	out := make([]StoredRecord, len(rows))
	for i, r := range rows {
		checkIn, _ := time.ParseInLocation(time.DateOnly, r.CheckInDate, timezone.Location)
		checkOut, _ := time.ParseInLocation(time.DateOnly, r.CheckOutDate, timezone.Location)
		ts, _ := time.ParseInLocation(time.RFC3339, r.ScrapeTimestamp, timezone.Location)

		var price *float64
		if r.Price.Valid {
			v := r.Price.Float64
			price = &v
		}
		out[i] = StoredRecord{
			Record: Record{
				Competitor:        r.CompetitorName,
				AccommodationType: r.AccommodationType,
				CheckIn:           checkIn,
				CheckOut:          checkOut,
				Price:             price,
				Available:         r.Available != 0,
				MinNights:         int(r.MinNights.Int64),
				SpecialOffers:     r.SpecialOffers.String,
				Persons:           int(r.Persons),
			},
			ScrapeTimestamp: ts,
			ScrapeDate:      r.ScrapeDate,
		}
	}
	return out
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
