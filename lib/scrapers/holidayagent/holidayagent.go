// Package holidayagent extracts prices from parks hosted on the
// HolidayAgent platform through its public JSON API. No browser is
// involved, which makes these the fastest sources of a run.
//
// Extraction is two-phase: one request per month in the horizon
// collects the arrival dates that have any availability, then one
// request per arrival date expands the departure options with prices.
// The second phase runs in fixed-size concurrent batches since the
// API tolerates parallel requests far better than the rendered sites.
package holidayagent

import (
	"context"
	"fmt"
	"net/http/cookiejar"
	"slices"
	"sync"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"parkwatch-backend/lib/pricestore"
	"parkwatch-backend/lib/restyutil"
	"parkwatch-backend/lib/scrape"
	"parkwatch-backend/lib/telemetry"
	"parkwatch-backend/lib/timezone"
)

var tracer = otel.Tracer("parkwatch.lib.scrapers.holidayagent")

// the platform quotes stays of 5 nights that competitors don't offer,
// keep them so midweek comparisons have a nearest-length fallback
var trackedNights = []int{2, 3, 4, 5, 7}

const (
	defaultAPIBase   = "https://api.holidayagent.nl/v1/resort"
	defaultBatchSize = 10
	userAgent        = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) " +
		"Chrome/131.0.0.0 Safari/537.36"
)

type Options struct {
	// resort identity inside the platform, e.g. "campingommerland"
	ResortSlug string
	// accommodation level to price, e.g. "20334"
	LevelID string
	// overridable for tests
	APIBase string
	// concurrent price requests per batch
	BatchSize int
	Timeout   time.Duration
}

type Client struct {
	src  scrape.Source
	opts Options

	// overridable in tests
	Now func() time.Time
}

func New(src scrape.Source, opts Options) *Client {
	if opts.APIBase == "" {
		opts.APIBase = defaultAPIBase
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &Client{src: src, opts: opts, Now: timezone.Now}
}

func (c *Client) Source() scrape.Source {
	return c.src
}

type session struct {
	http *resty.Client
	c    *Client
}

func (c *Client) newHTTPClient() (*resty.Client, error) {
	client := resty.New()
	client.SetBaseURL(c.opts.APIBase)
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)

	client.SetHeader("user-agent", userAgent)
	client.SetHeader("accept", "application/json")
	client.SetHeader("referer", c.src.URL)
	client.SetTimeout(c.opts.Timeout)

	telemetry.InstrumentResty(client, "scrapers/holidayagent/http")
	restyutil.InstrumentClient(client, restyInstrumentOutput)
	return client, nil
}

func (c *Client) OpenSession(ctx context.Context) (scrape.Session, error) {
	http, err := c.newHTTPClient()
	if err != nil {
		return nil, err
	}
	return &session{http: http, c: c}, nil
}

func (s *session) Reset(ctx context.Context) error {
	http, err := s.c.newHTTPClient()
	if err != nil {
		return err
	}
	s.http = http
	return nil
}

func (s *session) Close(ctx context.Context) error {
	return nil
}

// wire shapes, the envelope is shared by both phases
type arrivalsResponse struct {
	Response struct {
		Arrivals []arrival `json:"arrivals"`
	} `json:"response"`
}

type arrival struct {
	// DD-MM-YYYY
	Date       string      `json:"date"`
	Departures []departure `json:"departures"`
}

type departure struct {
	Date   string `json:"date"`
	Nights int    `json:"nights"`
	Prices struct {
		// base price covers two guests, additionalPrice is the
		// surcharge for the rest of the group. Additive only.
		TotalPrice      *float64 `json:"totalPrice"`
		AdditionalPrice float64  `json:"additionalPrice"`
		DiscountPrice   float64  `json:"discountPrice"`
	} `json:"prices"`
	AmountAvailable int `json:"amountAvailable"`
}

const wireDateLayout = "02-01-2006"

func (c *Client) ExtractBatch(
	ctx context.Context,
	sess scrape.Session,
	opts scrape.BatchOptions,
	emit scrape.EmitFunc,
) ([]error, error) {
	ctx, span := tracer.Start(ctx, "ExtractBatch")
	defer span.End()
	span.SetAttributes(attribute.String("competitor", c.src.Competitor))

	s, ok := sess.(*session)
	if !ok {
		return nil, fmt.Errorf("expected a holidayagent session, got %T", sess)
	}

	var pageErrs []error

	dates, monthErrs, err := c.collectArrivalDates(ctx, s, opts)
	if err != nil {
		return nil, err
	}
	pageErrs = append(pageErrs, monthErrs...)
	span.SetAttributes(attribute.Int("arrival_dates", len(dates)))

	for start := 0; start < len(dates); start += c.opts.BatchSize {
		end := min(start+c.opts.BatchSize, len(dates))
		batch := dates[start:end]

		if opts.Limiter != nil {
			if err := opts.Limiter.Wait(ctx); err != nil {
				return pageErrs, err
			}
		}

		records, batchErrs := c.expandBatch(ctx, s, batch, opts.Persons)
		pageErrs = append(pageErrs, batchErrs...)

		for _, rec := range records {
			if err := emit(ctx, rec); err != nil {
				return pageErrs, err
			}
		}
	}

	return pageErrs, nil
}

// collectArrivalDates issues one request per month up to the horizon
// and returns the union of available arrival dates, sorted. A failed
// month is absorbed as a page error, the remaining months still count.
func (c *Client) collectArrivalDates(
	ctx context.Context,
	s *session,
	opts scrape.BatchOptions,
) ([]time.Time, []error, error) {
	ctx, span := tracer.Start(ctx, "collectArrivalDates")
	defer span.End()

	horizon := opts.Horizon
	if horizon.IsZero() {
		horizon = c.Now().AddDate(0, 6, 0)
	}

	var errs []error
	seen := map[string]time.Time{}

	for month := firstOfMonth(c.Now()); !month.After(horizon); month = month.AddDate(0, 1, 0) {
		if opts.Limiter != nil {
			if err := opts.Limiter.Wait(ctx); err != nil {
				return nil, errs, err
			}
		}

		var out arrivalsResponse
		res, err := s.http.R().
			SetContext(ctx).
			SetQueryParam("lng", "nl").
			SetQueryParam("levels[]", c.opts.LevelID).
			SetQueryParam("month", month.Format("2006-01")).
			SetQueryParam("startdate-use-nearest", "true").
			SetQueryParam("includes[]", "specialperiods").
			SetResult(&out).
			Get(fmt.Sprintf("/%s/arrivals", c.opts.ResortSlug))
		if err != nil {
			// a network-level failure in phase one dooms phase two
			// as well, hand it to the retry loop
			span.RecordError(err)
			span.SetStatus(codes.Error, "arrivals request failed")
			return nil, errs, err
		}
		if res.IsError() {
			errs = append(errs, fmt.Errorf("month %s: arrivals returned %s", month.Format("2006-01"), res.Status()))
			continue
		}

		for _, a := range out.Response.Arrivals {
			date, err := time.ParseInLocation(wireDateLayout, a.Date, timezone.Location)
			if err != nil {
				continue
			}
			seen[a.Date] = date
		}
	}

	dates := make([]time.Time, 0, len(seen))
	for _, d := range seen {
		dates = append(dates, d)
	}
	slices.SortFunc(dates, time.Time.Compare)
	return dates, errs, nil
}

// expandBatch fetches departure options for a batch of arrival dates
// concurrently. Results are collected under a mutex and emitted by the
// caller in order, so persistence stays single-writer.
func (c *Client) expandBatch(
	ctx context.Context,
	s *session,
	batch []time.Time,
	persons int,
) ([]pricestore.Record, []error) {
	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		records []pricestore.Record
		errs    []error
	)

	for _, date := range batch {
		wg.Add(1)
		go func(date time.Time) {
			defer wg.Done()

			recs, err := c.fetchDepartures(ctx, s, date, persons)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, fmt.Errorf("arrival %s: %w", date.Format(time.DateOnly), err))
				return
			}
			records = append(records, recs...)
		}(date)
	}
	wg.Wait()

	slices.SortFunc(records, func(a, b pricestore.Record) int {
		if cmp := a.CheckIn.Compare(b.CheckIn); cmp != 0 {
			return cmp
		}
		return a.CheckOut.Compare(b.CheckOut)
	})
	return records, errs
}

func (c *Client) fetchDepartures(
	ctx context.Context,
	s *session,
	arrivalDate time.Time,
	persons int,
) ([]pricestore.Record, error) {
	ctx, span := tracer.Start(ctx, "fetchDepartures")
	defer span.End()
	span.SetAttributes(attribute.String("arrival", arrivalDate.Format(time.DateOnly)))

	var out arrivalsResponse
	res, err := s.http.R().
		SetContext(ctx).
		SetQueryParam("lng", "nl").
		SetQueryParam("levels[]", c.opts.LevelID).
		SetQueryParam("startdate", arrivalDate.Format(wireDateLayout)).
		SetQueryParam("includes[]", "specialperiods").
		SetResult(&out).
		Get(fmt.Sprintf("/%s/arrivals", c.opts.ResortSlug))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "departures request failed")
		return nil, err
	}
	if res.IsError() {
		return nil, fmt.Errorf("departures returned %s", res.Status())
	}

	var records []pricestore.Record
	for _, a := range out.Response.Arrivals {
		checkIn, err := time.ParseInLocation(wireDateLayout, a.Date, timezone.Location)
		if err != nil {
			continue
		}
		for _, d := range a.Departures {
			rec, ok := c.normalizeDeparture(checkIn, d, persons)
			if ok {
				records = append(records, rec)
			}
		}
	}
	return records, nil
}

func (c *Client) normalizeDeparture(checkIn time.Time, d departure, persons int) (pricestore.Record, bool) {
	if !slices.Contains(trackedNights, d.Nights) {
		return pricestore.Record{}, false
	}
	checkOut, err := time.ParseInLocation(wireDateLayout, d.Date, timezone.Location)
	if err != nil {
		return pricestore.Record{}, false
	}

	var price *float64
	if d.Prices.TotalPrice != nil {
		total := *d.Prices.TotalPrice + d.Prices.AdditionalPrice
		price = &total
	}

	special := ""
	if d.Prices.DiscountPrice > 0 {
		special = fmt.Sprintf("Korting: EUR %.0f", d.Prices.DiscountPrice)
	}

	return pricestore.Record{
		Competitor:        c.src.Competitor,
		AccommodationType: c.src.AccommodationType,
		CheckIn:           checkIn,
		CheckOut:          checkOut,
		Price:             price,
		Available:         d.AmountAvailable > 0 && price != nil,
		MinNights:         d.Nights,
		SpecialOffers:     special,
		Persons:           persons,
	}, true
}

func firstOfMonth(t time.Time) time.Time {
	return timezone.Date(t.Year(), t.Month(), 1)
}
