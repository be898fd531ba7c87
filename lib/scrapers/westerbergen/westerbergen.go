// Package westerbergen prices the operator's own unit through the
// park's booking backend, so the comparison tables always contain the
// anchor row the competitor rates are judged against.
//
// The backend is a same-origin AJAX API: loading the public booking
// page once establishes the session cookies, after which two endpoints
// serve availability by month and prices by arrival date. Prices are
// requested with extras included (cleaning, linen, administration,
// park charges), matching how competitor platforms quote all-in.
package westerbergen

import (
	"context"
	"fmt"
	"net/http/cookiejar"
	"slices"
	"strconv"
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

var tracer = otel.Tracer("parkwatch.lib.scrapers.westerbergen")

var trackedNights = []int{2, 3, 4, 7}

const (
	availableDatesPath = "/web/recreation/getAvailableDatesByYearMonth"
	pricesPath         = "/web/recreation/getPricesByYearMonth"

	defaultBatchSize = 10
	userAgent        = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) " +
		"Chrome/131.0.0.0 Safari/537.36"
)

type Options struct {
	// site origin, e.g. "https://www.westerbergen.nl"
	BaseURL string
	// public booking page loaded once per session for its cookies
	BookingPage string
	// booking system identifiers for the unit being priced
	ObjectType string
	RentalID   string
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

// OpenSession builds the HTTP client and warms it up against the
// booking page so the API endpoints see a browsing session.
func (c *Client) OpenSession(ctx context.Context) (scrape.Session, error) {
	s := &session{c: c}
	err := s.bootstrap(ctx)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (s *session) bootstrap(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "bootstrap")
	defer span.End()

	client := resty.New()
	client.SetBaseURL(s.c.opts.BaseURL)
	jar, err := cookiejar.New(nil)
	if err != nil {
		return err
	}
	client.SetCookieJar(jar)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)

	client.SetHeader("user-agent", userAgent)
	client.SetTimeout(s.c.opts.Timeout)

	telemetry.InstrumentResty(client, "scrapers/westerbergen/http")
	restyutil.InstrumentClient(client, restyInstrumentOutput)

	res, err := client.R().
		SetContext(ctx).
		Get(s.c.opts.BookingPage)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load booking page")
		return err
	}
	if res.IsError() {
		err := fmt.Errorf("booking page returned %s", res.Status())
		span.RecordError(err)
		return err
	}

	s.http = client
	return nil
}

func (s *session) Reset(ctx context.Context) error {
	return s.bootstrap(ctx)
}

func (s *session) Close(ctx context.Context) error {
	return nil
}

type availableDatesResponse struct {
	// DD/MM/YYYY
	Available []string `json:"available"`
}

type pricesResponse struct {
	Periods  []priceWrapper `json:"periods"`
	Packages []priceWrapper `json:"packages"`
}

type priceWrapper struct {
	Raw priceEntry `json:"raw"`
}

type priceEntry struct {
	// DD/MM/YYYY
	ArrivalDate   string   `json:"arrivaldate"`
	DepartureDate string   `json:"departuredate"`
	Nights        int      `json:"nights"`
	Price         *float64 `json:"price"`
	Available     int      `json:"available"`
	Discounted    bool     `json:"discounted"`
	FromPrice     float64  `json:"fromprice"`
}

const wireDateLayout = "02/01/2006"

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
		return nil, fmt.Errorf("expected a westerbergen session, got %T", sess)
	}

	var pageErrs []error

	dates, monthErrs, err := c.collectAvailableDates(ctx, s, opts)
	if err != nil {
		return nil, err
	}
	pageErrs = append(pageErrs, monthErrs...)
	span.SetAttributes(attribute.Int("arrival_dates", len(dates)))

	seen := map[string]bool{}

	for start := 0; start < len(dates); start += c.opts.BatchSize {
		end := min(start+c.opts.BatchSize, len(dates))
		batch := dates[start:end]

		if opts.Limiter != nil {
			if err := opts.Limiter.Wait(ctx); err != nil {
				return pageErrs, err
			}
		}

		records, batchErrs := c.priceBatch(ctx, s, batch, opts.Persons)
		pageErrs = append(pageErrs, batchErrs...)

		for _, rec := range records {
			key := rec.CheckIn.Format(time.DateOnly) + "/" + rec.CheckOut.Format(time.DateOnly)
			if seen[key] {
				continue
			}
			seen[key] = true
			if err := emit(ctx, rec); err != nil {
				return pageErrs, err
			}
		}
	}

	return pageErrs, nil
}

// collectAvailableDates asks for arrival availability month by month
// up to the horizon and returns the union, sorted.
func (c *Client) collectAvailableDates(
	ctx context.Context,
	s *session,
	opts scrape.BatchOptions,
) ([]time.Time, []error, error) {
	ctx, span := tracer.Start(ctx, "collectAvailableDates")
	defer span.End()

	horizon := opts.Horizon
	if horizon.IsZero() {
		horizon = c.Now().AddDate(0, 3, 0)
	}

	var errs []error
	seen := map[string]time.Time{}

	for month := firstOfMonth(c.Now()); !month.After(horizon); month = month.AddDate(0, 1, 0) {
		if opts.Limiter != nil {
			if err := opts.Limiter.Wait(ctx); err != nil {
				return nil, errs, err
			}
		}

		var out availableDatesResponse
		res, err := s.http.R().
			SetContext(ctx).
			SetHeader("x-requested-with", "XMLHttpRequest").
			SetQueryParam("language", "nl").
			SetQueryParam("year", strconv.Itoa(month.Year())).
			SetQueryParam("month", fmt.Sprintf("%02d", int(month.Month()))).
			SetQueryParam("objectType", c.opts.ObjectType).
			SetQueryParam("rental[]", c.opts.RentalID).
			SetQueryParam("package", "all").
			SetResult(&out).
			Get(availableDatesPath)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "available dates request failed")
			return nil, errs, err
		}
		if res.IsError() {
			errs = append(errs, fmt.Errorf("month %s: available dates returned %s",
				month.Format("2006-01"), res.Status()))
			continue
		}

		for _, raw := range out.Available {
			date, err := time.ParseInLocation(wireDateLayout, raw, timezone.Location)
			if err != nil {
				continue
			}
			seen[raw] = date
		}
	}

	dates := make([]time.Time, 0, len(seen))
	for _, d := range seen {
		dates = append(dates, d)
	}
	slices.SortFunc(dates, time.Time.Compare)
	return dates, errs, nil
}

// priceBatch fetches prices for a batch of arrival dates concurrently,
// bounding simultaneous load on the booking backend to the batch size.
func (c *Client) priceBatch(
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

			recs, err := c.fetchPrices(ctx, s, date, persons)

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

func (c *Client) fetchPrices(
	ctx context.Context,
	s *session,
	arrivalDate time.Time,
	persons int,
) ([]pricestore.Record, error) {
	ctx, span := tracer.Start(ctx, "fetchPrices")
	defer span.End()
	span.SetAttributes(attribute.String("arrival", arrivalDate.Format(time.DateOnly)))

	var out pricesResponse
	res, err := s.http.R().
		SetContext(ctx).
		SetHeader("x-requested-with", "XMLHttpRequest").
		SetQueryParam("language", "nl").
		// the fully loaded total: cleaning, linen, administration
		// and park charges included
		SetQueryParam("withExtras", "true").
		SetQueryParam("persons", strconv.Itoa(persons)).
		SetQueryParam("objectType", c.opts.ObjectType).
		SetQueryParam("year", strconv.Itoa(arrivalDate.Year())).
		SetQueryParam("month", strconv.Itoa(int(arrivalDate.Month()))).
		SetQueryParam("day", strconv.Itoa(arrivalDate.Day())).
		SetQueryParam("rental[]", c.opts.RentalID).
		SetResult(&out).
		Get(pricesPath)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "prices request failed")
		return nil, err
	}
	if res.IsError() {
		return nil, fmt.Errorf("prices returned %s", res.Status())
	}

	var records []pricestore.Record
	for _, wrapper := range append(out.Periods, out.Packages...) {
		rec, ok := c.normalizeEntry(wrapper.Raw, persons)
		if ok {
			records = append(records, rec)
		}
	}
	return records, nil
}

func (c *Client) normalizeEntry(entry priceEntry, persons int) (pricestore.Record, bool) {
	if !slices.Contains(trackedNights, entry.Nights) {
		return pricestore.Record{}, false
	}
	if entry.ArrivalDate == "" || entry.Price == nil {
		return pricestore.Record{}, false
	}

	checkIn, err := time.ParseInLocation(wireDateLayout, entry.ArrivalDate, timezone.Location)
	if err != nil {
		return pricestore.Record{}, false
	}
	checkOut, err := time.ParseInLocation(wireDateLayout, entry.DepartureDate, timezone.Location)
	if err != nil {
		return pricestore.Record{}, false
	}

	special := ""
	if entry.Discounted && entry.FromPrice > *entry.Price {
		special = fmt.Sprintf("Was EUR %.0f", entry.FromPrice)
	}

	return pricestore.Record{
		Competitor:        c.src.Competitor,
		AccommodationType: c.src.AccommodationType,
		CheckIn:           checkIn,
		CheckOut:          checkOut,
		Price:             entry.Price,
		Available:         entry.Available > 0,
		MinNights:         entry.Nights,
		SpecialOffers:     special,
		Persons:           persons,
	}, true
}

func firstOfMonth(t time.Time) time.Time {
	return timezone.Date(t.Year(), t.Month(), 1)
}
