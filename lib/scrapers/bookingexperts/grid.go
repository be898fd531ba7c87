// Package bookingexperts extracts prices from parks hosted on the
// BookingExperts platform. The accommodation detail page renders a
// price grid: columns are calendar dates shown without a year, rows
// are night counts, cells hold a price or an unavailable marker.
// Paging forward happens through the grid's "Later" link, which
// shifts the visible week a few days at a time, so adjacent pages
// overlap and extraction dedups by stay window.
package bookingexperts

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"parkwatch-backend/lib/browser"
	"parkwatch-backend/lib/datewindow"
	"parkwatch-backend/lib/htmlutil"
	"parkwatch-backend/lib/pricestore"
	"parkwatch-backend/lib/scrape"
	"parkwatch-backend/lib/textutil"
	"parkwatch-backend/lib/timezone"
)

var tracer = otel.Tracer("parkwatch.lib.scrapers.bookingexperts")

// stay lengths worth tracking, everything else in the grid is noise
var trackedNights = []int{2, 3, 4, 7}

const defaultMaxPages = 30

type Grid struct {
	src         scrape.Source
	browserOpts browser.Options
}

// New builds a grid extraction strategy for one source. The same
// strategy serves every BookingExperts park, only the identity and
// URL differ per competitor.
func New(src scrape.Source, opts browser.Options) *Grid {
	return &Grid{src: src, browserOpts: opts}
}

func (g *Grid) Source() scrape.Source {
	return g.src
}

func (g *Grid) OpenSession(ctx context.Context) (scrape.Session, error) {
	return browser.NewSession(ctx, g.browserOpts)
}

// acceptCookies clicks whichever consent button variant the park's
// banner uses. Failure is ignored, the grid still renders behind an
// unaccepted banner.
const acceptCookiesJS = `(() => {
	const labels = ['Alles accepteren', 'Accepteer', 'Akkoord'];
	for (const btn of document.querySelectorAll('button')) {
		if (labels.includes(btn.innerText.trim())) { btn.click(); return true; }
	}
	return false;
})()`

const laterLinkJS = `(() => {
	for (const a of document.querySelectorAll('a')) {
		if (a.innerText.trim() === 'Later') return a.href;
	}
	return '';
})()`

func (g *Grid) ExtractBatch(
	ctx context.Context,
	sess scrape.Session,
	opts scrape.BatchOptions,
	emit scrape.EmitFunc,
) ([]error, error) {
	ctx, span := tracer.Start(ctx, "ExtractBatch")
	defer span.End()
	span.SetAttributes(attribute.String("competitor", g.src.Competitor))

	bsess, ok := sess.(*browser.Session)
	if !ok {
		return nil, fmt.Errorf("expected a browser session, got %T", sess)
	}
	tab := bsess.Tab()

	maxPages := opts.MaxPages
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}

	startURL := withGuestCount(g.src.URL, opts.Persons)
	err := tab.Run(ctx,
		chromedp.Navigate(startURL),
		chromedp.WaitReady("body"),
		chromedp.Sleep(3*time.Second),
		chromedp.Evaluate(acceptCookiesJS, nil),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load grid page")
		return nil, err
	}

	var pageErrs []error
	seen := map[string]bool{}

	for pageNum := 1; pageNum <= maxPages; pageNum++ {
		var outerHTML string
		err := tab.Run(ctx,
			chromedp.WaitVisible(".price-grid-table"),
			chromedp.Sleep(time.Second),
			chromedp.OuterHTML("html", &outerHTML),
		)
		if err != nil {
			span.RecordError(err)
			pageErrs = append(pageErrs, fmt.Errorf("page %d: grid did not render: %w", pageNum, err))
			break
		}

		doc, err := goquery.NewDocumentFromReader(strings.NewReader(outerHTML))
		if err != nil {
			pageErrs = append(pageErrs, fmt.Errorf("page %d: %w", pageNum, err))
			break
		}

		entries := parseGrid(doc)
		if len(entries) == 0 {
			pageErrs = append(pageErrs, fmt.Errorf("page %d: grid table empty", pageNum))
			break
		}

		// the grid shows dates near "now" on page one and drifts
		// forward as we page, so anchor year resolution on the first
		// visible header of each page
		ref := timezone.Now()
		if first, ok := ResolveDate(entries[0].header, ref); ok {
			ref = first
		}

		var lastCheckIn time.Time
		for _, e := range entries {
			checkIn, ok := ResolveDate(e.header, ref)
			if !ok {
				continue
			}
			if checkIn.After(lastCheckIn) {
				lastCheckIn = checkIn
			}
			if !slices.Contains(trackedNights, e.nights) {
				continue
			}

			checkOut := checkIn.AddDate(0, 0, e.nights)
			key := checkIn.Format(time.DateOnly) + "/" + checkOut.Format(time.DateOnly)
			if seen[key] {
				continue
			}
			seen[key] = true

			err := emit(ctx, pricestore.Record{
				Competitor:        g.src.Competitor,
				AccommodationType: g.src.AccommodationType,
				CheckIn:           checkIn,
				CheckOut:          checkOut,
				Price:             e.price,
				Available:         e.available,
				MinNights:         e.nights,
				Persons:           opts.Persons,
			})
			if err != nil {
				return pageErrs, err
			}
		}

		if !opts.Horizon.IsZero() && lastCheckIn.After(opts.Horizon) {
			break
		}

		var laterURL string
		err = tab.Run(ctx, chromedp.Evaluate(laterLinkJS, &laterURL))
		if err != nil || laterURL == "" {
			break
		}

		if opts.Limiter != nil {
			if err := opts.Limiter.Wait(ctx); err != nil {
				return pageErrs, err
			}
		}
		err = tab.Run(ctx,
			chromedp.Navigate(withGuestCount(laterURL, opts.Persons)),
			chromedp.WaitReady("body"),
			chromedp.Sleep(2*time.Second),
		)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to page forward")
			return pageErrs, err
		}
	}

	return pageErrs, nil
}

// ExtractWindow prices a single stay by centering the grid on the
// check-in date and reading the matching cell. Slower than paging the
// whole grid but usable for targeted re-checks of one window.
func (g *Grid) ExtractWindow(
	ctx context.Context,
	sess scrape.Session,
	w datewindow.Window,
	persons int,
) (*pricestore.Record, error) {
	ctx, span := tracer.Start(ctx, "ExtractWindow")
	defer span.End()
	span.SetAttributes(
		attribute.String("competitor", g.src.Competitor),
		attribute.String("check_in", w.CheckIn.Format(time.DateOnly)),
	)

	bsess, ok := sess.(*browser.Session)
	if !ok {
		return nil, fmt.Errorf("expected a browser session, got %T", sess)
	}
	tab := bsess.Tab()

	gridURL := withGuestCount(
		g.src.URL+"?grid_center%5Bsearch_date%5D="+w.CheckIn.Format(time.DateOnly),
		persons,
	)

	var outerHTML string
	err := tab.Run(ctx,
		chromedp.Navigate(gridURL),
		chromedp.WaitReady("body"),
		chromedp.Sleep(2*time.Second),
		chromedp.Evaluate(acceptCookiesJS, nil),
		chromedp.WaitVisible(".price-grid-table"),
		chromedp.Sleep(time.Second),
		chromedp.OuterHTML("html", &outerHTML),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load grid for window")
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(outerHTML))
	if err != nil {
		return nil, err
	}

	rec := findWindow(parseGrid(doc), g.src, w, persons)
	return rec, nil
}

// findWindow locates the grid cell matching the requested stay. A
// grid that doesn't show the window yields nothing rather than an
// error, the date may simply be out of the visible range.
func findWindow(entries []gridEntry, src scrape.Source, w datewindow.Window, persons int) *pricestore.Record {
	for _, e := range entries {
		if e.nights != w.Nights {
			continue
		}
		checkIn, ok := ResolveDate(e.header, w.CheckIn)
		if !ok || !checkIn.Equal(w.CheckIn) {
			continue
		}
		return &pricestore.Record{
			Competitor:        src.Competitor,
			AccommodationType: src.AccommodationType,
			CheckIn:           checkIn,
			CheckOut:          checkIn.AddDate(0, 0, e.nights),
			Price:             e.price,
			Available:         e.available,
			MinNights:         e.nights,
			Persons:           persons,
		}
	}
	return nil
}

type gridEntry struct {
	// raw column label, e.g. "vr 27 feb"
	header    string
	nights    int
	price     *float64
	available bool
}

var nightsRegex = regexp.MustCompile(`(\d+)`)

// parseGrid flattens the price grid table into one entry per cell.
// Column headers are read from thead, the first cell of each result
// row carries the night count, the rest are price cells.
func parseGrid(doc *goquery.Document) []gridEntry {
	table := doc.Find(".price-grid-table").First()
	if table.Length() == 0 {
		return nil
	}

	var headers []string
	table.Find("thead th").Each(func(i int, th *goquery.Selection) {
		if i == 0 {
			return
		}
		headers = append(headers, htmlutil.CleanText(th.Text()))
	})

	var entries []gridEntry
	table.Find("tbody tr.price-grid-table-result-row").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td, th")
		if cells.Length() < 2 {
			return
		}

		groups := nightsRegex.FindStringSubmatch(htmlutil.CleanText(cells.First().Text()))
		if groups == nil {
			return
		}
		nights, _ := strconv.Atoi(groups[1])

		cells.Each(func(i int, cell *goquery.Selection) {
			if i == 0 || i-1 >= len(headers) {
				return
			}

			unavailable := cell.HasClass("price-grid-table-unavailable")
			var price *float64
			text := htmlutil.CleanText(cell.Text())
			if strings.Contains(text, "€") {
				if v, ok := textutil.ParseEuro(text); ok {
					price = &v
				}
			}

			entries = append(entries, gridEntry{
				header:    headers[i-1],
				nights:    nights,
				price:     price,
				available: !unavailable && price != nil,
			})
		})
	})

	return entries
}

var dutchMonths = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mrt": time.March,
	"apr": time.April, "mei": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"okt": time.October, "nov": time.November, "dec": time.December,
}

var dateHeaderRegex = regexp.MustCompile(`(?i)(\d{1,2})\s+(jan|feb|mrt|apr|mei|jun|jul|aug|sep|okt|nov|dec)`)

// ResolveDate converts a year-less column label like "vr 27 feb" to
// an absolute date. The grid only ever shows dates near the reference,
// so of the reference year and the year after, the candidate closest
// to the reference wins. Near a year boundary this picks January of
// next year over January eleven months back.
func ResolveDate(header string, ref time.Time) (time.Time, bool) {
	groups := dateHeaderRegex.FindStringSubmatch(header)
	if groups == nil {
		return time.Time{}, false
	}

	day, _ := strconv.Atoi(groups[1])
	month, ok := dutchMonths[strings.ToLower(groups[2])]
	if !ok {
		return time.Time{}, false
	}

	var best time.Time
	bestDiff := time.Duration(0)
	for _, year := range []int{ref.Year(), ref.Year() + 1} {
		candidate := timezone.Date(year, month, day)
		if candidate.Month() != month {
			// day overflowed the month, e.g. 30 feb
			continue
		}
		diff := candidate.Sub(ref)
		if diff < 0 {
			diff = -diff
		}
		if best.IsZero() || diff < bestDiff {
			best = candidate
			bestDiff = diff
		}
	}
	if best.IsZero() {
		return time.Time{}, false
	}
	return best, true
}

var guestParamRegex = regexp.MustCompile(`[&?]guest_group%5Badults%5D=\d+`)

// withGuestCount pins the adult count in the URL, pricing depends on
// occupancy through tourist-tax style surcharges.
func withGuestCount(rawURL string, persons int) string {
	if persons <= 0 {
		persons = 4
	}
	rawURL = guestParamRegex.ReplaceAllString(rawURL, "")
	sep := "?"
	if strings.Contains(rawURL, "?") {
		sep = "&"
	}
	return rawURL + sep + "guest_group%5Badults%5D=" + strconv.Itoa(persons)
}
