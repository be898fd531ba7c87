// Package boekingpro extracts prices from parks using the
// BoekingPro/TOMM booking widget. The widget is client-rendered and
// applies promotional discounts in the browser only, its backing API
// returns undiscounted prices, so extraction reads the rendered DOM
// rather than the network responses behind it.
package boekingpro

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
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
	"parkwatch-backend/lib/htmlutil"
	"parkwatch-backend/lib/pricestore"
	"parkwatch-backend/lib/scrape"
	"parkwatch-backend/lib/textutil"
	"parkwatch-backend/lib/timezone"
)

var tracer = otel.Tracer("parkwatch.lib.scrapers.boekingpro")

var trackedNights = []int{2, 3, 4, 7}

const (
	defaultMaxPages = 30
	widgetSelector  = ".w3media-booking-matrix-widget"
)

type Matrix struct {
	src         scrape.Source
	browserOpts browser.Options
}

func New(src scrape.Source, opts browser.Options) *Matrix {
	return &Matrix{src: src, browserOpts: opts}
}

func (m *Matrix) Source() scrape.Source {
	return m.src
}

func (m *Matrix) OpenSession(ctx context.Context) (scrape.Session, error) {
	return browser.NewSession(ctx, m.browserOpts)
}

func (m *Matrix) ExtractBatch(
	ctx context.Context,
	sess scrape.Session,
	opts scrape.BatchOptions,
	emit scrape.EmitFunc,
) ([]error, error) {
	ctx, span := tracer.Start(ctx, "ExtractBatch")
	defer span.End()
	span.SetAttributes(attribute.String("competitor", m.src.Competitor))

	bsess, ok := sess.(*browser.Session)
	if !ok {
		return nil, fmt.Errorf("expected a browser session, got %T", sess)
	}
	tab := bsess.Tab()

	maxPages := opts.MaxPages
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}

	err := tab.Run(ctx,
		chromedp.Navigate(detailURL(m.src.URL, opts.Persons)),
		chromedp.WaitReady("body"),
		// the Vue widget renders after the page load event
		chromedp.Sleep(5*time.Second),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load widget page")
		return nil, err
	}

	var pageErrs []error
	seen := map[string]bool{}

	for pageNum := 1; pageNum <= maxPages; pageNum++ {
		var outerHTML string
		err := tab.Run(ctx,
			chromedp.WaitVisible(widgetSelector),
			chromedp.OuterHTML("html", &outerHTML),
		)
		if err != nil {
			span.RecordError(err)
			pageErrs = append(pageErrs, fmt.Errorf("page %d: widget did not render: %w", pageNum, err))
			break
		}

		doc, err := goquery.NewDocumentFromReader(strings.NewReader(outerHTML))
		if err != nil {
			pageErrs = append(pageErrs, fmt.Errorf("page %d: %w", pageNum, err))
			break
		}

		cells, hasNext := parseMatrix(doc)

		var lastCheckIn time.Time
		for _, c := range cells {
			if c.checkIn.After(lastCheckIn) {
				lastCheckIn = c.checkIn
			}
			if !slices.Contains(trackedNights, c.nights) {
				continue
			}

			key := c.checkIn.Format(time.DateOnly) + "/" + c.checkOut.Format(time.DateOnly)
			if seen[key] {
				continue
			}
			seen[key] = true

			price := c.price
			err := emit(ctx, pricestore.Record{
				Competitor:        m.src.Competitor,
				AccommodationType: m.src.AccommodationType,
				CheckIn:           c.checkIn,
				CheckOut:          c.checkOut,
				Price:             &price,
				Available:         true,
				MinNights:         c.nights,
				SpecialOffers:     c.specialOffer(),
				Persons:           opts.Persons,
			})
			if err != nil {
				return pageErrs, err
			}
		}

		if !opts.Horizon.IsZero() && lastCheckIn.After(opts.Horizon) {
			break
		}
		if !hasNext {
			break
		}

		if opts.Limiter != nil {
			if err := opts.Limiter.Wait(ctx); err != nil {
				return pageErrs, err
			}
		}
		err = tab.Run(ctx,
			chromedp.Click(widgetSelector+" a.btn-next"),
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

// matrixCell is one bookable stay read from the widget. Only cells
// with a resolvable window and price make it out of the parse.
type matrixCell struct {
	checkIn, checkOut time.Time
	nights            int
	price             float64
	// struck-through original price, zero when not on offer
	originalPrice float64
}

func (c matrixCell) specialOffer() string {
	if c.originalPrice > c.price {
		return fmt.Sprintf("Was EUR %.0f", c.originalPrice)
	}
	return ""
}

var (
	nachtenRegex = regexp.MustCompile(`(\d+)\s+nachten?`)
	wekenRegex   = regexp.MustCompile(`(\d+)\s+(?:week|weken)`)
	hrefPeriod   = regexp.MustCompile(`period=([^&]+)`)
	hrefPrice    = regexp.MustCompile(`price=([\d.]+)`)
)

// parseMatrix reads every visible price cell out of the widget DOM.
// Rows carry a duration label in their first cell, the remaining
// cells hold booking links whose href embeds the stay window.
func parseMatrix(doc *goquery.Document) (cells []matrixCell, hasNext bool) {
	widget := doc.Find(widgetSelector).First()
	if widget.Length() == 0 {
		return nil, false
	}

	widget.Find(".matrix-row").Each(func(_ int, row *goquery.Selection) {
		rowCells := row.Find(".matrix-cel")
		if rowCells.Length() < 2 {
			return
		}

		nights := parseDuration(htmlutil.CleanText(rowCells.First().Find(".duration").Text()))
		if nights == 0 {
			return
		}

		rowCells.Each(func(i int, cell *goquery.Selection) {
			if i == 0 {
				return
			}
			link := cell.Find("a.available, a.matrix-price-popover-container").First()
			if link.Length() == 0 {
				return
			}
			href, _ := link.Attr("href")

			checkIn, checkOut, ok := parsePeriod(href)
			if !ok {
				return
			}

			price, originalPrice, ok := parseCellPrice(cell, href)
			if !ok {
				return
			}

			cells = append(cells, matrixCell{
				checkIn:       checkIn,
				checkOut:      checkOut,
				nights:        nights,
				price:         price,
				originalPrice: originalPrice,
			})
		})
	})

	hasNext = widget.Find("a.btn-next").Length() > 0
	return cells, hasNext
}

// parseDuration reads "3 nachten" or "2 weken" style labels.
func parseDuration(label string) int {
	if groups := nachtenRegex.FindStringSubmatch(label); groups != nil {
		n, _ := strconv.Atoi(groups[1])
		return n
	}
	if groups := wekenRegex.FindStringSubmatch(label); groups != nil {
		n, _ := strconv.Atoi(groups[1])
		return n * 7
	}
	return 0
}

// parsePeriod pulls the stay window out of a booking link's
// period={"start":"2026-02-14","end":"2026-02-16"} query parameter.
func parsePeriod(href string) (checkIn, checkOut time.Time, ok bool) {
	groups := hrefPeriod.FindStringSubmatch(href)
	if groups == nil {
		return time.Time{}, time.Time{}, false
	}
	decoded, err := url.QueryUnescape(groups[1])
	if err != nil {
		return time.Time{}, time.Time{}, false
	}

	var period struct {
		Start string `json:"start"`
		End   string `json:"end"`
	}
	if err := json.Unmarshal([]byte(decoded), &period); err != nil {
		return time.Time{}, time.Time{}, false
	}

	checkIn, err = time.ParseInLocation(time.DateOnly, period.Start, timezone.Location)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	checkOut, err = time.ParseInLocation(time.DateOnly, period.End, timezone.Location)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	return checkIn, checkOut, true
}

// parseCellPrice resolves the effective price with the discounted DOM
// element taking priority over the regular one, and the href price
// parameter as a last resort. The struck-through original price comes
// along when present and higher.
func parseCellPrice(cell *goquery.Selection, href string) (price, originalPrice float64, ok bool) {
	prices := cell.Find(".prices").First()
	if prices.Length() > 0 {
		if discount := prices.Find(".discount-price").First(); discount.Length() > 0 {
			if v, found := textutil.ParseEuro(htmlutil.CleanText(discount.Text())); found {
				price = v
				ok = true
			}
			if old := prices.Find(".price-old").First(); old.Length() > 0 {
				if v, found := textutil.ParseEuro(htmlutil.CleanText(old.Text())); found && v > price {
					originalPrice = v
				}
			}
		} else if regular := prices.Find(".price").First(); regular.Length() > 0 {
			if v, found := textutil.ParseEuro(htmlutil.CleanText(regular.Text())); found {
				price = v
				ok = true
			}
		}
	}

	if !ok {
		if groups := hrefPrice.FindStringSubmatch(href); groups != nil {
			if v, err := strconv.ParseFloat(groups[1], 64); err == nil {
				price = v
				ok = true
			}
		}
	}
	return price, originalPrice, ok
}

// detailURL pins the travel group size, the widget prices per
// occupancy.
func detailURL(base string, persons int) string {
	if persons <= 0 {
		persons = 4
	}
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + "travelgroup=" + url.QueryEscape(fmt.Sprintf(`{"adult":%d}`, persons))
}
