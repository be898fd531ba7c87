package holidayagent

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"parkwatch-backend/lib/pricestore"
	"parkwatch-backend/lib/scrape"
	"parkwatch-backend/lib/timezone"
)

const monthArrivals = `{
	"response": {
		"arrivals": [
			{"date": "13-02-2026"},
			{"date": "16-02-2026"}
		]
	}
}`

func departuresFor(date string) string {
	switch date {
	case "13-02-2026":
		return `{
			"response": {
				"arrivals": [{
					"date": "13-02-2026",
					"departures": [
						{
							"date": "15-02-2026", "nights": 2,
							"prices": {"totalPrice": 380, "additionalPrice": 52.5, "discountPrice": 0},
							"amountAvailable": 3
						},
						{
							"date": "20-02-2026", "nights": 7,
							"prices": {"totalPrice": 900, "additionalPrice": 120, "discountPrice": 75},
							"amountAvailable": 1
						},
						{
							"date": "23-02-2026", "nights": 10,
							"prices": {"totalPrice": 1400, "additionalPrice": 180, "discountPrice": 0},
							"amountAvailable": 2
						}
					]
				}]
			}
		}`
	case "16-02-2026":
		return `{
			"response": {
				"arrivals": [{
					"date": "16-02-2026",
					"departures": [
						{
							"date": "20-02-2026", "nights": 4,
							"prices": {"totalPrice": null, "additionalPrice": 0, "discountPrice": 0},
							"amountAvailable": 0
						}
					]
				}]
			}
		}`
	}
	return `{"response": {"arrivals": []}}`
}

func newTestServer(t *testing.T) (*httptest.Server, *int32Counter) {
	t.Helper()
	hits := &int32Counter{}

	mux := http.NewServeMux()
	mux.HandleFunc("/testresort/arrivals", func(w http.ResponseWriter, r *http.Request) {
		hits.inc()
		require.Equal(t, "nl", r.URL.Query().Get("lng"))
		require.Equal(t, "20334", r.URL.Query().Get("levels[]"))

		w.Header().Set("Content-Type", "application/json")
		if start := r.URL.Query().Get("startdate"); start != "" {
			fmt.Fprint(w, departuresFor(start))
			return
		}
		// phase one only lists dates for the requested month
		if r.URL.Query().Get("month") == "2026-02" {
			fmt.Fprint(w, monthArrivals)
			return
		}
		fmt.Fprint(w, `{"response": {"arrivals": []}}`)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, hits
}

type int32Counter struct {
	mu sync.Mutex
	n  int
}

func (c *int32Counter) inc() {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
}

func (c *int32Counter) value() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

func newTestClient(srv *httptest.Server) *Client {
	c := New(
		scrape.Source{
			Key:               "camping_ommerland",
			Competitor:        "Camping Ommerland",
			AccommodationType: "Bos Villa (6p)",
			URL:               "https://www.ommerland.nl/huren/bos-villa",
		},
		Options{
			ResortSlug: "testresort",
			LevelID:    "20334",
			APIBase:    srv.URL,
			BatchSize:  2,
		},
	)
	c.Now = func() time.Time { return timezone.Date(2026, time.February, 1) }
	return c
}

func collectRecords(t *testing.T, c *Client) ([]pricestore.Record, []error) {
	t.Helper()
	ctx := context.Background()

	sess, err := c.OpenSession(ctx)
	require.NoError(t, err)
	defer sess.Close(ctx)

	var records []pricestore.Record
	pageErrs, err := c.ExtractBatch(ctx, sess, scrape.BatchOptions{
		Persons: 4,
		Horizon: timezone.Date(2026, time.February, 28),
		Limiter: scrape.NewLimiter(0),
	}, func(ctx context.Context, rec pricestore.Record) error {
		records = append(records, rec)
		return nil
	})
	require.NoError(t, err)
	return records, pageErrs
}

func TestExtractBatch(t *testing.T) {
	srv, _ := newTestServer(t)
	c := newTestClient(srv)

	records, pageErrs := collectRecords(t, c)
	require.Empty(t, pageErrs)

	// the 10-night departure is filtered out
	require.Len(t, records, 3)

	first := records[0]
	require.Equal(t, "Camping Ommerland", first.Competitor)
	require.Equal(t, timezone.Date(2026, time.February, 13), first.CheckIn)
	require.Equal(t, timezone.Date(2026, time.February, 15), first.CheckOut)
	require.Equal(t, 2, first.MinNights)
	// all-in price is base plus guest surcharge
	require.NotNil(t, first.Price)
	require.Equal(t, 432.5, *first.Price)
	require.True(t, first.Available)
	require.Empty(t, first.SpecialOffers)
	require.Equal(t, 4, first.Persons)

	discounted := records[1]
	require.Equal(t, 7, discounted.MinNights)
	require.Equal(t, 1020.0, *discounted.Price)
	require.Equal(t, "Korting: EUR 75", discounted.SpecialOffers)

	soldOut := records[2]
	require.Equal(t, timezone.Date(2026, time.February, 16), soldOut.CheckIn)
	require.Nil(t, soldOut.Price)
	require.False(t, soldOut.Available)
}

func TestExtractBatchRequestShape(t *testing.T) {
	srv, hits := newTestServer(t)
	c := newTestClient(srv)

	_, _ = collectRecords(t, c)

	// one request for the single month in the horizon plus one per
	// arrival date
	require.Equal(t, 3, hits.value())
}

func TestExtractBatchServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down for maintenance", http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	c := newTestClient(srv)
	ctx := context.Background()
	sess, err := c.OpenSession(ctx)
	require.NoError(t, err)
	defer sess.Close(ctx)

	pageErrs, err := c.ExtractBatch(ctx, sess, scrape.BatchOptions{
		Persons: 4,
		Horizon: timezone.Now().AddDate(0, 1, 0),
		Limiter: scrape.NewLimiter(0),
	}, func(ctx context.Context, rec pricestore.Record) error {
		t.Fatal("no record should be emitted")
		return nil
	})
	require.NoError(t, err)
	// every month request failed but at the HTTP layer, so the
	// failures are absorbed per month rather than aborting the run
	require.NotEmpty(t, pageErrs)
}
