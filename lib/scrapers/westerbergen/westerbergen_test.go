package westerbergen

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"parkwatch-backend/lib/pricestore"
	"parkwatch-backend/lib/scrape"
	"parkwatch-backend/lib/timezone"
)

func pricesFor(day string) string {
	switch day {
	case "6":
		return `{
			"periods": [
				{"raw": {
					"arrivaldate": "06/03/2026", "departuredate": "08/03/2026",
					"nights": 2, "price": 412.5, "available": 1,
					"discounted": false, "fromprice": 0
				}},
				{"raw": {
					"arrivaldate": "06/03/2026", "departuredate": "13/03/2026",
					"nights": 7, "price": 980, "available": 1,
					"discounted": true, "fromprice": 1150
				}},
				{"raw": {
					"arrivaldate": "06/03/2026", "departuredate": "20/03/2026",
					"nights": 14, "price": 1900, "available": 1,
					"discounted": false, "fromprice": 0
				}}
			],
			"packages": [
				{"raw": {
					"arrivaldate": "06/03/2026", "departuredate": "10/03/2026",
					"nights": 4, "price": 640, "available": 0,
					"discounted": false, "fromprice": 0
				}}
			]
		}`
	case "9":
		return `{
			"periods": [
				{"raw": {
					"arrivaldate": "09/03/2026", "departuredate": "11/03/2026",
					"nights": 2, "price": null, "available": 1,
					"discounted": false, "fromprice": 0
				}}
			],
			"packages": []
		}`
	}
	return `{"periods": [], "packages": []}`
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	bootstrapped := false

	mux.HandleFunc("/accommodaties/bosbungalow/boeken", func(w http.ResponseWriter, r *http.Request) {
		bootstrapped = true
		fmt.Fprint(w, "<html><body>boeken</body></html>")
	})
	mux.HandleFunc(availableDatesPath, func(w http.ResponseWriter, r *http.Request) {
		require.True(t, bootstrapped, "API hit before session bootstrap")
		require.Equal(t, "XMLHttpRequest", r.Header.Get("X-Requested-With"))
		require.Equal(t, "354", r.URL.Query().Get("objectType"))
		require.Equal(t, "169", r.URL.Query().Get("rental[]"))

		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("month") == "03" {
			fmt.Fprint(w, `{"available": ["06/03/2026", "09/03/2026"]}`)
			return
		}
		fmt.Fprint(w, `{"available": []}`)
	})
	mux.HandleFunc(pricesPath, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "XMLHttpRequest", r.Header.Get("X-Requested-With"))
		require.Equal(t, "true", r.URL.Query().Get("withExtras"))
		require.Equal(t, "4", r.URL.Query().Get("persons"))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, pricesFor(r.URL.Query().Get("day")))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(srv *httptest.Server) *Client {
	c := New(
		scrape.Source{
			Key:               "westerbergen",
			Competitor:        pricestore.OwnUnitName,
			AccommodationType: "Bosbungalow Sequoia (C6)",
			URL:               srv.URL + "/accommodaties/bosbungalow",
		},
		Options{
			BaseURL:     srv.URL,
			BookingPage: "/accommodaties/bosbungalow/boeken",
			ObjectType:  "354",
			RentalID:    "169",
			BatchSize:   2,
		},
	)
	c.Now = func() time.Time { return timezone.Date(2026, time.March, 1) }
	return c
}

func TestExtractBatch(t *testing.T) {
	srv := newTestServer(t)
	c := newTestClient(srv)
	ctx := context.Background()

	sess, err := c.OpenSession(ctx)
	require.NoError(t, err)
	defer sess.Close(ctx)

	var records []pricestore.Record
	pageErrs, err := c.ExtractBatch(ctx, sess, scrape.BatchOptions{
		Persons: 4,
		Horizon: timezone.Date(2026, time.March, 31),
		Limiter: scrape.NewLimiter(0),
	}, func(ctx context.Context, rec pricestore.Record) error {
		records = append(records, rec)
		return nil
	})
	require.NoError(t, err)
	require.Empty(t, pageErrs)

	// 14-night period and the null-price entry are dropped
	require.Len(t, records, 3)

	first := records[0]
	require.Equal(t, pricestore.OwnUnitName, first.Competitor)
	require.Equal(t, timezone.Date(2026, time.March, 6), first.CheckIn)
	require.Equal(t, timezone.Date(2026, time.March, 8), first.CheckOut)
	require.Equal(t, 2, first.MinNights)
	require.Equal(t, 412.5, *first.Price)
	require.True(t, first.Available)
	require.Empty(t, first.SpecialOffers)

	pkg := records[1]
	require.Equal(t, 4, pkg.MinNights)
	require.False(t, pkg.Available)

	discounted := records[2]
	require.Equal(t, 7, discounted.MinNights)
	require.Equal(t, 980.0, *discounted.Price)
	require.Equal(t, "Was EUR 1150", discounted.SpecialOffers)
}

func TestOpenSessionBootstrapFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "offline", http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	c := newTestClient(srv)
	c.opts.BaseURL = srv.URL

	_, err := c.OpenSession(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "booking page")
}
