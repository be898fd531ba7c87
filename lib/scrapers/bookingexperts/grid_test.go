package bookingexperts

import (
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"

	"parkwatch-backend/lib/datewindow"
	"parkwatch-backend/lib/scrape"
	"parkwatch-backend/lib/timezone"
)

const gridFixture = `
<html><body>
<table class="price-grid-table">
  <thead>
    <tr>
      <th>Nachten</th>
      <th>vr
27 feb</th>
      <th>za
28 feb</th>
      <th>ma
 2 mrt</th>
    </tr>
  </thead>
  <tbody>
    <tr class="price-grid-table-result-row">
      <th>2 nachten</th>
      <td><a href="/boeken">&euro;&nbsp;524</a></td>
      <td class="price-grid-table-unavailable">-</td>
      <td><a href="/boeken">&euro;&nbsp;1.065</a></td>
    </tr>
    <tr class="price-grid-table-result-row">
      <th>7 nachten</th>
      <td><a href="/boeken">&euro;&nbsp;1.280</a></td>
      <td class="price-grid-table-unavailable">-</td>
      <td class="price-grid-table-unavailable">-</td>
    </tr>
    <tr class="price-grid-table-result-row">
      <th>14 nachten</th>
      <td><a href="/boeken">&euro;&nbsp;2.398</a></td>
      <td class="price-grid-table-unavailable">-</td>
      <td class="price-grid-table-unavailable">-</td>
    </tr>
    <tr>
      <td colspan="4">geen resultaten</td>
    </tr>
  </tbody>
</table>
</body></html>`

func TestParseGrid(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(gridFixture))
	require.NoError(t, err)

	entries := parseGrid(doc)
	// 3 result rows x 3 date columns, the plain tr is skipped
	require.Len(t, entries, 9)

	first := entries[0]
	require.Equal(t, "vr 27 feb", first.header)
	require.Equal(t, 2, first.nights)
	require.NotNil(t, first.price)
	require.Equal(t, 524.0, *first.price)
	require.True(t, first.available)

	unavailable := entries[1]
	require.Equal(t, "za 28 feb", unavailable.header)
	require.Nil(t, unavailable.price)
	require.False(t, unavailable.available)

	// thousands separator must be stripped, not taken as a decimal
	thousands := entries[2]
	require.Equal(t, "ma 2 mrt", thousands.header)
	require.Equal(t, 1065.0, *thousands.price)

	require.Equal(t, 14, entries[8].nights)
}

func TestResolveDatePicksClosestYear(t *testing.T) {
	ref := timezone.Date(2026, time.January, 5)

	// 2026-02-27 is 53 days out, 2025-02-27 is 312 days back
	resolved, ok := ResolveDate("vr 27 feb", ref)
	require.True(t, ok)
	require.Equal(t, timezone.Date(2026, time.February, 27), resolved)

	// near the end of a year a January header means next January
	ref = timezone.Date(2025, time.December, 20)
	resolved, ok = ResolveDate("za 3 jan", ref)
	require.True(t, ok)
	require.Equal(t, timezone.Date(2026, time.January, 3), resolved)

	// and a December header still means the current December
	resolved, ok = ResolveDate("ma 29 dec", ref)
	require.True(t, ok)
	require.Equal(t, timezone.Date(2025, time.December, 29), resolved)
}

func TestResolveDateRejectsGarbage(t *testing.T) {
	ref := timezone.Date(2026, time.January, 5)

	_, ok := ResolveDate("geen datum", ref)
	require.False(t, ok)

	_, ok = ResolveDate("vr 31 xyz", ref)
	require.False(t, ok)
}

func TestFindWindow(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(gridFixture))
	require.NoError(t, err)
	entries := parseGrid(doc)

	src := scrape.Source{
		Competitor:        "Beerze Bulten",
		AccommodationType: "Luxe Bungalow",
	}
	checkIn := timezone.Date(2026, time.February, 27)

	rec := findWindow(entries, src, datewindow.Window{
		CheckIn:  checkIn,
		CheckOut: checkIn.AddDate(0, 0, 2),
		Nights:   2,
	}, 4)
	require.NotNil(t, rec)
	require.Equal(t, 524.0, *rec.Price)
	require.True(t, rec.Available)
	require.Equal(t, timezone.Date(2026, time.March, 1), rec.CheckOut)

	// a stay the grid doesn't show is zero-yield, not an error
	rec = findWindow(entries, src, datewindow.Window{
		CheckIn:  timezone.Date(2026, time.June, 12),
		CheckOut: timezone.Date(2026, time.June, 14),
		Nights:   2,
	}, 4)
	require.Nil(t, rec)
}

func TestWithGuestCount(t *testing.T) {
	base := "https://www.beerzebulten.nl/accommodaties/bungalow"

	require.Equal(t, base+"?guest_group%5Badults%5D=4", withGuestCount(base, 4))

	// an existing guest param is replaced, not duplicated
	withParam := base + "?grid_center%5Bsearch_date%5D=2026-03-06&guest_group%5Badults%5D=2"
	require.Equal(t,
		base+"?grid_center%5Bsearch_date%5D=2026-03-06&guest_group%5Badults%5D=6",
		withGuestCount(withParam, 6),
	)
}
