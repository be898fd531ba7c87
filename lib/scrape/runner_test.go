package scrape

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"parkwatch-backend/lib/datewindow"
	"parkwatch-backend/lib/pricestore"
	"parkwatch-backend/lib/timezone"
)

type fakeSession struct {
	resets int
	closed bool
}

func (s *fakeSession) Reset(ctx context.Context) error {
	s.resets++
	return nil
}

func (s *fakeSession) Close(ctx context.Context) error {
	s.closed = true
	return nil
}

// fakeExtractor scripts per-window behavior keyed by check-in date.
type fakeExtractor struct {
	src         Source
	sess        *fakeSession
	openErr     error
	failWindows map[string]error
	attempts    map[string]int
}

func (f *fakeExtractor) Source() Source { return f.src }

func (f *fakeExtractor) OpenSession(ctx context.Context) (Session, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	f.sess = &fakeSession{}
	return f.sess, nil
}

func (f *fakeExtractor) ExtractWindow(ctx context.Context, sess Session, w datewindow.Window, persons int) (*pricestore.Record, error) {
	key := w.CheckIn.Format(time.DateOnly)
	if f.attempts == nil {
		f.attempts = map[string]int{}
	}
	f.attempts[key]++

	if err, ok := f.failWindows[key]; ok {
		return nil, err
	}

	price := 100.0
	return &pricestore.Record{
		Competitor:        f.src.Competitor,
		AccommodationType: f.src.AccommodationType,
		CheckIn:           w.CheckIn,
		CheckOut:          w.CheckOut,
		Price:             &price,
		Available:         true,
		Persons:           persons,
	}, nil
}

type memStore struct {
	records []pricestore.Record
	logs    []pricestore.LogEntry
	saveErr error
}

func (m *memStore) SavePrice(ctx context.Context, rec pricestore.Record) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.records = append(m.records, rec)
	return nil
}

func (m *memStore) LogScrape(ctx context.Context, entry pricestore.LogEntry) error {
	m.logs = append(m.logs, entry)
	return nil
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "operation timed out" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func windows(t *testing.T, n int) []datewindow.Window {
	t.Helper()
	out := make([]datewindow.Window, n)
	for i := range out {
		checkIn := timezone.Date(2026, time.March, 6+7*i)
		out[i] = datewindow.Window{
			CheckIn:  checkIn,
			CheckOut: checkIn.AddDate(0, 0, 2),
			StayType: "weekend",
			Nights:   2,
		}
	}
	return out
}

func testSource() Source {
	return Source{
		Key:               "beerze_bulten",
		Competitor:        "Beerze Bulten",
		AccommodationType: "4-person lodge",
		URL:               "https://example.test/book",
	}
}

func TestRunAllWindowsSucceed(t *testing.T) {
	store := &memStore{}
	x := &fakeExtractor{src: testSource()}

	entry, err := NewRunner(store).Run(context.Background(), x, Options{
		MaxRetries: 3,
		Persons:    4,
		Windows:    windows(t, 5),
	})
	require.NoError(t, err)

	require.Equal(t, pricestore.StatusSuccess, entry.Status)
	require.Equal(t, 5, entry.RecordsScraped)
	require.Empty(t, entry.ErrorMessage)
	require.Len(t, store.records, 5)
	require.Len(t, store.logs, 1)
	require.Equal(t, entry, store.logs[0])
	require.True(t, x.sess.closed)
}

func TestRunPartialWhenSomeWindowsExhaustRetries(t *testing.T) {
	store := &memStore{}
	ws := windows(t, 10)
	x := &fakeExtractor{
		src: testSource(),
		failWindows: map[string]error{
			ws[1].CheckIn.Format(time.DateOnly): errors.New("selector not found"),
			ws[4].CheckIn.Format(time.DateOnly): errors.New("selector not found"),
			ws[7].CheckIn.Format(time.DateOnly): errors.New("selector not found"),
		},
	}

	entry, err := NewRunner(store).Run(context.Background(), x, Options{
		MaxRetries: 3,
		Persons:    4,
		Windows:    ws,
	})
	require.NoError(t, err)

	require.Equal(t, pricestore.StatusPartial, entry.Status)
	require.Equal(t, 7, entry.RecordsScraped)
	require.Contains(t, entry.ErrorMessage, "3 window(s) failed")
	require.Contains(t, entry.ErrorMessage, "selector not found")
	require.Len(t, store.records, 7)
	require.Len(t, store.logs, 1)
}

func TestRunRetriesExactlyMaxAttempts(t *testing.T) {
	store := &memStore{}
	ws := windows(t, 1)
	x := &fakeExtractor{
		src: testSource(),
		failWindows: map[string]error{
			ws[0].CheckIn.Format(time.DateOnly): errors.New("boom"),
		},
	}

	entry, err := NewRunner(store).Run(context.Background(), x, Options{
		MaxRetries: 3,
		Windows:    ws,
	})
	require.NoError(t, err)

	require.Equal(t, pricestore.StatusFailed, entry.Status)
	require.Equal(t, 0, entry.RecordsScraped)
	require.Equal(t, 3, x.attempts[ws[0].CheckIn.Format(time.DateOnly)])
	// non-timeout failures recreate the session before every retry
	require.Equal(t, 3, x.sess.resets)
}

func TestRunTimeoutRetriesWithoutSessionReset(t *testing.T) {
	store := &memStore{}
	ws := windows(t, 1)
	x := &fakeExtractor{
		src: testSource(),
		failWindows: map[string]error{
			ws[0].CheckIn.Format(time.DateOnly): timeoutErr{},
		},
	}

	entry, err := NewRunner(store).Run(context.Background(), x, Options{
		MaxRetries: 2,
		Windows:    ws,
	})
	require.NoError(t, err)

	require.Equal(t, pricestore.StatusFailed, entry.Status)
	require.Equal(t, 2, x.attempts[ws[0].CheckIn.Format(time.DateOnly)])
	require.Zero(t, x.sess.resets)
}

func TestRunDryRunPersistsNothing(t *testing.T) {
	store := &memStore{}
	x := &fakeExtractor{src: testSource()}

	entry, err := NewRunner(store).Run(context.Background(), x, Options{
		MaxRetries: 3,
		DryRun:     true,
		Windows:    windows(t, 4),
	})
	require.NoError(t, err)

	require.Equal(t, pricestore.StatusDryRun, entry.Status)
	require.Equal(t, 4, entry.RecordsScraped)
	require.Empty(t, store.records)
	// the audit row is still written on dry runs
	require.Len(t, store.logs, 1)
}

func TestRunSessionOpenFailure(t *testing.T) {
	store := &memStore{}
	x := &fakeExtractor{src: testSource(), openErr: errors.New("browser did not start")}

	entry, err := NewRunner(store).Run(context.Background(), x, Options{
		MaxRetries: 3,
		Windows:    windows(t, 3),
	})
	require.Error(t, err)

	require.Equal(t, pricestore.StatusFailed, entry.Status)
	require.Contains(t, entry.ErrorMessage, "browser did not start")
	require.Len(t, store.logs, 1)
}

type fakeBatchExtractor struct {
	fakeExtractor
	attempts int
	failFor  int
	pageErrs []error
	records  int
}

func (f *fakeBatchExtractor) ExtractBatch(ctx context.Context, sess Session, opts BatchOptions, emit EmitFunc) ([]error, error) {
	f.attempts++
	if f.attempts <= f.failFor {
		return nil, errors.New("navigation failed")
	}
	price := 150.0
	for i := 0; i < f.records; i++ {
		checkIn := timezone.Date(2026, time.March, 6+7*i)
		err := emit(ctx, pricestore.Record{
			Competitor: f.src.Competitor,
			CheckIn:    checkIn,
			CheckOut:   checkIn.AddDate(0, 0, 2),
			Price:      &price,
			Available:  true,
		})
		if err != nil {
			return nil, err
		}
	}
	return f.pageErrs, nil
}

func TestRunBatchRetriesThenSucceeds(t *testing.T) {
	store := &memStore{}
	x := &fakeBatchExtractor{
		fakeExtractor: fakeExtractor{src: testSource()},
		failFor:       2,
		records:       6,
	}

	entry, err := NewRunner(store).Run(context.Background(), x, Options{MaxRetries: 3})
	require.NoError(t, err)

	require.Equal(t, pricestore.StatusSuccess, entry.Status)
	require.Equal(t, 6, entry.RecordsScraped)
	require.Equal(t, 3, x.attempts)
	require.Equal(t, 2, x.sess.resets)
}

func TestRunBatchAbsorbedPageErrorsMeanPartial(t *testing.T) {
	store := &memStore{}
	x := &fakeBatchExtractor{
		fakeExtractor: fakeExtractor{src: testSource()},
		records:       4,
		pageErrs:      []error{errors.New("page 3 did not render")},
	}

	entry, err := NewRunner(store).Run(context.Background(), x, Options{MaxRetries: 3})
	require.NoError(t, err)

	require.Equal(t, pricestore.StatusPartial, entry.Status)
	require.Equal(t, 4, entry.RecordsScraped)
	require.Contains(t, entry.ErrorMessage, "page 3 did not render")
}
