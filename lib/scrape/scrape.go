// Package scrape drives extraction runs against one booking platform
// at a time: it paces outbound requests, retries transient failures,
// persists records as they are parsed and writes one audit row per run.
//
// Platform adapters plug in through the Extractor capability. An
// adapter either extracts one stay window at a time (WindowExtractor)
// or self-drives its own pagination (BatchExtractor); which one a
// source uses is fixed at construction, never switched at runtime.
package scrape

import (
	"context"
	"time"

	"parkwatch-backend/lib/datewindow"
	"parkwatch-backend/lib/pricestore"
)

// Source identifies one external property. It is plain data so the
// same extraction strategy can be instantiated once per competitor.
type Source struct {
	// config key, e.g. "beerze_bulten"
	Key               string
	Competitor        string
	AccommodationType string
	URL               string
}

// Session is the remote browsing/session state an adapter extracts
// through. Reset discards corrupted state without starting the run
// over; Close releases the underlying resources.
type Session interface {
	Reset(ctx context.Context) error
	Close(ctx context.Context) error
}

type Extractor interface {
	Source() Source
	OpenSession(ctx context.Context) (Session, error)
}

// WindowExtractor fetches and normalizes one stay window per call.
type WindowExtractor interface {
	Extractor
	// A nil record with a nil error means the window yielded nothing
	// parseable; that is zero-yield, not an error.
	ExtractWindow(ctx context.Context, sess Session, w datewindow.Window, persons int) (*pricestore.Record, error)
}

type BatchOptions struct {
	Persons int
	// furthest check-in date of interest, pagination stops beyond it
	Horizon time.Time
	// safety limit on pages/phases visited
	MaxPages int
	Limiter  *Limiter
}

type EmitFunc func(ctx context.Context, rec pricestore.Record) error

// BatchExtractor drives its own pagination and emits every normalized
// record through emit as soon as it is parsed, so an interrupted run
// still keeps partial progress.
type BatchExtractor interface {
	Extractor
	// pageErrs are per-page/per-unit failures that were absorbed
	// locally; a non-nil error means the whole batch attempt failed
	// and is subject to the retry policy.
	ExtractBatch(ctx context.Context, sess Session, opts BatchOptions, emit EmitFunc) (pageErrs []error, err error)
}

// Store is the slice of the price store the runner writes through.
type Store interface {
	SavePrice(ctx context.Context, rec pricestore.Record) error
	LogScrape(ctx context.Context, entry pricestore.LogEntry) error
}
