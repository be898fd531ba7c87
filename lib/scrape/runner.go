package scrape

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"parkwatch-backend/lib/datewindow"
	"parkwatch-backend/lib/pricestore"
)

var tracer = otel.Tracer("parkwatch.lib.scrape")

type Options struct {
	// minimum spacing between outbound requests
	RateLimit time.Duration
	// attempts per window (or per batch), not per run
	MaxRetries int
	Persons    int
	// furthest check-in date of interest
	Horizon time.Time
	// safety limit for self-paginating extractors
	MaxPages int
	// parse everything, persist nothing
	DryRun bool
	// stay windows for window-mode extractors, ignored in batch mode
	Windows []datewindow.Window
}

type Runner struct {
	store Store
}

func NewRunner(store Store) Runner {
	return Runner{store: store}
}

// Run processes one source to completion and writes exactly one scrape
// log row. Per-window errors are absorbed into the run's
// classification; the returned error covers only failures of the run
// itself (session could not be opened, log row could not be written).
func (r Runner) Run(ctx context.Context, x Extractor, opts Options) (pricestore.LogEntry, error) {
	ctx, span := tracer.Start(ctx, "Run")
	defer span.End()

	src := x.Source()
	span.SetAttributes(attribute.String("competitor", src.Competitor))

	start := time.Now()
	saved := 0
	errCount := 0
	var errList []error

	emit := func(ctx context.Context, rec pricestore.Record) error {
		if !opts.DryRun {
			err := r.store.SavePrice(ctx, rec)
			if err != nil {
				return err
			}
		}
		saved++
		return nil
	}

	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	limiter := NewLimiter(opts.RateLimit)

	slog.InfoContext(ctx, "starting scrape",
		"competitor", src.Competitor,
		"windows", len(opts.Windows),
		"dry_run", opts.DryRun,
	)

	sess, err := x.OpenSession(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to open session")

		entry := pricestore.LogEntry{
			Competitor:   src.Competitor,
			Status:       pricestore.StatusFailed,
			ErrorMessage: fmt.Sprintf("open session: %s", err.Error()),
			Duration:     time.Since(start),
		}
		if logErr := r.store.LogScrape(ctx, entry); logErr != nil {
			return entry, errors.Join(err, logErr)
		}
		return entry, err
	}
	defer sess.Close(ctx)

	switch v := x.(type) {
	case BatchExtractor:
		batchOpts := BatchOptions{
			Persons:  opts.Persons,
			Horizon:  opts.Horizon,
			MaxPages: opts.MaxPages,
			Limiter:  limiter,
		}
		pageErrs := r.runBatch(ctx, v, sess, batchOpts, opts.MaxRetries, emit)
		errCount += len(pageErrs)
		errList = append(errList, pageErrs...)

	case WindowExtractor:
		for _, w := range opts.Windows {
			err := r.runWindow(ctx, v, sess, w, opts, limiter, emit)
			if err != nil {
				errCount++
				errList = append(errList, err)
			}
		}

	default:
		err := fmt.Errorf("extractor %q implements neither window nor batch extraction", src.Key)
		span.RecordError(err)
		return pricestore.LogEntry{}, err
	}

	status := pricestore.StatusSuccess
	if errCount > 0 {
		if saved > 0 {
			status = pricestore.StatusPartial
		} else {
			status = pricestore.StatusFailed
		}
	}
	if opts.DryRun {
		status = pricestore.StatusDryRun
	}

	message := ""
	if errCount > 0 {
		message = fmt.Sprintf("%d window(s) failed: %s", errCount, errors.Join(errList...).Error())
	}

	entry := pricestore.LogEntry{
		Competitor:     src.Competitor,
		Status:         status,
		RecordsScraped: saved,
		ErrorMessage:   message,
		Duration:       time.Since(start),
	}
	err = r.store.LogScrape(ctx, entry)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to write scrape log")
		return entry, err
	}

	slog.InfoContext(ctx, "completed scrape",
		"competitor", src.Competitor,
		"status", status,
		"records", saved,
		"errors", errCount,
		"duration", entry.Duration.Round(time.Second),
	)
	return entry, nil
}

// runWindow attempts one stay window up to MaxRetries times. Timeouts
// retry against the live session; any other failure recreates the
// session first to clear corrupted state.
func (r Runner) runWindow(
	ctx context.Context,
	x WindowExtractor,
	sess Session,
	w datewindow.Window,
	opts Options,
	limiter *Limiter,
	emit EmitFunc,
) error {
	var lastErr error

	for attempt := 1; attempt <= opts.MaxRetries; attempt++ {
		if err := limiter.Wait(ctx); err != nil {
			return err
		}

		rec, err := x.ExtractWindow(ctx, sess, w, opts.Persons)
		if err == nil {
			if rec == nil {
				slog.WarnContext(ctx, "window yielded no record",
					"check_in", w.CheckIn.Format(time.DateOnly),
					"check_out", w.CheckOut.Format(time.DateOnly),
				)
				return nil
			}
			return emit(ctx, *rec)
		}
		lastErr = err

		if IsTimeout(err) {
			slog.WarnContext(ctx, "timeout, retrying",
				"attempt", attempt,
				"max_retries", opts.MaxRetries,
				"check_in", w.CheckIn.Format(time.DateOnly),
				"err", err,
			)
			continue
		}

		slog.WarnContext(ctx, "extraction error, recreating session",
			"attempt", attempt,
			"max_retries", opts.MaxRetries,
			"check_in", w.CheckIn.Format(time.DateOnly),
			"err", err,
		)
		if resetErr := sess.Reset(ctx); resetErr != nil {
			slog.ErrorContext(ctx, "failed to recreate session", "err", resetErr)
		}
	}

	return fmt.Errorf(
		"window %s -> %s failed after %d attempts: %w",
		w.CheckIn.Format(time.DateOnly), w.CheckOut.Format(time.DateOnly),
		opts.MaxRetries, lastErr,
	)
}

func (r Runner) runBatch(
	ctx context.Context,
	x BatchExtractor,
	sess Session,
	opts BatchOptions,
	maxRetries int,
	emit EmitFunc,
) []error {
	var lastErr error

	for attempt := 1; attempt <= maxRetries; attempt++ {
		pageErrs, err := x.ExtractBatch(ctx, sess, opts, emit)
		if err == nil {
			return pageErrs
		}
		lastErr = err

		if IsTimeout(err) {
			slog.WarnContext(ctx, "batch timeout, retrying",
				"attempt", attempt, "max_retries", maxRetries, "err", err)
			continue
		}
		slog.WarnContext(ctx, "batch error, recreating session",
			"attempt", attempt, "max_retries", maxRetries, "err", err)
		if resetErr := sess.Reset(ctx); resetErr != nil {
			slog.ErrorContext(ctx, "failed to recreate session", "err", resetErr)
		}
	}

	return []error{fmt.Errorf("batch failed after %d attempts: %w", maxRetries, lastErr)}
}
