package browser

import (
	"context"
	"time"

	"github.com/chromedp/chromedp"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) " +
	"Chrome/131.0.0.0 Safari/537.36"

type Options struct {
	Headless bool
	// applied to every Tab.Run call, zero means no deadline
	Timeout time.Duration
}

// Browser owns a chromium exec allocator. Tabs are cheap, the browser
// process is not, so one Browser is shared across all pages of a run.
type Browser struct {
	allocCtx    context.Context
	cancelAlloc context.CancelFunc
	opts        Options
}

func Launch(opts Options) *Browser {
	flags := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("lang", "nl-NL"),
		chromedp.Flag("log-level", "3"),
		chromedp.UserAgent(userAgent),
		chromedp.WindowSize(1920, 1080),
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), flags...)
	return &Browser{
		allocCtx:    allocCtx,
		cancelAlloc: cancelAlloc,
		opts:        opts,
	}
}

func (b *Browser) Close() {
	b.cancelAlloc()
}

// Tab is a single chromium page. A corrupted tab (stuck navigation,
// broken JS state) is discarded and replaced rather than repaired.
type Tab struct {
	ctx     context.Context
	cancel  context.CancelFunc
	timeout time.Duration
}

func (b *Browser) NewTab(ctx context.Context) (*Tab, error) {
	tabCtx, cancel := chromedp.NewContext(
		b.allocCtx,
		chromedp.WithLogf(func(string, ...interface{}) {}),
	)
	// spin up the chromium process / page eagerly so failures surface
	// here instead of on the first navigation
	err := chromedp.Run(tabCtx)
	if err != nil {
		cancel()
		return nil, err
	}
	return &Tab{
		ctx:     tabCtx,
		cancel:  cancel,
		timeout: b.opts.Timeout,
	}, nil
}

func (t *Tab) Close() {
	t.cancel()
}

// Run executes the actions with the browser's per-operation timeout.
// A timeout surfaces as context.DeadlineExceeded, which the retry
// loop treats as transient.
func (t *Tab) Run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx := t.ctx
	if t.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(runCtx, t.timeout)
		defer cancel()
	}
	done := make(chan error, 1)
	go func() {
		done <- chromedp.Run(runCtx, actions...)
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
