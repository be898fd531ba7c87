package browser

import (
	"context"
	"log/slog"
)

// Session bundles a browser with its current tab so the scrape loop
// can throw away corrupted page state without relaunching chromium.
type Session struct {
	browser *Browser
	tab     *Tab
}

func NewSession(ctx context.Context, opts Options) (*Session, error) {
	b := Launch(opts)
	tab, err := b.NewTab(ctx)
	if err != nil {
		b.Close()
		return nil, err
	}
	return &Session{browser: b, tab: tab}, nil
}

func (s *Session) Tab() *Tab {
	return s.tab
}

// Reset replaces the current tab with a fresh one.
func (s *Session) Reset(ctx context.Context) error {
	slog.DebugContext(ctx, "recreating browser tab")
	s.tab.Close()
	tab, err := s.browser.NewTab(ctx)
	if err != nil {
		return err
	}
	s.tab = tab
	return nil
}

func (s *Session) Close(ctx context.Context) error {
	s.tab.Close()
	s.browser.Close()
	return nil
}
