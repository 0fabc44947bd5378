package links

import (
	"context"
	"sync"

	"linkboard/internal/domain"
	"linkboard/internal/page"
)

// Renderer displays a fetched list. It must handle an empty list.
type Renderer interface {
	DisplayLinks(ctx context.Context, links []domain.Link) error
}

// Alerter shows a blocking, user-facing message.
type Alerter interface {
	Alert(ctx context.Context, message string) error
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(ctx context.Context, links []domain.Link) error

// DisplayLinks calls f(ctx, links).
func (f RendererFunc) DisplayLinks(ctx context.Context, links []domain.Link) error {
	return f(ctx, links)
}

// Session is the page context the operations act on: which customer site is
// open, who is working, the active filters, and the document, renderer and
// alerter supplied by the host.
type Session struct {
	ManagementSiteID string
	CurrentPlatform  string
	CurrentUser      string

	Document page.Document
	Renderer Renderer
	Alerter  Alerter

	mu      sync.Mutex
	filters domain.FilterState
}

// NewSession returns a session with all filters neutral.
func NewSession(doc page.Document, renderer Renderer, alerter Alerter) *Session {
	return &Session{
		Document: doc,
		Renderer: renderer,
		Alerter:  alerter,
		filters:  domain.AllFilters(),
	}
}

// Filters returns the active filter selections.
func (s *Session) Filters() domain.FilterState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filters
}

// SetFilters replaces the active filter selections.
func (s *Session) SetFilters(f domain.FilterState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filters = f
}
