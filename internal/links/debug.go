package links

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"linkboard/internal/domain"
	"linkboard/internal/page"
)

// DebugReport is what DebugStatus observed. RenderedCount comes from the
// document and APICount from the debug endpoint; they are independent.
type DebugReport struct {
	ManagementSiteID string
	CurrentPlatform  string
	CurrentUser      string
	Filters          domain.FilterState

	RenderedCount int
	APICount      int
	// Recent holds up to three records from the debug response.
	Recent []domain.Link
	// APIError is set when the debug fetch failed.
	APIError error
}

// DebugStatus logs the session context, the number of rendered list items
// and the size of the unfiltered debug list. It changes nothing on the page.
// Only a failure to count rendered items is returned; a failed debug fetch is
// logged and recorded in the report.
func (s *Service) DebugStatus(ctx context.Context, sess *Session) (DebugReport, error) {
	report := DebugReport{
		ManagementSiteID: sess.ManagementSiteID,
		CurrentPlatform:  sess.CurrentPlatform,
		CurrentUser:      sess.CurrentUser,
		Filters:          sess.Filters(),
	}
	log := s.sessionLog(sess).WithField("filters", report.Filters)
	log.Info("Debug status")

	var g errgroup.Group
	g.Go(func() error {
		n, err := sess.Document.Count(ctx, page.LinkItemsSelector)
		if err != nil {
			return fmt.Errorf("failed to count rendered links: %w", err)
		}
		report.RenderedCount = n
		return nil
	})
	g.Go(func() error {
		links, err := s.api.DebugLinks(ctx)
		if err != nil {
			report.APIError = err
			return nil
		}
		report.APICount = len(links)
		report.Recent = links[:min(len(links), debugSampleLinks)]
		return nil
	})
	err := g.Wait()

	if err != nil {
		log.WithError(err).Error("Failed to count rendered links")
	} else {
		log.WithField("rendered_count", report.RenderedCount).Info("Rendered links counted")
	}
	if report.APIError != nil {
		log.WithError(report.APIError).Error("Debug fetch failed")
	} else {
		entry := log.WithField("api_count", report.APICount)
		if len(report.Recent) > 0 {
			entry = entry.WithField("recent", report.Recent)
		}
		entry.Info("Debug fetch completed")
	}
	return report, err
}
