package links

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"linkboard/internal/api"
	"linkboard/internal/domain"
)

// LoadLinksWithoutCache fetches the session's list with caching disabled and
// every filter forced to "all", then hands the result to the session's
// renderer. An empty list is rendered too. Failures are logged and returned;
// nothing is rendered on failure.
func (s *Service) LoadLinksWithoutCache(ctx context.Context, sess *Session) ([]domain.Link, error) {
	log := s.sessionLog(sess)
	log.Debug("Loading links without cache")

	return s.loadAndRender(ctx, sess, log, api.ListQuery{
		ManagementSiteID: sess.ManagementSiteID,
		Filters:          domain.AllFilters(),
		NoCache:          true,
	})
}

// LoadLinks fetches the list narrowed by the session filters and date
// (YYYY-MM-DD, empty for any day) the way the page normally loads it, and
// renders the result.
func (s *Service) LoadLinks(ctx context.Context, sess *Session, date string) ([]domain.Link, error) {
	filters := sess.Filters()
	if err := filters.Validate(); err != nil {
		return nil, err
	}
	if date != "" {
		if _, err := time.Parse(time.DateOnly, date); err != nil {
			return nil, fmt.Errorf("invalid date filter %q: %w", date, err)
		}
	}
	log := s.sessionLog(sess).WithFields(logrus.Fields{"filters": filters, "date": date})
	log.Debug("Loading filtered links")

	return s.loadAndRender(ctx, sess, log, api.ListQuery{
		ManagementSiteID: sess.ManagementSiteID,
		Filters:          filters,
		Date:             date,
	})
}

func (s *Service) loadAndRender(ctx context.Context, sess *Session, log logrus.FieldLogger, q api.ListQuery) ([]domain.Link, error) {
	links, err := s.api.ListLinks(ctx, q)
	if err != nil {
		log.WithError(err).Error("Failed to load links")
		return nil, fmt.Errorf("failed to load links: %w", err)
	}

	entry := log.WithField("link_count", len(links))
	if len(links) > 0 {
		entry = entry.WithField("latest_url", links[0].URL)
	}
	entry.Info("Links loaded")

	if err := sess.Renderer.DisplayLinks(ctx, links); err != nil {
		log.WithError(err).Error("Failed to display links")
		return links, fmt.Errorf("failed to display links: %w", err)
	}
	return links, nil
}
