package links

import (
	"context"
	"fmt"

	"linkboard/internal/domain"
	"linkboard/internal/page"
)

var filterControls = []string{
	page.PlatformFilter,
	page.UserFilter,
	page.LikeFilter,
	page.GuaranteeFilter,
}

// ForceRefresh resets the four filter controls to "all", clears the date
// filter, replaces the session filters with all "all" and reloads the list
// without cache.
func (s *Service) ForceRefresh(ctx context.Context, sess *Session) error {
	log := s.sessionLog(sess)
	log.Info("Forcing link list refresh")

	if err := resetFilterControls(ctx, sess.Document); err != nil {
		log.WithError(err).Error("Failed to reset filter controls")
		return err
	}

	filters := domain.AllFilters()
	sess.SetFilters(filters)
	if syncer, ok := sess.Document.(page.FilterSyncer); ok {
		if err := syncer.SyncFilters(ctx, filters); err != nil {
			log.WithError(err).Warn("Failed to sync filters to page")
		}
	}

	_, err := s.LoadLinksWithoutCache(ctx, sess)
	return err
}

func resetFilterControls(ctx context.Context, doc page.Document) error {
	for _, id := range filterControls {
		if err := doc.SetValue(ctx, id, domain.FilterAll); err != nil {
			return fmt.Errorf("failed to reset #%s: %w", id, err)
		}
	}
	if err := doc.SetValue(ctx, page.DateFilter, ""); err != nil {
		return fmt.Errorf("failed to reset #%s: %w", page.DateFilter, err)
	}
	return nil
}
