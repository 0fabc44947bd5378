// Package render shows link lists and alerts outside a browser.
package render

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/sirupsen/logrus"

	"linkboard/internal/domain"
	"linkboard/internal/links"
	"linkboard/internal/storage"
)

// EmptyState is printed instead of a table when there are no links.
const EmptyState = "등록된 링크가 없습니다."

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	emptyStyle  = lipgloss.NewStyle().Faint(true)
)

// Terminal prints link lists as a table and records each rendered list as
// the site's snapshot.
type Terminal struct {
	out    io.Writer
	repo   storage.SnapshotRepository
	siteID string
	log    logrus.FieldLogger
}

// NewTerminal creates a terminal renderer. repo may be nil to skip
// snapshots.
func NewTerminal(out io.Writer, repo storage.SnapshotRepository, siteID string, logger logrus.FieldLogger) *Terminal {
	return &Terminal{
		out:    out,
		repo:   repo,
		siteID: siteID,
		log:    logger.WithField("component", "terminal_renderer"),
	}
}

func (t *Terminal) DisplayLinks(ctx context.Context, list []domain.Link) error {
	if t.repo != nil {
		if err := t.repo.SaveSnapshot(ctx, t.siteID, list); err != nil {
			t.log.WithError(err).Warn("Failed to store rendered snapshot")
		}
	}

	if len(list) == 0 {
		_, err := fmt.Fprintln(t.out, emptyStyle.Render(EmptyState))
		return err
	}
	_, err := fmt.Fprintln(t.out, Table(list))
	return err
}

// Table formats links as a bordered table.
func Table(list []domain.Link) string {
	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return lipgloss.NewStyle()
		}).
		Headers("#", "ID", "PLATFORM", "ADDED BY", "DATE", "LIKE", "INSURANCE", "URL", "MEMO")

	for _, l := range list {
		tbl.Row(
			strconv.Itoa(l.Number),
			strconv.FormatInt(l.ID, 10),
			l.Platform,
			l.AddedBy,
			l.DateAdded,
			likeMark(l),
			check(l.GuaranteeInsurance),
			l.URL,
			l.Memo,
		)
	}
	return tbl.Render()
}

func likeMark(l domain.Link) string {
	switch {
	case l.Liked:
		return "👍"
	case l.Disliked:
		return "👎"
	default:
		return ""
	}
}

func check(b bool) string {
	if b {
		return "✓"
	}
	return ""
}

// Multi fans a list out to several renderers. Every renderer runs even if
// an earlier one fails.
type Multi []links.Renderer

func (m Multi) DisplayLinks(ctx context.Context, list []domain.Link) error {
	var errs []error
	for _, r := range m {
		if err := r.DisplayLinks(ctx, list); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
