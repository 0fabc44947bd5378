package links

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"linkboard/internal/api"
	"linkboard/internal/domain"
	"linkboard/internal/page"
)

// AddLink submits the link typed into the form.
//
// An empty URL raises one alert and sends nothing. A server rejection alerts
// the server's message (or a generic one) and a transport failure alerts a
// generic message; neither schedules a refresh. On success the URL, memo and
// insurance controls are cleared and ForceRefresh is scheduled after the
// refresh delay.
func (s *Service) AddLink(ctx context.Context, sess *Session) (domain.Result, error) {
	log := s.sessionLog(sess)

	form, err := readForm(ctx, sess.Document)
	if err != nil {
		log.WithError(err).Error("Failed to read link form")
		return domain.Result{}, err
	}
	if form.URL == "" {
		s.alert(ctx, sess, log, MsgEmptyURL)
		return domain.Result{}, ErrEmptyURL
	}

	payload := domain.NewCreateLinkRequest(form.URL, sess.CurrentPlatform, sess.CurrentUser, form.Memo, form.Insured)
	log = log.WithFields(logrus.Fields{
		"url":                 payload.URL,
		"guarantee_insurance": payload.GuaranteeInsurance,
	})
	log.Info("Adding link")

	res, err := s.api.CreateLink(ctx, sess.ManagementSiteID, payload)
	if err != nil {
		log.WithError(err).Error("Failed to add link")
		s.alert(ctx, sess, log, MsgAddTransport)
		return domain.Result{}, fmt.Errorf("failed to add link: %w", err)
	}
	if !res.Success {
		message := res.Error
		if message == "" {
			message = MsgAddFailed
		}
		log.WithField("server_error", res.Error).Warn("Link rejected by server")
		s.alert(ctx, sess, log, message)
		return res, &api.RejectedError{Message: res.Error}
	}

	log.WithField("link_id", res.ID).Info("Link added, scheduling list refresh")
	if err := clearForm(ctx, sess.Document); err != nil {
		log.WithError(err).Warn("Failed to clear link form")
	}

	// The refresh outlives the caller's request but not the scheduler.
	detached := context.WithoutCancel(ctx)
	s.scheduler.AfterFunc(s.refreshDelay, func(stop context.Context) {
		if stop.Err() != nil {
			log.Info("Scheduler stopped, skipping list refresh")
			return
		}
		refreshCtx, cancel := context.WithCancel(detached)
		defer cancel()
		defer context.AfterFunc(stop, cancel)()

		if err := s.ForceRefresh(refreshCtx, sess); err != nil {
			log.WithError(err).Error("Scheduled refresh failed")
		}
	})
	s.metrics.IncScheduledRefreshes()

	return res, nil
}

type linkForm struct {
	URL     string
	Memo    string
	Insured bool
}

func readForm(ctx context.Context, doc page.Document) (linkForm, error) {
	var f linkForm
	var err error
	if f.URL, err = doc.Value(ctx, page.LinkURL); err != nil {
		return f, fmt.Errorf("failed to read #%s: %w", page.LinkURL, err)
	}
	if f.Memo, err = doc.Value(ctx, page.LinkMemo); err != nil {
		return f, fmt.Errorf("failed to read #%s: %w", page.LinkMemo, err)
	}
	if f.Insured, err = doc.Checked(ctx, page.GuaranteeInsurance); err != nil {
		return f, fmt.Errorf("failed to read #%s: %w", page.GuaranteeInsurance, err)
	}
	return f, nil
}

func clearForm(ctx context.Context, doc page.Document) error {
	if err := doc.SetValue(ctx, page.LinkURL, ""); err != nil {
		return err
	}
	if err := doc.SetValue(ctx, page.LinkMemo, ""); err != nil {
		return err
	}
	return doc.SetChecked(ctx, page.GuaranteeInsurance, false)
}
