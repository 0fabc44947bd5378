// Package links implements the management page's list refresh, filter reset,
// link submission and debug report against the link API.
package links

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"linkboard/internal/api"
	"linkboard/internal/domain"
	"linkboard/internal/metrics"
	"linkboard/internal/schedule"
)

// DefaultRefreshDelay gives the backend time to make a new link readable
// before the list is fetched again.
const DefaultRefreshDelay = time.Second

// User-facing alert messages.
const (
	MsgEmptyURL      = "링크 URL을 입력해주세요."
	MsgAddFailed     = "링크 추가에 실패했습니다."
	MsgAddTransport  = "링크 추가 중 오류가 발생했습니다."
	debugSampleLinks = 3
)

// ErrEmptyURL is returned by AddLink when the URL control is empty.
var ErrEmptyURL = errors.New("link url is empty")

// LinkAPI is the part of the REST client the service needs.
type LinkAPI interface {
	ListLinks(ctx context.Context, q api.ListQuery) ([]domain.Link, error)
	DebugLinks(ctx context.Context) ([]domain.Link, error)
	CreateLink(ctx context.Context, managementSiteID string, payload domain.CreateLinkRequest) (domain.Result, error)
}

// Service runs the link operations. It is safe for concurrent use.
type Service struct {
	api          LinkAPI
	scheduler    schedule.Scheduler
	refreshDelay time.Duration
	metrics      metrics.Recorder
	log          logrus.FieldLogger
}

// Option customizes a Service.
type Option func(*Service)

// WithScheduler replaces the scheduler used for the post-create refresh.
func WithScheduler(s schedule.Scheduler) Option {
	return func(svc *Service) { svc.scheduler = s }
}

// WithRefreshDelay sets the wait between a confirmed create and the refresh.
func WithRefreshDelay(d time.Duration) Option {
	return func(svc *Service) { svc.refreshDelay = d }
}

// WithMetrics sets the recorder for alerts and scheduled refreshes.
func WithMetrics(r metrics.Recorder) Option {
	return func(svc *Service) { svc.metrics = r }
}

// NewService creates the link service. Without options it refreshes after
// DefaultRefreshDelay on its own timers and records no metrics.
func NewService(client LinkAPI, logger logrus.FieldLogger, opts ...Option) *Service {
	s := &Service{
		api:          client,
		scheduler:    schedule.NewTimers(),
		refreshDelay: DefaultRefreshDelay,
		metrics:      metrics.Noop{},
		log:          logger.WithField("component", "links_service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) sessionLog(sess *Session) logrus.FieldLogger {
	return s.log.WithFields(logrus.Fields{
		"management_site_id": sess.ManagementSiteID,
		"platform":           sess.CurrentPlatform,
		"user":               sess.CurrentUser,
	})
}

func (s *Service) alert(ctx context.Context, sess *Session, log logrus.FieldLogger, message string) {
	s.metrics.IncAlerts()
	if err := sess.Alerter.Alert(ctx, message); err != nil {
		log.WithError(err).WithField("alert", message).Error("Failed to show alert")
	}
}
