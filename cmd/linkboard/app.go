package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"linkboard/internal/api"
	"linkboard/internal/config"
	"linkboard/internal/links"
	"linkboard/internal/logging"
	"linkboard/internal/metrics"
	"linkboard/internal/page"
	"linkboard/internal/schedule"
	"linkboard/internal/storage"
)

// app holds the components shared by every command.
type app struct {
	cfg     config.Config
	log     *logrus.Logger
	metrics metrics.Recorder
	client  *api.Client
	timers  *schedule.Timers
	svc     *links.Service

	metricsSrv *http.Server
}

// newApp wires the shared components. Logs go to logOut so command output on
// stdout stays clean.
func newApp(configDir string, logOut io.Writer) (*app, error) {
	// --- Configuration Loading ---
	cfg, err := config.LoadConfig(configDir)
	if err != nil {
		return nil, fmt.Errorf("error loading configuration: %w", err)
	}

	// --- Logger Setup ---
	log, err := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile, Output: logOut})
	if err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"base_url":           cfg.BaseURL,
		"management_site_id": cfg.ManagementSiteID,
		"badgerdb_path":      cfg.BadgerDBPath,
	}).Info("Configuration loaded successfully")

	// --- Initialize Components ---
	a := &app{
		cfg:     cfg,
		log:     log,
		metrics: metrics.Noop{},
		timers:  schedule.NewTimers(),
	}
	if cfg.MetricsAddr != "" {
		a.startMetrics()
	}

	a.client, err = api.NewClient(cfg.BaseURL, cfg.HTTPTimeout, log, api.WithMetrics(a.metrics))
	if err != nil {
		return nil, err
	}
	a.svc = links.NewService(a.client, log,
		links.WithScheduler(a.timers),
		links.WithRefreshDelay(cfg.RefreshDelay),
		links.WithMetrics(a.metrics),
	)
	return a, nil
}

func (a *app) startMetrics() {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.metrics = metrics.NewPrometheus(reg)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	a.metricsSrv = &http.Server{
		Addr:              a.cfg.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	log := a.log.WithField("addr", a.cfg.MetricsAddr)
	go func() {
		if err := a.metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("Metrics server failed")
		}
	}()
	log.Info("Serving metrics")
}

// openRepo opens the snapshot database. Callers close it.
func (a *app) openRepo() (*storage.BadgerRepository, error) {
	repo, err := storage.NewBadgerRepository(a.cfg.BadgerDBPath, a.log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return repo, nil
}

func (a *app) closeRepo(repo storage.SnapshotRepository) {
	a.log.Debug("Closing database...")
	if err := repo.Close(); err != nil {
		a.log.WithError(err).Error("Error closing database")
	}
}

// newSession builds a session scoped to the configured site, platform and
// user.
func (a *app) newSession(doc page.Document, renderer links.Renderer, alerter links.Alerter) *links.Session {
	sess := links.NewSession(doc, renderer, alerter)
	sess.ManagementSiteID = a.cfg.ManagementSiteID
	sess.CurrentPlatform = a.cfg.CurrentPlatform
	sess.CurrentUser = a.cfg.CurrentUser
	return sess
}

// close cancels refreshes that have not fired yet and stops the metrics
// server.
func (a *app) close() {
	if n := a.timers.Stop(); n > 0 {
		a.log.WithField("pending", n).Warn("Cancelled scheduled refreshes")
	}
	a.timers.Wait()

	if a.metricsSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.metricsSrv.Shutdown(ctx); err != nil {
			a.log.WithError(err).Error("Error stopping metrics server")
		}
	}
}
