package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Refresher recomputes derived data such as cached reports and gauges.
// It must not write to the ledger.
type Refresher interface {
	RefreshReports(ctx context.Context) error
}

type ReportRefresher struct {
	cron      *cron.Cron
	refresher Refresher
	logger    *zap.Logger
	timeout   time.Duration

	mu      sync.Mutex
	jobID   cron.EntryID
	started bool
}

func NewReportRefresher(refresher Refresher, logger *zap.Logger) *ReportRefresher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportRefresher{
		cron:      cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		refresher: refresher,
		logger:    logger,
		timeout:   time.Minute,
	}
}

// Start schedules the refresh with a six-field cron spec, e.g. "0 */5 * * * *".
func (r *ReportRefresher) Start(spec string) error {
	if err := r.UpdateSchedule(spec); err != nil {
		return err
	}
	r.logger.Info("report refresh scheduled", zap.String("spec", spec))
	return nil
}

// Stop waits for a running refresh to finish.
func (r *ReportRefresher) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
	r.logger.Info("report refresh stopped")
}

// UpdateSchedule replaces the running schedule. An empty spec removes the
// job; an invalid spec leaves the current one in place.
func (r *ReportRefresher) UpdateSchedule(spec string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var id cron.EntryID
	if spec != "" {
		var err error
		id, err = r.cron.AddFunc(spec, r.RunOnce)
		if err != nil {
			return fmt.Errorf("schedule report refresh: %w", err)
		}
	}
	if r.jobID != 0 {
		r.cron.Remove(r.jobID)
	}
	r.jobID = id
	if id != 0 && !r.started {
		r.cron.Start()
		r.started = true
	}
	return nil
}

// Scheduled reports whether a refresh job is currently registered.
func (r *ReportRefresher) Scheduled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.jobID != 0
}

func (r *ReportRefresher) RunOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	start := time.Now()
	if err := r.refresher.RefreshReports(ctx); err != nil {
		r.logger.Warn("report refresh failed", zap.Error(err))
		return
	}
	r.logger.Debug("report refresh done", zap.Duration("elapsed", time.Since(start)))
}
