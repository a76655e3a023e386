package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/trezcool/miradi/core"
	"github.com/trezcool/miradi/core/notification"
)

// DeadlineScanner is satisfied by *notification.Scanner.
type DeadlineScanner interface {
	Scan(ctx context.Context, windowDays int) (notification.ScanReport, error)
}

// Scheduler runs the deadline scan periodically.
type Scheduler struct {
	cronEngine *cron.Cron
	scanner    DeadlineScanner
	logger     core.Logger
	spec       string
	windowDays int
	timeout    time.Duration
}

func New(scanner DeadlineScanner, logger core.Logger, loc *time.Location, conf core.NotificationsConfig) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{
		cronEngine: cron.New(cron.WithLocation(loc)),
		scanner:    scanner,
		logger:     logger,
		spec:       conf.ScanSchedule,
		windowDays: conf.ScanWindowDays,
		timeout:    conf.ScanTimeout,
	}
}

// Start registers the scan job and starts the cron engine.
func (s *Scheduler) Start() error {
	if _, err := s.cronEngine.AddFunc(s.spec, s.RunScan); err != nil {
		return errors.Wrapf(err, "adding deadline scan job %q", s.spec)
	}
	s.cronEngine.Start()
	s.logger.Info(fmt.Sprintf("deadline scan scheduled: %q, %d days window", s.spec, s.windowDays))
	return nil
}

// RunScan runs one scan, bounded by the configured timeout.
func (s *Scheduler) RunScan() {
	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	if _, err := s.scanner.Scan(ctx, s.windowDays); err != nil {
		s.logger.Error(fmt.Sprintf("scheduled deadline scan: %v", err), err)
	}
}

// Stop stops scheduling and waits for a running scan, or for ctx to be done.
func (s *Scheduler) Stop(ctx context.Context) error {
	select {
	case <-s.cronEngine.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
