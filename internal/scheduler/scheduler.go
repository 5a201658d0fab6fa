package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"
)

// Publisher is the work the scheduler drives: a supervised poll of the CSV
// and a supervised backup of the published file.
type Publisher interface {
	Tick(ctx context.Context)
	BackupTick(ctx context.Context)
}

// Scheduler periodically polls for new rows and backs up the published file.
type Scheduler struct {
	scheduler *gocron.Scheduler
	publisher Publisher
	poll      time.Duration
	backup    time.Duration
	logger    *zap.Logger

	cancel  context.CancelFunc
	stopped chan struct{}
}

// New creates a new Scheduler.
func New(publisher Publisher, poll, backup time.Duration, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		publisher: publisher,
		poll:      poll,
		backup:    backup,
		logger:    logger,
	}
}

// Start schedules both jobs and starts the underlying scheduler. The poll job
// runs immediately; the backup job waits for its first interval. Jobs stop
// being scheduled when ctx is done or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)

	if s.poll <= 0 {
		s.poll = 10 * time.Second
	}
	if s.backup <= 0 {
		s.backup = s.poll
	}

	_, err := s.scheduler.Every(s.poll).SingletonMode().Do(func() {
		s.publisher.Tick(ctx)
	})
	if err != nil {
		cancel()
		return err
	}

	_, err = s.scheduler.Every(s.backup).SingletonMode().WaitForSchedule().Do(func() {
		s.publisher.BackupTick(ctx)
	})
	if err != nil {
		cancel()
		return err
	}

	s.scheduler.StartAsync()
	s.logger.Info("scheduler started",
		zap.Duration("poll_interval", s.poll),
		zap.Duration("backup_interval", s.backup))

	s.cancel = cancel
	s.stopped = make(chan struct{})
	go func() {
		defer close(s.stopped)
		<-ctx.Done()
		s.scheduler.Stop()
		s.logger.Info("scheduler stopped")
	}()
	return nil
}

// Stop stops the scheduler and cancels any future jobs. It waits for the
// scheduler to wind down.
func (s *Scheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.stopped
}
