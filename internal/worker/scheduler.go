package worker

import (
    "context"
    "sync"
    "time"

    "go.uber.org/zap"
)

// Job is one scheduled run.
type Job func(ctx context.Context)

// Scheduler runs a job on a fixed interval until stopped.
type Scheduler struct {
    job      Job
    logger   *zap.Logger
    interval time.Duration
    wg       sync.WaitGroup
    stop     chan struct{}
    once     sync.Once
}

func NewScheduler(job Job, logger *zap.Logger, interval time.Duration) *Scheduler {
    return &Scheduler{
        job:      job,
        logger:   logger,
        interval: interval,
        stop:     make(chan struct{}),
    }
}

// Start launches the loop. A non-positive interval disables the scheduler.
func (s *Scheduler) Start(ctx context.Context) {
    if s.interval <= 0 {
        s.logger.Info("Reminder scheduler disabled")
        return
    }
    s.logger.Info("Starting reminder scheduler", zap.Duration("interval", s.interval))

    s.wg.Add(1)
    go s.loop(ctx)
}

func (s *Scheduler) Stop() {
    s.once.Do(func() {
        s.logger.Info("Stopping reminder scheduler...")
        close(s.stop)
    })
    s.wg.Wait()
    s.logger.Info("Reminder scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context) {
    defer s.wg.Done()

    ticker := time.NewTicker(s.interval)
    defer ticker.Stop()

    for {
        select {
        case <-s.stop:
            return
        case <-ctx.Done():
            return
        case <-ticker.C:
            s.run(ctx)
        }
    }
}

func (s *Scheduler) run(ctx context.Context) {
    defer func() {
        if r := recover(); r != nil {
            s.logger.Error("reminder job panicked", zap.Any("panic", r))
        }
    }()
    s.job(ctx)
}
