// Package scheduler runs periodic maintenance jobs on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"photopipe/internal/logger"
)

// Task is one periodic job. It receives the scheduler's context, which is
// cancelled on Stop.
type Task func(ctx context.Context) error

type Scheduler struct {
	cron   *cron.Cron
	log    *logrus.Entry
	ctx    context.Context
	cancel context.CancelFunc
}

func New(log logrus.FieldLogger) *Scheduler {
	entry := logger.Component(log, "cron")
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		log:    entry,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Add registers task under name with a six-field (seconds first) spec.
func (s *Scheduler) Add(name, spec string, task Task) error {
	const op = "scheduler.Add"

	_, err := s.cron.AddJob(spec, s.wrap(name, task))
	if err != nil {
		return fmt.Errorf("%s: %s: %w", op, name, err)
	}
	s.log.WithFields(logrus.Fields{"job": name, "schedule": spec}).Info("job registered")
	return nil
}

func (s *Scheduler) wrap(name string, task Task) cron.Job {
	return cron.FuncJob(func() {
		log := s.log.WithFields(logrus.Fields{"job": name, "execution_id": uuid.NewString()})
		defer func() {
			if r := recover(); r != nil {
				log.WithField("panic", r).WithField("stack", string(debug.Stack())).Error("job panicked")
			}
		}()

		start := time.Now()
		log.Info("job started")
		if err := task(s.ctx); err != nil {
			log.WithError(err).Error("job failed")
			return
		}
		log.WithField("duration", time.Since(start).String()).Info("job finished")
	})
}

func (s *Scheduler) Start() { s.cron.Start() }

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
}
