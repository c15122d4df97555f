// Package jobs runs the periodic background work of the service.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Completer closes out confirmed bookings whose slot has ended.
type Completer interface {
	CompleteElapsed(ctx context.Context) (int, error)
}

type Sweeper struct {
	cron    *cron.Cron
	target  Completer
	log     logrus.FieldLogger
	timeout time.Duration
}

// NewSweeper runs target on schedule, any expression robfig/cron accepts
// (for example "@every 5m" or "*/5 * * * *").
func NewSweeper(schedule string, target Completer, log logrus.FieldLogger) (*Sweeper, error) {
	s := &Sweeper{
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		target:  target,
		log:     log,
		timeout: time.Minute,
	}
	if _, err := s.cron.AddFunc(schedule, s.Run); err != nil {
		return nil, fmt.Errorf("schedule %q: %w", schedule, err)
	}
	return s, nil
}

func (s *Sweeper) Start() { s.cron.Start() }

// Stop waits for a sweep in progress to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

// Run performs one sweep.
func (s *Sweeper) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	n, err := s.target.CompleteElapsed(ctx)
	if err != nil {
		s.log.WithError(err).WithField("completed", n).Error("completion sweep failed")
		return
	}
	if n > 0 {
		s.log.WithField("completed", n).Info("completed elapsed bookings")
	}
}
