// Package schedulersvc runs the periodic back-office jobs.
package schedulersvc

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/EllowDigital/GSAI-IN-sub000/core"
)

// ReminderSender is implemented by fee.Service.
type ReminderSender interface {
	SendReminders(ctx context.Context, year, month int) (int, error)
}

// Scheduler sends fee reminders for the current month on a cron schedule.
type Scheduler struct {
	cron    *cron.Cron
	sender  ReminderSender
	logger  core.Logger
	timeout time.Duration
}

var nowFunc = time.Now // mockable

const jobTimeout = 5 * time.Minute

func New(conf core.RemindersConfig, sender ReminderSender, logger core.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:    cron.New(cron.WithLocation(time.UTC), cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger))),
		sender:  sender,
		logger:  logger,
		timeout: jobTimeout,
	}
	if _, err := s.cron.AddFunc(conf.Schedule, s.run); err != nil {
		return nil, errors.Wrapf(err, "scheduling fee reminders (%q)", conf.Schedule)
	}
	return s, nil
}

func (s *Scheduler) Start() { s.cron.Start() }

// Stop stops the scheduler. The returned context is done once running jobs complete.
func (s *Scheduler) Stop() context.Context { return s.cron.Stop() }

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if _, err := s.SendReminders(ctx); err != nil {
		s.logger.Error(fmt.Sprintf("fee reminders: %v", err), err)
	}
}

// SendReminders sends the reminders of the current (UTC) month.
func (s *Scheduler) SendReminders(ctx context.Context) (int, error) {
	now := nowFunc().UTC()
	n, err := s.sender.SendReminders(ctx, now.Year(), int(now.Month()))
	return n, errors.Wrap(err, "sending reminders")
}
