package app

import (
	"context"
	"time"

	"weightlog/internal/domain"

	"github.com/sirupsen/logrus"
)

// NextTrigger returns today at hour:minute:00 local time, or the same time
// tomorrow if that is before now.
func NextTrigger(now time.Time, hour, minute int) time.Time {
	now = now.In(time.Local)
	t := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, time.Local)
	if t.Before(now) {
		t = t.AddDate(0, 0, 1)
	}
	return t
}

// Notifier delivers a reminder to one user.
type Notifier interface {
	Notify(ctx context.Context, p domain.UserPreferences) error
}

// LogNotifier writes reminders to the log.
type LogNotifier struct {
	Log logrus.FieldLogger
}

// Notify implements Notifier.
func (n LogNotifier) Notify(_ context.Context, p domain.UserPreferences) error {
	n.Log.WithFields(logrus.Fields{
		"user_id": p.UserID,
		"time":    p.ReminderTime(),
	}).Info("time to record today's weight")
	return nil
}

// Scheduler fires daily reminders for every user that enabled them.
type Scheduler struct {
	prefs    domain.PreferencesRepository
	notifier Notifier
	log      logrus.FieldLogger
	resched  chan struct{}

	now   func() time.Time
	after func(time.Duration) <-chan time.Time

	// OnSent is called after each delivered reminder.
	OnSent func()
}

// NewScheduler creates a Scheduler. A nil notifier logs reminders.
func NewScheduler(prefs domain.PreferencesRepository, notifier Notifier, log logrus.FieldLogger) *Scheduler {
	if notifier == nil {
		notifier = LogNotifier{Log: log}
	}
	return &Scheduler{
		prefs:    prefs,
		notifier: notifier,
		log:      log,
		resched:  make(chan struct{}, 1),
		now:      time.Now,
		after:    time.After,
	}
}

// WithClock replaces the scheduler's time source and timer.
func (s *Scheduler) WithClock(now func() time.Time, after func(time.Duration) <-chan time.Time) *Scheduler {
	s.now = now
	s.after = after
	return s
}

// Reschedule makes a running scheduler reload reminder settings.
func (s *Scheduler) Reschedule() {
	select {
	case s.resched <- struct{}{}:
	default:
	}
}

var _ ReminderRescheduler = (*Scheduler)(nil)

const reminderRetry = time.Minute

// Run fires reminders until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	var fired time.Time
	for {
		users, err := s.prefs.ListReminders(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.log.WithError(err).Error("list reminders")
			if !s.wait(ctx, reminderRetry) {
				return nil
			}
			continue
		}

		from := s.now()
		if !fired.IsZero() && fired.Add(time.Second).After(from) {
			from = fired.Add(time.Second)
		}
		next, due := nextDue(from, users)
		if len(due) == 0 {
			// Nothing enabled; sleep until settings change.
			select {
			case <-ctx.Done():
				return nil
			case <-s.resched:
				continue
			}
		}
		if !s.wait(ctx, next.Sub(s.now())) {
			return nil
		}
		if s.now().Before(next) {
			// Woken by Reschedule.
			continue
		}

		for _, p := range due {
			if err := s.notifier.Notify(ctx, p); err != nil {
				s.log.WithError(err).WithField("user_id", p.UserID).Warn("send reminder")
				continue
			}
			if s.OnSent != nil {
				s.OnSent()
			}
		}
		fired = next
	}
}

// wait blocks for d, a reschedule or ctx. It returns false once ctx is done.
func (s *Scheduler) wait(ctx context.Context, d time.Duration) bool {
	if d < 0 {
		d = 0
	}
	select {
	case <-ctx.Done():
		return false
	case <-s.resched:
	case <-s.after(d):
	}
	return ctx.Err() == nil
}

// nextDue returns the earliest trigger at or after from and the users due then.
func nextDue(from time.Time, users []domain.UserPreferences) (time.Time, []domain.UserPreferences) {
	var next time.Time
	var due []domain.UserPreferences
	for _, p := range users {
		if !p.ReminderEnabled {
			continue
		}
		t := NextTrigger(from, p.ReminderHour, p.ReminderMinute)
		switch {
		case next.IsZero() || t.Before(next):
			next = t
			due = []domain.UserPreferences{p}
		case t.Equal(next):
			due = append(due, p)
		}
	}
	return next, due
}
