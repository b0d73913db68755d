// Package worker runs background jobs that live beside the HTTP server.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"github.com/iliyamo/task-manager/internal/queue"
	"github.com/iliyamo/task-manager/internal/repository"
)

// DueTaskLister selects the not-completed tasks due in [from, to).
type DueTaskLister interface {
	ListDueBetween(ctx context.Context, from, to time.Time) ([]repository.DueTask, error)
}

// ReminderPublisher hands reminder events to the broker.
type ReminderPublisher interface {
	PublishTaskDue(ctx context.Context, events []queue.TaskDueEvent) (int, error)
}

// ReminderScheduler publishes, once a day at a fixed UTC time, one
// reminder per task due on the next UTC calendar day.
type ReminderScheduler struct {
	tasks  DueTaskLister
	pub    ReminderPublisher
	at     time.Duration
	now    func() time.Time
	logger *slog.Logger
}

// NewReminderScheduler runs the scan daily at midnight UTC plus at. Values
// outside [0, 24h) fall back to 08:00.
func NewReminderScheduler(tasks DueTaskLister, pub ReminderPublisher, at time.Duration, logger *slog.Logger) *ReminderScheduler {
	if at < 0 || at >= 24*time.Hour {
		at = 8 * time.Hour
	}
	return &ReminderScheduler{tasks: tasks, pub: pub, at: at, now: time.Now, logger: logger}
}

// Run waits for each daily run time and scans, until ctx is cancelled.
// Nothing is scanned at startup, so a restart does not repeat the day's
// reminders.
func (s *ReminderScheduler) Run(ctx context.Context) {
	for {
		next := NextRun(s.now(), s.at)
		s.logger.Debug("next reminder scan", slog.Time("at", next))
		timer := time.NewTimer(next.Sub(s.now()))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		if n, err := s.ScanOnce(ctx); err != nil {
			s.logger.Error("reminder scan failed", slog.String("error", err.Error()), slog.Int("published", n))
		} else {
			s.logger.Info("reminder scan done", slog.Int("published", n))
		}
	}
}

// ScanOnce publishes reminders for tomorrow's tasks and returns how many
// were published.
func (s *ReminderScheduler) ScanOnce(ctx context.Context) (int, error) {
	now := s.now().UTC()
	from, to := Tomorrow(now)
	due, err := s.tasks.ListDueBetween(ctx, from, to)
	if err != nil {
		return 0, errors.Wrap(err, "list due tasks")
	}
	events := make([]queue.TaskDueEvent, 0, len(due))
	for _, t := range due {
		ev := queue.TaskDueEvent{
			TaskID:     t.ID,
			TaskName:   t.Name,
			Priority:   t.Priority,
			Status:     t.Status,
			OwnerID:    t.OwnerID,
			OwnerName:  t.OwnerName,
			OwnerEmail: t.OwnerEmail,
			ScannedAt:  now.Format(time.RFC3339),
		}
		if t.DueDate != nil {
			ev.DueDate = t.DueDate.UTC().Format(time.RFC3339)
		}
		events = append(events, ev)
	}
	return s.pub.PublishTaskDue(ctx, events)
}

// Tomorrow returns the UTC calendar day after now as [start, end).
func Tomorrow(now time.Time) (time.Time, time.Time) {
	y, m, d := now.UTC().Date()
	start := time.Date(y, m, d+1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, 1)
}

// NextRun returns the first instant strictly after now that falls at the
// given offset from a UTC midnight.
func NextRun(now time.Time, at time.Duration) time.Time {
	now = now.UTC()
	y, m, d := now.Date()
	next := time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Add(at)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
