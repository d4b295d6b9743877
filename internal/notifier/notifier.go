// Package notifier announces the events of the current Jalali day.
package notifier

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tartampluch/go-shamsi/internal/config"
	"github.com/tartampluch/go-shamsi/internal/engine"
	"github.com/tartampluch/go-shamsi/internal/events"
	"github.com/tartampluch/go-shamsi/internal/jalali"
)

// Notification is what gets shown for a day with events.
type Notification struct {
	Date   jalali.Date `json:"date"`
	Title  string      `json:"title"`
	Titles []string    `json:"events"`
}

// Sink delivers a notification to the user.
type Sink interface {
	Notify(ctx context.Context, n Notification) error
}

// SnapshotSource provides the current event set.
type SnapshotSource interface {
	Snapshot(ctx context.Context) (events.Set, error)
}

// LogSink writes notifications to the structured log.
type LogSink struct{}

// Notify implements Sink.
func (LogSink) Notify(ctx context.Context, n Notification) error {
	slog.InfoContext(ctx, n.Title,
		config.LogKeyComponent, config.CompNotifier,
		config.LogKeyDate, n.Date.String(),
		config.LogKeyEvents, n.Titles,
	)
	return nil
}

// Notifier checks today's events and delivers each day's notification at
// most once. The in-app panel can be cleared until the day changes.
type Notifier struct {
	Clock  engine.Clock
	Source SnapshotSource
	Sink   Sink

	// Title is the heading of every notification.
	Title string

	mu        sync.Mutex
	offset    time.Duration
	settings  config.NotificationSettings
	day       jalali.Date
	delivered bool
	cleared   bool
}

// New builds a notifier from the user settings.
func New(clock engine.Clock, src SnapshotSource, sink Sink, s *config.Settings) *Notifier {
	n := &Notifier{
		Clock:  clock,
		Source: src,
		Sink:   sink,
		Title:  config.MsgEventToday,
	}
	n.Apply(s)
	return n
}

// Apply swaps in reloaded settings.
func (n *Notifier) Apply(s *config.Settings) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.offset = s.Calendar.Offset()
	n.settings = s.Notifications
}

// rollover resets the per-day state when the observed day changes.
// The caller holds n.mu.
func (n *Notifier) rollover() jalali.Date {
	today := engine.Today(n.Clock, n.offset)
	if today != n.day {
		n.day = today
		n.delivered = false
		n.cleared = false
	}
	return today
}

// Pending returns the panel content for today: nil under DND, once cleared
// or when nothing is scheduled. Disabling notifications only stops delivery.
func (n *Notifier) Pending(ctx context.Context) (*Notification, error) {
	n.mu.Lock()
	today := n.rollover()
	hidden := n.settings.DND || n.cleared
	n.mu.Unlock()

	if hidden {
		return nil, nil
	}
	return n.build(ctx, today)
}

// Clear hides today's panel until the next day.
func (n *Notifier) Clear() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.rollover()
	n.cleared = true
}

// Check runs one tick: it delivers today's notification unless it was
// already sent or notifications are muted. It reports whether a
// notification was delivered.
func (n *Notifier) Check(ctx context.Context) (bool, error) {
	n.mu.Lock()
	today := n.rollover()
	muted, dnd := n.settings.Muted(), n.settings.DND
	already := n.delivered
	n.mu.Unlock()

	log := slog.With(config.LogKeyComponent, config.CompNotifier)
	if muted {
		log.Debug(config.MsgNotifyMuted, config.LogKeyDND, dnd)
		return false, nil
	}
	if already {
		return false, nil
	}

	note, err := n.build(ctx, today)
	if err != nil || note == nil {
		return false, err
	}
	if err := n.Sink.Notify(ctx, *note); err != nil {
		return false, fmt.Errorf("%s: %w", config.ErrNotify, err)
	}

	n.mu.Lock()
	// The day may have rolled over while delivering.
	if n.day == today {
		n.delivered = true
	}
	n.mu.Unlock()

	log.Info(config.MsgNotifySent, config.LogKeyDate, today.String(), config.LogKeyCount, len(note.Titles))
	return true, nil
}

func (n *Notifier) build(ctx context.Context, today jalali.Date) (*Notification, error) {
	set, err := n.Source.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	titles := set.Titles(today)
	if len(titles) == 0 {
		return nil, nil
	}
	return &Notification{Date: today, Title: n.Title, Titles: titles}, nil
}

// Run calls Check every interval until ctx is cancelled.
func (n *Notifier) Run(ctx context.Context, interval time.Duration) error {
	log := slog.With(
		config.LogKeyComponent, config.CompNotifier,
		config.LogKeyInterval, interval.String(),
	)
	log.Info(config.MsgWorkerStart)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := n.Check(ctx); err != nil {
			log.Warn(config.ErrNotify, config.LogKeyError, err)
		}
		select {
		case <-ctx.Done():
			log.Info(config.MsgWorkerStop)
			return nil
		case <-ticker.C:
		}
	}
}
