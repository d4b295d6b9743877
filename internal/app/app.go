// Package app wires the calendar services together and keeps them in step
// with the settings file.
package app

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tartampluch/go-shamsi/internal/config"
	"github.com/tartampluch/go-shamsi/internal/engine"
	"github.com/tartampluch/go-shamsi/internal/events"
	"github.com/tartampluch/go-shamsi/internal/locale"
	"github.com/tartampluch/go-shamsi/internal/notifier"
	"github.com/tartampluch/go-shamsi/internal/server"
)

// App owns the long-running services: the HTTP server, the periodic vCard
// sync, the notifier and the settings watcher.
type App struct {
	Store       *events.Store
	Fetcher     engine.VCardFetcher
	Credentials engine.CredentialStore
	Clock       engine.Clock // injected for deterministic tests

	Server   *server.CalendarServer
	API      *server.API
	Notifier *notifier.Notifier

	// SettingsPath is watched for edits when non-empty.
	SettingsPath string

	settings   atomic.Pointer[config.Settings]
	configChan chan struct{}

	ContactsMut sync.RWMutex
	Contacts    []engine.BirthdayEntry
}

// New constructs the application and wires dependencies.
func New(s *config.Settings, path string, store *events.Store, fetcher engine.VCardFetcher, creds engine.CredentialStore) *App {
	a := &App{
		Store:        store,
		Fetcher:      fetcher,
		Credentials:  creds,
		Clock:        engine.RealClock{},
		SettingsPath: path,
		configChan:   make(chan struct{}, config.ChannelBufferSize),
		Contacts:     make([]engine.BirthdayEntry, 0),
	}
	a.settings.Store(s)

	a.API = server.NewAPI(a.Clock, store, s.Calendar.Offset())
	a.API.Lang = s.Calendar.Language
	a.API.OnChange = a.refreshFeed
	a.API.Birthdays = a.BirthdayEntries

	a.Notifier = notifier.New(a.Clock, store, notifier.LogSink{}, s)
	a.API.Panel = a.Notifier

	a.Server = server.NewCalendarServer(s.Server.Address(), a.API)
	return a
}

// SetClock replaces the clock of every component.
func (a *App) SetClock(c engine.Clock) {
	a.Clock = c
	a.API.Clock = c
	a.Notifier.Clock = c
}

// Settings returns the settings currently in force.
func (a *App) Settings() *config.Settings {
	return a.settings.Load()
}

// Reload applies new settings to the running services. The listen address
// and the default API language are only read at startup.
func (a *App) Reload(s *config.Settings) {
	a.settings.Store(s)
	a.API.SetOffset(s.Calendar.Offset())
	a.Notifier.Apply(s)

	select {
	case a.configChan <- struct{}{}:
	default:
	}
}

// BirthdayEntries returns the contacts imported by the last successful sync.
func (a *App) BirthdayEntries() []engine.BirthdayEntry {
	a.ContactsMut.RLock()
	defer a.ContactsMut.RUnlock()
	return append([]engine.BirthdayEntry(nil), a.Contacts...)
}

// Run starts every service and blocks until ctx is cancelled or one fails.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.Server.Start(gctx)
	})
	g.Go(func() error {
		a.backgroundWorker(gctx)
		return nil
	})
	g.Go(func() error {
		return a.Notifier.Run(gctx, config.DefaultNotifyEvery)
	})
	if a.SettingsPath != "" {
		g.Go(func() error {
			return config.Watch(gctx, a.SettingsPath, a.Reload)
		})
	}

	return g.Wait()
}

// syncInterval returns the refresh period, zero when periodic sync is off.
func (a *App) syncInterval() time.Duration {
	s := a.Settings()
	if s.Source.Mode == config.SourceModeNone || s.Source.RefreshMinutes <= config.DisabledInterval {
		return 0
	}
	return time.Duration(s.Source.RefreshMinutes) * time.Minute
}

// backgroundWorker manages the periodic synchronization schedule.
func (a *App) backgroundWorker(ctx context.Context) {
	log := slog.With(config.LogKeyComponent, config.CompWorker)

	_ = a.PerformSync(ctx)

	var ticker *time.Ticker
	var tick <-chan time.Time
	current := time.Duration(0)

	schedule := func() {
		next := a.syncInterval()
		if next == current {
			return
		}
		log.Info(config.MsgUpdateSync, config.LogKeyOld, current.String(), config.LogKeyNew, next.String())
		current = next
		if ticker != nil {
			ticker.Stop()
			ticker, tick = nil, nil
		}
		if current > 0 {
			ticker = time.NewTicker(current)
			tick = ticker.C
		}
	}
	schedule()
	defer func() {
		if ticker != nil {
			ticker.Stop()
		}
	}()

	log.Info(config.MsgWorkerStart, config.LogKeyInterval, current.String())

	for {
		select {
		case <-ctx.Done():
			log.Info(config.MsgWorkerStop)
			return

		case <-a.configChan:
			schedule()
			// Source or offset may have changed.
			_ = a.PerformSync(ctx)

		case <-tick:
			_ = a.PerformSync(ctx)
		}
	}
}

// generator builds an engine for the given settings.
func (a *App) generator(s *config.Settings) *engine.Generator {
	return &engine.Generator{
		Clock:         a.Clock,
		Offset:        s.Calendar.Offset(),
		Fetcher:       a.Fetcher,
		Store:         a.Store,
		Credentials:   a.Credentials,
		FormatSummary: locale.New(s.Calendar.Language).BirthdaySummary,
	}
}

// Sync runs one import and render with the settings in force. It returns
// the feed, the imported contacts and the number of events today.
func (a *App) Sync(ctx context.Context) ([]byte, []engine.BirthdayEntry, int, error) {
	s := a.Settings()
	return a.generator(s).RunSync(ctx, engine.SyncConfigFrom(s))
}

// PerformSync imports birthdays from the configured source and republishes
// the feed.
func (a *App) PerformSync(ctx context.Context) error {
	ics, contacts, today, err := a.Sync(ctx)
	if err != nil {
		slog.Error(config.MsgSyncFailed,
			config.LogKeyComponent, config.CompWorker,
			config.LogKeyError, err,
		)
		return err
	}

	a.ContactsMut.Lock()
	a.Contacts = contacts
	a.ContactsMut.Unlock()

	a.Server.Update(ics)
	slog.Debug(config.MsgSyncFinished,
		config.LogKeyComponent, config.CompWorker,
		config.LogKeyToday, today,
	)
	return nil
}

// refreshFeed re-renders the feed after an event edit without fetching.
func (a *App) refreshFeed(ctx context.Context) {
	s := a.Settings()
	ics, _, err := a.generator(s).Render(ctx, s.Calendar.ReminderTrigger)
	if err != nil {
		slog.Error(config.ErrICalEncode,
			config.LogKeyComponent, config.CompWorker,
			config.LogKeyError, err,
		)
		return
	}
	a.Server.Update(ics)
	slog.Debug(config.MsgFeedRefreshed, config.LogKeyComponent, config.CompWorker)
}
