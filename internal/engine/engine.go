package engine

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-vcard"
	"github.com/tartampluch/go-shamsi/internal/config"
	"github.com/tartampluch/go-shamsi/internal/events"
	"github.com/tartampluch/go-shamsi/internal/jalali"
)

// SyncConfig contains all parameters required to perform a synchronization.
type SyncConfig struct {
	Mode            string // config.SourceModeLocal, config.SourceModeWeb or none
	LocalPath       string // Path to the .vcf file
	WebURL          string // CardDAV or WebDAV URL
	WebUser         string // HTTP Basic Auth Username
	WebPass         string // Falls back to Credentials when empty
	ReminderTrigger string // ISO8601 duration string (e.g., "-P1D")
}

// SyncConfigFrom maps user settings onto a SyncConfig.
func SyncConfigFrom(s *config.Settings) SyncConfig {
	return SyncConfig{
		Mode:            s.Source.Mode,
		LocalPath:       s.Source.LocalPath,
		WebURL:          s.Source.URL,
		WebUser:         s.Source.User,
		WebPass:         s.Source.Password,
		ReminderTrigger: s.Calendar.ReminderTrigger,
	}
}

// EventStore is the subset of the event store the generator writes to.
type EventStore interface {
	Put(ctx context.Context, e events.Event) error
	DeleteSource(ctx context.Context, source string, keep map[string]struct{}) (int, error)
	List(ctx context.Context) ([]events.Event, error)
}

// Generator imports contact birthdays into the event store and renders the
// store as an iCalendar feed.
type Generator struct {
	Clock       Clock
	Offset      time.Duration // fixed UTC offset at which "today" is observed
	Fetcher     VCardFetcher
	Store       EventStore
	Credentials CredentialStore

	// FormatSummary localizes imported birthday titles.
	FormatSummary func(name string, age int, yearKnown bool) string
}

type syncStats struct {
	processed, withBday, events, today int
}

// RunSync imports birthdays from the configured source, then renders the feed.
// It returns the ICS data, the imported contacts, the number of events today, and any error.
// With no source configured only the rendering step runs.
func (g *Generator) RunSync(ctx context.Context, cfg SyncConfig) ([]byte, []BirthdayEntry, int, error) {
	start := time.Now()
	log := slog.With(
		config.LogKeyComponent, config.CompEngine,
		config.LogKeyMode, cfg.Mode,
	)
	log.InfoContext(ctx, config.MsgSyncStarted)

	if g.Store == nil {
		return nil, nil, 0, errors.New(config.ErrStoreMissing)
	}

	var contacts []BirthdayEntry
	if cfg.Mode != config.SourceModeNone {
		reader, err := g.acquireStream(ctx, cfg)
		if err != nil {
			if ctx.Err() != nil {
				return nil, nil, 0, ctx.Err()
			}
			return nil, nil, 0, fmt.Errorf("%s: %w", config.ErrVCardParse, err)
		}
		defer func() { _ = reader.Close() }()

		contacts, err = g.importBirthdays(ctx, reader)
		if err != nil {
			return nil, nil, 0, err
		}
	}

	ics, today, err := g.Render(ctx, cfg.ReminderTrigger)
	if err == nil {
		log.Debug(config.MsgSyncFinished, config.LogKeyDuration, time.Since(start).Milliseconds())
	}
	return ics, contacts, today, err
}

// acquireStream opens the appropriate data source based on configuration.
func (g *Generator) acquireStream(ctx context.Context, cfg SyncConfig) (io.ReadCloser, error) {
	switch cfg.Mode {
	case config.SourceModeLocal:
		if cfg.LocalPath == "" {
			return nil, errors.New(config.ErrLocalPathEmpty)
		}
		return os.Open(cfg.LocalPath)
	case config.SourceModeWeb:
		if cfg.WebURL == "" {
			return nil, errors.New(config.ErrWebURLEmpty)
		}
		if g.Fetcher == nil {
			return nil, errors.New(config.ErrFetcherMissing)
		}
		return g.Fetcher.Fetch(ctx, cfg.WebURL, cfg.WebUser, g.password(cfg))
	default:
		return nil, fmt.Errorf("%s: %q", config.ErrModeUnsupport, cfg.Mode)
	}
}

// password prefers the inline password and falls back to the credential store.
func (g *Generator) password(cfg SyncConfig) string {
	if cfg.WebPass != "" || cfg.WebUser == "" || g.Credentials == nil {
		return cfg.WebPass
	}
	p, err := g.Credentials.Get(cfg.WebUser)
	if err != nil {
		slog.Debug(config.MsgPassFail,
			config.LogKeyComponent, config.CompEngine,
			config.LogKeyUser, cfg.WebUser,
			config.LogKeyError, err)
		return ""
	}
	return p
}

// importBirthdays decodes every card, upserts one recurring event per BDAY
// and removes previously imported events whose card disappeared.
func (g *Generator) importBirthdays(ctx context.Context, r io.Reader) ([]BirthdayEntry, error) {
	today := Today(g.Clock, g.Offset)
	todayGreg := jalali.GregorianFromTime(g.Clock.Now(), g.Offset)

	decoder := vcard.NewDecoder(r)
	var stats syncStats
	var contacts []BirthdayEntry
	keep := make(map[string]struct{})

	for {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		card, err := decoder.Decode()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// Keep going: one malformed card must not hide the others.
			slog.Warn(config.MsgSkippedCard,
				config.LogKeyComponent, config.CompEngine,
				config.LogKeyError, err)
			continue
		}

		stats.processed++
		bday := card.Get(config.VCardBDAY)
		if bday == nil || bday.Value == "" {
			continue
		}

		entry, err := birthdayEntry(card, bday.Value, todayGreg.Year)
		if err != nil {
			slog.Debug(config.MsgSkippedDate,
				config.LogKeyComponent, config.CompEngine,
				config.LogKeyValue, bday.Value)
			continue
		}
		stats.withBday++

		entry.NextOccurrence, entry.AgeNext = nextOccurrence(today, entry.BirthDate, entry.YearKnown)

		err = g.Store.Put(ctx, events.Event{
			UID:         entry.UID,
			Date:        entry.BirthDate,
			Title:       entry.Name,
			Recurring:   true,
			CountsYears: entry.YearKnown,
			Source:      config.EventSourceVCard,
		})
		if err != nil {
			return nil, err
		}
		keep[entry.UID] = struct{}{}
		contacts = append(contacts, entry)
	}

	removed, err := g.Store.DeleteSource(ctx, config.EventSourceVCard, keep)
	if err != nil {
		return nil, err
	}

	slog.Info(config.MsgImported,
		config.LogKeyComponent, config.CompEngine,
		slog.Group(config.LogKeyStats,
			slog.Int(config.LogKeyTotal, stats.processed),
			slog.Int(config.LogKeyFound, stats.withBday),
			slog.Int(config.LogKeyRemoved, removed),
		),
	)
	return contacts, nil
}

// birthdayEntry converts one vCard BDAY into a Jalali birthday. Year-less
// values are resolved in fallbackYear.
func birthdayEntry(card vcard.Card, value string, fallbackYear int) (BirthdayEntry, error) {
	greg, yearKnown, err := parseDate(value)
	if err != nil {
		return BirthdayEntry{}, err
	}
	if !yearKnown {
		greg.Year = fallbackYear
	}

	jdn, err := jalali.GregorianToJDN(greg)
	if err != nil {
		if yearKnown || greg.Month != 2 || greg.Day != 29 {
			return BirthdayEntry{}, err
		}
		// --02-29 in a common year is observed on March 1st.
		jdn, err = jalali.GregorianToJDN(jalali.GregorianDate{Year: greg.Year, Month: 2, Day: 28})
		if err != nil {
			return BirthdayEntry{}, err
		}
		jdn++
	}

	// Name Strategy: FN (Formatted) > N (Structured) > Fallback
	name := config.FallbackName
	if fn := card.Get(config.VCardFN); fn != nil && fn.Value != "" {
		name = fn.Value
	} else if n := card.Get(config.VCardN); n != nil && n.Value != "" {
		name = n.Value
	}

	// Year-less dates hash without the resolved year so the UID survives new years.
	dateKey := value
	if yearKnown {
		dateKey = greg.String()
	}
	hash := sha256.Sum256([]byte(fmt.Sprintf(config.FormatHashInput, name, dateKey, config.UIDSalt)))

	return BirthdayEntry{
		UID:       fmt.Sprintf("%x", hash[:config.UIDHashLength]),
		Name:      name,
		Gregorian: greg,
		BirthDate: jalali.JDNToJalali(jdn),
		YearKnown: yearKnown,
	}, nil
}

// nextOccurrence returns the first Jalali anniversary on or after today.
func nextOccurrence(today, birth jalali.Date, yearKnown bool) (jalali.Date, int) {
	candidate := events.Anniversary(birth, today.Year)
	if candidate.Before(today) {
		candidate = events.Anniversary(birth, today.Year+1)
	}

	age := 0
	if yearKnown {
		age = candidate.Year - birth.Year
	}
	return candidate, age
}

// Render builds the iCalendar feed from the store. Recurring events are
// projected on the previous, current and next Jalali year. It returns the
// feed and the number of events observed today.
func (g *Generator) Render(ctx context.Context, reminderTrigger string) ([]byte, int, error) {
	if g.Store == nil {
		return nil, 0, errors.New(config.ErrStoreMissing)
	}
	all, err := g.Store.List(ctx)
	if err != nil {
		return nil, 0, err
	}

	cal := ical.NewCalendar()
	cal.Props.SetText(config.PropVersion, config.ICalVersion)
	cal.Props.SetText(config.PropProdid, config.ICalProdid)
	cal.Props.SetText(config.PropXWRCalName, config.ICalCalName)
	cal.Props.SetText(config.PropCalScale, config.ICalScale)
	cal.Props.SetText(config.PropMethod, config.ICalMethod)

	// RFC 7986 refresh hint.
	refreshProp := ical.NewProp(config.PropRefresh)
	refreshProp.SetDuration(config.DefaultICalRefresh)
	cal.Props.Set(refreshProp)

	now := g.Clock.Now()
	today := jalali.FromTime(now, g.Offset)
	dtStampProp := ical.NewProp(config.PropDTStamp)
	dtStampProp.SetDateTime(now.UTC())

	var stats syncStats
	for _, e := range all {
		if ctx.Err() != nil {
			return nil, 0, ctx.Err()
		}
		for _, occ := range occurrences(e, today.Year) {
			event, err := g.buildEvent(e, occ, reminderTrigger)
			if err != nil {
				slog.Debug(config.MsgSkippedDate,
					config.LogKeyComponent, config.CompEngine,
					config.LogKeyValue, occ.String(),
					config.LogKeyError, err)
				continue
			}
			event.Props.Set(dtStampProp)
			cal.Children = append(cal.Children, event.Component)
			stats.events++

			if occ == today {
				stats.today++
				slog.Info(config.MsgEventToday,
					config.LogKeyComponent, config.CompEngine,
					config.LogKeyName, e.Title,
					config.LogKeyDate, occ.String())
			}
		}
	}

	g.logSuccess(len(all), stats)

	var buf bytes.Buffer
	if len(cal.Children) == 0 {
		// An empty VCALENDAR is rejected by go-ical, so emit a minimal valid one.
		buf.WriteString(config.StubVCalendar)
		return buf.Bytes(), 0, nil
	}
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return nil, 0, fmt.Errorf("%s: %w", config.ErrICalEncode, err)
	}
	return buf.Bytes(), stats.today, nil
}

// occurrences lists the days an event is observed within the projection
// window around the current Jalali year.
func occurrences(e events.Event, currentYear int) []jalali.Date {
	if !e.Recurring {
		return []jalali.Date{e.Date}
	}
	var out []jalali.Date
	for y := currentYear - 1; y <= currentYear+1; y++ {
		if y < e.Date.Year {
			continue
		}
		out = append(out, events.Anniversary(e.Date, y))
	}
	return out
}

func (g *Generator) buildEvent(e events.Event, occ jalali.Date, reminderTrigger string) (*ical.Event, error) {
	greg, err := jalali.ToGregorian(occ)
	if err != nil {
		return nil, err
	}

	event := ical.NewEvent()
	event.Props.SetText(config.PropUID, fmt.Sprintf(config.FormatUID, e.UID, occ.Year, config.ICalDomain))

	summary := g.summary(e, occ.Year)
	event.Props.SetText(config.PropSummary, summary)
	event.Props.SetText(config.PropDescription, occ.String())
	event.Props.SetText(config.PropCategories, e.Source)

	dtStartProp := ical.NewProp(config.PropDTStart)
	dtStartProp.SetDate(greg.Time())
	event.Props.Set(dtStartProp)

	if reminderTrigger != "" {
		addAlarm(event, reminderTrigger, summary)
	}
	return event, nil
}

// summary renders the event title; imported birthdays go through FormatSummary.
func (g *Generator) summary(e events.Event, jy int) string {
	if e.Source != config.EventSourceVCard {
		return e.Title
	}
	age := e.Age(jy)
	if g.FormatSummary != nil {
		return g.FormatSummary(e.Title, age, e.CountsYears)
	}
	if e.CountsYears {
		return fmt.Sprintf(config.FallbackBirthdayAge, e.Title, age)
	}
	return fmt.Sprintf(config.FallbackBirthday, e.Title)
}

func (g *Generator) logSuccess(stored int, stats syncStats) {
	slog.Info(config.MsgGenSuccess,
		config.LogKeyComponent, config.CompEngine,
		slog.Group(config.LogKeyStats,
			slog.Int(config.LogKeyCount, stored),
			slog.Int(config.LogKeyEvents, stats.events),
			slog.Int(config.LogKeyToday, stats.today),
		),
	)
}

// addAlarm appends a DISPLAY alarm (notification) to the event.
func addAlarm(event *ical.Event, trigger, description string) {
	alarm := ical.NewComponent(config.ICalComponent)
	alarm.Props.SetText(config.PropAction, config.ICalAction)
	alarm.Props.SetText(config.PropDescription, description)

	// Raw value: SetText would add VALUE=TEXT, which clients reject on TRIGGER.
	triggerProp := ical.NewProp(config.PropTrigger)
	triggerProp.Value = trigger
	alarm.Props.Set(triggerProp)

	event.Children = append(event.Children, alarm)
}

// parseDate handles the vCard BDAY layouts. The boolean reports whether the
// value carried a year.
func parseDate(value string) (jalali.GregorianDate, bool, error) {
	formatsWithYear := []string{
		config.DateFormatFullDash,
		config.DateFormatFullBasic,
		config.DateFormatRFC3339,
		config.DateFormatFullT,
	}
	for _, f := range formatsWithYear {
		if t, err := time.Parse(f, value); err == nil {
			return jalali.GregorianDate{Year: t.Year(), Month: int(t.Month()), Day: t.Day()}, true, nil
		}
	}

	// time.Parse rejects --02-29 without a leap year, so read month and day directly.
	var m, d int
	for _, f := range []string{config.ScanNoYearDash, config.ScanNoYearBasic} {
		if n, err := fmt.Sscanf(value, f, &m, &d); err == nil && n == 2 && m >= 1 && m <= 12 && d >= 1 && d <= 31 {
			return jalali.GregorianDate{Month: m, Day: d}, false, nil
		}
	}

	return jalali.GregorianDate{}, false, errors.New(config.ErrDateParse)
}
