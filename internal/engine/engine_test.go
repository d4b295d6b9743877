package engine_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tartampluch/go-shamsi/internal/config"
	"github.com/tartampluch/go-shamsi/internal/engine"
	"github.com/tartampluch/go-shamsi/internal/events"
	"github.com/tartampluch/go-shamsi/internal/jalali"
)

// -----------------------------------------------------------------------------
// Mocks
// -----------------------------------------------------------------------------

// MockFetcher simulates the network layer for unit tests using `testify/mock`.
type MockFetcher struct {
	mock.Mock
}

// Fetch implements the engine.VCardFetcher interface.
func (m *MockFetcher) Fetch(ctx context.Context, url, user, pass string) (io.ReadCloser, error) {
	args := m.Called(ctx, url, user, pass)
	if r := args.Get(0); r != nil {
		return r.(io.ReadCloser), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockCredentials simulates the keyring.
type MockCredentials struct {
	mock.Mock
}

func (m *MockCredentials) Get(user string) (string, error) {
	args := m.Called(user)
	return args.String(0), args.Error(1)
}

func (m *MockCredentials) Set(user, password string) error {
	return m.Called(user, password).Error(0)
}

// MockClock controls time for deterministic testing.
type MockClock struct {
	CurrentTime time.Time
}

func (m MockClock) Now() time.Time {
	return m.CurrentTime
}

// Tehran is the fixed offset used by most tests.
const tehran = 3*time.Hour + 30*time.Minute

// 2025-02-10 is 1403/11/22.
var saraBirthdayMorning = time.Date(2025, 2, 10, 8, 0, 0, 0, time.UTC)

const saraCard = `BEGIN:VCARD
VERSION:4.0
FN:Sara
BDAY:1979-02-11
END:VCARD
`

func newStore(t *testing.T) *events.Store {
	t.Helper()
	s, err := events.Open(filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func writeVCF(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "contacts.vcf")
	require.NoError(t, os.WriteFile(path, []byte(content), config.FilePermUserRW))
	return path
}

// -----------------------------------------------------------------------------
// Test Cases
// -----------------------------------------------------------------------------

func TestRunSync_Local_Success(t *testing.T) {
	gen := &engine.Generator{
		Clock:  MockClock{CurrentTime: saraBirthdayMorning},
		Offset: tehran,
		Store:  newStore(t),
	}

	ics, contacts, count, err := gen.RunSync(context.Background(), engine.SyncConfig{
		Mode:      config.SourceModeLocal,
		LocalPath: writeVCF(t, saraCard),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, count, "Sara's Jalali birthday is today")

	require.Len(t, contacts, 1)
	c := contacts[0]
	assert.Equal(t, "Sara", c.Name)
	assert.True(t, c.YearKnown)
	assert.Equal(t, jalali.GregorianDate{Year: 1979, Month: 2, Day: 11}, c.Gregorian)
	assert.Equal(t, jalali.Date{Year: 1357, Month: 11, Day: 22}, c.BirthDate)
	assert.Equal(t, jalali.Date{Year: 1403, Month: 11, Day: 22}, c.NextOccurrence)
	assert.Equal(t, 46, c.AgeNext)

	icsStr := string(ics)
	assert.True(t, strings.HasPrefix(icsStr, "BEGIN:VCALENDAR"))
	assert.Contains(t, icsStr, "SUMMARY:Birthday: Sara (46)")
	// Previous, current and next Jalali year, each on its own Gregorian day.
	assert.Contains(t, icsStr, "DTSTART;VALUE=DATE:20240211")
	assert.Contains(t, icsStr, "DTSTART;VALUE=DATE:20250210")
	assert.Contains(t, icsStr, "DTSTART;VALUE=DATE:20260211")
	assert.Contains(t, icsStr, "DESCRIPTION:1403/11/22")
	assert.NotContains(t, icsStr, "BEGIN:VALARM")
}

func TestRunSync_TodayHonoursOffset(t *testing.T) {
	// 21:00 UTC on 2025-02-09 is already 2025-02-10 in Tehran.
	late := time.Date(2025, 2, 9, 21, 0, 0, 0, time.UTC)
	path := writeVCF(t, saraCard)

	for _, tt := range []struct {
		name   string
		offset time.Duration
		want   int
	}{
		{"tehran", tehran, 1},
		{"utc", 0, 0},
	} {
		t.Run(tt.name, func(t *testing.T) {
			gen := &engine.Generator{
				Clock:  MockClock{CurrentTime: late},
				Offset: tt.offset,
				Store:  newStore(t),
			}
			_, _, count, err := gen.RunSync(context.Background(), engine.SyncConfig{
				Mode: config.SourceModeLocal, LocalPath: path,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, count)
		})
	}
}

func TestRunSync_Web_UsesKeyringPassword(t *testing.T) {
	fetcher := new(MockFetcher)
	fetcher.On("Fetch", mock.Anything, "https://dav.example.com/card", "alice", "secret").
		Return(io.NopCloser(strings.NewReader(saraCard)), nil)

	creds := new(MockCredentials)
	creds.On("Get", "alice").Return("secret", nil)

	gen := &engine.Generator{
		Clock:       MockClock{CurrentTime: saraBirthdayMorning},
		Offset:      tehran,
		Store:       newStore(t),
		Fetcher:     fetcher,
		Credentials: creds,
	}

	_, contacts, _, err := gen.RunSync(context.Background(), engine.SyncConfig{
		Mode:    config.SourceModeWeb,
		WebURL:  "https://dav.example.com/card",
		WebUser: "alice",
	})
	require.NoError(t, err)
	assert.Len(t, contacts, 1)

	fetcher.AssertExpectations(t)
	creds.AssertExpectations(t)
}

func TestRunSync_Web_InlinePasswordWins(t *testing.T) {
	fetcher := new(MockFetcher)
	fetcher.On("Fetch", mock.Anything, "https://dav.example.com", "bob", "inline").
		Return(io.NopCloser(strings.NewReader("")), nil)
	creds := new(MockCredentials)

	gen := &engine.Generator{
		Clock:       MockClock{CurrentTime: saraBirthdayMorning},
		Store:       newStore(t),
		Fetcher:     fetcher,
		Credentials: creds,
	}
	_, _, _, err := gen.RunSync(context.Background(), engine.SyncConfig{
		Mode: config.SourceModeWeb, WebURL: "https://dav.example.com", WebUser: "bob", WebPass: "inline",
	})
	require.NoError(t, err)
	creds.AssertNotCalled(t, "Get", mock.Anything)
}

func TestRunSync_Web_KeyringFailureFallsBackToEmpty(t *testing.T) {
	fetcher := new(MockFetcher)
	fetcher.On("Fetch", mock.Anything, "https://dav.example.com", "bob", "").
		Return(io.NopCloser(strings.NewReader("")), nil)
	creds := new(MockCredentials)
	creds.On("Get", "bob").Return("", errors.New("no entry"))

	gen := &engine.Generator{
		Clock:       MockClock{CurrentTime: saraBirthdayMorning},
		Store:       newStore(t),
		Fetcher:     fetcher,
		Credentials: creds,
	}
	_, _, _, err := gen.RunSync(context.Background(), engine.SyncConfig{
		Mode: config.SourceModeWeb, WebURL: "https://dav.example.com", WebUser: "bob",
	})
	require.NoError(t, err)
	fetcher.AssertExpectations(t)
}

func TestRunSync_YearlessLeapDay(t *testing.T) {
	// 2025 is a common Gregorian year: --02-29 resolves to March 1st, 1403/12/11.
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	gen := &engine.Generator{
		Clock:  MockClock{CurrentTime: now},
		Offset: tehran,
		Store:  newStore(t),
	}
	ics, contacts, _, err := gen.RunSync(context.Background(), engine.SyncConfig{
		Mode: config.SourceModeLocal,
		LocalPath: writeVCF(t, `BEGIN:VCARD
VERSION:3.0
FN:Leap
BDAY:--02-29
END:VCARD
`),
	})
	require.NoError(t, err)
	require.Len(t, contacts, 1)
	assert.False(t, contacts[0].YearKnown)
	assert.Equal(t, jalali.Date{Year: 1403, Month: 12, Day: 11}, contacts[0].BirthDate)
	assert.Equal(t, jalali.Date{Year: 1404, Month: 12, Day: 11}, contacts[0].NextOccurrence)
	assert.Zero(t, contacts[0].AgeNext)
	assert.Contains(t, string(ics), "SUMMARY:Birthday: Leap\r\n")
}

func TestRunSync_RemovesVanishedContactsKeepsNotes(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	gen := &engine.Generator{
		Clock:  MockClock{CurrentTime: saraBirthdayMorning},
		Offset: tehran,
		Store:  store,
	}
	require.NoError(t, store.SetNote(ctx, jalali.Date{Year: 1403, Month: 11, Day: 22}, "buy flowers"))

	path := writeVCF(t, saraCard+`BEGIN:VCARD
VERSION:4.0
FN:Omid
BDAY:19900321
END:VCARD
`)
	_, contacts, count, err := gen.RunSync(ctx, engine.SyncConfig{Mode: config.SourceModeLocal, LocalPath: path})
	require.NoError(t, err)
	assert.Len(t, contacts, 2)
	assert.Equal(t, 2, count, "birthday and note")

	require.NoError(t, os.WriteFile(path, []byte(saraCard), config.FilePermUserRW))
	ics, contacts, _, err := gen.RunSync(ctx, engine.SyncConfig{Mode: config.SourceModeLocal, LocalPath: path})
	require.NoError(t, err)
	assert.Len(t, contacts, 1)

	all, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.NotContains(t, string(ics), "Omid")
	assert.Contains(t, string(ics), "SUMMARY:buy flowers")
}

func TestRunSync_SkipsMalformedDates(t *testing.T) {
	gen := &engine.Generator{
		Clock: MockClock{CurrentTime: saraBirthdayMorning},
		Store: newStore(t),
	}
	_, contacts, _, err := gen.RunSync(context.Background(), engine.SyncConfig{
		Mode: config.SourceModeLocal,
		LocalPath: writeVCF(t, `BEGIN:VCARD
VERSION:3.0
FN:Broken
BDAY:sometime in spring
END:VCARD
BEGIN:VCARD
VERSION:3.0
FN:No Birthday
END:VCARD
`+saraCard),
	})
	require.NoError(t, err)
	require.Len(t, contacts, 1)
	assert.Equal(t, "Sara", contacts[0].Name)
}

func TestRunSync_NoSourceRendersStore(t *testing.T) {
	gen := &engine.Generator{
		Clock: MockClock{CurrentTime: saraBirthdayMorning},
		Store: newStore(t),
	}
	ics, contacts, count, err := gen.RunSync(context.Background(), engine.SyncConfig{})
	require.NoError(t, err)
	assert.Nil(t, contacts)
	assert.Zero(t, count)
	assert.Equal(t, config.StubVCalendar, string(ics))
}

func TestRunSync_Reminder(t *testing.T) {
	gen := &engine.Generator{
		Clock:  MockClock{CurrentTime: saraBirthdayMorning},
		Offset: tehran,
		Store:  newStore(t),
	}
	ics, _, _, err := gen.RunSync(context.Background(), engine.SyncConfig{
		Mode:            config.SourceModeLocal,
		LocalPath:       writeVCF(t, saraCard),
		ReminderTrigger: "-P1D",
	})
	require.NoError(t, err)
	assert.Contains(t, string(ics), "BEGIN:VALARM")
	assert.Contains(t, string(ics), "TRIGGER:-P1D")
	assert.Contains(t, string(ics), "ACTION:DISPLAY")
}

func TestRunSync_FormatSummaryInjected(t *testing.T) {
	gen := &engine.Generator{
		Clock:  MockClock{CurrentTime: saraBirthdayMorning},
		Offset: tehran,
		Store:  newStore(t),
		FormatSummary: func(name string, age int, yearKnown bool) string {
			return "تولد " + name
		},
	}
	ics, _, _, err := gen.RunSync(context.Background(), engine.SyncConfig{
		Mode: config.SourceModeLocal, LocalPath: writeVCF(t, saraCard),
	})
	require.NoError(t, err)
	assert.Contains(t, string(ics), "SUMMARY:تولد Sara")
}

func TestRunSync_ConfigurationErrors(t *testing.T) {
	clock := MockClock{CurrentTime: saraBirthdayMorning}
	tests := []struct {
		name string
		gen  *engine.Generator
		cfg  engine.SyncConfig
	}{
		{"missing store", &engine.Generator{Clock: clock}, engine.SyncConfig{}},
		{"local without path", &engine.Generator{Clock: clock, Store: newStore(t)}, engine.SyncConfig{Mode: config.SourceModeLocal}},
		{"local file missing", &engine.Generator{Clock: clock, Store: newStore(t)}, engine.SyncConfig{Mode: config.SourceModeLocal, LocalPath: "/nonexistent/x.vcf"}},
		{"web without url", &engine.Generator{Clock: clock, Store: newStore(t)}, engine.SyncConfig{Mode: config.SourceModeWeb}},
		{"web without fetcher", &engine.Generator{Clock: clock, Store: newStore(t)}, engine.SyncConfig{Mode: config.SourceModeWeb, WebURL: "https://x"}},
		{"unknown mode", &engine.Generator{Clock: clock, Store: newStore(t)}, engine.SyncConfig{Mode: "ftp"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ics, _, _, err := tt.gen.RunSync(context.Background(), tt.cfg)
			assert.Error(t, err)
			assert.Nil(t, ics)
		})
	}
}

func TestRunSync_FetchError(t *testing.T) {
	fetcher := new(MockFetcher)
	fetcher.On("Fetch", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("connection refused"))

	gen := &engine.Generator{Clock: MockClock{CurrentTime: saraBirthdayMorning}, Store: newStore(t), Fetcher: fetcher}
	_, _, _, err := gen.RunSync(context.Background(), engine.SyncConfig{Mode: config.SourceModeWeb, WebURL: "https://x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), config.ErrVCardParse)
}

func TestRunSync_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	gen := &engine.Generator{Clock: MockClock{CurrentTime: saraBirthdayMorning}, Store: newStore(t)}
	_, _, _, err := gen.RunSync(ctx, engine.SyncConfig{Mode: config.SourceModeLocal, LocalPath: writeVCF(t, saraCard)})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRender_OneOffAndRecurring(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	require.NoError(t, store.SetNote(ctx, jalali.Date{Year: 1403, Month: 1, Day: 13}, "Sizdah Bedar"))
	require.NoError(t, store.Put(ctx, events.Event{
		UID: "leap", Date: jalali.Date{Year: 1399, Month: 12, Day: 30},
		Title: "Leap anniversary", Recurring: true, Source: config.EventSourceManual,
	}))

	// 2025-02-10 is in Jalali 1403: the window is 1402..1404.
	gen := &engine.Generator{Clock: MockClock{CurrentTime: saraBirthdayMorning}, Offset: tehran, Store: store}
	ics, count, err := gen.Render(ctx, "")
	require.NoError(t, err)
	assert.Zero(t, count)

	s := string(ics)
	assert.Equal(t, 1, strings.Count(s, "SUMMARY:Sizdah Bedar"))
	assert.Equal(t, 3, strings.Count(s, "SUMMARY:Leap anniversary"))
	// 1402 and 1404 are common years, so the anniversary falls on Esfand 29.
	assert.Contains(t, s, "DESCRIPTION:1402/12/29")
	assert.Contains(t, s, "DESCRIPTION:1403/12/30")
	assert.Contains(t, s, "DESCRIPTION:1404/12/29")
	assert.Contains(t, s, "CATEGORIES:manual")
}
