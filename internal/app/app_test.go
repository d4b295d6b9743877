package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tartampluch/go-shamsi/internal/config"
	"github.com/tartampluch/go-shamsi/internal/engine"
	"github.com/tartampluch/go-shamsi/internal/events"
	"github.com/tartampluch/go-shamsi/internal/jalali"
)

// MockClock controls time for deterministic testing.
type MockClock struct {
	CurrentTime time.Time
}

func (m MockClock) Now() time.Time {
	return m.CurrentTime
}

// 2025-02-10 08:00 UTC is 1403/11/22 in Tehran.
var saraBirthdayMorning = time.Date(2025, 2, 10, 8, 0, 0, 0, time.UTC)

const saraCard = `BEGIN:VCARD
VERSION:4.0
FN:Sara
BDAY:1979-02-11
END:VCARD
`

// setupTestApp builds an App over a temporary store with a local vCard source.
func setupTestApp(t *testing.T) *App {
	t.Helper()
	dir := t.TempDir()

	store, err := events.Open(filepath.Join(dir, "events.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	vcf := filepath.Join(dir, "contacts.vcf")
	require.NoError(t, os.WriteFile(vcf, []byte(saraCard), config.FilePermUserRW))

	s := config.NewDefaultSettings()
	s.Calendar.Language = "en"
	s.Source.Mode = config.SourceModeLocal
	s.Source.LocalPath = vcf

	a := New(s, "", store, nil, nil)
	a.SetClock(MockClock{CurrentTime: saraBirthdayMorning})
	return a
}

func get(t *testing.T, a *App, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	a.Server.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestPerformSync_Success(t *testing.T) {
	a := setupTestApp(t)

	require.NoError(t, a.PerformSync(context.Background()))

	contacts := a.BirthdayEntries()
	require.Len(t, contacts, 1)
	assert.Equal(t, "Sara", contacts[0].Name)
	assert.Equal(t, jalali.Date{Year: 1357, Month: 11, Day: 22}, contacts[0].BirthDate)

	w := get(t, a, config.RouteCalendar)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "SUMMARY:Sara's birthday (46)")

	w = get(t, a, config.RouteAPI+config.RouteBirthdays)
	require.Equal(t, http.StatusOK, w.Code)
	var listed []engine.BirthdayEntry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
	assert.Equal(t, contacts, listed)
}

func TestPerformSync_Failure(t *testing.T) {
	a := setupTestApp(t)
	s := *a.Settings()
	s.Source.LocalPath = filepath.Join(t.TempDir(), "missing.vcf")
	a.settings.Store(&s)

	assert.Error(t, a.PerformSync(context.Background()))
	assert.Empty(t, a.BirthdayEntries())
	assert.Equal(t, http.StatusServiceUnavailable, get(t, a, config.RouteCalendar).Code, "feed stays uninitialized")
}

func TestNoteEdit_RefreshesFeed(t *testing.T) {
	a := setupTestApp(t)
	require.NoError(t, a.PerformSync(context.Background()))

	req := httptest.NewRequest(http.MethodPut, config.RouteAPI+"/events/1403/11/23", strings.NewReader(`{"text":"Dentist"}`))
	w := httptest.NewRecorder()
	a.Server.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	feed := get(t, a, config.RouteCalendar).Body.String()
	assert.Contains(t, feed, "SUMMARY:Dentist")
	assert.Contains(t, feed, "DTSTART;VALUE=DATE:20250211")
}

func TestReload_AppliesOffsetAndSignalsWorker(t *testing.T) {
	a := setupTestApp(t)

	s := *a.Settings()
	// 08:00 UTC minus twelve hours is still 9 February: 1403/11/21.
	s.Calendar.UTCOffset = "-12:00"
	a.Reload(&s)

	select {
	case <-a.configChan:
	case <-time.After(time.Second):
		t.Fatal("Reload should notify the background worker")
	}

	w := get(t, a, config.RouteAPI+config.RouteToday)
	require.Equal(t, http.StatusOK, w.Code)
	var got struct {
		Jalali jalali.Date `json:"jalali"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, jalali.Date{Year: 1403, Month: 11, Day: 21}, got.Jalali)

	// A second reload before the worker drains the channel must not block.
	a.Reload(&s)
	a.Reload(&s)
}

func TestSyncInterval(t *testing.T) {
	a := setupTestApp(t)
	for _, tt := range []struct {
		name    string
		mode    string
		minutes int
		want    time.Duration
	}{
		{"local hourly", config.SourceModeLocal, 60, time.Hour},
		{"web every five minutes", config.SourceModeWeb, 5, 5 * time.Minute},
		{"disabled", config.SourceModeLocal, config.DisabledInterval, 0},
		{"no source", config.SourceModeNone, 60, 0},
	} {
		t.Run(tt.name, func(t *testing.T) {
			s := *a.Settings()
			s.Source.Mode = tt.mode
			s.Source.RefreshMinutes = tt.minutes
			a.settings.Store(&s)
			assert.Equal(t, tt.want, a.syncInterval())
		})
	}
}

func TestBackgroundWorker_SyncsAndStops(t *testing.T) {
	a := setupTestApp(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		a.backgroundWorker(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return len(a.BirthdayEntries()) == 1
	}, 2*time.Second, 20*time.Millisecond, "initial sync should run at startup")

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after cancellation")
	}
}
