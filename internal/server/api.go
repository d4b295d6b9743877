package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/tartampluch/go-shamsi/internal/config"
	"github.com/tartampluch/go-shamsi/internal/engine"
	"github.com/tartampluch/go-shamsi/internal/events"
	"github.com/tartampluch/go-shamsi/internal/jalali"
	"github.com/tartampluch/go-shamsi/internal/locale"
	"github.com/tartampluch/go-shamsi/internal/notifier"
)

// EventStore is the part of the event store the API reads and writes.
type EventStore interface {
	Snapshot(ctx context.Context) (events.Set, error)
	ForDate(ctx context.Context, d jalali.Date) ([]events.Event, error)
	SetNote(ctx context.Context, d jalali.Date, text string) error
	DeleteNote(ctx context.Context, d jalali.Date) error
}

// NotificationPanel exposes today's notification panel.
type NotificationPanel interface {
	Pending(ctx context.Context) (*notifier.Notification, error)
	Clear()
}

// API serves calendar computations and event edits as JSON.
type API struct {
	Clock  engine.Clock
	Store  EventStore
	Panel  NotificationPanel // optional
	Lang   string            // default display language
	offset atomic.Int64

	// OnChange runs after every successful event write.
	OnChange func(ctx context.Context)

	// Birthdays lists the contacts imported by the last sync.
	Birthdays func() []engine.BirthdayEntry

	metrics *Metrics
}

// NewAPI creates the API observing "today" at offset.
func NewAPI(clock engine.Clock, store EventStore, offset time.Duration) *API {
	a := &API{Clock: clock, Store: store, Lang: config.DefaultLanguage}
	a.SetOffset(offset)
	return a
}

// SetOffset changes the UTC offset used to decide "today".
func (a *API) SetOffset(d time.Duration) {
	a.offset.Store(int64(d))
}

func (a *API) today() jalali.Date {
	return engine.Today(a.Clock, time.Duration(a.offset.Load()))
}

// Routes mounts the handlers on a chi router.
func (a *API) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get(config.RouteToday, a.handleToday)
	r.Get(config.RouteToJalali, a.handleToJalali)
	r.Get(config.RouteToGreg, a.handleToGregorian)
	r.Get(config.RouteMonth, a.handleMonth)
	r.Get(config.RouteEventDate, a.handleGetEvents)
	r.Put(config.RouteEventDate, a.handlePutNote)
	r.Delete(config.RouteEventDate, a.handleDeleteNote)
	r.Get(config.RouteBirthdays, a.handleBirthdays)
	r.Get(config.RouteNotifications, a.handleNotifications)
	r.Post(config.RouteNotifClear, a.handleClearNotifications)
	return r
}

func (a *API) translator(r *http.Request) *locale.Translator {
	return locale.New(locale.Match(r.URL.Query().Get(config.QueryLang), r.Header.Get(config.HeaderAcceptLang), a.Lang))
}

func (a *API) describe(d jalali.Date, tr *locale.Translator) (dayResponse, error) {
	jdn, err := jalali.JalaliToJDN(d)
	if err != nil {
		return dayResponse{}, err
	}
	length, _ := jalali.MonthLength(d.Year, d.Month)
	return dayResponse{
		Jalali:      d,
		Gregorian:   jalali.JDNToGregorian(jdn),
		JDN:         jdn,
		Weekday:     tr.WeekdayName((int(jalali.Weekday(jdn)) + 1) % jalali.WeekLength),
		Formatted:   tr.FormatDate(d),
		LeapYear:    jalali.IsLeap(d.Year),
		MonthLength: length,
	}, nil
}

func (a *API) handleToday(w http.ResponseWriter, r *http.Request) {
	today := a.today()
	resp, err := a.describe(today, a.translator(r))
	if err != nil {
		writeError(w, err)
		return
	}
	set, err := a.Store.Snapshot(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	resp.Events = set.Titles(today)
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleToJalali(w http.ResponseWriter, r *http.Request) {
	g, err := jalali.ParseGregorian(r.URL.Query().Get(config.QueryDate))
	if err != nil {
		writeError(w, err)
		return
	}
	d, err := jalali.ToJalali(g)
	if err != nil {
		writeError(w, err)
		return
	}
	resp, err := a.describe(d, a.translator(r))
	if err != nil {
		writeError(w, err)
		return
	}
	a.count(config.CalendarJalali)
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleToGregorian(w http.ResponseWriter, r *http.Request) {
	d, err := jalali.ParseDate(r.URL.Query().Get(config.QueryDate))
	if err != nil {
		writeError(w, err)
		return
	}
	resp, err := a.describe(d, a.translator(r))
	if err != nil {
		writeError(w, err)
		return
	}
	a.count(config.CalendarGregorian)
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleMonth(w http.ResponseWriter, r *http.Request) {
	jy, err1 := strconv.Atoi(chi.URLParam(r, "year"))
	jm, err2 := strconv.Atoi(chi.URLParam(r, "month"))
	if err := errors.Join(err1, err2); err != nil {
		writeJSON(w, http.StatusBadRequest, errResponse{Error: jalali.ErrInvalidDate.Error() + ": " + err.Error()})
		return
	}

	set, err := a.Store.Snapshot(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	grid, err := jalali.BuildMonthGrid(jy, jm, a.today(), set.Has)
	if err != nil {
		writeError(w, err)
		return
	}
	if a.metrics != nil {
		a.metrics.grids.Inc()
	}

	tr := a.translator(r)
	lead, _ := jalali.LeadingDays(jy, jm)
	length, _ := jalali.MonthLength(jy, jm)
	py, pm := jalali.PrevMonth(jy, jm)
	ny, nm := jalali.NextMonth(jy, jm)

	resp := monthResponse{
		Year:        jy,
		Month:       jm,
		MonthName:   tr.MonthName(jm),
		MonthLength: length,
		LeadingDays: lead,
		LeapYear:    jalali.IsLeap(jy),
		Prev:        monthRef{Year: py, Month: pm},
		Next:        monthRef{Year: ny, Month: nm},
		Cells:       make([]cellResponse, 0, jalali.GridSize),
	}
	for i := 0; i < jalali.WeekLength; i++ {
		resp.Weekdays = append(resp.Weekdays, tr.WeekdayShort(i))
	}
	for _, c := range grid {
		greg, _ := jalali.ToGregorian(c.Date)
		resp.Cells = append(resp.Cells, cellResponse{Cell: c, Gregorian: greg, Events: set.Titles(c.Date)})
	}
	writeJSON(w, http.StatusOK, resp)
}

// pathDate reads and validates {year}/{month}/{day}.
func pathDate(r *http.Request) (jalali.Date, error) {
	var parts [3]int
	for i, key := range []string{"year", "month", "day"} {
		v, err := strconv.Atoi(chi.URLParam(r, key))
		if err != nil {
			return jalali.Date{}, errors.Join(jalali.ErrInvalidDate, err)
		}
		parts[i] = v
	}
	d := jalali.Date{Year: parts[0], Month: parts[1], Day: parts[2]}
	return d, d.Validate()
}

func (a *API) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	d, err := pathDate(r)
	if err != nil {
		writeError(w, err)
		return
	}
	a.respondEvents(w, r, d)
}

func (a *API) respondEvents(w http.ResponseWriter, r *http.Request, d jalali.Date) {
	evts, err := a.Store.ForDate(r.Context(), d)
	if err != nil {
		writeError(w, err)
		return
	}
	if evts == nil {
		evts = []events.Event{}
	}
	writeJSON(w, http.StatusOK, eventsResponse{Date: d, Events: evts})
}

func (a *API) handlePutNote(w http.ResponseWriter, r *http.Request) {
	d, err := pathDate(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req noteRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, config.MaxRequestBody)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errResponse{Error: config.HTTPMsgBadBody})
		return
	}
	if err := a.Store.SetNote(r.Context(), d, req.Text); err != nil {
		writeError(w, err)
		return
	}
	a.changed(r.Context())
	a.respondEvents(w, r, d)
}

func (a *API) handleDeleteNote(w http.ResponseWriter, r *http.Request) {
	d, err := pathDate(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := a.Store.DeleteNote(r.Context(), d); err != nil {
		writeError(w, err)
		return
	}
	a.changed(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleBirthdays(w http.ResponseWriter, _ *http.Request) {
	entries := []engine.BirthdayEntry{}
	if a.Birthdays != nil {
		entries = append(entries, a.Birthdays()...)
	}
	writeJSON(w, http.StatusOK, entries)
}

func (a *API) handleNotifications(w http.ResponseWriter, r *http.Request) {
	if a.Panel == nil {
		writeJSON(w, http.StatusOK, []notifier.Notification{})
		return
	}
	n, err := a.Panel.Pending(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if n == nil {
		writeJSON(w, http.StatusOK, []notifier.Notification{})
		return
	}
	writeJSON(w, http.StatusOK, []notifier.Notification{*n})
}

func (a *API) handleClearNotifications(w http.ResponseWriter, r *http.Request) {
	if a.Panel != nil {
		a.Panel.Clear()
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) changed(ctx context.Context) {
	if a.OnChange != nil {
		a.OnChange(ctx)
	}
}

func (a *API) count(target string) {
	if a.metrics != nil {
		a.metrics.conversion(target)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set(config.HeaderContentType, config.MimeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error(config.ErrWriteResp,
			config.LogKeyComponent, config.CompServer,
			config.LogKeyError, err,
		)
	}
}

// writeError maps domain errors onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, jalali.ErrInvalidDate), errors.Is(err, events.ErrInvalidEvent):
		writeJSON(w, http.StatusBadRequest, errResponse{Error: err.Error()})
	case errors.Is(err, events.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errResponse{Error: err.Error()})
	default:
		slog.Error(config.HTTPMsgInternalErr,
			config.LogKeyComponent, config.CompServer,
			config.LogKeyError, err,
		)
		writeJSON(w, http.StatusInternalServerError, errResponse{Error: config.HTTPMsgInternalErr})
	}
}
