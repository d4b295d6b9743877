// Package events stores user notes and imported anniversaries keyed by Jalali date.
package events

import (
	"errors"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/tartampluch/go-shamsi/internal/config"
	"github.com/tartampluch/go-shamsi/internal/jalali"
)

// MaxTitleLength bounds a single event text.
const MaxTitleLength = 500

var (
	// ErrNotFound is returned when no event matches the requested UID.
	ErrNotFound = errors.New("event not found")

	// ErrInvalidEvent wraps field validation failures other than the date.
	ErrInvalidEvent = errors.New("invalid event")
)

// Event is a single calendar entry.
type Event struct {
	UID   string      `json:"uid"`
	Date  jalali.Date `json:"date"`
	Title string      `json:"title"`

	// Recurring events repeat on the same Jalali month and day every year
	// from Date.Year onwards.
	Recurring bool `json:"recurring"`

	// CountsYears marks anniversaries whose origin year is meaningful
	// (a birth year), so an age can be rendered.
	CountsYears bool `json:"counts_years"`

	Source    string    `json:"source"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks the date and text of an event.
func (e Event) Validate() error {
	if err := e.Date.Validate(); err != nil {
		return err
	}
	err := validation.ValidateStruct(&e,
		validation.Field(&e.UID, validation.Required),
		validation.Field(&e.Title, validation.Required, validation.RuneLength(1, MaxTitleLength)),
		validation.Field(&e.Source, validation.Required, validation.In(config.EventSourceManual, config.EventSourceVCard)),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	return nil
}

// NoteUID is the stable identifier of the free-text note attached to a day.
// A day holds at most one note.
func NoteUID(d jalali.Date) string {
	return config.NoteUIDPrefix + d.Key()
}

// Anniversary returns the date on which an event originating at origin is
// observed in Jalali year jy. Esfand 30 only exists in leap years, so it is
// observed on Esfand 29 otherwise.
func Anniversary(origin jalali.Date, jy int) jalali.Date {
	d := jalali.Date{Year: jy, Month: origin.Month, Day: origin.Day}
	if d.Month == 12 && d.Day == 30 && !jalali.IsLeap(jy) {
		d.Day = 29
	}
	return d
}

// OccursOn reports whether the event is observed on d.
func (e Event) OccursOn(d jalali.Date) bool {
	if !e.Recurring {
		return e.Date == d
	}
	if d.Year < e.Date.Year {
		return false
	}
	return Anniversary(e.Date, d.Year) == d
}

// Age returns the number of whole Jalali years between the origin and the
// occurrence in year jy. It is only meaningful when CountsYears is set.
func (e Event) Age(jy int) int {
	return jy - e.Date.Year
}
