package engine

import "github.com/tartampluch/go-shamsi/internal/jalali"

// BirthdayEntry is an imported contact birthday, expressed in both calendars.
type BirthdayEntry struct {
	// UID is the stable hash shared with the stored event.
	UID string `json:"uid"`

	Name string `json:"name"`

	// Gregorian is the BDAY value as found in the vCard. For year-less cards
	// the year is the one the birthday was resolved in.
	Gregorian jalali.GregorianDate `json:"gregorian"`

	// BirthDate is Gregorian converted to the Jalali calendar.
	BirthDate jalali.Date `json:"birth_date"`

	// YearKnown is false for --MM-DD values.
	YearKnown bool `json:"year_known"`

	// NextOccurrence is the Jalali anniversary on or after today.
	NextOccurrence jalali.Date `json:"next_occurrence"`

	// AgeNext is the age in Jalali years at NextOccurrence; zero when YearKnown is false.
	AgeNext int `json:"age_next"`
}
