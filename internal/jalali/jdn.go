// Package jalali converts civil dates between the proleptic Gregorian calendar and the
// Jalali (Persian solar) calendar, and lays out Jalali months as fixed display grids.
//
// Every conversion pivots through an integer Julian Day Number. All functions are pure
// and safe for concurrent use.
package jalali

import (
	"fmt"
	"time"
)

// JDN is a Julian Day Number: a signed count of days from a fixed historical epoch.
type JDN int

// GregorianDate is a civil date in the proleptic Gregorian calendar.
type GregorianDate struct {
	Year  int `json:"year"`
	Month int `json:"month"`
	Day   int `json:"day"`
}

// String formats the date as YYYY-MM-DD.
func (g GregorianDate) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", g.Year, g.Month, g.Day)
}

// Time returns midnight UTC of the date. Valid for years representable by time.Time.
func (g GregorianDate) Time() time.Time {
	return time.Date(g.Year, time.Month(g.Month), g.Day, 0, 0, 0, 0, time.UTC)
}

// GregorianToJDN returns the Julian Day Number of a Gregorian date.
func GregorianToJDN(d GregorianDate) (JDN, error) {
	if err := d.Validate(); err != nil {
		return 0, err
	}
	return gregorianToJDN(d.Year, d.Month, d.Day), nil
}

// JDN of 0000-03-01 and the length of a 400-year Gregorian cycle.
const (
	marchEpochJDN = 1721120
	daysPer400    = 146097
)

// gregorianToJDN folds the year into a March-based year so the leap day is the
// last day of it, then counts whole 400-year cycles with floor division so
// negative years need no offset.
func gregorianToJDN(gy, gm, gd int) JDN {
	if gm <= 2 {
		gy--
	}
	era := floorDiv(gy, 400)
	yoe := gy - era*400
	doy := (153*((gm+9)%12)+2)/5 + gd - 1
	doe := yoe*365 + yoe/4 - yoe/100 + doy
	return JDN(era*daysPer400 + doe + marchEpochJDN)
}

// JDNToGregorian is the exact inverse of GregorianToJDN, at least over the
// 32-bit JDN range.
func JDNToGregorian(jdn JDN) GregorianDate {
	z := int(jdn) - marchEpochJDN
	era := floorDiv(z, daysPer400)
	doe := z - era*daysPer400
	yoe := (doe - doe/1460 + doe/36524 - doe/(daysPer400-1)) / 365
	doy := doe - (365*yoe + yoe/4 - yoe/100)
	mp := (5*doy + 2) / 153

	gd := doy - (153*mp+2)/5 + 1
	gm := (mp+2)%12 + 1
	gy := era*400 + yoe
	if gm <= 2 {
		gy++
	}
	return GregorianDate{Year: gy, Month: gm, Day: gd}
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// Weekday returns the day of the week of a Julian Day Number.
func Weekday(jdn JDN) time.Weekday {
	return time.Weekday(((int(jdn)+1)%7 + 7) % 7)
}

// GregorianFromTime returns the civil date of t shifted by a fixed UTC offset.
// The location carried by t is ignored.
func GregorianFromTime(t time.Time, offset time.Duration) GregorianDate {
	y, m, d := t.UTC().Add(offset).Date()
	return GregorianDate{Year: y, Month: int(m), Day: d}
}

// FromTime returns the Jalali date of t observed at a fixed UTC offset.
func FromTime(t time.Time, offset time.Duration) Date {
	g := GregorianFromTime(t, offset)
	return JDNToJalali(gregorianToJDN(g.Year, g.Month, g.Day))
}

func isGregorianLeap(y int) bool {
	return y%4 == 0 && (y%100 != 0 || y%400 == 0)
}

func gregorianMonthLength(y, m int) int {
	switch m {
	case 2:
		if isGregorianLeap(y) {
			return 29
		}
		return 28
	case 4, 6, 9, 11:
		return 30
	default:
		return 31
	}
}
