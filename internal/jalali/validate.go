package jalali

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// ErrInvalidDate is wrapped by every error caused by a malformed calendar date.
var ErrInvalidDate = errors.New("invalid date")

var monthRules = []validation.Rule{validation.Required, validation.Min(1), validation.Max(12)}

func validateMonth(m int) error {
	if err := validation.Validate(m, monthRules...); err != nil {
		return fmt.Errorf("%w: month %d: %v", ErrInvalidDate, m, err)
	}
	return nil
}

// Validate checks that the month is 1-12 and the day exists in that month,
// honouring Gregorian leap years.
func (g GregorianDate) Validate() error {
	if err := validateMonth(g.Month); err != nil {
		return err
	}
	err := validation.ValidateStruct(&g,
		validation.Field(&g.Day, validation.Required, validation.Min(1), validation.Max(gregorianMonthLength(g.Year, g.Month))),
	)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidDate, g, err)
	}
	return nil
}

// Validate checks that the month is 1-12 and the day exists in that month,
// honouring Jalali leap years.
func (d Date) Validate() error {
	if err := validateMonth(d.Month); err != nil {
		return err
	}
	err := validation.ValidateStruct(&d,
		validation.Field(&d.Day, validation.Required, validation.Min(1), validation.Max(monthLength(d.Year, d.Month))),
	)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidDate, d, err)
	}
	return nil
}

// parseTriple splits "YYYY-MM-DD" or "YYYY/MM/DD" into integers.
// A leading minus sign on the year is allowed.
func parseTriple(s string) (int, int, int, error) {
	s = strings.TrimSpace(s)
	sep := "-"
	if strings.Contains(s, "/") {
		sep = "/"
	}
	neg := false
	if sep == "-" && strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	parts := strings.Split(s, sep)
	if len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("%w: %q is not YYYY%sMM%sDD", ErrInvalidDate, s, sep, sep)
	}
	var out [3]int
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			return 0, 0, 0, fmt.Errorf("%w: %q: %v", ErrInvalidDate, p, err)
		}
		out[i] = v
	}
	if neg {
		out[0] = -out[0]
	}
	return out[0], out[1], out[2], nil
}

// ParseDate parses and validates a Jalali date written as YYYY/MM/DD or YYYY-MM-DD.
func ParseDate(s string) (Date, error) {
	y, m, d, err := parseTriple(s)
	if err != nil {
		return Date{}, err
	}
	date := Date{Year: y, Month: m, Day: d}
	if err := date.Validate(); err != nil {
		return Date{}, err
	}
	return date, nil
}

// ParseGregorian parses and validates a Gregorian date written as YYYY-MM-DD or YYYY/MM/DD.
func ParseGregorian(s string) (GregorianDate, error) {
	y, m, d, err := parseTriple(s)
	if err != nil {
		return GregorianDate{}, err
	}
	date := GregorianDate{Year: y, Month: m, Day: d}
	if err := date.Validate(); err != nil {
		return GregorianDate{}, err
	}
	return date, nil
}
