package jalali

import "fmt"

// Days in the first half of a Jalali year (six 31-day months).
const firstHalfDays = 6 * 31

// Date is a civil date in the Jalali calendar.
type Date struct {
	Year  int `json:"year"`
	Month int `json:"month"`
	Day   int `json:"day"`
}

// String formats the date as YYYY/MM/DD, the conventional Persian ordering.
func (d Date) String() string {
	return fmt.Sprintf("%04d/%02d/%02d", d.Year, d.Month, d.Day)
}

// Key is the compact "jy-jm-jd" form used as a storage key.
func (d Date) Key() string {
	return fmt.Sprintf("%d-%d-%d", d.Year, d.Month, d.Day)
}

// AddDays returns the date n days after d.
func (d Date) AddDays(n int) (Date, error) {
	jdn, err := JalaliToJDN(d)
	if err != nil {
		return Date{}, err
	}
	return JDNToJalali(jdn + JDN(n)), nil
}

// Before reports whether d is strictly earlier than other.
func (d Date) Before(other Date) bool {
	if d.Year != other.Year {
		return d.Year < other.Year
	}
	if d.Month != other.Month {
		return d.Month < other.Month
	}
	return d.Day < other.Day
}

// JalaliToJDN returns the Julian Day Number of a Jalali date.
func JalaliToJDN(d Date) (JDN, error) {
	if err := d.Validate(); err != nil {
		return 0, err
	}
	return jalaliToJDN(d.Year, d.Month, d.Day), nil
}

func jalaliToJDN(jy, jm, jd int) JDN {
	info := ResolveYear(jy)
	nowruz := gregorianToJDN(info.GregorianYear, 3, info.MarchDay)
	return nowruz + JDN(monthOffset(jm)+jd-1)
}

// monthOffset is the number of days in a Jalali year before month m.
// It matches the closed form (m-1)*31 - (m/7)*(m-7).
func monthOffset(m int) int {
	if m <= 6 {
		return (m - 1) * 31
	}
	return firstHalfDays + (m-7)*30
}

// JDNToJalali converts a Julian Day Number to a Jalali date.
func JDNToJalali(jdn JDN) Date {
	gy := JDNToGregorian(jdn).Year
	jy := gy - 621

	info := ResolveYear(jy)
	nowruz := gregorianToJDN(info.GregorianYear, 3, info.MarchDay)
	if jdn < nowruz {
		jy--
		info = ResolveYear(jy)
		nowruz = gregorianToJDN(info.GregorianYear, 3, info.MarchDay)
	}

	k := int(jdn - nowruz)
	if k < firstHalfDays {
		return Date{Year: jy, Month: 1 + k/31, Day: k%31 + 1}
	}
	k -= firstHalfDays
	return Date{Year: jy, Month: 7 + k/30, Day: k%30 + 1}
}

// ToJalali converts a Gregorian date to the Jalali calendar.
func ToJalali(g GregorianDate) (Date, error) {
	jdn, err := GregorianToJDN(g)
	if err != nil {
		return Date{}, err
	}
	return JDNToJalali(jdn), nil
}

// ToGregorian converts a Jalali date to the Gregorian calendar.
func ToGregorian(d Date) (GregorianDate, error) {
	jdn, err := JalaliToJDN(d)
	if err != nil {
		return GregorianDate{}, err
	}
	return JDNToGregorian(jdn), nil
}

// MonthLength returns the number of days in month jm of Jalali year jy.
func MonthLength(jy, jm int) (int, error) {
	if err := validateMonth(jm); err != nil {
		return 0, err
	}
	return monthLength(jy, jm), nil
}

func monthLength(jy, jm int) int {
	switch {
	case jm <= 6:
		return 31
	case jm <= 11:
		return 30
	case IsLeap(jy):
		return 30
	default:
		return 29
	}
}

// YearLength returns 366 for leap years and 365 otherwise.
func YearLength(jy int) int {
	if IsLeap(jy) {
		return 366
	}
	return 365
}
