package jalali

// Jalali years at which the 33-year leap cycle is re-anchored to the equinox.
// The table comes from the astronomical reference algorithm used by the jalaali
// family of libraries; keep it verbatim.
var breaks = [...]int{
	-61, 9, 38, 199, 426, 686, 756, 818, 1111, 1181,
	1210, 1635, 2060, 2097, 2192, 2262, 2324, 2394, 2456, 3178,
}

// Bounds of the years for which the break table guarantees accuracy.
const (
	MinYear = -61
	MaxYear = 3177
)

// LeapInfo describes a Jalali year relative to the Gregorian calendar.
type LeapInfo struct {
	IsLeap bool
	// GregorianYear is the Gregorian year in which the Jalali year begins.
	GregorianYear int
	// MarchDay is the day of March on which Nowruz falls in GregorianYear.
	MarchDay int
}

// ResolveYear computes leap status and the Nowruz anchor of Jalali year jy.
// It is defined for every integer; outside [MinYear, MaxYear] results are
// extrapolated and no longer astronomically exact.
func ResolveYear(jy int) LeapInfo {
	gy := jy + 621
	leapJ := -14
	jp := breaks[0]
	jump := 0

	for i := 1; i < len(breaks); i++ {
		jm := breaks[i]
		jump = jm - jp
		if jy < jm {
			break
		}
		leapJ += jump/33*8 + (jump%33)/4
		jp = jm
	}

	n := jy - jp
	leapJ += n/33*8 + (n%33+3)/4
	if jump%33 == 4 && jump-n == 4 {
		leapJ++
	}

	leapG := gy/4 - (gy/100+1)*3/4 - 150
	march := 20 + leapJ - leapG

	// Near the end of a span the year index is mapped onto the following cycle.
	if jump-n < 6 {
		n = n - jump + (jump+4)/33*33
	}
	slot := ((n+1)%33 - 1) % 4

	return LeapInfo{
		IsLeap:        slot == 0,
		GregorianYear: gy,
		MarchDay:      march,
	}
}

// IsLeap reports whether Jalali year jy has 366 days.
func IsLeap(jy int) bool {
	return ResolveYear(jy).IsLeap
}

// InSupportedRange reports whether jy is covered by the break table.
func InSupportedRange(jy int) bool {
	return jy >= MinYear && jy <= MaxYear
}
