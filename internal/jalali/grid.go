package jalali

import "time"

// Grid dimensions. Weeks start on Saturday.
const (
	WeekLength = 7
	GridWeeks  = 6
	GridSize   = WeekLength * GridWeeks
)

// Cell is one day of a month grid.
type Cell struct {
	Date     Date `json:"date"`
	InMonth  bool `json:"in_month"`
	IsToday  bool `json:"is_today"`
	HasEvent bool `json:"has_event"`
}

// Grid is a month laid out as six Saturday-first weeks.
type Grid [GridSize]Cell

// EventPredicate reports whether a date carries at least one event.
type EventPredicate func(Date) bool

// PrevMonth returns the month before (jy, jm), wrapping into the previous year.
func PrevMonth(jy, jm int) (int, int) {
	if jm == 1 {
		return jy - 1, 12
	}
	return jy, jm - 1
}

// NextMonth returns the month after (jy, jm), wrapping into the next year.
func NextMonth(jy, jm int) (int, int) {
	if jm == 12 {
		return jy + 1, 1
	}
	return jy, jm + 1
}

// LeadingDays is the number of cells borrowed from the previous month when
// (jy, jm) is laid out on a Saturday-first grid.
func LeadingDays(jy, jm int) (int, error) {
	first, err := JalaliToJDN(Date{Year: jy, Month: jm, Day: 1})
	if err != nil {
		return 0, err
	}
	return saturdayIndex(Weekday(first)), nil
}

// saturdayIndex maps Sunday=0 weekdays onto Saturday=0 columns.
func saturdayIndex(wd time.Weekday) int {
	return (int(wd) + 1) % WeekLength
}

// BuildMonthGrid lays out Jalali month (jy, jm) as 42 cells: the tail of the
// previous month, the whole target month, then the head of the next month.
// today marks at most one cell; hasEvent may be nil.
func BuildMonthGrid(jy, jm int, today Date, hasEvent EventPredicate) (Grid, error) {
	var grid Grid

	lead, err := LeadingDays(jy, jm)
	if err != nil {
		return grid, err
	}
	days := monthLength(jy, jm)

	py, pm := PrevMonth(jy, jm)
	prevDays := monthLength(py, pm)
	ny, nm := NextMonth(jy, jm)

	for i := range grid {
		var c Cell
		switch {
		case i < lead:
			c.Date = Date{Year: py, Month: pm, Day: prevDays - (lead - 1 - i)}
		case i < lead+days:
			c.Date = Date{Year: jy, Month: jm, Day: i - lead + 1}
			c.InMonth = true
		default:
			c.Date = Date{Year: ny, Month: nm, Day: i - (lead + days) + 1}
		}
		c.IsToday = c.Date == today
		if hasEvent != nil {
			c.HasEvent = hasEvent(c.Date)
		}
		grid[i] = c
	}
	return grid, nil
}

// Weeks splits the grid into rows of seven cells.
func (g *Grid) Weeks() [GridWeeks][]Cell {
	var rows [GridWeeks][]Cell
	for w := range rows {
		rows[w] = g[w*WeekLength : (w+1)*WeekLength]
	}
	return rows
}
