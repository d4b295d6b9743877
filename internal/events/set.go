package events

import "github.com/tartampluch/go-shamsi/internal/jalali"

type monthDay struct {
	month, day int
}

// Set is an immutable in-memory view of the store, cheap to query per cell.
// It is safe for concurrent use.
type Set struct {
	exact  map[jalali.Date][]Event
	yearly map[monthDay][]Event
}

// NewSet indexes events. Order within a day follows the input order.
func NewSet(evts []Event) Set {
	s := Set{
		exact:  make(map[jalali.Date][]Event),
		yearly: make(map[monthDay][]Event),
	}
	for _, e := range evts {
		if e.Recurring {
			k := monthDay{e.Date.Month, e.Date.Day}
			s.yearly[k] = append(s.yearly[k], e)
			continue
		}
		s.exact[e.Date] = append(s.exact[e.Date], e)
	}
	return s
}

// On returns every event observed on d, one-off entries first.
func (s Set) On(d jalali.Date) []Event {
	var out []Event
	out = append(out, s.exact[d]...)

	candidates := s.yearly[monthDay{d.Month, d.Day}]
	if d.Month == 12 && d.Day == 29 && !jalali.IsLeap(d.Year) {
		candidates = append(candidates[:len(candidates):len(candidates)], s.yearly[monthDay{12, 30}]...)
	}
	for _, e := range candidates {
		if e.OccursOn(d) {
			out = append(out, e)
		}
	}
	return out
}

// Titles lists the text of every event observed on d.
func (s Set) Titles(d jalali.Date) []string {
	evts := s.On(d)
	if len(evts) == 0 {
		return nil
	}
	titles := make([]string, len(evts))
	for i, e := range evts {
		titles[i] = e.Title
	}
	return titles
}

// Has reports whether any event is observed on d. The method value satisfies
// jalali.EventPredicate.
func (s Set) Has(d jalali.Date) bool {
	if len(s.exact[d]) > 0 {
		return true
	}
	return len(s.On(d)) > 0
}

// Len is the number of indexed events.
func (s Set) Len() int {
	n := 0
	for _, v := range s.exact {
		n += len(v)
	}
	for _, v := range s.yearly {
		n += len(v)
	}
	return n
}
