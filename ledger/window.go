package ledger

import (
	"time"
)

// =============================================================================
// WINDOW - Calendar-day inclusive date range
// =============================================================================

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// Window is [From 00:00:00.000, To 23:59:59.999] in Location. Both ends are
// inclusive; timestamps are converted to Location before comparison.
type Window struct {
	From     time.Time
	To       time.Time
	Location *time.Location
}

// NewWindow builds a window from the calendar dates of from and to as seen
// in loc. A nil loc means time.Local.
func NewWindow(from, to time.Time, loc *time.Location) (Window, error) {
	if loc == nil {
		loc = time.Local
	}
	from = from.In(loc)
	to = to.In(loc)
	start := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, loc)
	end := time.Date(to.Year(), to.Month(), to.Day(), 23, 59, 59, int(999*time.Millisecond), loc)
	if end.Before(start) {
		return Window{}, invalid("to", "date range ends before it starts")
	}
	return Window{From: start, To: end, Location: loc}, nil
}

// ParseWindow parses two YYYY-MM-DD dates in loc.
func ParseWindow(from, to string, loc *time.Location) (Window, error) {
	if loc == nil {
		loc = time.Local
	}
	if from == "" || to == "" {
		return Window{}, invalid("date_range", "from and to are required")
	}
	f, err := time.ParseInLocation(DateLayout, from, loc)
	if err != nil {
		return Window{}, invalid("from", "use YYYY-MM-DD")
	}
	t, err := time.ParseInLocation(DateLayout, to, loc)
	if err != nil {
		return Window{}, invalid("to", "use YYYY-MM-DD")
	}
	return NewWindow(f, t, loc)
}

// MonthWindow covers a whole calendar month.
func MonthWindow(year int, month time.Month, loc *time.Location) Window {
	if loc == nil {
		loc = time.Local
	}
	first := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	last := first.AddDate(0, 1, -1)
	w, _ := NewWindow(first, last, loc)
	return w
}

// Contains reports whether t falls inside the window. Anything on the To
// calendar day counts, including sub-millisecond timestamps after 23:59:59.999.
func (w Window) Contains(t time.Time) bool {
	t = t.In(w.Location)
	if t.Before(w.From) {
		return false
	}
	nextDay := time.Date(w.To.Year(), w.To.Month(), w.To.Day()+1, 0, 0, 0, 0, w.Location)
	return t.Before(nextDay)
}
