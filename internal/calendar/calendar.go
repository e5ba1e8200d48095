package calendar

import (
	"strconv"
	"strings"
	"time"

	"github.com/yukifm/remindbot/internal/timeutil"
)

// EventSource answers whether a holiday calendar has at least one event
// overlapping a given day. Implemented by the caldav client in
// production and by funcs in tests.
type EventSource interface {
	HasEventOnDay(calendarID string, dayStart, dayEnd time.Time) (bool, error)
}

// EventSourceFunc adapts a plain function to EventSource.
type EventSourceFunc func(calendarID string, dayStart, dayEnd time.Time) (bool, error)

func (f EventSourceFunc) HasEventOnDay(calendarID string, dayStart, dayEnd time.Time) (bool, error) {
	return f(calendarID, dayStart, dayEnd)
}

// Settings is the slice of the settings store the engine needs.
type Settings interface {
	OpeningTime() string // "HH:mm:ss", empty disables the opening clamp
	ClosingTime() string
	TimeIntervalDecay() float64
	TimeIntervalMin() int
}

// Engine performs business-day arithmetic against a set of holiday
// calendars. defaultIDs is the "all configured calendars" set, resolved
// once at startup; callers may narrow it per call.
type Engine struct {
	events     EventSource
	settings   Settings
	defaultIDs []string
	loc        *time.Location
}

func New(events EventSource, settings Settings, calendarIDs []string, loc *time.Location) *Engine {
	if loc == nil {
		loc = time.Local
	}
	return &Engine{events: events, settings: settings, defaultIDs: calendarIDs, loc: loc}
}

// CalendarIDs returns the configured holiday calendar set.
func (e *Engine) CalendarIDs() []string {
	return e.defaultIDs
}

// IsHoliday reports whether any of the calendars has an event on the day
// containing date. A nil calendarIDs means all configured calendars.
// Lookup failures for a single calendar degrade to "no events".
func (e *Engine) IsHoliday(date time.Time, calendarIDs []string) bool {
	if calendarIDs == nil {
		calendarIDs = e.defaultIDs
	}
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)
	for _, id := range calendarIDs {
		found, err := e.events.HasEventOnDay(id, dayStart, dayEnd)
		if err != nil {
			continue
		}
		if found {
			return true
		}
	}
	return false
}

// BusinessDayToDate converts the n-th business day of the given month to
// a date. When n exceeds the business days available the last business
// day of the month is kept; n <= 0 yields day 1. The result never
// leaves the target month.
func (e *Engine) BusinessDayToDate(year int, month time.Month, n int, calendarIDs []string) time.Time {
	result := time.Date(year, month, 1, 0, 0, 0, 0, e.loc)
	last := daysInMonth(year, month)
	for day := 1; day <= last && n > 0; day++ {
		d := time.Date(year, month, day, 0, 0, 0, 0, e.loc)
		if e.IsHoliday(d, calendarIDs) {
			continue
		}
		result = d
		n--
	}
	return result
}

// WeekdayOccurrences resolves every occurrence of weekday in the month
// containing ref, walking from day 1 forward (or from the last day
// backward). A holiday occurrence is skipped entirely when
// exceptHolidays, otherwise shifted day-by-day in the walk direction
// until a non-holiday is found; the walk always resumes seven days from
// the original occurrence.
func (e *Engine) WeekdayOccurrences(weekday time.Weekday, ref time.Time, exceptHolidays bool, calendarIDs []string, backward bool) []time.Time {
	year, month := ref.Year(), ref.Month()
	last := daysInMonth(year, month)

	day := 1
	step := 1
	if backward {
		day = last
		step = -1
	}
	for day >= 1 && day <= last {
		if time.Date(year, month, day, 0, 0, 0, 0, e.loc).Weekday() == weekday {
			break
		}
		day += step
	}

	var results []time.Time
	for day >= 1 && day <= last {
		occ := time.Date(year, month, day, 0, 0, 0, 0, e.loc)
		if !e.IsHoliday(occ, calendarIDs) {
			results = append(results, occ)
		} else if !exceptHolidays {
			shifted := occ
			for i := 0; i < 31; i++ {
				shifted = shifted.AddDate(0, 0, step)
				if !e.IsHoliday(shifted, calendarIDs) {
					results = append(results, shifted)
					break
				}
			}
		}
		day += 7 * step
	}
	return results
}

// ResolveDayField interprets the days column for the month containing
// ref. A weekday token resolves to the next occurrence at or after
// ref's day, looking one month ahead for wraparound; a numeric token is
// clamped into [1, last day of the month]. Empty or unparseable tokens
// yield 0.
func (e *Engine) ResolveDayField(token string, ref time.Time, exceptHolidays bool, calendarIDs []string, backward bool) int {
	token = strings.TrimSpace(token)
	if token == "" {
		return 0
	}

	if weekday, ok := ParseWeekday(token); ok {
		occurrences := e.WeekdayOccurrences(weekday, ref, exceptHolidays, calendarIDs, backward)
		nextMonth := time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, e.loc).AddDate(0, 1, 0)
		occurrences = append(occurrences, e.WeekdayOccurrences(weekday, nextMonth, exceptHolidays, calendarIDs, backward)...)

		best := 0
		bestDelta := -1
		seen := map[int]bool{}
		for _, d := range occurrences {
			if d.Year() != ref.Year() || d.Month() != ref.Month() || seen[d.Day()] {
				continue
			}
			seen[d.Day()] = true
			delta := d.Day() - ref.Day()
			if delta < 0 {
				continue
			}
			if bestDelta < 0 || delta < bestDelta {
				bestDelta = delta
				best = d.Day()
			}
		}
		return best
	}

	n, err := strconv.Atoi(token)
	if err != nil {
		return 0
	}
	last := daysInMonth(ref.Year(), ref.Month())
	if n < 1 {
		return 1
	}
	if n > last {
		return last
	}
	return n
}

// NextSendTime adds minutes to from and clamps the result into the
// opening/closing window: before opening snaps to the same day's
// opening, strictly after closing snaps to the next day's opening. With
// exceptHolidays the result then advances whole days, time of day
// preserved, while it lands on a holiday.
func (e *Engine) NextSendTime(from time.Time, minutes int, exceptHolidays bool, calendarIDs []string) time.Time {
	result := from.Add(time.Duration(minutes) * time.Minute)

	opening := e.settings.OpeningTime()
	closing := e.settings.ClosingTime()
	tod := result.Format("15:04:05")
	if opening != "" && tod < opening {
		result = timeutil.SetTimeOfDay(result, opening)
	} else if closing != "" && tod > closing {
		result = timeutil.SetTimeOfDay(result.AddDate(0, 0, 1), opening)
	}

	if exceptHolidays {
		for e.IsHoliday(result, calendarIDs) {
			result = result.AddDate(0, 0, 1)
		}
	}
	return result
}

// NextWorkingDay advances by one calendar day, then keeps advancing
// while the result is a holiday.
func (e *Engine) NextWorkingDay(from time.Time, calendarIDs []string) time.Time {
	result := from.AddDate(0, 0, 1)
	for e.IsHoliday(result, calendarIDs) {
		result = result.AddDate(0, 0, 1)
	}
	return result
}

// DecayedInterval shrinks a renotice gap by the configured decay factor,
// floored at the configured minimum. A decay of 1 keeps it constant.
func (e *Engine) DecayedInterval(current int) int {
	decayed := int(float64(current) / e.settings.TimeIntervalDecay())
	if min := e.settings.TimeIntervalMin(); decayed < min {
		return min
	}
	return decayed
}

// Tomorrow returns t plus one calendar day, time of day preserved.
func Tomorrow(t time.Time) time.Time {
	return t.AddDate(0, 0, 1)
}

// ParseWeekday recognizes the three-letter weekday tokens used in the
// days column.
func ParseWeekday(token string) (time.Weekday, bool) {
	switch strings.ToLower(strings.TrimSpace(token)) {
	case "sun":
		return time.Sunday, true
	case "mon":
		return time.Monday, true
	case "tue":
		return time.Tuesday, true
	case "wed":
		return time.Wednesday, true
	case "thu":
		return time.Thursday, true
	case "fri":
		return time.Friday, true
	case "sat":
		return time.Saturday, true
	}
	return 0, false
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
