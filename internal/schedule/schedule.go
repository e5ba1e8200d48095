package schedule

import (
	"strings"
	"time"

	"github.com/yukifm/remindbot/internal/calendar"
	"github.com/yukifm/remindbot/internal/domain"
	"github.com/yukifm/remindbot/internal/table"
	"github.com/yukifm/remindbot/internal/timeutil"
)

// Column layout of the main schedule table.
const (
	colID = iota
	colYears
	colMonths
	colDays
	colExceptHolidays
	colTime
	colChannel
	colSendTo
	colMessage
	colRenotice
	colNotRenoticeTo
	colWaitingMinutes
	colDisabled
)

// ChannelResolver maps channel/room names to platform ids. Implemented
// by the chat clients.
type ChannelResolver interface {
	ResolveChannelID(name string) string
}

// Settings is the slice of the settings store the expander needs.
type Settings interface {
	TimeInterval() int
}

// Expander projects rows of the main schedule table into typed records
// and expands them to concrete dispatch instances.
type Expander struct {
	main     table.Source
	cal      *calendar.Engine
	settings Settings
	resolver ChannelResolver // optional
	now      func() time.Time
}

func NewExpander(main table.Source, cal *calendar.Engine, settings Settings, resolver ChannelResolver) *Expander {
	return &Expander{
		main:     main,
		cal:      cal,
		settings: settings,
		resolver: resolver,
		now:      time.Now,
	}
}

// SetNow overrides the clock, used by tests.
func (e *Expander) SetNow(now func() time.Time) {
	e.now = now
}

// readRecord projects one row. ok is false when the row should be
// skipped; terminal is true when an empty id cell ends the scan.
func (e *Expander) readRecord(row int) (record domain.ScheduleRecord, ok, terminal bool) {
	idCell := e.main.Cell(row, colID)
	if idCell.IsEmpty() {
		return record, false, true
	}
	id := idCell.AsIntegerOr(0)
	if id <= 0 {
		return record, false, false
	}

	record = domain.ScheduleRecord{
		ID:             id,
		Years:          timeutil.ParseYears(e.main.Cell(row, colYears).AsString(), e.now()),
		Months:         timeutil.ParseMonths(e.main.Cell(row, colMonths).AsString()),
		Days:           strings.TrimSpace(e.main.Cell(row, colDays).AsString()),
		ExceptHolidays: e.main.Cell(row, colExceptHolidays).AsBool(),
		HMS:            e.main.Cell(row, colTime).AsDayTime(),
		Channel:        strings.TrimSpace(e.main.Cell(row, colChannel).AsString()),
		SendTo:         ParseRecipients(e.main.Cell(row, colSendTo).AsString()),
		Message:        e.main.Cell(row, colMessage).AsString(),
		Renotice:       e.main.Cell(row, colRenotice).AsString(),
		NotRenoticeTo:  ParseRecipients(e.main.Cell(row, colNotRenoticeTo).AsString()),
		WaitingMinutes: e.main.Cell(row, colWaitingMinutes).AsIntegerOr(0),
		Disabled:       e.main.Cell(row, colDisabled).AsBool(),
	}
	if record.WaitingMinutes < 0 {
		record.WaitingMinutes = 0
	}
	return record, true, false
}

// Records reads every valid schedule row. Scanning stops at the first
// empty id cell; rows with a non-positive or non-integer id are
// skipped.
func (e *Expander) Records() []domain.ScheduleRecord {
	var results []domain.ScheduleRecord
	for row := 1; row < e.main.Rows(); row++ {
		record, ok, terminal := e.readRecord(row)
		if terminal {
			break
		}
		if !ok {
			continue
		}
		results = append(results, record)
	}
	return results
}

// RecordByID re-reads the owning row of an in-flight instance, so sheet
// edits take effect between fires. ok is false when the row is gone.
func (e *Expander) RecordByID(id int) (domain.ScheduleRecord, bool) {
	for _, record := range e.Records() {
		if record.ID == id {
			return record, true
		}
	}
	return domain.ScheduleRecord{}, false
}

// Expand computes one instance per (year, month) combination of the
// record. filterYear/filterMonth/filterDay (0 = unfiltered) restrict
// the result to a single target day, as used when scheduling "for
// tomorrow". Disabled records expand to nothing.
func (e *Expander) Expand(record domain.ScheduleRecord, calendarIDs []string, filterYear, filterMonth, filterDay int) []domain.ScheduledMessage {
	if record.Disabled {
		return nil
	}

	channel := record.Channel
	if e.resolver != nil && channel != "" {
		channel = e.resolver.ResolveChannelID(channel)
	}

	var results []domain.ScheduledMessage
	for _, year := range record.Years {
		for _, month := range record.Months {
			if month < 1 || month > 12 {
				continue
			}
			ref := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, e.now().Location())
			if filterYear == year && filterMonth == month && filterDay != 0 {
				ref = time.Date(year, time.Month(month), filterDay, 0, 0, 0, 0, ref.Location())
			}

			day := e.cal.ResolveDayField(record.Days, ref, record.ExceptHolidays, calendarIDs, false)
			if day == 0 {
				continue
			}

			var date time.Time
			if record.ExceptHolidays {
				date = e.cal.BusinessDayToDate(year, time.Month(month), day, calendarIDs)
			} else {
				date = time.Date(year, time.Month(month), day, 0, 0, 0, 0, ref.Location())
			}

			if filterYear != 0 && date.Year() != filterYear {
				continue
			}
			if filterMonth != 0 && int(date.Month()) != filterMonth {
				continue
			}
			if filterDay != 0 && date.Day() != filterDay {
				continue
			}

			date = timeutil.SetTimeOfDay(date, record.HMS)
			results = append(results, domain.ScheduledMessage{
				RecordID:       record.ID,
				Datetime:       date,
				TimeInterval:   e.settings.TimeInterval(),
				ExceptHolidays: record.ExceptHolidays,
				Channel:        channel,
				SendTo:         record.SendTo,
				NotRenoticeTo:  record.NotRenoticeTo,
				Message:        record.Message,
				Renotice:       record.Renotice,
				WaitingMinutes: record.WaitingMinutes,
				Disabled:       record.Disabled,
			})
		}
	}
	return results
}

// ForDate expands every record restricted to the given target day.
func (e *Expander) ForDate(target time.Time, calendarIDs []string) []domain.ScheduledMessage {
	var results []domain.ScheduledMessage
	for _, record := range e.Records() {
		instances := e.Expand(record, calendarIDs, target.Year(), int(target.Month()), target.Day())
		results = append(results, instances...)
	}
	return results
}

// ParseRecipients splits a recipient cell into tokens. Both plain comma
// lists ("U1,U2") and decorated mention syntax ("<@U1> <!channel>") are
// accepted: mention punctuation is stripped and the rest splits on
// whitespace.
func ParseRecipients(s string) []string {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '<', '>', '@', '!', ',':
			return ' '
		}
		return r
	}, s)
	return strings.Fields(cleaned)
}
