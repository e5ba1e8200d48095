package caldav

import "time"

// Calendar is one CalDAV collection holding holiday events.
type Calendar struct {
	ID          string // collection path, used as the calendar id
	DisplayName string
	URL         string
}

// Event is a holiday entry parsed from a VEVENT.
type Event struct {
	UID       string
	Summary   string
	StartTime time.Time
	EndTime   time.Time
	AllDay    bool
}
