package domain

import "time"

// ScheduleRecord is one row of the main schedule table, parsed into
// typed fields. Years and Months are never mutated after parsing.
type ScheduleRecord struct {
	ID             int
	Years          []int
	Months         []int
	Days           string // day-of-month, business-day ordinal or weekday token
	ExceptHolidays bool
	HMS            string // HH:mm:ss, absent components zero
	Channel        string
	SendTo         []string
	Message        string
	Renotice       string
	NotRenoticeTo  []string
	WaitingMinutes int
	Disabled       bool
}

// ScheduledMessage is one concrete, time-bound dispatch obligation
// derived from a ScheduleRecord. It is the payload stored with the
// trigger between fires and is mutated in place by the reminder handler:
// Datetime advances on each re-arm, TimeInterval decays, SendTo and the
// texts are refreshed from the source row before each resend.
type ScheduledMessage struct {
	RecordID       int       `json:"record_id"`
	Datetime       time.Time `json:"datetime"`
	TimeInterval   int       `json:"time_interval"` // minutes between renotices
	ExceptHolidays bool      `json:"except_holidays"`
	Channel        string    `json:"channel"` // resolved channel/room id
	SendTo         []string  `json:"send_to"`
	NotRenoticeTo  []string  `json:"not_renotice_to"`
	Message        string    `json:"message"`
	Renotice       string    `json:"renotice"`
	WaitingMinutes int       `json:"waiting_minutes"`
	Disabled       bool      `json:"disabled"`
	RepeatCount    int       `json:"repeat_count"`
	SentMessageID  string    `json:"sent_message_id,omitempty"` // empty until first send
	TaskIDs        []string  `json:"task_ids,omitempty"`        // Chatwork follow-up handles
}
