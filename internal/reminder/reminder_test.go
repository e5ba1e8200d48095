package reminder

import (
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/yukifm/remindbot/internal/calendar"
	"github.com/yukifm/remindbot/internal/chat"
	"github.com/yukifm/remindbot/internal/domain"
	"github.com/yukifm/remindbot/internal/table"
)

type sentCall struct {
	channel string
	text    string
	opts    chat.SendOptions
}

type fakeChat struct {
	usesTasks    bool
	members      []string
	bots         map[string]bool
	groups       []chat.UserGroup
	groupMembers map[string][]string
	replies      []chat.Reply
	completed    []string

	sent        []sentCall
	nextID      int
	postedTasks [][]string
	taskDue     time.Time
}

func (c *fakeChat) ResolveChannelID(name string) string { return name }

func (c *fakeChat) SendMessage(channel, text string, opts chat.SendOptions) (string, error) {
	c.sent = append(c.sent, sentCall{channel, text, opts})
	c.nextID++
	return fmt.Sprintf("msg-%d", c.nextID), nil
}

func (c *fakeChat) FormatMessage(channel string, sendTo []string, text string) string {
	return fmt.Sprintf("%v %s", sendTo, text)
}

func (c *fakeChat) ChannelMemberIDs(channel string) ([]string, error) { return c.members, nil }
func (c *fakeChat) UserGroups() ([]chat.UserGroup, error)            { return c.groups, nil }

func (c *fakeChat) UserGroupMemberIDs(groupID string) ([]string, error) {
	return c.groupMembers[groupID], nil
}

func (c *fakeChat) IsBot(userID string) bool { return c.bots[userID] }

func (c *fakeChat) ThreadReplies(channel, messageID string) ([]chat.Reply, error) {
	return c.replies, nil
}

func (c *fakeChat) PostTasks(channel, text string, assignees []string, due time.Time) ([]string, error) {
	c.postedTasks = append(c.postedTasks, assignees)
	c.taskDue = due
	return []string{"task-1"}, nil
}

func (c *fakeChat) CompletedTaskAssignees(channel string, taskIDs []string) ([]string, error) {
	return c.completed, nil
}

func (c *fakeChat) UsesTasks() bool { return c.usesTasks }

type fakeRecords struct {
	records map[int]domain.ScheduleRecord
}

func (r *fakeRecords) RecordByID(id int) (domain.ScheduleRecord, bool) {
	record, ok := r.records[id]
	return record, ok
}

type fakeTimer struct {
	at  []time.Time
	msg []*domain.ScheduledMessage
}

func (t *fakeTimer) Schedule(at time.Time, msg *domain.ScheduledMessage) error {
	t.at = append(t.at, at)
	t.msg = append(t.msg, msg)
	return nil
}

type fakeSettings struct {
	maxRepeat int
	decay     float64
	minGap    int
}

func (s *fakeSettings) OpeningTime() string        { return "00:00:00" }
func (s *fakeSettings) ClosingTime() string        { return "23:59:59" }
func (s *fakeSettings) TimeIntervalDecay() float64 { return s.decay }
func (s *fakeSettings) TimeIntervalMin() int       { return s.minGap }
func (s *fakeSettings) MaxRepeatCount() int        { return s.maxRepeat }
func (s *fakeSettings) BotName() string            { return "remindbot" }
func (s *fakeSettings) SlackIconEmoji() string     { return ":bell:" }

func noHolidays(calendarID string, dayStart, dayEnd time.Time) (bool, error) {
	return false, nil
}

func newTestHandler(client *fakeChat, records *fakeRecords, settings *fakeSettings) (*Handler, *fakeTimer) {
	if settings.decay == 0 {
		settings.decay = 1
	}
	if settings.minGap == 0 {
		settings.minGap = 1
	}
	cal := calendar.New(calendar.EventSourceFunc(noHolidays), settings, nil, time.UTC)
	timer := &fakeTimer{}
	keywords := func() []string { return []string{"done", "完了"} }
	return NewHandler(client, cal, records, timer, settings, keywords), timer
}

func baseRecord(renotice string) domain.ScheduleRecord {
	return domain.ScheduleRecord{
		ID:       1,
		Channel:  "C1",
		Renotice: renotice,
	}
}

func baseInstance() *domain.ScheduledMessage {
	return &domain.ScheduledMessage{
		RecordID:     1,
		Datetime:     time.Date(2023, 2, 6, 10, 0, 0, 0, time.UTC),
		TimeInterval: 60,
		Channel:      "C1",
		SendTo:       []string{"channel"},
		Message:      "standup time",
	}
}

func TestFirstSendWithoutRenotice(t *testing.T) {
	client := &fakeChat{members: []string{"U1", "U2"}}
	records := &fakeRecords{records: map[int]domain.ScheduleRecord{1: baseRecord("")}}
	handler, timer := newTestHandler(client, records, &fakeSettings{})

	msg := baseInstance()
	if err := handler.HandleFire(msg); err != nil {
		t.Fatal(err)
	}
	if len(client.sent) != 1 {
		t.Fatalf("sent = %d, want 1", len(client.sent))
	}
	if len(timer.at) != 0 {
		t.Fatalf("timer armed %d times, want 0", len(timer.at))
	}
	if msg.SentMessageID != "msg-1" {
		t.Errorf("SentMessageID = %q", msg.SentMessageID)
	}
}

func TestFirstSendDisabledInstance(t *testing.T) {
	client := &fakeChat{}
	handler, timer := newTestHandler(client, &fakeRecords{}, &fakeSettings{})

	msg := baseInstance()
	msg.Disabled = true
	if err := handler.HandleFire(msg); err != nil {
		t.Fatal(err)
	}
	if len(client.sent) != 0 || len(timer.at) != 0 {
		t.Fatalf("disabled instance sent=%d armed=%d", len(client.sent), len(timer.at))
	}
}

func TestFirstSendArmsRenotice(t *testing.T) {
	client := &fakeChat{
		members: []string{"U1", "U2", "UBOT", "U3"},
		bots:    map[string]bool{"UBOT": true},
	}
	record := baseRecord("still waiting")
	record.NotRenoticeTo = []string{"U3"}
	records := &fakeRecords{records: map[int]domain.ScheduleRecord{1: record}}
	handler, timer := newTestHandler(client, records, &fakeSettings{})

	msg := baseInstance()
	msg.WaitingMinutes = 30
	if err := handler.HandleFire(msg); err != nil {
		t.Fatal(err)
	}
	if want := []string{"U1", "U2"}; !reflect.DeepEqual(msg.SendTo, want) {
		t.Errorf("SendTo = %v, want %v", msg.SendTo, want)
	}
	if msg.RepeatCount != 1 {
		t.Errorf("RepeatCount = %d, want 1", msg.RepeatCount)
	}
	wantAt := time.Date(2023, 2, 6, 10, 30, 0, 0, time.UTC)
	if len(timer.at) != 1 || !timer.at[0].Equal(wantAt) {
		t.Fatalf("timer = %v, want [%v]", timer.at, wantAt)
	}
	if !msg.Datetime.Equal(wantAt) {
		t.Errorf("Datetime = %v, want %v", msg.Datetime, wantAt)
	}
}

func TestFirstSendResolvesUserGroups(t *testing.T) {
	client := &fakeChat{
		members:      []string{"U1"},
		bots:         map[string]bool{"UBOT": true},
		groups:       []chat.UserGroup{{ID: "S1", Handle: "oncall"}},
		groupMembers: map[string][]string{"S1": {"U5", "UBOT", "U6"}},
	}
	records := &fakeRecords{records: map[int]domain.ScheduleRecord{1: baseRecord("ping")}}
	handler, _ := newTestHandler(client, records, &fakeSettings{})

	msg := baseInstance()
	msg.SendTo = []string{"U1", "subteam^S1"}
	if err := handler.HandleFire(msg); err != nil {
		t.Fatal(err)
	}
	if want := []string{"U1", "U5", "U6"}; !reflect.DeepEqual(msg.SendTo, want) {
		t.Errorf("SendTo = %v, want %v", msg.SendTo, want)
	}
}

func TestRenoticeSubtractsAcknowledged(t *testing.T) {
	client := &fakeChat{
		replies: []chat.Reply{
			{UserID: "U1", Text: "DONE it"},
			{UserID: "U2", Text: "not yet"},
		},
	}
	records := &fakeRecords{records: map[int]domain.ScheduleRecord{1: baseRecord("still waiting")}}
	settings := &fakeSettings{decay: 2, minGap: 1}
	handler, timer := newTestHandler(client, records, settings)

	msg := baseInstance()
	msg.SentMessageID = "msg-0"
	msg.SendTo = []string{"U1", "U2", "U3"}
	msg.RepeatCount = 1
	if err := handler.HandleFire(msg); err != nil {
		t.Fatal(err)
	}
	if want := []string{"U2", "U3"}; !reflect.DeepEqual(msg.SendTo, want) {
		t.Errorf("SendTo = %v, want %v", msg.SendTo, want)
	}
	if len(client.sent) != 1 {
		t.Fatalf("sent = %d, want 1", len(client.sent))
	}
	if client.sent[0].opts.ThreadID != "msg-0" {
		t.Errorf("ThreadID = %q, want msg-0", client.sent[0].opts.ThreadID)
	}
	if msg.TimeInterval != 30 {
		t.Errorf("TimeInterval = %d, want 30", msg.TimeInterval)
	}
	wantAt := time.Date(2023, 2, 6, 10, 30, 0, 0, time.UTC)
	if len(timer.at) != 1 || !timer.at[0].Equal(wantAt) {
		t.Fatalf("timer = %v, want [%v]", timer.at, wantAt)
	}
}

func TestRenoticeAllAcknowledged(t *testing.T) {
	client := &fakeChat{
		replies: []chat.Reply{{UserID: "U1", Text: "完了しました"}},
	}
	records := &fakeRecords{records: map[int]domain.ScheduleRecord{1: baseRecord("still waiting")}}
	handler, timer := newTestHandler(client, records, &fakeSettings{})

	msg := baseInstance()
	msg.SentMessageID = "msg-0"
	msg.SendTo = []string{"U1"}
	if err := handler.HandleFire(msg); err != nil {
		t.Fatal(err)
	}
	if len(client.sent) != 0 || len(timer.at) != 0 {
		t.Fatalf("all acked: sent=%d armed=%d", len(client.sent), len(timer.at))
	}
}

func TestRenoticeRepeatCap(t *testing.T) {
	client := &fakeChat{}
	records := &fakeRecords{records: map[int]domain.ScheduleRecord{1: baseRecord("still waiting")}}
	handler, timer := newTestHandler(client, records, &fakeSettings{maxRepeat: 2})

	msg := baseInstance()
	msg.SentMessageID = "msg-0"
	msg.SendTo = []string{"U1"}
	msg.RepeatCount = 2
	if err := handler.HandleFire(msg); err != nil {
		t.Fatal(err)
	}
	if len(client.sent) != 1 {
		t.Fatalf("sent = %d, want 1 (final renotice still goes out)", len(client.sent))
	}
	if len(timer.at) != 0 {
		t.Fatalf("timer armed past the repeat cap")
	}
}

func TestRenoticeDroppedRecord(t *testing.T) {
	client := &fakeChat{}
	handler, timer := newTestHandler(client, &fakeRecords{}, &fakeSettings{})

	msg := baseInstance()
	msg.SentMessageID = "msg-0"
	msg.SendTo = []string{"U1"}
	if err := handler.HandleFire(msg); err != nil {
		t.Fatal(err)
	}
	if len(client.sent) != 0 || len(timer.at) != 0 {
		t.Fatalf("dropped record: sent=%d armed=%d", len(client.sent), len(timer.at))
	}
}

func TestRenoticeTaskPlatform(t *testing.T) {
	client := &fakeChat{
		usesTasks: true,
		completed: []string{"100"},
	}
	records := &fakeRecords{records: map[int]domain.ScheduleRecord{1: baseRecord("still waiting")}}
	handler, timer := newTestHandler(client, records, &fakeSettings{})

	msg := baseInstance()
	msg.SentMessageID = "msg-0"
	msg.SendTo = []string{"100", "200"}
	msg.TaskIDs = []string{"task-0"}
	if err := handler.HandleFire(msg); err != nil {
		t.Fatal(err)
	}
	if want := []string{"200"}; !reflect.DeepEqual(msg.SendTo, want) {
		t.Errorf("SendTo = %v, want %v", msg.SendTo, want)
	}
	if len(client.postedTasks) != 1 || !reflect.DeepEqual(client.postedTasks[0], []string{"200"}) {
		t.Errorf("posted tasks = %v, want [[200]]", client.postedTasks)
	}
	if !reflect.DeepEqual(msg.TaskIDs, []string{"task-1"}) {
		t.Errorf("TaskIDs = %v", msg.TaskIDs)
	}
	if len(timer.at) != 1 {
		t.Fatalf("timer armed %d times, want 1", len(timer.at))
	}
}

func TestRemaining(t *testing.T) {
	cases := []struct {
		name     string
		sendTo   []string
		acked    []string
		excluded []string
		want     []string
	}{
		{"subtracts both sets", []string{"U1", "U2", "U3"}, []string{"U1"}, []string{"U3"}, []string{"U2"}},
		{"wildcard excludes everyone", []string{"U1", "U2"}, nil, []string{"toall"}, nil},
		{"all wildcard excludes everyone", []string{"U1", "U2"}, nil, []string{"all"}, nil},
		{"no overlap keeps order", []string{"U2", "U1"}, []string{"U9"}, nil, []string{"U2", "U1"}},
	}
	for _, tc := range cases {
		if got := Remaining(tc.sendTo, tc.acked, tc.excluded); !reflect.DeepEqual(got, tc.want) {
			t.Errorf("%s: Remaining = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestHasKeyword(t *testing.T) {
	keywords := []string{"done", "完了"}
	cases := []struct {
		text string
		want bool
	}{
		{"Done!", true},
		{"対応完了です", true},
		{"working on it", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := HasKeyword(tc.text, keywords); got != tc.want {
			t.Errorf("HasKeyword(%q) = %v, want %v", tc.text, got, tc.want)
		}
	}
}

func TestKeywordsFromTable(t *testing.T) {
	src := &table.Memory{Values: [][]table.Value{
		{table.StringValue("keyword")},
		{table.StringValue("done")},
		{table.StringValue("")},
		{table.StringValue(" 完了 ")},
	}}
	if want := []string{"done", "完了"}; !reflect.DeepEqual(KeywordsFromTable(src), want) {
		t.Errorf("KeywordsFromTable = %v, want %v", KeywordsFromTable(src), want)
	}
}
