package reminder

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/yukifm/remindbot/internal/calendar"
	"github.com/yukifm/remindbot/internal/chat"
	"github.com/yukifm/remindbot/internal/domain"
	"github.com/yukifm/remindbot/internal/table"
)

// RecordSource re-reads the owning schedule row of an in-flight
// instance. Implemented by the schedule expander.
type RecordSource interface {
	RecordByID(id int) (domain.ScheduleRecord, bool)
}

// Timer registers the next fire for an instance. Implemented by the
// trigger store.
type Timer interface {
	Schedule(at time.Time, msg *domain.ScheduledMessage) error
}

// Settings is the slice of the settings store the handler needs.
type Settings interface {
	MaxRepeatCount() int
	BotName() string
	SlackIconEmoji() string
}

// Handler executes one fired trigger: first send or renotice, then
// decides whether to re-arm. Each non-terminal fire produces exactly
// one outbound send and one re-arm.
type Handler struct {
	chat     chat.Client
	cal      *calendar.Engine
	records  RecordSource
	timer    Timer
	settings Settings
	keywords func() []string
}

func NewHandler(chatClient chat.Client, cal *calendar.Engine, records RecordSource, timer Timer, settings Settings, keywords func() []string) *Handler {
	return &Handler{
		chat:     chatClient,
		cal:      cal,
		records:  records,
		timer:    timer,
		settings: settings,
		keywords: keywords,
	}
}

// HandleFire runs one transition for the instance. The instance is
// mutated in place; when no timer is re-armed its lifecycle ends here.
func (h *Handler) HandleFire(msg *domain.ScheduledMessage) error {
	if msg.SentMessageID == "" {
		return h.firstSend(msg)
	}
	return h.renotice(msg)
}

func (h *Handler) firstSend(msg *domain.ScheduledMessage) error {
	if msg.Disabled {
		return nil
	}

	text := h.chat.FormatMessage(msg.Channel, msg.SendTo, msg.Message)
	sentID, err := h.chat.SendMessage(msg.Channel, text, h.sendOptions(""))
	if err != nil {
		return fmt.Errorf("first send for record %d: %w", msg.RecordID, err)
	}
	msg.SentMessageID = sentID

	record, ok := h.records.RecordByID(msg.RecordID)
	if !ok || record.Disabled || record.Renotice == "" {
		return nil
	}
	msg.Renotice = record.Renotice
	msg.NotRenoticeTo = record.NotRenoticeTo

	recipients, err := h.resolveRecipients(msg.Channel, msg.SendTo)
	if err != nil {
		log.Printf("reminder: resolve recipients for record %d: %v", msg.RecordID, err)
	}
	msg.SendTo = Remaining(recipients, nil, msg.NotRenoticeTo)

	wait := msg.WaitingMinutes
	if wait <= 0 {
		wait = msg.TimeInterval
	}
	next := h.cal.NextSendTime(msg.Datetime, wait, msg.ExceptHolidays, nil)

	if h.chat.UsesTasks() && len(msg.SendTo) > 0 {
		taskIDs, err := h.chat.PostTasks(msg.Channel, msg.Renotice, msg.SendTo, next)
		if err != nil {
			log.Printf("reminder: post tasks for record %d: %v", msg.RecordID, err)
		}
		msg.TaskIDs = taskIDs
	}

	msg.Datetime = next
	msg.RepeatCount++
	return h.timer.Schedule(next, msg)
}

func (h *Handler) renotice(msg *domain.ScheduledMessage) error {
	record, ok := h.records.RecordByID(msg.RecordID)
	if !ok || record.Disabled || record.Renotice == "" {
		return nil
	}
	// sheet edits between fires take effect
	msg.Renotice = record.Renotice
	msg.NotRenoticeTo = record.NotRenoticeTo

	acked, err := h.acknowledged(msg)
	if err != nil {
		log.Printf("reminder: acknowledgement lookup for record %d: %v", msg.RecordID, err)
	}

	remaining := Remaining(msg.SendTo, acked, msg.NotRenoticeTo)
	if len(remaining) == 0 {
		return nil
	}
	msg.SendTo = remaining

	text := h.chat.FormatMessage(msg.Channel, remaining, msg.Renotice)
	if _, err := h.chat.SendMessage(msg.Channel, text, h.sendOptions(msg.SentMessageID)); err != nil {
		// transient: keep the instance alive for the next round
		log.Printf("reminder: renotice send for record %d: %v", msg.RecordID, err)
	}

	msg.RepeatCount++
	if max := h.settings.MaxRepeatCount(); max > 0 && msg.RepeatCount > max {
		return nil
	}

	gap := h.cal.DecayedInterval(msg.TimeInterval)
	msg.TimeInterval = gap
	next := h.cal.NextSendTime(msg.Datetime, gap, msg.ExceptHolidays, nil)

	if h.chat.UsesTasks() && len(msg.SendTo) > 0 {
		taskIDs, err := h.chat.PostTasks(msg.Channel, msg.Renotice, msg.SendTo, next)
		if err != nil {
			log.Printf("reminder: post tasks for record %d: %v", msg.RecordID, err)
		} else {
			msg.TaskIDs = taskIDs
		}
	}

	msg.Datetime = next
	return h.timer.Schedule(next, msg)
}

func (h *Handler) sendOptions(threadID string) chat.SendOptions {
	return chat.SendOptions{
		ThreadID:  threadID,
		IconEmoji: h.settings.SlackIconEmoji(),
		BotName:   h.settings.BotName(),
	}
}

// acknowledged collects the recipients who already completed: task
// assignees with a closed task on task platforms, thread repliers whose
// reply contains a completion keyword elsewhere.
func (h *Handler) acknowledged(msg *domain.ScheduledMessage) ([]string, error) {
	if h.chat.UsesTasks() {
		return h.chat.CompletedTaskAssignees(msg.Channel, msg.TaskIDs)
	}
	replies, err := h.chat.ThreadReplies(msg.Channel, msg.SentMessageID)
	if err != nil {
		return nil, err
	}
	return AckedFromReplies(replies, h.keywords()), nil
}

// resolveRecipients turns the raw recipient tokens into concrete user
// ids. Wildcard tokens expand to the live channel membership minus
// bots; other tokens are kept when they are channel members and looked
// up in user groups (id or handle, "subteam^" prefix stripped)
// otherwise.
func (h *Handler) resolveRecipients(channel string, sendTo []string) ([]string, error) {
	members, err := h.chat.ChannelMemberIDs(channel)
	if err != nil {
		return nil, err
	}

	for _, token := range sendTo {
		if chat.IsWildcard(token) {
			var results []string
			for _, id := range members {
				if !h.chat.IsBot(id) {
					results = append(results, id)
				}
			}
			return results, nil
		}
	}

	memberSet := map[string]bool{}
	for _, id := range members {
		memberSet[id] = true
	}

	var results []string
	var notFound []string
	seen := map[string]bool{}
	for _, token := range sendTo {
		if memberSet[token] {
			if !seen[token] {
				seen[token] = true
				results = append(results, token)
			}
		} else {
			notFound = append(notFound, strings.TrimPrefix(token, "subteam^"))
		}
	}

	if len(notFound) > 0 {
		groups, err := h.chat.UserGroups()
		if err != nil {
			return results, err
		}
		for _, ref := range notFound {
			for _, group := range groups {
				if group.ID != ref && group.Handle != ref {
					continue
				}
				groupMembers, err := h.chat.UserGroupMemberIDs(group.ID)
				if err != nil {
					log.Printf("reminder: user group %s members: %v", group.ID, err)
					break
				}
				for _, id := range groupMembers {
					if h.chat.IsBot(id) || seen[id] {
						continue
					}
					seen[id] = true
					results = append(results, id)
				}
				break
			}
		}
	}
	return results, nil
}

// HasKeyword reports whether text contains any completion keyword,
// case-insensitively.
func HasKeyword(text string, keywords []string) bool {
	lower := strings.ToLower(text)
	for _, keyword := range keywords {
		if keyword == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(keyword)) {
			return true
		}
	}
	return false
}

// AckedFromReplies collects the authors of replies containing a
// completion keyword.
func AckedFromReplies(replies []chat.Reply, keywords []string) []string {
	var results []string
	seen := map[string]bool{}
	for _, reply := range replies {
		if seen[reply.UserID] || !HasKeyword(reply.Text, keywords) {
			continue
		}
		seen[reply.UserID] = true
		results = append(results, reply.UserID)
	}
	return results
}

// Remaining subtracts acknowledged and excluded ids from sendTo,
// preserving order. A wildcard token in the exclusion list excludes
// everyone.
func Remaining(sendTo, acked, excluded []string) []string {
	drop := map[string]bool{}
	for _, id := range acked {
		drop[id] = true
	}
	for _, id := range excluded {
		if chat.IsWildcard(id) {
			return nil
		}
		drop[id] = true
	}
	var results []string
	for _, id := range sendTo {
		if !drop[id] {
			results = append(results, id)
		}
	}
	return results
}

// KeywordsFromTable reads the completion keywords from the first column
// of the completion_keywords table, header row skipped.
func KeywordsFromTable(src table.Source) []string {
	var results []string
	for row := 1; row < src.Rows(); row++ {
		keyword := strings.TrimSpace(src.Cell(row, 0).AsString())
		if keyword == "" {
			continue
		}
		results = append(results, keyword)
	}
	return results
}
