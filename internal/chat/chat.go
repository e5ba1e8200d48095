package chat

import (
	"strings"
	"time"
)

// SendOptions carries the optional per-message knobs.
type SendOptions struct {
	ThreadID  string // reply into this thread when set
	IconEmoji string
	BotName   string
}

// Reply is one response posted under a sent message.
type Reply struct {
	UserID string
	Text   string
}

// UserGroup is a platform user group a recipient token may refer to, by
// id or by handle.
type UserGroup struct {
	ID     string
	Handle string
}

// Client is the surface the reminder machinery needs from a chat
// platform. Slack acknowledges through thread replies, Chatwork through
// tasks; UsesTasks selects which path the reminder handler takes.
type Client interface {
	// ResolveChannelID maps a channel/room name to its id. Unknown
	// names are returned unchanged.
	ResolveChannelID(name string) string

	// SendMessage posts text and returns the platform message/thread
	// handle.
	SendMessage(channel, text string, opts SendOptions) (string, error)

	// FormatMessage prefixes text with the platform's mention syntax
	// for the given recipient tokens. The channel scopes member-name
	// resolution on platforms that mention by account id.
	FormatMessage(channel string, sendTo []string, text string) string

	ChannelMemberIDs(channel string) ([]string, error)
	UserGroups() ([]UserGroup, error)
	UserGroupMemberIDs(groupID string) ([]string, error)
	IsBot(userID string) bool

	// ThreadReplies lists responses under the message, excluding the
	// message itself. Task-based platforms return nil.
	ThreadReplies(channel, threadID string) ([]Reply, error)

	// PostTasks assigns a task per recipient with the given due time
	// and returns the task handles. Reply-based platforms return nil.
	PostTasks(channel, text string, assignees []string, due time.Time) ([]string, error)

	// CompletedTaskAssignees reports which assignees have closed their
	// task.
	CompletedTaskAssignees(channel string, taskIDs []string) ([]string, error)

	UsesTasks() bool
}

// IsWildcard reports whether a recipient token expands to the live
// channel membership at send time.
func IsWildcard(token string) bool {
	switch strings.ToLower(token) {
	case "channel", "here", "all", "toall":
		return true
	}
	return false
}
