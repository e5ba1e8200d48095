package slackchat

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/slack-go/slack"

	"github.com/yukifm/remindbot/internal/chat"
)

const (
	pageLimit   = 100
	maxAttempts = 10
)

// Client implements chat.Client against the Slack Web API.
type Client struct {
	api *slack.Client

	channels []slack.Channel
	botByID  map[string]bool
}

func NewClient(token string, opts ...slack.Option) (*Client, error) {
	if token == "" {
		return nil, fmt.Errorf("slack bot token is required")
	}
	return &Client{
		api:     slack.New(token, opts...),
		botByID: map[string]bool{},
	}, nil
}

func (c *Client) UsesTasks() bool { return false }

// ResolveChannelID maps a channel name to its conversation id. Ids and
// unknown names pass through unchanged.
func (c *Client) ResolveChannelID(name string) string {
	channels, err := c.listChannels()
	if err != nil {
		log.Printf("slack: list channels: %v", err)
		return name
	}
	for _, ch := range channels {
		if ch.Name == name {
			return ch.ID
		}
	}
	return name
}

func (c *Client) listChannels() ([]slack.Channel, error) {
	if c.channels != nil {
		return c.channels, nil
	}
	var results []slack.Channel
	cursor := ""
	for attempt := 0; attempt < maxAttempts; attempt++ {
		channels, next, err := c.api.GetConversations(&slack.GetConversationsParameters{
			Cursor:          cursor,
			Limit:           pageLimit,
			ExcludeArchived: true,
			Types:           []string{"public_channel", "private_channel", "mpim", "im"},
		})
		if err != nil {
			log.Printf("slack: conversations.list: %v", err)
			continue
		}
		results = append(results, channels...)
		if next == "" {
			break
		}
		cursor = next
	}
	c.channels = results
	return results, nil
}

func (c *Client) SendMessage(channel, text string, opts chat.SendOptions) (string, error) {
	msgOpts := []slack.MsgOption{slack.MsgOptionText(text, false)}
	if opts.ThreadID != "" {
		msgOpts = append(msgOpts, slack.MsgOptionTS(opts.ThreadID))
	}
	if opts.BotName != "" {
		msgOpts = append(msgOpts, slack.MsgOptionUsername(opts.BotName))
	}
	if opts.IconEmoji != "" {
		msgOpts = append(msgOpts, slack.MsgOptionIconEmoji(opts.IconEmoji))
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		_, ts, err := c.api.PostMessage(channel, msgOpts...)
		if err == nil {
			return ts, nil
		}
		lastErr = err
		log.Printf("slack: chat.postMessage: %v", err)
	}
	return "", fmt.Errorf("post message to %s: %w", channel, lastErr)
}

// FormatMessage prefixes text with Slack mention syntax: <!channel> and
// <!here> for the wildcards, <@id> for everyone else. Slack mentions
// carry the id alone, so the channel is unused.
func (c *Client) FormatMessage(channel string, sendTo []string, text string) string {
	var b strings.Builder
	for i, member := range sendTo {
		if i > 0 {
			b.WriteString(" ")
		}
		switch strings.ToLower(member) {
		case "channel", "here":
			b.WriteString("<!" + strings.ToLower(member) + ">")
		case "all", "toall":
			b.WriteString("<!channel>")
		default:
			b.WriteString("<@" + member + ">")
		}
	}
	mention := strings.TrimSpace(b.String())
	if mention != "" {
		mention += "\n"
	}
	return mention + text
}

func (c *Client) ChannelMemberIDs(channel string) ([]string, error) {
	var results []string
	seen := map[string]bool{}
	cursor := ""
	for attempt := 0; attempt < maxAttempts; attempt++ {
		members, next, err := c.api.GetUsersInConversation(&slack.GetUsersInConversationParameters{
			ChannelID: channel,
			Cursor:    cursor,
			Limit:     pageLimit,
		})
		if err != nil {
			log.Printf("slack: conversations.members: %v", err)
			continue
		}
		for _, id := range members {
			if !seen[id] {
				seen[id] = true
				results = append(results, id)
			}
		}
		if next == "" {
			break
		}
		cursor = next
	}
	return results, nil
}

func (c *Client) UserGroups() ([]chat.UserGroup, error) {
	var results []chat.UserGroup
	for attempt := 0; attempt < maxAttempts; attempt++ {
		groups, err := c.api.GetUserGroups()
		if err != nil {
			log.Printf("slack: usergroups.list: %v", err)
			continue
		}
		for _, g := range groups {
			results = append(results, chat.UserGroup{ID: g.ID, Handle: g.Handle})
		}
		break
	}
	return results, nil
}

func (c *Client) UserGroupMemberIDs(groupID string) ([]string, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		members, err := c.api.GetUserGroupMembers(groupID)
		if err != nil {
			log.Printf("slack: usergroups.users.list: %v", err)
			continue
		}
		return members, nil
	}
	return nil, nil
}

func (c *Client) IsBot(userID string) bool {
	if isBot, ok := c.botByID[userID]; ok {
		return isBot
	}
	user, err := c.api.GetUserInfo(userID)
	if err != nil {
		log.Printf("slack: users.info %s: %v", userID, err)
		return false
	}
	c.botByID[userID] = user.IsBot
	return user.IsBot
}

// ThreadReplies lists the responses under threadID, excluding the
// thread root itself.
func (c *Client) ThreadReplies(channel, threadID string) ([]chat.Reply, error) {
	var results []chat.Reply
	seen := map[string]bool{}
	cursor := ""
	for attempt := 0; attempt < maxAttempts; attempt++ {
		msgs, hasMore, next, err := c.api.GetConversationReplies(&slack.GetConversationRepliesParameters{
			ChannelID: channel,
			Timestamp: threadID,
			Cursor:    cursor,
			Limit:     pageLimit,
		})
		if err != nil {
			log.Printf("slack: conversations.replies: %v", err)
			continue
		}
		for _, m := range msgs {
			if m.Timestamp == threadID || seen[m.Timestamp] {
				continue
			}
			seen[m.Timestamp] = true
			results = append(results, chat.Reply{UserID: m.User, Text: m.Text})
		}
		if !hasMore || next == "" {
			break
		}
		cursor = next
	}
	return results, nil
}

// PostTasks is a no-op: Slack acknowledgement is reply-based.
func (c *Client) PostTasks(channel, text string, assignees []string, due time.Time) ([]string, error) {
	return nil, nil
}

func (c *Client) CompletedTaskAssignees(channel string, taskIDs []string) ([]string, error) {
	return nil, nil
}
