package chatwork

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/yukifm/remindbot/internal/chat"
)

const (
	BaseURL     = "https://api.chatwork.com/v2"
	maxAttempts = 10
)

// Client implements chat.Client against the Chatwork REST API.
// Acknowledgement is task-based: renotice targets are assigned tasks and
// a recipient acknowledges by closing theirs.
type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client

	rooms         []Room
	membersByRoom map[string][]Member
}

func NewClient(token string) (*Client, error) {
	if token == "" {
		return nil, fmt.Errorf("chatwork api token is required")
	}
	return &Client{
		token:   token,
		baseURL: BaseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		membersByRoom: map[string][]Member{},
	}, nil
}

// SetBaseURL points the client at a different endpoint, used by tests.
func (c *Client) SetBaseURL(u string) {
	c.baseURL = u
}

func (c *Client) UsesTasks() bool { return true }

// doRequest performs one authenticated form-encoded request.
func (c *Client) doRequest(method, path string, form url.Values) ([]byte, error) {
	var body io.Reader
	if method != http.MethodGet && form != nil {
		body = strings.NewReader(form.Encode())
	}

	target := c.baseURL + path
	if method == http.MethodGet && form != nil {
		target += "?" + form.Encode()
	}

	req, err := http.NewRequest(method, target, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-ChatWorkToken", c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("API error %d: %s", resp.StatusCode, string(respBody))
	}
	return respBody, nil
}

// retry runs fn up to maxAttempts times and keeps the last error.
func retry(what string, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := fn(); err != nil {
			lastErr = err
			log.Printf("chatwork: %s: %v", what, err)
			continue
		}
		return nil
	}
	return lastErr
}

func (c *Client) listRooms() []Room {
	if c.rooms != nil {
		return c.rooms
	}
	var rooms []Room
	err := retry("list rooms", func() error {
		data, err := c.doRequest(http.MethodGet, "/rooms", nil)
		if err != nil {
			return err
		}
		return json.Unmarshal(data, &rooms)
	})
	if err != nil {
		return nil
	}
	c.rooms = rooms
	return rooms
}

func (c *Client) roomMembers(roomID string) []Member {
	if members, ok := c.membersByRoom[roomID]; ok {
		return members
	}
	var members []Member
	err := retry("list members", func() error {
		data, err := c.doRequest(http.MethodGet, "/rooms/"+roomID+"/members", nil)
		if err != nil {
			return err
		}
		return json.Unmarshal(data, &members)
	})
	if err != nil {
		return nil
	}
	c.membersByRoom[roomID] = members
	return members
}

// ResolveChannelID maps a room name to its id. Numeric ids and unknown
// names pass through unchanged.
func (c *Client) ResolveChannelID(name string) string {
	for _, room := range c.listRooms() {
		if room.Name == name {
			return strconv.Itoa(room.RoomID)
		}
	}
	return name
}

func (c *Client) SendMessage(channel, text string, opts chat.SendOptions) (string, error) {
	form := url.Values{}
	form.Set("body", text)

	var messageID string
	err := retry("post message", func() error {
		data, err := c.doRequest(http.MethodPost, "/rooms/"+channel+"/messages", form)
		if err != nil {
			return err
		}
		var resp postMessageResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			return err
		}
		if resp.MessageID == "" {
			return fmt.Errorf("empty message_id in response")
		}
		messageID = resp.MessageID
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("post message to room %s: %w", channel, err)
	}
	return messageID, nil
}

// FormatMessage prefixes text with Chatwork mention syntax: [toall] for
// the wildcards, [To:id]Name for everyone else. Recipient tokens may be
// account ids, chatwork ids or display names; they are resolved against
// the room membership, and tokens of unknown members pass through
// without a display name.
func (c *Client) FormatMessage(channel string, sendTo []string, text string) string {
	members := c.roomMembers(channel)
	var b strings.Builder
	for i, to := range sendTo {
		if i > 0 {
			b.WriteString(" ")
		}
		if chat.IsWildcard(to) {
			b.WriteString("[toall]")
			continue
		}
		id, name := to, ""
		for _, m := range members {
			accountID := strconv.Itoa(m.AccountID)
			if accountID == to || m.Name == to || m.ChatworkID == to {
				id, name = accountID, m.Name
				break
			}
		}
		b.WriteString("[To:" + id + "]" + name)
	}
	mention := strings.TrimSpace(b.String())
	if mention != "" {
		mention += "\n"
	}
	return mention + text
}

func (c *Client) ChannelMemberIDs(channel string) ([]string, error) {
	members := c.roomMembers(channel)
	results := make([]string, 0, len(members))
	for _, m := range members {
		results = append(results, strconv.Itoa(m.AccountID))
	}
	return results, nil
}

// UserGroups: Chatwork has no user-group concept.
func (c *Client) UserGroups() ([]chat.UserGroup, error) {
	return nil, nil
}

func (c *Client) UserGroupMemberIDs(groupID string) ([]string, error) {
	return nil, nil
}

// IsBot: the Chatwork member API does not flag bot accounts.
func (c *Client) IsBot(userID string) bool {
	return false
}

func (c *Client) ThreadReplies(channel, threadID string) ([]chat.Reply, error) {
	return nil, nil
}

// PostTasks assigns one task per recipient with the given due time and
// returns the created task ids.
func (c *Client) PostTasks(channel, text string, assignees []string, due time.Time) ([]string, error) {
	if len(assignees) == 0 {
		return nil, nil
	}
	toIDs := make([]string, 0, len(assignees))
	for _, assignee := range assignees {
		toIDs = append(toIDs, c.ResolveMemberID(channel, assignee))
	}
	form := url.Values{}
	form.Set("body", text)
	form.Set("to_ids", strings.Join(toIDs, ","))
	if due.IsZero() {
		form.Set("limit_type", "none")
	} else {
		form.Set("limit", strconv.FormatInt(due.Unix(), 10))
		form.Set("limit_type", "time")
	}

	var taskIDs []string
	err := retry("post tasks", func() error {
		data, err := c.doRequest(http.MethodPost, "/rooms/"+channel+"/tasks", form)
		if err != nil {
			return err
		}
		var resp postTaskResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			return err
		}
		if len(resp.TaskIDs) == 0 {
			return fmt.Errorf("empty task_ids in response")
		}
		taskIDs = taskIDs[:0]
		for _, id := range resp.TaskIDs {
			taskIDs = append(taskIDs, strconv.Itoa(id))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("post tasks to room %s: %w", channel, err)
	}
	return taskIDs, nil
}

// CompletedTaskAssignees fetches each task and collects the assignees
// whose task is done. A task that cannot be fetched is treated as still
// open.
func (c *Client) CompletedTaskAssignees(channel string, taskIDs []string) ([]string, error) {
	var results []string
	for _, taskID := range taskIDs {
		var task Task
		err := retry("get task "+taskID, func() error {
			data, err := c.doRequest(http.MethodGet, "/rooms/"+channel+"/tasks/"+taskID, nil)
			if err != nil {
				return err
			}
			return json.Unmarshal(data, &task)
		})
		if err != nil {
			continue
		}
		if task.Status == "done" {
			results = append(results, strconv.Itoa(task.Account.AccountID))
		}
	}
	return results, nil
}

// ResolveMemberID maps a display name or chatwork id in a room to the
// account id. Unknown names pass through unchanged.
func (c *Client) ResolveMemberID(roomID, name string) string {
	for _, m := range c.roomMembers(roomID) {
		if m.Name == name || m.ChatworkID == name {
			return strconv.Itoa(m.AccountID)
		}
	}
	return name
}
