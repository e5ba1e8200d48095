package chatwork

// Room is one Chatwork room (channel equivalent).
type Room struct {
	RoomID int    `json:"room_id"`
	Name   string `json:"name"`
	Type   string `json:"type"`
	Role   string `json:"role"`
}

// Member is one account in a room.
type Member struct {
	AccountID        int    `json:"account_id"`
	Role             string `json:"role"`
	Name             string `json:"name"`
	ChatworkID       string `json:"chatwork_id"`
	OrganizationID   int    `json:"organization_id"`
	OrganizationName string `json:"organization_name"`
}

// Account identifies the poster or assignee inside message/task
// payloads.
type Account struct {
	AccountID int    `json:"account_id"`
	Name      string `json:"name"`
}

// Task is one task in a room. Status is "open" or "done"; Account is
// the assignee.
type Task struct {
	TaskID            int     `json:"task_id"`
	Account           Account `json:"account"`
	AssignedByAccount Account `json:"assigned_by_account"`
	MessageID         string  `json:"message_id"`
	Body              string  `json:"body"`
	LimitTime         int64   `json:"limit_time"`
	Status            string  `json:"status"`
	LimitType         string  `json:"limit_type"`
}

type postMessageResponse struct {
	MessageID string `json:"message_id"`
}

type postTaskResponse struct {
	TaskIDs []int `json:"task_ids"`
}
