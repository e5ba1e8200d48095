package chatwork

import (
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/yukifm/remindbot/internal/chat"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewClient("test-token")
	if err != nil {
		t.Fatal(err)
	}
	c.SetBaseURL(srv.URL)
	return c
}

func TestSendMessage(t *testing.T) {
	var gotToken, gotBody string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/rooms/12/messages" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		gotToken = r.Header.Get("X-ChatWorkToken")
		r.ParseForm()
		gotBody = r.PostForm.Get("body")
		w.Write([]byte(`{"message_id": "1234"}`))
	}))

	id, err := c.SendMessage("12", "hello", chat.SendOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if id != "1234" {
		t.Errorf("message id = %q, want 1234", id)
	}
	if gotToken != "test-token" {
		t.Errorf("token header = %q", gotToken)
	}
	if gotBody != "hello" {
		t.Errorf("body = %q", gotBody)
	}
}

func TestPostTasksAndCompletion(t *testing.T) {
	due := time.Date(2023, 2, 7, 10, 0, 0, 0, time.UTC)
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/rooms/12/members":
			w.Write([]byte(`[{"account_id": 100, "name": "Suzuki", "chatwork_id": "suzuki"},
				{"account_id": 200, "name": "Tanaka", "chatwork_id": "tanaka"}]`))
		case "/rooms/12/tasks":
			r.ParseForm()
			if got := r.PostForm.Get("to_ids"); got != "100,200" {
				t.Errorf("to_ids = %q", got)
			}
			if got := r.PostForm.Get("limit_type"); got != "time" {
				t.Errorf("limit_type = %q", got)
			}
			w.Write([]byte(`{"task_ids": [31, 32]}`))
		case "/rooms/12/tasks/31":
			w.Write([]byte(`{"task_id": 31, "status": "done", "account": {"account_id": 100}}`))
		case "/rooms/12/tasks/32":
			w.Write([]byte(`{"task_id": 32, "status": "open", "account": {"account_id": 200}}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))

	taskIDs, err := c.PostTasks("12", "still waiting", []string{"Suzuki", "200"}, due)
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"31", "32"}; !reflect.DeepEqual(taskIDs, want) {
		t.Errorf("task ids = %v, want %v", taskIDs, want)
	}

	done, err := c.CompletedTaskAssignees("12", taskIDs)
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"100"}; !reflect.DeepEqual(done, want) {
		t.Errorf("completed = %v, want %v", done, want)
	}
}

func TestFormatMessage(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rooms/12/members" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`[{"account_id": 100, "name": "Suzuki", "chatwork_id": "suzuki"},
			{"account_id": 200, "name": "Tanaka", "chatwork_id": "tanaka"}]`))
	}))
	cases := []struct {
		sendTo []string
		text   string
		want   string
	}{
		{[]string{"toall"}, "hi", "[toall]\nhi"},
		{[]string{"100", "Tanaka"}, "hi", "[To:100]Suzuki [To:200]Tanaka\nhi"},
		{[]string{"suzuki"}, "hi", "[To:100]Suzuki\nhi"},
		{[]string{"999"}, "hi", "[To:999]\nhi"},
		{nil, "hi", "hi"},
	}
	for _, tc := range cases {
		if got := c.FormatMessage("12", tc.sendTo, tc.text); got != tc.want {
			t.Errorf("FormatMessage(%v) = %q, want %q", tc.sendTo, got, tc.want)
		}
	}
}
