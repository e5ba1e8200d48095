package settings

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/yukifm/remindbot/internal/table"
	"github.com/yukifm/remindbot/internal/timeutil"
)

// Store is a layered key-value settings lookup: a settings table (sheet
// override) first, then a static YAML file, then the process
// environment. Keys match case-insensitively; the first non-empty value
// wins.
type Store struct {
	overrides table.Source
	file      map[string]string
}

// New builds a Store. Both layers are optional: overrides may be nil and
// filePath may be empty.
func New(overrides table.Source, filePath string) (*Store, error) {
	s := &Store{overrides: overrides}
	if filePath != "" {
		data, err := os.ReadFile(filePath)
		if err != nil {
			return nil, fmt.Errorf("read settings file: %w", err)
		}
		raw := map[string]string{}
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse settings file: %w", err)
		}
		s.file = map[string]string{}
		for k, v := range raw {
			s.file[strings.ToUpper(k)] = v
		}
	}
	return s, nil
}

// Get looks key up across the layers. Missing keys yield "".
func (s *Store) Get(key string) string {
	key = strings.ToUpper(key)

	if s.overrides != nil {
		for row := 1; row < s.overrides.Rows(); row++ {
			name := strings.ToUpper(strings.TrimSpace(s.overrides.Cell(row, 0).AsString()))
			if name != key {
				continue
			}
			if v := strings.TrimSpace(s.overrides.Cell(row, 1).AsString()); v != "" {
				return v
			}
			break
		}
	}

	if v := s.file[key]; v != "" {
		return v
	}

	return os.Getenv(key)
}

func (s *Store) BotName() string {
	return s.Get("BOT_NAME")
}

func (s *Store) ActiveChatApp() string {
	return strings.ToLower(s.Get("ACTIVE_CHAT_APP"))
}

func (s *Store) SlackBotUserOAuthToken() string {
	return s.Get("SLACK_BOT_USER_OAUTH_TOKEN")
}

func (s *Store) SlackIconEmoji() string {
	return s.Get("SLACK_ICON_EMOJI")
}

func (s *Store) ChatworkAPIToken() string {
	return s.Get("CHATWORK_API_TOKEN")
}

// TimeInterval is the initial renotice gap in minutes. Defaults to one
// day, never less than one minute.
func (s *Store) TimeInterval() int {
	n, err := strconv.Atoi(s.Get("TIME_INTERVAL"))
	if err != nil {
		return 1440
	}
	if n < 1 {
		return 1
	}
	return n
}

// TimeIntervalDecay is the divisor applied to the gap after every
// renotice. 1 means the gap never shrinks.
func (s *Store) TimeIntervalDecay() float64 {
	f, err := strconv.ParseFloat(s.Get("TIME_INTERVAL_DECAY"), 64)
	if err != nil || f <= 0 {
		return 1
	}
	return f
}

// TimeIntervalMin floors the decayed gap. Defaults to TimeInterval and
// is clamped into [1, TimeInterval].
func (s *Store) TimeIntervalMin() int {
	interval := s.TimeInterval()
	n, err := strconv.Atoi(s.Get("TIME_INTERVAL_MIN"))
	if err != nil {
		return interval
	}
	if n < 1 {
		return 1
	}
	if n > interval {
		return interval
	}
	return n
}

// MaxRepeatCount caps the number of renotices. 0 means unlimited.
func (s *Store) MaxRepeatCount() int {
	n, err := strconv.Atoi(s.Get("MAX_REPEAT_COUNT"))
	if err != nil || n < 1 {
		return 0
	}
	return n
}

func (s *Store) OpeningTime() string {
	return timeutil.NormalizeTime(s.Get("OPENING_TIME"))
}

// ClosingTime never precedes OpeningTime.
func (s *Store) ClosingTime() string {
	opening := s.OpeningTime()
	closing := timeutil.NormalizeTime(s.Get("CLOSING_TIME"))
	if closing < opening {
		return opening
	}
	return closing
}

func (s *Store) Debug() bool {
	v := strings.ToLower(s.Get("DEBUG"))
	return v == "true" || v == "1" || v == "yes"
}
