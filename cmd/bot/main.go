package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/yukifm/remindbot/config"
	"github.com/yukifm/remindbot/internal/calendar"
	"github.com/yukifm/remindbot/internal/chat"
	"github.com/yukifm/remindbot/internal/clients/caldav"
	"github.com/yukifm/remindbot/internal/clients/chatwork"
	"github.com/yukifm/remindbot/internal/clients/slackchat"
	"github.com/yukifm/remindbot/internal/reminder"
	"github.com/yukifm/remindbot/internal/schedule"
	"github.com/yukifm/remindbot/internal/scheduler"
	"github.com/yukifm/remindbot/internal/settings"
	"github.com/yukifm/remindbot/internal/table"
	"github.com/yukifm/remindbot/internal/trigger"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	tables := table.NewDir(cfg.DataDir)

	mainTable, err := tables.Open("schedule")
	if err != nil {
		log.Fatalf("Failed to open schedule table: %v", err)
	}
	holidayTable, err := tables.Open("holiday_calendars")
	if err != nil {
		log.Fatalf("Failed to open holiday_calendars table: %v", err)
	}

	// optional tables
	var overrides table.Source
	if t, err := tables.Open("settings"); err == nil {
		overrides = t
	}

	settingsPath := cfg.SettingsPath
	if _, err := os.Stat(settingsPath); err != nil {
		settingsPath = ""
	}
	cfgStore, err := settings.New(overrides, settingsPath)
	if err != nil {
		log.Fatalf("Failed to load settings: %v", err)
	}

	holidays := caldav.NewClient(cfg.CalDAVURL, cfg.CalDAVUsername, cfg.CalDAVPassword)
	if !holidays.IsConfigured() {
		log.Printf("CalDAV is not configured; every day counts as a working day")
	}
	calendarIDs := calendar.IDsFromTable(holidayTable)
	engine := calendar.New(holidays, cfgStore, calendarIDs, cfg.Timezone)

	var chatClient chat.Client
	switch app := cfgStore.ActiveChatApp(); app {
	case "chatwork":
		chatClient, err = chatwork.NewClient(cfgStore.ChatworkAPIToken())
	default:
		chatClient, err = slackchat.NewClient(cfgStore.SlackBotUserOAuthToken())
	}
	if err != nil {
		log.Fatalf("Failed to init chat client: %v", err)
	}

	expander := schedule.NewExpander(mainTable, engine, cfgStore, chatClient)

	store, err := trigger.New(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to init trigger store: %v", err)
	}
	defer store.Close()

	// re-read per fire so sheet edits take effect between renotices
	keywords := func() []string {
		t, err := tables.Open("completion_keywords")
		if err != nil {
			log.Printf("Failed to open completion_keywords table: %v", err)
			return nil
		}
		return reminder.KeywordsFromTable(t)
	}

	if cfgStore.Debug() && holidays.IsConfigured() {
		if cals, err := holidays.DiscoverCalendars(); err != nil {
			log.Printf("Failed to discover CalDAV calendars: %v", err)
		} else {
			for _, cal := range cals {
				log.Printf("CalDAV calendar %s (%s)", cal.ID, cal.DisplayName)
			}
		}
	}

	handler := reminder.NewHandler(chatClient, engine, expander, store, cfgStore, keywords)
	sched := scheduler.New(cfg.Timezone, expander, engine, store, handler, cfg.DailySpec)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := sched.Start(ctx); err != nil {
			log.Printf("Scheduler error: %v", err)
		}
	}()

	log.Println("remindbot started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")
	cancel()
	sched.Stop()
	log.Println("remindbot stopped")
}
