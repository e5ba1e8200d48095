package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/yukifm/remindbot/internal/calendar"
	"github.com/yukifm/remindbot/internal/domain"
	"github.com/yukifm/remindbot/internal/trigger"
)

// Planner expands the schedule table into the instances bound for one
// date. Implemented by the schedule expander.
type Planner interface {
	ForDate(target time.Time, calendarIDs []string) []domain.ScheduledMessage
}

// TriggerStore is the persistence the scheduler drives: register future
// fires, load the due ones, drop them once handled.
type TriggerStore interface {
	Schedule(at time.Time, msg *domain.ScheduledMessage) error
	Due(now time.Time) ([]trigger.Fired, error)
	Consume(id int64) error
}

// FireHandler runs one fired instance. Implemented by the reminder
// handler.
type FireHandler interface {
	HandleFire(msg *domain.ScheduledMessage) error
}

type Scheduler struct {
	cron      *cron.Cron
	loc       *time.Location
	planner   Planner
	cal       *calendar.Engine
	store     TriggerStore
	handler   FireHandler
	dailySpec string
	now       func() time.Time
}

func New(loc *time.Location, planner Planner, cal *calendar.Engine, store TriggerStore, handler FireHandler, dailySpec string) *Scheduler {
	return &Scheduler{
		cron:      cron.New(cron.WithLocation(loc)),
		loc:       loc,
		planner:   planner,
		cal:       cal,
		store:     store,
		handler:   handler,
		dailySpec: dailySpec,
		now:       func() time.Time { return time.Now().In(loc) },
	}
}

// SetNow overrides the clock, for tests.
func (s *Scheduler) SetNow(now func() time.Time) {
	s.now = now
}

func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.dailySpec, s.PlanTomorrow); err != nil {
		return fmt.Errorf("add daily planning job: %w", err)
	}

	// pump due triggers every minute
	if _, err := s.cron.AddFunc("* * * * *", s.PumpTriggers); err != nil {
		return fmt.Errorf("add trigger pump: %w", err)
	}

	s.cron.Start()
	log.Printf("Scheduler started (TZ: %s, daily spec: %q)", s.loc, s.dailySpec)

	<-ctx.Done()
	return nil
}

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Println("Scheduler stopped")
}

// PlanTomorrow expands the schedule table for the next calendar day and
// registers a trigger per instance. Instances whose holiday-adjusted
// send time is already in the past are dropped.
func (s *Scheduler) PlanTomorrow() {
	now := s.now()
	target := calendar.Tomorrow(now)

	instances := s.planner.ForDate(target, nil)
	registered := 0
	for i := range instances {
		msg := &instances[i]
		if msg.Disabled {
			continue
		}
		at := s.cal.NextSendTime(msg.Datetime, 0, msg.ExceptHolidays, nil)
		if !at.After(now) {
			continue
		}
		msg.Datetime = at
		if err := s.store.Schedule(at, msg); err != nil {
			log.Printf("Error registering trigger for record %d: %v", msg.RecordID, err)
			continue
		}
		registered++
	}
	log.Printf("Planned %s: %d of %d instances registered",
		target.Format("2006-01-02"), registered, len(instances))
}

// PumpTriggers fires every due trigger. Each trigger is consumed before
// handling so a handler crash cannot replay it; one failing instance
// never blocks the others.
func (s *Scheduler) PumpTriggers() {
	fired, err := s.store.Due(s.now())
	if err != nil {
		log.Printf("Error loading due triggers: %v", err)
		return
	}

	for _, f := range fired {
		if err := s.store.Consume(f.ID); err != nil {
			log.Printf("Error consuming trigger %d: %v", f.ID, err)
			continue
		}
		if f.Msg == nil {
			log.Printf("Dropping trigger %d with unreadable payload", f.ID)
			continue
		}
		if err := s.handler.HandleFire(f.Msg); err != nil {
			log.Printf("Error handling fire for record %d: %v", f.Msg.RecordID, err)
		}
	}
}
