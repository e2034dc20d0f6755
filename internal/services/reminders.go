package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"dutywatch-backend/internal/repository"
)

const reminderPollInterval = 5 * time.Minute

// ReminderScheduler periodically nudges members whose hourly check-in has
// come due. It only sends notifications; missed-log strikes stay with the
// retroactive gap scan.
type ReminderScheduler struct {
	sessions *repository.DutySessionRepo
	notifier Notifier
	redis    *redis.Client
	clock    Clock
	stopChan chan struct{}
}

func NewReminderScheduler(sessions *repository.DutySessionRepo, notifier Notifier, redisClient *redis.Client, clock Clock) *ReminderScheduler {
	return &ReminderScheduler{
		sessions: sessions,
		notifier: notifier,
		redis:    redisClient,
		clock:    clock,
		stopChan: make(chan struct{}),
	}
}

func (s *ReminderScheduler) Start() {
	go s.loop()
	log.Printf("Reminder scheduler started")
}

func (s *ReminderScheduler) Stop() {
	select {
	case <-s.stopChan:
		return
	default:
		close(s.stopChan)
	}
}

func (s *ReminderScheduler) loop() {
	s.Tick(context.Background())

	ticker := time.NewTicker(reminderPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.Tick(context.Background())
		}
	}
}

// Tick runs one reminder pass. Exposed so an external scheduler can drive it
// instead of the in-process ticker.
func (s *ReminderScheduler) Tick(ctx context.Context) {
	active, err := s.sessions.ListActiveWithLastLog(ctx)
	if err != nil {
		log.Printf("reminders: failed to list active sessions: %v", err)
		return
	}

	now := s.clock.Now()
	for _, info := range active {
		expected := nextExpectedLog(info.StartedAt, info.LastLogAt)
		if !reminderDue(now, expected) {
			continue
		}

		// One reminder per expected check-in, across scheduler instances.
		key := fmt.Sprintf("reminder_sent:%s:%d", info.SessionID, expected.Unix())
		sent, err := s.redis.SetNX(ctx, key, "1", 2*time.Hour).Result()
		if err != nil {
			log.Printf("reminders: failed to mark reminder for session %s: %v", info.SessionID, err)
			continue
		}
		if !sent {
			continue
		}

		s.notifier.NotifyUser(ctx, info.UserID, "duty_reminder", ReminderNotice{
			SessionID:  info.SessionID,
			ExpectedAt: expected,
		})
	}
}

func nextExpectedLog(startedAt time.Time, lastLogAt *time.Time) time.Time {
	if lastLogAt != nil {
		return lastLogAt.Add(nominalCadence)
	}
	return startedAt.Add(nominalCadence)
}

func reminderDue(now, expected time.Time) bool {
	return !now.Before(expected)
}
