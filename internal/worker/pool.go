package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"dutywatch-backend/internal/models"
	"dutywatch-backend/internal/repository"
	"dutywatch-backend/internal/services"
)

const (
	gapScanQueue = "queue:gap-scan"
	emailQueue   = "queue:notification-email"
)

// Pool drains the redis job queues: gap scans that fire when a duty session
// ends, and notification emails produced by the strike ledger and reminder
// scheduler. Both job types are idempotent, so at-least-once delivery with a
// SetNX lock per job is enough.
type Pool struct {
	redis       *redis.Client
	cadence     *services.CadenceService
	email       *services.EmailService
	userRepo    *repository.UserRepo
	suspendAt   int
	workerCount int
	stopChan    chan struct{}
}

func NewPool(
	redisClient *redis.Client,
	cadence *services.CadenceService,
	email *services.EmailService,
	userRepo *repository.UserRepo,
	suspendAt int,
	workerCount int,
) *Pool {
	return &Pool{
		redis:       redisClient,
		cadence:     cadence,
		email:       email,
		userRepo:    userRepo,
		suspendAt:   suspendAt,
		workerCount: workerCount,
		stopChan:    make(chan struct{}),
	}
}

func (p *Pool) Start() {
	queues := []string{gapScanQueue, emailQueue}

	for i := 0; i < p.workerCount; i++ {
		go p.worker(i, queues)
	}

	log.Printf("Started %d worker goroutines", p.workerCount)
}

func (p *Pool) Stop() {
	close(p.stopChan)
}

func (p *Pool) worker(id int, queues []string) {
	for {
		select {
		case <-p.stopChan:
			log.Printf("Worker %d shutting down", id)
			return
		default:
		}

		ctx := context.Background()

		// BLPOP with 30s timeout
		result, err := p.redis.BLPop(ctx, 30*time.Second, queues...).Result()
		if err != nil {
			continue // Timeout or error, retry
		}

		if len(result) < 2 {
			continue
		}

		queue, payload := result[0], result[1]

		var processErr error
		switch queue {
		case gapScanQueue:
			processErr = p.processGapScan(ctx, id, payload)
		case emailQueue:
			processErr = p.processEmail(ctx, id, payload)
		default:
			processErr = fmt.Errorf("unknown queue: %s", queue)
		}

		if processErr != nil {
			log.Printf("Worker %d: %v", id, processErr)
		}
	}
}

func (p *Pool) processGapScan(ctx context.Context, id int, payload string) error {
	var job models.GapScanJob
	if err := json.Unmarshal([]byte(payload), &job); err != nil {
		return fmt.Errorf("failed to parse gap-scan job: %w", err)
	}

	lockKey := fmt.Sprintf("job_lock:%s", job.ID.String())
	locked, err := p.redis.SetNX(ctx, lockKey, "1", 10*time.Minute).Result()
	if err != nil || !locked {
		return nil // Another worker has this job
	}
	defer p.redis.Del(ctx, lockKey)

	log.Printf("Worker %d: scanning session %s for missed logs", id, job.SessionID)

	candidates, recorded, err := p.cadence.CommitMissedLogs(ctx, job.SessionID)
	if err != nil {
		return fmt.Errorf("gap scan for session %s failed: %w", job.SessionID, err)
	}

	if len(candidates) > 0 {
		log.Printf("Worker %d: session %s had %d gap(s), %d strike(s) recorded",
			id, job.SessionID, len(candidates), recorded)
	}
	return nil
}

func (p *Pool) processEmail(ctx context.Context, id int, payload string) error {
	var job models.EmailJob
	if err := json.Unmarshal([]byte(payload), &job); err != nil {
		return fmt.Errorf("failed to parse email job: %w", err)
	}

	lockKey := fmt.Sprintf("job_lock:%s", job.ID.String())
	locked, err := p.redis.SetNX(ctx, lockKey, "1", 10*time.Minute).Result()
	if err != nil || !locked {
		return nil
	}
	defer p.redis.Del(ctx, lockKey)

	user, err := p.userRepo.GetByID(ctx, job.UserID)
	if err != nil {
		return fmt.Errorf("failed to load user %s for %s email: %w", job.UserID, job.Kind, err)
	}

	switch job.Kind {
	case "warning":
		err = p.email.SendWarningEmail(user.Email, user.FullName, job.StrikeCount, p.suspendAt)
	case "suspension":
		if job.Until == nil {
			return fmt.Errorf("suspension email for user %s has no end date", job.UserID)
		}
		err = p.email.SendSuspensionEmail(user.Email, user.FullName, *job.Until)
	case "strike_resolved":
		err = p.email.SendStrikeResolvedEmail(user.Email, user.FullName, job.Reason)
	case "duty_reminder":
		if job.ExpectedTime == nil {
			return fmt.Errorf("reminder email for user %s has no expected time", job.UserID)
		}
		err = p.email.SendDutyReminderEmail(user.Email, user.FullName, *job.ExpectedTime)
	default:
		return fmt.Errorf("unknown email kind: %s", job.Kind)
	}

	if err != nil {
		return fmt.Errorf("failed to send %s email to %s: %w", job.Kind, user.Email, err)
	}
	return nil
}
