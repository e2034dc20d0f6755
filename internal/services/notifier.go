package services

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"dutywatch-backend/internal/models"
)

// Notifier is fire-and-forget from the engine's perspective: delivery
// failures are logged here and never fail the triggering operation.
type Notifier interface {
	NotifyUser(ctx context.Context, userID uuid.UUID, kind string, payload interface{})
	NotifyRole(ctx context.Context, role string, kind string, payload interface{})
}

// Notification payloads

type WarningNotice struct {
	UserID        uuid.UUID `json:"user_id"`
	ActiveStrikes int       `json:"active_strikes"`
	SuspensionAt  int       `json:"suspension_at"`
}

type SuspensionNotice struct {
	UserID        uuid.UUID `json:"user_id"`
	Until         time.Time `json:"until"`
	ActiveStrikes int       `json:"active_strikes"`
}

type StrikeResolvedNotice struct {
	StrikeID   uuid.UUID `json:"strike_id"`
	Reason     string    `json:"reason"`
	ResolvedAt time.Time `json:"resolved_at"`
}

type ReminderNotice struct {
	SessionID  uuid.UUID `json:"session_id"`
	ExpectedAt time.Time `json:"expected_at"`
}

const (
	emailQueueKey   = "queue:notification-email"
	gapScanQueueKey = "queue:gap-scan"
)

// RedisNotifier fans out over two channels: live pub/sub messages for the
// websocket hub, and an email job pushed onto the delivery queue.
type RedisNotifier struct {
	pubsub *redis.Client
	queue  *redis.Client
}

func NewRedisNotifier(pubsub, queue *redis.Client) *RedisNotifier {
	return &RedisNotifier{pubsub: pubsub, queue: queue}
}

func (n *RedisNotifier) NotifyUser(ctx context.Context, userID uuid.UUID, kind string, payload interface{}) {
	n.publish(ctx, "notify:user:"+userID.String(), kind, payload)
	n.enqueueEmail(ctx, userID, kind, payload)
}

func (n *RedisNotifier) NotifyRole(ctx context.Context, role string, kind string, payload interface{}) {
	n.publish(ctx, "notify:role:"+role, kind, payload)
}

func (n *RedisNotifier) publish(ctx context.Context, channel, kind string, payload interface{}) {
	data, err := json.Marshal(models.WSMessage{Type: kind, Payload: payload})
	if err != nil {
		log.Printf("notifier: failed to marshal %s message: %v", kind, err)
		return
	}
	if err := n.pubsub.Publish(ctx, channel, data).Err(); err != nil {
		log.Printf("notifier: failed to publish to %s: %v", channel, err)
	}
}

func (n *RedisNotifier) enqueueEmail(ctx context.Context, userID uuid.UUID, kind string, payload interface{}) {
	job := models.EmailJob{ID: uuid.New(), UserID: userID, Kind: kind}

	switch p := payload.(type) {
	case WarningNotice:
		job.StrikeCount = p.ActiveStrikes
	case SuspensionNotice:
		until := p.Until
		job.Until = &until
		job.StrikeCount = p.ActiveStrikes
	case StrikeResolvedNotice:
		job.Reason = p.Reason
	case ReminderNotice:
		expected := p.ExpectedAt
		job.ExpectedTime = &expected
	}

	data, err := json.Marshal(job)
	if err != nil {
		log.Printf("notifier: failed to marshal email job: %v", err)
		return
	}
	if err := n.queue.LPush(ctx, emailQueueKey, data).Err(); err != nil {
		log.Printf("notifier: failed to enqueue %s email for user %s: %v", kind, userID, err)
	}
}

// JobQueue feeds the worker pool.
type JobQueue struct {
	queue *redis.Client
}

func NewJobQueue(queue *redis.Client) *JobQueue {
	return &JobQueue{queue: queue}
}

func (q *JobQueue) EnqueueGapScan(ctx context.Context, sessionID uuid.UUID) error {
	data, err := json.Marshal(models.GapScanJob{ID: uuid.New(), SessionID: sessionID})
	if err != nil {
		return err
	}
	return q.queue.LPush(ctx, gapScanQueueKey, data).Err()
}
