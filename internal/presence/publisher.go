package presence

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Channel is the Redis pub/sub channel room lifecycle events go to.
const Channel = "relay:rooms"

// Event is one room lifecycle notification. External dashboards consume
// these; the relay itself never reads them back.
type Event struct {
	Event      string    `json:"event"`
	Code       string    `json:"code"`
	SessionID  string    `json:"sessionId,omitempty"`
	InstanceID string    `json:"instanceId"`
	Timestamp  time.Time `json:"timestamp"`
}

// Publisher pushes room lifecycle events to Redis. A nil Publisher is a
// valid no-op, so deployments without Redis skip presence entirely.
type Publisher struct {
	rdb        *redis.Client
	instanceID string
	log        *zap.Logger
}

// NewPublisher connects to Redis at addr. Returns nil when addr is
// empty.
func NewPublisher(addr string, log *zap.Logger) *Publisher {
	if addr == "" {
		return nil
	}
	return &Publisher{
		rdb:        redis.NewClient(&redis.Options{Addr: addr}),
		instanceID: uuid.NewString(),
		log:        log,
	}
}

// InstanceID identifies this relay process in published events.
func (p *Publisher) InstanceID() string {
	if p == nil {
		return ""
	}
	return p.instanceID
}

// RoomEvent implements the relay event sink. Publish failures are
// logged and otherwise ignored: presence is advisory, never
// load-bearing for room state.
func (p *Publisher) RoomEvent(event, code, sessionID string) {
	if p == nil {
		return
	}
	data, err := json.Marshal(Event{
		Event:      event,
		Code:       code,
		SessionID:  sessionID,
		InstanceID: p.instanceID,
		Timestamp:  time.Now(),
	})
	if err != nil {
		return
	}
	if err := p.rdb.Publish(context.Background(), Channel, data).Err(); err != nil {
		p.log.Warn("presence publish failed",
			zap.String("event", event),
			zap.String("code", code),
			zap.Error(err))
	}
}

func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	return p.rdb.Close()
}
