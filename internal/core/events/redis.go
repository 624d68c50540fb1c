package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Channel is the pub/sub channel display clients subscribe to.
const Channel = "cipherpanel.events"

type message struct {
	Event  string `json:"event"`
	UserID string `json:"userId"`
	TS     int64  `json:"ts"`
}

// RedisNotifier publishes lifecycle events over redis pub/sub. Publish is
// best effort: a down broker must never fail the state transition that
// already committed.
type RedisNotifier struct {
	rdb *redis.Client
	log *zap.Logger
}

func NewRedisNotifier(rdb *redis.Client, log *zap.Logger) *RedisNotifier {
	return &RedisNotifier{rdb: rdb, log: log}
}

func (n *RedisNotifier) Publish(ctx context.Context, event, userID string) {
	b, _ := json.Marshal(message{Event: event, UserID: userID, TS: time.Now().Unix()})
	if err := n.rdb.Publish(ctx, Channel, b).Err(); err != nil {
		n.log.Warn("event publish failed", zap.String("event", event), zap.Error(err))
	}
}
