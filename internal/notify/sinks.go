package notify

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/smarthostel/smarthostel/internal/model"
	"github.com/smarthostel/smarthostel/internal/store"
)

// StoreSink persists notifications in the database.
type StoreSink struct {
	DB *sql.DB
}

func (s StoreSink) Deliver(ctx context.Context, n *model.Notification) error {
	return store.CreateNotification(ctx, s.DB, n)
}

// ChannelPrefix prefixes the per-recipient Redis channel.
const ChannelPrefix = "notifications:"

// Channel returns the pub/sub channel of a recipient.
func Channel(recipient string) string {
	return ChannelPrefix + recipient
}

// RedisSink publishes notifications as JSON on the recipient's channel so
// that connected clients can be pushed updates.
type RedisSink struct {
	Client *redis.Client
}

func (s RedisSink) Deliver(ctx context.Context, n *model.Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encoding notification: %w", err)
	}
	if err := s.Client.Publish(ctx, Channel(n.Recipient), payload).Err(); err != nil {
		return fmt.Errorf("publishing notification: %w", err)
	}
	return nil
}
