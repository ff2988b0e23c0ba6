// internal/repository/redis/preview_arena.go
package redis

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"scholarship-workers/internal/models"
	"scholarship-workers/internal/repository"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "scholarship:preview:"

// Each slot is a hash {id, state, payload}. The scripts keep claim, fill and discard atomic per slot.
var (
	claimScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
  return 0
end
redis.call('HSET', KEYS[1], 'id', ARGV[1], 'state', 'pending')
redis.call('PEXPIRE', KEYS[1], ARGV[2])
return 1
`)

	fillScript = redis.NewScript(`
if redis.call('HGET', KEYS[1], 'id') ~= ARGV[1] then
  return 0
end
redis.call('HSET', KEYS[1], 'state', 'ready', 'payload', ARGV[2])
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return 1
`)

	discardScript = redis.NewScript(`
if redis.call('HGET', KEYS[1], 'id') == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`)
)

// PreviewArena stores previews in Redis so every worker instance sees the same slots.
type PreviewArena struct {
	client redis.UniversalClient
}

var _ repository.PreviewArena = (*PreviewArena)(nil)

func NewPreviewArena(client redis.UniversalClient) *PreviewArena {
	return &PreviewArena{client: client}
}

func slotKey(applicationID string) string {
	return keyPrefix + applicationID
}

func (a *PreviewArena) Claim(ctx context.Context, applicationID, previewID string, ttl time.Duration) (bool, error) {
	n, err := claimScript.Run(ctx, a.client, []string{slotKey(applicationID)}, previewID, ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("claim preview slot: %w", err)
	}
	return n == 1, nil
}

func (a *PreviewArena) Fill(ctx context.Context, preview *models.Preview, ttl time.Duration) (bool, error) {
	payload, err := json.Marshal(preview)
	if err != nil {
		return false, fmt.Errorf("encode preview: %w", err)
	}
	n, err := fillScript.Run(ctx, a.client, []string{slotKey(preview.ApplicationID)},
		preview.ID, string(payload), ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("fill preview slot: %w", err)
	}
	return n == 1, nil
}

func (a *PreviewArena) Get(ctx context.Context, applicationID string) (*models.Preview, error) {
	vals, err := a.client.HMGet(ctx, slotKey(applicationID), "state", "payload").Result()
	if err != nil {
		if stderrors.Is(err, redis.Nil) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("read preview slot: %w", err)
	}
	state, _ := vals[0].(string)
	payload, _ := vals[1].(string)
	if state != "ready" || payload == "" {
		return nil, repository.ErrNotFound
	}

	var preview models.Preview
	if err := json.Unmarshal([]byte(payload), &preview); err != nil {
		return nil, fmt.Errorf("decode preview: %w", err)
	}
	return &preview, nil
}

func (a *PreviewArena) Discard(ctx context.Context, applicationID, previewID string) error {
	if err := discardScript.Run(ctx, a.client, []string{slotKey(applicationID)}, previewID).Err(); err != nil {
		return fmt.Errorf("discard preview slot: %w", err)
	}
	return nil
}
