package inflight

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/shiplabel/internal/config"
)

const keyIssuance = "shiplabel:issuance:%s"

const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

const releaseTimeout = 2 * time.Second

// Guard marks transactions with an issuance in progress using a Redis key
// that expires after the configured TTL. Only the holder's token can release it.
type Guard struct {
	client *redis.Client
	script *redis.Script
	cfg    *config.ShippingConfigHolder
}

func NewGuard(client *redis.Client, cfg *config.ShippingConfigHolder) *Guard {
	if client == nil {
		return nil
	}
	if cfg == nil {
		cfg = config.NewStaticShippingConfigHolder(config.DefaultShippingConfig())
	}
	return &Guard{
		client: client,
		script: redis.NewScript(releaseScript),
		cfg:    cfg,
	}
}

// Acquire sets the issuance key if absent. When acquired is false another
// caller holds the key and release is a no-op.
func (g *Guard) Acquire(ctx context.Context, transactionID string) (func(), bool, error) {
	noop := func() {}
	if g == nil || g.client == nil {
		return noop, false, errors.New("issuance guard not configured")
	}
	key, err := issuanceKey(transactionID)
	if err != nil {
		return noop, false, err
	}
	ttl := g.cfg.Get().IssuanceGuard.TTL
	if ttl <= 0 {
		return noop, false, errors.New("issuance guard ttl must be positive")
	}

	token := uuid.NewString()
	ok, err := g.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return noop, false, err
	}
	if !ok {
		return noop, false, nil
	}

	release := func() {
		// released even when the request context is already done
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
		defer cancel()
		_ = g.script.Run(releaseCtx, g.client, []string{key}, token).Err()
	}
	return release, true, nil
}

// InFlight reports whether an unexpired issuance key exists for the transaction.
func (g *Guard) InFlight(ctx context.Context, transactionID string) (bool, error) {
	if g == nil || g.client == nil {
		return false, errors.New("issuance guard not configured")
	}
	key, err := issuanceKey(transactionID)
	if err != nil {
		return false, err
	}
	n, err := g.client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func issuanceKey(transactionID string) (string, error) {
	transactionID = strings.TrimSpace(transactionID)
	if transactionID == "" {
		return "", errors.New("issuance guard key is empty")
	}
	return fmt.Sprintf(keyIssuance, transactionID), nil
}
