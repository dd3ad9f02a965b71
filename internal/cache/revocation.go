package cache

import (
	"context"
	"fmt"
	"time"
)

// revokedPrefix is the Redis key prefix for revoked token IDs.
const revokedPrefix = "revoked:jti:"

func revokedKey(tokenID string) string {
	return revokedPrefix + tokenID
}

// revocationTTL returns how long a revocation entry must live. A token that
// has already expired needs no entry, reported as ok=false.
func revocationTTL(expiresAt, now time.Time) (time.Duration, bool) {
	ttl := expiresAt.Sub(now)
	if ttl <= 0 {
		return 0, false
	}
	// Round up so the entry never disappears before the token expires.
	return ttl.Truncate(time.Second) + time.Second, true
}

// RevokeToken records tokenID as revoked until expiresAt.
// Revoking an already expired token is a no-op.
func (c *Cache) RevokeToken(ctx context.Context, tokenID string, expiresAt time.Time) error {
	if tokenID == "" {
		return fmt.Errorf("revoke token: empty token ID")
	}

	ttl, ok := revocationTTL(expiresAt, time.Now())
	if !ok {
		return nil
	}

	if err := c.client.Set(ctx, revokedKey(tokenID), expiresAt.Unix(), ttl).Err(); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// IsTokenRevoked reports whether tokenID has been revoked.
func (c *Cache) IsTokenRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := c.client.Exists(ctx, revokedKey(tokenID)).Result()
	if err != nil {
		return false, fmt.Errorf("check token revocation: %w", err)
	}
	return n > 0, nil
}
