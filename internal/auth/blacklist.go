package auth

import (
	"context"
	"time"

	"github.com/isdelr/tweeter-be/internal/models"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Blacklist stores revoked token IDs.
type Blacklist interface {
	Revoke(ctx context.Context, jti string, userID uint, expiresAt time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
	// PurgeExpired drops entries whose token has expired and returns how many were removed.
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// DBBlacklist keeps revoked tokens in the revoked_tokens table.
type DBBlacklist struct {
	db *gorm.DB
}

// NewDBBlacklist creates a blacklist backed by the database.
func NewDBBlacklist(db *gorm.DB) *DBBlacklist {
	return &DBBlacklist{db: db}
}

// Revoke records jti until expiresAt. Revoking twice is a no-op.
func (b *DBBlacklist) Revoke(ctx context.Context, jti string, userID uint, expiresAt time.Time) error {
	return b.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.RevokedToken{JTI: jti, UserID: userID, ExpiresAt: expiresAt}).Error
}

// IsRevoked reports whether jti was revoked.
func (b *DBBlacklist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	var n int64
	err := b.db.WithContext(ctx).Model(&models.RevokedToken{}).Where("jti = ?", jti).Count(&n).Error
	return n > 0, err
}

// PurgeExpired deletes rows whose token expired before now.
func (b *DBBlacklist) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res := b.db.WithContext(ctx).Where("expires_at < ?", now).Delete(&models.RevokedToken{})
	return res.RowsAffected, res.Error
}

const redisKeyPrefix = "revoked:"

// RedisBlacklist keeps revoked token IDs as keys that expire with the token.
type RedisBlacklist struct {
	client *redis.Client
}

// NewRedisBlacklist creates a blacklist on top of client.
func NewRedisBlacklist(client *redis.Client) *RedisBlacklist {
	return &RedisBlacklist{client: client}
}

// Connect verifies the server is reachable.
func (b *RedisBlacklist) Connect(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

// Revoke stores jti with a TTL matching the token's remaining lifetime.
func (b *RedisBlacklist) Revoke(ctx context.Context, jti string, userID uint, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	return b.client.Set(ctx, redisKeyPrefix+jti, userID, ttl).Err()
}

// IsRevoked reports whether a key for jti exists.
func (b *RedisBlacklist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := b.client.Exists(ctx, redisKeyPrefix+jti).Result()
	return n > 0, err
}

// PurgeExpired is a no-op: Redis evicts entries when their TTL lapses.
func (b *RedisBlacklist) PurgeExpired(context.Context, time.Time) (int64, error) {
	return 0, nil
}

// Close closes the underlying client.
func (b *RedisBlacklist) Close() error {
	return b.client.Close()
}
