package redis

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
)

// ErrLockHeld is returned when another request owns the key.
var ErrLockHeld = errors.New("lock held")

// MemberLock allows one in-flight redemption per member across API replicas.
// Acquisition does not wait: a second attempt fails with ErrLockHeld.
type MemberLock struct {
	client RedisClient
}

func NewMemberLock(client RedisClient) *MemberLock {
	return &MemberLock{client: client}
}

// TryLock returns the owner token to pass to Unlock.
func (l *MemberLock) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token := ulid.Make().String()
	ok, err := l.client.SetNX(ctx, key, token, ttl)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrLockHeld
	}
	return token, nil
}

// Unlock releases key only if token still owns it. An expired lock taken
// over by another request is left alone.
func (l *MemberLock) Unlock(ctx context.Context, key, token string) error {
	_, err := l.client.DelIfEqual(ctx, key, token)
	return err
}

func RedeemLockKey(userID string) string { return "lock:redeem:" + userID }
