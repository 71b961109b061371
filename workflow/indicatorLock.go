package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// IndicatorLocker serializes pipeline runs per indicator code.
//
// The in-process lock always applies. The Redis lock is best-effort across
// instances: when Redis is missing or the lock cannot be obtained the run proceeds,
// and the unique open-auto index plus the MySQL advisory lock keep the store correct.
type IndicatorLocker struct {
	Redis  *redislock.Client
	TTL    time.Duration
	Logger *logrus.Logger

	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	sem  chan struct{}
	refs int
}

func NewIndicatorLocker(redis *redislock.Client, ttl time.Duration, logger *logrus.Logger) *IndicatorLocker {
	return &IndicatorLocker{
		Redis:  redis,
		TTL:    ttl,
		Logger: logger,
		locks:  map[string]*keyedLock{},
	}
}

// Lock blocks until code is free or ctx is done. The returned func releases the lock.
func (l *IndicatorLocker) Lock(ctx context.Context, code string) (func(), error) {
	k := l.acquireRef(code)
	select {
	case k.sem <- struct{}{}:
	case <-ctx.Done():
		l.releaseRef(code, k)
		return nil, ctx.Err()
	}

	remote := l.obtainRemote(ctx, code)
	return func() {
		if remote != nil {
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := remote.Release(releaseCtx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
				l.warn(code, "failed to release redis lock: "+err.Error())
			}
			cancel()
		}
		<-k.sem
		l.releaseRef(code, k)
	}, nil
}

func (l *IndicatorLocker) acquireRef(code string) *keyedLock {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.locks == nil {
		l.locks = map[string]*keyedLock{}
	}
	k := l.locks[code]
	if k == nil {
		k = &keyedLock{sem: make(chan struct{}, 1)}
		l.locks[code] = k
	}
	k.refs++
	return k
}

func (l *IndicatorLocker) releaseRef(code string, k *keyedLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	k.refs--
	if k.refs == 0 {
		delete(l.locks, code)
	}
}

func (l *IndicatorLocker) obtainRemote(ctx context.Context, code string) *redislock.Lock {
	if l.Redis == nil {
		return nil
	}
	ttl := l.TTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	backoff := 100 * time.Millisecond
	retries := int(ttl / backoff)
	lock, err := l.Redis.Obtain(ctx, redisLockKey(code), ttl, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(backoff), retries),
	})
	if err != nil {
		if errors.Is(err, redislock.ErrNotObtained) {
			l.warn(code, "could not obtain redis lock; proceeding without redis lock")
		} else {
			l.warn(code, "error obtaining redis lock; proceeding without redis lock: "+err.Error())
		}
		return nil
	}
	return lock
}

func (l *IndicatorLocker) warn(code string, msg string) {
	if l.Logger == nil {
		return
	}
	l.Logger.WithFields(logrus.Fields{
		"field":          "IndicatorLocker",
		"indicator_code": code,
	}).Warn(msg)
}

func redisLockKey(code string) string {
	return "lock:indicator:" + code
}

func advisoryLockName(code string) string {
	return fmt.Sprintf("indicator:%s", code)
}

// AcquireIndicatorAdvisoryLock takes a MySQL advisory lock for code.
// NOTE: GET_LOCK is connection-scoped, so call it on the transaction that does the insert.
func AcquireIndicatorAdvisoryLock(tx *gorm.DB, code string, timeoutSeconds int) error {
	var ok int
	if err := tx.Raw("SELECT GET_LOCK(?, ?)", advisoryLockName(code), timeoutSeconds).Scan(&ok).Error; err != nil {
		return err
	}
	if ok != 1 {
		return fmt.Errorf("could not acquire advisory lock for indicator_code=%s", code)
	}
	return nil
}

func ReleaseIndicatorAdvisoryLock(tx *gorm.DB, code string) {
	var ok int
	_ = tx.Raw("SELECT RELEASE_LOCK(?)", advisoryLockName(code)).Scan(&ok).Error
}
