package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"units-ledger-go/internal/store"
)

// accountLocks hands out per-account exclusive locks. Locks are always
// acquired in lexicographic owner-id order so two transfers touching the
// same pair of accounts in opposite directions cannot deadlock. Entries are
// reference counted and removed once nobody holds or waits on them.
type accountLocks struct {
	mu    sync.Mutex
	locks map[string]*accountLock
}

type accountLock struct {
	ownerId string
	ch      chan struct{}
	refs    int
}

func newAccountLocks() *accountLocks {
	return &accountLocks{locks: make(map[string]*accountLock)}
}

// acquire blocks until exclusive locks on all given owner ids are held, the
// shared timeout elapses (store.ErrLockTimeout) or the context is cancelled.
// The returned release function must be called exactly once.
func (l *accountLocks) acquire(ctx context.Context, timeout time.Duration, ownerIds ...string) (func(), error) {
	ids := append([]string(nil), ownerIds...)
	sort.Strings(ids)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var held []*accountLock
	releaseHeld := func() {
		for i := len(held) - 1; i >= 0; i-- {
			<-held[i].ch
			l.checkin(held[i])
		}
	}

	for i, id := range ids {
		if i > 0 && id == ids[i-1] {
			continue
		}

		entry := l.checkout(id)
		select {
		case entry.ch <- struct{}{}:
			held = append(held, entry)
		case <-timer.C:
			l.checkin(entry)
			releaseHeld()
			return nil, fmt.Errorf("%w: account %s held for over %v", store.ErrLockTimeout, id, timeout)
		case <-ctx.Done():
			l.checkin(entry)
			releaseHeld()
			return nil, fmt.Errorf("lock acquisition cancelled: %w", ctx.Err())
		}
	}

	var once sync.Once
	return func() { once.Do(releaseHeld) }, nil
}

func (l *accountLocks) checkout(ownerId string) *accountLock {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.locks[ownerId]
	if !ok {
		entry = &accountLock{ownerId: ownerId, ch: make(chan struct{}, 1)}
		l.locks[ownerId] = entry
	}
	entry.refs++
	return entry
}

func (l *accountLocks) checkin(entry *accountLock) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry.refs--
	if entry.refs == 0 {
		delete(l.locks, entry.ownerId)
	}
}
