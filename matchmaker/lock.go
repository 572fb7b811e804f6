package matchmaker

import (
	"context"
	"fmt"
	"sync"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/client/v3/concurrency"
)

// stakeLocks wraps one etcd session + mutex per stake level, so a
// matchmaker run for a stake that another replica is already running
// blocks until that run finishes rather than racing it. The Queue
// Manager does not take these locks; it relies on Redis scripts and
// pipelines for its own operations.
type stakeLocks struct {
	client *clientv3.Client
	mu     sync.Mutex
	byKey  map[int64]*concurrency.Session
}

func newStakeLocks(client *clientv3.Client) *stakeLocks {
	return &stakeLocks{client: client, byKey: make(map[int64]*concurrency.Session)}
}

func (l *stakeLocks) acquire(ctx context.Context, stake int64) (*concurrency.Mutex, error) {
	if l.client == nil {
		return nil, nil
	}
	sess, err := l.sessionFor(stake)
	if err != nil {
		return nil, err
	}
	m := concurrency.NewMutex(sess, fmt.Sprintf("/tonk/matchmaker/stake/%d", stake))
	if err := m.Lock(ctx); err != nil {
		return nil, fmt.Errorf("locking stake %d: %w", stake, err)
	}
	return m, nil
}

func (l *stakeLocks) sessionFor(stake int64) (*concurrency.Session, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if sess, ok := l.byKey[stake]; ok {
		return sess, nil
	}
	sess, err := concurrency.NewSession(l.client)
	if err != nil {
		return nil, fmt.Errorf("opening etcd session for stake %d: %w", stake, err)
	}
	l.byKey[stake] = sess
	return sess, nil
}

func release(ctx context.Context, m *concurrency.Mutex) {
	if m == nil {
		return
	}
	_ = m.Unlock(ctx)
}
