package usecase

import "sync"

// chatLocks keeps at most one generation in flight per chat id. Locks are
// in-process: each chat is owned by one orchestrator instance.
type chatLocks struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func newChatLocks() *chatLocks {
	return &chatLocks{
		held: make(map[string]struct{}),
	}
}

// tryAcquire claims the chat id. It never blocks: a held id reports ok=false
// and the caller rejects the request instead of queueing it.
func (l *chatLocks) tryAcquire(chatID string) (release func(), ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, taken := l.held[chatID]; taken {
		return nil, false
	}
	l.held[chatID] = struct{}{}
	return func() {
		l.mu.Lock()
		delete(l.held, chatID)
		l.mu.Unlock()
	}, true
}
