package lock

import (
	"context"
	"sync"

	"github.com/ignatzorin/civic-intake/internal/domain/repository"
	"github.com/ignatzorin/civic-intake/internal/pkg/apperror"
)

// MemoryLocker блокирует ходы внутри одного процесса. Подходит, когда
// сервис запущен в одном экземпляре.
type MemoryLocker struct {
	mu    sync.Mutex
	locks map[string]*memoryEntry
}

type memoryEntry struct {
	slot chan struct{}
	refs int
}

var _ repository.TurnLocker = (*MemoryLocker)(nil)

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{locks: make(map[string]*memoryEntry)}
}

func (l *MemoryLocker) Acquire(ctx context.Context, key string) (func(), error) {
	e := l.ref(key)

	select {
	case e.slot <- struct{}{}:
	case <-ctx.Done():
		l.unref(key, e)
		return nil, apperror.ErrTurnInProgress
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.slot
			l.unref(key, e)
		})
	}, nil
}

func (l *MemoryLocker) ref(key string) *memoryEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.locks[key]
	if !ok {
		e = &memoryEntry{slot: make(chan struct{}, 1)}
		l.locks[key] = e
	}
	e.refs++
	return e
}

// unref удаляет запись, когда её больше никто не ждёт, чтобы карта не росла
// вместе с числом номеров.
func (l *MemoryLocker) unref(key string, e *memoryEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e.refs--
	if e.refs == 0 {
		delete(l.locks, key)
	}
}
