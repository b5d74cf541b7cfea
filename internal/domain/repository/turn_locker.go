package repository

import "context"

// TurnLocker выстраивает ходы одного номера телефона в очередь.
type TurnLocker interface {
	// Acquire ждёт блокировку не дольше, чем позволяет ctx. release нужно
	// вызвать ровно один раз.
	Acquire(ctx context.Context, key string) (release func(), err error)
}
