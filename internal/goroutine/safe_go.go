package goroutine

import (
	"context"
	"runtime/debug"
	"sync"

	"github.com/sirupsen/logrus"
)

// Logger интерфейс для логирования ошибок
type Logger interface {
	Errorf(format string, args ...interface{})
}

// RecoveryHandler обрабатывает panic в горутинах
type RecoveryHandler struct {
	logger Logger
	wg     sync.WaitGroup
}

// NewRecoveryHandler создает новый обработчик
func NewRecoveryHandler(logger Logger) *RecoveryHandler {
	return &RecoveryHandler{logger: logger}
}

// SafeGo запускает горутину с обработкой panic
func (rh *RecoveryHandler) SafeGo(fn func()) {
	rh.wg.Add(1)
	go func() {
		defer rh.wg.Done()
		defer rh.handlePanic()
		fn()
	}()
}

// SafeGoWithContext запускает горутину с контекстом и обработкой panic
func (rh *RecoveryHandler) SafeGoWithContext(ctx context.Context, fn func(context.Context)) {
	rh.wg.Add(1)
	go func() {
		defer rh.wg.Done()
		defer rh.handlePanic()
		fn(ctx)
	}()
}

// Wait ждёт завершения всех запущенных горутин, например при остановке сервера.
func (rh *RecoveryHandler) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		rh.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (rh *RecoveryHandler) handlePanic() {
	if r := recover(); r != nil {
		rh.logger.Errorf("panic в горутине: %v\nstack trace:\n%s", r, debug.Stack())
	}
}

// DefaultRecoveryHandler - глобальный обработчик, пишет в logrus
var DefaultRecoveryHandler = NewRecoveryHandler(logrus.StandardLogger())

// SetLogger меняет логгер глобального обработчика. Вызывается при старте,
// до запуска горутин.
func SetLogger(logger Logger) {
	DefaultRecoveryHandler.logger = logger
}

// SafeGo - упрощенная функция для запуска безопасной горутины
func SafeGo(fn func()) {
	DefaultRecoveryHandler.SafeGo(fn)
}

// SafeGoWithContext - упрощенная функция для запуска безопасной горутины с контекстом
func SafeGoWithContext(ctx context.Context, fn func(context.Context)) {
	DefaultRecoveryHandler.SafeGoWithContext(ctx, fn)
}

// Wait ждёт горутины глобального обработчика.
func Wait(ctx context.Context) error {
	return DefaultRecoveryHandler.Wait(ctx)
}
