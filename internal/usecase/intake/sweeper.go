package intake

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/civic-intake/internal/domain/repository"
)

const DefaultSweepInterval = 15 * time.Minute

// SessionSweeper периодически переводит истёкшие активные сессии в expired.
// На обработку ходов не влияет: срок проверяется и при чтении сессии.
type SessionSweeper struct {
	sessions repository.SessionRepository
	interval time.Duration
	now      func() time.Time
	log      logrus.FieldLogger
}

func NewSessionSweeper(sessions repository.SessionRepository, interval time.Duration, log logrus.FieldLogger) *SessionSweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &SessionSweeper{
		sessions: sessions,
		interval: interval,
		now:      func() time.Time { return time.Now().UTC() },
		log:      log,
	}
}

// Run работает до отмены ctx.
func (s *SessionSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *SessionSweeper) SweepOnce(ctx context.Context) (int64, error) {
	return s.sessions.CloseExpired(ctx, s.now())
}

func (s *SessionSweeper) sweep(ctx context.Context) {
	n, err := s.SweepOnce(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.log.WithError(err).Error("не удалось закрыть истёкшие сессии")
		}
		return
	}
	if n > 0 {
		s.log.WithField("count", n).Info("истёкшие сессии закрыты")
	}
}
