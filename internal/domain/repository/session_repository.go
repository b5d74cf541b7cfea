package repository

import (
	"context"
	"time"

	"github.com/ignatzorin/civic-intake/internal/domain/entity"
)

type SessionRepository interface {
	// GetActive возвращает активную и не истёкшую на момент now сессию или nil.
	GetActive(ctx context.Context, phoneNumber string, now time.Time) (*entity.ComplaintSession, error)
	Create(ctx context.Context, session *entity.ComplaintSession) error
	// Update атомарно применяет патч. Уже заполненные поля не перезаписываются.
	Update(ctx context.Context, sessionID string, patch entity.SessionPatch) error
	Close(ctx context.Context, sessionID string) error
	// CloseExpired переводит истёкшие активные сессии в статус expired.
	CloseExpired(ctx context.Context, now time.Time) (int64, error)
}
