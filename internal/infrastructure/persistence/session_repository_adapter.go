package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/civic-intake/internal/domain/entity"
	"github.com/ignatzorin/civic-intake/internal/domain/repository"
	"github.com/ignatzorin/civic-intake/internal/domain/valueobject"
	"github.com/ignatzorin/civic-intake/internal/pkg/apperror"
	"github.com/ignatzorin/civic-intake/internal/repository/common"
)

type SessionRepositoryAdapter struct {
	db *sqlx.DB
}

var _ repository.SessionRepository = (*SessionRepositoryAdapter)(nil)

func NewSessionRepositoryAdapter(db *sqlx.DB) *SessionRepositoryAdapter {
	return &SessionRepositoryAdapter{db: db}
}

const sessionColumns = `session_id, phone_number, status, complaint_text, coordinates,
	image_analysis, report_id, created_at, expires_at, updated_at`

func (r *SessionRepositoryAdapter) GetActive(ctx context.Context, phoneNumber string, now time.Time) (*entity.ComplaintSession, error) {
	var row sessionRow
	query := `SELECT ` + sessionColumns + `
		FROM complaint_sessions
		WHERE phone_number = $1 AND status = 'active' AND expires_at > $2
		ORDER BY created_at DESC
		LIMIT 1`
	if err := r.db.GetContext(ctx, &row, query, phoneNumber, now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeStore, "не удалось получить сессию")
	}
	return row.toEntity()
}

// Create сначала переводит в expired просроченную активную сессию того же номера:
// иначе её не пустит уникальный индекс по активным сессиям.
func (r *SessionRepositoryAdapter) Create(ctx context.Context, session *entity.ComplaintSession) error {
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `
			UPDATE complaint_sessions SET status = 'expired', updated_at = $2
			WHERE phone_number = $1 AND status = 'active' AND expires_at <= $2
		`, session.PhoneNumber, session.CreatedAt)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO complaint_sessions (session_id, phone_number, status, created_at, expires_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, session.SessionID, session.PhoneNumber, string(session.Status),
			session.CreatedAt, session.ExpiresAt, session.UpdatedAt)
		return err
	})
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Wrap(err, apperror.ErrCodeConflict, "у номера уже есть активная сессия")
		}
		return apperror.Wrap(err, apperror.ErrCodeStore, "не удалось создать сессию")
	}
	return nil
}

// Update заполняет только пустые поля. Если поле уже содержит другое значение,
// возвращается ErrFieldAlreadySet, а сохранённое значение остаётся прежним.
func (r *SessionRepositoryAdapter) Update(ctx context.Context, sessionID string, patch entity.SessionPatch) error {
	if patch.IsEmpty() {
		return nil
	}

	var stored struct {
		ComplaintText *string `db:"complaint_text"`
		Coordinates   *string `db:"coordinates"`
	}
	query := `
		UPDATE complaint_sessions SET
			complaint_text = COALESCE(NULLIF(complaint_text, ''), $2),
			coordinates = CASE
				WHEN COALESCE(complaint_text, '') = '' AND $2::text IS NULL THEN coordinates
				ELSE COALESCE(NULLIF(coordinates, ''), $3)
			END,
			updated_at = $4
		WHERE session_id = $1 AND status = 'active'
		RETURNING complaint_text, coordinates
	`
	err := r.db.GetContext(ctx, &stored, query, sessionID, patch.ComplaintText, patch.Coordinates, time.Now().UTC())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperror.ErrSessionNotActive
		}
		return apperror.Wrap(err, apperror.ErrCodeStore, "не удалось обновить сессию")
	}

	if patch.ComplaintText != nil && !sameValue(stored.ComplaintText, *patch.ComplaintText) {
		return apperror.ErrFieldAlreadySet
	}
	if patch.Coordinates != nil {
		if stored.Coordinates == nil {
			return apperror.ErrFieldOutOfOrder
		}
		if *stored.Coordinates != *patch.Coordinates {
			return apperror.ErrFieldAlreadySet
		}
	}
	return nil
}

func (r *SessionRepositoryAdapter) Close(ctx context.Context, sessionID string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE complaint_sessions SET status = 'closed', updated_at = $2
		WHERE session_id = $1 AND status = 'active'
	`, sessionID, time.Now().UTC())
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeStore, "не удалось закрыть сессию")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeStore, "не удалось закрыть сессию")
	}
	if affected == 0 {
		return apperror.ErrSessionNotActive
	}
	return nil
}

func (r *SessionRepositoryAdapter) CloseExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE complaint_sessions SET status = 'expired', updated_at = $1
		WHERE status = 'active' AND expires_at <= $1
	`, now)
	if err != nil {
		return 0, apperror.Wrap(err, apperror.ErrCodeStore, "не удалось закрыть истёкшие сессии")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, apperror.Wrap(err, apperror.ErrCodeStore, "не удалось закрыть истёкшие сессии")
	}
	return affected, nil
}

func sameValue(stored *string, want string) bool {
	return stored != nil && *stored == want
}

type sessionRow struct {
	SessionID     string    `db:"session_id"`
	PhoneNumber   string    `db:"phone_number"`
	Status        string    `db:"status"`
	ComplaintText *string   `db:"complaint_text"`
	Coordinates   *string   `db:"coordinates"`
	ImageAnalysis []byte    `db:"image_analysis"`
	ReportID      *string   `db:"report_id"`
	CreatedAt     time.Time `db:"created_at"`
	ExpiresAt     time.Time `db:"expires_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

func (r *sessionRow) toEntity() (*entity.ComplaintSession, error) {
	status, err := valueobject.NewSessionStatus(r.Status)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeStore, "некорректный статус сессии в базе")
	}

	s := &entity.ComplaintSession{
		SessionID:     r.SessionID,
		PhoneNumber:   r.PhoneNumber,
		Status:        status,
		ComplaintText: deref(r.ComplaintText),
		Coordinates:   deref(r.Coordinates),
		ReportID:      deref(r.ReportID),
		CreatedAt:     r.CreatedAt,
		ExpiresAt:     r.ExpiresAt,
		UpdatedAt:     r.UpdatedAt,
	}

	if len(r.ImageAnalysis) > 0 {
		var c valueobject.Classification
		if err := json.Unmarshal(r.ImageAnalysis, &c); err != nil {
			return nil, apperror.Wrap(err, apperror.ErrCodeStore, "не удалось разобрать классификацию")
		}
		s.ImageAnalysis = &c
	}
	return s, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
