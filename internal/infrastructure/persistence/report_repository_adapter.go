package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/civic-intake/internal/domain/entity"
	"github.com/ignatzorin/civic-intake/internal/domain/repository"
	"github.com/ignatzorin/civic-intake/internal/pkg/apperror"
	"github.com/ignatzorin/civic-intake/internal/repository/common"
)

type ReportRepositoryAdapter struct {
	db *sqlx.DB
}

var _ repository.ReportRepository = (*ReportRepositoryAdapter)(nil)

func NewReportRepositoryAdapter(db *sqlx.DB) *ReportRepositoryAdapter {
	return &ReportRepositoryAdapter{db: db}
}

// Create сохраняет жалобу и закрывает её сессию одной транзакцией. Сессия должна
// быть активной и ждать фото, иначе транзакция откатывается.
func (r *ReportRepositoryAdapter) Create(ctx context.Context, report *entity.ComplaintReport) (string, error) {
	analysis, err := json.Marshal(report.Classification())
	if err != nil {
		return "", apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось сериализовать классификацию")
	}

	err = common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO complaint_reports (
				report_id, session_id, phone_number, description, coordinates, category,
				priority, department, resolution_days, image_path, status, created_at, updated_at
			) VALUES (
				:report_id, :session_id, :phone_number, :description, :coordinates, :category,
				:priority, :department, :resolution_days, :image_path, :status, :created_at, :updated_at
			)
		`, newReportRow(report))
		if err != nil {
			if isUniqueViolation(err) {
				return apperror.ErrReportAlreadyExists
			}
			return apperror.Wrap(err, apperror.ErrCodeStore, "не удалось сохранить жалобу")
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE complaint_sessions SET
				status = 'closed', report_id = $2, image_analysis = $3, updated_at = $4
			WHERE session_id = $1 AND status = 'active'
				AND COALESCE(coordinates, '') <> '' AND report_id IS NULL
		`, report.SessionID, report.ReportID, analysis, report.CreatedAt)
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
	})
	if err != nil {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			return "", err
		}
		return "", apperror.Wrap(err, apperror.ErrCodeStore, "не удалось сохранить жалобу")
	}
	return report.ReportID, nil
}

type reportRow struct {
	ReportID       string    `db:"report_id"`
	SessionID      string    `db:"session_id"`
	PhoneNumber    string    `db:"phone_number"`
	Description    string    `db:"description"`
	Coordinates    string    `db:"coordinates"`
	Category       string    `db:"category"`
	Priority       string    `db:"priority"`
	Department     string    `db:"department"`
	ResolutionDays int       `db:"resolution_days"`
	ImagePath      string    `db:"image_path"`
	Status         string    `db:"status"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

func newReportRow(r *entity.ComplaintReport) reportRow {
	return reportRow{
		ReportID:       r.ReportID,
		SessionID:      r.SessionID,
		PhoneNumber:    r.PhoneNumber,
		Description:    r.Description,
		Coordinates:    r.Coordinates,
		Category:       string(r.Category),
		Priority:       string(r.Priority),
		Department:     string(r.Department),
		ResolutionDays: r.ResolutionDays,
		ImagePath:      r.ImagePath,
		Status:         string(r.Status),
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}
