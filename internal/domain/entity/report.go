package entity

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ignatzorin/civic-intake/internal/domain/valueobject"
	"github.com/ignatzorin/civic-intake/internal/pkg/apperror"
)

const reportIDPrefix = "GOV"

// ComplaintReport представляет оформленную жалобу. После создания меняется только статус,
// и только операторами.
type ComplaintReport struct {
	ReportID       string
	SessionID      string
	PhoneNumber    string
	Description    string
	Coordinates    string
	Category       valueobject.Category
	Priority       valueobject.Priority
	Department     valueobject.Department
	ResolutionDays int
	ImagePath      string
	Status         valueobject.ReportStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewReportID формирует номер вида GOV20250101120000A1B2C3: время для сортировки
// и случайный хвост против совпадений.
func NewReportID(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return reportIDPrefix + now.Format("20060102150405") + suffix
}

func NewComplaintReport(reportID string, session *ComplaintSession, c valueobject.Classification, imagePath string, now time.Time) (*ComplaintReport, error) {
	if reportID == "" {
		return nil, apperror.New(apperror.ErrCodeValidation, "номер жалобы обязателен")
	}
	if session.ComplaintText == "" || session.Coordinates == "" {
		return nil, apperror.ErrFieldOutOfOrder
	}
	if !c.IsComplete() {
		return nil, apperror.New(apperror.ErrCodeValidation, "классификация заполнена не полностью")
	}
	return &ComplaintReport{
		ReportID:       reportID,
		SessionID:      session.SessionID,
		PhoneNumber:    session.PhoneNumber,
		Description:    session.ComplaintText,
		Coordinates:    session.Coordinates,
		Category:       c.Category,
		Priority:       c.Priority,
		Department:     c.Department,
		ResolutionDays: c.ResolutionDays,
		ImagePath:      imagePath,
		Status:         valueobject.ReportStatusSubmitted,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

func (r *ComplaintReport) Classification() valueobject.Classification {
	return valueobject.Classification{
		Category:       r.Category,
		Priority:       r.Priority,
		Department:     r.Department,
		ResolutionDays: r.ResolutionDays,
	}
}

func (r *ComplaintReport) Location() valueobject.Location {
	return valueobject.ParseLocation(r.Coordinates)
}
