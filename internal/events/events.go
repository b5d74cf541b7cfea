package events

import (
	"time"

	"github.com/ignatzorin/civic-intake/internal/domain/entity"
	"github.com/ignatzorin/civic-intake/internal/domain/valueobject"
)

// SubjectReportSubmitted задаёт тему NATS, в которую уходит каждая оформленная жалоба.
const SubjectReportSubmitted = "complaint.report.submitted"

// ReportSubmitted описывает событие для внешних систем (диспетчерская, уведомления).
type ReportSubmitted struct {
	ReportID       string                 `json:"report_id"`
	SessionID      string                 `json:"session_id"`
	PhoneNumber    string                 `json:"phone_number"`
	Description    string                 `json:"description"`
	Location       valueobject.Location   `json:"location"`
	Category       valueobject.Category   `json:"category"`
	Priority       valueobject.Priority   `json:"priority"`
	Department     valueobject.Department `json:"department"`
	ResolutionDays int                    `json:"resolution_days"`
	ImagePath      string                 `json:"image_path"`
	SubmittedAt    time.Time              `json:"submitted_at"`
}

func NewReportSubmitted(report *entity.ComplaintReport) ReportSubmitted {
	return ReportSubmitted{
		ReportID:       report.ReportID,
		SessionID:      report.SessionID,
		PhoneNumber:    report.PhoneNumber,
		Description:    report.Description,
		Location:       report.Location(),
		Category:       report.Category,
		Priority:       report.Priority,
		Department:     report.Department,
		ResolutionDays: report.ResolutionDays,
		ImagePath:      report.ImagePath,
		SubmittedAt:    report.CreatedAt,
	}
}
