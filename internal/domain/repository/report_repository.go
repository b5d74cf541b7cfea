package repository

import (
	"context"

	"github.com/ignatzorin/civic-intake/internal/domain/entity"
)

// ReportRepository записывает оформленные жалобы. Статусы после оформления меняют
// операторы в своих системах, сервис только создаёт жалобы.
type ReportRepository interface {
	// Create сохраняет жалобу и в той же транзакции закрывает сессию
	// report.SessionID, записывая в неё номер жалобы и классификацию.
	Create(ctx context.Context, report *entity.ComplaintReport) (string, error)
}
