package repository

import (
	"context"

	"github.com/ignatzorin/civic-intake/internal/domain/entity"
)

type EventPublisher interface {
	PublishReportSubmitted(ctx context.Context, report *entity.ComplaintReport) error
}
