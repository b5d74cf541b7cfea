package intake

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/civic-intake/internal/domain/entity"
	"github.com/ignatzorin/civic-intake/internal/domain/repository"
	"github.com/ignatzorin/civic-intake/internal/domain/valueobject"
	"github.com/ignatzorin/civic-intake/internal/pkg/apperror"
)

// cleanupTimeout ограничивает удаление фото после неудачной записи жалобы.
const cleanupTimeout = 5 * time.Second

// Finalizer сохраняет фото и жалобу и закрывает сессию.
type Finalizer struct {
	reports repository.ReportRepository
	media   repository.MediaStore
	events  repository.EventPublisher
	now     func() time.Time
	log     logrus.FieldLogger
}

var _ ReportFinalizer = (*Finalizer)(nil)

func NewFinalizer(
	reports repository.ReportRepository,
	media repository.MediaStore,
	events repository.EventPublisher,
	log logrus.FieldLogger,
) *Finalizer {
	return &Finalizer{
		reports: reports,
		media:   media,
		events:  events,
		now:     func() time.Time { return time.Now().UTC() },
		log:     log,
	}
}

// Finalize сначала сохраняет фото под номером жалобы, затем одной транзакцией
// записывает жалобу и закрывает сессию. Если запись не удалась, фото удаляется.
// Переданная сессия не меняется.
func (f *Finalizer) Finalize(ctx context.Context, session *entity.ComplaintSession, c valueobject.Classification, image []byte) (*entity.ComplaintReport, error) {
	if session.Status != valueobject.SessionStatusActive {
		return nil, apperror.ErrSessionNotActive
	}
	if session.State() != valueobject.StateAwaitingPhoto {
		return nil, apperror.ErrFieldOutOfOrder
	}
	if !c.IsComplete() {
		return nil, apperror.New(apperror.ErrCodeValidation, "классификация заполнена не полностью")
	}

	now := f.now()
	reportID := entity.NewReportID(now)
	log := f.log.WithFields(logrus.Fields{
		"session_id": session.SessionID,
		"report_id":  reportID,
	})

	imagePath, err := f.media.Save(ctx, reportID, image)
	if err != nil {
		return nil, err
	}

	report, err := entity.NewComplaintReport(reportID, session, c, imagePath, now)
	if err != nil {
		f.discardImage(ctx, imagePath, log)
		return nil, err
	}

	if _, err := f.reports.Create(ctx, report); err != nil {
		f.discardImage(ctx, imagePath, log)
		return nil, err
	}

	if err := f.events.PublishReportSubmitted(ctx, report); err != nil {
		log.WithError(err).Warn("событие о новой жалобе не отправлено")
	}

	log.WithFields(logrus.Fields{
		"category":   report.Category,
		"priority":   report.Priority,
		"department": report.Department,
	}).Info("жалоба зарегистрирована")

	return report, nil
}

func (f *Finalizer) discardImage(ctx context.Context, path string, log logrus.FieldLogger) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	if err := f.media.Delete(ctx, path); err != nil {
		log.WithError(err).WithField("image_path", path).Warn("не удалось удалить фото неоформленной жалобы")
	}
}
