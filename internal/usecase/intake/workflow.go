package intake

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/civic-intake/internal/domain/entity"
	"github.com/ignatzorin/civic-intake/internal/domain/repository"
	"github.com/ignatzorin/civic-intake/internal/domain/valueobject"
)

// ReportFinalizer оформляет жалобу из сессии, ожидающей фото.
type ReportFinalizer interface {
	Finalize(ctx context.Context, session *entity.ComplaintSession, c valueobject.Classification, image []byte) (*entity.ComplaintReport, error)
}

// TurnResult содержит итог одного хода.
type TurnResult struct {
	// Session хранит изменённую копию сессии. Исходная сессия не меняется.
	Session *entity.ComplaintSession
	Reply   string
	// Report заполнен только на ходе, который оформил жалобу.
	Report *entity.ComplaintReport
	// Fallback означает, что ответ взят из шаблона, потому что модель не ответила.
	Fallback bool
}

// Workflow ведёт диалог как конечный автомат: описание, место, фото. Шаг определяется
// заполненными полями сессии при каждом ходе.
type Workflow struct {
	oracle    repository.Oracle
	finalizer ReportFinalizer
	log       logrus.FieldLogger
}

func NewWorkflow(oracle repository.Oracle, finalizer ReportFinalizer, log logrus.FieldLogger) *Workflow {
	return &Workflow{
		oracle:    oracle,
		finalizer: finalizer,
		log:       log,
	}
}

// Apply обрабатывает одно сообщение. Ошибки модели и оформления превращаются в
// ответы пользователю: сессия при этом остаётся на прежнем шаге.
func (w *Workflow) Apply(ctx context.Context, session *entity.ComplaintSession, msg entity.InboundMessage) TurnResult {
	t := &turn{
		w:      w,
		result: TurnResult{Session: session.Clone()},
		log: w.log.WithFields(logrus.Fields{
			"session_id": session.SessionID,
			"state":      session.State(),
			"kind":       msg.Kind,
		}),
	}

	switch t.result.Session.State() {
	case valueobject.StateComplete:
		t.reply(replyAlreadySubmitted)
	case valueobject.StateAwaitingDescription:
		t.awaitingDescription(ctx, msg)
	case valueobject.StateAwaitingLocation:
		t.awaitingLocation(ctx, msg)
	case valueobject.StateAwaitingPhoto:
		t.awaitingPhoto(ctx, msg)
	}

	return t.result
}

type turn struct {
	w      *Workflow
	result TurnResult
	log    logrus.FieldLogger
}

func (t *turn) session() *entity.ComplaintSession {
	return t.result.Session
}

func (t *turn) reply(text string) {
	t.result.Reply = text
}

func (t *turn) prose(p Prose) {
	t.result.Reply = p.Text
	t.result.Fallback = p.Fallback
}

func (t *turn) awaitingDescription(ctx context.Context, msg entity.InboundMessage) {
	switch msg.Kind {
	case entity.MessageKindText:
		t.describe(ctx, msg.Text)
	case entity.MessageKindAudio:
		if len(msg.Media) == 0 {
			t.reply(replyAudioFailed)
			return
		}
		transcript, err := t.w.oracle.TranscribeAudio(ctx, msg.Media, msg.MediaType)
		if err != nil || strings.TrimSpace(transcript) == "" {
			t.log.WithError(err).Warn("не удалось расшифровать голосовое сообщение")
			t.reply(replyAudioFailed)
			t.result.Fallback = true
			return
		}
		t.describe(ctx, transcript)
	case entity.MessageKindImage:
		t.reply(replyDescribeFirst)
	case entity.MessageKindLocation:
		t.reply(replyLocationBeforeDescription)
	default:
		t.reply(replyUnsupportedKind)
	}
}

// describe проверяет описание жалобы. Расшифровка аудио проходит ту же проверку.
func (t *turn) describe(ctx context.Context, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		t.reply(replyWelcome)
		return
	}

	verdict, err := t.w.oracle.ValidateComplaintText(ctx, text)
	if err != nil {
		t.log.WithError(err).Warn("не удалось проверить описание")
		t.reply(replyComplaintCheckFailed)
		t.result.Fallback = true
		return
	}

	if prompt, rejected := verdict.Rejected(); rejected {
		t.reply(orDefault(plainText(prompt), replyWelcome))
		return
	}

	accepted, _ := verdict.Accepted()
	if err := t.session().SetDescription(accepted); err != nil {
		t.log.WithError(err).Warn("описание не сохранено")
		t.reply(replyWelcome)
		return
	}
	t.prose(t.w.acknowledge(ctx, t.session().ComplaintText))
}

func (t *turn) awaitingLocation(ctx context.Context, msg entity.InboundMessage) {
	switch msg.Kind {
	case entity.MessageKindText:
		t.locate(ctx, msg.Text)
	case entity.MessageKindAudio:
		t.reply(replyLocationAsTextOrShare)
	case entity.MessageKindImage:
		t.reply(replyLocationFirst)
	case entity.MessageKindLocation:
		point := valueobject.GeoPoint{Lat: msg.Latitude, Lng: msg.Longitude}
		if !point.IsValid() {
			t.reply(replyLocationPrompt)
			return
		}
		t.setLocation(ctx, valueobject.FormatCoordinates(point.Lat, point.Lng))
	default:
		t.reply(replyUnsupportedKind)
	}
}

func (t *turn) locate(ctx context.Context, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		t.reply(replyLocationPrompt)
		return
	}

	verdict, err := t.w.oracle.ValidateLocationText(ctx, text)
	if err != nil {
		t.log.WithError(err).Warn("не удалось проверить место")
		t.reply(replyLocationCheckFailed)
		t.result.Fallback = true
		return
	}

	// Вопрос модели не используется: на любое отклонение ответ одинаковый
	if _, rejected := verdict.Rejected(); rejected {
		t.reply(replyLocationPrompt)
		return
	}

	accepted, _ := verdict.Accepted()
	t.setLocation(ctx, accepted)
}

func (t *turn) setLocation(ctx context.Context, coordinates string) {
	if err := t.session().SetCoordinates(coordinates); err != nil {
		t.log.WithError(err).Warn("место не сохранено")
		t.reply(replyLocationPrompt)
		return
	}
	t.prose(t.w.requestPhoto(ctx, t.session().ComplaintText))
}

func (t *turn) awaitingPhoto(ctx context.Context, msg entity.InboundMessage) {
	switch msg.Kind {
	case entity.MessageKindImage:
		t.classify(ctx, msg.Media)
	case entity.MessageKindText, entity.MessageKindAudio, entity.MessageKindLocation:
		t.reply(replyPhotoNeeded)
	default:
		t.reply(replyUnsupportedKind)
	}
}

func (t *turn) classify(ctx context.Context, image []byte) {
	if len(image) == 0 {
		t.reply(replyPhotoNeeded)
		return
	}

	verdict, err := t.w.oracle.ClassifyImage(ctx, image, t.session().ComplaintText)
	if err != nil {
		t.log.WithError(err).Warn("не удалось проверить фото")
		t.reply(replyImageCheckFailed)
		t.result.Fallback = true
		return
	}

	if prompt, rejected := verdict.Rejected(); rejected {
		t.reply(orDefault(plainText(prompt), replyImageRejected))
		return
	}

	classification, _ := verdict.Accepted()
	report, err := t.w.finalizer.Finalize(ctx, t.session(), classification, image)
	if err != nil {
		t.log.WithError(err).Error("не удалось оформить жалобу")
		t.reply(replyFinalizeFailed)
		return
	}

	if err := t.session().Complete(report.ReportID, report.Classification()); err != nil {
		// жалоба уже сохранена, сессия закрыта хранилищем
		t.log.WithError(err).WithField("report_id", report.ReportID).Error("сессия не отмечена завершённой")
	}
	t.result.Report = report
	t.reply(confirmationReply(report))
}

func (w *Workflow) acknowledge(ctx context.Context, description string) Prose {
	text, err := w.oracle.Acknowledge(ctx, description)
	if text = plainText(text); err != nil || text == "" {
		if err != nil {
			w.log.WithError(err).Warn("подтверждение взято из шаблона")
		}
		return fallback(fallbackAcknowledgement(description))
	}
	return generated(text)
}

func (w *Workflow) requestPhoto(ctx context.Context, description string) Prose {
	text, err := w.oracle.RequestPhoto(ctx, description)
	if text = plainText(text); err != nil || text == "" {
		if err != nil {
			w.log.WithError(err).Warn("запрос фото взят из шаблона")
		}
		return fallback(fallbackPhotoRequest(description))
	}
	return generated(text)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
