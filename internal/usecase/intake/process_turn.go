package intake

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/civic-intake/internal/domain/entity"
	"github.com/ignatzorin/civic-intake/internal/domain/repository"
	"github.com/ignatzorin/civic-intake/internal/domain/valueobject"
	"github.com/ignatzorin/civic-intake/internal/pkg/apperror"
)

const (
	DefaultTurnTimeout  = 90 * time.Second
	DefaultTurnLockWait = 30 * time.Second
)

type TurnOptions struct {
	SessionTTL time.Duration
	// TurnTimeout ограничивает весь ход вместе с вызовами модели.
	TurnTimeout time.Duration
	// LockWait задаёт, сколько ждать, пока закончится предыдущий ход того же номера.
	LockWait time.Duration
}

type TurnOutput struct {
	Reply     string
	SessionID string
	State     valueobject.ConversationState
	ReportID  string
	Fallback  bool
}

// ProcessTurnUseCase проводит один ход: блокировка номера, загрузка или создание
// сессии, переход автомата и сохранение изменений. Блокировка держится весь ход,
// включая вызовы модели, но ограничена по времени ожидания и по длительности.
type ProcessTurnUseCase struct {
	sessions repository.SessionRepository
	locker   repository.TurnLocker
	workflow *Workflow
	opts     TurnOptions
	now      func() time.Time
	log      logrus.FieldLogger
}

func NewProcessTurnUseCase(
	sessions repository.SessionRepository,
	locker repository.TurnLocker,
	workflow *Workflow,
	opts TurnOptions,
	log logrus.FieldLogger,
) *ProcessTurnUseCase {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = entity.DefaultSessionTTL
	}
	if opts.TurnTimeout <= 0 {
		opts.TurnTimeout = DefaultTurnTimeout
	}
	if opts.LockWait <= 0 {
		opts.LockWait = DefaultTurnLockWait
	}
	return &ProcessTurnUseCase{
		sessions: sessions,
		locker:   locker,
		workflow: workflow,
		opts:     opts,
		now:      func() time.Time { return time.Now().UTC() },
		log:      log,
	}
}

// Execute возвращает ошибку только если хранилище или блокировка недоступны.
// Тогда в сессии не сохраняется ничего из этого хода.
func (uc *ProcessTurnUseCase) Execute(ctx context.Context, msg entity.InboundMessage) (*TurnOutput, error) {
	phone := strings.TrimSpace(msg.PhoneNumber)
	if phone == "" {
		return nil, apperror.New(apperror.ErrCodeValidation, "номер телефона обязателен")
	}
	msg.PhoneNumber = phone

	ctx, cancel := context.WithTimeout(ctx, uc.opts.TurnTimeout)
	defer cancel()

	lockCtx, cancelLock := context.WithTimeout(ctx, uc.opts.LockWait)
	release, err := uc.locker.Acquire(lockCtx, phone)
	cancelLock()
	if err != nil {
		return nil, err
	}
	defer release()

	now := uc.now()
	session, err := uc.sessions.GetActive(ctx, phone, now)
	if err != nil {
		return nil, err
	}
	if session == nil {
		session, err = entity.NewComplaintSession(phone, now, uc.opts.SessionTTL)
		if err != nil {
			return nil, err
		}
		if err := uc.sessions.Create(ctx, session); err != nil {
			return nil, err
		}
		uc.log.WithFields(logrus.Fields{
			"phone":      phone,
			"session_id": session.SessionID,
		}).Info("новая сессия жалобы")
	}

	result := uc.workflow.Apply(ctx, session, msg)

	// Завершение сохраняет хранилище жалоб вместе с жалобой, здесь остаются
	// только описание и место.
	if patch := entity.Diff(session, result.Session); !patch.IsEmpty() {
		if err := uc.sessions.Update(ctx, session.SessionID, patch); err != nil {
			return nil, err
		}
	}

	out := &TurnOutput{
		Reply:     result.Reply,
		SessionID: session.SessionID,
		State:     result.Session.State(),
		Fallback:  result.Fallback,
	}
	if result.Report != nil {
		out.ReportID = result.Report.ReportID
	}

	uc.log.WithFields(logrus.Fields{
		"phone":      phone,
		"session_id": session.SessionID,
		"kind":       msg.Kind,
		"from":       session.State(),
		"to":         out.State,
		"fallback":   out.Fallback,
	}).Info("ход обработан")

	return out, nil
}
