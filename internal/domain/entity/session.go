package entity

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ignatzorin/civic-intake/internal/domain/valueobject"
	"github.com/ignatzorin/civic-intake/internal/pkg/apperror"
)

// DefaultSessionTTL задаёт, сколько живёт незавершённая сессия с момента создания.
const DefaultSessionTTL = 24 * time.Hour

// ComplaintSession описывает незавершённый сбор жалобы от одного номера телефона.
// Три обязательных поля заполняются строго по порядку: описание, место, фото.
type ComplaintSession struct {
	SessionID     string
	PhoneNumber   string
	Status        valueobject.SessionStatus
	ComplaintText string
	Coordinates   string
	ImageAnalysis *valueobject.Classification
	ReportID      string
	CreatedAt     time.Time
	ExpiresAt     time.Time
	UpdatedAt     time.Time
}

func NewComplaintSession(phoneNumber string, now time.Time, ttl time.Duration) (*ComplaintSession, error) {
	phoneNumber = strings.TrimSpace(phoneNumber)
	if phoneNumber == "" {
		return nil, apperror.New(apperror.ErrCodeValidation, "номер телефона обязателен")
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &ComplaintSession{
		SessionID:   uuid.NewString(),
		PhoneNumber: phoneNumber,
		Status:      valueobject.SessionStatusActive,
		CreatedAt:   now,
		ExpiresAt:   now.Add(ttl),
		UpdatedAt:   now,
	}, nil
}

// State вычисляет шаг диалога по заполненным полям. Отдельный счётчик шагов
// не хранится.
func (s *ComplaintSession) State() valueobject.ConversationState {
	switch {
	case s.ComplaintText == "":
		return valueobject.StateAwaitingDescription
	case s.Coordinates == "":
		return valueobject.StateAwaitingLocation
	case s.ImageAnalysis == nil || s.ReportID == "":
		return valueobject.StateAwaitingPhoto
	default:
		return valueobject.StateComplete
	}
}

func (s *ComplaintSession) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// IsUsable сообщает, можно ли продолжать сессию: она активна и не истекла.
func (s *ComplaintSession) IsUsable(now time.Time) bool {
	return s.Status == valueobject.SessionStatusActive && !s.IsExpired(now)
}

func (s *ComplaintSession) IsComplete() bool {
	return s.State() == valueobject.StateComplete
}

// Clone возвращает независимую копию, которую можно менять в рамках хода.
func (s *ComplaintSession) Clone() *ComplaintSession {
	c := *s
	if s.ImageAnalysis != nil {
		analysis := *s.ImageAnalysis
		c.ImageAnalysis = &analysis
	}
	return &c
}

func (s *ComplaintSession) SetDescription(text string) error {
	if s.ComplaintText != "" {
		return apperror.ErrFieldAlreadySet
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return apperror.New(apperror.ErrCodeValidation, "описание не может быть пустым")
	}
	s.ComplaintText = text
	return nil
}

func (s *ComplaintSession) SetCoordinates(coordinates string) error {
	if s.Coordinates != "" {
		return apperror.ErrFieldAlreadySet
	}
	if s.ComplaintText == "" {
		return apperror.ErrFieldOutOfOrder
	}
	coordinates = strings.TrimSpace(coordinates)
	if coordinates == "" {
		return apperror.New(apperror.ErrCodeValidation, "место не может быть пустым")
	}
	s.Coordinates = coordinates
	return nil
}

// Complete фиксирует классификацию и номер жалобы и закрывает сессию.
func (s *ComplaintSession) Complete(reportID string, analysis valueobject.Classification) error {
	if s.State() != valueobject.StateAwaitingPhoto {
		return apperror.ErrFieldOutOfOrder
	}
	if s.Status != valueobject.SessionStatusActive {
		return apperror.ErrSessionNotActive
	}
	if reportID == "" {
		return apperror.New(apperror.ErrCodeValidation, "номер жалобы обязателен")
	}
	s.ImageAnalysis = &analysis
	s.ReportID = reportID
	s.Status = valueobject.SessionStatusClosed
	return nil
}

// SessionPatch описывает частичное обновление сессии за один ход.
type SessionPatch struct {
	ComplaintText *string
	Coordinates   *string
}

func (p SessionPatch) IsEmpty() bool {
	return p.ComplaintText == nil && p.Coordinates == nil
}

// Diff строит патч из изменений, сделанных в копии сессии.
func Diff(before, after *ComplaintSession) SessionPatch {
	var p SessionPatch
	if before.ComplaintText != after.ComplaintText {
		v := after.ComplaintText
		p.ComplaintText = &v
	}
	if before.Coordinates != after.Coordinates {
		v := after.Coordinates
		p.Coordinates = &v
	}
	return p
}
