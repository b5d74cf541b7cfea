package valueobject

import "github.com/ignatzorin/civic-intake/internal/pkg/apperror"

type SessionStatus string

const (
	SessionStatusActive  SessionStatus = "active"
	SessionStatusClosed  SessionStatus = "closed"
	SessionStatusExpired SessionStatus = "expired"
)

func (s SessionStatus) IsValid() bool {
	switch s {
	case SessionStatusActive, SessionStatusClosed, SessionStatusExpired:
		return true
	}
	return false
}

// IsTerminal сообщает, что сессия стала историей и больше не меняется.
func (s SessionStatus) IsTerminal() bool {
	return s == SessionStatusClosed || s == SessionStatusExpired
}

func NewSessionStatus(status string) (SessionStatus, error) {
	s := SessionStatus(status)
	if !s.IsValid() {
		return "", apperror.New(apperror.ErrCodeValidation, "некорректный статус сессии")
	}
	return s, nil
}

type ReportStatus string

const (
	ReportStatusSubmitted  ReportStatus = "submitted"
	ReportStatusInProgress ReportStatus = "in_progress"
	ReportStatusResolved   ReportStatus = "resolved"
)

func (s ReportStatus) IsValid() bool {
	switch s {
	case ReportStatusSubmitted, ReportStatusInProgress, ReportStatusResolved:
		return true
	}
	return false
}

func (s ReportStatus) CanTransitionTo(newStatus ReportStatus) bool {
	transitions := map[ReportStatus][]ReportStatus{
		ReportStatusSubmitted:  {ReportStatusInProgress, ReportStatusResolved},
		ReportStatusInProgress: {ReportStatusResolved},
		ReportStatusResolved:   {},
	}

	allowed, ok := transitions[s]
	if !ok {
		return false
	}

	for _, status := range allowed {
		if status == newStatus {
			return true
		}
	}
	return false
}

func NewReportStatus(status string) (ReportStatus, error) {
	s := ReportStatus(status)
	if !s.IsValid() {
		return "", apperror.New(apperror.ErrCodeValidation, "некорректный статус жалобы")
	}
	return s, nil
}

// ConversationState вычисляется из заполненных полей сессии и нигде не хранится.
type ConversationState string

const (
	StateAwaitingDescription ConversationState = "AWAITING_DESCRIPTION"
	StateAwaitingLocation    ConversationState = "AWAITING_LOCATION"
	StateAwaitingPhoto       ConversationState = "AWAITING_PHOTO"
	StateComplete            ConversationState = "COMPLETE"
)

func (s ConversationState) String() string {
	return string(s)
}
