package ai

import (
	"context"
	"strings"

	"github.com/h2non/filetype"

	"github.com/ignatzorin/civic-intake/internal/ai"
	"github.com/ignatzorin/civic-intake/internal/domain/repository"
	"github.com/ignatzorin/civic-intake/internal/domain/valueobject"
	"github.com/ignatzorin/civic-intake/internal/pkg/apperror"
)

const (
	defaultComplaintQuestion = "Hello! Welcome to the Government Complaint Registration System. Please tell me about any issue you're facing."
	defaultLocationQuestion  = "Please share the exact location of the issue."
	defaultImageQuestion     = "This photo doesn't seem to match the issue you described. Could you send a photo that shows the problem?"
)

// OracleAdapter превращает ответы модели в проверенные вердикты.
type OracleAdapter struct {
	client *ai.Client
}

var _ repository.Oracle = (*OracleAdapter)(nil)

func NewOracleAdapter(client *ai.Client) *OracleAdapter {
	if client == nil {
		return nil
	}
	return &OracleAdapter{client: client}
}

// ValidateComplaintText принимает текст как есть, без переписывания моделью.
func (a *OracleAdapter) ValidateComplaintText(ctx context.Context, text string) (valueobject.TextVerdict, error) {
	check, err := a.client.ValidateComplaint(ctx, text)
	if err != nil {
		return valueobject.TextVerdict{}, oracleError(err, "не удалось проверить описание")
	}
	if check.IsValid {
		return valueobject.AcceptText(text), nil
	}
	return valueobject.RejectText(questionOr(check.Question, defaultComplaintQuestion)), nil
}

func (a *OracleAdapter) TranscribeAudio(ctx context.Context, audio []byte, mediaType string) (string, error) {
	text, err := a.client.Transcribe(ctx, audio, mediaType)
	if err != nil {
		return "", oracleError(err, "не удалось расшифровать аудио")
	}
	return text, nil
}

func (a *OracleAdapter) ValidateLocationText(ctx context.Context, text string) (valueobject.TextVerdict, error) {
	check, err := a.client.ValidateLocation(ctx, text)
	if err != nil {
		return valueobject.TextVerdict{}, oracleError(err, "не удалось проверить место")
	}
	if check.IsValid {
		return valueobject.AcceptText(text), nil
	}
	return valueobject.RejectText(questionOr(check.Question, defaultLocationQuestion)), nil
}

// ClassifyImage определяет формат по содержимому: заголовок Content-Type от
// WhatsApp бывает неточным.
func (a *OracleAdapter) ClassifyImage(ctx context.Context, image []byte, description string) (valueobject.ImageVerdict, error) {
	mimeType := "image/jpeg"
	if kind, err := filetype.Match(image); err == nil && filetype.IsImage(image) {
		mimeType = kind.MIME.Value
	}

	check, err := a.client.AnalyzeImage(ctx, image, mimeType, description)
	if err != nil {
		return valueobject.ImageVerdict{}, oracleError(err, "не удалось проверить фото")
	}
	if !check.Valid {
		return valueobject.RejectImage(questionOr(check.Question, defaultImageQuestion)), nil
	}

	raw := valueobject.RawClassification{
		Category:   check.Category,
		Priority:   check.Priority,
		Department: check.Department,
	}
	if check.ResolutionDays != nil {
		days := int(*check.ResolutionDays)
		raw.ResolutionDays = &days
	}
	return valueobject.AcceptImage(valueobject.NormalizeClassification(raw)), nil
}

func (a *OracleAdapter) Acknowledge(ctx context.Context, description string) (string, error) {
	text, err := a.client.Acknowledge(ctx, description)
	if err != nil {
		return "", oracleError(err, "не удалось сформировать подтверждение")
	}
	return text, nil
}

func (a *OracleAdapter) RequestPhoto(ctx context.Context, description string) (string, error) {
	text, err := a.client.AskForPhoto(ctx, description)
	if err != nil {
		return "", oracleError(err, "не удалось сформировать запрос фото")
	}
	return text, nil
}

func oracleError(err error, message string) error {
	return apperror.Wrap(err, apperror.ErrCodeOracleUnavailable, message)
}

func questionOr(question *string, fallback string) string {
	if question == nil || strings.TrimSpace(*question) == "" {
		return fallback
	}
	return strings.TrimSpace(*question)
}
