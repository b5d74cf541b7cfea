package repository

import (
	"context"

	"github.com/ignatzorin/civic-intake/internal/domain/valueobject"
)

// Oracle проверяет, классифицирует и генерирует текст на базе языковой модели.
// Любой вызов может вернуть ошибку; вызывающая сторона обязана ответить
// пользователю запасным текстом.
type Oracle interface {
	ValidateComplaintText(ctx context.Context, text string) (valueobject.TextVerdict, error)
	TranscribeAudio(ctx context.Context, audio []byte, mediaType string) (string, error)
	ValidateLocationText(ctx context.Context, text string) (valueobject.TextVerdict, error)
	ClassifyImage(ctx context.Context, image []byte, description string) (valueobject.ImageVerdict, error)
	Acknowledge(ctx context.Context, description string) (string, error)
	RequestPhoto(ctx context.Context, description string) (string, error)
}
