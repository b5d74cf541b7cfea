package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"

	"github.com/ignatzorin/civic-intake/internal/domain/repository"
	"github.com/ignatzorin/civic-intake/internal/pkg/apperror"
)

// reportsDir задаёт подкаталог для фото жалоб.
const reportsDir = "reports"

var allowedMimeTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
	"image/heif": true,
}

// PhotoStorage отвечает за файловое хранилище изображений.
type PhotoStorage struct {
	rootPath       string
	maxUploadBytes int64
}

var _ repository.MediaStore = (*PhotoStorage)(nil)

// NewPhotoStorage создаёт файловое хранилище.
func NewPhotoStorage(rootPath string, maxUploadMB int64) (*PhotoStorage, error) {
	if err := os.MkdirAll(filepath.Join(rootPath, reportsDir), 0o755); err != nil {
		return nil, fmt.Errorf("storage: не удалось создать каталог %s: %w", rootPath, err)
	}

	return &PhotoStorage{
		rootPath:       rootPath,
		maxUploadBytes: maxUploadMB * 1024 * 1024,
	}, nil
}

// Save сохраняет фото под именем key с расширением по реальному типу файла и
// возвращает относительный путь. Файл сначала пишется во временный и только
// потом переименовывается, поэтому частично записанных фото не бывает.
func (s *PhotoStorage) Save(ctx context.Context, key string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if s.maxUploadBytes > 0 && int64(len(data)) > s.maxUploadBytes {
		return "", apperror.New(apperror.ErrCodeValidation, fmt.Sprintf("размер файла превышает лимит %d байт", s.maxUploadBytes))
	}

	// Проверяем магические байты (реальный тип файла)
	kind, err := filetype.Match(data)
	if err != nil || kind == filetype.Unknown || !allowedMimeTypes[kind.MIME.Value] {
		return "", apperror.ErrUnsupportedMedia
	}

	name := sanitizeFilename(key)
	if name == "" {
		return "", apperror.New(apperror.ErrCodeValidation, "пустой ключ файла")
	}

	fileName := name + "." + kind.Extension
	targetPath := filepath.Join(s.rootPath, reportsDir, fileName)
	tempPath := targetPath + ".tmp"

	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		_ = os.Remove(tempPath)
		return "", fmt.Errorf("storage: ошибка записи файла: %w", err)
	}

	if err := os.Rename(tempPath, targetPath); err != nil {
		_ = os.Remove(tempPath)
		return "", fmt.Errorf("storage: не удалось переименовать файл: %w", err)
	}

	return filepath.ToSlash(filepath.Join(reportsDir, fileName)), nil
}

// Delete удаляет файл из хранилища. Отсутствие файла не ошибка.
func (s *PhotoStorage) Delete(ctx context.Context, relativePath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	target, err := s.resolve(relativePath)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("storage: не удалось удалить файл: %w", err)
	}
	return nil
}

// resolve не даёт выйти за пределы корня хранилища.
func (s *PhotoStorage) resolve(relativePath string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(relativePath))
	if clean == "." || filepath.IsAbs(clean) || strings.HasPrefix(clean, "..") {
		return "", apperror.New(apperror.ErrCodeValidation, "некорректный путь файла")
	}
	return filepath.Join(s.rootPath, clean), nil
}

// sanitizeFilename удаляет потенциально опасные символы.
func sanitizeFilename(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	name = strings.ReplaceAll(name, "..", "")
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	if name == "." {
		return ""
	}
	return name
}
