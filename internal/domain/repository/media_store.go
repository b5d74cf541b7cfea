package repository

import "context"

type MediaStore interface {
	// Save сохраняет файл под ключом и возвращает путь, по которому его можно найти.
	Save(ctx context.Context, key string, data []byte) (string, error)
	Delete(ctx context.Context, path string) error
}
