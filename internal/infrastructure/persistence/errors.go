package persistence

import (
	"errors"

	"github.com/lib/pq"
)

// uniqueViolation хранит код ошибки PostgreSQL при нарушении уникальности.
const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == uniqueViolation
	}
	return false
}
