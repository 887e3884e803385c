package sqlite

import (
	"fmt"
	"math"
	"strings"

	"github.com/rpggio/focusstake/internal/repository"
)

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// toInt64 guards the conversion of unsigned amounts into SQLite integers.
func toInt64(field string, v uint64) (int64, error) {
	if v > math.MaxInt64 {
		return 0, fmt.Errorf("%w: %s %d exceeds storage range", repository.ErrInvalidInput, field, v)
	}
	return int64(v), nil
}
