package repos

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/yungbote/embers-fuse/internal/platform/fault"
)

// PersistenceError wraps a database failure as a persistence fault, marking
// serialization failures, deadlocks and lock timeouts as retryable.
func PersistenceError(op string, err error) error {
	if err == nil {
		return nil
	}
	fe := fault.Persistence(op, err)
	fe.Retryable = isRetryable(err)
	return fe
}

func isRetryable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch strings.TrimSpace(pgErr.Code) {
		case "40001", "40P01", "55P03":
			return true
		}
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "deadlock") ||
		strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "serialization")
}
