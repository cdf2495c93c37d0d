package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
)

// ErrStoreUnavailable wraps a store error that stayed transient after
// the bounded retries.  The HTTP layer answers it with 503 so the
// client knows to retry, instead of the 500 a hard failure gets.
var ErrStoreUnavailable = errors.New("store temporarily unavailable")

const (
	retryAttempts = 3
	retryBackoff  = 25 * time.Millisecond
)

// withRetry re-runs fn on transient store failures with backoff
// between attempts.  Lock waits and deadlock rollbacks undo the whole
// transaction, so re-running a guarded statement cannot apply it
// twice.
func withRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = fn()
		if err == nil || !transientStoreErr(err) {
			return err
		}
		if attempt == retryAttempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryBackoff << attempt):
		}
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

// transientStoreErr reports whether a store error is worth retrying:
// an InnoDB lock wait timeout (1205) or a deadlock rollback (1213).
// Everything else, sentinels included, surfaces on the first attempt.
func transientStoreErr(err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == 1205 || me.Number == 1213
	}
	return false
}
