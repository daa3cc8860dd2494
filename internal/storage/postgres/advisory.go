package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// AdvisoryLocker — эксклюзивный advisory lock по video_id для входа в
// пайплайн. Второй претендент не ждёт: pg_try_advisory_lock сразу вернёт
// false и задача уйдёт в no-op.
type AdvisoryLocker struct {
	db *sqlx.DB
}

func NewAdvisoryLocker(db *sqlx.DB) *AdvisoryLocker {
	return &AdvisoryLocker{db: db}
}

// TryLock держит lock на выделенном соединении: session-level advisory lock
// живёт ровно столько, сколько живёт соединение, поэтому release обязан
// разлочить и вернуть conn в пул.
func (l *AdvisoryLocker) TryLock(ctx context.Context, videoID uuid.UUID) (func(), bool, error) {
	conn, err := l.db.Connx(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("advisory conn: %w", err)
	}

	var acquired bool
	const q = `SELECT pg_try_advisory_lock(hashtextextended($1, 0))`
	if err := conn.GetContext(ctx, &acquired, q, videoID.String()); err != nil {
		conn.Close()
		return nil, false, fmt.Errorf("advisory try lock: %w", err)
	}
	if !acquired {
		conn.Close()
		return nil, false, nil
	}

	release := func() {
		// unlock на том же соединении; Background — release зовут и после
		// отмены контекста задачи
		const uq = `SELECT pg_advisory_unlock(hashtextextended($1, 0))`
		var unlocked bool
		_ = conn.GetContext(context.Background(), &unlocked, uq, videoID.String())
		conn.Close()
	}
	return release, true, nil
}
