// Package sqlitequeue is the durable, WAL-enabled implementation of
// queue.Queue, backed by a single queue.db file per (repository, branch)
// pair, per the persistent state layout. It uses the pure-Go
// modernc.org/sqlite driver so the indexer binary stays cgo-free on this
// path even though the Git collaborator (pkg/gitrepo/git2go) is not.
package sqlitequeue

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kapral18/semantic-code-search-indexer/pkg/queue"
)

// Queue is a SQLite-backed queue.Queue.
type Queue struct {
	db       *sql.DB
	liveness queue.ProcessLiveness
}

// Open opens (creating if necessary) the queue.db at path, enables WAL mode,
// and ensures the schema is current.
func Open(path string, liveness queue.ProcessLiveness) (*Queue, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", queue.ErrStorage, path, err)
	}

	// The queue is single-writer per (repository, branch); one connection
	// avoids SQLITE_BUSY storms from the driver's own pooling while WAL
	// mode still allows concurrent readers.
	db.SetMaxOpenConns(1)

	if liveness == nil {
		liveness = queue.IsProcessAlive
	}

	q := &Queue{db: db, liveness: liveness}

	if err := q.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	return q, nil
}

func (q *Queue) initSchema() error {
	const schema = `
	PRAGMA journal_mode = WAL;

	CREATE TABLE IF NOT EXISTS queue (
		id                    INTEGER PRIMARY KEY AUTOINCREMENT,
		batch_id              TEXT NOT NULL,
		document              TEXT NOT NULL,
		status                TEXT NOT NULL DEFAULT 'pending',
		retry_count           INTEGER NOT NULL DEFAULT 0,
		created_at            TIMESTAMP NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')),
		processing_started_at TIMESTAMP,
		worker_pid            INTEGER
	);

	CREATE INDEX IF NOT EXISTS idx_queue_status ON queue(status);
	CREATE INDEX IF NOT EXISTS idx_queue_batch_id ON queue(batch_id);

	CREATE TABLE IF NOT EXISTS queue_meta (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`

	if _, err := q.db.Exec(schema); err != nil {
		return fmt.Errorf("%w: init schema: %v", queue.ErrStorage, err)
	}

	// Additive migration for stores created before worker_pid existed.
	if _, err := q.db.Exec(`ALTER TABLE queue ADD COLUMN worker_pid INTEGER`); err != nil {
		// Column already present; modernc.org/sqlite surfaces this as a
		// generic error with no typed "duplicate column" sentinel, so we
		// only treat genuinely fresh schemas (no error above) as the
		// success path and otherwise assume this is the expected
		// already-migrated case.
		_ = err
	}

	return nil
}

func (q *Queue) Enqueue(ctx context.Context, batchID string, documents [][]byte) error {
	if len(documents) == 0 {
		return nil
	}

	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin enqueue tx: %v", queue.ErrStorage, err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO queue (batch_id, document, status) VALUES (?, ?, 'pending')`)
	if err != nil {
		return fmt.Errorf("%w: prepare enqueue: %v", queue.ErrStorage, err)
	}
	defer stmt.Close()

	for _, doc := range documents {
		if _, err := stmt.ExecContext(ctx, batchID, string(doc)); err != nil {
			return fmt.Errorf("%w: insert chunk: %v", queue.ErrStorage, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit enqueue tx: %v", queue.ErrStorage, err)
	}

	return nil
}

// Dequeue selects and flips pending→processing inside one serialized
// transaction so no two callers — in this process or another started
// against the same file — ever observe the same row.
func (q *Queue) Dequeue(ctx context.Context, n int, workerPID int) ([]queue.Item, error) {
	if n <= 0 {
		return nil, nil
	}

	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: begin dequeue tx: %v", queue.ErrStorage, err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		`SELECT id, batch_id, document, retry_count, created_at
		 FROM queue WHERE status = 'pending'
		 ORDER BY created_at ASC, id ASC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("%w: select pending: %v", queue.ErrStorage, err)
	}

	var items []queue.Item

	for rows.Next() {
		var it queue.Item

		var createdAt string

		if err := rows.Scan(&it.ID, &it.BatchID, &it.Document, &it.RetryCount, &createdAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("%w: scan pending row: %v", queue.ErrStorage, err)
		}

		it.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		it.Status = queue.StatusProcessing

		items = append(items, it)
	}

	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("%w: iterate pending rows: %v", queue.ErrStorage, err)
	}

	rows.Close()

	if len(items) == 0 {
		return nil, tx.Commit()
	}

	now := time.Now().UTC()

	updateStmt, err := tx.PrepareContext(ctx,
		`UPDATE queue SET status = 'processing', processing_started_at = ?, worker_pid = ? WHERE id = ?`)
	if err != nil {
		return nil, fmt.Errorf("%w: prepare lease update: %v", queue.ErrStorage, err)
	}
	defer updateStmt.Close()

	for i := range items {
		if _, err := updateStmt.ExecContext(ctx, now.Format(time.RFC3339Nano), workerPID, items[i].ID); err != nil {
			return nil, fmt.Errorf("%w: stamp lease for %d: %v", queue.ErrStorage, items[i].ID, err)
		}

		stamp := now
		pid := workerPID
		items[i].ProcessingStartedAt = &stamp
		items[i].WorkerPID = &pid
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit dequeue tx: %v", queue.ErrStorage, err)
	}

	return items, nil
}

func (q *Queue) Commit(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin commit tx: %v", queue.ErrStorage, err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `DELETE FROM queue WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("%w: prepare delete: %v", queue.ErrStorage, err)
	}
	defer stmt.Close()

	for _, id := range ids {
		if _, err := stmt.ExecContext(ctx, id); err != nil {
			return fmt.Errorf("%w: delete %d: %v", queue.ErrStorage, id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit commit-tx: %v", queue.ErrStorage, err)
	}

	return nil
}

func (q *Queue) Requeue(ctx context.Context, ids []int64, maxRetries int) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin requeue tx: %v", queue.ErrStorage, err)
	}
	defer tx.Rollback()

	for _, id := range ids {
		var retryCount int
		if err := tx.QueryRowContext(ctx, `SELECT retry_count FROM queue WHERE id = ?`, id).Scan(&retryCount); err != nil {
			if err == sql.ErrNoRows {
				continue
			}

			return fmt.Errorf("%w: read retry_count for %d: %v", queue.ErrStorage, id, err)
		}

		retryCount++

		status := queue.StatusPending
		if retryCount >= maxRetries {
			status = queue.StatusFailed
		}

		_, err := tx.ExecContext(ctx,
			`UPDATE queue SET status = ?, retry_count = ?, processing_started_at = NULL, worker_pid = NULL WHERE id = ?`,
			status, retryCount, id)
		if err != nil {
			return fmt.Errorf("%w: requeue %d: %v", queue.ErrStorage, id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit requeue tx: %v", queue.ErrStorage, err)
	}

	return nil
}

func (q *Queue) Clear(ctx context.Context) error {
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin clear tx: %v", queue.ErrStorage, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM queue`); err != nil {
		return fmt.Errorf("%w: clear queue: %v", queue.ErrStorage, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM queue_meta WHERE key = 'enqueue_completed'`); err != nil {
		return fmt.Errorf("%w: clear latch: %v", queue.ErrStorage, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit clear tx: %v", queue.ErrStorage, err)
	}

	return nil
}

func (q *Queue) MarkEnqueueCompleted(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO queue_meta (key, value) VALUES ('enqueue_completed', '1')
		 ON CONFLICT(key) DO UPDATE SET value = '1'`)
	if err != nil {
		return fmt.Errorf("%w: set enqueue-completed latch: %v", queue.ErrStorage, err)
	}

	return nil
}

func (q *Queue) IsEnqueueCompleted(ctx context.Context) (bool, error) {
	var value string

	err := q.db.QueryRowContext(ctx, `SELECT value FROM queue_meta WHERE key = 'enqueue_completed'`).Scan(&value)
	if err == sql.ErrNoRows {
		return false, nil
	}

	if err != nil {
		return false, fmt.Errorf("%w: read enqueue-completed latch: %v", queue.ErrStorage, err)
	}

	return value == "1", nil
}

func (q *Queue) RequeueStaleTasks(ctx context.Context, staleTimeout time.Duration) (int, error) {
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: begin requeue-stale tx: %v", queue.ErrStorage, err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		`SELECT id, worker_pid, processing_started_at FROM queue WHERE status = 'processing'`)
	if err != nil {
		return 0, fmt.Errorf("%w: select processing rows: %v", queue.ErrStorage, err)
	}

	type staleRow struct {
		id int64
	}

	var stale []staleRow

	now := time.Now().UTC()

	for rows.Next() {
		var (
			id                  int64
			workerPID           sql.NullInt64
			processingStartedAt sql.NullString
		)

		if err := rows.Scan(&id, &workerPID, &processingStartedAt); err != nil {
			rows.Close()
			return 0, fmt.Errorf("%w: scan processing row: %v", queue.ErrStorage, err)
		}

		if isStale(id, workerPID, processingStartedAt, now, staleTimeout, q.liveness) {
			stale = append(stale, staleRow{id: id})
		}
	}

	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, fmt.Errorf("%w: iterate processing rows: %v", queue.ErrStorage, err)
	}

	rows.Close()

	for _, row := range stale {
		_, err := tx.ExecContext(ctx,
			`UPDATE queue SET status = 'pending', processing_started_at = NULL, worker_pid = NULL WHERE id = ?`,
			row.id)
		if err != nil {
			return 0, fmt.Errorf("%w: reclaim %d: %v", queue.ErrStorage, row.id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: commit requeue-stale tx: %v", queue.ErrStorage, err)
	}

	return len(stale), nil
}

// isStale implements the three-way staleness predicate from the design:
// owner process gone, lease older than staleTimeout, or an unparsable
// timestamp.
func isStale(
	_ int64,
	workerPID sql.NullInt64,
	processingStartedAt sql.NullString,
	now time.Time,
	staleTimeout time.Duration,
	liveness queue.ProcessLiveness,
) bool {
	if workerPID.Valid && !liveness(int(workerPID.Int64)) {
		return true
	}

	if !processingStartedAt.Valid {
		return true
	}

	started, err := time.Parse(time.RFC3339Nano, processingStartedAt.String)
	if err != nil {
		return true
	}

	return now.Sub(started) > staleTimeout
}

func (q *Queue) RequeueFailed(ctx context.Context) (int, error) {
	res, err := q.db.ExecContext(ctx,
		`UPDATE queue SET status = 'pending', retry_count = 0 WHERE status = 'failed'`)
	if err != nil {
		return 0, fmt.Errorf("%w: requeue failed items: %v", queue.ErrStorage, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: count requeued: %v", queue.ErrStorage, err)
	}

	return int(n), nil
}

func (q *Queue) Stats(ctx context.Context) (queue.Stats, error) {
	var stats queue.Stats

	rows, err := q.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM queue GROUP BY status`)
	if err != nil {
		return stats, fmt.Errorf("%w: stats query: %v", queue.ErrStorage, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			status string
			count  int64
		)

		if err := rows.Scan(&status, &count); err != nil {
			return stats, fmt.Errorf("%w: scan stats row: %v", queue.ErrStorage, err)
		}

		switch queue.Status(status) {
		case queue.StatusPending:
			stats.Pending = count
		case queue.StatusProcessing:
			stats.Processing = count
		case queue.StatusFailed:
			stats.Failed = count
		}
	}

	return stats, rows.Err()
}

func (q *Queue) Close() error {
	return q.db.Close()
}
