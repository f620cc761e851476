package queue

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"scribe/internal/config"
)

//go:embed schema.sql
var schemaSQL string

const schemaVersion = 1

// timeLayout is RFC 3339 with a fixed-width nanosecond fraction so stored
// timestamps compare correctly as strings in SQL.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// ErrSchemaMismatch indicates the queue database schema version doesn't match the expected version.
var ErrSchemaMismatch = errors.New("queue schema version mismatch")

// Queue is a SQLite-backed delivery queue with at-least-once semantics.
// Received messages are leased: they stay invisible for the lease duration,
// then become deliverable again unless acknowledged. Messages that exhaust
// their delivery budget are parked as dead instead of looping forever.
type Queue struct {
	db              *sql.DB
	path            string
	lease           time.Duration
	redeliveryDelay time.Duration
	maxDeliveries   int
}

// Open initializes or connects to the queue database using config settings.
func Open(cfg *config.Config) (*Queue, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(
		cfg.QueueDatabasePath(),
		time.Duration(cfg.Workflow.LeaseSeconds)*time.Second,
		time.Duration(cfg.Workflow.ErrorRetryInterval)*time.Second,
		cfg.Workflow.MaxDeliveries,
	)
}

// OpenPath opens a queue database at an explicit path with explicit
// delivery settings.
func OpenPath(dbPath string, lease, redeliveryDelay time.Duration, maxDeliveries int) (*Queue, error) {
	if lease <= 0 {
		return nil, errors.New("lease must be positive")
	}
	if maxDeliveries <= 0 {
		return nil, errors.New("max deliveries must be positive")
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	q := &Queue{
		db:              db,
		path:            dbPath,
		lease:           lease,
		redeliveryDelay: redeliveryDelay,
		maxDeliveries:   maxDeliveries,
	}
	if err := q.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return q, nil
}

// Close closes the underlying database connection.
func (q *Queue) Close() error {
	if q == nil || q.db == nil {
		return nil
	}
	return q.db.Close()
}

func (q *Queue) initSchema(ctx context.Context) error {
	var tableExists int
	err := q.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		tx, err := q.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin schema tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()
		if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
			return fmt.Errorf("create queue schema: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
		return tx.Commit()
	}

	var version int
	if err := q.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete the database to recreate it)",
			ErrSchemaMismatch, version, schemaVersion)
	}
	return nil
}

// Send enqueues a message, immediately visible.
func (q *Queue) Send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	now := time.Now().UTC().Format(timeLayout)
	_, err = q.db.ExecContext(
		ctx,
		`INSERT INTO messages (body, enqueued_at, visible_at) VALUES (?, ?, ?)`,
		string(body), now, now,
	)
	if err != nil {
		return fmt.Errorf("enqueue message: %w", err)
	}
	return nil
}

// Receive claims up to max visible messages as one delivery batch. Claimed
// messages stay invisible for the lease duration. Messages past their
// delivery budget are parked as dead and skipped. An empty queue yields an
// empty batch, not an error.
func (q *Queue) Receive(ctx context.Context, max int) (*Batch, error) {
	if max <= 0 {
		return &Batch{}, nil
	}

	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin receive tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	rows, err := tx.QueryContext(
		ctx,
		`SELECT id, body, receive_count FROM messages
         WHERE dead = 0 AND visible_at <= ?
         ORDER BY id LIMIT ?`,
		now.Format(timeLayout),
		max,
	)
	if err != nil {
		return nil, fmt.Errorf("query visible messages: %w", err)
	}

	type row struct {
		id           int64
		body         string
		receiveCount int
	}
	var claimed []row
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.id, &r.body, &r.receiveCount); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan message: %w", err)
		}
		claimed = append(claimed, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	batch := &Batch{}
	leaseUntil := now.Add(q.lease).Format(timeLayout)
	for _, r := range claimed {
		if r.receiveCount >= q.maxDeliveries {
			if _, err := tx.ExecContext(ctx, `UPDATE messages SET dead = 1 WHERE id = ?`, r.id); err != nil {
				return nil, fmt.Errorf("park dead message: %w", err)
			}
			continue
		}
		if _, err := tx.ExecContext(
			ctx,
			`UPDATE messages SET receive_count = receive_count + 1, visible_at = ? WHERE id = ?`,
			leaseUntil, r.id,
		); err != nil {
			return nil, fmt.Errorf("lease message: %w", err)
		}
		var msg Message
		if err := json.Unmarshal([]byte(r.body), &msg); err != nil {
			// Undecodable bodies can never be processed; park them.
			if _, deadErr := tx.ExecContext(ctx, `UPDATE messages SET dead = 1 WHERE id = ?`, r.id); deadErr != nil {
				return nil, fmt.Errorf("park undecodable message: %w", deadErr)
			}
			continue
		}
		batch.Messages = append(batch.Messages, &Delivery{
			id:           r.id,
			receiveCount: r.receiveCount + 1,
			body:         msg,
			queue:        q,
		})
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit receive: %w", err)
	}
	return batch, nil
}

// Stats summarizes queue depth for diagnostics.
type Stats struct {
	Ready    int
	InFlight int
	Dead     int
}

// QueueStats returns current message counts.
func (q *Queue) QueueStats(ctx context.Context) (Stats, error) {
	now := time.Now().UTC().Format(timeLayout)
	var stats Stats
	row := q.db.QueryRowContext(
		ctx,
		`SELECT
            COUNT(CASE WHEN dead = 0 AND visible_at <= ? THEN 1 END),
            COUNT(CASE WHEN dead = 0 AND visible_at > ? THEN 1 END),
            COUNT(CASE WHEN dead = 1 THEN 1 END)
         FROM messages`,
		now, now,
	)
	if err := row.Scan(&stats.Ready, &stats.InFlight, &stats.Dead); err != nil {
		return Stats{}, fmt.Errorf("queue stats: %w", err)
	}
	return stats, nil
}

func (q *Queue) acknowledge(ctx context.Context, id int64) error {
	if _, err := q.db.ExecContext(ctx, `DELETE FROM messages WHERE id = ?`, id); err != nil {
		return fmt.Errorf("acknowledge message %d: %w", id, err)
	}
	return nil
}

func (q *Queue) requestRedelivery(ctx context.Context, id int64) error {
	visibleAt := time.Now().UTC().Add(q.redeliveryDelay).Format(timeLayout)
	if _, err := q.db.ExecContext(
		ctx,
		`UPDATE messages SET visible_at = ? WHERE id = ? AND dead = 0`,
		visibleAt, id,
	); err != nil {
		return fmt.Errorf("redeliver message %d: %w", id, err)
	}
	return nil
}

// Delivery is one leased message plus its settlement operations.
type Delivery struct {
	id           int64
	receiveCount int
	body         Message
	queue        *Queue
}

// Body returns the decoded message payload.
func (d *Delivery) Body() Message { return d.body }

// ReceiveCount reports how many times this message has been delivered,
// including the current delivery.
func (d *Delivery) ReceiveCount() int { return d.receiveCount }

// Acknowledge removes the message from the queue; it will not be delivered again.
func (d *Delivery) Acknowledge(ctx context.Context) error {
	return d.queue.acknowledge(ctx, d.id)
}

// RequestRedelivery returns the message to the queue for a future delivery
// attempt, subject to the queue's redelivery delay and delivery budget.
func (d *Delivery) RequestRedelivery(ctx context.Context) error {
	return d.queue.requestRedelivery(ctx, d.id)
}
