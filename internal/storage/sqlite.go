// Package storage persists account state and the ledger event audit
// trail. The SQLite repository is the durable backend; the memory store
// serves tests and single-process deployments.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"risparmio/internal/core"

	_ "modernc.org/sqlite"
)

// AuditEvent is a ledger event as recorded by the audit worker.
type AuditEvent struct {
	ID         string
	Kind       string
	User       string
	Amount     int64
	OccurredAt time.Time
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// GetAccount implements services.AccountStore. Unknown users read as a
// zero-valued account; accounts are never deleted.
func (r *SQLiteRepository) GetAccount(ctx context.Context, user string) (core.Account, error) {
	const query = `SELECT principal, accrued_interest, last_accrual_ns
	FROM accounts WHERE user_id = ?`

	acct := core.Account{User: user}
	var lastAccrualNs int64
	err := r.db.QueryRowContext(ctx, query, user).Scan(&acct.Principal, &acct.AccruedInterest, &lastAccrualNs)
	if err == sql.ErrNoRows {
		return acct, nil
	}
	if err != nil {
		return core.Account{}, fmt.Errorf("query account: %w", err)
	}
	if lastAccrualNs != 0 {
		acct.LastAccrualTime = time.Unix(0, lastAccrualNs).UTC()
	}
	return acct, nil
}

// SaveAccount implements services.AccountStore as an upsert.
func (r *SQLiteRepository) SaveAccount(ctx context.Context, account core.Account) error {
	const query = `INSERT INTO accounts (user_id, principal, accrued_interest, last_accrual_ns, updated_at)
	VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
	ON CONFLICT(user_id) DO UPDATE SET
		principal = excluded.principal,
		accrued_interest = excluded.accrued_interest,
		last_accrual_ns = excluded.last_accrual_ns,
		updated_at = CURRENT_TIMESTAMP`

	var lastAccrualNs int64
	if !account.LastAccrualTime.IsZero() {
		lastAccrualNs = account.LastAccrualTime.UnixNano()
	}
	_, err := r.db.ExecContext(ctx, query,
		account.User, account.Principal, account.AccruedInterest, lastAccrualNs)
	if err != nil {
		return fmt.Errorf("save account: %w", err)
	}
	return nil
}

// SaveAuditEvent records a consumed ledger event. Replayed deliveries are
// idempotent: the event ID is the primary key and duplicates are ignored.
func (r *SQLiteRepository) SaveAuditEvent(ctx context.Context, event AuditEvent) error {
	const query = `INSERT INTO ledger_events (id, kind, user_id, amount, occurred_ns)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(id) DO NOTHING`

	_, err := r.db.ExecContext(ctx, query,
		event.ID, event.Kind, event.User, event.Amount, event.OccurredAt.UnixNano())
	if err != nil {
		return fmt.Errorf("save audit event: %w", err)
	}
	return nil
}

// AuditEventsByUser returns a user's recorded events, oldest first.
func (r *SQLiteRepository) AuditEventsByUser(ctx context.Context, user string) ([]AuditEvent, error) {
	const query = `SELECT id, kind, user_id, amount, occurred_ns
	FROM ledger_events WHERE user_id = ? ORDER BY occurred_ns`

	rows, err := r.db.QueryContext(ctx, query, user)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var events []AuditEvent
	for rows.Next() {
		var e AuditEvent
		var occurredNs int64
		if err := rows.Scan(&e.ID, &e.Kind, &e.User, &e.Amount, &occurredNs); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.OccurredAt = time.Unix(0, occurredNs).UTC()
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}

// CountAuditEvents returns the number of recorded events per kind.
func (r *SQLiteRepository) CountAuditEvents(ctx context.Context) (map[string]int64, error) {
	const query = `SELECT kind, COUNT(*) FROM ledger_events GROUP BY kind`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("count audit events: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var kind string
		var count int64
		if err := rows.Scan(&kind, &count); err != nil {
			return nil, fmt.Errorf("scan audit count: %w", err)
		}
		counts[kind] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit counts: %w", err)
	}
	return counts, nil
}
