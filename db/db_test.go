// db/db_test.go — unit tests for the toolkit core.
// Uses an in-memory SQLite database; no external services required.
//
// Run:  go test ./db/... -v -race
package db_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Skryldev/userkit/db"
	_ "github.com/mattn/go-sqlite3"
)

// ─────────────────────────────────────────────────────────────────────────────
// Test helpers
// ─────────────────────────────────────────────────────────────────────────────

func newTestDB(t *testing.T) *db.DB {
	t.Helper()
	// A single pooled connection: every :memory: connection is its own
	// database, so the pool must never hand out a second one.
	d, err := db.Open(db.Config{
		DSN:          ":memory:",
		DriverName:   "sqlite3",
		MaxOpenConns: 1,
		MaxIdleConns: 1,
		Hooks: []db.Hook{
			db.NewLogHook(db.LogHookConfig{LogArgs: true}),
		},
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	// Create schema (mirrors migrations/000001_create_users.up.sql)
	_, err = d.Exec(context.Background(), `
		CREATE TABLE IF NOT EXISTS users (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			name       TEXT NOT NULL,
			email      TEXT NOT NULL UNIQUE,
			department TEXT,
			role       TEXT,
			active     BOOLEAN NOT NULL DEFAULT TRUE,
			created_at DATETIME,
			updated_at DATETIME
		)`)
	if err != nil {
		t.Fatalf("create schema: %v", err)
	}
	return d
}

func insertTestUser(t *testing.T, d *db.DB, name, email string) {
	t.Helper()
	now := time.Now()
	_, err := d.Exec(context.Background(),
		`INSERT INTO users (name, email, department, role, active, created_at, updated_at)
		 VALUES (?, ?, 'QA', 'Tester', 1, ?, ?)`,
		name, email, now, now,
	)
	if err != nil {
		t.Fatalf("insert %s: %v", name, err)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Open / Ping
// ─────────────────────────────────────────────────────────────────────────────

func TestOpen(t *testing.T) {
	d := newTestDB(t)
	if err := d.Ping(context.Background()); err != nil {
		t.Fatalf("ping failed: %v", err)
	}
}

func TestOpen_InvalidDSN(t *testing.T) {
	_, err := db.Open(db.Config{DSN: "", DriverName: "sqlite3"})
	if err == nil {
		t.Fatal("expected error for empty DSN")
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Exec / QueryRow
// ─────────────────────────────────────────────────────────────────────────────

func TestExec_Insert(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()
	now := time.Now()

	res, err := d.Exec(ctx,
		`INSERT INTO users (name, email, active, created_at, updated_at) VALUES (?, ?, 1, ?, ?)`,
		"Alice", "alice@test.com", now, now,
	)
	if err != nil {
		t.Fatalf("exec: %v", err)
	}
	n, _ := res.RowsAffected()
	if n != 1 {
		t.Fatalf("expected 1 row affected, got %d", n)
	}
}

func TestQueryRow_Scan(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()

	insertTestUser(t, d, "Bob", "bob@test.com")

	var name, email string
	err := d.QueryRow(ctx, `SELECT name, email FROM users WHERE email = ?`, "bob@test.com").
		Scan(&name, &email)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if name != "Bob" || email != "bob@test.com" {
		t.Fatalf("unexpected values: name=%q email=%q", name, email)
	}
}

func TestQueryRow_NotFound(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()

	var name string
	err := d.QueryRow(ctx, `SELECT name FROM users WHERE id = ?`, 99999).Scan(&name)
	if !db.IsNotFound(err) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Query — multiple rows
// ─────────────────────────────────────────────────────────────────────────────

func TestQuery_MultipleRows(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()

	for _, u := range []struct{ name, email string }{
		{"Alice", "alice@q.com"},
		{"Bob", "bob@q.com"},
		{"Carol", "carol@q.com"},
	} {
		insertTestUser(t, d, u.name, u.email)
	}

	rows, err := d.Query(ctx, `SELECT name FROM users ORDER BY name`)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			t.Fatalf("scan: %v", err)
		}
		names = append(names, n)
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("rows.Err: %v", err)
	}
	if len(names) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(names))
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// ExecTx — commit
// ─────────────────────────────────────────────────────────────────────────────

func TestExecTx_Commit(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()
	now := time.Now()

	err := d.ExecTx(ctx, func(tx *db.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO users (name, email, active, created_at, updated_at) VALUES (?, ?, 1, ?, ?)`,
			"Dave", "dave@tx.com", now, now,
		)
		return err
	})
	if err != nil {
		t.Fatalf("tx commit: %v", err)
	}

	var n int
	_ = d.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE email = ?`, "dave@tx.com").Scan(&n)
	if n != 1 {
		t.Fatalf("expected 1 committed row, got %d", n)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// ExecTx — rollback on error
// ─────────────────────────────────────────────────────────────────────────────

func TestExecTx_RollbackOnError(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()
	now := time.Now()

	sentinelErr := errors.New("intentional failure")

	err := d.ExecTx(ctx, func(tx *db.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO users (name, email, active, created_at, updated_at) VALUES (?, ?, 1, ?, ?)`,
			"Eve", "eve@rollback.com", now, now,
		)
		if err != nil {
			return err
		}
		return sentinelErr // force rollback
	})
	if !errors.Is(err, sentinelErr) {
		t.Fatalf("expected sentinelErr, got %v", err)
	}

	var n int
	_ = d.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE email = ?`, "eve@rollback.com").Scan(&n)
	if n != 0 {
		t.Fatalf("expected 0 rows after rollback, got %d", n)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// ExecTx — rollback on panic
// ─────────────────────────────────────────────────────────────────────────────

func TestExecTx_RollbackOnPanic(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic to propagate")
		}
	}()

	_ = d.ExecTx(ctx, func(tx *db.Tx) error {
		panic("test panic")
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// Prepared statements
// ─────────────────────────────────────────────────────────────────────────────

func TestPrepare(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()
	now := time.Now()

	stmt, err := d.Prepare(ctx,
		`INSERT INTO users (name, email, active, created_at, updated_at) VALUES (?, ?, 1, ?, ?)`)
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	defer stmt.Close()

	for _, email := range []string{"p1@test.com", "p2@test.com", "p3@test.com"} {
		_, err := stmt.Exec(ctx, "PrepUser", email, now, now)
		if err != nil {
			t.Fatalf("exec prepared: %v", err)
		}
	}

	var n int
	_ = d.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE name = ?`, "PrepUser").Scan(&n)
	if n != 3 {
		t.Fatalf("expected 3 rows, got %d", n)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Error mapping — DuplicateKey (SQLite)
// ─────────────────────────────────────────────────────────────────────────────

func TestErrorMapper_DuplicateKey(t *testing.T) {
	d := newTestDB(t)

	insert := func() error {
		now := time.Now()
		_, err := d.Exec(context.Background(),
			`INSERT INTO users (name, email, active, created_at, updated_at) VALUES (?, ?, 1, ?, ?)`,
			"Alice", "dup@test.com", now, now,
		)
		return err
	}

	if err := insert(); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	err := insert() // should trigger UNIQUE constraint
	if !db.IsDuplicateKey(err) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Error mapping — fallback class
// ─────────────────────────────────────────────────────────────────────────────

func TestErrorMapper_StatementFailedFallback(t *testing.T) {
	d := newTestDB(t)

	_, err := d.Exec(context.Background(), `INSERT INTO no_such_table (x) VALUES (1)`)
	if err == nil {
		t.Fatal("expected error for missing table")
	}
	if !db.IsStatementFailed(err) {
		t.Fatalf("expected ErrStatementFailed fallback, got %v", err)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Error mapping — scan conversion failures
// ─────────────────────────────────────────────────────────────────────────────

func TestErrorMapper_ScanMismatchIsMappingError(t *testing.T) {
	d := newTestDB(t)

	var n int
	err := d.QueryRow(context.Background(), `SELECT 'not a number'`).Scan(&n)
	if !db.IsMapping(err) {
		t.Fatalf("expected ErrMapping, got %v", err)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Default timeout
// ─────────────────────────────────────────────────────────────────────────────

// The derived timeout context must stay alive until the caller is done with
// the result: rows remain readable until Close and QueryRow until Scan.
func TestDefaultTimeout_ResultsStayReadable(t *testing.T) {
	d, err := db.Open(db.Config{
		DSN:            ":memory:",
		DriverName:     "sqlite3",
		MaxOpenConns:   1,
		MaxIdleConns:   1,
		DefaultTimeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer d.Close()
	ctx := context.Background()

	if _, err := d.Exec(ctx, `CREATE TABLE nums (n INTEGER)`); err != nil {
		t.Fatalf("create: %v", err)
	}
	for i := 1; i <= 3; i++ {
		if _, err := d.Exec(ctx, `INSERT INTO nums (n) VALUES (?)`, i); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	var one int
	if err := d.QueryRow(ctx, `SELECT n FROM nums WHERE n = 1`).Scan(&one); err != nil {
		t.Fatalf("scan: %v", err)
	}

	rows, err := d.Query(ctx, `SELECT n FROM nums ORDER BY n`)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	defer rows.Close()

	var got []int
	for rows.Next() {
		var n int
		if err := rows.Scan(&n); err != nil {
			t.Fatalf("row scan: %v", err)
		}
		got = append(got, n)
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("rows.Err: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(got))
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// WithRetry
// ─────────────────────────────────────────────────────────────────────────────

func TestWithRetry_SucceedsOnSecondAttempt(t *testing.T) {
	ctx := context.Background()
	attempts := 0
	transient := errors.New("transient")

	err := db.WithRetry(ctx, db.RetryConfig{
		MaxAttempts: 3,
		Delay:       1 * time.Millisecond,
		RetryOn:     func(err error) bool { return errors.Is(err, transient) },
	}, func() error {
		attempts++
		if attempts < 2 {
			return transient
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success: %v", err)
	}
	if attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", attempts)
	}
}

func TestWithRetry_ExhaustsAttempts(t *testing.T) {
	ctx := context.Background()
	permanent := errors.New("permanent")

	err := db.WithRetry(ctx, db.RetryConfig{
		MaxAttempts: 3,
		Delay:       1 * time.Millisecond,
		RetryOn:     func(err error) bool { return errors.Is(err, permanent) },
	}, func() error {
		return permanent
	})
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Hooks — verify they are called
// ─────────────────────────────────────────────────────────────────────────────

type countingHook struct {
	before int
	after  int
}

func (h *countingHook) BeforeQuery(_ context.Context, _ string, _ []any) { h.before++ }
func (h *countingHook) AfterQuery(_ context.Context, _ string, _ []any, _ time.Duration, _ error) {
	h.after++
}

func TestHooks_CalledOnExec(t *testing.T) {
	hook := &countingHook{}
	d, err := db.Open(db.Config{
		DSN:        ":memory:",
		DriverName: "sqlite3",
		Hooks:      []db.Hook{hook},
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer d.Close()

	ctx := context.Background()
	_, _ = d.Exec(ctx, `SELECT 1`)

	if hook.before != 1 || hook.after != 1 {
		t.Fatalf("hook not called: before=%d after=%d", hook.before, hook.after)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// BatchExec
// ─────────────────────────────────────────────────────────────────────────────

func TestBatchExec_CountsInsertedRows(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()
	now := time.Now()

	type row struct{ Name, Email string }
	items := []row{
		{"Batch1", "b1@test.com"},
		{"Batch2", "b2@test.com"},
		{"Batch3", "b3@test.com"},
	}

	inserted, err := db.BatchExec(d, ctx,
		`INSERT INTO users (name, email, active, created_at, updated_at) VALUES (?, ?, 1, ?, ?)`,
		items,
		func(r row) []any { return []any{r.Name, r.Email, now, now} },
	)
	if err != nil {
		t.Fatalf("batch exec: %v", err)
	}
	if inserted != 3 {
		t.Fatalf("expected 3 inserted, got %d", inserted)
	}

	var n int
	_ = d.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE name LIKE 'Batch%'`).Scan(&n)
	if n != 3 {
		t.Fatalf("expected 3 batch rows, got %d", n)
	}
}

func TestBatchExec_EmptyInputIsNoOp(t *testing.T) {
	d := newTestDB(t)

	inserted, err := db.BatchExec(d, context.Background(),
		`INSERT INTO users (name, email) VALUES (?, ?)`,
		[]struct{}{},
		func(struct{}) []any { return nil },
	)
	if err != nil {
		t.Fatalf("empty batch: %v", err)
	}
	if inserted != 0 {
		t.Fatalf("expected 0, got %d", inserted)
	}
}

func TestBatchExec_FailureRollsBackWholeBatch(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()
	now := time.Now()

	insertTestUser(t, d, "Taken", "taken@test.com")

	type row struct{ Name, Email string }
	items := []row{
		{"OK1", "ok1@test.com"},
		{"Dup", "taken@test.com"}, // violates UNIQUE(email)
		{"OK2", "ok2@test.com"},
	}

	_, err := db.BatchExec(d, ctx,
		`INSERT INTO users (name, email, active, created_at, updated_at) VALUES (?, ?, 1, ?, ?)`,
		items,
		func(r row) []any { return []any{r.Name, r.Email, now, now} },
	)
	if !db.IsDuplicateKey(err) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}

	var n int
	_ = d.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE email IN (?, ?)`,
		"ok1@test.com", "ok2@test.com").Scan(&n)
	if n != 0 {
		t.Fatalf("expected full rollback, found %d rows", n)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Context timeout
// ─────────────────────────────────────────────────────────────────────────────

func TestContextCancellation(t *testing.T) {
	d := newTestDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel() // cancel immediately

	_, err := d.Exec(ctx, `SELECT 1`)
	if err == nil {
		// SQLite may execute trivially fast before noticing cancellation;
		// this is acceptable behaviour. The error mapping is tested via
		// the error sentinel tests above.
		t.Log("SQLite executed before context was observed (acceptable)")
	}
}
