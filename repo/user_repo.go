package repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Skryldev/userkit/db"
	"github.com/Skryldev/userkit/models"
)

// ─────────────────────────────────────────────────────────────────────────────
// UserRepository interface — for mocking in tests
// ─────────────────────────────────────────────────────────────────────────────

//go:generate mockgen -source=user_repo.go -destination=../mocks/user_repo_mock.go -package=mocks

// UserRepository defines the contract for user persistence operations that
// run as single statements. Operations that need their own transaction scope
// (TransferUsers, BatchInsertUsers) are package-level functions taking a
// *db.DB.
type UserRepository interface {
	Insert(ctx context.Context, params models.CreateUserParams) (*models.User, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context) ([]*models.User, error)
	GetByDepartment(ctx context.Context, department string) ([]*models.User, error)
	CountByDepartment(ctx context.Context, department string) (int64, error)
	Search(ctx context.Context, query models.UserQuery) ([]*models.User, error)
	Update(ctx context.Context, id int64, params models.UpdateUserParams) (*models.User, error)
	Delete(ctx context.Context, id int64) (bool, error)
}

// ─────────────────────────────────────────────────────────────────────────────
// userRepo — concrete implementation
// ─────────────────────────────────────────────────────────────────────────────

// userRepo is the production implementation backed by a db.Querier.
type userRepo struct {
	q db.Querier
}

// NewUserRepo returns a UserRepository backed by q.
// q can be a *db.DB or *db.Tx — both satisfy db.Querier; the connection
// provider is always injected here, never resolved ad hoc.
func NewUserRepo(q db.Querier) UserRepository {
	return &userRepo{q: q}
}

// ─────────────────────────────────────────────────────────────────────────────
// SQL constants — all SQL is explicit, version-controlled, and reviewable
// ─────────────────────────────────────────────────────────────────────────────

// userColumns is the canonical column order. scanUser and every statement
// below depend on it; change both together.
const userColumns = "id, name, email, department, role, active, created_at, updated_at"

const (
	sqlInsertUser = `
		INSERT INTO users (name, email, department, role, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		RETURNING ` + userColumns

	sqlTransferUser = `
		INSERT INTO users (name, email, department, role, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	sqlGetUserByID = `
		SELECT ` + userColumns + `
		FROM   users
		WHERE  id = $1
		LIMIT  1`

	sqlGetUserByEmail = `
		SELECT ` + userColumns + `
		FROM   users
		WHERE  email = $1
		LIMIT  1`

	sqlListUsers = `
		SELECT ` + userColumns + `
		FROM   users
		ORDER  BY created_at DESC`

	sqlUsersByDepartment = `
		SELECT ` + userColumns + `
		FROM   users
		WHERE  department = $1 AND active = $2
		ORDER  BY name ASC`

	sqlCountByDepartment = `
		SELECT COUNT(*) FROM users WHERE department = $1 AND active = $2`

	sqlUpdateUser = `
		UPDATE users
		SET    name = $1, email = $2, department = $3, role = $4,
		       active = $5, updated_at = $6
		WHERE  id = $7`

	sqlDeleteUser = `
		DELETE FROM users WHERE id = $1`
)

// ─────────────────────────────────────────────────────────────────────────────
// Insert
// ─────────────────────────────────────────────────────────────────────────────

// Insert creates a new user and returns the persisted record including the
// database-assigned id. The active flag is forced to true and created_at and
// updated_at are set to the same instant. Duplicate emails are reported by
// the database's unique constraint (db.ErrDuplicateKey), never by a
// pre-check.
func (r *userRepo) Insert(ctx context.Context, params models.CreateUserParams) (*models.User, error) {
	now := time.Now().UTC()
	row := r.q.QueryRow(ctx, sqlInsertUser,
		params.Name, params.Email, params.Department, params.Role, true, now)
	u, err := scanUser(row)
	if err != nil {
		if db.IsNotFound(err) {
			// INSERT .. RETURNING produced no row: the write did not happen.
			return nil, &db.DBError{Sentinel: db.ErrStatementFailed, Cause: err, Message: "insert affected no rows"}
		}
		return nil, err
	}
	return u, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// GetByID / GetByEmail
// ─────────────────────────────────────────────────────────────────────────────

// GetByID returns a single user by primary key.
// Returns db.ErrNotFound when no record matches; that is a valid outcome,
// not a statement failure.
func (r *userRepo) GetByID(ctx context.Context, id int64) (*models.User, error) {
	row := r.q.QueryRow(ctx, sqlGetUserByID, id)
	return scanUser(row)
}

// GetByEmail looks up a user by their unique email address.
// Returns db.ErrNotFound when no record matches.
func (r *userRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	row := r.q.QueryRow(ctx, sqlGetUserByEmail, email)
	return scanUser(row)
}

// ─────────────────────────────────────────────────────────────────────────────
// List / GetByDepartment / CountByDepartment
// ─────────────────────────────────────────────────────────────────────────────

// List returns every user, most recently created first.
func (r *userRepo) List(ctx context.Context) ([]*models.User, error) {
	rows, err := r.q.Query(ctx, sqlListUsers)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectUsers(rows)
}

// GetByDepartment returns the active users of one department ordered by
// name. Inactive rows are excluded.
func (r *userRepo) GetByDepartment(ctx context.Context, department string) ([]*models.User, error) {
	rows, err := r.q.Query(ctx, sqlUsersByDepartment, department, true)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectUsers(rows)
}

// CountByDepartment counts the active users of one department.
// A department with no rows counts as zero; it is not an error.
func (r *userRepo) CountByDepartment(ctx context.Context, department string) (int64, error) {
	var n int64
	if err := r.q.QueryRow(ctx, sqlCountByDepartment, department, true).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Search — dynamic filters
// ─────────────────────────────────────────────────────────────────────────────

// Search runs a dynamically assembled SELECT for the given filter. Absent
// filter fields contribute no predicate at all. Predicates are appended in a
// fixed order (department, role, active) and each one carries its bound
// value into the builder in the same call, so the parameter list cannot
// drift from the placeholders. Results are always paginated and ordered by
// id ascending.
func (r *userRepo) Search(ctx context.Context, query models.UserQuery) ([]*models.User, error) {
	if query.Size <= 0 {
		return nil, fmt.Errorf("repo/user: page size must be positive, got %d", query.Size)
	}
	page := query.Page
	if page < 0 {
		page = 0
	}

	b := db.NewSelect(userColumns, "users")
	if query.Department != nil {
		b.Where("department", "=", *query.Department)
	}
	if query.Role != nil {
		b.Where("role", "=", *query.Role)
	}
	if query.Active != nil {
		b.Where("active", "=", *query.Active)
	}
	b.OrderBy("id ASC").Paginate(page, query.Size)

	stmt, args := b.Build()
	rows, err := r.q.Query(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectUsers(rows)
}

// ─────────────────────────────────────────────────────────────────────────────
// Update — full-row write-back
// ─────────────────────────────────────────────────────────────────────────────

// Update merges the non-nil fields of params into the stored record, writes
// the full row back with a fresh updated_at, and re-reads the row to return
// the authoritative stored state. Returns db.ErrNotFound when the id does
// not exist.
//
// The read-merge-write sequence is not atomic under concurrent writers: the
// last writer overwrites the full row, so a concurrent update to an
// unrelated field can be lost. Concurrency control is delegated to the
// database's transaction isolation.
func (r *userRepo) Update(ctx context.Context, id int64, params models.UpdateUserParams) (*models.User, error) {
	existing, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	params.Apply(existing)
	now := time.Now().UTC()

	res, err := r.q.Exec(ctx, sqlUpdateUser,
		existing.Name, existing.Email, existing.Department, existing.Role,
		existing.Active, now, id)
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, &db.DBError{Sentinel: db.ErrStatementFailed, Cause: err, Message: "rows affected"}
	}
	if n == 0 {
		// The row existed a moment ago; a concurrent delete won the race.
		return nil, &db.DBError{Sentinel: db.ErrStatementFailed, Message: fmt.Sprintf("update of user %d affected no rows", id)}
	}

	return r.GetByID(ctx, id)
}

// ─────────────────────────────────────────────────────────────────────────────
// Delete
// ─────────────────────────────────────────────────────────────────────────────

// Delete removes a user by id. It reports whether a row was removed; a
// missing id yields (false, nil), never an error. The removal is permanent.
func (r *userRepo) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := r.q.Exec(ctx, sqlDeleteUser, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, &db.DBError{Sentinel: db.ErrStatementFailed, Cause: err, Message: "rows affected"}
	}
	return n > 0, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// TransferUsers — all-or-nothing import
// ─────────────────────────────────────────────────────────────────────────────

// TransferUsers inserts every given user as a new row inside one transaction
// scope. Any single failure rolls the entire set back; either all users are
// persisted or none are. A user's CreatedAt is preserved when supplied and
// defaults to now; UpdatedAt is always set to now.
func TransferUsers(ctx context.Context, d *db.DB, users []models.User) error {
	if len(users) == 0 {
		return nil
	}
	return d.ExecTx(ctx, func(tx *db.Tx) error {
		stmt, err := tx.Prepare(ctx, sqlTransferUser)
		if err != nil {
			return err
		}
		defer stmt.Close()

		now := time.Now().UTC()
		for _, u := range users {
			createdAt := now
			if u.CreatedAt != nil {
				createdAt = *u.CreatedAt
			}
			if _, err := stmt.Exec(ctx,
				u.Name, u.Email, u.Department, u.Role, u.Active, createdAt, now); err != nil {
				return fmt.Errorf("repo/user: transfer %q: %w", u.Email, err)
			}
		}
		return nil
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// BatchInsertUsers — per-row accounting
// ─────────────────────────────────────────────────────────────────────────────

// BatchInsertUsers submits all rows as one batch under a single transaction
// scope and returns the number of rows the backend reports as inserted. A
// row the driver reports as successful without a precise count still counts
// as one. An empty input is a no-op returning zero. A statement-level
// failure rolls the whole batch back and surfaces as a db error; a partial
// batch is never committed.
func BatchInsertUsers(ctx context.Context, d *db.DB, params []models.CreateUserParams) (int, error) {
	now := time.Now().UTC()
	return db.BatchExec(d, ctx, sqlTransferUser, params,
		func(p models.CreateUserParams) []any {
			return []any{p.Name, p.Email, p.Department, p.Role, true, now, now}
		})
}

// ─────────────────────────────────────────────────────────────────────────────
// scanUser — centralised column mapping
// ─────────────────────────────────────────────────────────────────────────────

// rowScanner is satisfied by *db.Row and lets collectUsers share the mapping
// code with single-row lookups via *db.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanUser scans a single user row in userColumns order. Centralising the
// scan call means that adding or removing columns only requires a change in
// one place. department and role are nullable columns; NULL reads back as
// the empty string. NULL timestamps become nil pointers, not zero times.
func scanUser(row rowScanner) (*models.User, error) {
	u := &models.User{}
	var department, role sql.NullString
	var createdAt, updatedAt sql.NullTime
	err := row.Scan(&u.ID, &u.Name, &u.Email, &department, &role, &u.Active,
		&createdAt, &updatedAt)
	if err != nil {
		return nil, fmt.Errorf("repo/user: %w", err)
	}
	u.Department = department.String
	u.Role = role.String
	if createdAt.Valid {
		u.CreatedAt = &createdAt.Time
	}
	if updatedAt.Valid {
		u.UpdatedAt = &updatedAt.Time
	}
	return u, nil
}

// collectUsers drains rows into a slice using the shared mapping.
func collectUsers(rows *db.Rows) ([]*models.User, error) {
	var users []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, &db.DBError{Sentinel: db.ErrMapping, Cause: err}
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, &db.DBError{Sentinel: db.ErrStatementFailed, Cause: err}
	}
	return users, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Compile-time interface assertion
// ─────────────────────────────────────────────────────────────────────────────

var _ UserRepository = (*userRepo)(nil)

// ─────────────────────────────────────────────────────────────────────────────
// Null helpers
// ─────────────────────────────────────────────────────────────────────────────

// NullString converts *string to sql.NullString for optional columns.
func NullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
