package models

import "time"

// User represents a row in the "users" table.
// Fields map 1-to-1 with columns; no automatic relation loading.
//
// CreatedAt and UpdatedAt are pointers because the columns are nullable:
// a nil pointer means the timestamp is absent, which is distinct from the
// zero time.Time value.
type User struct {
	ID         int64
	Name       string
	Email      string
	Department string
	Role       string
	Active     bool
	CreatedAt  *time.Time
	UpdatedAt  *time.Time
}

// CreateUserParams holds the fields required to create a new user.
// Keeping input types separate from the domain model prevents accidental
// mass-assignment and makes API contracts explicit. The id, active flag
// and timestamps are assigned by the repository, never by the caller.
type CreateUserParams struct {
	Name       string
	Email      string
	Department string
	Role       string
}

// UpdateUserParams holds fields that can be updated. All fields are pointers
// so callers only set what needs changing; nil fields leave the stored value
// untouched. UpdatedAt is always refreshed by the repository.
type UpdateUserParams struct {
	Name       *string
	Email      *string
	Department *string
	Role       *string
	Active     *bool
}

// Apply merges the non-nil fields of p into u.
func (p UpdateUserParams) Apply(u *User) {
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.Department != nil {
		u.Department = *p.Department
	}
	if p.Role != nil {
		u.Role = *p.Role
	}
	if p.Active != nil {
		u.Active = *p.Active
	}
}

// UserQuery is the optional-filter request for dynamic searches.
// A nil filter field means "no predicate for this column", which is not the
// same as matching any particular value. Page is zero-based; Size must be
// a positive integer.
type UserQuery struct {
	Department *string
	Role       *string
	Active     *bool
	Page       int
	Size       int
}

// ColumnInfo describes one column of a table, as reported by schema
// introspection. It is never persisted.
type ColumnInfo struct {
	Name     string
	DataType string
	Size     int64
	Nullable bool
	Position int64
}

// DatabaseInfo is the structured report returned by db.Info.
type DatabaseInfo struct {
	Product              string
	ProductVersion       string
	DriverName           string
	URL                  string // DSN with any password redacted
	User                 string
	MaxOpenConns         int
	SupportsTransactions bool
	SupportsBatch        bool
}
