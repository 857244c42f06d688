package db

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
)

// ─────────────────────────────────────────────────────────────────────────────
// PostgreSQL driver adapter (jackc/pgx via database/sql)
// ─────────────────────────────────────────────────────────────────────────────

// PgxDriver is the pgx-backed PostgreSQL adapter. It shares the lib/pq
// adapter's dialect (same SQL, same SQLSTATE codes) but maps errors through
// the typed *pgconn.PgError instead of parsing error strings.
type PgxDriver struct{}

func (PgxDriver) Name() string    { return "pgx" }
func (PgxDriver) Product() string { return "PostgreSQL" }

func (PgxDriver) DSN(o DriverOptions) (string, error) {
	if o.Host == "" || o.Database == "" {
		return "", fmt.Errorf("pgx driver: Host and Database are required")
	}
	port := o.Port
	if port == 0 {
		port = 5432
	}
	sslMode := o.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		o.User, o.Password, o.Host, port, o.Database, sslMode,
	)
	for k, v := range o.Extra {
		dsn += fmt.Sprintf("&%s=%s", k, v)
	}
	return dsn, nil
}

func (PgxDriver) ErrorMapper() ErrorMapper {
	return ErrorMapperFunc(func(err error) error {
		var pgErr *pgconn.PgError
		if !errors.As(err, &pgErr) {
			return err
		}
		if mapped := mapByPGCode(pgErr.Code, err); mapped != nil {
			return mapped
		}
		return err
	})
}

func (PgxDriver) Register() { /* the stdlib import above self-registers "pgx" */ }

func (PgxDriver) VersionQuery() string { return "SELECT version()" }

func (PgxDriver) ColumnsQuery(table string) (string, []any) {
	return PostgresDriver{}.ColumnsQuery(table)
}

func (PgxDriver) Capabilities() Capabilities {
	return Capabilities{Transactions: true, Batch: true}
}

func init() {
	safeRegister(PgxDriver{})
}
