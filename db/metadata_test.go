// db/metadata_test.go — introspection tests against in-memory SQLite.
package db_test

import (
	"context"
	"strings"
	"testing"

	"github.com/Skryldev/userkit/db"
)

func TestTestConnection(t *testing.T) {
	d := newTestDB(t)

	status, err := d.TestConnection(context.Background())
	if err != nil {
		t.Fatalf("test connection: %v", err)
	}
	if !strings.HasPrefix(status, "connected to SQLite ") {
		t.Fatalf("unexpected status: %q", status)
	}
	if !strings.Contains(status, "diagnostic: 1") {
		t.Fatalf("status missing diagnostic result: %q", status)
	}
}

func TestInfo(t *testing.T) {
	d := newTestDB(t)

	info, err := d.Info(context.Background())
	if err != nil {
		t.Fatalf("info: %v", err)
	}
	if info.Product != "SQLite" {
		t.Fatalf("product = %q", info.Product)
	}
	if info.ProductVersion == "" {
		t.Fatal("expected non-empty version")
	}
	if info.DriverName != "sqlite3" {
		t.Fatalf("driver = %q", info.DriverName)
	}
	if !info.SupportsTransactions || !info.SupportsBatch {
		t.Fatalf("unexpected capabilities: %+v", info)
	}
	// SQLite DSNs carry no credentials.
	if info.User != "" {
		t.Fatalf("expected empty user, got %q", info.User)
	}
}

func TestTableColumns(t *testing.T) {
	d := newTestDB(t)

	cols, err := d.TableColumns(context.Background(), "users")
	if err != nil {
		t.Fatalf("table columns: %v", err)
	}
	if len(cols) != 8 {
		t.Fatalf("expected 8 columns, got %d", len(cols))
	}

	if cols[0].Name != "id" || cols[0].Position != 1 {
		t.Fatalf("first column: %+v", cols[0])
	}
	byName := make(map[string]int)
	for i, c := range cols {
		byName[c.Name] = i
	}
	for _, want := range []string{"name", "email", "department", "role", "active", "created_at", "updated_at"} {
		if _, ok := byName[want]; !ok {
			t.Fatalf("missing column %q in %+v", want, cols)
		}
	}

	// NOT NULL columns must be reported as non-nullable.
	if cols[byName["name"]].Nullable {
		t.Fatal("name should be NOT NULL")
	}
	if !cols[byName["department"]].Nullable {
		t.Fatal("department should be nullable")
	}
}

func TestTableColumns_UnknownTable(t *testing.T) {
	d := newTestDB(t)

	_, err := d.TableColumns(context.Background(), "no_such_table")
	if !db.IsNotFound(err) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
