// db/builder_test.go — tests for the dynamic SELECT builder.
package db_test

import (
	"reflect"
	"testing"

	"github.com/Skryldev/userkit/db"
)

func TestSelectBuilder_NoFilters(t *testing.T) {
	query, args := db.NewSelect("id, name", "users").Build()

	if query != "SELECT id, name FROM users" {
		t.Fatalf("unexpected query: %q", query)
	}
	if len(args) != 0 {
		t.Fatalf("expected no args, got %v", args)
	}
}

func TestSelectBuilder_SingleWhere(t *testing.T) {
	query, args := db.NewSelect("id", "users").
		Where("department", "=", "Sales").
		Build()

	want := "SELECT id FROM users WHERE department = $1"
	if query != want {
		t.Fatalf("query = %q, want %q", query, want)
	}
	if !reflect.DeepEqual(args, []any{"Sales"}) {
		t.Fatalf("args = %v", args)
	}
}

func TestSelectBuilder_PredicatesAndArgsStayPaired(t *testing.T) {
	query, args := db.NewSelect("*", "users").
		Where("department", "=", "IT").
		Where("role", "=", "Developer").
		Where("active", "=", true).
		Build()

	want := "SELECT * FROM users WHERE department = $1 AND role = $2 AND active = $3"
	if query != want {
		t.Fatalf("query = %q, want %q", query, want)
	}
	if !reflect.DeepEqual(args, []any{"IT", "Developer", true}) {
		t.Fatalf("args = %v", args)
	}
}

func TestSelectBuilder_OrderByAndPagination(t *testing.T) {
	query, args := db.NewSelect("id", "users").
		Where("active", "=", true).
		OrderBy("id ASC").
		Paginate(2, 10). // third page of ten
		Build()

	want := "SELECT id FROM users WHERE active = $1 ORDER BY id ASC LIMIT $2 OFFSET $3"
	if query != want {
		t.Fatalf("query = %q, want %q", query, want)
	}
	if !reflect.DeepEqual(args, []any{true, 10, 20}) {
		t.Fatalf("args = %v", args)
	}
}

func TestSelectBuilder_PaginateFirstPage(t *testing.T) {
	_, args := db.NewSelect("id", "users").Paginate(0, 25).Build()

	if !reflect.DeepEqual(args, []any{25, 0}) {
		t.Fatalf("args = %v", args)
	}
}

// A returned parameter list must survive later mutations of the builder.
func TestSelectBuilder_BuildDoesNotAliasBuilderState(t *testing.T) {
	b := db.NewSelect("id", "users")
	for i := 0; i < 5; i++ {
		b.Where("department", "=", i)
	}
	b.Paginate(0, 10)

	_, first := b.Build()
	want := append([]any{}, first...)

	b.Where("role", "=", "Intruder")
	_, _ = b.Build()

	if !reflect.DeepEqual(first, want) {
		t.Fatalf("args from first Build changed: %v, want %v", first, want)
	}
}

// Placeholder numbering must keep counting across filters into LIMIT/OFFSET.
func TestSelectBuilder_PlaceholderNumberingIsContinuous(t *testing.T) {
	query, _ := db.NewSelect("id", "users").
		Where("department", "<>", "HR").
		Where("role", "LIKE", "%Lead%").
		Paginate(1, 5).
		Build()

	want := "SELECT id FROM users WHERE department <> $1 AND role LIKE $2 LIMIT $3 OFFSET $4"
	if query != want {
		t.Fatalf("query = %q, want %q", query, want)
	}
}
