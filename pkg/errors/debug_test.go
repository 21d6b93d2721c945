package errors

import (
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestDumpCollectsChainAndCode(t *testing.T) {
	err := fmt.Errorf("persist order: %w", Wrap(CodeDependency, fmt.Errorf("disk full"), "insert order"))
	d := Dump(err)

	if d.Code != CodeDependency {
		t.Fatalf("expected dependency code, got %s", d.Code)
	}
	if !d.Retryable {
		t.Fatalf("expected dependency errors to be retryable")
	}
	if len(d.Chain) != 3 {
		t.Fatalf("expected 3 chain entries, got %d: %v", len(d.Chain), d.Chain)
	}
	if _, ok := d.Fields()["pg_code"]; ok {
		t.Fatalf("pg fields should be omitted for non-postgres errors")
	}
}

func TestDumpExtractsPostgresDetails(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23514", ConstraintName: "products_inventory_count_check", TableName: "products"}
	d := Dump(Wrap(CodeDependency, pgErr, "update inventory"))

	if d.PGCode != "23514" || d.PGTable != "products" {
		t.Fatalf("unexpected pg details %+v", d)
	}
	if d.Fields()["pg_constraint"] != "products_inventory_count_check" {
		t.Fatalf("expected constraint in fields")
	}
}

func TestDumpNil(t *testing.T) {
	if d := Dump(nil); d.TopMessage != "" || d.Chain != nil {
		t.Fatalf("expected empty dump, got %+v", d)
	}
}
