package migrations

import (
	"io/fs"
	"strings"
	"testing"
)

func TestEmbeddedSchemaCoversPayrollTables(t *testing.T) {
	names, err := fs.Glob(Files, "*.sql")
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(names) == 0 {
		t.Fatalf("expected embedded migrations")
	}
	var schema strings.Builder
	for _, name := range names {
		body, err := Files.ReadFile(name)
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		schema.Write(body)
	}
	for _, table := range []string{"rate_profiles", "payroll_entries", "review_audit", "idempotency_keys"} {
		if !strings.Contains(schema.String(), "CREATE TABLE IF NOT EXISTS "+table) {
			t.Fatalf("schema missing table %s", table)
		}
	}
}
