package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsSerializationFailure(t *testing.T) {
	serialization := &pgconn.PgError{Code: "40001"}
	if !IsSerializationFailure(serialization) {
		t.Fatalf("expected 40001 to be a serialization failure")
	}
	if !IsSerializationFailure(fmt.Errorf("payroll: insert entry: %w", serialization)) {
		t.Fatalf("expected wrapped 40001 to be detected")
	}
	if IsSerializationFailure(&pgconn.PgError{Code: "23505"}) {
		t.Fatalf("unique violation is not a serialization failure")
	}
	if IsSerializationFailure(errors.New("boom")) || IsSerializationFailure(nil) {
		t.Fatalf("plain errors are not serialization failures")
	}
}
