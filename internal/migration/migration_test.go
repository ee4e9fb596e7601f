package migration

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	_ "modernc.org/sqlite"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func files(m map[string]string) fstest.MapFS {
	out := fstest.MapFS{}
	for name, body := range m {
		out[name] = &fstest.MapFile{Data: []byte(body)}
	}
	return out
}

func TestApplyFromScratch(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	r := NewRunner(db, files(map[string]string{
		"001_init.sql":   "CREATE TABLE a (id INTEGER);",
		"002_second.sql": "CREATE TABLE b (id INTEGER);",
		"README.md":      "ignored",
	}), SQLite)

	n, err := r.Apply(ctx)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if n != 2 {
		t.Errorf("applied %d, want 2", n)
	}

	v, err := r.CurrentVersion(ctx)
	if err != nil || v != 2 {
		t.Errorf("CurrentVersion = %d, %v; want 2", v, err)
	}
	if err := r.Validate(ctx); err != nil {
		t.Errorf("Validate after apply: %v", err)
	}

	n, err = r.Apply(ctx)
	if err != nil || n != 0 {
		t.Errorf("second Apply = %d, %v; want no-op", n, err)
	}
}

func TestApplyRollsBackFailedMigration(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	r := NewRunner(db, files(map[string]string{
		"001_init.sql":   "CREATE TABLE a (id INTEGER);",
		"002_broken.sql": "CREATE TABLE b (id INTEGER); NOT VALID SQL;",
	}), SQLite)

	n, err := r.Apply(ctx)
	if err == nil {
		t.Fatal("expected failure from broken migration")
	}
	if n != 1 {
		t.Errorf("applied %d before failure, want 1", n)
	}
	if v, _ := r.CurrentVersion(ctx); v != 1 {
		t.Errorf("version = %d, want 1", v)
	}
	if err := r.Validate(ctx); err == nil || !strings.Contains(err.Error(), "behind") {
		t.Errorf("Validate = %v, want behind error", err)
	}
}

func TestValidateNewerDatabase(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	r := NewRunner(db, files(map[string]string{"001_init.sql": "CREATE TABLE a (id INTEGER);"}), SQLite)

	if _, err := r.Apply(ctx); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if _, err := db.Exec("UPDATE schema_version SET version = 9"); err != nil {
		t.Fatalf("failed to bump version: %v", err)
	}

	if err := r.Validate(ctx); err == nil || !strings.Contains(err.Error(), "newer") {
		t.Errorf("Validate = %v, want newer-version error", err)
	}
	if _, err := r.Apply(ctx); err == nil {
		t.Error("Apply on a newer database should fail")
	}
}

func TestMigrationsValidation(t *testing.T) {
	tests := []struct {
		name  string
		files map[string]string
	}{
		{"missing underscore", map[string]string{"001.sql": ""}},
		{"non numeric", map[string]string{"abc_init.sql": ""}},
		{"zero version", map[string]string{"000_init.sql": ""}},
		{"duplicate", map[string]string{"001_a.sql": "", "1_b.sql": ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRunner(nil, files(tt.files), SQLite)
			if _, err := r.Migrations(); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestMigrationsSorted(t *testing.T) {
	r := NewRunner(nil, files(map[string]string{
		"010_ten.sql": "",
		"002_two.sql": "",
		"001_one.sql": "",
	}), SQLite)

	ms, err := r.Migrations()
	if err != nil {
		t.Fatalf("Migrations failed: %v", err)
	}
	var got []string
	for _, m := range ms {
		got = append(got, m.Name)
	}
	if strings.Join(got, ",") != "one,two,ten" {
		t.Errorf("order = %v", got)
	}
	if latest, _ := r.LatestVersion(); latest != 10 {
		t.Errorf("LatestVersion = %d, want 10", latest)
	}
}

func TestDialectBind(t *testing.T) {
	if SQLite.bind(1) != "?" || Postgres.bind(2) != "$2" {
		t.Errorf("bind = %q, %q", SQLite.bind(1), Postgres.bind(2))
	}
}
