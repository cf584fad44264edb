package migrate

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"testing"
	"testing/fstest"

	_ "github.com/mattn/go-sqlite3"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRun_CreatesSchema(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	n, err := Run(ctx, db, discard())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if n != 1 {
		t.Errorf("applied = %d, want 1", n)
	}

	for _, table := range []string{"weather_records", "weather_stats", tableName} {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}
}

func TestRun_Idempotent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if _, err := Run(ctx, db, discard()); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	n, err := Run(ctx, db, discard())
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if n != 0 {
		t.Errorf("second run applied %d migrations, want 0", n)
	}

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM ` + tableName).Scan(&count); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	if count != 1 {
		t.Errorf("recorded migrations = %d, want 1", count)
	}
}

func TestRun_SchemaEnforcesUniqueness(t *testing.T) {
	db := openTestDB(t)
	if _, err := Run(context.Background(), db, discard()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	insert := `INSERT INTO weather_records (station, date, max_temp, min_temp, precip) VALUES ('USC00110072', '2014-08-01', 278, 161, 224)`
	if _, err := db.Exec(insert); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if _, err := db.Exec(insert); err == nil {
		t.Fatal("duplicate (station, date) accepted")
	}

	stat := `INSERT INTO weather_stats (station, year, max_temp_avg, min_temp_avg, precip_total) VALUES ('USC00110072', 2014, NULL, NULL, NULL)`
	if _, err := db.Exec(stat); err != nil {
		t.Fatalf("stat insert with NULL aggregates: %v", err)
	}
	if _, err := db.Exec(stat); err == nil {
		t.Fatal("duplicate (station, year) accepted")
	}
}

func TestRun_AppliesInVersionOrder(t *testing.T) {
	db := openTestDB(t)
	fsys := fstest.MapFS{
		"sql/0002_second.sql": {Data: []byte(`INSERT INTO t (v) VALUES ('second');`)},
		"sql/0001_first.sql":  {Data: []byte(`CREATE TABLE t (id INTEGER PRIMARY KEY AUTOINCREMENT, v TEXT); INSERT INTO t (v) VALUES ('first');`)},
		"sql/README.md":       {Data: []byte(`ignored`)},
	}

	n, err := run(context.Background(), db, fsys, discard())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if n != 2 {
		t.Fatalf("applied = %d, want 2", n)
	}

	rows, err := db.Query(`SELECT v FROM t ORDER BY id`)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	defer func() { _ = rows.Close() }()
	var got []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			t.Fatalf("scan: %v", err)
		}
		got = append(got, v)
	}
	if len(got) != 2 || got[0] != "first" || got[1] != "second" {
		t.Errorf("rows = %v, want [first second]", got)
	}
}

func TestRun_FailedMigrationNotRecorded(t *testing.T) {
	db := openTestDB(t)
	fsys := fstest.MapFS{
		"sql/0001_broken.sql": {Data: []byte(`CREATE TABLE ok (id INTEGER); NOT VALID SQL;`)},
	}

	if _, err := run(context.Background(), db, fsys, discard()); err == nil {
		t.Fatal("expected error for broken migration")
	}

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM ` + tableName).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Errorf("recorded migrations = %d, want 0", count)
	}
}

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		in          string
		wantVersion string
		wantName    string
		wantOK      bool
	}{
		{"0001_schema.sql", "0001", "schema", true},
		{"0012_add_index.sql", "0012", "add_index", true},
		{"1_schema.sql", "", "", false},
		{"0001_schema.txt", "", "", false},
		{"schema.sql", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			v, n, ok := parseMigrationFilename(tt.in)
			if v != tt.wantVersion || n != tt.wantName || ok != tt.wantOK {
				t.Errorf("parseMigrationFilename(%q) = (%q, %q, %v), want (%q, %q, %v)",
					tt.in, v, n, ok, tt.wantVersion, tt.wantName, tt.wantOK)
			}
		})
	}
}
