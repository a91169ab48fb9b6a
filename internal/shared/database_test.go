package shared

import "testing"

func TestRebind(t *testing.T) {
	tt := []struct {
		name   string
		driver string
		query  string
		want   string
	}{
		{
			name:   "sqlite unchanged",
			driver: DriverSQLite,
			query:  "SELECT * FROM users WHERE id = ? AND email = ?",
			want:   "SELECT * FROM users WHERE id = ? AND email = ?",
		},
		{
			name:   "postgres numbered",
			driver: DriverPostgres,
			query:  "SELECT * FROM users WHERE id = ? AND email = ?",
			want:   "SELECT * FROM users WHERE id = $1 AND email = $2",
		},
		{
			name:   "postgres skips string literals",
			driver: DriverPostgres,
			query:  "SELECT '?' FROM users WHERE id = ?",
			want:   "SELECT '?' FROM users WHERE id = $1",
		},
		{
			name:   "no placeholders",
			driver: DriverPostgres,
			query:  "SELECT 1",
			want:   "SELECT 1",
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			if got := Rebind(tc.driver, tc.query); got != tc.want {
				t.Errorf("Rebind() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestOpenDatabase(t *testing.T) {
	t.Run("memory sqlite", func(t *testing.T) {
		db, err := NewDatabase(":memory:")
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()

		var fk int
		if err := db.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil {
			t.Fatalf("failed to read pragma: %v", err)
		}
		if fk != 1 {
			t.Errorf("expected foreign keys enabled, got %d", fk)
		}
	})

	t.Run("file sqlite", func(t *testing.T) {
		db, err := OpenDatabase(DriverSQLite, t.TempDir()+"/statify.db")
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()
		ConfigureDatabase(db, 4, 2)
		if got := db.Stats().MaxOpenConnections; got != 4 {
			t.Errorf("expected 4 max open connections, got %d", got)
		}
	})

	t.Run("unsupported driver", func(t *testing.T) {
		if _, err := OpenDatabase("mysql", "dsn"); err == nil {
			t.Error("expected error for unsupported driver")
		}
	})
}
