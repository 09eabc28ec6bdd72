package repo

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gorm.io/gorm"

	"github.com/tbourn/vibe-check/internal/domain"
)

func closeDB(t *testing.T, db *gorm.DB) {
	t.Helper()
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
}

func TestOpen_Dispatch(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	rel, err := filepath.Rel(wd, dir)
	if err != nil {
		t.Skipf("temp dir not reachable relatively: %v", err)
	}
	rel = filepath.ToSlash(rel)
	// sqlite:/// is followed by a relative path, sqlite://// by an absolute one.
	cases := []struct {
		name string
		dsn  string
	}{
		{"sqlite relative", "sqlite:///" + rel + "/a.db"},
		{"sqlite absolute", "sqlite:///" + filepath.ToSlash(filepath.Join(dir, "b.db"))},
		{"sqlite short scheme", "sqlite://" + rel + "/c.db"},
		{"bare path", filepath.Join(dir, "d.db")},
		{"memory", "file:dispatch?mode=memory&cache=shared"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			db, err := Open("  " + tc.dsn + " ")
			if err != nil {
				t.Fatalf("Open(%q): %v", tc.dsn, err)
			}
			closeDB(t, db)
			if got := db.Dialector.Name(); got != "sqlite" {
				t.Fatalf("dialect = %s", got)
			}
		})
	}

	if _, err := Open(" "); err != ErrEmptyDSN {
		t.Fatalf("blank DSN: want ErrEmptyDSN, got %v", err)
	}
}

func TestOpenSQLite_MissingDirectory(t *testing.T) {
	bad := filepath.Join(t.TempDir(), "nope", "vibecheck.db")
	db, err := OpenSQLite(bad)
	if err == nil || db != nil {
		t.Fatalf("expected error, got db=%v err=%v", db, err)
	}
	if !os.IsNotExist(err) && !strings.Contains(strings.ToLower(err.Error()), "unable to open") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestOpenSQLite_Pragmas(t *testing.T) {
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "vibecheck.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	closeDB(t, db)

	checks := []struct {
		pragma string
		want   string
	}{
		{"journal_mode", "wal"},
		{"synchronous", "1"},
		{"foreign_keys", "1"},
		{"busy_timeout", "5000"},
	}
	for _, c := range checks {
		var got string
		if err := db.Raw("PRAGMA " + c.pragma + ";").Row().Scan(&got); err != nil {
			t.Fatalf("PRAGMA %s: %v", c.pragma, err)
		}
		if strings.ToLower(got) != c.want {
			t.Fatalf("PRAGMA %s = %q; want %q", c.pragma, got, c.want)
		}
	}

	sqlDB, _ := db.DB()
	if n := sqlDB.Stats().MaxOpenConnections; n != 10 {
		t.Fatalf("MaxOpenConnections = %d", n)
	}
}

func TestAutoMigrate_CascadesFromWorkspace(t *testing.T) {
	db, err := Open("file:migrate?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	closeDB(t, db)
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	// Idempotent.
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("second AutoMigrate: %v", err)
	}

	ws := &domain.Workspace{TeamID: "T0CASCADE", TeamName: "Acme", IsActive: true}
	if err := db.Create(ws).Error; err != nil {
		t.Fatalf("workspace: %v", err)
	}
	cl := &domain.Client{
		WorkspaceID: ws.ID, SlackUserID: "U0CASCADE", DisplayName: "Dana", Timezone: "UTC", IsActive: true,
		StandupConfig: &domain.StandupConfig{ScheduleType: "daily", ScheduleTime: "09:00"},
	}
	if err := db.Create(cl).Error; err != nil {
		t.Fatalf("client: %v", err)
	}

	if err := db.Delete(&domain.Workspace{}, ws.ID).Error; err != nil {
		t.Fatalf("delete workspace: %v", err)
	}
	var clients, configs int64
	db.Model(&domain.Client{}).Where("workspace_id = ?", ws.ID).Count(&clients)
	db.Model(&domain.StandupConfig{}).Where("client_id = ?", cl.ID).Count(&configs)
	if clients != 0 || configs != 0 {
		t.Fatalf("cascade left clients=%d configs=%d", clients, configs)
	}
}

func TestInstrument(t *testing.T) {
	db, err := Open("file:instrument?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	closeDB(t, db)
	if err := Instrument(db); err != nil {
		t.Fatalf("Instrument: %v", err)
	}
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate after Instrument: %v", err)
	}
}
