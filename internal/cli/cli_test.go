package cli

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"

	"github.com/tbourn/vibe-check/internal/scheduler"
	"github.com/tbourn/vibe-check/internal/tokenstore"
)

func init() { color.NoColor = true }

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("DATABASE_URL", fmt.Sprintf("file:cli_%s?mode=memory&cache=shared", uuid.NewString()))

	var out bytes.Buffer
	root := Root("test")
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestGenkey(t *testing.T) {
	out, err := run(t, "genkey")
	if err != nil {
		t.Fatalf("genkey: %v", err)
	}
	if _, err := tokenstore.New(strings.TrimSpace(out)); err != nil {
		t.Fatalf("generated key does not parse: %v (%q)", err, out)
	}
}

func TestMigrate(t *testing.T) {
	out, err := run(t, "migrate")
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if !strings.Contains(out, "schema up to date (sqlite)") {
		t.Fatalf("out=%q", out)
	}
}

func TestJobs_SystemJobs(t *testing.T) {
	t.Setenv("ENABLE_REMINDERS", "true")
	out, err := run(t, "jobs")
	if err != nil {
		t.Fatalf("jobs: %v", err)
	}
	for _, want := range []string{retentionJobID, remindersJobID, retentionSpec} {
		if !strings.Contains(out, want) {
			t.Fatalf("jobs output missing %q:\n%s", want, out)
		}
	}

	t.Setenv("ENABLE_REMINDERS", "false")
	out, _ = run(t, "jobs")
	if strings.Contains(out, remindersJobID) {
		t.Fatalf("reminders disabled but scheduled:\n%s", out)
	}
}

func TestPurge(t *testing.T) {
	out, err := run(t, "purge")
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if !strings.Contains(out, "removed 0 standups, 0 feedback responses, 0 prompt sends") {
		t.Fatalf("out=%q", out)
	}
}

func TestServe_RequiresSlackSettings(t *testing.T) {
	t.Setenv("SLACK_SIGNING_SECRET", "")
	if _, err := run(t, "serve"); err == nil || !strings.Contains(err.Error(), "SLACK_SIGNING_SECRET") {
		t.Fatalf("serve should refuse to start, got %v", err)
	}
}

func TestInvalidConfigFails(t *testing.T) {
	t.Setenv("RATE_BURST", "0")
	if _, err := run(t, "jobs"); err == nil || !strings.Contains(err.Error(), "RATE_BURST") {
		t.Fatalf("want config error, got %v", err)
	}
}

func TestPrintJobs(t *testing.T) {
	var buf bytes.Buffer
	printJobs(&buf, nil)
	if !strings.Contains(buf.String(), "no jobs scheduled") {
		t.Fatalf("empty=%q", buf.String())
	}

	buf.Reset()
	next := time.Date(2025, 3, 3, 14, 0, 0, 0, time.UTC)
	printJobs(&buf, []scheduler.Job{{ID: "standup_1_2", Kind: scheduler.KindStandup, Spec: "CRON_TZ=Europe/London 0 9 * * 1", NextRun: next}})
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[0], "ID") {
		t.Fatalf("table=%q", buf.String())
	}
	if !strings.Contains(lines[1], "standup_1_2") || !strings.Contains(lines[1], "2025-03-03 14:00:00") {
		t.Fatalf("row=%q", lines[1])
	}
}
