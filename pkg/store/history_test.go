package store

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestHistory(t *testing.T) *History {
	t.Helper()
	h, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { h.Close() })
	return h
}

func TestAppendAssignsID(t *testing.T) {
	h := openTestHistory(t)

	rec := &Record{Kind: "compose", Name: "migrate", Argv: "docker compose run --rm session python manage.py migrate"}
	if err := h.Append(rec); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if rec.ID == "" {
		t.Error("Append must assign an ID")
	}
	if rec.StartedAt.IsZero() {
		t.Error("Append must default StartedAt")
	}
}

func TestListNewestFirst(t *testing.T) {
	h := openTestHistory(t)

	base := time.Now().Add(-time.Hour)
	for i, name := range []string{"build", "migrate", "down"} {
		rec := &Record{
			Kind:      "compose",
			Name:      name,
			Argv:      "docker compose " + name,
			StartedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := h.Append(rec); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	records, err := h.List(10)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	if records[0].Name != "down" || records[2].Name != "build" {
		t.Errorf("records not newest-first: %s, %s, %s",
			records[0].Name, records[1].Name, records[2].Name)
	}
}

func TestListLimit(t *testing.T) {
	h := openTestHistory(t)

	for i := 0; i < 5; i++ {
		if err := h.Append(&Record{Kind: "launch", Name: "beat", Argv: "celery beat"}); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	records, err := h.List(2)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("expected 2 records, got %d", len(records))
	}
}

func TestRoundTripFields(t *testing.T) {
	h := openTestHistory(t)

	started := time.Now().Add(-time.Minute).UTC().Truncate(time.Second)
	finished := started.Add(30 * time.Second)
	rec := &Record{
		Kind:       "launch",
		Name:       "beat",
		Argv:       "celery -A app.core.celery_app beat -l INFO",
		StartedAt:  started,
		FinishedAt: finished,
		ExitCode:   7,
		Reason:     "error",
	}
	if err := h.Append(rec); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	records, err := h.List(1)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	got := records[0]
	if got.ExitCode != 7 || got.Reason != "error" {
		t.Errorf("exit fields lost: code=%d reason=%q", got.ExitCode, got.Reason)
	}
	if !got.FinishedAt.Equal(finished) {
		t.Errorf("finished_at = %v, want %v", got.FinishedAt, finished)
	}
}

func TestFormatArgv(t *testing.T) {
	got := FormatArgv([]string{"docker", "compose", "down", "-v"})
	if got != "docker compose down -v" {
		t.Errorf("FormatArgv = %q", got)
	}
}
