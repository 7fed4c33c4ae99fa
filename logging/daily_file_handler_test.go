package logging

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"log/slog"
)

func todaysLogFile(t *testing.T, logDir string) string {
	t.Helper()
	name := "steward-" + time.Now().Format("2006-01-02") + ".log"
	data, err := os.ReadFile(filepath.Join(logDir, name))
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	return string(data)
}

func TestDailyFileHandler_WritesToDailyFile(t *testing.T) {
	dir := t.TempDir()
	h, err := NewDailyFileHandler(dir, nil)
	if err != nil {
		t.Fatalf("NewDailyFileHandler failed: %v", err)
	}

	logger := slog.New(h)
	logger.Info("ingestion started", slog.String("file", "agreement.pdf"))

	content := todaysLogFile(t, dir)
	if !strings.Contains(content, "ingestion started") {
		t.Errorf("Log file missing the message, got %q", content)
	}
	if !strings.Contains(content, "file=agreement.pdf") {
		t.Errorf("Log file missing the attribute, got %q", content)
	}
}

func TestDailyFileHandler_ClonesShareFileState(t *testing.T) {
	dir := t.TempDir()
	base, err := NewDailyFileHandler(dir, nil)
	if err != nil {
		t.Fatalf("NewDailyFileHandler failed: %v", err)
	}

	withAttrs := base.WithAttrs([]slog.Attr{slog.String("component", "ingest")}).(*DailyFileHandler)
	withGroup := base.WithGroup("request").(*DailyFileHandler)

	if withAttrs.out != base.out {
		t.Errorf("WithAttrs clone must share the base handler's file state")
	}
	if withGroup.out != base.out {
		t.Errorf("WithGroup clone must share the base handler's file state")
	}

	ctx := context.Background()
	rec := slog.NewRecord(time.Now(), slog.LevelInfo, "from base", 0)
	if err := base.Handle(ctx, rec); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	rec = slog.NewRecord(time.Now(), slog.LevelInfo, "from clone", 0)
	if err := withAttrs.Handle(ctx, rec); err != nil {
		t.Fatalf("Handle via clone failed: %v", err)
	}

	content := todaysLogFile(t, dir)
	if !strings.Contains(content, "from base") || !strings.Contains(content, "from clone") {
		t.Errorf("Base and clone must write to the same file, got %q", content)
	}
}
