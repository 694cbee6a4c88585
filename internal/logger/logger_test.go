package logger

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestNew_WritesDailyFile(t *testing.T) {
	prev := zap.L()
	t.Cleanup(func() { zap.ReplaceGlobals(prev) })

	dir := filepath.Join(t.TempDir(), "logs")
	log, err := New(Options{Dir: dir, Level: "debug"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	log.Info("hello")
	_ = log.Sync()

	name := filepath.Join(dir, time.Now().Format("2006-01-02")+".log")
	if _, err := os.Stat(name); err != nil {
		t.Fatalf("log file missing: %v", err)
	}
	if zap.L() != log {
		t.Fatalf("global logger was not replaced")
	}
}

func TestOrGlobal(t *testing.T) {
	if OrGlobal(nil) == nil {
		t.Fatal("OrGlobal(nil) returned nil")
	}
	l := zap.NewNop()
	if OrGlobal(l) != l {
		t.Fatal("OrGlobal did not return the supplied logger")
	}
}
