package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestNewParsesLevel(t *testing.T) {
	if got := New("debug").GetLevel(); got != logrus.DebugLevel {
		t.Fatalf("level: want=%v got=%v", logrus.DebugLevel, got)
	}
	if got := New("nonsense").GetLevel(); got != logrus.InfoLevel {
		t.Fatalf("fallback level: want=%v got=%v", logrus.InfoLevel, got)
	}
}

func TestFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fitrooms.log")
	l := NewWithOptions(Options{Level: "info", File: path})

	WithFields(l, logrus.Fields{"job": "settle"}).Info("Job finished")

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(raw), "job=settle") {
		t.Fatalf("log line: want job=settle got=%q", raw)
	}
}
