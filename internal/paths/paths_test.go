package paths_test

import (
	"path/filepath"
	"testing"

	"github.com/quickhand-app/quickhand/internal/paths"
)

func TestValidateTaskIDGood(t *testing.T) {
	good := []string{"task-1", "a", "A0._-", "7b4f0c2e-9d1a-4f6b-8a3c-1e2d3f4a5b6c"}
	for _, s := range good {
		if err := paths.ValidateTaskID(s); err != nil {
			t.Fatalf("expected valid for %q, got %v", s, err)
		}
	}
}

func TestValidateTaskIDBad(t *testing.T) {
	bad := []string{"", "a/b", "a\\b", "../x", "..\\x", "/abs", "C:\\x", "a b", "toolongtoolongtoolongtoolongtoolongtoolongtoolongtoolongtoolong"}
	for _, s := range bad {
		if err := paths.ValidateTaskID(s); err == nil {
			t.Fatalf("expected invalid for %q", s)
		}
	}
}

func TestLayout(t *testing.T) {
	home := "/home/u"
	if got := paths.AppDir(home); got != filepath.Join(home, ".quickhand") {
		t.Fatalf("app dir: %s", got)
	}
	if got := paths.ConfigPath(home); got != filepath.Join(home, ".quickhand", "config.toml") {
		t.Fatalf("config path: %s", got)
	}
	if got := paths.DBPath(home); got != filepath.Join(home, ".quickhand", "quickhand.db") {
		t.Fatalf("db path: %s", got)
	}
}
