package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewPerEnvironment(t *testing.T) {
	for _, env := range []string{"prod", "local", "dev", "docker"} {
		l, err := New(env)
		if err != nil {
			t.Errorf("New(%q): %v", env, err)
			continue
		}
		_ = l.Sync()
	}
}

func TestNewUnknownEnvironment(t *testing.T) {
	if _, err := New("staging"); err == nil {
		t.Fatal("expected error for unknown environment")
	}
}

func TestNewLevelOverride(t *testing.T) {
	l, err := New("prod", "warn")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if l.Core().Enabled(zapcore.InfoLevel) {
		t.Error("info should be disabled at warn level")
	}
	if !l.Core().Enabled(zapcore.WarnLevel) {
		t.Error("warn should be enabled")
	}
}

func TestNewInvalidLevel(t *testing.T) {
	if _, err := New("prod", "loud"); err == nil {
		t.Fatal("expected error for invalid level")
	}
}
