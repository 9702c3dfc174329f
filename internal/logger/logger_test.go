package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestToZapLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		InfoLevel:  zapcore.InfoLevel,
		WarnLevel:  zapcore.WarnLevel,
		ErrorLevel: zapcore.ErrorLevel,
		DebugLevel: zapcore.DebugLevel,
		"bogus":    defaultZapLevel,
	}
	for in, want := range cases {
		if got := toZapLevel(in); got != want {
			t.Fatalf("toZapLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestSetLevel_ChangesEnabledLevel(t *testing.T) {
	l := newZapLogger(InfoLevel)
	if l.Desugar().Core().Enabled(zapcore.DebugLevel) {
		t.Fatalf("debug must be disabled at info level")
	}
	l.SetLevel(DebugLevel)
	if !l.Desugar().Core().Enabled(zapcore.DebugLevel) {
		t.Fatalf("debug must be enabled after SetLevel(debug)")
	}
}

func TestTeeToFile_WritesJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "bartender.log")

	l, err := newZapLogger(InfoLevel).TeeToFile(path)
	if err != nil {
		t.Fatalf("TeeToFile: %v", err)
	}
	l.Named("pour").Infow("pour_started", "recipe", "Screwdriver")
	_ = l.Sync()

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	out := string(b)
	if !strings.Contains(out, `"msg":"pour_started"`) || !strings.Contains(out, `"recipe":"Screwdriver"`) {
		t.Fatalf("unexpected log file content: %s", out)
	}
	if !strings.Contains(out, `"logger":"pour"`) {
		t.Fatalf("expected component name in log line: %s", out)
	}
}

func TestNewNop_DoesNotPanic(t *testing.T) {
	l := NewNop()
	l.Infow("ignored", "k", "v")
	l.Named("x").Errorw("ignored")
}
