package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestDefaultIsNop(t *testing.T) {
	// Logging before Init must not panic.
	Sugar.Infof("before init %d", 1)
	Named("test").Warnf("before init")
}

func TestFileOutput(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "gridmap.log")

	cfg := FileConfig{Path: logFile, MaxSizeMB: 1, MaxBackups: 1, MaxAgeDays: 1}
	if err := InitWithFileConfig("info", cfg, false); err != nil {
		t.Fatalf("failed to init logger: %v", err)
	}
	t.Cleanup(func() {
		Log = zap.NewNop()
		Sugar = Log.Sugar()
	})

	Info("map built", zap.Int("width", 70))
	Named("mapping").Debugf("suppressed at info level")
	Named("mapping").Infof("integrated %d scans", 3)
	Sync()

	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	out := string(data)
	if !strings.Contains(out, "map built") || !strings.Contains(out, `"width"`) {
		t.Errorf("missing structured entry in log:\n%s", out)
	}
	if !strings.Contains(out, "mapping") || !strings.Contains(out, "integrated 3 scans") {
		t.Errorf("missing named entry in log:\n%s", out)
	}
	if strings.Contains(out, "suppressed") {
		t.Errorf("debug entry written at info level:\n%s", out)
	}
}

func TestDefaultFileConfig(t *testing.T) {
	cfg := DefaultFileConfig("/tmp/x.log")
	if cfg.Path != "/tmp/x.log" || cfg.MaxSizeMB != 50 || cfg.MaxBackups != 3 || !cfg.Compress {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"TRACE":   zapcore.DebugLevel,
		"info":    zapcore.InfoLevel,
		"warn":    zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"bogus":   zapcore.InfoLevel,
		"":        zapcore.InfoLevel,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
