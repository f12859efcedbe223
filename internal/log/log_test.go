package log

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestHelpers(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	SetLogger(zap.New(core))
	t.Cleanup(func() { SetLogger(zap.NewNop()) })

	Debugw("debug", "k", 1)
	Infow("info", "k", 2)
	Warnw("warn")
	Errorw("error")
	Named("mqtt").Infow("named")

	entries := logs.AllUntimed()
	if len(entries) != 5 {
		t.Fatalf("expected 5 entries, got %d", len(entries))
	}

	levels := []zapcore.Level{zapcore.DebugLevel, zapcore.InfoLevel, zapcore.WarnLevel, zapcore.ErrorLevel, zapcore.InfoLevel}
	for i, want := range levels {
		if entries[i].Level != want {
			t.Errorf("entry %d: level %v, want %v", i, entries[i].Level, want)
		}
	}
	if entries[1].ContextMap()["k"] != int64(2) {
		t.Errorf("expected field k=2, got %v", entries[1].ContextMap())
	}
	if entries[4].LoggerName != "mqtt" {
		t.Errorf("expected logger name mqtt, got %q", entries[4].LoggerName)
	}
}

func TestInit(t *testing.T) {
	if err := Init(true); err != nil {
		t.Fatalf("Init(true) error = %v", err)
	}
	if Logger() == nil {
		t.Fatal("expected a logger after Init")
	}
	Sync()
	SetLogger(zap.NewNop())
}
