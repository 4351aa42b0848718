package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/SageKnoll/Azure-Language-OpenAI-Conversational-Agent-Accelerator/internal/config"
)

func observe(t *testing.T, cfg config.LoggingConfig) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	Attach(zap.New(core), cfg)
	t.Cleanup(func() { Attach(nil, config.LoggingConfig{}) })
	return logs
}

func TestCategoriesWriteThroughSharedCore(t *testing.T) {
	logs := observe(t, config.LoggingConfig{})

	Routing("selected %s", "TriageAgent")
	HarnessWarn("attempt %d failed", 2)
	Get(CategoryPlugins).With("zone", 1).Debug("fallback")

	if logs.Len() != 3 {
		t.Fatalf("expected 3 entries, got %d", logs.Len())
	}
	entries := logs.All()
	if entries[0].LoggerName != "routing" || entries[0].Message != "selected TriageAgent" {
		t.Errorf("unexpected routing entry: %+v", entries[0])
	}
	if entries[1].Level != zapcore.WarnLevel {
		t.Errorf("expected warn level, got %v", entries[1].Level)
	}
	if entries[2].ContextMap()["zone"] != int64(1) {
		t.Errorf("expected zone field, got %v", entries[2].ContextMap())
	}
}

func TestDisabledCategoryIsNoop(t *testing.T) {
	logs := observe(t, config.LoggingConfig{Categories: map[string]bool{"routing": false}})

	Routing("hidden")
	RoutingError("hidden too")
	Harness("visible")

	if logs.Len() != 1 {
		t.Fatalf("expected only the harness entry, got %d", logs.Len())
	}
	if got := logs.All()[0].LoggerName; got != "harness" {
		t.Fatalf("unexpected logger %q", got)
	}
}

func TestBuild_FileOutputAndLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "iris.log")
	logger, err := Build(config.LoggingConfig{Level: "warn", File: path}, false)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	logger.Info("dropped")
	logger.Warn("kept")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if strings.Contains(string(data), "dropped") || !strings.Contains(string(data), "kept") {
		t.Fatalf("unexpected log contents: %s", data)
	}
}

func TestBuild_InvalidLevel(t *testing.T) {
	if _, err := Build(config.LoggingConfig{Level: "loud"}, false); err == nil {
		t.Fatal("expected error for invalid level")
	}
}
