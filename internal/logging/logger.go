// Package logging provides categorized structured logging for IRIS.
// Every category writes through one shared zap core; categories can be
// switched off individually in the logging section of iris.yaml, in which
// case Get returns a no-op logger.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/SageKnoll/Azure-Language-OpenAI-Conversational-Agent-Accelerator/internal/config"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot         Category = "boot"         // Startup and wiring
	CategoryAPI          Category = "api"          // LLM API calls
	CategoryRouting      Category = "routing"      // Speaker selection decisions
	CategoryHarness      Category = "harness"      // Attempts, timeouts, retries
	CategoryParticipants Category = "participants" // Participant turns
	CategoryPlugins      Category = "plugins"      // Zone 1 / Zone 2 service calls and fallbacks
	CategoryClassifier   Category = "classifier"   // CLU / CQA requests
	CategoryTranslator   Category = "translator"   // Language detection and translation
	CategoryLedger       Category = "ledger"       // Outcome persistence
	CategoryServer       Category = "server"       // HTTP front end and config reload
)

// Logger is a category-scoped printf-style logger.
type Logger struct {
	category Category
	sugar    *zap.SugaredLogger
}

var (
	mu       sync.RWMutex
	base     = zap.NewNop()
	settings config.LoggingConfig
	loggers  = make(map[Category]*Logger)
)

// Build creates a zap logger from the logging configuration. Verbose forces
// debug level.
func Build(cfg config.LoggingConfig, verbose bool) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if strings.EqualFold(cfg.Format, "console") {
		zc = zap.NewDevelopmentConfig()
	}

	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	if verbose {
		level = zapcore.DebugLevel
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		zc.OutputPaths = []string{cfg.File}
		zc.ErrorOutputPaths = []string{cfg.File}
	}

	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, nil
}

func parseLevel(s string) (zapcore.Level, error) {
	if s == "" {
		return zapcore.InfoLevel, nil
	}
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(s))); err != nil {
		return zapcore.InfoLevel, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return lvl, nil
}

// Attach installs logger as the shared core and applies the category
// toggles. Loggers handed out earlier are replaced.
func Attach(logger *zap.Logger, cfg config.LoggingConfig) {
	if logger == nil {
		logger = zap.NewNop()
	}
	mu.Lock()
	defer mu.Unlock()
	base = logger
	settings = cfg
	loggers = make(map[Category]*Logger)
}

// Initialize builds and attaches a logger in one step.
func Initialize(cfg config.LoggingConfig, verbose bool) error {
	logger, err := Build(cfg, verbose)
	if err != nil {
		return err
	}
	Attach(logger, cfg)
	Get(CategoryBoot).Info("logging initialized (level=%s format=%s)", cfg.Level, cfg.Format)
	return nil
}

// Sync flushes buffered entries.
func Sync() error {
	mu.RLock()
	defer mu.RUnlock()
	return base.Sync()
}

// IsCategoryEnabled returns whether a specific category is enabled
func IsCategoryEnabled(category Category) bool {
	mu.RLock()
	defer mu.RUnlock()
	return settings.IsCategoryEnabled(string(category))
}

// Get returns (or creates) a logger for the given category.
// Returns a no-op logger if the category is disabled.
func Get(category Category) *Logger {
	if !IsCategoryEnabled(category) {
		return &Logger{category: category}
	}

	mu.RLock()
	if l, ok := loggers[category]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}
	l := &Logger{
		category: category,
		sugar:    base.Named(string(category)).Sugar(),
	}
	loggers[category] = l
	return l
}

// With returns a logger carrying structured key/value context.
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	if l.sugar == nil {
		return l
	}
	return &Logger{category: l.category, sugar: l.sugar.With(keysAndValues...)}
}

func (l *Logger) Debug(format string, args ...interface{}) {
	if l.sugar == nil {
		return
	}
	l.sugar.Debugf(format, args...)
}

func (l *Logger) Info(format string, args ...interface{}) {
	if l.sugar == nil {
		return
	}
	l.sugar.Infof(format, args...)
}

func (l *Logger) Warn(format string, args ...interface{}) {
	if l.sugar == nil {
		return
	}
	l.sugar.Warnf(format, args...)
}

func (l *Logger) Error(format string, args ...interface{}) {
	if l.sugar == nil {
		return
	}
	l.sugar.Errorf(format, args...)
}

// =============================================================================
// CONVENIENCE FUNCTIONS
// =============================================================================

func Boot(format string, args ...interface{})      { Get(CategoryBoot).Info(format, args...) }
func BootDebug(format string, args ...interface{}) { Get(CategoryBoot).Debug(format, args...) }
func BootWarn(format string, args ...interface{})  { Get(CategoryBoot).Warn(format, args...) }

func API(format string, args ...interface{})      { Get(CategoryAPI).Info(format, args...) }
func APIDebug(format string, args ...interface{}) { Get(CategoryAPI).Debug(format, args...) }
func APIWarn(format string, args ...interface{})  { Get(CategoryAPI).Warn(format, args...) }

func Routing(format string, args ...interface{})      { Get(CategoryRouting).Info(format, args...) }
func RoutingDebug(format string, args ...interface{}) { Get(CategoryRouting).Debug(format, args...) }
func RoutingWarn(format string, args ...interface{})  { Get(CategoryRouting).Warn(format, args...) }
func RoutingError(format string, args ...interface{}) { Get(CategoryRouting).Error(format, args...) }

func Harness(format string, args ...interface{})      { Get(CategoryHarness).Info(format, args...) }
func HarnessDebug(format string, args ...interface{}) { Get(CategoryHarness).Debug(format, args...) }
func HarnessWarn(format string, args ...interface{})  { Get(CategoryHarness).Warn(format, args...) }
func HarnessError(format string, args ...interface{}) { Get(CategoryHarness).Error(format, args...) }

func Participants(format string, args ...interface{}) {
	Get(CategoryParticipants).Info(format, args...)
}
func ParticipantsDebug(format string, args ...interface{}) {
	Get(CategoryParticipants).Debug(format, args...)
}
func ParticipantsWarn(format string, args ...interface{}) {
	Get(CategoryParticipants).Warn(format, args...)
}

func Plugins(format string, args ...interface{})      { Get(CategoryPlugins).Info(format, args...) }
func PluginsDebug(format string, args ...interface{}) { Get(CategoryPlugins).Debug(format, args...) }
func PluginsWarn(format string, args ...interface{})  { Get(CategoryPlugins).Warn(format, args...) }

func Classifier(format string, args ...interface{})      { Get(CategoryClassifier).Info(format, args...) }
func ClassifierDebug(format string, args ...interface{}) { Get(CategoryClassifier).Debug(format, args...) }
func ClassifierWarn(format string, args ...interface{})  { Get(CategoryClassifier).Warn(format, args...) }

func TranslatorLog(format string, args ...interface{})   { Get(CategoryTranslator).Info(format, args...) }
func TranslatorDebug(format string, args ...interface{}) { Get(CategoryTranslator).Debug(format, args...) }
func TranslatorWarn(format string, args ...interface{})  { Get(CategoryTranslator).Warn(format, args...) }

func Ledger(format string, args ...interface{})     { Get(CategoryLedger).Info(format, args...) }
func LedgerWarn(format string, args ...interface{}) { Get(CategoryLedger).Warn(format, args...) }

func Server(format string, args ...interface{})      { Get(CategoryServer).Info(format, args...) }
func ServerDebug(format string, args ...interface{}) { Get(CategoryServer).Debug(format, args...) }
func ServerWarn(format string, args ...interface{})  { Get(CategoryServer).Warn(format, args...) }
func ServerError(format string, args ...interface{}) { Get(CategoryServer).Error(format, args...) }
