// Package system wires configuration into a running IRIS stack. Every front
// end (server, CLI, TUI) boots through here so the wiring stays identical.
package system

import (
	"context"
	"errors"
	"fmt"

	"github.com/SageKnoll/Azure-Language-OpenAI-Conversational-Agent-Accelerator/internal/config"
	"github.com/SageKnoll/Azure-Language-OpenAI-Conversational-Agent-Accelerator/internal/harness"
	"github.com/SageKnoll/Azure-Language-OpenAI-Conversational-Agent-Accelerator/internal/language"
	"github.com/SageKnoll/Azure-Language-OpenAI-Conversational-Agent-Accelerator/internal/ledger"
	"github.com/SageKnoll/Azure-Language-OpenAI-Conversational-Agent-Accelerator/internal/logging"
	"github.com/SageKnoll/Azure-Language-OpenAI-Conversational-Agent-Accelerator/internal/orchestrator"
	"github.com/SageKnoll/Azure-Language-OpenAI-Conversational-Agent-Accelerator/internal/participants"
	"github.com/SageKnoll/Azure-Language-OpenAI-Conversational-Agent-Accelerator/internal/perception"
	"github.com/SageKnoll/Azure-Language-OpenAI-Conversational-Agent-Accelerator/internal/plugins"
	"github.com/SageKnoll/Azure-Language-OpenAI-Conversational-Agent-Accelerator/internal/types"
)

// Stack is a fully wired instance. The registry and orchestrator are
// read-only after Boot and shared by every exchange.
type Stack struct {
	Config       *config.Config
	LLM          perception.LLMClient
	Plugins      *plugins.Set
	Registry     *participants.Registry
	Orchestrator *orchestrator.Orchestrator
	Harness      *harness.Harness
	Ledger       *ledger.Store
}

type bootOptions struct {
	llm        perception.LLMClient
	classifier participants.IntentClassifier
	faq        participants.FAQMatcher
	offline    bool
	noLedger   bool
	harness    []harness.Option
}

// BootOption adjusts Boot.
type BootOption func(*bootOptions)

// WithLLM uses client instead of the configured provider.
func WithLLM(client perception.LLMClient) BootOption {
	return func(o *bootOptions) { o.llm = client }
}

// WithClassifier replaces the intent and FAQ services. faq may be nil.
func WithClassifier(classifier participants.IntentClassifier, faq participants.FAQMatcher) BootOption {
	return func(o *bootOptions) { o.classifier, o.faq = classifier, faq }
}

// WithOffline keeps every plugin on its static tables.
func WithOffline() BootOption {
	return func(o *bootOptions) { o.offline = true }
}

// WithoutLedger skips the outcome ledger even when it is enabled.
func WithoutLedger() BootOption {
	return func(o *bootOptions) { o.noLedger = true }
}

// WithHarnessOptions passes options through to the harness.
func WithHarnessOptions(opts ...harness.Option) BootOption {
	return func(o *bootOptions) { o.harness = append(o.harness, opts...) }
}

// Boot validates cfg and builds the stack.
func Boot(ctx context.Context, cfg *config.Config, opts ...BootOption) (*Stack, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	var bo bootOptions
	for _, opt := range opts {
		opt(&bo)
	}
	t := cfg.Timeouts()

	// 1. Language model (optional)
	llm := bo.llm
	if llm == nil {
		client, err := perception.NewClientFromConfig(ctx, cfg.LLM, t.LLM)
		if err != nil {
			return nil, fmt.Errorf("failed to create LLM client: %w", err)
		}
		llm = client
	}

	// 2. Participants
	translator := participants.NewTranslator(translationBackend(cfg, llm, t))
	faq, classifier := classifiers(cfg, bo, t)
	router := participants.NewRouter(faq, classifier, cfg.Language.CQAThreshold)
	dispatcher, err := participants.NewDispatcher()
	if err != nil {
		return nil, err
	}

	set := plugins.Offline()
	if !bo.offline {
		set = plugins.NewSet(cfg.Zones, t.Zones)
	}
	var ropts []participants.ResponderOption
	if llm != nil {
		ropts = append(ropts, participants.WithRewriter(llm))
	}

	registry, err := participants.NewRegistry(
		translator,
		router,
		dispatcher,
		participants.NewSciences(set.Sciences, ropts...),
		participants.NewGovernance(set.Regulatory, set.Recordability, ropts...),
		participants.NewAnalytics(set.Analytics, ropts...),
		participants.NewExperience(set.Incidents, set.Documents, ropts...),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to register participants: %w", err)
	}

	// 3. Orchestration
	orch := orchestrator.New(registry, orchestrator.NewSelector(cfg.Language.CQAThreshold),
		orchestrator.WithCallTimeout(t.CallTimeout),
		orchestrator.WithMaxTurns(cfg.Orchestration.MaxTurns),
		orchestrator.WithTurnHook(func(turn types.Turn, d orchestrator.Decision) {
			logging.RoutingDebug("%s spoke (%d bytes): %s", turn.Speaker, len(turn.Payload), d.Reason)
		}),
	)

	stack := &Stack{
		Config:       cfg,
		LLM:          llm,
		Plugins:      set,
		Registry:     registry,
		Orchestrator: orch,
	}

	// 4. Ledger and harness
	hopts := append([]harness.Option(nil), bo.harness...)
	if cfg.Ledger.Enabled && !bo.noLedger {
		store, err := ledger.Open(cfg.Ledger.Path)
		if err != nil {
			return nil, err
		}
		stack.Ledger = store
		hopts = append(hopts, harness.WithRecorder(store))
	}
	stack.Harness = harness.New(orch, harness.Config{
		ExchangeTimeout: t.ExchangeTimeout,
		MaxAttempts:     cfg.Orchestration.MaxAttempts,
		Backoff:         t.Backoff,
	}, hopts...)

	logging.Boot("stack ready: llm=%t language=%t translator=%t offline=%t ledger=%t",
		llm != nil, cfg.LanguageEnabled(), cfg.TranslatorEnabled(), bo.offline, stack.Ledger != nil)
	return stack, nil
}

func translationBackend(cfg *config.Config, llm perception.LLMClient, t config.Timeouts) participants.TranslationBackend {
	switch {
	case cfg.TranslatorEnabled():
		return language.NewTranslatorClient(language.TranslatorConfig{
			Endpoint: cfg.Translator.Endpoint,
			APIKey:   cfg.Translator.APIKey,
			Region:   cfg.Translator.Region,
			Timeout:  t.Language,
		})
	case llm != nil:
		return participants.NewLLMTranslation(llm)
	default:
		return participants.Passthrough{}
	}
}

func classifiers(cfg *config.Config, bo bootOptions, t config.Timeouts) (participants.FAQMatcher, participants.IntentClassifier) {
	if bo.classifier != nil {
		return bo.faq, bo.classifier
	}
	if !cfg.LanguageEnabled() {
		logging.BootWarn("language service not configured; every question classifies as None")
		return nil, language.BypassClassifier{}
	}
	faq := language.NewCQAClient(language.CQAConfig{
		Endpoint:   cfg.Language.Endpoint,
		APIKey:     cfg.Language.APIKey,
		Project:    cfg.Language.CQAProject,
		Deployment: cfg.Language.CQADeployment,
		APIVersion: cfg.Language.CQAAPIVersion,
		Timeout:    t.Language,
	})
	clu := language.NewCLUClient(language.CLUConfig{
		Endpoint:   cfg.Language.Endpoint,
		APIKey:     cfg.Language.APIKey,
		Project:    cfg.Language.CLUProject,
		Deployment: cfg.Language.CLUDeployment,
		APIVersion: cfg.Language.CLUAPIVersion,
		Threshold:  cfg.Language.CLUThreshold,
		Timeout:    t.Language,
	})
	return faq, clu
}

// Agents lists the provisioned participants.
func (s *Stack) Agents() []types.AgentHandle {
	return s.Registry.Handles()
}

// Close releases resources held by the stack.
func (s *Stack) Close() error {
	if s == nil {
		return nil
	}
	var errs []error
	if s.Ledger != nil {
		if err := s.Ledger.Close(); err != nil {
			errs = append(errs, err)
		}
		s.Ledger = nil
	}
	return errors.Join(errs...)
}
