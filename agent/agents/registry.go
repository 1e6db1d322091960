// Package agents provides the four capability agents and their registry.
package agents

import (
	"context"
	"errors"
	"time"

	contractx "github.com/natthaphol/shopscout/agent/contract"
	llmx "github.com/natthaphol/shopscout/agent/llm"
	promptx "github.com/natthaphol/shopscout/agent/prompt"
)

// defaultMaxResults is the k the retriever asks the engine for. The wire
// shape documents at most five products per answer.
const defaultMaxResults = 5

type registryImpl struct {
	analyzer  contractx.Agent
	retriever contractx.Agent
	formatter contractx.Agent
	recorder  contractx.Agent
}

func (r *registryImpl) Analyzer() contractx.Agent  { return r.analyzer }
func (r *registryImpl) Retriever() contractx.Agent { return r.retriever }
func (r *registryImpl) Formatter() contractx.Agent { return r.formatter }
func (r *registryImpl) Recorder() contractx.Agent  { return r.recorder }

// NewRegistry wires the capability agents. The engine and log store handles
// are injected here so concurrent runs stay isolated and tests can swap in
// fakes. When the LLM config carries no API key the analyzer runs
// heuristics-only, which keeps offline runs and tests deterministic.
func NewRegistry(
	ctx context.Context,
	cfg llmx.Config,
	engine contractx.Engine,
	logStore contractx.LogStore,
) (contractx.Registry, error) {
	if engine == nil {
		return nil, errors.New("retrieval engine is required")
	}
	if logStore == nil {
		return nil, errors.New("log store is required")
	}

	analyzer := &analyzerImpl{}
	if cfg.Enabled() {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		modelCfg := cfg.AnalyzerModelConfig()
		chatModel, err := modelCfg.New(ctx)
		if err != nil {
			return nil, err
		}
		runner, err := compileAnalyzerGraph(ctx, chatModel, promptx.Load().Analyzer)
		if err != nil {
			return nil, err
		}
		analyzer.runner = runner
	}

	return &registryImpl{
		analyzer:  analyzer,
		retriever: &retrieverImpl{engine: engine, maxResults: defaultMaxResults},
		formatter: formatterImpl{},
		recorder:  &recorderImpl{store: logStore, now: time.Now},
	}, nil
}
