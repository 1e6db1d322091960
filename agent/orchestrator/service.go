// Package orchestrator runs the bounded speaker-selection loop over the four
// capability agents and exposes the search entrypoint collaborators call.
package orchestrator

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	contractx "github.com/natthaphol/shopscout/agent/contract"
	convx "github.com/natthaphol/shopscout/agent/conversation"
	"github.com/natthaphol/shopscout/agent/selector"
)

// userFacingFailure is the only error text the external search surface ever
// sees; run internals stay in the structured log.
const userFacingFailure = "could not complete search"

type Config struct {
	// RetryCeiling is the number of failed turns one stage may accumulate
	// before the run fails.
	RetryCeiling int `envconfig:"RETRY_CEILING" split_words:"true" default:"2"`

	// MaxTurns caps the whole run. The selector guarantees progress, so the
	// cap only trips if that guarantee is violated.
	MaxTurns int `envconfig:"MAX_TURNS" split_words:"true" default:"8"`

	TurnTimeout  time.Duration `envconfig:"TURN_TIMEOUT" split_words:"true" default:"30s"`
	RetryBackoff time.Duration `envconfig:"RETRY_BACKOFF" split_words:"true" default:"200ms"`
}

func (c Config) withDefaults() Config {
	if c.RetryCeiling <= 0 {
		c.RetryCeiling = selector.DefaultRetryCeiling
	}
	if c.MaxTurns <= 0 {
		c.MaxTurns = 8
	}
	if c.TurnTimeout <= 0 {
		c.TurnTimeout = 30 * time.Second
	}
	if c.RetryBackoff < 0 {
		c.RetryBackoff = 0
	}
	return c
}

type Orchestrator struct {
	registry contractx.Registry
	cfg      Config

	now      func() time.Time
	newRunID func() string
}

func New(registry contractx.Registry, cfg Config) (*Orchestrator, error) {
	if registry == nil {
		return nil, errors.New("agent registry is required")
	}
	return &Orchestrator{
		registry: registry,
		cfg:      cfg.withDefaults(),
		now:      time.Now,
		newRunID: newRunID,
	}, nil
}

// Search is the external entrypoint. A blank query is answered directly with
// an empty product list; a fatal run failure is folded into a generic error
// message so callers never see run internals.
func (o *Orchestrator) Search(ctx context.Context, sessionID, query string) contractx.SearchResponse {
	if strings.TrimSpace(query) == "" {
		return contractx.SearchResponse{Products: []convx.ProductView{}}
	}

	answer, err := o.Run(ctx, sessionID, query)
	if err != nil {
		return contractx.SearchResponse{
			Products: []convx.ProductView{},
			Error:    userFacingFailure,
		}
	}

	products := answer.Products
	if products == nil {
		products = []convx.ProductView{}
	}
	return contractx.SearchResponse{Products: products}
}

// Run executes one orchestrated conversation for the query and returns the
// formatted answer. The loop is bounded by MaxTurns; a logging failure after
// the answer exists is reported but never fails the run.
func (o *Orchestrator) Run(ctx context.Context, sessionID, rawQuery string) (convx.FinalAnswer, error) {
	conv := convx.New(o.newRunID(), sessionID, rawQuery, o.now())
	logger := log.With().
		Str("run_id", conv.RunID).
		Str("session_id", conv.SessionID).
		Logger()

	done := false
	var runErr error

loop:
	for len(conv.Turns) < o.cfg.MaxTurns {
		if err := ctx.Err(); err != nil {
			runErr = err
			conv.MarkTerminal("run cancelled: " + err.Error())
			break
		}

		dec := selector.Next(conv, o.cfg.RetryCeiling)
		switch {
		case dec.Err != nil:
			runErr = dec.Err
			conv.MarkTerminal(dec.Err.Error())
			break loop
		case dec.Done:
			done = true
			break loop
		}

		if err := o.backoffBeforeRetry(ctx, conv, dec.Agent); err != nil {
			runErr = err
			conv.MarkTerminal("run cancelled: " + err.Error())
			break
		}

		o.invoke(ctx, conv, o.agentFor(dec.Agent), logger)
	}

	if runErr == nil && !done {
		// The turn cap tripped while the selector still wanted to speak.
		runErr = contractx.ErrLoopExceeded
		conv.MarkTerminal(runErr.Error())
	}
	if runErr == nil && conv.Answer == nil {
		runErr = contractx.ErrIncompleteRun
		conv.MarkTerminal(runErr.Error())
	}

	if verr := conv.Validate(); verr != nil {
		logger.Warn().Err(verr).Msg("conversation left inconsistent")
	}

	if conv.Failed() && !conv.LogRecorded {
		o.logFailedRun(ctx, conv, logger)
	}

	if runErr != nil {
		logger.Error().Err(runErr).Int("turns", len(conv.Turns)).Msg("run failed")
		return convx.FinalAnswer{}, runErr
	}

	if !conv.LogRecorded {
		logger.Warn().Err(contractx.ErrLogging).Msg("run succeeded but was not logged")
	}
	conv.MarkTerminal("")
	logger.Info().
		Int("turns", len(conv.Turns)).
		Int("products", len(conv.Answer.Products)).
		Msg("run completed")
	return *conv.Answer, nil
}

// invoke runs one agent turn under the turn timeout and records the result.
// Agent errors become failed turns, not run errors; the selector decides
// whether the stage gets another attempt.
func (o *Orchestrator) invoke(ctx context.Context, conv *convx.Context, agent contractx.Agent, logger zerolog.Logger) {
	turnCtx, cancel := context.WithTimeout(ctx, o.cfg.TurnTimeout)
	out, err := agent.Handle(turnCtx, conv)
	cancel()

	if err != nil {
		logger.Warn().
			Err(err).
			Str("agent", string(agent.Type())).
			Msg("agent turn failed")
		_ = conv.AppendTurn(convx.Turn{
			Agent:  agent.Type(),
			Input:  conv.RawQuery,
			Status: convx.TurnFailure,
			Err:    err.Error(),
			At:     o.now(),
		})
		return
	}

	if aerr := o.applyOutcome(conv, out); aerr != nil {
		_ = conv.AppendTurn(convx.Turn{
			Agent:  agent.Type(),
			Input:  conv.RawQuery,
			Status: convx.TurnFailure,
			Err:    aerr.Error(),
			At:     o.now(),
		})
		return
	}

	_ = conv.AppendTurn(convx.Turn{
		Agent:  agent.Type(),
		Input:  conv.RawQuery,
		Output: out.Summary,
		Status: convx.TurnSuccess,
		At:     o.now(),
	})
}

func (o *Orchestrator) applyOutcome(conv *convx.Context, out contractx.Outcome) error {
	if out.Attributes != nil {
		if err := conv.SetAttributes(*out.Attributes); err != nil {
			return err
		}
	}
	if out.Candidates != nil {
		conv.SetCandidates(out.Candidates)
	}
	if out.Answer != nil {
		conv.SetAnswer(*out.Answer)
	}
	if out.Logged {
		conv.MarkLogged()
	}
	return nil
}

func (o *Orchestrator) agentFor(agent convx.AgentType) contractx.Agent {
	switch agent {
	case convx.AgentAnalyzer:
		return o.registry.Analyzer()
	case convx.AgentRetriever:
		return o.registry.Retriever()
	case convx.AgentFormatter:
		return o.registry.Formatter()
	default:
		return o.registry.Recorder()
	}
}

// backoffBeforeRetry sleeps before re-running a stage that just failed,
// scaled by how many failures the stage has accumulated.
func (o *Orchestrator) backoffBeforeRetry(ctx context.Context, conv *convx.Context, next convx.AgentType) error {
	if o.cfg.RetryBackoff <= 0 {
		return nil
	}
	last := conv.LastTurn()
	if last == nil || last.Status != convx.TurnFailure || last.Agent != next {
		return nil
	}

	wait := o.cfg.RetryBackoff * time.Duration(conv.FailureCount(next))
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// logFailedRun gives the recorder its best-effort attempts on a failed run.
// The conversation is already terminal; only recorder turns may still append.
// The attempt is detached from the caller's cancellation so a run that died
// to a cancelled context still gets logged, bounded by the turn timeout.
func (o *Orchestrator) logFailedRun(ctx context.Context, conv *convx.Context, logger zerolog.Logger) {
	logCtx := context.WithoutCancel(ctx)
	recorder := o.registry.Recorder()
	for attempt := 0; attempt < o.cfg.RetryCeiling; attempt++ {
		o.invoke(logCtx, conv, recorder, logger)
		if conv.LogRecorded {
			return
		}
	}
	logger.Warn().Err(contractx.ErrLogging).Msg("failed run was not logged")
}

func newRunID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "run-" + hex.EncodeToString([]byte(time.Now().Format("20060102150405.000")))
	}
	return "run-" + hex.EncodeToString(buf)
}
