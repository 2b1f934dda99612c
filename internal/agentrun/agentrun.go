package agentrun

import (
	"context"
	"log/slog"
	"time"

	"github.com/ralphctl/ralph/internal/command"
	"github.com/ralphctl/ralph/internal/eventlog"
)

// Invoker runs agent backend subprocesses for pipeline steps.
type Invoker struct {
	Runner *command.Runner
	Logger *slog.Logger

	// EventLog, if set, receives a step_start/step_end pair per RunStep
	// call (spec.md §6's mandatory event kinds). Nil is fine for tests
	// and for callers that don't need the durable log.
	EventLog *eventlog.Writer
}

// RunStep feeds p.Prompt to the configured agent backend over stdin,
// streams and reduces its NDJSON event output, and reports the outcome.
// On ctx cancellation the subprocess is SIGTERM'd and the step is reported
// as failed.
func (inv *Invoker) RunStep(ctx context.Context, p Params) (StepResult, error) {
	backend := p.Backend
	if backend == "" {
		backend = inferBackend(p.Model)
	}

	logger := inv.Logger
	if logger == nil {
		logger = slog.Default()
	}

	start := time.Now()
	logger.Info("step_start", "step", p.StepName, "improvement", p.Improvement, "backend", backend)
	if inv.EventLog != nil {
		_ = inv.EventLog.StepStart(p.Improvement, p.StepName, backend)
	}

	name, args := buildArgv(backend, p.Model, p.MaxTurns)
	lines, errCh := inv.Runner.Stream(ctx, p.Cwd, p.Prompt, name, args...)

	acc := &accumulator{}
	toolCalls := 0
	for line := range lines {
		if !line.JSON {
			continue
		}
		msg, ok := parseLine(line.Raw)
		if !ok {
			continue
		}
		if msg.Kind == KindTool {
			toolCalls++
			logger.Debug("tool_call", "step", p.StepName, "name", msg.Tool.Name, "summary", msg.Tool.Summary)
		}
		acc.apply(msg)
	}

	runErr := <-errCh
	result := acc.finish()
	if ctx.Err() != nil {
		result.Success = false
	}
	result.DurationMs = time.Since(start).Milliseconds()

	logger.Info("step_end",
		"step", p.StepName,
		"backend", backend,
		"turns", result.Turns,
		"cost_usd", result.CostUSD,
		"input_tokens", result.InputTokens,
		"output_tokens", result.OutputTokens,
		"duration_ms", result.DurationMs,
		"tool_calls", toolCalls,
		"success", result.Success,
	)
	if inv.EventLog != nil {
		_ = inv.EventLog.StepEnd(p.StepName, backend, result.Turns, result.CostUSD,
			result.InputTokens, result.OutputTokens, result.DurationMs)
	}

	if runErr != nil && ctx.Err() == nil {
		return result, runErr
	}
	return result, nil
}
