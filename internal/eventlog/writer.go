package eventlog

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// Writer appends JSON-line events to a single log file. The zero value is
// not usable; construct with Open. Safe for concurrent use by multiple
// worker goroutines within one orchestrator process (spec.md §5: the
// supervisor is the sole multiplexer, so only in-process mutual exclusion
// is needed, not a cross-process lock).
type Writer struct {
	mu   sync.Mutex
	file *os.File
}

// Open opens (creating if needed) the log file at path for appending.
func Open(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open event log %s: %w", path, err)
	}
	return &Writer{file: f}, nil
}

// Close closes the underlying file.
func (w *Writer) Close() error {
	return w.file.Close()
}

// Append writes one event line: fields merged with "event" and, if not
// already present, a "ts" set to the current UTC time in RFC3339 form.
func (w *Writer) Append(kind Kind, fields map[string]any) error {
	line := make(map[string]any, len(fields)+2)
	for k, v := range fields {
		line[k] = v
	}
	line["event"] = string(kind)
	if _, ok := line["ts"]; !ok {
		line["ts"] = time.Now().UTC().Format(time.RFC3339)
	}

	raw, err := json.Marshal(line)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", kind, err)
	}
	raw = append(raw, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()
	_, err = w.file.Write(raw)
	return err
}

// StepStart logs the start of one pipeline step.
func (w *Writer) StepStart(improvement int, step, backend string) error {
	return w.Append(StepStart, map[string]any{"improvement": improvement, "step": step, "backend": backend})
}

// StepEnd logs a step's completion metrics.
func (w *Writer) StepEnd(step, backend string, turns int, costUSD float64, inputTokens, outputTokens int, durationMs int64) error {
	return w.Append(StepEnd, map[string]any{
		"step": step, "backend": backend, "turns": turns, "cost_usd": costUSD,
		"input_tokens": inputTokens, "output_tokens": outputTokens, "duration_ms": durationMs,
	})
}

// WorkerStarted logs a worker slot picking up a task.
func (w *Writer) WorkerStarted(worker, improvement int, task string) error {
	return w.Append(WorkerStarted, map[string]any{"worker": worker, "improvement": improvement, "task": task})
}

// WorkerFinished logs a worker's terminal outcome.
func (w *Writer) WorkerFinished(worker, improvement int, success bool) error {
	return w.Append(WorkerFinished, map[string]any{"worker": worker, "improvement": improvement, "success": success})
}

// MergeQueued logs a merge attempt being handed to the merge agent.
func (w *Writer) MergeQueued(worker, improvement int, branch string) error {
	return w.Append(MergeQueued, map[string]any{"worker": worker, "improvement": improvement, "branch": branch})
}

// MergeCompleted logs the outcome of a merge attempt.
func (w *Writer) MergeCompleted(worker, improvement int, branch string, success bool) error {
	return w.Append(MergeCompleted, map[string]any{
		"worker": worker, "improvement": improvement, "branch": branch, "success": success,
	})
}

// ImprovementDone logs a shipped improvement's totals.
func (w *Writer) ImprovementDone(improvement int, totalCostUSD float64, totalDurationMs int64) error {
	return w.Append(ImprovementDone, map[string]any{
		"improvement": improvement, "total_cost_usd": totalCostUSD, "total_duration_ms": totalDurationMs,
	})
}

// ImprovementFailed logs a terminal failure's reason.
func (w *Writer) ImprovementFailed(improvement int, reason string) error {
	return w.Append(ImprovementFailed, map[string]any{"improvement": improvement, "reason": reason})
}

// CompactionEvent logs an agent context compaction.
func (w *Writer) CompactionEvent(step string, preTokens int) error {
	return w.Append(Compaction, map[string]any{"step": step, "pre_tokens": preTokens})
}
