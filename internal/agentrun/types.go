// Package agentrun invokes one pipeline step (plan/implement/review/fix/
// merge/refill) against an agent backend subprocess and reduces its NDJSON
// event stream into a single StepResult.
package agentrun

// Kind discriminates the tagged variants of StepMessage, mirroring how the
// agent subprocess's own event stream carries a "type" field per line.
type Kind string

const (
	KindAssistant     Kind = "assistant"
	KindTool          Kind = "tool"
	KindCompaction    Kind = "compaction"
	KindResult        Kind = "result"
	KindTurnCompleted Kind = "turn_completed"
	KindError         Kind = "error"
)

// StepMessage is one parsed line from the agent's event stream. Only the
// field matching Kind is populated.
type StepMessage struct {
	Kind Kind

	Assistant     *AssistantMsg
	Tool          *ToolMsg
	Compaction    *CompactionMsg
	Result        *ResultMsg
	TurnCompleted *TurnCompletedMsg
	Error         *ErrorMsg
}

type AssistantMsg struct {
	Text string
}

// ToolMsg is one tool invocation; Summary is truncated for logging.
type ToolMsg struct {
	Name    string
	Summary string
}

type CompactionMsg struct {
	PreTokens int
}

type ResultMsg struct {
	Success      bool
	Text         string
	Turns        int
	CostUSD      float64
	InputTokens  int
	OutputTokens int
}

type TurnCompletedMsg struct {
	Turns        int
	InputTokens  int
	OutputTokens int
}

type ErrorMsg struct {
	Message string
}

// Params configures one RunStep invocation. Cancellation is threaded
// through the ctx argument to RunStep, not stored here.
type Params struct {
	Prompt      string
	StepName    string
	Improvement int
	Cwd         string
	Model       string
	Backend     string
	MaxTurns    int // 0 leaves the backend's own default turn limit in place
}

// StepResult is what the pipeline state machine consumes after a step.
type StepResult struct {
	Success      bool
	Turns        int
	CostUSD      float64
	InputTokens  int
	OutputTokens int
	DurationMs   int64
	OutputText   string
}
