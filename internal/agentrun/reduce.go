package agentrun

// accumulator reduces a StepMessage stream into a StepResult, per spec.md's
// instruction to "drive aggregation through an explicit reducer, not
// ad-hoc property probing."
type accumulator struct {
	turns        int
	inputTokens  int
	outputTokens int
	costUSD      float64
	outputText   string
	sawResult    bool
	success      bool
}

func (a *accumulator) apply(msg StepMessage) {
	switch msg.Kind {
	case KindTurnCompleted:
		a.turns = msg.TurnCompleted.Turns
		a.inputTokens = msg.TurnCompleted.InputTokens
		a.outputTokens = msg.TurnCompleted.OutputTokens
	case KindResult:
		a.sawResult = true
		a.success = msg.Result.Success
		a.turns = msg.Result.Turns
		a.costUSD = msg.Result.CostUSD
		a.inputTokens = msg.Result.InputTokens
		a.outputTokens = msg.Result.OutputTokens
		a.outputText = msg.Result.Text
	case KindAssistant:
		if msg.Assistant.Text != "" {
			a.outputText = msg.Assistant.Text
		}
	}
}

// finish implements spec.md §4.5's rule that a missing terminal result
// event is itself a failure.
func (a *accumulator) finish() StepResult {
	return StepResult{
		Success:      a.sawResult && a.success,
		Turns:        a.turns,
		CostUSD:      a.costUSD,
		InputTokens:  a.inputTokens,
		OutputTokens: a.outputTokens,
		OutputText:   a.outputText,
	}
}
