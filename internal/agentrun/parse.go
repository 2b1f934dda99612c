package agentrun

import "github.com/tidwall/gjson"

const toolSummaryMaxLen = 200

// parseLine decodes one NDJSON line from the agent's event stream into a
// StepMessage. Lines that parsed as non-JSON text (command.Line.JSON ==
// false) or whose "type" field is unrecognized are not representable and
// ok is false.
func parseLine(raw string) (StepMessage, bool) {
	if !gjson.Valid(raw) {
		return StepMessage{}, false
	}
	v := gjson.Parse(raw)
	switch v.Get("type").String() {
	case "assistant":
		return StepMessage{Kind: KindAssistant, Assistant: &AssistantMsg{
			Text: v.Get("text").String(),
		}}, true
	case "tool", "tool_use":
		return StepMessage{Kind: KindTool, Tool: &ToolMsg{
			Name:    v.Get("name").String(),
			Summary: truncate(v.Get("summary").String(), toolSummaryMaxLen),
		}}, true
	case "compaction":
		return StepMessage{Kind: KindCompaction, Compaction: &CompactionMsg{
			PreTokens: int(v.Get("pre_tokens").Int()),
		}}, true
	case "result":
		return StepMessage{Kind: KindResult, Result: &ResultMsg{
			Success:      v.Get("success").Bool(),
			Text:         v.Get("text").String(),
			Turns:        int(v.Get("num_turns").Int()),
			CostUSD:      v.Get("total_cost_usd").Float(),
			InputTokens:  int(v.Get("usage.input_tokens").Int()),
			OutputTokens: int(v.Get("usage.output_tokens").Int()),
		}}, true
	case "turn_completed":
		return StepMessage{Kind: KindTurnCompleted, TurnCompleted: &TurnCompletedMsg{
			Turns:        int(v.Get("num_turns").Int()),
			InputTokens:  int(v.Get("usage.input_tokens").Int()),
			OutputTokens: int(v.Get("usage.output_tokens").Int()),
		}}, true
	case "error":
		return StepMessage{Kind: KindError, Error: &ErrorMsg{
			Message: v.Get("message").String(),
		}}, true
	default:
		return StepMessage{}, false
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
