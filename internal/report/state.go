package report

// State is a position in the report dialog.
type State int

const (
	StateStart State = iota
	StateAwaitingMessageLink
	StateCategorySelect
	StateConcernDetail
	StateBehaviorDetail
	StateAdditionalContext
	StateBlockPrompt
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "start"
	case StateAwaitingMessageLink:
		return "awaiting_message_link"
	case StateCategorySelect:
		return "category_select"
	case StateConcernDetail:
		return "concern_detail"
	case StateBehaviorDetail:
		return "behavior_detail"
	case StateAdditionalContext:
		return "additional_context"
	case StateBlockPrompt:
		return "block_prompt"
	case StateFinished:
		return "finished"
	default:
		return "unknown"
	}
}
