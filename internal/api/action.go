package api

// Action is a legacy API operation, taken from the Action field of the body.
type Action int

const (
	ActionUnknown Action = iota
	ActionSendEmail
	ActionSendRawEmail
	ActionSendTemplatedEmail
)

// ParseAction maps an Action field value to an Action. Anything other than
// a supported operation name is ActionUnknown.
func ParseAction(s string) Action {
	switch s {
	case "SendEmail":
		return ActionSendEmail
	case "SendRawEmail":
		return ActionSendRawEmail
	case "SendTemplatedEmail":
		return ActionSendTemplatedEmail
	default:
		return ActionUnknown
	}
}

func (a Action) String() string {
	switch a {
	case ActionSendEmail:
		return "SendEmail"
	case ActionSendRawEmail:
		return "SendRawEmail"
	case ActionSendTemplatedEmail:
		return "SendTemplatedEmail"
	default:
		return "Unknown"
	}
}
