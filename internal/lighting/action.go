package lighting

// Action is a rider input from the keypad.
type Action int

const (
	ActionNone Action = iota
	ActionToggleFTP
	ActionIncreaseFTP
	ActionDecreaseFTP
	ActionQuit
)

func (a Action) String() string {
	switch a {
	case ActionToggleFTP:
		return "toggle_ftp"
	case ActionIncreaseFTP:
		return "increase_ftp"
	case ActionDecreaseFTP:
		return "decrease_ftp"
	case ActionQuit:
		return "quit"
	default:
		return "none"
	}
}

// ParseKey maps a key press to an Action: y toggles the FTP display, a and b
// raise and lower FTP, q or Ctrl-C quits.
func ParseKey(b byte) (Action, bool) {
	switch b {
	case 'y', 'Y':
		return ActionToggleFTP, true
	case 'a', 'A', '+':
		return ActionIncreaseFTP, true
	case 'b', 'B', '-':
		return ActionDecreaseFTP, true
	case 'q', 'Q', 0x03:
		return ActionQuit, true
	default:
		return ActionNone, false
	}
}
