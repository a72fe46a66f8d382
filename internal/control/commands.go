package control

import (
	"errors"
	"strings"
)

// Command is an operator control command
type Command string

const (
	CmdStatus       Command = "/status"
	CmdPause        Command = "/pause"
	CmdResume       Command = "/resume"
	CmdPanic        Command = "/panic"
	CmdConfirmPanic Command = "/confirm_panic"
)

// ErrUnknownCommand is returned for any text that is not a recognized
// command. The command set is closed; unknown input is never executed.
var ErrUnknownCommand = errors.New("unknown command")

// ParseCommand parses a chat message into a command. Telegram appends the
// bot username to commands in group chats ("/status@MacroBot"), so anything
// after '@' is dropped.
func ParseCommand(text string) (Command, error) {
	text = strings.TrimSpace(text)
	if i := strings.IndexByte(text, '@'); i > 0 {
		text = text[:i]
	}
	switch Command(strings.ToLower(text)) {
	case CmdStatus:
		return CmdStatus, nil
	case CmdPause:
		return CmdPause, nil
	case CmdResume:
		return CmdResume, nil
	case CmdPanic:
		return CmdPanic, nil
	case CmdConfirmPanic:
		return CmdConfirmPanic, nil
	default:
		return "", ErrUnknownCommand
	}
}
