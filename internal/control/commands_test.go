package control

import (
	"errors"
	"testing"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		input string
		want  Command
	}{
		{"/status", CmdStatus},
		{" /status ", CmdStatus},
		{"/STATUS", CmdStatus},
		{"/status@MacroBot", CmdStatus},
		{"/pause", CmdPause},
		{"/resume", CmdResume},
		{"/panic", CmdPanic},
		{"/confirm_panic", CmdConfirmPanic},
	}

	for _, tt := range tests {
		cmd, err := ParseCommand(tt.input)
		if err != nil {
			t.Errorf("ParseCommand(%q) failed: %v", tt.input, err)
			continue
		}
		if cmd != tt.want {
			t.Errorf("ParseCommand(%q) = %s, want %s", tt.input, cmd, tt.want)
		}
	}
}

func TestParseCommandRejectsUnknown(t *testing.T) {
	for _, input := range []string{"", "status", "/stop", "/panic now", "hello", "/confirmpanic"} {
		if _, err := ParseCommand(input); !errors.Is(err, ErrUnknownCommand) {
			t.Errorf("ParseCommand(%q) should be rejected, got err=%v", input, err)
		}
	}
}
