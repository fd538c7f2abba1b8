package mqtt

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownCommand is returned for payloads that are not a recognised command.
var ErrUnknownCommand = errors.New("unknown command")

// Command is a request received on the command topic.
type Command string

// CommandTrigger presses the button remotely.
const CommandTrigger Command = "TRIGGER"

type commandPayload struct {
	Command string `json:"command"`
}

// ParseCommand decodes a command topic payload. Plain payloads TRIGGER,
// true, 1 and ON (any case) and the JSON form {"command":"trigger"} are
// accepted.
func ParseCommand(payload []byte) (Command, error) {
	p := bytes.TrimSpace(payload)
	if len(p) > 0 && p[0] == '{' {
		var cp commandPayload
		if err := json.Unmarshal(p, &cp); err != nil {
			return "", fmt.Errorf("decode command: %w", err)
		}
		p = []byte(cp.Command)
	}

	switch strings.ToUpper(strings.TrimSpace(string(p))) {
	case "TRIGGER", "TRUE", "1", "ON":
		return CommandTrigger, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCommand, payload)
}
