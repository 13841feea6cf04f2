package ipc

import (
	"errors"
	"fmt"
	"strings"
)

// Command is one control verb understood by the daemon
type Command string

const (
	CmdStart  Command = "start"
	CmdStop   Command = "stop"
	CmdToggle Command = "toggle"
	CmdStatus Command = "status"
	CmdLevel  Command = "level"
	CmdReport Command = "report"
	CmdPing   Command = "ping"
)

// Commands lists every supported command
var Commands = []Command{CmdStart, CmdStop, CmdToggle, CmdStatus, CmdLevel, CmdReport, CmdPing}

const (
	okPrefix    = "OK: "
	errorPrefix = "ERROR: "
)

// ErrDaemon wraps ERROR replies from the daemon
var ErrDaemon = errors.New("daemon error")

// ParseCommand splits a request line into its command and arguments
func ParseCommand(line string) (Command, []string, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", nil, errors.New("empty command")
	}
	cmd := Command(strings.ToLower(fields[0]))
	for _, known := range Commands {
		if cmd == known {
			return cmd, fields[1:], nil
		}
	}
	return "", nil, fmt.Errorf("unknown command: %s", fields[0])
}

// OK formats a success reply
func OK(format string, args ...any) string {
	return okPrefix + fmt.Sprintf(format, args...)
}

// Error formats a failure reply
func Error(err error) string {
	return errorPrefix + strings.ReplaceAll(err.Error(), "\n", " ")
}

// ParseResponse returns the payload of an OK reply or an ErrDaemon error
func ParseResponse(line string) (string, error) {
	switch {
	case strings.HasPrefix(line, okPrefix):
		return strings.TrimPrefix(line, okPrefix), nil
	case line == strings.TrimSpace(okPrefix):
		return "", nil
	case strings.HasPrefix(line, errorPrefix):
		return "", fmt.Errorf("%w: %s", ErrDaemon, strings.TrimPrefix(line, errorPrefix))
	}
	return "", fmt.Errorf("malformed response: %q", line)
}
