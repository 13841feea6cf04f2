package ipc

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// maxResponse bounds one reply line
const maxResponse = 1 << 20

// Client represents an IPC client
type Client struct {
	socketPath string
	dialer     net.Dialer
}

// NewClient creates a new IPC client
func NewClient(socketPath string) *Client {
	return &Client{
		socketPath: socketPath,
	}
}

// SendCommand sends a command line to the daemon and returns the raw reply
func (c *Client) SendCommand(ctx context.Context, command string) (string, error) {
	conn, err := c.dialer.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return "", fmt.Errorf("failed to connect to daemon: %w", err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	if _, err := conn.Write([]byte(command + "\n")); err != nil {
		return "", fmt.Errorf("failed to send command: %w", err)
	}

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), maxResponse)
	if scanner.Scan() {
		return strings.TrimSpace(scanner.Text()), nil
	}

	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	return "", errors.New("no response from daemon")
}

// Call sends cmd with args and returns the payload of an OK reply
func (c *Client) Call(ctx context.Context, cmd Command, args ...string) (string, error) {
	line := strings.Join(append([]string{string(cmd)}, args...), " ")
	resp, err := c.SendCommand(ctx, line)
	if err != nil {
		return "", err
	}
	return ParseResponse(resp)
}
