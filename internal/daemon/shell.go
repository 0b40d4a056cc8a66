package daemon

import (
	"encoding/json"
	"errors"
	"fmt"

	"hookd/internal/protocol"
)

// handleExecuteShell runs a shell command line, bounded by the shell
// timeout. Both output streams are returned regardless of the exit
// status; only a failure to run (or a timeout) is a command error. The
// execution is recorded into the command history ring either way.
func (d *Daemon) handleExecuteShell(cmd *protocol.Command) (any, error) {
	if len(cmd.Payload) == 0 {
		return nil, errors.New("Missing 'command' in payload for execute_shell_command")
	}
	var p protocol.ShellPayload
	if err := json.Unmarshal(cmd.Payload, &p); err != nil {
		return nil, fmt.Errorf("invalid payload for %s: %v", cmd.Command, err)
	}
	if p.Command == "" {
		return nil, errors.New("Missing 'command' in payload for execute_shell_command")
	}

	ctx, cancel := d.operationContext(d.cfg.ShellTimeout)
	defer cancel()

	result, err := d.desktop.RunShell(ctx, p.Command)

	d.history.Commands.Add(map[string]any{
		"kind":        "shell",
		"command":     p.Command,
		"return_code": result.ExitCode,
	})

	if err != nil {
		return nil, fmt.Errorf("%v (stdout: %s, stderr: %s)", err, result.Stdout, result.Stderr)
	}
	return result, nil
}
