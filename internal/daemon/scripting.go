package daemon

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"hookd/internal/protocol"
)

// handleTerminalNewTab opens a new Terminal tab and runs a command line
// in it via AppleScript. The automation is recorded into the command
// history ring.
func (d *Daemon) handleTerminalNewTab(cmd *protocol.Command) (any, error) {
	if len(cmd.Payload) == 0 {
		return nil, errors.New("Missing 'command' in payload for terminal_run_in_new_tab")
	}
	var p protocol.TerminalTabPayload
	if err := json.Unmarshal(cmd.Payload, &p); err != nil {
		return nil, fmt.Errorf("invalid payload for %s: %v", cmd.Command, err)
	}
	if p.Command == "" {
		return nil, errors.New("Missing 'command' in payload for terminal_run_in_new_tab")
	}

	ctx, cancel := d.operationContext(d.cfg.ScriptTimeout)
	defer cancel()

	script := terminalTabScript(p)
	out, err := d.desktop.RunScript(ctx, script)

	d.history.Commands.Add(map[string]any{
		"kind":    "terminal_tab",
		"command": p.Command,
		"tab":     p.TabName,
	})

	if err != nil {
		return nil, err
	}
	result := map[string]any{"message": "Command started in new Terminal tab."}
	if out != "" {
		result["output"] = out
	}
	return result, nil
}

func terminalTabScript(p protocol.TerminalTabPayload) string {
	var b strings.Builder
	b.WriteString("tell application \"Terminal\"\n")
	if p.ActivateTerminal {
		b.WriteString("activate\n")
	}
	fmt.Fprintf(&b, "do script %s\n", appleScriptString(p.Command))
	if p.TabName != "" {
		fmt.Fprintf(&b, "try\nset custom title of front tab of front window to %s\nend try\n",
			appleScriptString(p.TabName))
	}
	b.WriteString("end tell")
	return b.String()
}

// handleQuitApplication asks an application to quit gracefully, by
// bundle id when given, by name otherwise.
func (d *Daemon) handleQuitApplication(cmd *protocol.Command) (any, error) {
	if len(cmd.Payload) == 0 {
		return nil, errors.New("Missing 'bundle_id' or 'app_name' in payload for quit_application")
	}
	var p protocol.QuitApplicationPayload
	if err := json.Unmarshal(cmd.Payload, &p); err != nil {
		return nil, fmt.Errorf("invalid payload for %s: %v", cmd.Command, err)
	}
	if p.BundleID == "" && p.AppName == "" {
		return nil, errors.New("Missing 'bundle_id' or 'app_name' in payload for quit_application")
	}

	var script, target string
	if p.BundleID != "" {
		target = p.BundleID
		script = fmt.Sprintf("tell application id %s to quit", appleScriptString(p.BundleID))
	} else {
		target = p.AppName
		script = fmt.Sprintf("tell application %s to quit", appleScriptString(p.AppName))
	}

	ctx, cancel := d.operationContext(d.cfg.ScriptTimeout)
	defer cancel()

	_, err := d.desktop.RunScript(ctx, script)

	d.history.Commands.Add(map[string]any{
		"kind":   "quit_application",
		"target": target,
	})

	if err != nil {
		return nil, err
	}
	return map[string]any{"message": fmt.Sprintf("Asked %s to quit.", target)}, nil
}

// appleScriptString renders s as an AppleScript string literal.
func appleScriptString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}
