package daemon

import (
	"encoding/json"
	"errors"
	"fmt"

	"hookd/internal/protocol"
)

// handleSimulateKeystrokes types text into the focused application. The
// payload accepts both the object form and a legacy bare string.
func (d *Daemon) handleSimulateKeystrokes(cmd *protocol.Command) (any, error) {
	var p protocol.KeystrokesPayload
	if len(cmd.Payload) > 0 {
		if err := json.Unmarshal(cmd.Payload, &p); err != nil {
			return nil, fmt.Errorf("invalid payload for %s: %v", cmd.Command, err)
		}
	}
	if p.Text == "" {
		return nil, errors.New("Missing 'text' in payload for simulate_keystrokes")
	}

	ctx, cancel := d.operationContext(d.cfg.InputTimeout)
	defer cancel()

	if err := d.desktop.TypeText(ctx, p.Text, p.PressEnter); err != nil {
		return nil, err
	}
	return map[string]any{"message": "Keystrokes simulated."}, nil
}

// handleMoveMouse moves the pointer to the given screen coordinates.
func (d *Daemon) handleMoveMouse(cmd *protocol.Command) (any, error) {
	p, err := decodeMousePayload(cmd)
	if err != nil {
		return nil, err
	}

	ctx, cancel := d.operationContext(d.cfg.InputTimeout)
	defer cancel()

	if err := d.desktop.MoveMouse(ctx, p.X, p.Y); err != nil {
		return nil, err
	}
	return map[string]any{"message": fmt.Sprintf("Mouse moved to (%d, %d).", p.X, p.Y)}, nil
}

// handleMouseClick clicks at the given screen coordinates.
func (d *Daemon) handleMouseClick(cmd *protocol.Command) (any, error) {
	p, err := decodeMousePayload(cmd)
	if err != nil {
		return nil, err
	}

	ctx, cancel := d.operationContext(d.cfg.InputTimeout)
	defer cancel()

	if err := d.desktop.Click(ctx, p.X, p.Y, p.Button, p.ClickType); err != nil {
		return nil, err
	}
	return map[string]any{"message": fmt.Sprintf("Mouse clicked at (%d, %d).", p.X, p.Y)}, nil
}

func decodeMousePayload(cmd *protocol.Command) (*protocol.MousePayload, error) {
	if len(cmd.Payload) == 0 {
		return nil, fmt.Errorf("missing payload for %s", cmd.Command)
	}
	var p protocol.MousePayload
	if err := json.Unmarshal(cmd.Payload, &p); err != nil {
		return nil, fmt.Errorf("invalid payload for %s: %v", cmd.Command, err)
	}
	return &p, nil
}
