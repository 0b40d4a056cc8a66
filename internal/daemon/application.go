package daemon

import (
	"encoding/base64"

	"hookd/internal/protocol"
)

// handleActiveApplication queries the frontmost application state. The
// query never fails; placeholder values are returned instead. Each query
// result is recorded into the app-focus history ring.
func (d *Daemon) handleActiveApplication(cmd *protocol.Command) (any, error) {
	ctx, cancel := d.operationContext(d.cfg.InputTimeout)
	defer cancel()

	info := d.desktop.Foreground(ctx)
	d.history.AppFocus.Add(info)
	return info, nil
}

// handleScreenCapture captures the full screen and returns it as base64
// PNG data.
func (d *Daemon) handleScreenCapture(cmd *protocol.Command) (any, error) {
	ctx, cancel := d.operationContext(d.cfg.CaptureTimeout)
	defer cancel()

	data, err := d.desktop.CaptureScreen(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"imageData": base64.StdEncoding.EncodeToString(data),
		"format":    "png",
	}, nil
}
