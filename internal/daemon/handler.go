package daemon

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"hookd/internal/protocol"
)

func decodeCommand(raw []byte) (*protocol.Command, error) {
	var cmd protocol.Command
	if err := json.Unmarshal(raw, &cmd); err != nil {
		return nil, err
	}
	return &cmd, nil
}

// pingAck is the fixed acknowledgment payload of the ping command.
const pingAck = "Hello from hookd!"

// handlerFunc handles one command, returning the success payload or an
// error that the router converts into an error response.
type handlerFunc func(cmd *protocol.Command) (any, error)

func (d *Daemon) registerHandlers() {
	d.handlers = map[string]handlerFunc{
		protocol.CmdActiveApplication:   d.handleActiveApplication,
		protocol.CmdScreenCapture:       d.handleScreenCapture,
		protocol.CmdSimulateKeystrokes:  d.handleSimulateKeystrokes,
		protocol.CmdMoveMouse:           d.handleMoveMouse,
		protocol.CmdMouseClick:          d.handleMouseClick,
		protocol.CmdExecuteShell:        d.handleExecuteShell,
		protocol.CmdTerminalNewTab:      d.handleTerminalNewTab,
		protocol.CmdQuitApplication:     d.handleQuitApplication,
		protocol.CmdFocusedInputText:    d.handleFocusedInputText,
		protocol.CmdTypeInTargetInput:   d.handleTypeInTargetInput,
		protocol.CmdClickButtonInTarget: d.handleClickButtonInTarget,
		protocol.CmdStartFSMonitoring:   d.handleStartMonitoring,
		protocol.CmdStopFSMonitoring:    d.handleStopMonitoring,
		protocol.CmdGetContextHistory:   d.handleContextHistory,
	}
}

// dispatch parses a raw frame and sends exactly one response on c. It
// runs on the dispatch loop; a handler that blocks stalls every other
// command until it returns. Nothing in here may terminate the connection
// or the process.
func (d *Daemon) dispatch(c *Connection, raw []byte) {
	cmd, err := decodeCommand(raw)
	if err != nil {
		d.logger.Warn("malformed frame", zap.Int64("client", c.id), zap.Error(err))
		d.respond(c, protocol.ParseError("Invalid JSON format"))
		return
	}

	if cmd.EnsureID() {
		d.logger.Warn("command without id, synthesizing one",
			zap.Int64("client", c.id),
			zap.String("command", cmd.Command))
	}

	// ping is answered immediately, outside general dispatch.
	if cmd.Command == protocol.CmdPing {
		d.respond(c, protocol.Success(cmd, pingAck))
		return
	}

	handler, ok := d.handlers[cmd.Command]
	if !ok {
		d.logger.Warn("unknown command",
			zap.Int64("client", c.id),
			zap.String("command", cmd.Command))
		d.respond(c, protocol.Error(cmd, fmt.Sprintf("Unknown command: %s", cmd.Command)))
		return
	}

	d.respond(c, d.invoke(handler, cmd))
}

// invoke runs a handler, converting its outcome (or panic) into a
// response envelope.
func (d *Daemon) invoke(handler handlerFunc, cmd *protocol.Command) (resp *protocol.Response) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("handler panic",
				zap.String("command", cmd.Command),
				zap.Any("panic", r))
			resp = protocol.Error(cmd, fmt.Sprintf("internal error handling %s", cmd.Command))
		}
	}()

	payload, err := handler(cmd)
	if err != nil {
		d.logger.Warn("command failed",
			zap.String("command", cmd.Command),
			zap.Error(err))
		return protocol.Error(cmd, err.Error())
	}
	return protocol.Success(cmd, payload)
}

// handleContextHistory returns the three context rings, oldest first.
func (d *Daemon) handleContextHistory(cmd *protocol.Command) (any, error) {
	return map[string]any{
		"app_focus_history":  d.history.AppFocus.Snapshot(),
		"file_event_history": d.history.FileEvents.Snapshot(),
		"command_history":    d.history.Commands.Snapshot(),
	}, nil
}
