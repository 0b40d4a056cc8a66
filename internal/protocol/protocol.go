// Package protocol defines the JSON wire envelopes exchanged between the
// hookd daemon and its front-end over a persistent websocket connection.
//
// Three frame kinds travel on the wire:
//
//   - Command: client -> daemon, carries a correlation id, a command name
//     and an optional payload.
//   - Response: daemon -> client, exactly one per command, echoing the
//     correlation id and the received payload.
//   - Broadcast: daemon -> client, unsolicited (filesystem events), sent
//     to every connected client with a freshly generated id.
//
// Unknown fields in any frame are ignored, never rejected. There is no
// protocol version field.
package protocol

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Command names accepted by the daemon.
const (
	CmdPing                 = "ping"
	CmdActiveApplication    = "get_active_application_info"
	CmdScreenCapture        = "trigger_screen_capture"
	CmdSimulateKeystrokes   = "simulate_keystrokes"
	CmdMoveMouse            = "move_mouse"
	CmdMouseClick           = "mouse_click"
	CmdExecuteShell         = "execute_shell_command"
	CmdTerminalNewTab       = "terminal_run_in_new_tab"
	CmdQuitApplication      = "quit_application"
	CmdFocusedInputText     = "get_focused_input_text"
	CmdTypeInTargetInput    = "type_in_target_input"
	CmdClickButtonInTarget  = "click_button_in_target"
	CmdStartFSMonitoring    = "start_fs_monitoring"
	CmdStopFSMonitoring     = "stop_fs_monitoring"
	CmdGetContextHistory    = "get_hook_context_history"
)

// Response statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Special response types that do not follow the "<command>_response"
// naming rule.
const (
	TypePong            = "pong"
	TypeError           = "error"
	TypeFileSystemEvent = "file_system_event"
)

// Command is an inbound request frame. The id is an opaque correlation
// token chosen by the client; it is echoed verbatim in the response. The
// payload is kept raw so it can be echoed byte-for-byte and decoded into
// a command-specific structure by the handler.
type Command struct {
	ID      any             `json:"id"`
	Command string          `json:"command"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// EnsureID fills in a synthesized correlation id when the client omitted
// one. Reports whether synthesis happened so the caller can log the
// degraded request.
func (c *Command) EnsureID() bool {
	if c.ID != nil {
		return false
	}
	c.ID = NewID()
	return true
}

// NewID returns a fresh server-generated correlation id.
func NewID() string {
	return "srv-" + uuid.NewString()
}

// Response is an outbound frame answering a single Command.
type Response struct {
	ID              any             `json:"id"`
	Type            string          `json:"type"`
	OriginalCommand string          `json:"original_command,omitempty"`
	Status          string          `json:"status"`
	ReceivedPayload json.RawMessage `json:"received_payload,omitempty"`
	Payload         any             `json:"payload,omitempty"`
	ErrorMessage    string          `json:"error_message,omitempty"`
}

// ResponseType derives the response type for a command name.
func ResponseType(command string) string {
	if command == CmdPing {
		return TypePong
	}
	return command + "_response"
}

// Success builds the success response for cmd carrying payload.
func Success(cmd *Command, payload any) *Response {
	return &Response{
		ID:              cmd.ID,
		Type:            ResponseType(cmd.Command),
		OriginalCommand: cmd.Command,
		Status:          StatusSuccess,
		ReceivedPayload: cmd.Payload,
		Payload:         payload,
	}
}

// Error builds the error response for cmd with the given message.
func Error(cmd *Command, message string) *Response {
	return &Response{
		ID:              cmd.ID,
		Type:            ResponseType(cmd.Command),
		OriginalCommand: cmd.Command,
		Status:          StatusError,
		ReceivedPayload: cmd.Payload,
		ErrorMessage:    message,
	}
}

// ParseError builds the generic error response used when the inbound
// frame could not be decoded at all. The id is synthesized since none
// could be recovered from the frame.
func ParseError(message string) *Response {
	return &Response{
		ID:           NewID(),
		Type:         TypeError,
		Status:       StatusError,
		ErrorMessage: message,
	}
}

// FileSystemEventPayload is the payload of a file_system_event broadcast.
// DestPath is only present for moved events where a destination is known.
type FileSystemEventPayload struct {
	EventType   string    `json:"event_type"`
	SrcPath     string    `json:"src_path"`
	DestPath    string    `json:"dest_path,omitempty"`
	IsDirectory bool      `json:"is_directory"`
	Timestamp   time.Time `json:"timestamp"`
}

// FileSystemEvent builds an unsolicited broadcast frame for a filesystem
// change. Each broadcast gets a freshly generated id.
func FileSystemEvent(payload FileSystemEventPayload) *Response {
	return &Response{
		ID:      uuid.NewString(),
		Type:    TypeFileSystemEvent,
		Status:  StatusSuccess,
		Payload: payload,
	}
}
