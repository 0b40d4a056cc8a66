// Package native defines the OS-level collaborator contracts consumed by
// the daemon's command handlers, plus the exec-based macOS implementation
// built on screencapture, osascript and cliclick.
//
// Every blocking call takes a context; callers bound them with the
// per-operation timeouts from the daemon configuration. A timeout or
// failure surfaces as an error on the command, never as a crash.
package native

import "context"

// AppInfo describes the frontmost application and its main window.
// Queries never fail; unknown fields carry placeholder values.
type AppInfo struct {
	ApplicationName string `json:"application_name"`
	WindowTitle     string `json:"window_title"`
	BundleID        string `json:"bundle_id"`
	PID             int    `json:"pid"`
}

// UnknownAppInfo is the placeholder returned when the foreground state
// cannot be determined.
func UnknownAppInfo() AppInfo {
	return AppInfo{
		ApplicationName: "Unknown",
		WindowTitle:     "Unknown",
		BundleID:        "Unknown",
		PID:             -1,
	}
}

// ShellResult carries both output streams of a shell command regardless
// of whether the command succeeded.
type ShellResult struct {
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"return_code"`
}

// Mouse buttons and click kinds accepted by Click.
const (
	ButtonLeft  = "left"
	ButtonRight = "right"

	ClickSingle = "click"
	ClickDouble = "double_click"
)

// Desktop is the set of OS side effects the daemon can trigger.
type Desktop interface {
	// Foreground returns the frontmost application state. It never
	// returns an error; on failure the placeholder AppInfo is returned.
	Foreground(ctx context.Context) AppInfo

	// CaptureScreen captures the full screen and returns PNG bytes.
	CaptureScreen(ctx context.Context) ([]byte, error)

	// TypeText injects keystrokes into the focused application,
	// optionally pressing return afterwards.
	TypeText(ctx context.Context, text string, pressEnter bool) error

	// MoveMouse moves the pointer to screen coordinates.
	MoveMouse(ctx context.Context, x, y int) error

	// Click clicks at screen coordinates with the given button and kind.
	Click(ctx context.Context, x, y int, button, kind string) error

	// RunShell executes a command line via the shell. Stdout and stderr
	// are populated in the result even when the command exits nonzero.
	RunShell(ctx context.Context, command string) (ShellResult, error)

	// RunScript executes an AppleScript and returns its output.
	RunScript(ctx context.Context, script string) (string, error)
}
