package native

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// desktop drives the OS through the standard macOS command line tools:
// screencapture for capture, osascript for scripting and keystrokes,
// cliclick for pointer control.
type desktop struct {
	logger *zap.Logger
}

// NewDesktop returns the exec-based Desktop implementation.
func NewDesktop(logger *zap.Logger) Desktop {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &desktop{logger: logger.Named("native")}
}

const foregroundScript = `tell application "System Events"
	set frontProc to first application process whose frontmost is true
	set appName to name of frontProc
	set bundleID to ""
	try
		set bundleID to bundle identifier of frontProc
	end try
	set procID to unix id of frontProc
	set winTitle to ""
	try
		set winTitle to name of front window of frontProc
	end try
	return appName & linefeed & bundleID & linefeed & procID & linefeed & winTitle
end tell`

func (d *desktop) Foreground(ctx context.Context) AppInfo {
	out, err := d.RunScript(ctx, foregroundScript)
	if err != nil {
		d.logger.Warn("foreground query failed", zap.Error(err))
		return UnknownAppInfo()
	}

	info := UnknownAppInfo()
	lines := strings.SplitN(out, "\n", 4)
	if len(lines) > 0 && lines[0] != "" {
		info.ApplicationName = lines[0]
	}
	if len(lines) > 1 && lines[1] != "" {
		info.BundleID = lines[1]
	}
	if len(lines) > 2 {
		if pid, err := strconv.Atoi(strings.TrimSpace(lines[2])); err == nil {
			info.PID = pid
		}
	}
	if len(lines) > 3 && lines[3] != "" {
		info.WindowTitle = lines[3]
	}
	return info
}

func (d *desktop) CaptureScreen(ctx context.Context) ([]byte, error) {
	path := filepath.Join(os.TempDir(), fmt.Sprintf("hookd_capture_%s.png", uuid.NewString()))
	defer os.Remove(path)

	cmd := exec.CommandContext(ctx, "screencapture", "-x", "-C", "-T", "0", "-t", "png", path)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, errors.New("screen capture timed out")
		}
		return nil, fmt.Errorf("screen capture failed: %s", firstNonEmpty(strings.TrimSpace(stderr.String()), err.Error()))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("capture output file missing: %w", err)
	}
	return data, nil
}

func (d *desktop) TypeText(ctx context.Context, text string, pressEnter bool) error {
	var b strings.Builder
	b.WriteString("tell application \"System Events\"\n")
	fmt.Fprintf(&b, "keystroke %s\n", quoteAppleScript(text))
	if pressEnter {
		b.WriteString("keystroke return\n")
	}
	b.WriteString("end tell")

	_, err := d.RunScript(ctx, b.String())
	return err
}

func (d *desktop) MoveMouse(ctx context.Context, x, y int) error {
	return d.cliclick(ctx, fmt.Sprintf("m:%d,%d", x, y))
}

func (d *desktop) Click(ctx context.Context, x, y int, button, kind string) error {
	var action string
	switch {
	case button == ButtonRight:
		action = "rc"
	case kind == ClickDouble:
		action = "dc"
	case button == "" || button == ButtonLeft:
		action = "c"
	default:
		return fmt.Errorf("unsupported mouse button: %q", button)
	}
	return d.cliclick(ctx, fmt.Sprintf("%s:%d,%d", action, x, y))
}

func (d *desktop) cliclick(ctx context.Context, spec string) error {
	cmd := exec.CommandContext(ctx, "cliclick", spec)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return errors.New("mouse control timed out")
		}
		return fmt.Errorf("cliclick failed: %s", firstNonEmpty(strings.TrimSpace(stderr.String()), err.Error()))
	}
	return nil
}

func (d *desktop) RunShell(ctx context.Context, command string) (ShellResult, error) {
	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", command)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := ShellResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		// Nonzero exit is a command outcome, not a transport failure.
		result.ExitCode = exitErr.ExitCode()
	case ctx.Err() != nil:
		result.ExitCode = -1
		return result, errors.New("shell command timed out")
	default:
		result.ExitCode = -1
		return result, fmt.Errorf("shell command failed to run: %w", err)
	}
	return result, nil
}

func (d *desktop) RunScript(ctx context.Context, script string) (string, error) {
	cmd := exec.CommandContext(ctx, "osascript", "-e", script)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", errors.New("script execution timed out")
		}
		return "", fmt.Errorf("osascript failed: %s", firstNonEmpty(strings.TrimSpace(stderr.String()), err.Error()))
	}
	return strings.TrimRight(stdout.String(), "\n"), nil
}

// quoteAppleScript renders s as an AppleScript string literal.
func quoteAppleScript(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
