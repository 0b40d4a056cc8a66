package daemon

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hookd/internal/ax"
	"hookd/internal/config"
	"hookd/internal/native"
)

// fakeDesktop is a canned-response Desktop for exercising the dispatch
// path without touching the OS.
type fakeDesktop struct {
	mu sync.Mutex

	foreground  native.AppInfo
	captureData []byte
	captureErr  error
	typed       []string
	shellResult native.ShellResult
	shellErr    error
	scripts     []string
	scriptOut   string
	scriptErr   error
}

func (f *fakeDesktop) Foreground(ctx context.Context) native.AppInfo {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.foreground
}

func (f *fakeDesktop) CaptureScreen(ctx context.Context) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.captureData, f.captureErr
}

func (f *fakeDesktop) TypeText(ctx context.Context, text string, pressEnter bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.typed = append(f.typed, text)
	return nil
}

func (f *fakeDesktop) MoveMouse(ctx context.Context, x, y int) error { return nil }

func (f *fakeDesktop) Click(ctx context.Context, x, y int, button, kind string) error {
	return nil
}

func (f *fakeDesktop) RunShell(ctx context.Context, command string) (native.ShellResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.shellResult, f.shellErr
}

func (f *fakeDesktop) RunScript(ctx context.Context, script string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scripts = append(f.scripts, script)
	return f.scriptOut, f.scriptErr
}

// fakeElement and fakeProvider stand in for the accessibility tree.
type fakeElement struct {
	role, title, desc string
	value             string
	enabled           bool
	pressed           bool
	setValues         []string
	children          []ax.Element
}

func (e *fakeElement) Role() (string, error)        { return e.role, nil }
func (e *fakeElement) Title() (string, error)       { return e.title, nil }
func (e *fakeElement) Description() (string, error) { return e.desc, nil }
func (e *fakeElement) Value() (string, error)       { return e.value, nil }
func (e *fakeElement) Enabled() (bool, error)       { return e.enabled, nil }
func (e *fakeElement) Children() ([]ax.Element, error) {
	return e.children, nil
}

func (e *fakeElement) SetValue(v string) error {
	e.setValues = append(e.setValues, v)
	return nil
}

func (e *fakeElement) Press() error {
	e.pressed = true
	return nil
}

type fakeProvider struct {
	focus *fakeElement
	apps  map[string]*fakeElement
}

func (p *fakeProvider) Trusted() bool { return true }

func (p *fakeProvider) SystemFocus() (ax.Element, error) {
	if p.focus == nil {
		return nil, ax.ErrUnavailable
	}
	return p.focus, nil
}

func (p *fakeProvider) Application(bundleID string) (ax.Element, error) {
	app, ok := p.apps[bundleID]
	if !ok {
		return nil, fmt.Errorf("application %s is not running", bundleID)
	}
	return app, nil
}

// startTestDaemon runs a daemon on an ephemeral port and returns it.
func startTestDaemon(t *testing.T, opts Options) *Daemon {
	t.Helper()

	cfg := config.Default()
	cfg.ListenAddr = "127.0.0.1:0"

	d := New(cfg, opts)
	require.NoError(t, d.Start())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		d.Stop(ctx)
	})
	return d
}

func dialTestDaemon(t *testing.T, d *Daemon) *websocket.Conn {
	t.Helper()

	url := "ws://" + d.Addr().String() + "/"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendCommand(t *testing.T, conn *websocket.Conn, frame string) {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(frame)))
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var frame map[string]any
	require.NoError(t, json.Unmarshal(data, &frame))
	return frame
}

func TestPingScenario(t *testing.T) {
	d := startTestDaemon(t, Options{Desktop: &fakeDesktop{}})
	conn := dialTestDaemon(t, d)

	sendCommand(t, conn, `{"id":"1","command":"ping"}`)

	resp := readFrame(t, conn)
	assert.Equal(t, "1", resp["id"])
	assert.Equal(t, "pong", resp["type"])
	assert.Equal(t, "success", resp["status"])
	assert.Equal(t, "Hello from hookd!", resp["payload"])
}

func TestUnknownCommandKeepsConnectionOpen(t *testing.T) {
	d := startTestDaemon(t, Options{Desktop: &fakeDesktop{}})
	conn := dialTestDaemon(t, d)

	sendCommand(t, conn, `{"id":"2","command":"summon_demons"}`)

	resp := readFrame(t, conn)
	assert.Equal(t, "2", resp["id"])
	assert.Equal(t, "error", resp["status"])
	assert.Equal(t, "Unknown command: summon_demons", resp["error_message"])

	// The connection survives the unknown command.
	sendCommand(t, conn, `{"id":"3","command":"ping"}`)
	resp = readFrame(t, conn)
	assert.Equal(t, "3", resp["id"])
	assert.Equal(t, "pong", resp["type"])
}

func TestMalformedJSONGetsGenericError(t *testing.T) {
	d := startTestDaemon(t, Options{Desktop: &fakeDesktop{}})
	conn := dialTestDaemon(t, d)

	sendCommand(t, conn, `{this is not json`)

	resp := readFrame(t, conn)
	assert.Equal(t, "error", resp["type"])
	assert.Equal(t, "error", resp["status"])
	assert.NotEmpty(t, resp["id"], "parse errors carry a synthesized id")
}

func TestMissingIDIsSynthesized(t *testing.T) {
	d := startTestDaemon(t, Options{Desktop: &fakeDesktop{}})
	conn := dialTestDaemon(t, d)

	sendCommand(t, conn, `{"command":"ping"}`)

	resp := readFrame(t, conn)
	assert.Equal(t, "pong", resp["type"])
	id, _ := resp["id"].(string)
	assert.Contains(t, id, "srv-")
}

func TestResponseIDBijection(t *testing.T) {
	d := startTestDaemon(t, Options{Desktop: &fakeDesktop{
		foreground: native.AppInfo{ApplicationName: "TextEdit", PID: 42},
	}})
	conn := dialTestDaemon(t, d)

	const n = 20
	sent := make(map[string]bool, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("req-%d", i)
		sent[id] = true
		command := "ping"
		if i%2 == 0 {
			command = "get_active_application_info"
		}
		sendCommand(t, conn, fmt.Sprintf(`{"id":%q,"command":%q}`, id, command))
	}

	received := make(map[string]bool, n)
	for i := 0; i < n; i++ {
		resp := readFrame(t, conn)
		id, ok := resp["id"].(string)
		require.True(t, ok, "response id must be a string: %v", resp["id"])
		assert.False(t, received[id], "duplicate response for id %s", id)
		received[id] = true
	}
	assert.Equal(t, sent, received)
}

func TestActiveApplicationRecordsFocusHistory(t *testing.T) {
	d := startTestDaemon(t, Options{Desktop: &fakeDesktop{
		foreground: native.AppInfo{
			ApplicationName: "Safari",
			WindowTitle:     "Example",
			BundleID:        "com.apple.Safari",
			PID:             1234,
		},
	}})
	conn := dialTestDaemon(t, d)

	sendCommand(t, conn, `{"id":"a1","command":"get_active_application_info"}`)

	resp := readFrame(t, conn)
	require.Equal(t, "success", resp["status"])
	payload := resp["payload"].(map[string]any)
	assert.Equal(t, "Safari", payload["application_name"])
	assert.Equal(t, "com.apple.Safari", payload["bundle_id"])
	assert.Equal(t, float64(1234), payload["pid"])

	sendCommand(t, conn, `{"id":"a2","command":"get_hook_context_history"}`)
	resp = readFrame(t, conn)
	history := resp["payload"].(map[string]any)
	focus := history["app_focus_history"].([]any)
	require.Len(t, focus, 1)
}

func TestScreenCapture(t *testing.T) {
	raw := []byte{0x89, 'P', 'N', 'G'}
	d := startTestDaemon(t, Options{Desktop: &fakeDesktop{captureData: raw}})
	conn := dialTestDaemon(t, d)

	sendCommand(t, conn, `{"id":"c1","command":"trigger_screen_capture"}`)

	resp := readFrame(t, conn)
	require.Equal(t, "success", resp["status"])
	assert.Equal(t, "trigger_screen_capture_response", resp["type"])
	payload := resp["payload"].(map[string]any)
	assert.Equal(t, "png", payload["format"])
	assert.Equal(t, base64.StdEncoding.EncodeToString(raw), payload["imageData"])
}

func TestSimulateKeystrokesValidation(t *testing.T) {
	d := startTestDaemon(t, Options{Desktop: &fakeDesktop{}})
	conn := dialTestDaemon(t, d)

	sendCommand(t, conn, `{"id":"k1","command":"simulate_keystrokes","payload":{}}`)

	resp := readFrame(t, conn)
	assert.Equal(t, "error", resp["status"])
	assert.Contains(t, resp["error_message"], "Missing 'text'")
}

func TestSimulateKeystrokesLegacyStringPayload(t *testing.T) {
	fake := &fakeDesktop{}
	d := startTestDaemon(t, Options{Desktop: fake})
	conn := dialTestDaemon(t, d)

	sendCommand(t, conn, `{"id":"k2","command":"simulate_keystrokes","payload":"hello"}`)

	resp := readFrame(t, conn)
	require.Equal(t, "success", resp["status"])

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Equal(t, []string{"hello"}, fake.typed)
}

func TestExecuteShellReturnsBothStreams(t *testing.T) {
	d := startTestDaemon(t, Options{Desktop: &fakeDesktop{
		shellResult: native.ShellResult{Stdout: "out", Stderr: "warnings", ExitCode: 1},
	}})
	conn := dialTestDaemon(t, d)

	sendCommand(t, conn, `{"id":"s1","command":"execute_shell_command","payload":{"command":"ls /nope"}}`)

	resp := readFrame(t, conn)
	require.Equal(t, "success", resp["status"])
	payload := resp["payload"].(map[string]any)
	assert.Equal(t, "out", payload["stdout"])
	assert.Equal(t, "warnings", payload["stderr"])
	assert.Equal(t, float64(1), payload["return_code"])

	// The execution lands in the command history.
	sendCommand(t, conn, `{"id":"s2","command":"get_hook_context_history"}`)
	resp = readFrame(t, conn)
	history := resp["payload"].(map[string]any)
	commands := history["command_history"].([]any)
	require.Len(t, commands, 1)
}

func TestAccessibilityUnavailable(t *testing.T) {
	d := startTestDaemon(t, Options{Desktop: &fakeDesktop{}})
	conn := dialTestDaemon(t, d)

	sendCommand(t, conn, `{"id":"x1","command":"click_button_in_target","payload":{"target_app_bundle_id":"com.apple.TextEdit","button_identifier":"Don't Save"}}`)

	resp := readFrame(t, conn)
	assert.Equal(t, "error", resp["status"])
	assert.Contains(t, resp["error_message"], "accessibility")
}

func TestClickButtonInTarget(t *testing.T) {
	button := &fakeElement{role: ax.RoleButton, title: "Don't Save", enabled: true}
	root := &fakeElement{role: "AXWindow", enabled: true, children: []ax.Element{button}}
	provider := &fakeProvider{apps: map[string]*fakeElement{"com.apple.TextEdit": root}}

	d := startTestDaemon(t, Options{Desktop: &fakeDesktop{}, Accessibility: provider})
	conn := dialTestDaemon(t, d)

	sendCommand(t, conn, `{"id":"b1","command":"click_button_in_target","payload":{"target_app_bundle_id":"com.apple.TextEdit","button_identifier":"don't save"}}`)

	resp := readFrame(t, conn)
	require.Equal(t, "success", resp["status"], "error: %v", resp["error_message"])
	assert.True(t, button.pressed)

	sendCommand(t, conn, `{"id":"b2","command":"click_button_in_target","payload":{"target_app_bundle_id":"com.apple.TextEdit","button_identifier":"No Such Button"}}`)
	resp = readFrame(t, conn)
	assert.Equal(t, "error", resp["status"])
	assert.Contains(t, resp["error_message"], "not found")
}

func TestTypeInTargetInput(t *testing.T) {
	field := &fakeElement{role: ax.RoleTextField, enabled: true}
	root := &fakeElement{role: "AXWindow", enabled: true, children: []ax.Element{field}}
	provider := &fakeProvider{apps: map[string]*fakeElement{"com.apple.TextEdit": root}}

	d := startTestDaemon(t, Options{Desktop: &fakeDesktop{}, Accessibility: provider})
	conn := dialTestDaemon(t, d)

	sendCommand(t, conn, `{"id":"t1","command":"type_in_target_input","payload":{"target_app_bundle_id":"com.apple.TextEdit","text":"Hello!"}}`)

	resp := readFrame(t, conn)
	require.Equal(t, "success", resp["status"], "error: %v", resp["error_message"])
	assert.Equal(t, []string{"Hello!"}, field.setValues)
}

func TestFocusedInputText(t *testing.T) {
	focus := &fakeElement{role: ax.RoleTextField, value: "draft text", enabled: true}
	provider := &fakeProvider{focus: focus}

	d := startTestDaemon(t, Options{Desktop: &fakeDesktop{}, Accessibility: provider})
	conn := dialTestDaemon(t, d)

	sendCommand(t, conn, `{"id":"f1","command":"get_focused_input_text"}`)

	resp := readFrame(t, conn)
	require.Equal(t, "success", resp["status"], "error: %v", resp["error_message"])
	payload := resp["payload"].(map[string]any)
	assert.Equal(t, "draft text", payload["text"])
	assert.Equal(t, ax.RoleTextField, payload["role"])
}

func TestStartMonitoringMissingPath(t *testing.T) {
	d := startTestDaemon(t, Options{Desktop: &fakeDesktop{}})
	conn := dialTestDaemon(t, d)

	missing := filepath.Join(t.TempDir(), "ghost")
	sendCommand(t, conn, fmt.Sprintf(
		`{"id":"m1","command":"start_fs_monitoring","payload":{"paths":[%q],"recursive":true}}`, missing))

	resp := readFrame(t, conn)
	assert.Equal(t, "error", resp["status"])
	assert.Contains(t, resp["error_message"], "does not exist")
	assert.False(t, d.watchMgr.Watching(), "no watcher may be left running")
}

func TestBroadcastReachesAllClientsAndHistory(t *testing.T) {
	d := startTestDaemon(t, Options{Desktop: &fakeDesktop{}})
	connA := dialTestDaemon(t, d)
	connB := dialTestDaemon(t, d)

	dir := t.TempDir()
	sendCommand(t, connA, fmt.Sprintf(
		`{"id":"w1","command":"start_fs_monitoring","payload":{"paths":[%q],"recursive":true,"alias":"test"}}`, dir))
	resp := readFrame(t, connA)
	require.Equal(t, "success", resp["status"], "error: %v", resp["error_message"])

	file := filepath.Join(dir, "new_file.txt")
	require.NoError(t, os.WriteFile(file, []byte("hello"), 0o644))

	for _, conn := range []*websocket.Conn{connA, connB} {
		frame := waitForBroadcast(t, conn, file)
		assert.Equal(t, "success", frame["status"])
		payload := frame["payload"].(map[string]any)
		assert.Equal(t, "created", payload["event_type"])
		assert.Equal(t, file, payload["src_path"])
		assert.NotEmpty(t, frame["id"])
	}

	sendCommand(t, connB, `{"id":"h1","command":"get_hook_context_history"}`)
	for {
		frame := readFrame(t, connB)
		if frame["type"] != "get_hook_context_history_response" {
			continue // interleaved broadcast
		}
		history := frame["payload"].(map[string]any)
		events := history["file_event_history"].([]any)
		require.NotEmpty(t, events)
		break
	}

	sendCommand(t, connA, `{"id":"w2","command":"stop_fs_monitoring","payload":{"paths":[]}}`)
	for {
		frame := readFrame(t, connA)
		if frame["type"] == "stop_fs_monitoring_response" {
			require.Equal(t, "success", frame["status"])
			break
		}
	}
	assert.False(t, d.watchMgr.Watching())
}

// waitForBroadcast reads frames until a file_system_event for path
// arrives, skipping interleaved responses and unrelated events.
func waitForBroadcast(t *testing.T, conn *websocket.Conn, path string) map[string]any {
	t.Helper()
	for i := 0; i < 20; i++ {
		frame := readFrame(t, conn)
		if frame["type"] != "file_system_event" {
			continue
		}
		payload, _ := frame["payload"].(map[string]any)
		if payload["src_path"] == path {
			return frame
		}
	}
	t.Fatalf("no broadcast received for %s", path)
	return nil
}

func TestStopMonitoringWhenIdle(t *testing.T) {
	d := startTestDaemon(t, Options{Desktop: &fakeDesktop{}})
	conn := dialTestDaemon(t, d)

	sendCommand(t, conn, `{"id":"i1","command":"stop_fs_monitoring"}`)

	resp := readFrame(t, conn)
	assert.Equal(t, "error", resp["status"])
	assert.Contains(t, resp["error_message"], "not active")
}

func TestQuitApplicationValidation(t *testing.T) {
	d := startTestDaemon(t, Options{Desktop: &fakeDesktop{}})
	conn := dialTestDaemon(t, d)

	sendCommand(t, conn, `{"id":"q1","command":"quit_application","payload":{}}`)

	resp := readFrame(t, conn)
	assert.Equal(t, "error", resp["status"])
	assert.Contains(t, resp["error_message"], "bundle_id")
}

func TestQuitApplicationUsesBundleID(t *testing.T) {
	fake := &fakeDesktop{}
	d := startTestDaemon(t, Options{Desktop: fake})
	conn := dialTestDaemon(t, d)

	sendCommand(t, conn, `{"id":"q2","command":"quit_application","payload":{"bundle_id":"com.apple.TextEdit","app_name":"TextEdit"}}`)

	resp := readFrame(t, conn)
	require.Equal(t, "success", resp["status"])

	fake.mu.Lock()
	defer fake.mu.Unlock()
	require.Len(t, fake.scripts, 1)
	assert.Contains(t, fake.scripts[0], `application id "com.apple.TextEdit"`)
}

func TestResponseEchoesReceivedPayload(t *testing.T) {
	d := startTestDaemon(t, Options{Desktop: &fakeDesktop{shellResult: native.ShellResult{Stdout: "x"}}})
	conn := dialTestDaemon(t, d)

	sendCommand(t, conn, `{"id":"e1","command":"execute_shell_command","payload":{"command":"echo x","noise":123}}`)

	resp := readFrame(t, conn)
	require.Equal(t, "success", resp["status"])
	received := resp["received_payload"].(map[string]any)
	assert.Equal(t, "echo x", received["command"])
	assert.Equal(t, float64(123), received["noise"], "unknown fields echo through untouched")
	assert.Equal(t, "execute_shell_command", resp["original_command"])
}
