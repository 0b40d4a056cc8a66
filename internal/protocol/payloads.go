package protocol

import "encoding/json"

// Typed request payloads, one per command kind. Handlers decode the raw
// payload into these at the boundary; unknown fields are ignored by
// encoding/json.

// KeystrokesPayload is the payload of simulate_keystrokes. The front-end
// historically sent a bare string instead of an object, so both forms
// decode.
type KeystrokesPayload struct {
	Text       string `json:"text"`
	PressEnter bool   `json:"pressEnter"`
}

func (p *KeystrokesPayload) UnmarshalJSON(data []byte) error {
	var legacy string
	if err := json.Unmarshal(data, &legacy); err == nil {
		p.Text = legacy
		p.PressEnter = false
		return nil
	}

	type alias KeystrokesPayload
	var obj alias
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*p = KeystrokesPayload(obj)
	return nil
}

// MousePayload is the payload of move_mouse and mouse_click. Button and
// ClickType are only meaningful for clicks.
type MousePayload struct {
	X         int    `json:"x"`
	Y         int    `json:"y"`
	Button    string `json:"button"`
	ClickType string `json:"click_type"`
}

// ShellPayload is the payload of execute_shell_command.
type ShellPayload struct {
	Command string `json:"command"`
}

// TerminalTabPayload is the payload of terminal_run_in_new_tab.
type TerminalTabPayload struct {
	Command          string `json:"command"`
	TabName          string `json:"tab_name"`
	ActivateTerminal bool   `json:"activate_terminal"`
}

// QuitApplicationPayload is the payload of quit_application. AppName is a
// fallback used when the bundle id does not resolve.
type QuitApplicationPayload struct {
	BundleID string `json:"bundle_id"`
	AppName  string `json:"app_name"`
}

// TargetInputPayload is the payload of type_in_target_input.
type TargetInputPayload struct {
	TargetAppBundleID string `json:"target_app_bundle_id"`
	Text              string `json:"text"`
}

// ClickButtonPayload is the payload of click_button_in_target.
type ClickButtonPayload struct {
	TargetAppBundleID string `json:"target_app_bundle_id"`
	ButtonIdentifier  string `json:"button_identifier"`
}

// StartMonitoringPayload is the payload of start_fs_monitoring.
type StartMonitoringPayload struct {
	Paths     []string `json:"paths"`
	Recursive bool     `json:"recursive"`
	Alias     string   `json:"alias"`
}

// StopMonitoringPayload is the payload of stop_fs_monitoring. Any stop
// request, with or without paths, stops the entire watcher.
type StopMonitoringPayload struct {
	Paths []string `json:"paths"`
}
