package daemon

import (
	"encoding/json"
	"errors"
	"fmt"

	"hookd/internal/ax"
	"hookd/internal/protocol"
)

// errAXUnavailable names the missing capability, checked before any
// accessibility action is attempted.
var errAXUnavailable = errors.New("accessibility features are not available on this host")

func (d *Daemon) requireAccessibility() error {
	if !d.axp.Trusted() {
		return errAXUnavailable
	}
	return nil
}

// handleFocusedInputText reads the text of the currently focused input
// element: the focused element itself when it is a text field or area,
// otherwise the first text input found under it.
func (d *Daemon) handleFocusedInputText(cmd *protocol.Command) (any, error) {
	if err := d.requireAccessibility(); err != nil {
		return nil, err
	}

	focused, err := d.axp.SystemFocus()
	if err != nil {
		return nil, fmt.Errorf("cannot resolve focused element: %v", err)
	}

	el := focused
	role, roleErr := focused.Role()
	if roleErr != nil || (role != ax.RoleTextField && role != ax.RoleTextArea) {
		el = findTextInput(focused)
		if el == nil {
			return nil, errors.New("no focused text input found")
		}
		role, _ = el.Role()
	}

	text, err := el.Value()
	if err != nil {
		return nil, fmt.Errorf("cannot read focused input value: %v", err)
	}
	return map[string]any{"text": text, "role": role}, nil
}

// handleTypeInTargetInput writes text into the first text input of the
// named application's element tree.
func (d *Daemon) handleTypeInTargetInput(cmd *protocol.Command) (any, error) {
	if err := d.requireAccessibility(); err != nil {
		return nil, err
	}

	var p protocol.TargetInputPayload
	if len(cmd.Payload) > 0 {
		if err := json.Unmarshal(cmd.Payload, &p); err != nil {
			return nil, fmt.Errorf("invalid payload for %s: %v", cmd.Command, err)
		}
	}
	if p.TargetAppBundleID == "" {
		return nil, errors.New("Missing 'target_app_bundle_id' in payload for type_in_target_input")
	}
	if p.Text == "" {
		return nil, errors.New("Missing 'text' in payload for type_in_target_input")
	}

	root, err := d.axp.Application(p.TargetAppBundleID)
	if err != nil {
		return nil, fmt.Errorf("application %s not found: %v", p.TargetAppBundleID, err)
	}

	el := findTextInput(root)
	if el == nil {
		return nil, fmt.Errorf("no text input found in %s", p.TargetAppBundleID)
	}
	if err := el.SetValue(p.Text); err != nil {
		return nil, fmt.Errorf("cannot write to text input: %v", err)
	}
	return map[string]any{"message": fmt.Sprintf("Text written to input in %s.", p.TargetAppBundleID)}, nil
}

// handleClickButtonInTarget resolves a button by human-readable
// identifier inside the named application and presses it.
func (d *Daemon) handleClickButtonInTarget(cmd *protocol.Command) (any, error) {
	if err := d.requireAccessibility(); err != nil {
		return nil, err
	}

	var p protocol.ClickButtonPayload
	if len(cmd.Payload) > 0 {
		if err := json.Unmarshal(cmd.Payload, &p); err != nil {
			return nil, fmt.Errorf("invalid payload for %s: %v", cmd.Command, err)
		}
	}
	if p.TargetAppBundleID == "" {
		return nil, errors.New("Missing 'target_app_bundle_id' in payload for click_button_in_target")
	}
	if p.ButtonIdentifier == "" {
		return nil, errors.New("Missing 'button_identifier' in payload for click_button_in_target")
	}

	root, err := d.axp.Application(p.TargetAppBundleID)
	if err != nil {
		return nil, fmt.Errorf("application %s not found: %v", p.TargetAppBundleID, err)
	}

	button := ax.Find(root, p.ButtonIdentifier, ax.RoleButton)
	if button == nil {
		return nil, fmt.Errorf("button %q not found in %s", p.ButtonIdentifier, p.TargetAppBundleID)
	}
	if enabled, err := button.Enabled(); err == nil && !enabled {
		return nil, fmt.Errorf("button %q is disabled", p.ButtonIdentifier)
	}
	if err := button.Press(); err != nil {
		return nil, fmt.Errorf("cannot press button %q: %v", p.ButtonIdentifier, err)
	}
	return map[string]any{"message": fmt.Sprintf("Button %q pressed.", p.ButtonIdentifier)}, nil
}

// findTextInput locates the first text field, or failing that the first
// text area, under root. The empty identifier matches any title or
// description, so the search reduces to a role scan.
func findTextInput(root ax.Element) ax.Element {
	if el := ax.Find(root, "", ax.RoleTextField); el != nil {
		return el
	}
	return ax.Find(root, "", ax.RoleTextArea)
}
