// Package ax defines the accessibility element-tree abstraction consumed
// by the daemon's UI commands, plus the recursive search used to resolve
// a human-readable identifier to a concrete element.
//
// The package never owns elements; it only traverses parent->children and
// reads attributes through the Element contract. The concrete tree (the
// macOS AXUIElement hierarchy) is supplied by a Provider implementation.
package ax

import "errors"

// Common accessibility roles referenced by the daemon's handlers.
const (
	RoleButton    = "AXButton"
	RoleTextField = "AXTextField"
	RoleTextArea  = "AXTextArea"
)

// ErrUnavailable indicates the accessibility facility is absent or the
// process is not trusted to use it.
var ErrUnavailable = errors.New("ax: accessibility features are not available on this host")

// Element is an opaque handle to one node of an externally owned UI
// element tree. Attribute reads may fail on individual nodes; callers
// treat a failed read as "attribute absent" rather than aborting.
type Element interface {
	Role() (string, error)
	Title() (string, error)
	Description() (string, error)
	Value() (string, error)
	SetValue(value string) error
	Press() error
	Enabled() (bool, error)
	Children() ([]Element, error)
}

// Provider creates root elements for traversal.
type Provider interface {
	// Trusted reports whether the process may use accessibility APIs.
	Trusted() bool
	// SystemFocus returns the element currently holding system-wide focus.
	SystemFocus() (Element, error)
	// Application returns the root element of the named running
	// application, or an error if it is not running.
	Application(bundleID string) (Element, error)
}

type unavailable struct{}

// Unavailable returns a Provider for hosts without accessibility support.
// Trusted reports false and the root constructors fail with
// ErrUnavailable.
func Unavailable() Provider { return unavailable{} }

func (unavailable) Trusted() bool                         { return false }
func (unavailable) SystemFocus() (Element, error)         { return nil, ErrUnavailable }
func (unavailable) Application(string) (Element, error)   { return nil, ErrUnavailable }
