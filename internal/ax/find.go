package ax

import "strings"

// Find resolves identifier to an element under root using a pre-order
// depth-first search and returns the first match, or nil when the
// reachable subtree is exhausted.
//
// When role is non-empty, a node whose role attribute differs cannot
// itself match, but its children are still searched. A candidate node
// matches when its title, or failing that its description, contains
// identifier case-insensitively; a node matching on title is returned
// without its description being read. The search short-circuits on the
// first success at any level, so an ancestor that matches wins over any
// matching descendant.
//
// Attribute-read failures and missing children are treated as absent
// attributes; they never abort the search.
func Find(root Element, identifier, role string) Element {
	if root == nil {
		return nil
	}

	if matches(root, identifier, role) {
		return root
	}

	children, err := root.Children()
	if err != nil {
		return nil
	}
	for _, child := range children {
		if found := Find(child, identifier, role); found != nil {
			return found
		}
	}
	return nil
}

func matches(el Element, identifier, role string) bool {
	if role != "" {
		r, err := el.Role()
		if err != nil || r != role {
			return false
		}
	}

	if title, err := el.Title(); err == nil && contains(title, identifier) {
		return true
	}
	if desc, err := el.Description(); err == nil && contains(desc, identifier) {
		return true
	}
	return false
}

func contains(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
