// Package resource implements the recreate-or-update policy shared by every GPU-backed
// component view: staging/device buffer pairs, staging/image pairs and combined buffers.
package resource

import "fmt"

// State records whether a resource has been allocated and, if so, at which semantic size.
// S is whatever defines the allocation: an element count for buffers, an extent for images.
type State[S comparable] struct {
	initialized bool
	size        S
}

// Uninitialized returns the state of a resource that has never been allocated.
func Uninitialized[S comparable]() State[S] {
	return State[S]{}
}

// Sized returns the state of a resource allocated at size.
func Sized[S comparable](size S) State[S] {
	return State[S]{initialized: true, size: size}
}

// Initialized reports whether the resource has been allocated.
func (s State[S]) Initialized() bool {
	return s.initialized
}

// Size returns the last allocation size and whether there was one.
func (s State[S]) Size() (S, bool) {
	return s.size, s.initialized
}

func (s State[S]) String() string {
	if !s.initialized {
		return "Uninitialized"
	}
	return fmt.Sprintf("Sized(%v)", s.size)
}

// Action is the outcome of Plan.
type Action int

const (
	// ActionCreate allocates for the first time.
	ActionCreate Action = iota
	// ActionRecreate destroys the current allocation and allocates at the new size.
	ActionRecreate
	// ActionUpdate keeps the allocation and rewrites its contents.
	ActionUpdate
)

func (a Action) String() string {
	switch a {
	case ActionCreate:
		return "create"
	case ActionRecreate:
		return "recreate"
	case ActionUpdate:
		return "update"
	}
	return "unknown"
}

// Plan decides how a resource in state prev must change to hold next.
//
// Parameters:
//   - prev: the current state
//   - next: the semantic size required now
//
// Returns:
//   - Action: ActionCreate for an uninitialized resource, ActionRecreate when the size changed,
//     ActionUpdate otherwise
func Plan[S comparable](prev State[S], next S) Action {
	switch {
	case !prev.initialized:
		return ActionCreate
	case prev.size != next:
		return ActionRecreate
	default:
		return ActionUpdate
	}
}
