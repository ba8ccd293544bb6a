// Package hooking lets observers attach to the analyses without the analyses
// knowing who listens. Recorders and inspectors register hooks; the analysis
// invokes them at named positions as decisions are made.
package hooking

// HookPos names one position in an analysis where hooks fire. Positions are
// compared by identity, so each is declared once as a package variable.
type HookPos struct {
	Name string
}

// HookCtx carries everything a hook may want to know about the site that
// triggered it.
type HookCtx struct {
	// Domain is the hookable the hook fired on.
	Domain Hookable

	// Pos is the position within the domain.
	Pos *HookPos

	// Item is the decision payload. Its concrete type is fixed per
	// position and documented where the position is declared.
	Item interface{}
}

// Hookable is an object that accepts Hooks.
type Hookable interface {
	// AcceptHook registers a hook.
	AcceptHook(hook Hook)

	// NumHooks returns the number of hooks registered.
	NumHooks() int

	// Hooks returns all the hooks registered.
	Hooks() []Hook
}

// A Hook is a short piece of program invoked by a hookable object.
type Hook interface {
	// Func determines what to do when the hook fires.
	Func(ctx HookCtx)
}

// A HookableBase provides the hook bookkeeping for types that implement the
// Hookable interface.
type HookableBase struct {
	hookList []Hook
}

// NumHooks returns the number of hooks registered.
func (h *HookableBase) NumHooks() int {
	return len(h.hookList)
}

// Hooks returns all the hooks registered.
func (h *HookableBase) Hooks() []Hook {
	return h.hookList
}

// AcceptHook registers a hook.
func (h *HookableBase) AcceptHook(hook Hook) {
	h.mustNotHaveDuplicatedHook(hook)
	h.hookList = append(h.hookList, hook)
}

func (h *HookableBase) mustNotHaveDuplicatedHook(hook Hook) {
	for _, registered := range h.hookList {
		if registered == hook {
			panic("duplicated hook")
		}
	}
}

// InvokeHook triggers the registered hooks in registration order.
func (h *HookableBase) InvokeHook(ctx HookCtx) {
	for _, hook := range h.hookList {
		hook.Func(ctx)
	}
}
