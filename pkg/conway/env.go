package conway

import (
	"sort"

	"github.com/pkg/errors"
)

// ScopeID addresses a scope within an Environment.
type ScopeID int

// NoScope is the parent of the root scope.
const NoScope ScopeID = -1

type scope struct {
	vars   map[string]Value
	parent ScopeID
}

// Environment is a stack-shaped arena of scopes. Each scope maps names to
// values and points at its parent by index; a parent always sits at a lower
// index than its children, so the chain cannot form a cycle.
//
// Lookups and assignments search the current scope first and then walk
// outward, so a name defined in an inner scope shadows outer bindings until
// that scope is popped.
type Environment struct {
	scopes  []scope
	current ScopeID
}

// Binding is a name visible from the current scope.
type Binding struct {
	Name  string
	Value Value
	Scope ScopeID
}

// NewEnvironment creates an environment holding only a root scope.
func NewEnvironment() *Environment {
	env := &Environment{}
	env.Reset()
	return env
}

// Reset discards every scope and starts over with an empty root.
func (e *Environment) Reset() {
	e.scopes = []scope{{vars: map[string]Value{}, parent: NoScope}}
	e.current = 0
}

// Current returns the scope definitions and assignments start from.
func (e *Environment) Current() ScopeID {
	return e.current
}

// Depth returns the number of scopes between the current scope and the root,
// inclusive.
func (e *Environment) Depth() int {
	depth := 0
	for id := e.current; id != NoScope; id = e.scopes[id].parent {
		depth++
	}
	return depth
}

// Push opens a child of the current scope and makes it current.
func (e *Environment) Push() ScopeID {
	e.scopes = append(e.scopes, scope{
		vars:   map[string]Value{},
		parent: e.current,
	})
	e.current = ScopeID(len(e.scopes) - 1)
	return e.current
}

// Pop discards the current scope and makes its parent current. Popping the
// root scope is an error.
func (e *Environment) Pop() error {
	cur := e.scopes[e.current]
	if cur.parent == NoScope {
		return errors.New("cannot pop the root scope")
	}
	if int(e.current) != len(e.scopes)-1 {
		return errors.Errorf("scope %d popped out of order (%d scopes open)", e.current, len(e.scopes))
	}
	e.scopes = e.scopes[:e.current]
	e.current = cur.parent
	return nil
}

// Define binds name in the current scope only, replacing any existing
// binding there.
func (e *Environment) Define(name string, value Value) {
	e.scopes[e.current].vars[name] = value
}

// Get returns the value bound to name in the nearest scope, or Nothing.
func (e *Environment) Get(name string) Value {
	val, _, found := e.Lookup(name)
	if !found {
		return NothingValue{}
	}
	return val
}

// Lookup returns the value bound to name in the nearest scope along with the
// scope that owns the binding.
func (e *Environment) Lookup(name string) (Value, ScopeID, bool) {
	for id := e.current; id != NoScope; id = e.scopes[id].parent {
		if val, ok := e.scopes[id].vars[name]; ok {
			return val, id, true
		}
	}
	return nil, NoScope, false
}

// Assign overwrites the nearest existing binding of name, leaving it in the
// scope that owns it. It fails with a *NameError if name is not bound
// anywhere.
func (e *Environment) Assign(name string, value Value) error {
	_, id, found := e.Lookup(name)
	if !found {
		return &NameError{Name: name, Op: "assign"}
	}
	e.scopes[id].vars[name] = value
	return nil
}

// Bindings returns every binding visible from the current scope, innermost
// scope first and sorted by name within a scope. Shadowed bindings are
// omitted.
func (e *Environment) Bindings() []Binding {
	var bindings []Binding
	seen := map[string]bool{}
	for id := e.current; id != NoScope; id = e.scopes[id].parent {
		names := make([]string, 0, len(e.scopes[id].vars))
		for name := range e.scopes[id].vars {
			if !seen[name] {
				names = append(names, name)
			}
		}
		sort.Strings(names)
		for _, name := range names {
			seen[name] = true
			bindings = append(bindings, Binding{
				Name:  name,
				Value: e.scopes[id].vars[name],
				Scope: id,
			})
		}
	}
	return bindings
}
