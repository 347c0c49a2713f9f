package tool

import (
	"sitesmith/model"
)

// Registry maps capability identifiers to their handlers. It is a closed set:
// registration of a name outside the enumerated capability set fails, and
// lookups of unknown identifiers are rejected at the boundary.
type Registry struct {
	handlers map[Name]Handler
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[Name]Handler)}
}

// Register adds a handler for its capability. Registering a name outside the
// closed set, or a second handler for the same name, returns an Error.
func (r *Registry) Register(h Handler) error {
	name := h.Name()
	if !name.IsValid() {
		return NewError(name, "not in the capability set", "UNKNOWN_TOOL")
	}
	if _, exists := r.handlers[name]; exists {
		return NewError(name, "handler already registered", "DUPLICATE_TOOL")
	}
	r.handlers[name] = h
	return nil
}

// MustRegister registers handlers panicking on programmer error. Intended for
// wiring at construction time.
func (r *Registry) MustRegister(handlers ...Handler) {
	for _, h := range handlers {
		if err := r.Register(h); err != nil {
			panic(err)
		}
	}
}

// Lookup resolves a capability identifier. Unknown or unregistered
// identifiers yield an Error with code UNKNOWN_TOOL.
func (r *Registry) Lookup(name string) (Handler, error) {
	n := Name(name)
	if !n.IsValid() {
		return nil, NewError(n, "not in the capability set", "UNKNOWN_TOOL")
	}
	h, ok := r.handlers[n]
	if !ok {
		return nil, NewError(n, "not available in this mode", "UNKNOWN_TOOL")
	}
	return h, nil
}

// Names returns the registered capability identifiers in the canonical order.
func (r *Registry) Names() []Name {
	var names []Name
	for _, n := range All() {
		if _, ok := r.handlers[n]; ok {
			names = append(names, n)
		}
	}
	return names
}

// Definitions renders the registered capabilities as model tool definitions,
// in the canonical order.
func (r *Registry) Definitions() []model.ToolDefinition {
	defs := make([]model.ToolDefinition, 0, len(r.handlers))
	for _, n := range r.Names() {
		h := r.handlers[n]
		defs = append(defs, model.ToolDefinition{
			Type: "function",
			Function: model.FunctionDefinition{
				Name:        string(h.Name()),
				Description: h.Description(),
				Parameters:  h.Parameters(),
			},
		})
	}
	return defs
}
