package operations

import (
	"errors"
	"slices"
	"strings"
)

// Registry stores operations for lookup by definition.
type Registry struct {
	ops []*Operation[any, any, any]
}

// NewRegistry creates a Registry holding ops.
func NewRegistry(ops ...*Operation[any, any, any]) *Registry {
	return &Registry{
		ops: ops,
	}
}

// Retrieve returns the operation with def's ID and version.
func (s Registry) Retrieve(def Definition) (*Operation[any, any, any], error) {
	for _, op := range s.ops {
		if op.ID() == def.ID && op.Version() == def.Version.String() {
			return op, nil
		}
	}

	return nil, errors.New("operation not found in registry")
}

// Definitions lists the registered operations ordered by ID.
func (s Registry) Definitions() []Definition {
	defs := make([]Definition, len(s.ops))
	for i, op := range s.ops {
		defs[i] = op.Def()
	}
	slices.SortFunc(defs, func(a, b Definition) int {
		if c := strings.Compare(a.ID, b.ID); c != 0 {
			return c
		}

		return a.Version.Compare(b.Version)
	})

	return defs
}

// Register adds operations to r. Call it once per set of type parameters.
func Register[IN, OUT, DEP any](r *Registry, op ...*Operation[IN, OUT, DEP]) {
	for _, o := range op {
		r.ops = append(r.ops, o.AsUntyped())
	}
}
