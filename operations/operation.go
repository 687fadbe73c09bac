// Package operations runs slab's writes as versioned operations. An operation performs at most
// one side effect, a transaction or a Safe service request, and every run is recorded by a
// Reporter so the CLI can show what was sent.
package operations

import (
	"context"
	"errors"

	"github.com/Masterminds/semver/v3"

	"github.com/tocwex/slab-sub000/pkg/logger"
)

// Bundle carries what a Handler needs besides its dependencies. Use NewBundle to create one.
type Bundle struct {
	Logger     logger.Logger
	GetContext func() context.Context
	reporter   Reporter
	Registry   *Registry
}

// BundleOption configures a Bundle.
type BundleOption func(*Bundle)

// WithRegistry sets the Registry of the Bundle.
func WithRegistry(registry *Registry) BundleOption {
	return func(b *Bundle) {
		b.Registry = registry
	}
}

// NewBundle creates a Bundle. A nil reporter records into memory.
func NewBundle(getContext func() context.Context, lggr logger.Logger, reporter Reporter, opts ...BundleOption) Bundle {
	if reporter == nil {
		reporter = NewMemoryReporter()
	}
	b := Bundle{
		Logger:     lggr,
		GetContext: getContext,
		reporter:   reporter,
		Registry:   NewRegistry(),
	}
	for _, opt := range opts {
		opt(&b)
	}

	return b
}

// Reporter returns the reporter runs are recorded with.
func (b Bundle) Reporter() Reporter {
	return b.reporter
}

// Handler is the function an operation runs.
type Handler[IN, OUT, DEP any] func(b Bundle, deps DEP, input IN) (OUT, error)

// Definition identifies an operation. Two operations are the same when ID and Version match.
type Definition struct {
	ID          string          `json:"id"`
	Version     *semver.Version `json:"version"`
	Description string          `json:"description"`
}

// Operation is a typed, versioned Handler. Create one with NewOperation.
type Operation[IN, OUT, DEP any] struct {
	def     Definition
	handler Handler[IN, OUT, DEP]
}

func (o *Operation[IN, OUT, DEP]) ID() string {
	return o.def.ID
}

func (o *Operation[IN, OUT, DEP]) Version() string {
	return o.def.Version.String()
}

func (o *Operation[IN, OUT, DEP]) Description() string {
	return o.def.Description
}

func (o *Operation[IN, OUT, DEP]) Def() Definition {
	return o.def
}

func (o *Operation[IN, OUT, DEP]) execute(b Bundle, deps DEP, input IN) (OUT, error) {
	b.Logger.Infow("Executing operation",
		"id", o.def.ID, "version", o.def.Version, "description", o.def.Description)

	return o.handler(b, deps, input)
}

// AsUntyped erases the type parameters so operations of different types can share a Registry.
// A mismatched input or dependency fails at run time.
func (o *Operation[IN, OUT, DEP]) AsUntyped() *Operation[any, any, any] {
	return &Operation[any, any, any]{
		def: o.def,
		handler: func(b Bundle, deps any, input any) (any, error) {
			var typedInput IN
			if input != nil {
				var ok bool
				if typedInput, ok = input.(IN); !ok {
					return nil, errors.New("input type mismatch")
				}
			}

			var typedDeps DEP
			if deps != nil {
				var ok bool
				if typedDeps, ok = deps.(DEP); !ok {
					return nil, errors.New("dependencies type mismatch")
				}
			}

			return o.handler(b, typedDeps, typedInput)
		},
	}
}

// NewOperation creates an operation. The handler should perform at most one side effect.
func NewOperation[IN, OUT, DEP any](
	id string, version *semver.Version, description string, handler Handler[IN, OUT, DEP],
) *Operation[IN, OUT, DEP] {
	return &Operation[IN, OUT, DEP]{
		def: Definition{
			ID:          id,
			Version:     version,
			Description: description,
		},
		handler: handler,
	}
}
