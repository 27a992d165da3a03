// Package ledger builds, once per registered component, the map of its
// imports the binder needs to generate stubs against, rejecting any
// import that reaches a wire-unsafe type at any depth.
/*
 * Copyright (c) 2024-2026, exorun authors. All rights reserved.
 */
package ledger

import (
	"fmt"

	"github.com/exorun/exorun/engine"
)

// ErrorKind discriminates a ledger build failure.
type ErrorKind uint8

const (
	ErrInvalidParameter ErrorKind = iota + 1
	ErrInvalidResult
)

// Error is a ledger construction failure: an import's signature reaches a
// wire-unsafe type (own/borrow/future/stream/error-context) at some depth.
type Error struct {
	Kind    ErrorKind
	Import  string
	Details string
}

func (e *Error) Error() string {
	switch e.Kind {
	case ErrInvalidParameter:
		return fmt.Sprintf("ledger: import %q has a parameter that is not wire-safe: %s", e.Import, e.Details)
	case ErrInvalidResult:
		return fmt.Sprintf("ledger: import %q has a result that is not wire-safe: %s", e.Import, e.Details)
	default:
		return "ledger: invalid import"
	}
}

// Is lets errors.Is match on Kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func errInvalidParameter(importName, details string) error {
	return &Error{Kind: ErrInvalidParameter, Import: importName, Details: details}
}

func errInvalidResult(importName, details string) error {
	return &Error{Kind: ErrInvalidResult, Import: importName, Details: details}
}

// Ledger is the validated, flattened set of a component's imports: bare
// root functions, and instance imports grouped by interface name.
type Ledger struct {
	RootFuncs  map[string]engine.FunctionSignature
	Interfaces map[string]map[string]engine.FunctionSignature
}

// Build walks comp's imports, validating every parameter and result type
// is wire-safe, and returns the flattened Ledger. Root funcs and interface
// methods are validated identically; only the import name reported in a
// failure differs.
func Build(comp engine.Component) (*Ledger, error) {
	l := &Ledger{
		RootFuncs:  make(map[string]engine.FunctionSignature),
		Interfaces: make(map[string]map[string]engine.FunctionSignature),
	}

	for name, sig := range comp.RootImports() {
		if err := validateSignature(name, sig); err != nil {
			return nil, err
		}
		l.RootFuncs[name] = sig
	}

	for ifaceName, methods := range comp.InterfaceImports() {
		grouped := make(map[string]engine.FunctionSignature, len(methods))
		for methodName, sig := range methods {
			qualified := ifaceName + "#" + methodName
			if err := validateSignature(qualified, sig); err != nil {
				return nil, err
			}
			grouped[methodName] = sig
		}
		l.Interfaces[ifaceName] = grouped
	}

	return l, nil
}

// Method looks up an interface method's signature, or a root function's
// when interfaceName is empty.
func (l *Ledger) Method(interfaceName, funcName string) (engine.FunctionSignature, bool) {
	if interfaceName == "" {
		sig, ok := l.RootFuncs[funcName]
		return sig, ok
	}
	methods, ok := l.Interfaces[interfaceName]
	if !ok {
		return engine.FunctionSignature{}, false
	}
	sig, ok := methods[funcName]
	return sig, ok
}

func validateSignature(importName string, sig engine.FunctionSignature) error {
	for _, p := range sig.Params {
		if path, unsafe := findWireUnsafe(p); unsafe {
			return errInvalidParameter(importName, path)
		}
	}
	for _, r := range sig.Results {
		if path, unsafe := findWireUnsafe(r); unsafe {
			return errInvalidResult(importName, path)
		}
	}
	return nil
}

// findWireUnsafe recursively searches ty for a resource/future/stream/
// error-context, returning a human-readable path to the first one found.
func findWireUnsafe(ty engine.Type) (string, bool) {
	if ty.Kind.IsWireUnsafe() {
		return ty.Kind.String(), true
	}
	switch ty.Kind {
	case engine.TypeList, engine.TypeOption:
		if ty.Elem != nil {
			if path, bad := findWireUnsafe(*ty.Elem); bad {
				return ty.Kind.String() + "<" + path + ">", true
			}
		}
	case engine.TypeTuple:
		for i, item := range ty.Items {
			if path, bad := findWireUnsafe(item); bad {
				return fmt.Sprintf("tuple.%d.%s", i, path), true
			}
		}
	case engine.TypeRecord:
		for _, f := range ty.Fields {
			if path, bad := findWireUnsafe(f.Type); bad {
				return f.Name + "." + path, true
			}
		}
	case engine.TypeVariant:
		for _, c := range ty.Cases {
			if c.Payload == nil {
				continue
			}
			if path, bad := findWireUnsafe(*c.Payload); bad {
				return c.Name + "." + path, true
			}
		}
	case engine.TypeResult:
		if ty.OkType != nil {
			if path, bad := findWireUnsafe(*ty.OkType); bad {
				return "ok." + path, true
			}
		}
		if ty.ErrType != nil {
			if path, bad := findWireUnsafe(*ty.ErrType); bad {
				return "err." + path, true
			}
		}
	}
	return "", false
}
