package wazeroengine

import (
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/OneOfOne/xxhash"

	"github.com/exorun/exorun/engine"
)

// Component is the engine.Component wazeroengine.Compile returns: a
// compiled wazero.CompiledModule plus the import/export signature tables
// recovered either from the component's WIT world or, failing that, from
// its core function types.
type Component struct {
	compiled wazero.CompiledModule
	digest   string

	root    map[string]engine.FunctionSignature
	ifaces  map[string]map[string]engine.FunctionSignature
	exports map[string]engine.FunctionSignature // key: qualifiedExportName(iface, func)
}

// RootImports returns the bare function imports recovered for this
// component.
func (c *Component) RootImports() map[string]engine.FunctionSignature {
	return c.root
}

// InterfaceImports returns the grouped interface imports recovered for
// this component.
func (c *Component) InterfaceImports() map[string]map[string]engine.FunctionSignature {
	return c.ifaces
}

// Export returns the signature of an exported function, recovered the
// same way as imports (WIT world first, numeric core signature as
// fallback).
func (c *Component) Export(interfaceName, funcName string) (engine.FunctionSignature, bool) {
	sig, ok := c.exports[qualifiedExportName(interfaceName, funcName)]
	return sig, ok
}

// Digest returns an xxhash64 content fingerprint of the compiled bytes,
// hex-encoded. registry.RegisterComponent computes its own fingerprint
// independently from the raw bytes it was handed; this one exists so
// callers that only hold an engine.Component (no raw bytes) still have a
// stable identifier for logging.
func (c *Component) Digest() string {
	return c.digest
}

func digestOf(wasmBytes []byte) string {
	return fmt.Sprintf("%016x", xxhash.Checksum64(wasmBytes))
}

func qualifiedExportName(interfaceName, funcName string) string {
	if interfaceName == "" {
		return funcName
	}
	return interfaceName + "#" + funcName
}

// populateFromCore builds a numeric-only export table directly from the
// compiled module's core function types: every parameter and result is
// typed by its wazero api.ValueType, which only distinguishes the four
// numeric kinds. Imports are left empty — the core function-import table
// carries no semantic grouping into interfaces without WIT metadata, so a
// component compiled without it can only be instantiated with Host links
// it doesn't statically group, not bound against Local/Remote interface
// imports.
func populateFromCore(c *Component, compiled wazero.CompiledModule) {
	for _, def := range compiled.ExportedFunctions() {
		name := def.ExportNames()
		if len(name) == 0 {
			continue
		}
		c.exports[name[0]] = coreSignature(def)
	}
}

func coreSignature(def api.FunctionDefinition) engine.FunctionSignature {
	return engine.FunctionSignature{
		Params:  valueTypesToEngineTypes(def.ParamTypes()),
		Results: valueTypesToEngineTypes(def.ResultTypes()),
	}
}

func valueTypesToEngineTypes(vts []api.ValueType) []engine.Type {
	out := make([]engine.Type, len(vts))
	for i, vt := range vts {
		out[i] = valueTypeToEngineType(vt)
	}
	return out
}

func valueTypeToEngineType(vt api.ValueType) engine.Type {
	switch vt {
	case api.ValueTypeI32:
		return engine.Type{Kind: engine.TypeS32}
	case api.ValueTypeI64:
		return engine.Type{Kind: engine.TypeS64}
	case api.ValueTypeF32:
		return engine.Type{Kind: engine.TypeFloat32}
	case api.ValueTypeF64:
		return engine.Type{Kind: engine.TypeFloat64}
	default:
		return engine.Type{Kind: engine.TypeU64}
	}
}
