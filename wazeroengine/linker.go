package wazeroengine

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/exorun/exorun/engine"
)

// Linker accumulates DefineFunc calls — one per (interfaceName, funcName)
// pair, across Host, Local, and Remote installs alike — and materializes
// them as wazero host modules at Instantiate time, one host module per
// distinct interfaceName so a component's core-level imports resolve by
// the same "module.name" pair wazero uses natively.
type Linker struct {
	funcs map[string]stagedFunc
}

type stagedFunc struct {
	interfaceName string
	funcName      string
	fn            engine.HostFunc
}

// DefineFunc stages fn for installation under interfaceName#funcName. A
// second DefineFunc for a pair already staged overwrites it; this Linker
// does not reject duplicates itself, since instance.Builder's
// duplicate-interface rejection one layer up means it never sees two
// links for the same interface.
func (l *Linker) DefineFunc(interfaceName, funcName string, fn engine.HostFunc) error {
	key := qualifiedExportName(interfaceName, funcName)
	l.funcs[key] = stagedFunc{interfaceName: interfaceName, funcName: funcName, fn: fn}
	return nil
}

// rootModuleName is the wazero host-module name standing in for the
// empty interfaceName (bare root imports), since wazero modules must be
// non-empty strings.
const rootModuleName = "$root"

// build groups every staged function by interfaceName and instantiates
// one wazero host module per group, named after the interface, looking up
// each function's declared signature on comp (its recovered import
// table) to build a real core-level ValueType signature rather than a
// placeholder one. A staged function with no matching import signature
// on comp (e.g. a Host capability linked against a core-only component
// with no WIT metadata) falls back to a zero-arg, zero-result signature —
// the best this adapter can do without a declared shape to honor.
func (l *Linker) build(ctx context.Context, runtime wazero.Runtime, comp *Component) error {
	byInterface := map[string][]stagedFunc{}
	for _, sf := range l.funcs {
		byInterface[sf.interfaceName] = append(byInterface[sf.interfaceName], sf)
	}

	for interfaceName, staged := range byInterface {
		moduleName := interfaceName
		if moduleName == "" {
			moduleName = rootModuleName
		}
		builder := runtime.NewHostModuleBuilder(moduleName)
		for _, sf := range staged {
			sig := importSignature(comp, sf.interfaceName, sf.funcName)
			paramVT, err := engineTypesToValueTypes(sig.Params)
			if err != nil {
				return fmt.Errorf("wazeroengine: host import %s#%s: %w", sf.interfaceName, sf.funcName, err)
			}
			resultVT, err := engineTypesToValueTypes(sig.Results)
			if err != nil {
				return fmt.Errorf("wazeroengine: host import %s#%s: %w", sf.interfaceName, sf.funcName, err)
			}
			builder = builder.NewFunctionBuilder().
				WithGoModuleFunction(hostFuncAdapter(sf.fn, sig), paramVT, resultVT).
				Export(sf.funcName)
		}
		if _, err := builder.Instantiate(ctx); err != nil {
			return fmt.Errorf("wazeroengine: instantiate host module %q: %w", moduleName, err)
		}
	}
	return nil
}

// importSignature looks up the declared signature for a staged host
// import on comp's recovered import tables, returning a zero-value
// signature (no params, no results) if comp carries no entry for it.
func importSignature(comp *Component, interfaceName, funcName string) engine.FunctionSignature {
	if interfaceName == "" {
		if sig, ok := comp.root[funcName]; ok {
			return sig
		}
		return engine.FunctionSignature{}
	}
	if methods, ok := comp.ifaces[interfaceName]; ok {
		if sig, ok := methods[funcName]; ok {
			return sig
		}
	}
	return engine.FunctionSignature{}
}

// hostFuncAdapter turns an engine.HostFunc into the raw api.GoModuleFunc
// wazero's HostModuleBuilder wants: unpack the guest's raw stack into
// engine.Values per sig.Params, call fn, then pack its results back onto
// the stack per sig.Results — allocating guest memory for any string
// result through the calling module's own exported cabi_realloc.
func hostFuncAdapter(fn engine.HostFunc, sig engine.FunctionSignature) api.GoModuleFunc {
	return func(ctx context.Context, mod api.Module, stack []uint64) {
		args, err := unpackValues(mod.Memory(), sig.Params, stack)
		if err != nil {
			panic(fmt.Errorf("wazeroengine: unpack host import args: %w", err))
		}
		results, callErr := fn(ctx, args)
		if callErr != nil {
			panic(callErr)
		}
		alloc := mod.ExportedFunction(cabiRealloc)
		raw, err := packValues(ctx, mod.Memory(), alloc, results)
		if err != nil {
			panic(fmt.Errorf("wazeroengine: pack host import results: %w", err))
		}
		copy(stack, raw)
	}
}

// cabiRealloc is the canonical export name components use for the
// allocator host functions call to return string/list memory to the
// guest, matching the reference wippyai/wasm-runtime adapter's lookup.
const cabiRealloc = "cabi_realloc"
