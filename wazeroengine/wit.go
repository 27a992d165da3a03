package wazeroengine

import (
	"github.com/exorun/exorun/engine"

	"go.bytecodealliance.org/wit"
)

// decodeWorld recovers the WIT world embedded in a component's custom
// sections, if any, via go.bytecodealliance.org/wit — the same package
// the pack's closest functional analogue
// (_examples/other_examples/..._engine-wazero.go.go) carries wit.Type
// values through its canon-lowering path. A component compiled without
// WIT metadata (a plain core module, or a component whose producer
// stripped it) is not an error: decodeWorld reports ok=false and Compile
// falls back to populateFromCore.
func decodeWorld(wasmBytes []byte) (w *wit.World, ok bool) {
	defer func() {
		// wit.DecodeWorld works from the component's own custom sections;
		// an unexpected shape there (or a plain core module with none at
		// all) is reported as an error or, in degenerate cases, would
		// otherwise panic deep in the decoder. Either way it just means
		// "no WIT metadata to recover," not a Compile failure.
		if recover() != nil {
			w, ok = nil, false
		}
	}()

	res, err := wit.DecodeWorld(wasmBytes)
	if err != nil || res == nil || len(res.Worlds) == 0 {
		return nil, false
	}
	return res.Worlds[0], true
}

// populateFromWorld fills c's import/export tables from a decoded WIT
// world: bare functions go to RootImports/root exports, wit.Interface
// items group their member functions under InterfaceImports/c.ifaces.
func populateFromWorld(c *Component, world *wit.World) {
	for name, item := range world.Imports {
		addWorldItem(c.root, c.ifaces, name, item)
	}
	for name, item := range world.Exports {
		addWorldItem(c.exports, nil, name, item)
	}
}

// addWorldItem classifies one named world item (a bare function or an
// interface grouping several) into flat or the per-interface table.
// Exports have no grouped form (Component.Export is always queried by its
// already-qualified "iface#method" key, see qualifiedExportName), so
// grouped is nil when called for the export side and flat is keyed
// directly by the qualified name instead.
func addWorldItem(flat map[string]engine.FunctionSignature, grouped map[string]map[string]engine.FunctionSignature, name string, item wit.WorldItem) {
	switch v := item.(type) {
	case *wit.Function:
		flat[name] = functionSignature(v)
	case *wit.Interface:
		methods := make(map[string]engine.FunctionSignature, len(v.Functions))
		for fname, fn := range v.Functions {
			methods[fname] = functionSignature(fn)
			if grouped == nil {
				flat[qualifiedExportName(name, fname)] = functionSignature(fn)
			}
		}
		if grouped != nil {
			grouped[name] = methods
		}
	}
}

// functionSignature converts a decoded wit.Function's params/results into
// an engine.FunctionSignature.
func functionSignature(fn *wit.Function) engine.FunctionSignature {
	params := make([]engine.Type, 0, len(fn.Params))
	for _, p := range fn.Params {
		params = append(params, witTypeToEngineType(p.Type))
	}
	results := make([]engine.Type, 0, len(fn.Results))
	for _, r := range fn.Results {
		results = append(results, witTypeToEngineType(r.Type))
	}
	return engine.FunctionSignature{Params: params, Results: results}
}

// witTypeToEngineType maps a decoded WIT type to its engine.Type
// counterpart. Kinds this adapter's Canonical ABI subset doesn't carry
// across the wasm/Go boundary (list, record, variant, ...) still convert
// structurally here — a Component can legitimately declare them — but
// packValues/unpackValues reject any Value/Type of those kinds at call
// time, per the package doc's numeric+string scope.
func witTypeToEngineType(t wit.Type) engine.Type {
	switch v := t.(type) {
	case wit.U8:
		return engine.Type{Kind: engine.TypeU8}
	case wit.U16:
		return engine.Type{Kind: engine.TypeU16}
	case wit.U32:
		return engine.Type{Kind: engine.TypeU32}
	case wit.U64:
		return engine.Type{Kind: engine.TypeU64}
	case wit.S8:
		return engine.Type{Kind: engine.TypeS8}
	case wit.S16:
		return engine.Type{Kind: engine.TypeS16}
	case wit.S32:
		return engine.Type{Kind: engine.TypeS32}
	case wit.S64:
		return engine.Type{Kind: engine.TypeS64}
	case wit.Float32:
		return engine.Type{Kind: engine.TypeFloat32}
	case wit.Float64:
		return engine.Type{Kind: engine.TypeFloat64}
	case wit.Bool:
		return engine.Type{Kind: engine.TypeBool}
	case wit.Char:
		return engine.Type{Kind: engine.TypeChar}
	case wit.String:
		return engine.Type{Kind: engine.TypeString}
	case *wit.List:
		elem := witTypeToEngineType(v.Type)
		return engine.NewList(elem)
	case *wit.Option:
		elem := witTypeToEngineType(v.Type)
		return engine.NewOption(elem)
	case *wit.Tuple:
		items := make([]engine.Type, 0, len(v.Types))
		for _, it := range v.Types {
			items = append(items, witTypeToEngineType(it))
		}
		return engine.NewTuple(items)
	case *wit.Record:
		fields := make([]engine.FieldType, 0, len(v.Fields))
		for _, f := range v.Fields {
			fields = append(fields, engine.FieldType{Name: f.Name, Type: witTypeToEngineType(f.Type)})
		}
		return engine.NewRecord(fields)
	case *wit.Enum:
		names := make([]string, 0, len(v.Cases))
		for _, c := range v.Cases {
			names = append(names, c.Name)
		}
		return engine.NewEnum(names)
	case *wit.Flags:
		names := make([]string, 0, len(v.Flags))
		for _, f := range v.Flags {
			names = append(names, f.Name)
		}
		return engine.NewFlags(names)
	case *wit.Variant:
		cases := make([]engine.CaseType, 0, len(v.Cases))
		for _, c := range v.Cases {
			var payload *engine.Type
			if c.Type != nil {
				pt := witTypeToEngineType(c.Type)
				payload = &pt
			}
			cases = append(cases, engine.CaseType{Name: c.Name, Payload: payload})
		}
		return engine.NewVariant(cases)
	case *wit.Result:
		var ok, errT *engine.Type
		if v.OK != nil {
			t := witTypeToEngineType(v.OK)
			ok = &t
		}
		if v.Err != nil {
			t := witTypeToEngineType(v.Err)
			errT = &t
		}
		return engine.NewResult(ok, errT)
	case *wit.Own:
		return engine.Type{Kind: engine.TypeOwn}
	case *wit.Borrow:
		return engine.Type{Kind: engine.TypeBorrow}
	case *wit.Future:
		return engine.Type{Kind: engine.TypeFuture}
	case *wit.Stream:
		return engine.Type{Kind: engine.TypeStream}
	default:
		return engine.Type{Kind: engine.TypeErrorContext}
	}
}
