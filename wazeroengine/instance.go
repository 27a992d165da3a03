package wazeroengine

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero/api"

	"github.com/exorun/exorun/engine"
)

// Instance is a live wazero api.Module paired with the Component it was
// instantiated from, so Call can recover the declared signature of
// whatever export it's asked to invoke.
type Instance struct {
	module api.Module
	comp   *Component
}

// Call invokes the export named interfaceName#funcName (bare funcName
// when interfaceName is ""), packing args onto wazero's core call stack
// and unpacking its raw results according to the export's declared
// signature, per engine.Instance.
func (i *Instance) Call(ctx context.Context, interfaceName, funcName string, args []engine.Value) ([]engine.Value, error) {
	sig, ok := i.comp.Export(interfaceName, funcName)
	if !ok {
		return nil, fmt.Errorf("wazeroengine: %s is not an export of this component", qualifiedExportName(interfaceName, funcName))
	}

	fn := i.module.ExportedFunction(qualifiedExportName(interfaceName, funcName))
	if fn == nil {
		return nil, fmt.Errorf("wazeroengine: component declares export %s but the core module has no matching function", qualifiedExportName(interfaceName, funcName))
	}

	mem := i.module.Memory()
	alloc := i.module.ExportedFunction(cabiRealloc)

	stack, err := packValues(ctx, mem, alloc, args)
	if err != nil {
		return nil, err
	}

	// wazero's Call reuses its input slice for the results; size it to
	// whichever of params/results needs more slots.
	resultVT, err := engineTypesToValueTypes(sig.Results)
	if err != nil {
		return nil, err
	}
	if len(resultVT) > len(stack) {
		grown := make([]uint64, len(resultVT))
		copy(grown, stack)
		stack = grown
	}

	if err := fn.CallWithStack(ctx, stack); err != nil {
		return nil, classifyRuntimeError(err)
	}

	return unpackValues(mem, sig.Results, stack)
}
