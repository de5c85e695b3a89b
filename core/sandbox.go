package core

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/wasmerio/wasmer-go/wasmer"
)

// Harness runs one guest module against one block's inputs and returns
// the resulting post-state and any deposits the guest pushed. It is the
// seam the Shard Processor goes through, so tests can substitute a fake
// without compiling real WebAssembly.
type Harness interface {
	Execute(code []byte, preState Bytes32, blockData []byte) (Bytes32, [][]byte, error)
}

// WasmHarness is the Sandbox Harness of spec §4.3: it loads a module into
// a Wasmer-backed virtual machine, wires the host-call table in under
// every namespace alias, enforces the tick budget, and surfaces traps.
type WasmHarness struct {
	engine     *wasmer.Engine
	tickBudget uint64
	log        *logrus.Entry
}

// NewWasmHarness constructs a harness with the given tick budget. Pass
// DefaultTickBudget for the reference ceiling.
func NewWasmHarness(tickBudget uint64) *WasmHarness {
	return &WasmHarness{
		engine:     wasmer.NewEngine(),
		tickBudget: tickBudget,
		log:        logrus.WithField("component", "sandbox_harness"),
	}
}

// Execute implements Harness.
func (h *WasmHarness) Execute(code []byte, preState Bytes32, blockData []byte) (Bytes32, [][]byte, error) {
	h.log.Debugf("executing codesize(%d) and data: %x", len(code), blockData)

	store := wasmer.NewStore(h.engine)
	module, err := wasmer.NewModule(store, code)
	if err != nil {
		return Bytes32{}, nil, WrapModule(fmt.Errorf("parse module: %w", err))
	}

	ctx := NewExecutionContext(preState, blockData, h.tickBudget)
	imports, err := h.buildImportObject(store, ctx)
	if err != nil {
		return Bytes32{}, nil, WrapModule(err)
	}

	// Instantiating runs the module's start function (if present) against
	// the same import object — wasmer-go has no hook to run start with a
	// no-op externals object the way the original wasmi-based host did
	// (run_start(&mut NopExternals)); see DESIGN.md Open Questions.
	instance, err := wasmer.NewInstance(module, imports)
	if err != nil {
		return Bytes32{}, nil, WrapModule(fmt.Errorf("instantiate module: %w", err))
	}
	defer instance.Close()

	mem, err := instance.Exports.GetMemory("memory")
	if err != nil {
		return Bytes32{}, nil, WrapModule(fmt.Errorf("module missing 'memory' export: %w", err))
	}
	ctx.bindMemory(mem)

	main, err := instance.Exports.GetFunction("main")
	if err != nil {
		return Bytes32{}, nil, WrapModule(fmt.Errorf("module missing 'main' export: %w", err))
	}

	if _, err := main(); err != nil {
		return Bytes32{}, nil, WrapTrap(fmt.Errorf("guest trap: %w", err))
	}

	h.log.Debugf("execution finished, post-state %s", ctx.PostState())
	return ctx.PostState(), ctx.Deposits(), nil
}

// buildImportObject wires every (namespace, field) alias from the
// host-call table to ctx, grouping entries by namespace as wasmer-go's
// ImportObject.Register expects.
func (h *WasmHarness) buildImportObject(store *wasmer.Store, ctx *ExecutionContext) (*wasmer.ImportObject, error) {
	funcs := make(map[HostFunc]*wasmer.Function, 12)
	get := func(fn HostFunc) *wasmer.Function {
		if f, ok := funcs[fn]; ok {
			return f
		}
		f := hostFunction(store, ctx, fn)
		funcs[fn] = f
		return f
	}

	byNamespace := make(map[string]map[string]wasmer.IntoExtern)
	for _, a := range importTable {
		ns, ok := byNamespace[a.namespace]
		if !ok {
			ns = make(map[string]wasmer.IntoExtern)
			byNamespace[a.namespace] = ns
		}
		ns[a.field] = get(a.fn)
	}

	imports := wasmer.NewImportObject()
	for _, ns := range namespacesUsed() {
		imports.Register(ns, byNamespace[ns])
	}
	return imports, nil
}

// hostFunction builds the wasmer.Function for one HostFunc, dispatching
// to the matching ExecutionContext method. Returning a non-nil error from
// the callback traps the guest — that is how useTicks exhaustion, bignum
// overflow/underflow, and out-of-bounds memory access all terminate
// execution per spec §4.1/§4.3.
func hostFunction(store *wasmer.Store, ctx *ExecutionContext, fn HostFunc) *wasmer.Function {
	switch fn {
	case FuncUseTicks:
		return wasmer.NewFunction(store,
			wasmer.NewFunctionType(wasmer.NewValueTypes(wasmer.ValueKind(wasmer.I32)), wasmer.NewValueTypes()),
			func(args []wasmer.Value) ([]wasmer.Value, error) {
				return nil, ctx.UseTicks(uint32(args[0].I32()))
			})
	case FuncLoadPreStateRoot:
		return wasmer.NewFunction(store,
			wasmer.NewFunctionType(wasmer.NewValueTypes(wasmer.ValueKind(wasmer.I32)), wasmer.NewValueTypes()),
			func(args []wasmer.Value) ([]wasmer.Value, error) {
				return nil, ctx.LoadPreStateRoot(uint32(args[0].I32()))
			})
	case FuncSavePostStateRoot:
		return wasmer.NewFunction(store,
			wasmer.NewFunctionType(wasmer.NewValueTypes(wasmer.ValueKind(wasmer.I32)), wasmer.NewValueTypes()),
			func(args []wasmer.Value) ([]wasmer.Value, error) {
				return nil, ctx.SavePostStateRoot(uint32(args[0].I32()))
			})
	case FuncBlockDataSize:
		return wasmer.NewFunction(store,
			wasmer.NewFunctionType(wasmer.NewValueTypes(), wasmer.NewValueTypes(wasmer.ValueKind(wasmer.I32))),
			func(args []wasmer.Value) ([]wasmer.Value, error) {
				return []wasmer.Value{wasmer.NewI32(int32(ctx.BlockDataSize()))}, nil
			})
	case FuncBlockDataCopy:
		return wasmer.NewFunction(store,
			wasmer.NewFunctionType(wasmer.NewValueTypes(wasmer.ValueKind(wasmer.I32), wasmer.ValueKind(wasmer.I32), wasmer.ValueKind(wasmer.I32)), wasmer.NewValueTypes()),
			func(args []wasmer.Value) ([]wasmer.Value, error) {
				ptr, off, length := uint32(args[0].I32()), uint32(args[1].I32()), uint32(args[2].I32())
				return nil, ctx.BlockDataCopy(ptr, off, length)
			})
	case FuncPushNewDeposit:
		return wasmer.NewFunction(store,
			wasmer.NewFunctionType(wasmer.NewValueTypes(wasmer.ValueKind(wasmer.I32), wasmer.ValueKind(wasmer.I32)), wasmer.NewValueTypes()),
			func(args []wasmer.Value) ([]wasmer.Value, error) {
				return nil, ctx.PushNewDeposit(uint32(args[0].I32()), uint32(args[1].I32()))
			})
	case FuncPrint32:
		return wasmer.NewFunction(store,
			wasmer.NewFunctionType(wasmer.NewValueTypes(wasmer.ValueKind(wasmer.I32)), wasmer.NewValueTypes()),
			func(args []wasmer.Value) ([]wasmer.Value, error) {
				ctx.Print32(args[0].I32())
				return nil, nil
			})
	case FuncPrint64:
		return wasmer.NewFunction(store,
			wasmer.NewFunctionType(wasmer.NewValueTypes(wasmer.ValueKind(wasmer.I64)), wasmer.NewValueTypes()),
			func(args []wasmer.Value) ([]wasmer.Value, error) {
				ctx.Print64(args[0].I64())
				return nil, nil
			})
	case FuncPrintMem:
		return wasmer.NewFunction(store,
			wasmer.NewFunctionType(wasmer.NewValueTypes(wasmer.ValueKind(wasmer.I32), wasmer.ValueKind(wasmer.I32)), wasmer.NewValueTypes()),
			func(args []wasmer.Value) ([]wasmer.Value, error) {
				return nil, ctx.PrintMem(uint32(args[0].I32()), uint32(args[1].I32()))
			})
	case FuncPrintMemHex:
		return wasmer.NewFunction(store,
			wasmer.NewFunctionType(wasmer.NewValueTypes(wasmer.ValueKind(wasmer.I32), wasmer.ValueKind(wasmer.I32)), wasmer.NewValueTypes()),
			func(args []wasmer.Value) ([]wasmer.Value, error) {
				return nil, ctx.PrintMemHex(uint32(args[0].I32()), uint32(args[1].I32()))
			})
	case FuncBignumAdd256:
		return wasmer.NewFunction(store,
			wasmer.NewFunctionType(wasmer.NewValueTypes(wasmer.ValueKind(wasmer.I32), wasmer.ValueKind(wasmer.I32), wasmer.ValueKind(wasmer.I32)), wasmer.NewValueTypes()),
			func(args []wasmer.Value) ([]wasmer.Value, error) {
				a, b, c := uint32(args[0].I32()), uint32(args[1].I32()), uint32(args[2].I32())
				return nil, ctx.BignumAdd256(a, b, c)
			})
	case FuncBignumSub256:
		return wasmer.NewFunction(store,
			wasmer.NewFunctionType(wasmer.NewValueTypes(wasmer.ValueKind(wasmer.I32), wasmer.ValueKind(wasmer.I32), wasmer.ValueKind(wasmer.I32)), wasmer.NewValueTypes()),
			func(args []wasmer.Value) ([]wasmer.Value, error) {
				a, b, c := uint32(args[0].I32()), uint32(args[1].I32()), uint32(args[2].I32())
				return nil, ctx.BignumSub256(a, b, c)
			})
	default:
		panic(fmt.Sprintf("unknown host function %v", fn))
	}
}
