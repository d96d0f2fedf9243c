// Package wasm runs actor code compiled to WebAssembly on wazero.
//
// Each instance imports the host surface from the modules "ipld", "self",
// "message", "send" and "gas" and exports `invoke(u32) -> u32`. The frame's
// engine.Host is carried in the context of the call, so compiled modules and
// host modules are shared by every frame of the engine.
package wasm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	logging "github.com/ipfs/go-log/v2"
	"github.com/multiformats/go-multihash"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/filecoin-project/venus-vmcore/pkg/vm/engine"
	"github.com/filecoin-project/venus-vmcore/pkg/vm/vmerrors"
)

var log = logging.Logger("engine.wasm")

// Name tags modules compiled by this engine.
const Name = "wasm"

// Engine compiles and instantiates wasm actors.
type Engine struct {
	runtime wazero.Runtime
	seq     uint64

	lk sync.Mutex
	// wazero shares compiled code between modules of identical bytes, so
	// the code is released with the last module referring to it
	compiled map[string]*compiledCode
}

type compiledCode struct {
	compiled wazero.CompiledModule
	refs     int
}

var _ engine.Engine = (*Engine)(nil)

// New creates a wazero runtime with the host modules registered.
func New(ctx context.Context) (*Engine, error) {
	r := wazero.NewRuntime(ctx)
	if err := bindHostModules(ctx, r); err != nil {
		_ = r.Close(ctx)
		return nil, err
	}
	return &Engine{runtime: r, compiled: make(map[string]*compiledCode)}, nil
}

func (e *Engine) Name() string {
	return Name
}

type module struct {
	engine   *Engine
	key      string
	compiled wazero.CompiledModule
	closed   bool
}

func (m *module) Engine() string {
	return Name
}

// Close drops the module's reference to its compiled code. Instances
// already created keep running.
func (m *module) Close(ctx context.Context) error {
	e := m.engine
	e.lk.Lock()
	defer e.lk.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true

	cc, ok := e.compiled[m.key]
	if !ok {
		// engine already closed
		return nil
	}
	cc.refs--
	if cc.refs > 0 {
		return nil
	}
	delete(e.compiled, m.key)
	return cc.compiled.Close(ctx)
}

func (e *Engine) Compile(ctx context.Context, code []byte) (engine.Module, error) {
	sum, err := multihash.Sum(code, multihash.SHA2_256, -1)
	if err != nil {
		return nil, vmerrors.Wrap(vmerrors.ExecutionFault, err, "hashing wasm module")
	}
	key := string(sum)

	e.lk.Lock()
	defer e.lk.Unlock()

	if cc, ok := e.compiled[key]; ok {
		cc.refs++
		return &module{engine: e, key: key, compiled: cc.compiled}, nil
	}

	compiled, err := e.runtime.CompileModule(ctx, code)
	if err != nil {
		return nil, vmerrors.Wrap(vmerrors.ExecutionFault, err, "compiling wasm module")
	}

	def, ok := compiled.ExportedFunctions()[engine.EntryPoint]
	if !ok {
		_ = compiled.Close(ctx)
		return nil, vmerrors.Newf(vmerrors.ExecutionFault, "wasm module does not export %q", engine.EntryPoint)
	}
	if !isEntrySignature(def) {
		_ = compiled.Close(ctx)
		return nil, vmerrors.Newf(vmerrors.ExecutionFault, "export %q must have type (i32) -> i32", engine.EntryPoint)
	}
	e.compiled[key] = &compiledCode{compiled: compiled, refs: 1}
	return &module{engine: e, key: key, compiled: compiled}, nil
}

func isEntrySignature(def api.FunctionDefinition) bool {
	params, results := def.ParamTypes(), def.ResultTypes()
	return len(params) == 1 && params[0] == api.ValueTypeI32 &&
		len(results) == 1 && results[0] == api.ValueTypeI32
}

func (e *Engine) Instantiate(ctx context.Context, m engine.Module, host engine.Host) (engine.Instance, error) {
	mod, ok := m.(*module)
	if !ok || mod.engine != e {
		return nil, vmerrors.Newf(vmerrors.ExecutionFault, "module %T was not compiled by this wasm engine", m)
	}
	e.lk.Lock()
	closed := mod.closed
	e.lk.Unlock()
	if closed {
		return nil, vmerrors.New(vmerrors.ExecutionFault, "wasm module is closed")
	}

	// instance names must be unique within the runtime
	name := fmt.Sprintf("actor-%d", atomic.AddUint64(&e.seq, 1))
	frame := &callFrame{host: host}
	inst, err := e.runtime.InstantiateModule(withFrame(ctx, frame), mod.compiled, wazero.NewModuleConfig().WithName(name))
	if frame.err != nil {
		return nil, frame.err
	}
	if err != nil {
		return nil, vmerrors.Wrap(vmerrors.ExecutionFault, err, "instantiating wasm module")
	}
	return &instance{name: name, module: inst, frame: frame}, nil
}

func (e *Engine) Close(ctx context.Context) error {
	e.lk.Lock()
	e.compiled = make(map[string]*compiledCode)
	e.lk.Unlock()
	return e.runtime.Close(ctx)
}

type instance struct {
	name   string
	module api.Module
	frame  *callFrame
}

func (i *instance) Invoke(ctx context.Context, entry string, params engine.BlockID) (engine.BlockID, error) {
	fn := i.module.ExportedFunction(entry)
	if fn == nil {
		return engine.NoData, vmerrors.Newf(vmerrors.ExecutionFault, "wasm instance has no export %q", entry)
	}

	i.frame.err = nil
	results, err := fn.Call(withFrame(ctx, i.frame), api.EncodeU32(params))
	if i.frame.err != nil {
		// a host call aborted the instance, report what it failed with
		return engine.NoData, i.frame.err
	}
	var fault vmerrors.Fault
	if errors.As(err, &fault) {
		// wazero recovers host panics, faults must still reach the caller
		panic(fault)
	}
	if err != nil {
		log.Debugw("wasm invocation trapped", "instance", i.name, "err", err)
		return engine.NoData, vmerrors.Wrap(vmerrors.ExecutionFault, err, "wasm invocation failed")
	}
	if len(results) != 1 {
		return engine.NoData, vmerrors.Newf(vmerrors.ExecutionFault, "wasm invocation returned %d values", len(results))
	}
	return engine.BlockID(api.DecodeU32(results[0])), nil
}

func (i *instance) Close(ctx context.Context) error {
	return i.module.Close(ctx)
}
