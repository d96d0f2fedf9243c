// Package native runs actors written in Go. The bytecode of a native actor is
// its registered name, so code CIDs of native actors are identity hashes.
package native

import (
	"context"
	"fmt"

	logging "github.com/ipfs/go-log/v2"

	"github.com/filecoin-project/venus-vmcore/pkg/vm/builtin"
	"github.com/filecoin-project/venus-vmcore/pkg/vm/dispatch"
	"github.com/filecoin-project/venus-vmcore/pkg/vm/engine"
	"github.com/filecoin-project/venus-vmcore/pkg/vm/runtime"
	"github.com/filecoin-project/venus-vmcore/pkg/vm/vmerrors"
)

var log = logging.Logger("engine.native")

// Name tags modules compiled by this engine.
const Name = "native"

// Engine dispatches into Go actors registered in a CodeLoader.
type Engine struct {
	loader dispatch.CodeLoader
}

var _ engine.Engine = (*Engine)(nil)

// New creates an engine over the given actors.
func New(loader dispatch.CodeLoader) *Engine {
	return &Engine{loader: loader}
}

func (e *Engine) Name() string {
	return Name
}

type module struct {
	name       string
	dispatcher dispatch.Dispatcher
}

func (m *module) Engine() string {
	return Name
}

func (e *Engine) Compile(ctx context.Context, code []byte) (engine.Module, error) {
	name := string(code)
	d, err := e.loader.GetActorImpl(builtin.MakeCodeID(name))
	if err != nil {
		return nil, vmerrors.Wrapf(vmerrors.ExecutionFault, err, "compiling native actor %q", name)
	}
	return &module{name: name, dispatcher: d}, nil
}

func (e *Engine) Instantiate(ctx context.Context, m engine.Module, host engine.Host) (engine.Instance, error) {
	mod, ok := m.(*module)
	if !ok {
		return nil, vmerrors.Newf(vmerrors.ExecutionFault, "module %T was not compiled by the native engine", m)
	}
	return &instance{module: mod, host: host}, nil
}

func (e *Engine) Close(ctx context.Context) error {
	return nil
}

type instance struct {
	module *module
	host   engine.Host
	closed bool
}

func (i *instance) Invoke(ctx context.Context, entry string, params engine.BlockID) (ret engine.BlockID, err error) {
	if i.closed {
		return engine.NoData, vmerrors.New(vmerrors.ExecutionFault, "instance is closed")
	}
	if entry != engine.EntryPoint {
		return engine.NoData, vmerrors.Newf(vmerrors.ExecutionFault, "actor %s has no export %q", i.module.name, entry)
	}

	defer func() {
		if r := recover(); r != nil {
			if vmerrors.IsFault(r) {
				panic(r)
			}
			log.Warnw("native actor panicked", "actor", i.module.name, "panic", r)
			ret, err = engine.NoData, vmerrors.Newf(vmerrors.ExecutionFault, "actor %s panicked: %s", i.module.name, fmt.Sprint(r))
		}
	}()

	var raw []byte
	if params != engine.NoData {
		raw, err = runtime.ReadBlock(i.host, params)
		if err != nil {
			return engine.NoData, err
		}
	}

	out, err := i.module.dispatcher.Dispatch(i.host.MethodNumber(), runtime.New(ctx, i.host), raw)
	if err != nil {
		return engine.NoData, err
	}
	if len(out) == 0 {
		return engine.NoData, nil
	}
	return i.host.BlockCreate(engine.CodecDagCBOR, out)
}

func (i *instance) Close(ctx context.Context) error {
	i.closed = true
	return nil
}
