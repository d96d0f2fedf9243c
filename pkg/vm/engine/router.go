package engine

import (
	"bytes"
	"context"

	"github.com/hashicorp/go-multierror"

	"github.com/filecoin-project/venus-vmcore/pkg/vm/vmerrors"
)

// WasmMagic prefixes every wasm binary.
var WasmMagic = []byte{0x00, 0x61, 0x73, 0x6d}

// IsWasm reports whether code is a wasm binary.
func IsWasm(code []byte) bool {
	return bytes.HasPrefix(code, WasmMagic)
}

// Router sends wasm bytecode to the wasm engine and everything else to the
// native engine. Either may be nil.
type Router struct {
	Native Engine
	Wasm   Engine
}

var _ Engine = (*Router)(nil)

// NewRouter creates a router over the two engines.
func NewRouter(native, wasm Engine) *Router {
	return &Router{Native: native, Wasm: wasm}
}

func (r *Router) pick(code []byte) (Engine, error) {
	if IsWasm(code) {
		if r.Wasm == nil {
			return nil, vmerrors.New(vmerrors.ExecutionFault, "wasm execution is disabled")
		}
		return r.Wasm, nil
	}
	if r.Native == nil {
		return nil, vmerrors.New(vmerrors.ExecutionFault, "no native engine configured")
	}
	return r.Native, nil
}

func (r *Router) Compile(ctx context.Context, code []byte) (Module, error) {
	e, err := r.pick(code)
	if err != nil {
		return nil, err
	}
	return e.Compile(ctx, code)
}

func (r *Router) Instantiate(ctx context.Context, module Module, host Host) (Instance, error) {
	for _, e := range []Engine{r.Native, r.Wasm} {
		if e != nil && moduleOf(e, module) {
			return e.Instantiate(ctx, module, host)
		}
	}
	return nil, vmerrors.Newf(vmerrors.ExecutionFault, "no engine for %s module", module.Engine())
}

func (r *Router) Close(ctx context.Context) error {
	var result error
	for _, e := range []Engine{r.Native, r.Wasm} {
		if e == nil {
			continue
		}
		if err := e.Close(ctx); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result
}

// Named is implemented by engines that tag their modules.
type Named interface {
	Name() string
}

func moduleOf(e Engine, m Module) bool {
	n, ok := e.(Named)
	return ok && n.Name() == m.Engine()
}
