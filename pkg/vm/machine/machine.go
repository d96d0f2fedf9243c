// Package machine holds the execution context of one message: the actor
// directory, its backing stores, the execution engine and the environment.
package machine

import (
	"context"

	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/network"
	lru "github.com/hashicorp/golang-lru"
	"github.com/hashicorp/go-multierror"
	blocks "github.com/ipfs/go-block-format"
	"github.com/ipfs/go-cid"
	blockstore "github.com/ipfs/go-ipfs-blockstore"
	cbor "github.com/ipfs/go-ipld-cbor"
	logging "github.com/ipfs/go-log/v2"
	"golang.org/x/xerrors"

	"github.com/filecoin-project/venus-vmcore/pkg/constants"
	"github.com/filecoin-project/venus-vmcore/pkg/state/tree"
	"github.com/filecoin-project/venus-vmcore/pkg/vm/builtin"
	"github.com/filecoin-project/venus-vmcore/pkg/vm/engine"
	"github.com/filecoin-project/venus-vmcore/pkg/vm/gas"
	"github.com/filecoin-project/venus-vmcore/pkg/vm/vmerrors"
)

var log = logging.Logger("vm.machine")

// MachineContext is the environment messages execute in.
type MachineContext struct {
	NetworkName    string
	NetworkVersion network.Version
	Epoch          abi.ChainEpoch

	// MaxCallDepth bounds the nesting of sends within one message.
	MaxCallDepth int
	// ModuleCacheSize is the number of compiled modules kept around.
	ModuleCacheSize int

	Pricelist gas.Pricelist
}

// DefaultMachineContext returns the context used by tests and the CLI.
func DefaultMachineContext(networkName string) MachineContext {
	return MachineContext{
		NetworkName:     networkName,
		NetworkVersion:  constants.TestNetworkVersion,
		MaxCallDepth:    constants.MaxCallDepth,
		ModuleCacheSize: constants.DefaultModuleCacheSize,
		Pricelist:       gas.NewPricelist(),
	}
}

// Machine is the execution context lent from frame to frame by the call manager.
type Machine struct {
	mctx MachineContext

	tree   *tree.State
	bs     blockstore.Blockstore
	cst    cbor.IpldStore
	engine engine.Engine

	// compiled modules by code CID, closed on eviction
	modules *lru.Cache
}

// New opens the state tree rooted at root.
func New(ctx context.Context, mctx MachineContext, bs blockstore.Blockstore, root cid.Cid, eng engine.Engine) (*Machine, error) {
	if mctx.Pricelist == nil {
		mctx.Pricelist = gas.NewPricelist()
	}
	if mctx.MaxCallDepth <= 0 {
		mctx.MaxCallDepth = constants.MaxCallDepth
	}
	if mctx.ModuleCacheSize <= 0 {
		mctx.ModuleCacheSize = constants.DefaultModuleCacheSize
	}

	cst := cbor.NewCborStore(bs)
	st, err := tree.LoadState(ctx, cst, root)
	if err != nil {
		return nil, xerrors.Errorf("loading state tree %s: %w", root, err)
	}

	modules, err := lru.NewWithEvict(mctx.ModuleCacheSize, func(key, value interface{}) {
		if err := engine.CloseModule(context.Background(), value.(engine.Module)); err != nil {
			log.Warnw("closing evicted module", "code", key, "err", err)
		}
	})
	if err != nil {
		return nil, err
	}

	return &Machine{
		mctx:    mctx,
		tree:    st,
		bs:      bs,
		cst:     cst,
		engine:  eng,
		modules: modules,
	}, nil
}

func (m *Machine) Context() MachineContext {
	return m.mctx
}

func (m *Machine) Tree() *tree.State {
	return m.tree
}

func (m *Machine) Blockstore() blockstore.Blockstore {
	return m.bs
}

func (m *Machine) Store() cbor.IpldStore {
	return m.cst
}

func (m *Machine) Engine() engine.Engine {
	return m.engine
}

// InstallCode stores wasm bytecode in the blockstore and returns the CID
// actors refer to it by.
func (m *Machine) InstallCode(ctx context.Context, code []byte) (cid.Cid, error) {
	if !engine.IsWasm(code) {
		return cid.Undef, vmerrors.New(vmerrors.IllegalArgument, "code is not a wasm module")
	}
	mod, err := m.engine.Compile(ctx, code)
	if err != nil {
		return cid.Undef, err
	}
	if err := engine.CloseModule(ctx, mod); err != nil {
		log.Warnw("closing validated module", "err", err)
	}

	builder := constants.DefaultCidBuilder
	builder.Codec = cid.Raw
	c, err := builder.Sum(code)
	if err != nil {
		return cid.Undef, err
	}
	blk, err := blocks.NewBlockWithCid(code, c)
	if err != nil {
		return cid.Undef, err
	}
	if err := m.bs.Put(ctx, blk); err != nil {
		return cid.Undef, xerrors.Errorf("storing code %s: %w", c, err)
	}
	log.Infow("installed code", "cid", c, "size", len(code))
	return c, nil
}

// LoadModule returns the compiled module for an actor's code CID. Native
// actors carry their bytecode inline in the CID; anything else is read from
// the blockstore.
func (m *Machine) LoadModule(ctx context.Context, code cid.Cid) (engine.Module, error) {
	if !constants.DisableModuleCache {
		if mod, ok := m.modules.Get(code); ok {
			return mod.(engine.Module), nil
		}
	}

	bytecode, ok := builtin.InlineBytecode(code)
	if !ok {
		blk, err := m.bs.Get(ctx, code)
		if err != nil {
			if xerrors.Is(err, blockstore.ErrNotFound) {
				return nil, vmerrors.Newf(vmerrors.ExecutionFault, "code %s not found", code)
			}
			return nil, xerrors.Errorf("loading code %s: %w", code, err)
		}
		bytecode = blk.RawData()
	}

	mod, err := m.engine.Compile(ctx, bytecode)
	if err != nil {
		return nil, err
	}
	log.Debugw("compiled module", "code", code, "engine", mod.Engine())

	if !constants.DisableModuleCache {
		m.modules.Add(code, mod)
	}
	return mod, nil
}

// Flush writes the state tree and returns the new root.
func (m *Machine) Flush(ctx context.Context) (cid.Cid, error) {
	return m.tree.Flush(ctx)
}

// Close releases the engine. The blockstore belongs to the caller.
func (m *Machine) Close(ctx context.Context) error {
	var result error
	m.modules.Purge()
	if m.engine != nil {
		if err := m.engine.Close(ctx); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result
}
