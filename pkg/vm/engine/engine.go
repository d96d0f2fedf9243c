// Package engine defines how the VM runs actor code: an Engine compiles
// bytecode into a Module, a Module is instantiated against a Host for one
// call frame, and the Instance is invoked once with a parameter block.
package engine

import (
	"context"

	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/ipfs/go-cid"
)

// BlockID is a frame-local handle to a block created or opened by actor code.
type BlockID = uint32

// NoData is the handle of an absent parameter or return value.
const NoData BlockID = 0

// EntryPoint is the only export the VM invokes.
const EntryPoint = "invoke"

// Supported block codecs.
const (
	CodecRaw     = uint64(cid.Raw)
	CodecDagCBOR = uint64(cid.DagCBOR)
)

// Host is the host-call surface bound into an instance for one call frame.
type Host interface {
	// BlockCreate registers data under a new handle.
	BlockCreate(codec uint64, data []byte) (BlockID, error)
	// BlockOpen loads a block from the store by CID.
	BlockOpen(c cid.Cid) (BlockID, error)
	// BlockStat returns the codec and size of a block.
	BlockStat(id BlockID) (codec uint64, size uint32, err error)
	// BlockRead copies block bytes starting at offset into buf.
	BlockRead(id BlockID, offset uint32, buf []byte) (int, error)
	// BlockLink hashes the block, writes it to the store and returns its CID.
	BlockLink(id BlockID) (cid.Cid, error)

	// Root returns the receiver's state root.
	Root() (cid.Cid, error)
	// SetRoot replaces the receiver's state root. The CID must be linked.
	SetRoot(c cid.Cid) error

	Caller() abi.ActorID
	Receiver() abi.ActorID
	MethodNumber() abi.MethodNum
	ValueReceived() abi.TokenAmount

	// Send calls another actor and returns the handle of its return block.
	Send(to address.Address, method abi.MethodNum, params BlockID, value abi.TokenAmount) (BlockID, error)
	// ChargeGas charges gas on behalf of actor code.
	ChargeGas(name string, compute int64) error
}

// Module is compiled actor code. It is safe to instantiate concurrently and
// may be cached by code CID.
type Module interface {
	// Engine names the engine that compiled the module.
	Engine() string
}

// CloseModule releases the engine resources held by a compiled module, if
// it holds any. The module must not be instantiated afterwards.
func CloseModule(ctx context.Context, m Module) error {
	if c, ok := m.(interface{ Close(context.Context) error }); ok {
		return c.Close(ctx)
	}
	return nil
}

// Instance is a module bound to a host for the duration of one frame.
type Instance interface {
	// Invoke calls the named export with one parameter handle and returns one
	// result handle.
	Invoke(ctx context.Context, entry string, params BlockID) (BlockID, error)
	Close(ctx context.Context) error
}

// Engine compiles and instantiates actor code.
type Engine interface {
	Compile(ctx context.Context, code []byte) (Module, error)
	Instantiate(ctx context.Context, module Module, host Host) (Instance, error)
	Close(ctx context.Context) error
}
