// Package runtime is the surface native Go actors program against. It turns
// the block-handle host calls of a frame into typed state and send operations.
package runtime

import (
	"bytes"
	"context"

	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/cbor"
	"github.com/filecoin-project/go-state-types/exitcode"
	"github.com/filecoin-project/specs-actors/v8/actors/util/adt"
	"github.com/ipfs/go-cid"

	"github.com/filecoin-project/venus-vmcore/pkg/vm/builtin"
	"github.com/filecoin-project/venus-vmcore/pkg/vm/engine"
	"github.com/filecoin-project/venus-vmcore/pkg/vm/vmerrors"
)

// Runtime is handed to every native actor method.
type Runtime interface {
	Context() context.Context

	// Caller is the ID address of the immediate caller.
	Caller() address.Address
	// Receiver is the ID address of the actor being executed.
	Receiver() address.Address
	ValueReceived() abi.TokenAmount
	MethodNumber() abi.MethodNum

	// ValidateImmediateCallerIs fails with ErrForbidden unless the caller is one of addrs.
	ValidateImmediateCallerIs(addrs ...address.Address) error

	// StateCreate writes the initial state of the receiver. It fails if state exists.
	StateCreate(obj cbor.Marshaler) error
	// StateReadonly loads the receiver's state into obj.
	StateReadonly(obj cbor.Unmarshaler) error
	// StateTransaction loads the state, runs f and writes the state back if f succeeds.
	StateTransaction(obj cbor.Er, f func() error) error

	// Store is an adt store whose reads and writes go through the frame's blocks.
	Store() adt.Store

	// Send calls another actor. out may be nil to discard the return value.
	Send(to address.Address, method abi.MethodNum, params cbor.Marshaler, value abi.TokenAmount, out cbor.Unmarshaler) error
	ChargeGas(name string, compute int64) error
}

type hostRuntime struct {
	ctx  context.Context
	host engine.Host
}

var _ Runtime = (*hostRuntime)(nil)

// New wraps a frame's host.
func New(ctx context.Context, host engine.Host) Runtime {
	return &hostRuntime{ctx: ctx, host: host}
}

func (rt *hostRuntime) Context() context.Context {
	return rt.ctx
}

func (rt *hostRuntime) Caller() address.Address {
	return mustIDAddress(rt.host.Caller())
}

func (rt *hostRuntime) Receiver() address.Address {
	return mustIDAddress(rt.host.Receiver())
}

func (rt *hostRuntime) ValueReceived() abi.TokenAmount {
	return rt.host.ValueReceived()
}

func (rt *hostRuntime) MethodNumber() abi.MethodNum {
	return rt.host.MethodNumber()
}

func (rt *hostRuntime) ValidateImmediateCallerIs(addrs ...address.Address) error {
	caller := rt.Caller()
	for _, a := range addrs {
		if a == caller {
			return nil
		}
	}
	return vmerrors.Abortf(exitcode.SysErrForbidden, "caller %s is not one of %s", caller, addrs)
}

func (rt *hostRuntime) StateCreate(obj cbor.Marshaler) error {
	root, err := rt.host.Root()
	if err != nil {
		return err
	}
	if root.Defined() && !root.Equals(builtin.EmptyObjectCid) {
		return vmerrors.Abortf(exitcode.ErrIllegalState, "failed to create state: state already exists")
	}
	return rt.writeState(obj)
}

func (rt *hostRuntime) StateReadonly(obj cbor.Unmarshaler) error {
	root, err := rt.host.Root()
	if err != nil {
		return err
	}
	return rt.readBlock(root, obj)
}

func (rt *hostRuntime) StateTransaction(obj cbor.Er, f func() error) error {
	if err := rt.StateReadonly(obj); err != nil {
		return err
	}
	if err := f(); err != nil {
		return err
	}
	return rt.writeState(obj)
}

func (rt *hostRuntime) Store() adt.Store {
	return adt.WrapStore(rt.ctx, &hostStore{host: rt.host})
}

func (rt *hostRuntime) Send(to address.Address, method abi.MethodNum, params cbor.Marshaler, value abi.TokenAmount, out cbor.Unmarshaler) error {
	paramsID := engine.NoData
	if params != nil {
		buf := new(bytes.Buffer)
		if err := params.MarshalCBOR(buf); err != nil {
			return vmerrors.Wrap(vmerrors.SerializationError, err, "failed to marshal send params")
		}
		if buf.Len() > 0 {
			id, err := rt.host.BlockCreate(engine.CodecDagCBOR, buf.Bytes())
			if err != nil {
				return err
			}
			paramsID = id
		}
	}

	retID, err := rt.host.Send(to, method, paramsID, value)
	if err != nil {
		return err
	}
	if out == nil || retID == engine.NoData {
		return nil
	}

	data, err := ReadBlock(rt.host, retID)
	if err != nil {
		return err
	}
	if err := out.UnmarshalCBOR(bytes.NewReader(data)); err != nil {
		return vmerrors.Wrap(vmerrors.SerializationError, err, "failed to unmarshal send return")
	}
	return nil
}

func (rt *hostRuntime) ChargeGas(name string, compute int64) error {
	return rt.host.ChargeGas(name, compute)
}

func (rt *hostRuntime) writeState(obj cbor.Marshaler) error {
	c, err := rt.putBlock(obj)
	if err != nil {
		return err
	}
	return rt.host.SetRoot(c)
}

func (rt *hostRuntime) putBlock(obj cbor.Marshaler) (cid.Cid, error) {
	buf := new(bytes.Buffer)
	if err := obj.MarshalCBOR(buf); err != nil {
		return cid.Undef, vmerrors.Wrap(vmerrors.SerializationError, err, "failed to marshal state")
	}
	id, err := rt.host.BlockCreate(engine.CodecDagCBOR, buf.Bytes())
	if err != nil {
		return cid.Undef, err
	}
	return rt.host.BlockLink(id)
}

func (rt *hostRuntime) readBlock(c cid.Cid, obj cbor.Unmarshaler) error {
	id, err := rt.host.BlockOpen(c)
	if err != nil {
		return err
	}
	data, err := ReadBlock(rt.host, id)
	if err != nil {
		return err
	}
	if err := obj.UnmarshalCBOR(bytes.NewReader(data)); err != nil {
		return vmerrors.Wrapf(vmerrors.SerializationError, err, "failed to unmarshal block %s", c)
	}
	return nil
}

// ReadBlock reads the whole block behind id.
func ReadBlock(host engine.Host, id engine.BlockID) ([]byte, error) {
	_, size, err := host.BlockStat(id)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, size)
	n, err := host.BlockRead(id, 0, buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

func mustIDAddress(id abi.ActorID) address.Address {
	a, err := address.NewIDAddress(uint64(id))
	if err != nil {
		panic(err)
	}
	return a
}
