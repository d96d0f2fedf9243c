package callmanager

import (
	"context"

	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	blocks "github.com/ipfs/go-block-format"
	"github.com/ipfs/go-cid"
	blockstore "github.com/ipfs/go-ipfs-blockstore"
	logging "github.com/ipfs/go-log/v2"
	"golang.org/x/xerrors"

	"github.com/filecoin-project/venus-vmcore/pkg/constants"
	"github.com/filecoin-project/venus-vmcore/pkg/types"
	"github.com/filecoin-project/venus-vmcore/pkg/vm/builtin"
	"github.com/filecoin-project/venus-vmcore/pkg/vm/engine"
	"github.com/filecoin-project/venus-vmcore/pkg/vm/gas"
	"github.com/filecoin-project/venus-vmcore/pkg/vm/vmerrors"
)

var klog = logging.Logger("vm.kernel")

// kernel is the engine.Host of a single frame. It holds the call manager
// for as long as the frame runs.
type kernel struct {
	ctx context.Context
	cm  *CallManager

	caller   abi.ActorID
	receiver abi.ActorID
	method   abi.MethodNum
	value    abi.TokenAmount

	blocks blockRegistry
	// first error returned by a nested send; fails the frame
	aborted error
}

var _ engine.Host = (*kernel)(nil)

func newKernel(ctx context.Context, cm *CallManager, caller, receiver abi.ActorID, method abi.MethodNum, value abi.TokenAmount) *kernel {
	return &kernel{
		ctx:      ctx,
		cm:       cm,
		caller:   caller,
		receiver: receiver,
		method:   method,
		value:    value,
	}
}

// release hands back the call manager. The kernel is unusable afterwards.
func (k *kernel) release() *CallManager {
	if k.cm == nil {
		vmerrors.Faultf("kernel released twice")
	}
	cm := k.cm
	k.cm = nil
	return cm
}

func (k *kernel) manager() *CallManager {
	if k.cm == nil {
		vmerrors.Faultf("kernel used after release")
	}
	return k.cm
}

func (k *kernel) charge(charge gas.GasCharge) error {
	return k.manager().ChargeGas(charge)
}

func (k *kernel) pricelist() gas.Pricelist {
	return k.manager().Machine().Context().Pricelist
}

// run instantiates module with the kernel as its host and invokes the entry
// point with params.
func (k *kernel) run(ctx context.Context, eng engine.Engine, module engine.Module, params []byte) ([]byte, error) {
	paramsID := engine.NoData
	if len(params) > 0 {
		id, err := k.blocks.put(engine.CodecDagCBOR, params)
		if err != nil {
			return nil, err
		}
		paramsID = id
	}

	inst, err := eng.Instantiate(ctx, module, k)
	if err != nil {
		return nil, asExecutionFault(err, "instantiating actor %d", k.receiver)
	}
	defer func() {
		if err := inst.Close(ctx); err != nil {
			klog.Warnw("closing instance", "receiver", k.receiver, "err", err)
		}
	}()

	retID, err := inst.Invoke(ctx, engine.EntryPoint, paramsID)
	if k.aborted != nil {
		return nil, k.aborted
	}
	if err != nil {
		return nil, asExecutionFault(err, "invoking actor %d", k.receiver)
	}
	if retID == engine.NoData {
		return nil, nil
	}

	ret, err := k.blocks.get(retID)
	if err != nil {
		return nil, vmerrors.Wrapf(vmerrors.ExecutionFault, err, "actor %d returned an invalid block", k.receiver)
	}
	return ret.data, nil
}

// asExecutionFault keeps typed errors and turns anything else into an ExecutionFault.
func asExecutionFault(err error, format string, args ...interface{}) error {
	if vmerrors.KindOf(err) != vmerrors.Unknown {
		return err
	}
	return vmerrors.Wrapf(vmerrors.ExecutionFault, err, format, args...)
}

func (k *kernel) BlockCreate(codec uint64, data []byte) (engine.BlockID, error) {
	if err := k.charge(k.pricelist().OnBlockCreate(len(data))); err != nil {
		return engine.NoData, err
	}
	return k.blocks.put(codec, append([]byte(nil), data...))
}

func (k *kernel) BlockOpen(c cid.Cid) (engine.BlockID, error) {
	if err := k.charge(k.pricelist().OnIpldGet()); err != nil {
		return engine.NoData, err
	}
	codec := c.Prefix().Codec
	if err := checkCodec(codec); err != nil {
		return engine.NoData, err
	}

	blk, err := k.manager().Machine().Blockstore().Get(k.ctx, c)
	if err != nil {
		if xerrors.Is(err, blockstore.ErrNotFound) {
			return engine.NoData, vmerrors.Newf(vmerrors.IllegalArgument, "block %s not found", c)
		}
		return engine.NoData, xerrors.Errorf("opening block %s: %w", c, err)
	}
	return k.blocks.put(codec, blk.RawData())
}

func (k *kernel) BlockStat(id engine.BlockID) (uint64, uint32, error) {
	b, err := k.blocks.get(id)
	if err != nil {
		return 0, 0, err
	}
	return b.codec, uint32(len(b.data)), nil
}

func (k *kernel) BlockRead(id engine.BlockID, offset uint32, buf []byte) (int, error) {
	b, err := k.blocks.get(id)
	if err != nil {
		return 0, err
	}
	if int(offset) > len(b.data) {
		return 0, vmerrors.Newf(vmerrors.IllegalArgument, "offset %d beyond block of %d bytes", offset, len(b.data))
	}
	n := len(b.data) - int(offset)
	if n > len(buf) {
		n = len(buf)
	}
	if err := k.charge(k.pricelist().OnBlockRead(n)); err != nil {
		return 0, err
	}
	return copy(buf, b.data[offset:]), nil
}

func (k *kernel) BlockLink(id engine.BlockID) (cid.Cid, error) {
	b, err := k.blocks.get(id)
	if err != nil {
		return cid.Undef, err
	}
	if err := k.charge(k.pricelist().OnBlockLink(len(b.data))); err != nil {
		return cid.Undef, err
	}

	builder := constants.DefaultCidBuilder
	builder.Codec = b.codec
	c, err := builder.Sum(b.data)
	if err != nil {
		return cid.Undef, xerrors.Errorf("hashing block: %w", err)
	}
	blk, err := blocks.NewBlockWithCid(b.data, c)
	if err != nil {
		return cid.Undef, err
	}
	if err := k.manager().Machine().Blockstore().Put(k.ctx, blk); err != nil {
		return cid.Undef, xerrors.Errorf("writing block %s: %w", c, err)
	}
	return c, nil
}

func (k *kernel) self() (*types.Actor, error) {
	act, found, err := k.manager().Machine().Tree().GetActor(k.ctx, builtin.MustIDAddress(k.receiver))
	if err != nil {
		return nil, err
	}
	if !found {
		// deleted while running
		return nil, vmerrors.Newf(vmerrors.ActorNotFound, "actor %d no longer exists", k.receiver)
	}
	return act, nil
}

func (k *kernel) Root() (cid.Cid, error) {
	act, err := k.self()
	if err != nil {
		return cid.Undef, err
	}
	return act.Head, nil
}

func (k *kernel) SetRoot(c cid.Cid) error {
	if c != builtin.EmptyObjectCid {
		has, err := k.manager().Machine().Blockstore().Has(k.ctx, c)
		if err != nil {
			return err
		}
		if !has {
			return vmerrors.Newf(vmerrors.IllegalArgument, "new root %s is not linked", c)
		}
	}
	return k.manager().Machine().Tree().MutateActor(k.ctx, builtin.MustIDAddress(k.receiver), func(act *types.Actor) error {
		act.Head = c
		return nil
	})
}

func (k *kernel) Caller() abi.ActorID {
	return k.caller
}

func (k *kernel) Receiver() abi.ActorID {
	return k.receiver
}

func (k *kernel) MethodNumber() abi.MethodNum {
	return k.method
}

func (k *kernel) ValueReceived() abi.TokenAmount {
	return k.value
}

// Send runs a nested call on behalf of the receiver. A failure is returned to
// the actor and also fails this frame once the actor returns.
func (k *kernel) Send(to address.Address, method abi.MethodNum, params engine.BlockID, value abi.TokenAmount) (engine.BlockID, error) {
	var data []byte
	if params != engine.NoData {
		b, err := k.blocks.get(params)
		if err != nil {
			return engine.NoData, err
		}
		data = b.data
	}

	cm := k.manager()
	ret, err := cm.withSender(k.receiver, func() ([]byte, error) {
		return cm.Send(k.ctx, to, method, data, value)
	})
	if err != nil {
		if k.aborted == nil {
			k.aborted = err
		}
		return engine.NoData, err
	}
	if len(ret) == 0 {
		return engine.NoData, nil
	}
	return k.blocks.put(engine.CodecDagCBOR, ret)
}

func (k *kernel) ChargeGas(name string, compute int64) error {
	if compute < 0 {
		return vmerrors.Newf(vmerrors.IllegalArgument, "negative gas charge %d", compute)
	}
	return k.charge(gas.NewGasCharge(name, compute, 0))
}
