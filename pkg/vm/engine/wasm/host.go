package wasm

import (
	"context"

	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
	"github.com/ipfs/go-cid"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/filecoin-project/venus-vmcore/pkg/vm/engine"
	"github.com/filecoin-project/venus-vmcore/pkg/vm/vmerrors"
)

// callFrame carries the host of one frame into host functions. A failing host
// call records its error here and unwinds the guest with a panic, which
// wazero turns into a failed call.
type callFrame struct {
	host engine.Host
	err  error
}

type frameKey struct{}

func withFrame(ctx context.Context, f *callFrame) context.Context {
	return context.WithValue(ctx, frameKey{}, f)
}

func frameOf(ctx context.Context) *callFrame {
	f, ok := ctx.Value(frameKey{}).(*callFrame)
	if !ok || f.host == nil {
		// host functions only run inside Invoke
		panic(vmerrors.New(vmerrors.ExecutionFault, "host call outside of an invocation"))
	}
	return f
}

func (f *callFrame) abort(err error) {
	f.err = err
	panic(err)
}

func (f *callFrame) check(err error) {
	if err != nil {
		f.abort(err)
	}
}

func (f *callFrame) read(m api.Module, ptr, length uint32) []byte {
	mem := m.Memory()
	if mem == nil {
		f.abort(vmerrors.New(vmerrors.ExecutionFault, "module has no memory"))
	}
	buf, ok := mem.Read(ptr, length)
	if !ok {
		f.abort(vmerrors.Newf(vmerrors.ExecutionFault, "memory read out of range: %d+%d", ptr, length))
	}
	// the view aliases guest memory
	return append([]byte(nil), buf...)
}

func (f *callFrame) write(m api.Module, ptr, length uint32, data []byte) uint32 {
	if uint32(len(data)) > length {
		f.abort(vmerrors.Newf(vmerrors.IllegalArgument, "buffer of %d bytes cannot hold %d", length, len(data)))
	}
	mem := m.Memory()
	if mem == nil || !mem.Write(ptr, data) {
		f.abort(vmerrors.Newf(vmerrors.ExecutionFault, "memory write out of range: %d+%d", ptr, len(data)))
	}
	return uint32(len(data))
}

func (f *callFrame) readCid(m api.Module, ptr, length uint32) cid.Cid {
	_, c, err := cid.CidFromBytes(f.read(m, ptr, length))
	if err != nil {
		f.abort(vmerrors.Wrap(vmerrors.IllegalArgument, err, "invalid cid"))
	}
	return c
}

func bindHostModules(ctx context.Context, r wazero.Runtime) error {
	_, err := r.NewHostModuleBuilder("ipld").
		NewFunctionBuilder().WithFunc(blockCreate).Export("block_create").
		NewFunctionBuilder().WithFunc(blockOpen).Export("block_open").
		NewFunctionBuilder().WithFunc(blockStat).Export("block_stat").
		NewFunctionBuilder().WithFunc(blockCodec).Export("block_codec").
		NewFunctionBuilder().WithFunc(blockRead).Export("block_read").
		NewFunctionBuilder().WithFunc(blockLink).Export("block_link").
		Instantiate(ctx)
	if err != nil {
		return err
	}

	_, err = r.NewHostModuleBuilder("self").
		NewFunctionBuilder().WithFunc(selfRoot).Export("root").
		NewFunctionBuilder().WithFunc(selfSetRoot).Export("set_root").
		Instantiate(ctx)
	if err != nil {
		return err
	}

	_, err = r.NewHostModuleBuilder("message").
		NewFunctionBuilder().WithFunc(messageCaller).Export("caller").
		NewFunctionBuilder().WithFunc(messageReceiver).Export("receiver").
		NewFunctionBuilder().WithFunc(messageMethodNumber).Export("method_number").
		NewFunctionBuilder().WithFunc(messageValueReceived).Export("value_received").
		Instantiate(ctx)
	if err != nil {
		return err
	}

	_, err = r.NewHostModuleBuilder("send").
		NewFunctionBuilder().WithFunc(send).Export("send").
		Instantiate(ctx)
	if err != nil {
		return err
	}

	_, err = r.NewHostModuleBuilder("gas").
		NewFunctionBuilder().WithFunc(gasCharge).Export("charge").
		Instantiate(ctx)
	return err
}

func blockCreate(ctx context.Context, m api.Module, codec uint64, ptr, length uint32) uint32 {
	f := frameOf(ctx)
	id, err := f.host.BlockCreate(codec, f.read(m, ptr, length))
	f.check(err)
	return id
}

func blockOpen(ctx context.Context, m api.Module, cidPtr, cidLen uint32) uint32 {
	f := frameOf(ctx)
	id, err := f.host.BlockOpen(f.readCid(m, cidPtr, cidLen))
	f.check(err)
	return id
}

func blockStat(ctx context.Context, id uint32) uint32 {
	f := frameOf(ctx)
	_, size, err := f.host.BlockStat(id)
	f.check(err)
	return size
}

func blockCodec(ctx context.Context, id uint32) uint64 {
	f := frameOf(ctx)
	codec, _, err := f.host.BlockStat(id)
	f.check(err)
	return codec
}

func blockRead(ctx context.Context, m api.Module, id, offset, ptr, length uint32) uint32 {
	f := frameOf(ctx)
	_, size, err := f.host.BlockStat(id)
	f.check(err)
	// length is guest controlled, the buffer never extends past the block
	var avail uint32
	if offset < size {
		avail = size - offset
	}
	if length > avail {
		length = avail
	}
	buf := make([]byte, length)
	n, err := f.host.BlockRead(id, offset, buf)
	f.check(err)
	return f.write(m, ptr, length, buf[:n])
}

func blockLink(ctx context.Context, m api.Module, id, outPtr, outLen uint32) uint32 {
	f := frameOf(ctx)
	c, err := f.host.BlockLink(id)
	f.check(err)
	return f.write(m, outPtr, outLen, c.Bytes())
}

func selfRoot(ctx context.Context, m api.Module, outPtr, outLen uint32) uint32 {
	f := frameOf(ctx)
	c, err := f.host.Root()
	f.check(err)
	return f.write(m, outPtr, outLen, c.Bytes())
}

func selfSetRoot(ctx context.Context, m api.Module, cidPtr, cidLen uint32) {
	f := frameOf(ctx)
	f.check(f.host.SetRoot(f.readCid(m, cidPtr, cidLen)))
}

func messageCaller(ctx context.Context) uint64 {
	return uint64(frameOf(ctx).host.Caller())
}

func messageReceiver(ctx context.Context) uint64 {
	return uint64(frameOf(ctx).host.Receiver())
}

func messageMethodNumber(ctx context.Context) uint64 {
	return uint64(frameOf(ctx).host.MethodNumber())
}

func messageValueReceived(ctx context.Context, m api.Module, outPtr, outLen uint32) uint32 {
	f := frameOf(ctx)
	v := f.host.ValueReceived()
	b, err := v.Bytes()
	if err != nil {
		f.abort(vmerrors.Wrap(vmerrors.SerializationError, err, "encoding value"))
	}
	return f.write(m, outPtr, outLen, b)
}

func send(ctx context.Context, m api.Module, toPtr, toLen uint32, method uint64, params uint32, valuePtr, valueLen uint32) uint32 {
	f := frameOf(ctx)
	to, err := address.NewFromBytes(f.read(m, toPtr, toLen))
	if err != nil {
		f.abort(vmerrors.Wrap(vmerrors.IllegalArgument, err, "invalid recipient address"))
	}
	value := big.Zero()
	if valueLen > 0 {
		value, err = big.FromBytes(f.read(m, valuePtr, valueLen))
		if err != nil {
			f.abort(vmerrors.Wrap(vmerrors.IllegalArgument, err, "invalid value"))
		}
	}
	ret, err := f.host.Send(to, abi.MethodNum(method), params, value)
	f.check(err)
	return ret
}

func gasCharge(ctx context.Context, m api.Module, namePtr, nameLen uint32, compute uint64) {
	f := frameOf(ctx)
	name := string(f.read(m, namePtr, nameLen))
	f.check(f.host.ChargeGas(name, int64(compute)))
}
