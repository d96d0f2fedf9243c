// Package enginetest provides an in-memory engine.Host for engine and runtime tests.
package enginetest

import (
	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/ipfs/go-cid"
	"golang.org/x/xerrors"

	"github.com/filecoin-project/venus-vmcore/pkg/constants"
	"github.com/filecoin-project/venus-vmcore/pkg/vm/builtin"
	"github.com/filecoin-project/venus-vmcore/pkg/vm/engine"
)

type block struct {
	codec uint64
	data  []byte
}

// SentMessage records a Send made through a MemHost.
type SentMessage struct {
	To     address.Address
	Method abi.MethodNum
	Params []byte
	Value  abi.TokenAmount
}

// MemHost keeps blocks and linked objects in memory. Sends are answered by
// OnSend, or echo their parameters when it is nil.
type MemHost struct {
	blocks []block
	Linked map[cid.Cid][]byte
	root   cid.Cid

	CallerID   abi.ActorID
	ReceiverID abi.ActorID
	Method     abi.MethodNum
	Value      abi.TokenAmount

	Sent   []SentMessage
	OnSend func(msg SentMessage) ([]byte, error)

	GasCharged int64
}

var _ engine.Host = (*MemHost)(nil)

// NewMemHost returns a host for a frame of receiver called by caller.
func NewMemHost(caller, receiver abi.ActorID, method abi.MethodNum) *MemHost {
	return &MemHost{
		Linked:     map[cid.Cid][]byte{builtin.EmptyObjectCid: builtin.EmptyObject},
		root:       builtin.EmptyObjectCid,
		CallerID:   caller,
		ReceiverID: receiver,
		Method:     method,
		Value:      abi.NewTokenAmount(0),
	}
}

func (h *MemHost) BlockCreate(codec uint64, data []byte) (engine.BlockID, error) {
	h.blocks = append(h.blocks, block{codec: codec, data: append([]byte(nil), data...)})
	return engine.BlockID(len(h.blocks)), nil
}

func (h *MemHost) BlockOpen(c cid.Cid) (engine.BlockID, error) {
	data, ok := h.Linked[c]
	if !ok {
		return engine.NoData, xerrors.Errorf("block %s not found", c)
	}
	return h.BlockCreate(c.Prefix().Codec, data)
}

func (h *MemHost) get(id engine.BlockID) (block, error) {
	if id == engine.NoData || int(id) > len(h.blocks) {
		return block{}, xerrors.Errorf("invalid block handle %d", id)
	}
	return h.blocks[id-1], nil
}

func (h *MemHost) BlockStat(id engine.BlockID) (uint64, uint32, error) {
	b, err := h.get(id)
	return b.codec, uint32(len(b.data)), err
}

func (h *MemHost) BlockRead(id engine.BlockID, offset uint32, buf []byte) (int, error) {
	b, err := h.get(id)
	if err != nil {
		return 0, err
	}
	if int(offset) > len(b.data) {
		return 0, xerrors.Errorf("offset %d beyond block of %d bytes", offset, len(b.data))
	}
	return copy(buf, b.data[offset:]), nil
}

func (h *MemHost) BlockLink(id engine.BlockID) (cid.Cid, error) {
	b, err := h.get(id)
	if err != nil {
		return cid.Undef, err
	}
	builder := constants.DefaultCidBuilder
	builder.Codec = b.codec
	c, err := builder.Sum(b.data)
	if err != nil {
		return cid.Undef, err
	}
	h.Linked[c] = b.data
	return c, nil
}

// Data returns the bytes behind a handle.
func (h *MemHost) Data(id engine.BlockID) []byte {
	b, _ := h.get(id)
	return b.data
}

func (h *MemHost) Root() (cid.Cid, error) {
	return h.root, nil
}

func (h *MemHost) SetRoot(c cid.Cid) error {
	if _, ok := h.Linked[c]; !ok {
		return xerrors.Errorf("root %s is not linked", c)
	}
	h.root = c
	return nil
}

func (h *MemHost) Caller() abi.ActorID {
	return h.CallerID
}

func (h *MemHost) Receiver() abi.ActorID {
	return h.ReceiverID
}

func (h *MemHost) MethodNumber() abi.MethodNum {
	return h.Method
}

func (h *MemHost) ValueReceived() abi.TokenAmount {
	return h.Value
}

func (h *MemHost) Send(to address.Address, method abi.MethodNum, params engine.BlockID, value abi.TokenAmount) (engine.BlockID, error) {
	msg := SentMessage{To: to, Method: method, Value: value}
	if params != engine.NoData {
		b, err := h.get(params)
		if err != nil {
			return engine.NoData, err
		}
		msg.Params = b.data
	}
	h.Sent = append(h.Sent, msg)

	ret := msg.Params
	if h.OnSend != nil {
		var err error
		if ret, err = h.OnSend(msg); err != nil {
			return engine.NoData, err
		}
	}
	if len(ret) == 0 {
		return engine.NoData, nil
	}
	return h.BlockCreate(engine.CodecDagCBOR, ret)
}

func (h *MemHost) ChargeGas(name string, compute int64) error {
	h.GasCharged += compute
	return nil
}
