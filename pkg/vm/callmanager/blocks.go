package callmanager

import (
	"bytes"

	"github.com/filecoin-project/go-state-types/cbor"

	"github.com/filecoin-project/venus-vmcore/pkg/constants"
	"github.com/filecoin-project/venus-vmcore/pkg/vm/engine"
	"github.com/filecoin-project/venus-vmcore/pkg/vm/vmerrors"
)

type block struct {
	codec uint64
	data  []byte
}

// blockRegistry holds the blocks of one frame. Handles are indexes plus one,
// so that engine.NoData never names a block.
type blockRegistry struct {
	blocks []block
}

func checkCodec(codec uint64) error {
	switch codec {
	case engine.CodecDagCBOR, engine.CodecRaw:
		return nil
	default:
		return vmerrors.Newf(vmerrors.IllegalArgument, "unsupported block codec 0x%x", codec)
	}
}

func (r *blockRegistry) put(codec uint64, data []byte) (engine.BlockID, error) {
	if err := checkCodec(codec); err != nil {
		return engine.NoData, err
	}
	if len(data) > constants.MaxBlockSize {
		return engine.NoData, vmerrors.Newf(vmerrors.IllegalArgument, "block of %d bytes exceeds the limit of %d", len(data), constants.MaxBlockSize)
	}
	if len(r.blocks) >= constants.MaxBlocksPerCall {
		return engine.NoData, vmerrors.Newf(vmerrors.IllegalArgument, "too many blocks in one call (%d)", len(r.blocks))
	}
	r.blocks = append(r.blocks, block{codec: codec, data: data})
	return engine.BlockID(len(r.blocks)), nil
}

func (r *blockRegistry) get(id engine.BlockID) (block, error) {
	if id == engine.NoData || int(id) > len(r.blocks) {
		return block{}, vmerrors.Newf(vmerrors.IllegalArgument, "invalid block handle %d", id)
	}
	return r.blocks[id-1], nil
}

func actorParams(obj cbor.Marshaler) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := obj.MarshalCBOR(buf); err != nil {
		return nil, vmerrors.Wrap(vmerrors.SerializationError, err, "failed to marshal params")
	}
	return buf.Bytes(), nil
}
