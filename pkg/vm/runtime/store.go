package runtime

import (
	"bytes"
	"context"

	"github.com/ipfs/go-cid"
	cbor "github.com/ipfs/go-ipld-cbor"
	cbg "github.com/whyrusleeping/cbor-gen"
	"golang.org/x/xerrors"

	"github.com/filecoin-project/venus-vmcore/pkg/vm/engine"
)

// hostStore is an IPLD store backed by the frame's block registry, so every
// read and write an actor makes is metered by the kernel.
type hostStore struct {
	host engine.Host
}

var _ cbor.IpldStore = (*hostStore)(nil)

func (s *hostStore) Get(ctx context.Context, c cid.Cid, out interface{}) error {
	um, ok := out.(cbg.CBORUnmarshaler)
	if !ok {
		return xerrors.Errorf("object %T does not implement CBORUnmarshaler", out)
	}
	id, err := s.host.BlockOpen(c)
	if err != nil {
		return err
	}
	data, err := ReadBlock(s.host, id)
	if err != nil {
		return err
	}
	return um.UnmarshalCBOR(bytes.NewReader(data))
}

func (s *hostStore) Put(ctx context.Context, v interface{}) (cid.Cid, error) {
	m, ok := v.(cbg.CBORMarshaler)
	if !ok {
		return cid.Undef, xerrors.Errorf("object %T does not implement CBORMarshaler", v)
	}
	buf := new(bytes.Buffer)
	if err := m.MarshalCBOR(buf); err != nil {
		return cid.Undef, err
	}
	id, err := s.host.BlockCreate(engine.CodecDagCBOR, buf.Bytes())
	if err != nil {
		return cid.Undef, err
	}
	return s.host.BlockLink(id)
}
