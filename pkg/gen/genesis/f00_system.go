package genesis

import (
	"context"

	"github.com/ipfs/go-cid"
	cbor "github.com/ipfs/go-ipld-cbor"
	"golang.org/x/xerrors"

	"github.com/filecoin-project/venus-vmcore/pkg/vm/builtin"
	"github.com/filecoin-project/venus-vmcore/pkg/vm/builtin/system"
)

// SetupEmptyObject stores the empty state object that fresh actors point at.
func SetupEmptyObject(ctx context.Context, cst cbor.IpldStore) (cid.Cid, error) {
	statecid, err := cst.Put(ctx, &system.State{})
	if err != nil {
		return cid.Undef, err
	}
	if !statecid.Equals(builtin.EmptyObjectCid) {
		return cid.Undef, xerrors.Errorf("empty object stored as %s, expected %s", statecid, builtin.EmptyObjectCid)
	}
	return statecid, nil
}
