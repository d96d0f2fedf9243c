package testhelpers

import (
	"context"

	"github.com/filecoin-project/specs-actors/v8/actors/util/adt"
	ds "github.com/ipfs/go-datastore"
	dssync "github.com/ipfs/go-datastore/sync"
	blockstore "github.com/ipfs/go-ipfs-blockstore"
	cbor "github.com/ipfs/go-ipld-cbor"
)

// NewMemBlockstore returns a thread-safe blockstore over an in-memory map datastore.
func NewMemBlockstore() blockstore.Blockstore {
	return blockstore.NewBlockstore(dssync.MutexWrap(ds.NewMapDatastore()))
}

// NewAdtStore wraps a fresh in-memory blockstore for use with adt collections.
func NewAdtStore(ctx context.Context) (adt.Store, blockstore.Blockstore) {
	bs := NewMemBlockstore()
	return adt.WrapStore(ctx, cbor.NewCborStore(bs)), bs
}
