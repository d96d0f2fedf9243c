package tree

import (
	"context"
	"testing"

	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/ipfs/go-cid"
	cbor "github.com/ipfs/go-ipld-cbor"
	"github.com/stretchr/testify/require"

	"github.com/filecoin-project/venus-vmcore/pkg/types"
	"github.com/filecoin-project/venus-vmcore/pkg/vm/builtin"
	"github.com/filecoin-project/venus-vmcore/pkg/vm/builtin/system"
	"github.com/filecoin-project/venus-vmcore/pkg/vm/initactor"
)

// NewStateWithBuiltinActor creates a tree holding the system and init actors.
func NewStateWithBuiltinActor(t *testing.T, cst cbor.IpldStore) *State {
	ctx := context.Background()
	tree, err := NewState(cst)
	require.NoError(t, err)

	empty, err := cst.Put(ctx, &system.State{})
	require.NoError(t, err)
	require.Equal(t, builtin.EmptyObjectCid, empty)

	store := tree.AdtStore(ctx)
	ias, err := initactor.NewState(store, "test")
	require.NoError(t, err)
	head, err := ias.Store(ctx, store)
	require.NoError(t, err)

	_, err = tree.CreateActor(ctx, builtin.InitActorAddr, types.NewActor(builtin.InitActorCodeID, abi.NewTokenAmount(0), head))
	require.NoError(t, err)
	_, err = tree.CreateActor(ctx, builtin.SystemActorAddr, types.NewActor(builtin.SystemActorCodeID, abi.NewTokenAmount(0), builtin.EmptyObjectCid))
	require.NoError(t, err)
	return tree
}

// AddAccount creates an account actor record for addr with the given balance.
func AddAccount(t *testing.T, tree *State, addr address.Address, balance abi.TokenAmount) abi.ActorID {
	id, err := tree.CreateActor(context.Background(), addr, types.NewActor(builtin.AccountActorCodeID, balance, builtin.EmptyObjectCid))
	require.NoError(t, err)
	return id
}

// MustCommit flushes the state or panics if it can't.
func MustCommit(st Tree) cid.Cid {
	cid, err := st.Flush(context.Background())
	if err != nil {
		panic(err)
	}
	return cid
}

// MustGetActor gets the actor or panics if it can't.
func MustGetActor(st Tree, a address.Address) (*types.Actor, bool) {
	actor, found, err := st.GetActor(context.Background(), a)
	if err != nil {
		panic(err)
	}
	return actor, found
}
