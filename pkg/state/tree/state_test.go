package tree

import (
	"context"
	"testing"

	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/ipfs/go-cid"
	cbor "github.com/ipfs/go-ipld-cbor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filecoin-project/venus-vmcore/pkg/constants"
	"github.com/filecoin-project/venus-vmcore/pkg/testhelpers"
	tf "github.com/filecoin-project/venus-vmcore/pkg/testhelpers/testflags"
	"github.com/filecoin-project/venus-vmcore/pkg/types"
	"github.com/filecoin-project/venus-vmcore/pkg/vm/builtin"
	"github.com/filecoin-project/venus-vmcore/pkg/vm/initactor"
	"github.com/filecoin-project/venus-vmcore/pkg/vm/vmerrors"
)

func newStore() cbor.IpldStore {
	return cbor.NewCborStore(testhelpers.NewMemBlockstore())
}

func TestStatePutGet(t *testing.T) {
	tf.UnitTest(t)

	ctx := context.Background()
	cst := newStore()
	tree := NewStateWithBuiltinActor(t, cst)

	addrGetter := testhelpers.NewForTestGetter()
	addr1 := addrGetter()
	addr2 := addrGetter()
	AddAccount(t, tree, addr1, abi.NewTokenAmount(0))
	AddAccount(t, tree, addr2, abi.NewTokenAmount(0))

	require.NoError(t, tree.MutateActor(ctx, addr1, func(act1 *types.Actor) error {
		act1.IncrementSeqNum()
		return nil
	}))
	require.NoError(t, tree.MutateActor(ctx, addr2, func(act2 *types.Actor) error {
		act2.IncrementSeqNum()
		act2.IncrementSeqNum()
		return nil
	}))

	act1out, found, err := tree.GetActor(ctx, addr1)
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, uint64(1), act1out.Nonce)
	act2out, found, err := tree.GetActor(ctx, addr2)
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, uint64(2), act2out.Nonce)

	// now test it persists across recreation of tree
	tcid, err := tree.Flush(ctx)
	assert.NoError(t, err)

	tree2, err := LoadState(ctx, cst, tcid)
	assert.NoError(t, err)

	act1out2, found, err := tree2.GetActor(ctx, addr1)
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, uint64(1), act1out2.Nonce)
	act2out2, found, err := tree2.GetActor(ctx, addr2)
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, uint64(2), act2out2.Nonce)
}

func TestStateErrors(t *testing.T) {
	tf.UnitTest(t)

	ctx := context.Background()
	cst := newStore()
	tree := NewStateWithBuiltinActor(t, cst)
	AddAccount(t, tree, testhelpers.NewForTestGetter()(), abi.NewTokenAmount(0))

	c, err := constants.DefaultCidBuilder.Sum([]byte("cats"))
	assert.NoError(t, err)

	tr2, err := LoadState(ctx, cst, c)
	assert.Error(t, err)
	assert.Nil(t, tr2)
}

func TestLookupID(t *testing.T) {
	tf.UnitTest(t)

	ctx := context.Background()
	tree := NewStateWithBuiltinActor(t, newStore())

	// ID addresses pass through even when no actor exists
	missing := testhelpers.RequireIDAddress(t, 4242)
	resolved, found, err := tree.LookupID(ctx, missing)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, missing, resolved)

	key := testhelpers.NewForTestGetter()()
	_, found, err = tree.LookupID(ctx, key)
	require.NoError(t, err)
	assert.False(t, found)

	id := AddAccount(t, tree, key, abi.NewTokenAmount(0))
	assert.Equal(t, builtin.FirstNonSingletonActorID, id)

	resolved, found, err = tree.LookupID(ctx, key)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, builtin.MustIDAddress(id), resolved)

	// the init actor record was updated
	ias, err := initactor.Load(ctx, tree.AdtStore(ctx), tree)
	require.NoError(t, err)
	assert.Equal(t, builtin.FirstNonSingletonActorID+1, ias.NextID)
}

func TestLookupWithoutInitActorIsFatal(t *testing.T) {
	tf.UnitTest(t)

	tree, err := NewState(newStore())
	require.NoError(t, err)

	_, _, err = tree.LookupID(context.Background(), testhelpers.NewForTestGetter()())
	require.Error(t, err)
	assert.True(t, vmerrors.IsFatal(err))
}

func TestCreateActor(t *testing.T) {
	tf.UnitTest(t)

	ctx := context.Background()
	tree := NewStateWithBuiltinActor(t, newStore())
	key := testhelpers.NewForTestGetter()()
	AddAccount(t, tree, key, abi.NewTokenAmount(0))

	_, err := tree.CreateActor(ctx, key, types.NewActor(builtin.AccountActorCodeID, abi.NewTokenAmount(0), builtin.EmptyObjectCid))
	assert.Equal(t, vmerrors.IllegalArgument, vmerrors.KindOf(err))

	_, err = tree.CreateActor(ctx, builtin.InitActorAddr, types.NewActor(builtin.InitActorCodeID, abi.NewTokenAmount(0), builtin.EmptyObjectCid))
	assert.Equal(t, vmerrors.IllegalArgument, vmerrors.KindOf(err))

	id, err := tree.CreateActor(ctx, testhelpers.RequireIDAddress(t, 50), types.NewActor(builtin.AccountActorCodeID, abi.NewTokenAmount(0), builtin.EmptyObjectCid))
	require.NoError(t, err)
	assert.EqualValues(t, 50, id)
}

func TestSetActorUnknownKeyAddress(t *testing.T) {
	tf.UnitTest(t)

	tree := NewStateWithBuiltinActor(t, newStore())
	err := tree.SetActor(context.Background(), testhelpers.NewForTestGetter()(), &types.Actor{Balance: abi.NewTokenAmount(0)})
	assert.Equal(t, vmerrors.ActorNotFound, vmerrors.KindOf(err))
}

func TestTransfer(t *testing.T) {
	tf.UnitTest(t)

	ctx := context.Background()
	tree := NewStateWithBuiltinActor(t, newStore())
	getter := testhelpers.NewForTestGetter()
	from := getter()
	to := getter()
	AddAccount(t, tree, from, abi.NewTokenAmount(100))
	AddAccount(t, tree, to, abi.NewTokenAmount(0))

	require.NoError(t, tree.Transfer(ctx, from, to, abi.NewTokenAmount(40)))

	fromAct, _ := MustGetActor(tree, from)
	toAct, _ := MustGetActor(tree, to)
	assert.Equal(t, abi.NewTokenAmount(60), fromAct.Balance)
	assert.Equal(t, abi.NewTokenAmount(40), toAct.Balance)

	err := tree.Transfer(ctx, from, to, abi.NewTokenAmount(61))
	assert.Equal(t, vmerrors.InsufficientFunds, vmerrors.KindOf(err))

	err = tree.Transfer(ctx, from, to, abi.NewTokenAmount(-1))
	assert.Equal(t, vmerrors.IllegalArgument, vmerrors.KindOf(err))

	err = tree.Transfer(ctx, testhelpers.RequireIDAddress(t, 999), to, abi.NewTokenAmount(1))
	assert.Equal(t, vmerrors.ActorNotFound, vmerrors.KindOf(err))

	err = tree.Transfer(ctx, from, getter(), abi.NewTokenAmount(1))
	assert.Equal(t, vmerrors.ActorNotFound, vmerrors.KindOf(err))

	// self transfer is a no-op
	require.NoError(t, tree.Transfer(ctx, from, from, abi.NewTokenAmount(10)))
	fromAct, _ = MustGetActor(tree, from)
	assert.Equal(t, abi.NewTokenAmount(60), fromAct.Balance)
}

func TestSnapshotRevert(t *testing.T) {
	tf.UnitTest(t)

	ctx := context.Background()
	tree := NewStateWithBuiltinActor(t, newStore())
	getter := testhelpers.NewForTestGetter()
	kept := getter()
	AddAccount(t, tree, kept, abi.NewTokenAmount(10))

	require.NoError(t, tree.Snapshot(ctx))
	reverted := getter()
	AddAccount(t, tree, reverted, abi.NewTokenAmount(5))
	require.NoError(t, tree.Transfer(ctx, kept, reverted, abi.NewTokenAmount(3)))

	require.NoError(t, tree.Revert())
	tree.ClearSnapshot()

	_, found, err := tree.LookupID(ctx, reverted)
	require.NoError(t, err)
	assert.False(t, found)

	act, found := MustGetActor(tree, kept)
	assert.True(t, found)
	assert.Equal(t, abi.NewTokenAmount(10), act.Balance)

	// the reverted ID is handed out again
	id := AddAccount(t, tree, getter(), abi.NewTokenAmount(0))
	assert.Equal(t, builtin.FirstNonSingletonActorID+1, id)

	assert.Error(t, tree.Revert())
}

func TestFlushWithSnapshotFails(t *testing.T) {
	tf.UnitTest(t)

	ctx := context.Background()
	tree := NewStateWithBuiltinActor(t, newStore())
	require.NoError(t, tree.Snapshot(ctx))
	_, err := tree.Flush(ctx)
	assert.Error(t, err)

	tree.ClearSnapshot()
	_, err = tree.Flush(ctx)
	assert.NoError(t, err)
}

func TestDeleteActor(t *testing.T) {
	tf.UnitTest(t)

	ctx := context.Background()
	tree := NewStateWithBuiltinActor(t, newStore())
	key := testhelpers.NewForTestGetter()()
	AddAccount(t, tree, key, abi.NewTokenAmount(0))
	MustCommit(tree)

	require.NoError(t, tree.DeleteActor(ctx, key))
	_, found := MustGetActor(tree, key)
	assert.False(t, found)

	err := tree.DeleteActor(ctx, key)
	assert.Equal(t, vmerrors.ActorNotFound, vmerrors.KindOf(err))
}

func TestForEachSeesPendingChanges(t *testing.T) {
	tf.UnitTest(t)

	ctx := context.Background()
	tree := NewStateWithBuiltinActor(t, newStore())
	getter := testhelpers.NewForTestGetter()
	flushed := AddAccount(t, tree, getter(), abi.NewTokenAmount(1))
	MustCommit(tree)
	pending := AddAccount(t, tree, getter(), abi.NewTokenAmount(2))

	seen := map[address.Address]abi.TokenAmount{}
	require.NoError(t, tree.ForEach(ctx, func(k ActorKey, act *types.Actor) error {
		seen[k] = act.Balance
		return nil
	}))

	assert.Len(t, seen, 4)
	assert.Equal(t, abi.NewTokenAmount(1), seen[builtin.MustIDAddress(flushed)])
	assert.Equal(t, abi.NewTokenAmount(2), seen[builtin.MustIDAddress(pending)])
	assert.Contains(t, seen, builtin.InitActorAddr)
	assert.Contains(t, seen, builtin.SystemActorAddr)
}

func TestStateTreeConsistency(t *testing.T) {
	tf.UnitTest(t)

	ctx := context.Background()
	cst := newStore()
	build := func() cid.Cid {
		tree, err := NewState(cst)
		require.NoError(t, err)
		for i := 100; i < 150; i++ {
			a := testhelpers.RequireIDAddress(t, i)
			require.NoError(t, tree.SetActor(ctx, a, &types.Actor{
				Code:    builtin.AccountActorCodeID,
				Head:    builtin.EmptyObjectCid,
				Balance: abi.NewTokenAmount(int64(10000 + i)),
				Nonce:   uint64(1000 - i),
			}))
		}
		root, err := tree.Flush(ctx)
		require.NoError(t, err)
		return root
	}

	assert.Equal(t, build(), build())
}
