package initactor

import (
	"context"
	"testing"

	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filecoin-project/venus-vmcore/pkg/testhelpers"
	tf "github.com/filecoin-project/venus-vmcore/pkg/testhelpers/testflags"
	"github.com/filecoin-project/venus-vmcore/pkg/types"
	"github.com/filecoin-project/venus-vmcore/pkg/vm/builtin"
	"github.com/filecoin-project/venus-vmcore/pkg/vm/vmerrors"
)

func TestResolveIDAddressPassesThrough(t *testing.T) {
	tf.UnitTest(t)

	store, _ := testhelpers.NewAdtStore(context.Background())
	st, err := NewState(store, "test")
	require.NoError(t, err)

	// also with a non-empty map
	_, err = st.MapAddressToNewID(store, testhelpers.NewForTestGetter()())
	require.NoError(t, err)

	for _, id := range []int{0, 1, 100, 101, 5000} {
		a := testhelpers.RequireIDAddress(t, id)
		resolved, found, err := st.ResolveAddress(store, a)
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, a, resolved)
	}
}

func TestResolveMissReturnsNotFound(t *testing.T) {
	tf.UnitTest(t)

	store, _ := testhelpers.NewAdtStore(context.Background())
	st, err := NewState(store, "test")
	require.NoError(t, err)

	resolved, found, err := st.ResolveAddress(store, testhelpers.NewForTestGetter()())
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, address.Undef, resolved)
}

func TestMapAddressToNewIDIsMonotonic(t *testing.T) {
	tf.UnitTest(t)

	store, _ := testhelpers.NewAdtStore(context.Background())
	st, err := NewState(store, "test")
	require.NoError(t, err)
	assert.Equal(t, builtin.FirstNonSingletonActorID, st.NextID)

	getter := testhelpers.NewForTestGetter()
	var last abi.ActorID
	for i := 0; i < 20; i++ {
		var a address.Address
		if i%2 == 0 {
			a = getter()
		} else {
			a = testhelpers.NewBLSForTest(t, byte(i))
		}

		_, found, err := st.ResolveAddress(store, a)
		require.NoError(t, err)
		require.False(t, found)

		idAddr, err := st.MapAddressToNewID(store, a)
		require.NoError(t, err)
		id, err := builtin.IDFromAddress(idAddr)
		require.NoError(t, err)

		if i > 0 {
			assert.Greater(t, id, last)
		}
		assert.Less(t, id, st.NextID)
		last = id

		resolved, found, err := st.ResolveAddress(store, a)
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, idAddr, resolved)
	}
}

func TestMapAddressToNewIDIsNotIdempotent(t *testing.T) {
	tf.UnitTest(t)

	store, _ := testhelpers.NewAdtStore(context.Background())
	st, err := NewState(store, "test")
	require.NoError(t, err)

	a := testhelpers.NewForTestGetter()()
	first, err := st.MapAddressToNewID(store, a)
	require.NoError(t, err)
	second, err := st.MapAddressToNewID(store, a)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.Equal(t, builtin.FirstNonSingletonActorID+2, st.NextID)

	resolved, _, err := st.ResolveAddress(store, a)
	require.NoError(t, err)
	assert.Equal(t, second, resolved)
}

func TestMapRejectsIDAddress(t *testing.T) {
	tf.UnitTest(t)

	store, _ := testhelpers.NewAdtStore(context.Background())
	st, err := NewState(store, "test")
	require.NoError(t, err)

	_, err = st.MapAddressToNewID(store, testhelpers.RequireIDAddress(t, 7))
	assert.Equal(t, vmerrors.IllegalArgument, vmerrors.KindOf(err))
	assert.Equal(t, builtin.FirstNonSingletonActorID, st.NextID)
}

func TestStoreAndForEach(t *testing.T) {
	tf.UnitTest(t)

	ctx := context.Background()
	store, _ := testhelpers.NewAdtStore(ctx)
	st, err := NewState(store, "localnet")
	require.NoError(t, err)

	getter := testhelpers.NewForTestGetter()
	want := map[address.Address]abi.ActorID{}
	for i := 0; i < 3; i++ {
		a := getter()
		idAddr, err := st.MapAddressToNewID(store, a)
		require.NoError(t, err)
		id, err := builtin.IDFromAddress(idAddr)
		require.NoError(t, err)
		want[a] = id
	}

	c, err := st.Store(ctx, store)
	require.NoError(t, err)

	var loaded State
	require.NoError(t, store.Get(ctx, c, &loaded))
	assert.Equal(t, *st, loaded)

	got := map[address.Address]abi.ActorID{}
	require.NoError(t, loaded.ForEachAddress(store, func(a address.Address, id abi.ActorID) error {
		got[a] = id
		return nil
	}))
	assert.Equal(t, want, got)
}

type actorMap map[address.Address]*types.Actor

func (m actorMap) GetActor(_ context.Context, a address.Address) (*types.Actor, bool, error) {
	act, ok := m[a]
	return act, ok, nil
}

func TestLoad(t *testing.T) {
	tf.UnitTest(t)

	ctx := context.Background()
	store, _ := testhelpers.NewAdtStore(ctx)

	_, err := Load(ctx, store, actorMap{})
	require.Error(t, err)
	assert.True(t, vmerrors.IsFatal(err))

	st, err := NewState(store, "localnet")
	require.NoError(t, err)

	missingHead, err := NewState(store, "other")
	require.NoError(t, err)
	headCid, err := missingHead.Store(ctx, store)
	require.NoError(t, err)
	_, err = Load(ctx, store, actorMap{
		builtin.InitActorAddr: types.NewActor(builtin.InitActorCodeID, abi.NewTokenAmount(0), headCid),
	})
	require.NoError(t, err)

	// record present, state object missing from the store
	otherStore, _ := testhelpers.NewAdtStore(ctx)
	_, err = Load(ctx, otherStore, actorMap{
		builtin.InitActorAddr: types.NewActor(builtin.InitActorCodeID, abi.NewTokenAmount(0), headCid),
	})
	assert.True(t, vmerrors.IsFatal(err))

	head, err := st.Store(ctx, store)
	require.NoError(t, err)
	loaded, err := Load(ctx, store, actorMap{
		builtin.InitActorAddr: types.NewActor(builtin.InitActorCodeID, abi.NewTokenAmount(0), head),
	})
	require.NoError(t, err)
	assert.Equal(t, "localnet", loaded.NetworkName)
}
