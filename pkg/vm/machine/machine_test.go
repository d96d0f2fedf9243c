package machine

import (
	"context"
	"testing"

	"github.com/ipfs/go-cid"
	cbor "github.com/ipfs/go-ipld-cbor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filecoin-project/venus-vmcore/pkg/constants"
	"github.com/filecoin-project/venus-vmcore/pkg/state/tree"
	"github.com/filecoin-project/venus-vmcore/pkg/testhelpers"
	tf "github.com/filecoin-project/venus-vmcore/pkg/testhelpers/testflags"
	"github.com/filecoin-project/venus-vmcore/pkg/vm/builtin"
	"github.com/filecoin-project/venus-vmcore/pkg/vm/engine"
	"github.com/filecoin-project/venus-vmcore/pkg/vm/engine/enginetest"
	"github.com/filecoin-project/venus-vmcore/pkg/vm/engine/native"
	"github.com/filecoin-project/venus-vmcore/pkg/vm/engine/wasm"
	"github.com/filecoin-project/venus-vmcore/pkg/vm/register"
	"github.com/filecoin-project/venus-vmcore/pkg/vm/vmerrors"
)

type countingEngine struct {
	engine.Engine
	compiles int
}

func (e *countingEngine) Compile(ctx context.Context, code []byte) (engine.Module, error) {
	e.compiles++
	return e.Engine.Compile(ctx, code)
}

type closingModule struct {
	engine.Module
	closed *int
}

func (m closingModule) Close(context.Context) error {
	*m.closed++
	return nil
}

// closingEngine counts how many of its modules were closed.
type closingEngine struct {
	engine.Engine
	closed int
}

func (e *closingEngine) Compile(ctx context.Context, code []byte) (engine.Module, error) {
	mod, err := e.Engine.Compile(ctx, code)
	if err != nil {
		return nil, err
	}
	return closingModule{Module: mod, closed: &e.closed}, nil
}

func newTestMachine(t *testing.T, eng engine.Engine) *Machine {
	ctx := context.Background()
	bs := testhelpers.NewMemBlockstore()
	st := tree.NewStateWithBuiltinActor(t, cbor.NewCborStore(bs))
	root := tree.MustCommit(st)

	m, err := New(ctx, DefaultMachineContext("test"), bs, root, eng)
	require.NoError(t, err)
	return m
}

func TestNewMachine(t *testing.T) {
	tf.UnitTest(t)

	m := newTestMachine(t, native.New(*register.GetDefaultActors()))
	assert.Equal(t, "test", m.Context().NetworkName)
	assert.Equal(t, constants.MaxCallDepth, m.Context().MaxCallDepth)
	assert.NotNil(t, m.Context().Pricelist)

	act, found, err := m.Tree().GetActor(context.Background(), builtin.InitActorAddr)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, builtin.InitActorCodeID, act.Code)

	_, err = New(context.Background(), MachineContext{}, m.Blockstore(), builtin.EmptyObjectCid, m.Engine())
	assert.Error(t, err)
}

func TestLoadModuleCaches(t *testing.T) {
	tf.UnitTest(t)

	ctx := context.Background()
	eng := &countingEngine{Engine: native.New(*register.GetDefaultActors())}
	m := newTestMachine(t, eng)

	mod, err := m.LoadModule(ctx, builtin.AccountActorCodeID)
	require.NoError(t, err)
	assert.Equal(t, native.Name, mod.Engine())

	again, err := m.LoadModule(ctx, builtin.AccountActorCodeID)
	require.NoError(t, err)
	assert.Same(t, mod, again)
	assert.Equal(t, 1, eng.compiles)
}

func TestEvictedModulesAreClosed(t *testing.T) {
	tf.UnitTest(t)

	ctx := context.Background()
	eng := &closingEngine{Engine: native.New(*register.GetDefaultActors())}
	bs := testhelpers.NewMemBlockstore()
	root := tree.MustCommit(tree.NewStateWithBuiltinActor(t, cbor.NewCborStore(bs)))

	mctx := DefaultMachineContext("test")
	mctx.ModuleCacheSize = 1
	m, err := New(ctx, mctx, bs, root, eng)
	require.NoError(t, err)

	_, err = m.LoadModule(ctx, builtin.AccountActorCodeID)
	require.NoError(t, err)
	assert.Equal(t, 0, eng.closed)

	_, err = m.LoadModule(ctx, builtin.InitActorCodeID)
	require.NoError(t, err)
	assert.Equal(t, 1, eng.closed)

	require.NoError(t, m.Close(ctx))
	assert.Equal(t, 2, eng.closed)
}

func TestLoadModuleMissingCode(t *testing.T) {
	tf.UnitTest(t)

	m := newTestMachine(t, native.New(*register.GetDefaultActors()))

	// identity hashed but not a registered actor
	_, err := m.LoadModule(context.Background(), builtin.MakeCodeID("fil/1/unknown"))
	assert.Equal(t, vmerrors.ExecutionFault, vmerrors.KindOf(err))

	// not inline and not in the blockstore
	c, err := constants.DefaultCidBuilder.Sum([]byte("nothing"))
	require.NoError(t, err)
	_, err = m.LoadModule(context.Background(), c)
	assert.Equal(t, vmerrors.ExecutionFault, vmerrors.KindOf(err))
}

func TestInstallCode(t *testing.T) {
	tf.EngineTest(t)

	ctx := context.Background()
	w, err := wasm.New(ctx)
	require.NoError(t, err)
	m := newTestMachine(t, engine.NewRouter(native.New(*register.GetDefaultActors()), w))
	defer func() {
		require.NoError(t, m.Close(ctx))
	}()

	_, err = m.InstallCode(ctx, []byte("fil/1/account"))
	assert.Equal(t, vmerrors.IllegalArgument, vmerrors.KindOf(err))

	_, err = m.InstallCode(ctx, enginetest.NoEntryModule)
	assert.Equal(t, vmerrors.ExecutionFault, vmerrors.KindOf(err))

	c, err := m.InstallCode(ctx, enginetest.IdentityModule)
	require.NoError(t, err)
	assert.Equal(t, uint64(cid.Raw), c.Prefix().Codec)

	has, err := m.Blockstore().Has(ctx, c)
	require.NoError(t, err)
	assert.True(t, has)

	mod, err := m.LoadModule(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, wasm.Name, mod.Engine())

	// installing again does not release the cached module
	_, err = m.InstallCode(ctx, enginetest.IdentityModule)
	require.NoError(t, err)
	again, err := m.LoadModule(ctx, c)
	require.NoError(t, err)
	assert.Same(t, mod, again)
	inst, err := m.Engine().Instantiate(ctx, again, enginetest.NewMemHost(100, 101, 2))
	require.NoError(t, err)
	require.NoError(t, inst.Close(ctx))
}

func TestFlush(t *testing.T) {
	tf.UnitTest(t)

	ctx := context.Background()
	m := newTestMachine(t, native.New(*register.GetDefaultActors()))
	root, err := m.Flush(ctx)
	require.NoError(t, err)

	reopened, err := New(ctx, m.Context(), m.Blockstore(), root, m.Engine())
	require.NoError(t, err)
	_, found, err := reopened.Tree().GetActor(ctx, builtin.SystemActorAddr)
	require.NoError(t, err)
	assert.True(t, found)
}
