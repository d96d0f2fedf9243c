package native

import (
	"bytes"
	"context"
	"testing"

	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/cbor"
	"github.com/filecoin-project/go-state-types/exitcode"
	"github.com/ipfs/go-cid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filecoin-project/venus-vmcore/pkg/testhelpers"
	tf "github.com/filecoin-project/venus-vmcore/pkg/testhelpers/testflags"
	"github.com/filecoin-project/venus-vmcore/pkg/vm/builtin"
	"github.com/filecoin-project/venus-vmcore/pkg/vm/builtin/account"
	"github.com/filecoin-project/venus-vmcore/pkg/vm/dispatch"
	"github.com/filecoin-project/venus-vmcore/pkg/vm/engine"
	"github.com/filecoin-project/venus-vmcore/pkg/vm/engine/enginetest"
	"github.com/filecoin-project/venus-vmcore/pkg/vm/runtime"
	"github.com/filecoin-project/venus-vmcore/pkg/vm/vmerrors"
)

const panickyName = "test/panicky"

type panickyActor struct{}

func (a panickyActor) Exports() []interface{} {
	return []interface{}{nil, a.Explode, a.Fault}
}

func (a panickyActor) Code() cid.Cid { return builtin.MakeCodeID(panickyName) }

func (a panickyActor) State() cbor.Er { return new(account.State) }

func (a panickyActor) Explode(rt runtime.Runtime, _ *abi.EmptyValue) (*abi.EmptyValue, error) {
	panic("boom")
}

func (a panickyActor) Fault(rt runtime.Runtime, _ *abi.EmptyValue) (*abi.EmptyValue, error) {
	vmerrors.Faultf("invariant broken")
	return nil, nil
}

func newEngine() *Engine {
	return New(dispatch.NewBuilder().Add(account.Actor{}).Add(panickyActor{}).Build())
}

func invoke(t *testing.T, e *Engine, name string, host *enginetest.MemHost, params []byte) (engine.BlockID, error) {
	ctx := context.Background()
	mod, err := e.Compile(ctx, []byte(name))
	require.NoError(t, err)
	assert.Equal(t, Name, mod.Engine())

	inst, err := e.Instantiate(ctx, mod, host)
	require.NoError(t, err)
	defer inst.Close(ctx) // nolint: errcheck

	paramsID := engine.NoData
	if params != nil {
		paramsID, err = host.BlockCreate(engine.CodecDagCBOR, params)
		require.NoError(t, err)
	}
	return inst.Invoke(ctx, engine.EntryPoint, paramsID)
}

func TestAccountConstructorAndPubkey(t *testing.T) {
	tf.UnitTest(t)

	e := newEngine()
	key := testhelpers.NewForTestGetter()()
	buf := new(bytes.Buffer)
	require.NoError(t, key.MarshalCBOR(buf))

	host := enginetest.NewMemHost(builtin.SystemActorID, 100, account.MethodConstructor)
	ret, err := invoke(t, e, builtin.AccountActorName, host, buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, engine.NoData, ret)

	host.Method = account.MethodPubkeyAddress
	ret, err = invoke(t, e, builtin.AccountActorName, host, nil)
	require.NoError(t, err)

	var got address.Address
	require.NoError(t, got.UnmarshalCBOR(bytes.NewReader(host.Data(ret))))
	assert.Equal(t, key, got)
}

func TestAccountConstructorRequiresSystemCaller(t *testing.T) {
	tf.UnitTest(t)

	key := testhelpers.NewForTestGetter()()
	buf := new(bytes.Buffer)
	require.NoError(t, key.MarshalCBOR(buf))

	host := enginetest.NewMemHost(101, 100, account.MethodConstructor)
	_, err := invoke(t, newEngine(), builtin.AccountActorName, host, buf.Bytes())
	assert.Equal(t, exitcode.SysErrForbidden, vmerrors.ExitCodeOf(err))
}

func TestCompileUnknownActor(t *testing.T) {
	tf.UnitTest(t)

	_, err := newEngine().Compile(context.Background(), []byte("fil/1/nope"))
	assert.Equal(t, vmerrors.ExecutionFault, vmerrors.KindOf(err))
}

func TestPanicsBecomeExecutionFaults(t *testing.T) {
	tf.UnitTest(t)

	host := enginetest.NewMemHost(101, 100, 1)
	_, err := invoke(t, newEngine(), panickyName, host, nil)
	require.Error(t, err)
	assert.Equal(t, vmerrors.ExecutionFault, vmerrors.KindOf(err))
	assert.Contains(t, err.Error(), "boom")
}

func TestFaultsAreNotRecovered(t *testing.T) {
	tf.UnitTest(t)

	host := enginetest.NewMemHost(101, 100, 2)
	assert.Panics(t, func() {
		_, _ = invoke(t, newEngine(), panickyName, host, nil)
	})
}

func TestInvokeWrongEntry(t *testing.T) {
	tf.UnitTest(t)

	ctx := context.Background()
	e := newEngine()
	mod, err := e.Compile(ctx, []byte(builtin.AccountActorName))
	require.NoError(t, err)
	inst, err := e.Instantiate(ctx, mod, enginetest.NewMemHost(0, 100, 1))
	require.NoError(t, err)

	_, err = inst.Invoke(ctx, "main", engine.NoData)
	assert.Equal(t, vmerrors.ExecutionFault, vmerrors.KindOf(err))

	require.NoError(t, inst.Close(ctx))
	_, err = inst.Invoke(ctx, engine.EntryPoint, engine.NoData)
	assert.Equal(t, vmerrors.ExecutionFault, vmerrors.KindOf(err))
}
