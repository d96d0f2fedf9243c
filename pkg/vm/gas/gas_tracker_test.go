package gas

import (
	"testing"

	"github.com/filecoin-project/go-state-types/abi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tf "github.com/filecoin-project/venus-vmcore/pkg/testhelpers/testflags"
	"github.com/filecoin-project/venus-vmcore/pkg/vm/vmerrors"
)

func charge(n int64) GasCharge {
	return NewGasCharge("test", n, 0)
}

func TestChargeWithinLimit(t *testing.T) {
	tf.UnitTest(t)

	gt := NewGasTracker(100)
	require.NoError(t, gt.ChargeGas(charge(30)))
	require.NoError(t, gt.ChargeGas(charge(70)))

	assert.Equal(t, int64(100), gt.GasUsed())
	assert.Equal(t, int64(0), gt.GasAvailable())
	assert.Equal(t, int64(100), gt.GasLimit())
}

func TestChargePrefixSums(t *testing.T) {
	tf.UnitTest(t)

	const limit = 50
	charges := []int64{10, 20, 15, 10, 1}

	gt := NewGasTracker(limit)
	var sum int64
	failedAt := -1
	for i, c := range charges {
		err := gt.ChargeGas(charge(c))
		sum += c
		if sum <= limit {
			require.NoError(t, err, "charge %d", i)
			assert.Equal(t, sum, gt.GasUsed())
			continue
		}
		require.Error(t, err)
		assert.True(t, vmerrors.Is(err, vmerrors.OutOfGas))
		failedAt = i
		break
	}
	assert.Equal(t, 3, failedAt)
}

func TestChargeThenFail(t *testing.T) {
	tf.UnitTest(t)

	gt := NewGasTracker(100)
	require.NoError(t, gt.ChargeGas(charge(60)))

	err := gt.ChargeGas(charge(50))
	require.Error(t, err)
	assert.Equal(t, vmerrors.OutOfGas, vmerrors.KindOf(err))

	// the failed charge consumes the remainder
	assert.Equal(t, int64(100), gt.GasUsed())
	assert.Equal(t, int64(0), gt.GasAvailable())

	assert.False(t, gt.TryCharge(charge(1)))
	assert.True(t, gt.TryCharge(charge(0)))
}

func TestChargeOverflow(t *testing.T) {
	tf.UnitTest(t)

	gt := NewGasTracker(1 << 62)
	require.NoError(t, gt.ChargeGas(charge(1<<61)))
	assert.False(t, gt.TryCharge(charge(1<<62)))
	assert.Equal(t, int64(1<<62), gt.GasUsed())
}

func TestGasUsedClampedAtZero(t *testing.T) {
	tf.UnitTest(t)

	gt := NewGasTracker(100)
	require.NoError(t, gt.ChargeGas(charge(-5)))
	assert.Equal(t, int64(0), gt.GasUsed())
	assert.Equal(t, int64(105), gt.GasAvailable())
}

func TestTracing(t *testing.T) {
	tf.UnitTest(t)

	gt := NewGasTracker(1_000_000_000)
	gt.EnableTracing()

	pl := NewPricelist()
	require.NoError(t, gt.ChargeGas(pl.OnMethodInvocation(abi.NewTokenAmount(1), 2)))
	require.NoError(t, gt.ChargeGas(pl.OnIpldPut(64)))

	require.Len(t, gt.ExecutionTrace.GasCharges, 2)
	assert.Equal(t, "OnMethodInvocation", gt.ExecutionTrace.GasCharges[0].Name)
	assert.Equal(t, "ti", gt.ExecutionTrace.GasCharges[0].Extra)
	assert.Equal(t, gt.GasUsed(), gt.ExecutionTrace.Sum())
}

func TestPricelist(t *testing.T) {
	tf.UnitTest(t)

	pl := NewPricelist()

	plain := pl.OnMethodInvocation(abi.NewTokenAmount(0), 2)
	withValue := pl.OnMethodInvocation(abi.NewTokenAmount(10), 2)
	transferOnly := pl.OnMethodInvocation(abi.NewTokenAmount(10), 0)
	assert.Greater(t, withValue.Total(), plain.Total())
	assert.Greater(t, transferOnly.Total(), withValue.Total())

	assert.Greater(t, pl.OnCreateActor().Total(), int64(0))
	assert.Greater(t, pl.OnIpldPut(100).Total(), pl.OnIpldPut(10).Total())
	assert.Greater(t, pl.OnBlockRead(100).Total(), pl.OnBlockRead(0).Total())
}
