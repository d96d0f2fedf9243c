package gas

import (
	"time"

	"github.com/filecoin-project/venus-vmcore/pkg/constants"
	"github.com/filecoin-project/venus-vmcore/pkg/vm/vmerrors"
)

// GasTracker maintains the gas usage of a single top-level message.
//
// A charge that does not fit fails with OutOfGas and leaves the tracker fully
// consumed: GasUsed becomes GasLimit and every later charge fails as well.
type GasTracker struct { //nolint
	gasLimit int64
	gasUsed  int64

	tracing           bool
	ExecutionTrace    ExecutionTrace
	lastGasChargeTime time.Time
	lastGasCharge     *GasTrace
}

// NewGasTracker initializes a new empty gas tracker
func NewGasTracker(limit int64) *GasTracker {
	return &GasTracker{
		gasLimit: limit,
		tracing:  constants.EnableDetailedTracing,
	}
}

// EnableTracing turns on per-charge tracing regardless of the environment.
func (t *GasTracker) EnableTracing() {
	t.tracing = true
}

// ChargeGas deducts the charge from the remaining budget.
func (t *GasTracker) ChargeGas(charge GasCharge) error {
	toUse := charge.Total()
	if t.tracing {
		t.trace(charge, toUse)
	}

	// overflow safe
	if toUse > 0 && t.gasUsed > t.gasLimit-toUse {
		t.gasUsed = t.gasLimit
		return vmerrors.Newf(vmerrors.OutOfGas, "gas limit %d exceeded with charge %s of %d", t.gasLimit, charge.Name, toUse)
	}
	t.gasUsed += toUse
	return nil
}

// TryCharge is ChargeGas without the error.
func (t *GasTracker) TryCharge(charge GasCharge) bool {
	return t.ChargeGas(charge) == nil
}

// GasLimit returns the limit fixed at construction.
func (t *GasTracker) GasLimit() int64 {
	return t.gasLimit
}

// GasAvailable returns the remaining budget.
func (t *GasTracker) GasAvailable() int64 {
	return t.gasLimit - t.gasUsed
}

// GasUsed returns the cumulative usage. A negative running total, which can
// only come from negative price components, is reported as zero.
func (t *GasTracker) GasUsed() int64 {
	if t.gasUsed < 0 {
		return 0
	}
	return t.gasUsed
}

func (t *GasTracker) trace(charge GasCharge, toUse int64) {
	now := time.Now()
	if t.lastGasCharge != nil {
		t.lastGasCharge.TimeTaken = now.Sub(t.lastGasChargeTime)
	}

	gasTrace := GasTrace{
		Name:  charge.Name,
		Extra: charge.Extra,

		TotalGas:   toUse,
		ComputeGas: charge.ComputeGas,
		StorageGas: charge.StorageGas,
	}

	t.ExecutionTrace.GasCharges = append(t.ExecutionTrace.GasCharges, &gasTrace)
	t.lastGasChargeTime = now
	t.lastGasCharge = &gasTrace
}
