package gas

import "fmt"

// GasCharge is a single metered operation.
type GasCharge struct { //nolint
	Name  string
	Extra interface{}

	ComputeGas int64
	StorageGas int64
}

// NewGasCharge creates a charge with the given compute and storage components.
func NewGasCharge(name string, computeGas int64, storageGas int64) GasCharge {
	return GasCharge{
		Name:       name,
		ComputeGas: computeGas,
		StorageGas: storageGas,
	}
}

// Total is the amount deducted from the tracker.
func (g GasCharge) Total() int64 {
	return g.ComputeGas*GasComputeMulti + g.StorageGas*GasStorageMulti
}

// WithExtra attaches diagnostic data that shows up in traces.
func (g GasCharge) WithExtra(extra interface{}) GasCharge {
	out := g
	out.Extra = extra
	return out
}

func (g GasCharge) String() string {
	return fmt.Sprintf("%s(compute=%d, storage=%d)", g.Name, g.ComputeGas, g.StorageGas)
}

// Multipliers applied to the two components of a charge.
const (
	GasComputeMulti = 1
	GasStorageMulti = 1
)
