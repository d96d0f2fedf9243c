package gas

import "time"

// GasTrace records a single charge when detailed tracing is enabled.
type GasTrace struct {
	Name  string
	Extra interface{} `json:",omitempty"`

	TotalGas   int64 `json:"tg"`
	ComputeGas int64 `json:"cg"`
	StorageGas int64 `json:"sg"`

	TimeTaken time.Duration `json:"tt"`
}

// ExecutionTrace is the ordered list of charges applied to a tracker.
type ExecutionTrace struct {
	GasCharges []*GasTrace `json:",omitempty"`
}

// Sum adds up the traced charges.
func (et ExecutionTrace) Sum() int64 {
	var total int64
	for _, gc := range et.GasCharges {
		total += gc.TotalGas
	}
	return total
}
