package metrics

// Counters recorded by the call manager and the executor.
var (
	VMCalls         = NewInt64Counter("vm/calls", "Number of actor invocations")
	VMActorsCreated = NewInt64Counter("vm/actors_created", "Number of account actors created on first use")
	VMCallFailures  = NewInt64Counter("vm/call_failures", "Number of invocations that returned an error")
	VMGasUsed       = NewInt64Sum("vm/gas_used", "Gas used by applied messages")
	VMMessages      = NewInt64Counter("vm/messages", "Number of top level messages applied")
)
