// Package executor applies top level messages to a machine. It owns what the
// call manager leaves to its caller: sender checks, nonces and rolling back
// the effects of failed messages.
package executor

import (
	"context"
	"fmt"

	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/exitcode"
	logging "github.com/ipfs/go-log/v2"
	"go.opencensus.io/trace"

	"github.com/filecoin-project/venus-vmcore/pkg/constants"
	"github.com/filecoin-project/venus-vmcore/pkg/metrics"
	"github.com/filecoin-project/venus-vmcore/pkg/types"
	"github.com/filecoin-project/venus-vmcore/pkg/vm/builtin"
	"github.com/filecoin-project/venus-vmcore/pkg/vm/callmanager"
	"github.com/filecoin-project/venus-vmcore/pkg/vm/gas"
	"github.com/filecoin-project/venus-vmcore/pkg/vm/machine"
	"github.com/filecoin-project/venus-vmcore/pkg/vm/vmerrors"
)

var vmlog = logging.Logger("vm.executor")

// Ret is the outcome of applying a message.
type Ret struct {
	Receipt types.MessageReceipt
	// ActorErr is the error the message failed with, if any.
	ActorErr error
	GasTrace gas.ExecutionTrace
}

// Executor applies messages to a machine one at a time.
type Executor struct {
	machine *machine.Machine
}

func New(m *machine.Machine) *Executor {
	return &Executor{machine: m}
}

func (e *Executor) Machine() *machine.Machine {
	return e.machine
}

// ApplyMessage applies a message sent by an account actor. Failures of the
// message itself are reported in the receipt; an error means the state can
// no longer be trusted.
func (e *Executor) ApplyMessage(ctx context.Context, msg *types.Message) (*Ret, error) {
	ctx, span := trace.StartSpan(ctx, "executor.ApplyMessage")
	defer span.End()
	metrics.VMMessages.Inc(ctx, 1)

	if err := msg.ValidForExecution(); err != nil {
		return nil, err
	}

	// pre-send
	// 1. load sender actor and check that it is an account
	// 2. check message seq number
	// 3. increment message seq number
	// 4. snapshot state
	st := e.machine.Tree()
	fromID, found, err := st.LookupID(ctx, msg.From)
	if err != nil {
		return nil, err
	}
	if !found {
		return failure(exitcode.SysErrSenderInvalid, "sender %s does not exist", msg.From), nil
	}
	fromActor, found, err := st.GetActor(ctx, fromID)
	if err != nil {
		return nil, err
	}
	if !found {
		return failure(exitcode.SysErrSenderInvalid, "sender %s does not exist", msg.From), nil
	}
	if !builtin.IsAccountActor(fromActor.Code) {
		return failure(exitcode.SysErrSenderInvalid, "sender %s is not an account", msg.From), nil
	}

	if msg.Nonce != fromActor.Nonce {
		return failure(exitcode.SysErrSenderStateInvalid, "expected nonce %d, got %d", fromActor.Nonce, msg.Nonce), nil
	}

	if err := st.MutateActor(ctx, fromID, func(act *types.Actor) error {
		act.IncrementSeqNum()
		return nil
	}); err != nil {
		return nil, err
	}

	// Even if the message fails, the nonce increment is kept.
	return e.send(ctx, fromID, msg.To, msg.Method, msg.Params, msg.Value, msg.GasLimit)
}

// ApplyImplicitMessage applies a message generated by the VM itself, for
// example from the system actor at genesis. Implicit messages must not fail.
func (e *Executor) ApplyImplicitMessage(ctx context.Context, from, to address.Address, method abi.MethodNum, params []byte, value abi.TokenAmount) (*Ret, error) {
	fromID, found, err := e.machine.Tree().LookupID(ctx, from)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("implicit message `From` field actor not found, addr: %s", from)
	}

	ret, err := e.send(ctx, fromID, to, method, params, value, constants.BlockGasLimit*10000)
	if err != nil {
		return nil, err
	}
	if ret.Receipt.ExitCode.IsError() {
		return nil, fmt.Errorf("invalid exit code %d during implicit message execution: From %s, To %s, Method %d, Value %s: %w",
			ret.Receipt.ExitCode, from, to, method, value, ret.ActorErr)
	}
	return ret, nil
}

func (e *Executor) send(ctx context.Context, fromAddr, to address.Address, method abi.MethodNum, params []byte, value abi.TokenAmount, gasLimit int64) (*Ret, error) {
	st := e.machine.Tree()
	from, err := builtin.IDFromAddress(fromAddr)
	if err != nil {
		return nil, err
	}

	if err := st.Snapshot(ctx); err != nil {
		return nil, err
	}
	defer st.ClearSnapshot()

	cm := callmanager.New(e.machine, from, gasLimit)
	ret, sendErr := cm.Send(ctx, to, method, params, value)
	gasTrace := cm.GasTrace()
	gasUsed, _ := cm.Finish()
	metrics.VMGasUsed.Inc(ctx, gasUsed)

	if sendErr != nil {
		// Roll back everything the call tree did. The core leaves effects of
		// failed calls in place.
		if err := st.Revert(); err != nil {
			return nil, err
		}
		if vmerrors.IsFatal(sendErr) {
			vmlog.Errorw("fatal error applying message", "from", fromAddr, "to", to, "method", method, "err", sendErr)
			return nil, sendErr
		}
		code := vmerrors.ExitCodeOf(sendErr)
		vmlog.Infow("message failed", "from", fromAddr, "to", to, "method", method, "exitcode", code, "err", sendErr)
		return &Ret{
			Receipt:  types.Failure(code, gasUsed),
			ActorErr: sendErr,
			GasTrace: gasTrace,
		}, nil
	}

	if ret == nil {
		ret = []byte{}
	}
	return &Ret{
		Receipt: types.MessageReceipt{
			ExitCode:    exitcode.Ok,
			ReturnValue: ret,
			GasUsed:     gasUsed,
		},
		GasTrace: gasTrace,
	}, nil
}

func failure(code exitcode.ExitCode, format string, args ...interface{}) *Ret {
	return &Ret{
		Receipt:  types.Failure(code, 0),
		ActorErr: vmerrors.Abortf(code, format, args...),
	}
}
