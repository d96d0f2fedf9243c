// Package callmanager drives the call tree of one message. The call manager
// owns the machine and the gas tracker; for the duration of a frame it hands
// both to the frame's kernel and is unusable until the kernel gives them back.
package callmanager

import (
	"context"

	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
	logging "github.com/ipfs/go-log/v2"
	"go.opencensus.io/trace"

	"github.com/filecoin-project/venus-vmcore/pkg/metrics"
	"github.com/filecoin-project/venus-vmcore/pkg/types"
	"github.com/filecoin-project/venus-vmcore/pkg/vm/builtin"
	"github.com/filecoin-project/venus-vmcore/pkg/vm/gas"
	"github.com/filecoin-project/venus-vmcore/pkg/vm/machine"
	"github.com/filecoin-project/venus-vmcore/pkg/vm/vmerrors"
)

var log = logging.Logger("vm.callmanager")

// CallManager is a handle on the execution context of a call tree. While a
// frame runs, the handle the frame was started from is poisoned: any use of
// it is a Fault.
type CallManager struct {
	inner *state
}

type state struct {
	machine *machine.Machine
	gas     *gas.GasTracker
	from    abi.ActorID
	depth   int
}

// New creates the call manager for a message sent by from.
func New(m *machine.Machine, from abi.ActorID, gasLimit int64) *CallManager {
	return &CallManager{inner: &state{
		machine: m,
		gas:     gas.NewGasTracker(gasLimit),
		from:    from,
	}}
}

func (cm *CallManager) state() *state {
	if cm.inner == nil {
		log.Errorw("call manager used while poisoned")
		vmerrors.Faultf("call manager is poisoned: its execution context is lent to a kernel")
	}
	return cm.inner
}

// take moves the execution context into a new handle, poisoning cm.
func (cm *CallManager) take() *CallManager {
	s := cm.state()
	cm.inner = nil
	return &CallManager{inner: s}
}

// restore moves the execution context back from a handle created by take.
func (cm *CallManager) restore(lent *CallManager) {
	if cm.inner != nil {
		vmerrors.Faultf("call manager restored while live")
	}
	cm.inner = lent.state()
	lent.inner = nil
}

// Machine returns the execution context.
func (cm *CallManager) Machine() *machine.Machine {
	return cm.state().machine
}

// From is the actor the current frame runs on behalf of.
func (cm *CallManager) From() abi.ActorID {
	return cm.state().from
}

func (cm *CallManager) ChargeGas(charge gas.GasCharge) error {
	return cm.state().gas.ChargeGas(charge)
}

func (cm *CallManager) GasAvailable() int64 {
	return cm.state().gas.GasAvailable()
}

func (cm *CallManager) GasUsed() int64 {
	return cm.state().gas.GasUsed()
}

// GasTrace returns the recorded charges when tracing is enabled.
func (cm *CallManager) GasTrace() gas.ExecutionTrace {
	return cm.state().gas.ExecutionTrace
}

// Finish consumes the call manager and returns the gas used and the machine.
func (cm *CallManager) Finish() (int64, *machine.Machine) {
	s := cm.state()
	cm.inner = nil
	return s.gas.GasUsed(), s.machine
}

// Send invokes method on the actor at to. An unknown key address gets an
// account actor created for it first.
func (cm *CallManager) Send(ctx context.Context, to address.Address, method abi.MethodNum, params []byte, value abi.TokenAmount) ([]byte, error) {
	ctx, span := trace.StartSpan(ctx, "callmanager.Send")
	defer span.End()
	span.AddAttributes(trace.StringAttribute("to", to.String()), trace.Int64Attribute("method", int64(method)))

	s := cm.state()
	idAddr, found, err := s.machine.Tree().LookupID(ctx, to)
	if err != nil {
		return nil, err
	}

	var toID abi.ActorID
	if found {
		if toID, err = builtin.IDFromAddress(idAddr); err != nil {
			return nil, err
		}
	} else {
		if !builtin.IsPrincipal(to) {
			return nil, vmerrors.Newf(vmerrors.ActorNotFound, "actor %s does not exist", to)
		}
		if toID, err = cm.createAccountActor(ctx, to); err != nil {
			return nil, err
		}
	}

	return cm.SendResolved(ctx, toID, method, params, value)
}

// SendResolved invokes method on actor to after moving value to it from the
// current sender.
func (cm *CallManager) SendResolved(ctx context.Context, to abi.ActorID, method abi.MethodNum, params []byte, value abi.TokenAmount) ([]byte, error) {
	s := cm.state()
	if value.Nil() {
		value = big.Zero()
	}

	if s.depth >= s.machine.Context().MaxCallDepth {
		return nil, vmerrors.Newf(vmerrors.ExecutionFault, "call depth exceeds %d", s.machine.Context().MaxCallDepth)
	}
	s.depth++
	defer func() { s.depth-- }()

	metrics.VMCalls.Inc(ctx, 1)
	ret, err := cm.sendResolved(ctx, s, to, method, params, value)
	if err != nil {
		metrics.VMCallFailures.Inc(ctx, 1)
		log.Debugw("send failed", "from", s.from, "to", to, "method", method, "depth", s.depth, "err", err)
	}
	return ret, err
}

func (cm *CallManager) sendResolved(ctx context.Context, s *state, to abi.ActorID, method abi.MethodNum, params []byte, value abi.TokenAmount) ([]byte, error) {
	if err := s.gas.ChargeGas(s.machine.Context().Pricelist.OnMethodInvocation(value, method)); err != nil {
		return nil, err
	}

	toAddr := builtin.MustIDAddress(to)
	act, found, err := s.machine.Tree().GetActor(ctx, toAddr)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, vmerrors.Newf(vmerrors.ActorNotFound, "actor %s does not exist", toAddr)
	}

	if err := s.machine.Tree().Transfer(ctx, builtin.MustIDAddress(s.from), toAddr, value); err != nil {
		return nil, err
	}

	// bare value transfer, no code runs
	if method == builtin.MethodSend {
		return nil, nil
	}

	module, err := s.machine.LoadModule(ctx, act.Code)
	if err != nil {
		return nil, err
	}

	log.Debugw("invoking actor", "from", s.from, "to", to, "method", method, "value", value, "depth", s.depth)
	k := newKernel(ctx, cm.take(), s.from, to, method, value)
	ret, err := k.run(ctx, s.machine.Engine(), module, params)
	cm.restore(k.release())
	return ret, err
}

// sendExplicit sends as from instead of the current sender. Only the VM
// itself uses it, to run constructors as the system actor.
func (cm *CallManager) sendExplicit(ctx context.Context, from, to abi.ActorID, method abi.MethodNum, params []byte, value abi.TokenAmount) ([]byte, error) {
	return cm.withSender(from, func() ([]byte, error) {
		return cm.SendResolved(ctx, to, method, params, value)
	})
}

// withSender runs f with from as the effective sender.
func (cm *CallManager) withSender(from abi.ActorID, f func() ([]byte, error)) ([]byte, error) {
	s := cm.state()
	prev := s.from
	s.from = from
	defer func() { s.from = prev }()

	return f()
}

func (cm *CallManager) createAccountActor(ctx context.Context, addr address.Address) (abi.ActorID, error) {
	s := cm.state()
	if err := s.gas.ChargeGas(s.machine.Context().Pricelist.OnCreateActor()); err != nil {
		return 0, err
	}

	if addr == builtin.BLSZeroAddress {
		return 0, vmerrors.New(vmerrors.IllegalArgument, "cannot create the bls zero address actor")
	}

	act := types.NewActor(builtin.AccountActorCodeID, big.Zero(), builtin.EmptyObjectCid)
	id, err := s.machine.Tree().CreateActor(ctx, addr, act)
	if err != nil {
		return 0, err
	}
	metrics.VMActorsCreated.Inc(ctx, 1)
	log.Infow("created account actor", "addr", addr, "id", id)

	params, err := actorParams(&addr)
	if err != nil {
		return 0, err
	}
	if _, err := cm.sendExplicit(ctx, builtin.SystemActorID, id, builtin.MethodConstructor, params, big.Zero()); err != nil {
		return 0, err
	}
	return id, nil
}
