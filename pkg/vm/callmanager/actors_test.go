package callmanager

import (
	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
	"github.com/filecoin-project/go-state-types/cbor"
	"github.com/ipfs/go-cid"
	cbg "github.com/whyrusleeping/cbor-gen"

	"github.com/filecoin-project/venus-vmcore/pkg/vm/builtin"
	"github.com/filecoin-project/venus-vmcore/pkg/vm/runtime"
)

var (
	callerCode  = builtin.MakeCodeID("test/caller")
	counterCode = builtin.MakeCodeID("test/counter")
)

// Methods of the test actors.
const (
	methodCall           = abi.MethodNum(2)
	methodIgnoreFailure  = abi.MethodNum(3)
	methodRecurse        = abi.MethodNum(4)
	methodForward        = abi.MethodNum(5)
	methodAskWho         = abi.MethodNum(6)
	methodIncrement      = abi.MethodNum(2)
	methodWhoCalled      = abi.MethodNum(3)
	forwardedValue int64 = 10
)

// callerActor calls other actors and counts the results in its state.
type callerActor struct{}

func (a callerActor) Exports() []interface{} {
	return []interface{}{
		methodCall:          a.Call,
		methodIgnoreFailure: a.IgnoreFailure,
		methodRecurse:       a.Recurse,
		methodForward:       a.Forward,
		methodAskWho:        a.AskWho,
	}
}

func (a callerActor) Code() cid.Cid {
	return callerCode
}

func (a callerActor) State() cbor.Er {
	return new(cbg.CborInt)
}

// Call increments the counter at to and stores the counter's new value.
func (a callerActor) Call(rt runtime.Runtime, to *address.Address) (*cbg.CborInt, error) {
	var out cbg.CborInt
	if err := rt.Send(*to, methodIncrement, nil, big.Zero(), &out); err != nil {
		return nil, err
	}
	var st cbg.CborInt
	if err := rt.StateTransaction(&st, func() error {
		st = out
		return nil
	}); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a callerActor) IgnoreFailure(rt runtime.Runtime, to *address.Address) (*abi.EmptyValue, error) {
	_ = rt.Send(*to, methodIncrement, nil, big.Zero(), nil)
	return nil, nil
}

func (a callerActor) Recurse(rt runtime.Runtime, n *cbg.CborInt) (*abi.EmptyValue, error) {
	if *n <= 0 {
		return nil, nil
	}
	next := *n - 1
	return nil, rt.Send(rt.Receiver(), methodRecurse, &next, big.Zero(), nil)
}

func (a callerActor) Forward(rt runtime.Runtime, to *address.Address) (*abi.EmptyValue, error) {
	return nil, rt.Send(*to, builtin.MethodSend, nil, abi.NewTokenAmount(forwardedValue), nil)
}

func (a callerActor) AskWho(rt runtime.Runtime, to *address.Address) (*address.Address, error) {
	var out address.Address
	if err := rt.Send(*to, methodWhoCalled, nil, big.Zero(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// counterActor keeps a counter in its state.
type counterActor struct{}

func (a counterActor) Exports() []interface{} {
	return []interface{}{
		methodIncrement: a.Increment,
		methodWhoCalled: a.WhoCalled,
	}
}

func (a counterActor) Code() cid.Cid {
	return counterCode
}

func (a counterActor) State() cbor.Er {
	return new(cbg.CborInt)
}

func (a counterActor) Increment(rt runtime.Runtime, _ *abi.EmptyValue) (*cbg.CborInt, error) {
	var st cbg.CborInt
	if err := rt.StateTransaction(&st, func() error {
		st++
		return nil
	}); err != nil {
		return nil, err
	}
	return &st, nil
}

func (a counterActor) WhoCalled(rt runtime.Runtime, _ *abi.EmptyValue) (*address.Address, error) {
	caller := rt.Caller()
	return &caller, nil
}
