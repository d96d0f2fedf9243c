package system

import (
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/cbor"
	"github.com/ipfs/go-cid"

	"github.com/filecoin-project/venus-vmcore/pkg/vm/builtin"
	"github.com/filecoin-project/venus-vmcore/pkg/vm/runtime"
)

// Actor is the system actor, the sender of every implicit message.
type Actor struct{}

func (a Actor) Exports() []interface{} {
	return []interface{}{
		builtin.MethodConstructor: a.Constructor,
	}
}

func (a Actor) Code() cid.Cid {
	return builtin.SystemActorCodeID
}

func (a Actor) State() cbor.Er {
	return new(State)
}

func (a Actor) Constructor(rt runtime.Runtime, _ *abi.EmptyValue) (*abi.EmptyValue, error) {
	if err := rt.ValidateImmediateCallerIs(builtin.SystemActorAddr); err != nil {
		return nil, err
	}
	return nil, rt.StateCreate(&State{})
}

type State struct{}
