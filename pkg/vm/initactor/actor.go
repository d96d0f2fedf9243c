package initactor

import (
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/cbor"
	"github.com/ipfs/go-cid"

	"github.com/filecoin-project/venus-vmcore/pkg/vm/builtin"
	"github.com/filecoin-project/venus-vmcore/pkg/vm/runtime"
)

// Actor is the native init actor. Address allocation happens in the VM
// itself, the actor only owns the state.
type Actor struct{}

// ConstructorParams names the network.
type ConstructorParams struct {
	NetworkName string
}

func (a Actor) Exports() []interface{} {
	return []interface{}{
		builtin.MethodConstructor: a.Constructor,
	}
}

func (a Actor) Code() cid.Cid {
	return builtin.InitActorCodeID
}

func (a Actor) State() cbor.Er {
	return new(State)
}

func (a Actor) Constructor(rt runtime.Runtime, params *ConstructorParams) (*abi.EmptyValue, error) {
	if err := rt.ValidateImmediateCallerIs(builtin.SystemActorAddr); err != nil {
		return nil, err
	}
	st, err := NewState(rt.Store(), params.NetworkName)
	if err != nil {
		return nil, err
	}
	return nil, rt.StateCreate(st)
}
