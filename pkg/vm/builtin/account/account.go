package account

import (
	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/cbor"
	"github.com/filecoin-project/go-state-types/exitcode"
	"github.com/ipfs/go-cid"

	"github.com/filecoin-project/venus-vmcore/pkg/vm/builtin"
	"github.com/filecoin-project/venus-vmcore/pkg/vm/runtime"
	"github.com/filecoin-project/venus-vmcore/pkg/vm/vmerrors"
)

// Methods of the account actor.
const (
	MethodConstructor   = builtin.MethodConstructor
	MethodPubkeyAddress = abi.MethodNum(2)
)

// Actor is the account actor: a key address that has been given an ID.
type Actor struct{}

func (a Actor) Exports() []interface{} {
	return []interface{}{
		MethodConstructor:   a.Constructor,
		MethodPubkeyAddress: a.PubkeyAddress,
	}
}

func (a Actor) Code() cid.Cid {
	return builtin.AccountActorCodeID
}

func (a Actor) State() cbor.Er {
	return new(State)
}

// Constructor records the key address. Only the system actor may call it.
func (a Actor) Constructor(rt runtime.Runtime, addr *address.Address) (*abi.EmptyValue, error) {
	if err := rt.ValidateImmediateCallerIs(builtin.SystemActorAddr); err != nil {
		return nil, err
	}
	if !builtin.IsPrincipal(*addr) {
		return nil, vmerrors.Abortf(exitcode.ErrIllegalArgument, "address must use BLS or SECP protocol, got %v", addr.Protocol())
	}
	if err := rt.StateCreate(&State{Address: *addr}); err != nil {
		return nil, err
	}
	return nil, nil
}

// PubkeyAddress returns the key address of the account.
func (a Actor) PubkeyAddress(rt runtime.Runtime, _ *abi.EmptyValue) (*address.Address, error) {
	var st State
	if err := rt.StateReadonly(&st); err != nil {
		return nil, err
	}
	return &st.Address, nil
}

// State is the account actor state.
type State struct {
	Address address.Address
}
