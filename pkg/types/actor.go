package types

import (
	"errors"

	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
	"github.com/ipfs/go-cid"
)

// ErrActorNotFound is returned by the state tree when an actor record does not exist.
var ErrActorNotFound = errors.New("actor not found")

// Actor is the record the state tree keeps for every actor.
//
// Code is the content identifier of the executable code, Head the root of the
// actor's own state object.
type Actor struct {
	Code    cid.Cid
	Head    cid.Cid
	Nonce   uint64
	Balance abi.TokenAmount
}

// NewActor constructs a new actor.
func NewActor(code cid.Cid, balance abi.TokenAmount, head cid.Cid) *Actor {
	return &Actor{
		Code:    code,
		Head:    head,
		Nonce:   0,
		Balance: balance,
	}
}

// Empty tests whether the actor's code is defined.
func (a *Actor) Empty() bool {
	return !a.Code.Defined()
}

// IncrementSeqNum increments the seq number.
func (a *Actor) IncrementSeqNum() {
	a.Nonce = a.Nonce + 1
}

// Copy returns a deep copy of the record.
func (a *Actor) Copy() *Actor {
	balance := big.Zero()
	if a.Balance.Int != nil {
		balance = big.Add(balance, a.Balance)
	}
	return &Actor{
		Code:    a.Code,
		Head:    a.Head,
		Nonce:   a.Nonce,
		Balance: balance,
	}
}
