// Package builtin holds the reserved identities of the VM: singleton actor
// IDs and addresses, method numbers and the code CIDs of the native actors.
package builtin

import (
	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"

	"github.com/filecoin-project/venus-vmcore/pkg/constants"
)

// Singleton actor IDs.
const (
	SystemActorID abi.ActorID = 0
	InitActorID   abi.ActorID = 1
)

// FirstNonSingletonActorID is the first ID handed out by the init actor.
const FirstNonSingletonActorID abi.ActorID = 100

// DefaultHamtBitwidth is the branching factor of every HAMT in the state.
const DefaultHamtBitwidth = 5

// Reserved method numbers.
const (
	MethodSend        abi.MethodNum = 0
	MethodConstructor abi.MethodNum = 1
)

var (
	SystemActorAddr = mustMakeAddress(address.NewIDAddress(uint64(SystemActorID)))
	InitActorAddr   = mustMakeAddress(address.NewIDAddress(uint64(InitActorID)))
)

// BLSZeroAddress is the BLS address of the point at infinity. No actor may be
// created for it.
var BLSZeroAddress = mustMakeAddress(address.NewBLSAddress(append([]byte{0xc0}, make([]byte, address.BlsPublicKeyBytes-1)...)))

// Native actor names. A code CID embeds the name, which is also the bytecode
// understood by the native engine.
const (
	SystemActorName  = "fil/1/system"
	InitActorName    = "fil/1/init"
	AccountActorName = "fil/1/account"
)

var (
	SystemActorCodeID  = MakeCodeID(SystemActorName)
	InitActorCodeID    = MakeCodeID(InitActorName)
	AccountActorCodeID = MakeCodeID(AccountActorName)
)

// EmptyObjectCid is the CID of the empty CBOR array, the head of actors that
// have not written state yet.
var EmptyObjectCid = func() cid.Cid {
	c, err := constants.DefaultCidBuilder.Sum([]byte{0x80})
	if err != nil {
		panic(err)
	}
	return c
}()

// EmptyObject is the block behind EmptyObjectCid.
var EmptyObject = []byte{0x80}

// MakeCodeID returns the identity-hashed raw CID naming a native actor.
func MakeCodeID(name string) cid.Cid {
	builder := cid.V1Builder{Codec: cid.Raw, MhType: mh.IDENTITY}
	c, err := builder.Sum([]byte(name))
	if err != nil {
		panic(err)
	}
	return c
}

// InlineBytecode returns the bytes embedded in an identity-hashed CID.
func InlineBytecode(c cid.Cid) ([]byte, bool) {
	dmh, err := mh.Decode(c.Hash())
	if err != nil || dmh.Code != mh.IDENTITY {
		return nil, false
	}
	return dmh.Digest, true
}

// ActorNameByCode returns the native actor name of a builtin code CID.
func ActorNameByCode(c cid.Cid) (string, bool) {
	switch {
	case c.Equals(SystemActorCodeID):
		return SystemActorName, true
	case c.Equals(InitActorCodeID):
		return InitActorName, true
	case c.Equals(AccountActorCodeID):
		return AccountActorName, true
	}
	return "<unknown>", false
}

// IsAccountActor reports whether c is the account actor code.
func IsAccountActor(c cid.Cid) bool {
	return c.Equals(AccountActorCodeID)
}

// IsPrincipal reports whether the address protocol names a key rather than an actor.
func IsPrincipal(addr address.Address) bool {
	switch addr.Protocol() {
	case address.SECP256K1, address.BLS:
		return true
	}
	return false
}

// MustIDAddress returns the ID address of id.
func MustIDAddress(id abi.ActorID) address.Address {
	return mustMakeAddress(address.NewIDAddress(uint64(id)))
}

// IDFromAddress returns the actor ID carried by an ID address.
func IDFromAddress(addr address.Address) (abi.ActorID, error) {
	id, err := address.IDFromAddress(addr)
	return abi.ActorID(id), err
}

func mustMakeAddress(addr address.Address, err error) address.Address {
	if err != nil {
		panic(err)
	}
	return addr
}
