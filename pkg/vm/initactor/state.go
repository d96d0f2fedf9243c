// Package initactor keeps the address resolver: the persistent map from key
// addresses to actor IDs and the ID allocator, stored as the state of the
// init actor.
package initactor

import (
	"context"

	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/specs-actors/v8/actors/util/adt"
	"github.com/ipfs/go-cid"
	logging "github.com/ipfs/go-log/v2"
	cbg "github.com/whyrusleeping/cbor-gen"
	"golang.org/x/xerrors"

	"github.com/filecoin-project/venus-vmcore/pkg/types"
	"github.com/filecoin-project/venus-vmcore/pkg/vm/builtin"
	"github.com/filecoin-project/venus-vmcore/pkg/vm/vmerrors"
)

var log = logging.Logger("initactor")

// State is the init actor state.
type State struct {
	AddressMap  cid.Cid // HAMT[addr.Address]abi.ActorID
	NextID      abi.ActorID
	NetworkName string
}

// ActorGetter is the part of the state tree Load needs.
type ActorGetter interface {
	GetActor(ctx context.Context, addr address.Address) (*types.Actor, bool, error)
}

// NewState creates an empty address map in store. The state itself is not
// written, callers commit it with Store.
func NewState(store adt.Store, networkName string) (*State, error) {
	emptyAddressMapCid, err := adt.StoreEmptyMap(store, builtin.DefaultHamtBitwidth)
	if err != nil {
		return nil, xerrors.Errorf("failed to create empty map: %w", err)
	}

	return &State{
		AddressMap:  emptyAddressMapCid,
		NextID:      builtin.FirstNonSingletonActorID,
		NetworkName: networkName,
	}, nil
}

// Load reads the init actor record from tree and its state from store.
// A missing record or state object means the state is corrupt.
func Load(ctx context.Context, store adt.Store, tree ActorGetter) (*State, error) {
	act, found, err := tree.GetActor(ctx, builtin.InitActorAddr)
	if err != nil {
		return nil, vmerrors.Wrap(vmerrors.StateInconsistent, err, "loading init actor record")
	}
	if !found {
		return nil, vmerrors.New(vmerrors.StateInconsistent, "init actor record not found")
	}

	var st State
	if err := store.Get(ctx, act.Head, &st); err != nil {
		log.Errorw("init actor state unreadable", "head", act.Head, "err", err)
		return nil, vmerrors.Wrapf(vmerrors.StateInconsistent, err, "loading init actor state %s", act.Head)
	}
	return &st, nil
}

// Store writes the state object and returns its CID.
func (s *State) Store(ctx context.Context, store adt.Store) (cid.Cid, error) {
	c, err := store.Put(ctx, s)
	if err != nil {
		return cid.Undef, xerrors.Errorf("failed to store init actor state: %w", err)
	}
	return c, nil
}

// ResolveAddress resolves an address to an ID-address, if possible.
// If the provided address is an ID address, it is returned as-is, without
// looking at the map.
//
// Returns an undefined address and false if the address is not mapped. Errors
// only come from the store.
func (s *State) ResolveAddress(store adt.Store, addr address.Address) (address.Address, bool, error) {
	if addr.Protocol() == address.ID {
		return addr, true, nil
	}

	m, err := adt.AsMap(store, s.AddressMap, builtin.DefaultHamtBitwidth)
	if err != nil {
		return address.Undef, false, xerrors.Errorf("failed to load address map: %w", err)
	}

	var actorID cbg.CborInt
	found, err := m.Get(abi.AddrKey(addr), &actorID)
	if err != nil {
		return address.Undef, false, xerrors.Errorf("failed to get from address map: %w", err)
	}
	if !found {
		return address.Undef, false, nil
	}

	idAddr, err := address.NewIDAddress(uint64(actorID))
	return idAddr, true, err
}

// MapAddressToNewID allocates the next ID and maps addr to it. It does not
// check for an existing mapping: calling it twice for one address allocates
// two IDs and the second one wins in the map.
func (s *State) MapAddressToNewID(store adt.Store, addr address.Address) (address.Address, error) {
	if addr.Protocol() == address.ID {
		return address.Undef, vmerrors.Newf(vmerrors.IllegalArgument, "cannot map ID address %s", addr)
	}

	actorID := cbg.CborInt(s.NextID)

	m, err := adt.AsMap(store, s.AddressMap, builtin.DefaultHamtBitwidth)
	if err != nil {
		return address.Undef, xerrors.Errorf("failed to load address map: %w", err)
	}
	if err := m.Put(abi.AddrKey(addr), &actorID); err != nil {
		return address.Undef, xerrors.Errorf("map address failed to store entry: %w", err)
	}
	amr, err := m.Root()
	if err != nil {
		return address.Undef, xerrors.Errorf("failed to get address map root: %w", err)
	}

	s.AddressMap = amr
	s.NextID++

	return address.NewIDAddress(uint64(actorID))
}

// ForEachAddress calls cb for every mapped address in key order of the HAMT.
func (s *State) ForEachAddress(store adt.Store, cb func(addr address.Address, id abi.ActorID) error) error {
	m, err := adt.AsMap(store, s.AddressMap, builtin.DefaultHamtBitwidth)
	if err != nil {
		return xerrors.Errorf("failed to load address map: %w", err)
	}

	var actorID cbg.CborInt
	return m.ForEach(&actorID, func(k string) error {
		addr, err := address.NewFromBytes([]byte(k))
		if err != nil {
			return xerrors.Errorf("invalid address (%x) found in address map: %w", []byte(k), err)
		}
		return cb(addr, abi.ActorID(actorID))
	})
}
