// Package tree is the actor directory: a HAMT of actor records keyed by ID
// address, with a stack of snapshot layers buffering writes until Flush.
package tree

import (
	"context"
	"fmt"

	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
	"github.com/filecoin-project/specs-actors/v8/actors/util/adt"
	"github.com/ipfs/go-cid"
	cbor "github.com/ipfs/go-ipld-cbor"
	logging "github.com/ipfs/go-log/v2"
	"go.opencensus.io/trace"
	"golang.org/x/xerrors"

	"github.com/filecoin-project/venus-vmcore/pkg/types"
	"github.com/filecoin-project/venus-vmcore/pkg/vm/builtin"
	"github.com/filecoin-project/venus-vmcore/pkg/vm/initactor"
	"github.com/filecoin-project/venus-vmcore/pkg/vm/vmerrors"
)

type ActorKey = address.Address

type Root = cid.Cid

// Tree is the actor directory as seen by the machine.
type Tree interface {
	GetActor(ctx context.Context, addr ActorKey) (*types.Actor, bool, error)
	SetActor(ctx context.Context, addr ActorKey, act *types.Actor) error
	CreateActor(ctx context.Context, addr ActorKey, act *types.Actor) (abi.ActorID, error)
	DeleteActor(ctx context.Context, addr ActorKey) error
	LookupID(ctx context.Context, addr ActorKey) (address.Address, bool, error)

	MutateActor(ctx context.Context, addr ActorKey, f func(*types.Actor) error) error
	Transfer(ctx context.Context, from, to ActorKey, amount abi.TokenAmount) error

	Flush(ctx context.Context) (cid.Cid, error)
	Snapshot(ctx context.Context) error
	ClearSnapshot()
	Revert() error

	ForEach(ctx context.Context, f func(ActorKey, *types.Actor) error) error
	Store() cbor.IpldStore
}

var log = logging.Logger("statetree")

// State stores actors state by their ID.
type State struct {
	root  *adt.Map
	store cbor.IpldStore

	snaps *stateSnaps
}

var _ Tree = (*State)(nil)

// NewState creates an empty tree.
func NewState(cst cbor.IpldStore) (*State, error) {
	root, err := adt.MakeEmptyMap(adt.WrapStore(context.TODO(), cst), builtin.DefaultHamtBitwidth)
	if err != nil {
		return nil, xerrors.Errorf("failed to create empty state tree: %w", err)
	}
	return &State{
		root:  root,
		store: cst,
		snaps: newStateSnaps(),
	}, nil
}

// LoadState opens the tree rooted at c.
func LoadState(ctx context.Context, cst cbor.IpldStore, c cid.Cid) (*State, error) {
	nd, err := adt.AsMap(adt.WrapStore(ctx, cst), c, builtin.DefaultHamtBitwidth)
	if err != nil {
		log.Errorf("loading hamt node %s failed: %s", c, err)
		return nil, err
	}

	return &State{
		root:  nd,
		store: cst,
		snaps: newStateSnaps(),
	}, nil
}

// Store returns the IPLD store backing the tree.
func (st *State) Store() cbor.IpldStore {
	return st.store
}

// AdtStore wraps the backing store for adt collections.
func (st *State) AdtStore(ctx context.Context) adt.Store {
	return adt.WrapStore(ctx, st.store)
}

func (st *State) SetActor(ctx context.Context, addr ActorKey, act *types.Actor) error {
	iaddr, found, err := st.LookupID(ctx, addr)
	if err != nil {
		return xerrors.Errorf("ID lookup failed: %w", err)
	}
	if !found {
		return vmerrors.Newf(vmerrors.ActorNotFound, "no ID for address %s", addr)
	}

	st.snaps.setActor(iaddr, act)
	return nil
}

// LookupID gets the ID address of this actor's `addr` stored in the init actor.
// ID addresses are returned as they are, whether or not the actor exists.
func (st *State) LookupID(ctx context.Context, addr ActorKey) (address.Address, bool, error) {
	if addr.Protocol() == address.ID {
		return addr, true, nil
	}

	resa, ok := st.snaps.resolveAddress(addr)
	if ok {
		return resa, true, nil
	}

	ias, err := initactor.Load(ctx, st.AdtStore(ctx), st)
	if err != nil {
		return address.Undef, false, err
	}

	a, found, err := ias.ResolveAddress(st.AdtStore(ctx), addr)
	if err != nil {
		return address.Undef, false, vmerrors.Wrapf(vmerrors.StateInconsistent, err, "resolve address %s", addr)
	}
	if !found {
		return address.Undef, false, nil
	}

	st.snaps.cacheResolveAddress(addr, a)
	return a, true, nil
}

// GetActor returns the actor from any type of `addr` provided.
func (st *State) GetActor(ctx context.Context, addr ActorKey) (*types.Actor, bool, error) {
	if addr == address.Undef {
		return nil, false, fmt.Errorf("GetActor called on undefined address")
	}

	// Transform `addr` to its ID format.
	iaddr, found, err := st.LookupID(ctx, addr)
	if err != nil {
		return nil, false, xerrors.Errorf("address resolution: %w", err)
	}
	if !found {
		return nil, false, nil
	}

	snapAct, deleted := st.snaps.getActor(iaddr)
	if deleted {
		return nil, false, nil
	}
	if snapAct != nil {
		return snapAct, true, nil
	}

	var act types.Actor
	if found, err := st.root.Get(abi.AddrKey(iaddr), &act); err != nil {
		return nil, false, xerrors.Errorf("hamt find failed: %w", err)
	} else if !found {
		return nil, false, nil
	}

	st.snaps.setActor(iaddr, &act)
	return &act, true, nil
}

// CreateActor installs act under a new ID. A key address gets the next ID from
// the init actor, whose updated state is written back before returning. An ID
// address is used as is and must not be taken.
func (st *State) CreateActor(ctx context.Context, addr ActorKey, act *types.Actor) (abi.ActorID, error) {
	if addr == address.Undef {
		return 0, vmerrors.New(vmerrors.IllegalArgument, "CreateActor called on undefined address")
	}

	idAddr := addr
	if addr.Protocol() != address.ID {
		if _, found, err := st.LookupID(ctx, addr); err != nil {
			return 0, err
		} else if found {
			return 0, vmerrors.Newf(vmerrors.IllegalArgument, "address %s is already mapped", addr)
		}

		newAddr, err := st.RegisterNewAddress(ctx, addr)
		if err != nil {
			return 0, err
		}
		idAddr = newAddr
	} else if _, found, err := st.GetActor(ctx, addr); err != nil {
		return 0, err
	} else if found {
		return 0, vmerrors.Newf(vmerrors.IllegalArgument, "actor %s already exists", addr)
	}

	st.snaps.setActor(idAddr, act)
	if addr != idAddr {
		st.snaps.cacheResolveAddress(addr, idAddr)
	}

	id, err := builtin.IDFromAddress(idAddr)
	if err != nil {
		return 0, err
	}
	log.Debugw("created actor", "addr", addr, "id", id, "code", act.Code)
	return id, nil
}

// RegisterNewAddress maps addr to a freshly allocated ID and persists the init actor state.
func (st *State) RegisterNewAddress(ctx context.Context, addr ActorKey) (address.Address, error) {
	var out address.Address
	err := st.MutateActor(ctx, builtin.InitActorAddr, func(initact *types.Actor) error {
		store := st.AdtStore(ctx)
		var ias initactor.State
		if err := store.Get(ctx, initact.Head, &ias); err != nil {
			return vmerrors.Wrap(vmerrors.StateInconsistent, err, "loading init actor state")
		}

		oaddr, err := ias.MapAddressToNewID(store, addr)
		if err != nil {
			return err
		}
		out = oaddr

		ncid, err := ias.Store(ctx, store)
		if err != nil {
			return err
		}

		initact.Head = ncid
		return nil
	})
	if err != nil {
		return address.Undef, err
	}

	return out, nil
}

func (st *State) DeleteActor(ctx context.Context, addr ActorKey) error {
	if addr == address.Undef {
		return xerrors.Errorf("DeleteActor called on undefined address")
	}

	iaddr, found, err := st.LookupID(ctx, addr)
	if err != nil {
		return xerrors.Errorf("address resolution: %w", err)
	}
	if !found {
		return vmerrors.Newf(vmerrors.ActorNotFound, "resolution lookup failed (%s)", addr)
	}

	if _, found, err := st.GetActor(ctx, iaddr); err != nil {
		return err
	} else if !found {
		return vmerrors.Newf(vmerrors.ActorNotFound, "actor %s not found", iaddr)
	}

	st.snaps.deleteActor(iaddr)
	return nil
}

// MutateActor applies f to the record of addr and stores the result.
func (st *State) MutateActor(ctx context.Context, addr ActorKey, f func(*types.Actor) error) error {
	act, found, err := st.GetActor(ctx, addr)
	if err != nil {
		return err
	}
	if !found {
		return vmerrors.Newf(vmerrors.ActorNotFound, "actor %s not found", addr)
	}

	if err := f(act); err != nil {
		return err
	}

	return st.SetActor(ctx, addr, act)
}

// Transfer moves amount from one actor to another. Both must exist.
func (st *State) Transfer(ctx context.Context, from, to ActorKey, amount abi.TokenAmount) error {
	if amount.LessThan(big.Zero()) {
		return vmerrors.Newf(vmerrors.IllegalArgument, "attempted to transfer negative value %s", amount)
	}

	fromAct, found, err := st.GetActor(ctx, from)
	if err != nil {
		return err
	}
	if !found {
		return vmerrors.Newf(vmerrors.ActorNotFound, "transfer sender %s not found", from)
	}
	toAct, found, err := st.GetActor(ctx, to)
	if err != nil {
		return err
	}
	if !found {
		return vmerrors.Newf(vmerrors.ActorNotFound, "transfer recipient %s not found", to)
	}

	if amount.IsZero() {
		return nil
	}
	if fromAct.Balance.LessThan(amount) {
		return vmerrors.Newf(vmerrors.InsufficientFunds, "sender %s balance %s is less than %s", from, fromAct.Balance, amount)
	}

	fromID, _, err := st.LookupID(ctx, from)
	if err != nil {
		return err
	}
	toID, _, err := st.LookupID(ctx, to)
	if err != nil {
		return err
	}
	if fromID == toID {
		return nil
	}

	fromAct.Balance = big.Sub(fromAct.Balance, amount)
	toAct.Balance = big.Add(toAct.Balance, amount)

	st.snaps.setActor(fromID, fromAct)
	st.snaps.setActor(toID, toAct)
	return nil
}

func (st *State) Flush(ctx context.Context) (cid.Cid, error) {
	ctx, span := trace.StartSpan(ctx, "stateTree.Flush") //nolint:staticcheck
	defer span.End()
	if len(st.snaps.layers) != 1 {
		return cid.Undef, xerrors.Errorf("tried to flush state tree with snapshots on the stack")
	}

	for addr, sto := range st.snaps.layers[0].actors {
		if sto.Delete {
			if err := st.root.Delete(abi.AddrKey(addr)); err != nil {
				return cid.Undef, err
			}
		} else {
			act := sto.Act
			if err := st.root.Put(abi.AddrKey(addr), &act); err != nil {
				return cid.Undef, err
			}
		}
	}

	root, err := st.root.Root()
	if err != nil {
		return cid.Undef, err
	}
	span.AddAttributes(trace.StringAttribute("root", root.String()))
	return root, nil
}

func (st *State) Snapshot(ctx context.Context) error {
	_, span := trace.StartSpan(ctx, "stateTree.SnapShot")
	defer span.End()

	st.snaps.addLayer()

	return nil
}

func (st *State) ClearSnapshot() {
	st.snaps.mergeLastLayer()
}

// Revert discards the changes made since the last Snapshot. The snapshot
// stays on the stack and still has to be cleared.
func (st *State) Revert() error {
	if len(st.snaps.layers) < 2 {
		return xerrors.Errorf("no snapshot to revert to")
	}
	st.snaps.dropLayer()
	st.snaps.addLayer()

	return nil
}

// ForEach visits every actor, including changes that have not been flushed.
func (st *State) ForEach(ctx context.Context, f func(ActorKey, *types.Actor) error) error {
	pending := st.snaps.pending()

	var act types.Actor
	err := st.root.ForEach(&act, func(k string) error {
		addr, err := address.NewFromBytes([]byte(k))
		if err != nil {
			return xerrors.Errorf("invalid address (%x) found in state tree key: %w", []byte(k), err)
		}
		if _, ok := pending[addr]; ok {
			return nil
		}
		return f(addr, act.Copy())
	})
	if err != nil {
		return err
	}

	for addr, op := range pending {
		if op.Delete {
			continue
		}
		act := op.Act
		if err := f(addr, act.Copy()); err != nil {
			return err
		}
	}
	return nil
}
