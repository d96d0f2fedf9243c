// Package genesis builds the initial state tree: the singleton actors and the
// pre-funded accounts every network starts with.
package genesis

import (
	"context"

	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
	"github.com/ipfs/go-cid"
	blockstore "github.com/ipfs/go-ipfs-blockstore"
	cbor "github.com/ipfs/go-ipld-cbor"
	logging "github.com/ipfs/go-log/v2"
	"golang.org/x/xerrors"

	"github.com/filecoin-project/venus-vmcore/pkg/state/tree"
	"github.com/filecoin-project/venus-vmcore/pkg/types"
	"github.com/filecoin-project/venus-vmcore/pkg/vm/builtin"
	"github.com/filecoin-project/venus-vmcore/pkg/vm/engine"
	"github.com/filecoin-project/venus-vmcore/pkg/vm/executor"
	"github.com/filecoin-project/venus-vmcore/pkg/vm/initactor"
	"github.com/filecoin-project/venus-vmcore/pkg/vm/machine"
)

var log = logging.Logger("genesis")

// Actor is a pre-funded account.
type Actor struct {
	Address address.Address
	Balance abi.TokenAmount
}

// Template describes the genesis state.
type Template struct {
	NetworkName string
	Accounts    []Actor
}

/*
The process:
  - Create empty state with system and init actor records
  - Run the system and init constructors as the system actor
  - For every account
    - send to its key address, which creates the account actor
    - credit its balance
*/

// MakeGenesisState writes the genesis state into bs and returns its root.
// eng must know the builtin actors.
func MakeGenesisState(ctx context.Context, bs blockstore.Blockstore, eng engine.Engine, template Template) (cid.Cid, error) {
	root, err := MakeInitialStateTree(ctx, bs)
	if err != nil {
		return cid.Undef, err
	}

	m, err := machine.New(ctx, machine.DefaultMachineContext(template.NetworkName), bs, root, eng)
	if err != nil {
		return cid.Undef, err
	}
	ex := executor.New(m)

	if _, err := doExecValue(ctx, ex, builtin.SystemActorAddr, big.Zero(), builtin.MethodConstructor, nil); err != nil {
		return cid.Undef, xerrors.Errorf("constructing system actor: %w", err)
	}
	params := mustEnc(&initactor.ConstructorParams{NetworkName: template.NetworkName})
	if _, err := doExecValue(ctx, ex, builtin.InitActorAddr, big.Zero(), builtin.MethodConstructor, params); err != nil {
		return cid.Undef, xerrors.Errorf("constructing init actor: %w", err)
	}

	for _, acct := range template.Accounts {
		if err := createAccountActor(ctx, ex, acct); err != nil {
			return cid.Undef, err
		}
	}

	root, err = m.Flush(ctx)
	if err != nil {
		return cid.Undef, xerrors.Errorf("flushing genesis state: %w", err)
	}
	log.Infow("created genesis state", "root", root, "network", template.NetworkName, "accounts", len(template.Accounts))
	return root, nil
}

// MakeInitialStateTree creates the records of the system and init actors
// with empty state.
func MakeInitialStateTree(ctx context.Context, bs blockstore.Blockstore) (cid.Cid, error) {
	cst := cbor.NewCborStore(bs)
	if _, err := SetupEmptyObject(ctx, cst); err != nil {
		return cid.Undef, err
	}

	state, err := tree.NewState(cst)
	if err != nil {
		return cid.Undef, xerrors.Errorf("making new state tree: %w", err)
	}

	sysact := types.NewActor(builtin.SystemActorCodeID, big.Zero(), builtin.EmptyObjectCid)
	if _, err := state.CreateActor(ctx, builtin.SystemActorAddr, sysact); err != nil {
		return cid.Undef, xerrors.Errorf("set system actor: %w", err)
	}
	initact := types.NewActor(builtin.InitActorCodeID, big.Zero(), builtin.EmptyObjectCid)
	if _, err := state.CreateActor(ctx, builtin.InitActorAddr, initact); err != nil {
		return cid.Undef, xerrors.Errorf("set init actor: %w", err)
	}

	return state.Flush(ctx)
}

func createAccountActor(ctx context.Context, ex *executor.Executor, info Actor) error {
	if !builtin.IsPrincipal(info.Address) {
		return xerrors.Errorf("genesis account %s must be a key address", info.Address)
	}
	if _, err := doExecValue(ctx, ex, info.Address, big.Zero(), builtin.MethodSend, nil); err != nil {
		return xerrors.Errorf("creating account %s: %w", info.Address, err)
	}
	if info.Balance.Nil() || info.Balance.IsZero() {
		return nil
	}
	return ex.Machine().Tree().MutateActor(ctx, info.Address, func(act *types.Actor) error {
		act.Balance = big.Add(act.Balance, info.Balance)
		return nil
	})
}

// InstallActor creates an actor running code outside of any message, the
// way genesis installs actors. The actor is registered under an actor
// address derived from seed and gets the next free ID.
func InstallActor(ctx context.Context, st tree.Tree, code cid.Cid, balance abi.TokenAmount, seed []byte) (address.Address, abi.ActorID, error) {
	robust, err := address.NewActorAddress(seed)
	if err != nil {
		return address.Undef, 0, err
	}
	if balance.Nil() {
		balance = big.Zero()
	}
	id, err := st.CreateActor(ctx, robust, types.NewActor(code, balance, builtin.EmptyObjectCid))
	if err != nil {
		return address.Undef, 0, xerrors.Errorf("installing actor: %w", err)
	}
	return robust, id, nil
}
