package main

import (
	"fmt"

	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/urfave/cli/v2"
	"golang.org/x/xerrors"

	"github.com/filecoin-project/venus-vmcore/pkg/vm/builtin"
	"github.com/filecoin-project/venus-vmcore/pkg/vm/initactor"
)

var resolveCmd = &cli.Command{
	Name:      "resolve",
	Usage:     "resolve an address to its actor ID",
	ArgsUsage: "<address>",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "all",
			Usage: "list every address known to the init actor",
		},
	},
	Action: func(cctx *cli.Context) error {
		if !cctx.Bool("all") && cctx.NArg() != 1 {
			return xerrors.New("expected an address or --all")
		}

		e, err := openEnv(cctx)
		if err != nil {
			return err
		}
		defer e.close(cctx.Context)

		st := e.machine.Tree()
		w := cctx.App.Writer
		if cctx.Bool("all") {
			store := st.AdtStore(cctx.Context)
			ias, err := initactor.Load(cctx.Context, store, st)
			if err != nil {
				return err
			}
			return ias.ForEachAddress(store, func(addr address.Address, id abi.ActorID) error {
				_, err := fmt.Fprintf(w, "%s\t%d\n", addr, id)
				return err
			})
		}

		addr, err := address.NewFromString(cctx.Args().First())
		if err != nil {
			return err
		}
		idAddr, found, err := st.LookupID(cctx.Context, addr)
		if err != nil {
			return err
		}
		if !found {
			return xerrors.Errorf("address %s is not mapped", addr)
		}
		_, _ = fmt.Fprintln(w, idAddr)
		return nil
	},
}

var actorCmd = &cli.Command{
	Name:      "actor",
	Usage:     "show the record of an actor",
	ArgsUsage: "<address>",
	Action: func(cctx *cli.Context) error {
		if cctx.NArg() != 1 {
			return xerrors.New("expected an address")
		}
		addr, err := address.NewFromString(cctx.Args().First())
		if err != nil {
			return err
		}

		e, err := openEnv(cctx)
		if err != nil {
			return err
		}
		defer e.close(cctx.Context)

		act, found, err := e.machine.Tree().GetActor(cctx.Context, addr)
		if err != nil {
			return err
		}
		if !found {
			return xerrors.Errorf("actor %s not found", addr)
		}

		kind, ok := builtin.ActorNameByCode(act.Code)
		if !ok {
			kind = "wasm"
		}

		w := cctx.App.Writer
		_, _ = fmt.Fprintf(w, "code:    %s (%s)\n", act.Code, kind)
		_, _ = fmt.Fprintf(w, "head:    %s\n", act.Head)
		_, _ = fmt.Fprintf(w, "nonce:   %d\n", act.Nonce)
		_, _ = fmt.Fprintf(w, "balance: %s\n", act.Balance)
		return nil
	},
}
