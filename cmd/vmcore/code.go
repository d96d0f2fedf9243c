package main

import (
	"fmt"
	"os"

	"github.com/filecoin-project/go-state-types/big"
	"github.com/ipfs/go-cid"
	"github.com/urfave/cli/v2"
	"golang.org/x/xerrors"

	"github.com/filecoin-project/venus-vmcore/pkg/gen/genesis"
)

var installCodeCmd = &cli.Command{
	Name:      "install-code",
	Usage:     "compile a wasm module and store it as actor code",
	ArgsUsage: "<module.wasm>",
	Action: func(cctx *cli.Context) error {
		if cctx.NArg() != 1 {
			return xerrors.New("expected the path of a wasm module")
		}
		code, err := os.ReadFile(cctx.Args().First())
		if err != nil {
			return err
		}

		e, err := openEnv(cctx)
		if err != nil {
			return err
		}
		defer e.close(cctx.Context)

		c, err := e.machine.InstallCode(cctx.Context, code)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(cctx.App.Writer, c)
		return nil
	},
}

var createActorCmd = &cli.Command{
	Name:  "create-actor",
	Usage: "create an actor running installed code",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "code",
			Usage:    "code CID printed by install-code",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "balance",
			Value: "0",
			Usage: "initial balance in attoFIL",
		},
		&cli.StringFlag{
			Name:     "seed",
			Usage:    "seed of the actor address",
			Required: true,
		},
	},
	Action: func(cctx *cli.Context) error {
		code, err := cid.Decode(cctx.String("code"))
		if err != nil {
			return xerrors.Errorf("parsing code cid: %w", err)
		}
		balance, err := big.FromString(cctx.String("balance"))
		if err != nil {
			return xerrors.Errorf("parsing balance: %w", err)
		}

		e, err := openEnv(cctx)
		if err != nil {
			return err
		}
		defer e.close(cctx.Context)

		if has, err := e.machine.Blockstore().Has(cctx.Context, code); err != nil {
			return err
		} else if !has {
			return xerrors.Errorf("code %s is not installed", code)
		}

		addr, id, err := genesis.InstallActor(cctx.Context, e.machine.Tree(), code, balance, []byte(cctx.String("seed")))
		if err != nil {
			return err
		}
		root, err := e.commit(cctx.Context)
		if err != nil {
			return err
		}

		_, _ = fmt.Fprintf(cctx.App.Writer, "created actor %s with id %d, state %s\n", addr, id, root)
		return nil
	},
}
