package main

import (
	"fmt"
	"strings"

	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/big"
	"github.com/urfave/cli/v2"
	"golang.org/x/xerrors"

	"github.com/filecoin-project/venus-vmcore/pkg/config"
	"github.com/filecoin-project/venus-vmcore/pkg/constants"
	"github.com/filecoin-project/venus-vmcore/pkg/gen/genesis"
	"github.com/filecoin-project/venus-vmcore/pkg/repo"
)

var initCmd = &cli.Command{
	Name:  "init",
	Usage: "initialize a repo and write the genesis state",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "network",
			Value: constants.DefaultNetworkName,
			Usage: "name of the network",
		},
		&cli.StringFlag{
			Name:  "datastore",
			Value: "badgerds",
			Usage: "datastore type, badgerds or memory",
		},
		&cli.StringSliceFlag{
			Name:  "account",
			Usage: "pre-funded account as <address>:<attoFIL>, may be repeated",
		},
		&cli.BoolFlag{
			Name:  "disable-wasm",
			Usage: "only run native actors",
		},
	},
	Action: func(cctx *cli.Context) error {
		accounts, err := parseAccounts(cctx.StringSlice("account"))
		if err != nil {
			return err
		}

		cfg := config.NewDefaultConfig()
		cfg.VM.NetworkName = cctx.String("network")
		cfg.VM.EnableWasm = !cctx.Bool("disable-wasm")
		cfg.Datastore.Type = cctx.String("datastore")

		path := cctx.String("repo")
		if err := repo.InitFSRepo(path, cfg); err != nil {
			return err
		}
		r, err := repo.OpenFSRepo(path)
		if err != nil {
			return err
		}
		defer r.Close() // nolint: errcheck

		eng, err := newEngine(cctx.Context, cfg.VM)
		if err != nil {
			return err
		}
		defer eng.Close(cctx.Context) // nolint: errcheck

		root, err := genesis.MakeGenesisState(cctx.Context, r.Blockstore(), eng, genesis.Template{
			NetworkName: cfg.VM.NetworkName,
			Accounts:    accounts,
		})
		if err != nil {
			return err
		}
		if err := r.SetHead(cctx.Context, root); err != nil {
			return err
		}

		_, _ = fmt.Fprintf(cctx.App.Writer, "initialized %s with genesis state %s\n", path, root)
		return nil
	},
}

func parseAccounts(values []string) ([]genesis.Actor, error) {
	out := make([]genesis.Actor, 0, len(values))
	for _, s := range values {
		parts := strings.SplitN(s, ":", 2)
		if len(parts) != 2 {
			return nil, xerrors.Errorf("malformed account %q, expected <address>:<balance>", s)
		}
		addr, err := address.NewFromString(parts[0])
		if err != nil {
			return nil, xerrors.Errorf("account %q: %w", s, err)
		}
		balance, err := big.FromString(parts[1])
		if err != nil {
			return nil, xerrors.Errorf("account %q: %w", s, err)
		}
		out = append(out, genesis.Actor{Address: addr, Balance: balance})
	}
	return out, nil
}
