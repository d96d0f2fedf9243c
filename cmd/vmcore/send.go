package main

import (
	"encoding/hex"
	"fmt"

	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
	"github.com/urfave/cli/v2"
	"golang.org/x/xerrors"

	"github.com/filecoin-project/venus-vmcore/pkg/types"
	"github.com/filecoin-project/venus-vmcore/pkg/vm/executor"
)

var sendCmd = &cli.Command{
	Name:  "send",
	Usage: "apply a message and move the head to the resulting state",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "from",
			Usage:    "sending account",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "to",
			Usage:    "receiver, a key address is created as an account if missing",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "value",
			Value: "0",
			Usage: "value in attoFIL",
		},
		&cli.Uint64Flag{
			Name:  "method",
			Usage: "method number",
		},
		&cli.StringFlag{
			Name:  "params",
			Usage: "hex encoded parameters",
		},
		&cli.Int64Flag{
			Name:  "gas-limit",
			Usage: "gas limit, defaults to vm.gasLimit",
		},
		&cli.Int64Flag{
			Name:  "nonce",
			Value: -1,
			Usage: "message nonce, defaults to the sender's next nonce",
		},
		&cli.BoolFlag{
			Name:  "gas-trace",
			Usage: "print every gas charge, needs VENUS_VM_ENABLE_TRACING=1",
		},
	},
	Action: func(cctx *cli.Context) error {
		from, err := address.NewFromString(cctx.String("from"))
		if err != nil {
			return xerrors.Errorf("parsing from: %w", err)
		}
		to, err := address.NewFromString(cctx.String("to"))
		if err != nil {
			return xerrors.Errorf("parsing to: %w", err)
		}
		value, err := big.FromString(cctx.String("value"))
		if err != nil {
			return xerrors.Errorf("parsing value: %w", err)
		}
		params, err := hex.DecodeString(cctx.String("params"))
		if err != nil {
			return xerrors.Errorf("parsing params: %w", err)
		}

		e, err := openEnv(cctx)
		if err != nil {
			return err
		}
		defer e.close(cctx.Context)

		msg := types.NewMessage(from, to, 0, value, abi.MethodNum(cctx.Uint64("method")), params)
		msg.GasLimit = e.repo.Config().VM.GasLimit
		if cctx.IsSet("gas-limit") {
			msg.GasLimit = cctx.Int64("gas-limit")
		}
		if n := cctx.Int64("nonce"); n >= 0 {
			msg.Nonce = uint64(n)
		} else {
			act, found, err := e.machine.Tree().GetActor(cctx.Context, from)
			if err != nil {
				return err
			}
			if found {
				msg.Nonce = act.Nonce
			}
		}

		ret, err := executor.New(e.machine).ApplyMessage(cctx.Context, msg)
		if err != nil {
			return err
		}
		root, err := e.commit(cctx.Context)
		if err != nil {
			return err
		}

		mcid, err := msg.Cid()
		if err != nil {
			return err
		}

		w := cctx.App.Writer
		_, _ = fmt.Fprintf(w, "message %s\n", mcid)
		_, _ = fmt.Fprintf(w, "exit code: %d\n", ret.Receipt.ExitCode)
		_, _ = fmt.Fprintf(w, "gas used: %d\n", ret.Receipt.GasUsed)
		if len(ret.Receipt.ReturnValue) > 0 {
			_, _ = fmt.Fprintf(w, "return: %x\n", ret.Receipt.ReturnValue)
		}
		if ret.ActorErr != nil {
			_, _ = fmt.Fprintf(w, "error: %s\n", ret.ActorErr)
		}
		if cctx.Bool("gas-trace") {
			for _, gt := range ret.GasTrace.GasCharges {
				_, _ = fmt.Fprintf(w, "  %-24s total=%d compute=%d storage=%d\n", gt.Name, gt.TotalGas, gt.ComputeGas, gt.StorageGas)
			}
		}
		_, _ = fmt.Fprintf(w, "state: %s\n", root)
		return nil
	},
}
