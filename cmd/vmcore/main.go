package main

import (
	"fmt"
	"os"

	logging "github.com/ipfs/go-log/v2"
	"github.com/urfave/cli/v2"

	"github.com/filecoin-project/venus-vmcore/pkg/constants"
)

var log = logging.Logger("vmcore")

func main() {
	app := newApp()
	app.Setup()

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "ERR: %v\n", err) // nolint: errcheck
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:                 "vmcore",
		Usage:                "execute messages against an actor state tree",
		Version:              constants.UserVersion(),
		EnableBashCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "repo",
				Value:   "~/.vmcore",
				EnvVars: []string{"VMCORE_PATH"},
				Usage:   "path of the vmcore repo",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "log level of every vmcore logger, overrides the config",
			},
		},
		Before: func(cctx *cli.Context) error {
			if lvl := cctx.String("log-level"); lvl != "" {
				return logging.SetLogLevel("*", lvl)
			}
			return nil
		},
		Commands: []*cli.Command{
			initCmd,
			installCodeCmd,
			createActorCmd,
			sendCmd,
			resolveCmd,
			actorCmd,
		},
	}
}
