package main

import (
	"context"

	"github.com/ipfs/go-cid"
	logging "github.com/ipfs/go-log/v2"
	"github.com/urfave/cli/v2"
	"golang.org/x/xerrors"

	"github.com/filecoin-project/venus-vmcore/pkg/config"
	"github.com/filecoin-project/venus-vmcore/pkg/repo"
	"github.com/filecoin-project/venus-vmcore/pkg/vm/engine"
	"github.com/filecoin-project/venus-vmcore/pkg/vm/engine/native"
	"github.com/filecoin-project/venus-vmcore/pkg/vm/engine/wasm"
	"github.com/filecoin-project/venus-vmcore/pkg/vm/machine"
	"github.com/filecoin-project/venus-vmcore/pkg/vm/register"
)

// env is an opened repo with a machine on its head.
type env struct {
	repo    repo.Repo
	machine *machine.Machine
}

func newEngine(ctx context.Context, cfg *config.VMConfig) (engine.Engine, error) {
	nat := native.New(*register.GetDefaultActors())
	if !cfg.EnableWasm {
		return engine.NewRouter(nat, nil), nil
	}
	w, err := wasm.New(ctx)
	if err != nil {
		return nil, xerrors.Errorf("starting wasm engine: %w", err)
	}
	return engine.NewRouter(nat, w), nil
}

func openEnv(cctx *cli.Context) (*env, error) {
	r, err := repo.OpenFSRepo(cctx.String("repo"))
	if err != nil {
		return nil, err
	}
	cfg := r.Config()
	if !cctx.IsSet("log-level") {
		if err := logging.SetLogLevel("*", cfg.Log.Level); err != nil {
			log.Warnw("ignoring configured log level", "level", cfg.Log.Level, "err", err)
		}
	}

	head, err := r.Head(cctx.Context)
	if err != nil {
		_ = r.Close()
		return nil, err
	}
	m, err := newMachine(cctx.Context, r, head)
	if err != nil {
		_ = r.Close()
		return nil, err
	}
	return &env{repo: r, machine: m}, nil
}

func newMachine(ctx context.Context, r repo.Repo, root cid.Cid) (*machine.Machine, error) {
	eng, err := newEngine(ctx, r.Config().VM)
	if err != nil {
		return nil, err
	}
	return machine.New(ctx, r.Config().VM.MachineContext(), r.Blockstore(), root, eng)
}

// commit flushes the state tree and moves the repo head to the new root.
func (e *env) commit(ctx context.Context) (cid.Cid, error) {
	root, err := e.machine.Flush(ctx)
	if err != nil {
		return cid.Undef, err
	}
	if err := e.repo.SetHead(ctx, root); err != nil {
		return cid.Undef, err
	}
	log.Debugw("moved head", "root", root)
	return root, nil
}

func (e *env) close(ctx context.Context) {
	if err := e.machine.Close(ctx); err != nil {
		log.Warnw("closing machine", "err", err)
	}
	if err := e.repo.Close(); err != nil {
		log.Warnw("closing repo", "err", err)
	}
}
