package repo

import (
	"context"
	"sync"

	"github.com/ipfs/go-cid"
	"github.com/ipfs/go-datastore"
	dss "github.com/ipfs/go-datastore/sync"
	blockstore "github.com/ipfs/go-ipfs-blockstore"

	"github.com/filecoin-project/venus-vmcore/pkg/config"
)

// MemRepo is an in-memory implementation of the repo interface.
type MemRepo struct {
	// lk guards the config
	lk sync.RWMutex
	C  *config.Config
	D  Datastore
	bs blockstore.Blockstore
}

var _ Repo = (*MemRepo)(nil)

// NewInMemoryRepo makes a new instance of MemRepo
func NewInMemoryRepo() *MemRepo {
	defConfig := config.NewDefaultConfig()
	defConfig.Datastore.Type = "memory"
	return newMemRepo(defConfig, dss.MutexWrap(datastore.NewMapDatastore()))
}

func newMemRepo(cfg *config.Config, ds Datastore) *MemRepo {
	return &MemRepo{
		C:  cfg,
		D:  ds,
		bs: blockstore.NewBlockstore(ds),
	}
}

// Config returns the configuration object.
func (mr *MemRepo) Config() *config.Config {
	mr.lk.RLock()
	defer mr.lk.RUnlock()

	return mr.C
}

// ReplaceConfig replaces the current config with the newly passed in one.
func (mr *MemRepo) ReplaceConfig(cfg *config.Config) error {
	mr.lk.Lock()
	defer mr.lk.Unlock()

	mr.C = cfg

	return nil
}

// Datastore returns the datastore.
func (mr *MemRepo) Datastore() Datastore {
	return mr.D
}

// Blockstore returns the blockstore.
func (mr *MemRepo) Blockstore() blockstore.Blockstore {
	return mr.bs
}

func (mr *MemRepo) Head(ctx context.Context) (cid.Cid, error) {
	return loadHead(ctx, mr.D)
}

func (mr *MemRepo) SetHead(ctx context.Context, root cid.Cid) error {
	return storeHead(ctx, mr.D, root)
}

// Version returns the version of the repo.
func (mr *MemRepo) Version() uint {
	return Version
}

// Path returns an empty path, the repo lives in memory.
func (mr *MemRepo) Path() (string, error) {
	return "", nil
}

// Close is a noop.
func (mr *MemRepo) Close() error {
	return nil
}
