package repo

import (
	"context"

	"github.com/ipfs/go-cid"
	"github.com/ipfs/go-datastore"
	blockstore "github.com/ipfs/go-ipfs-blockstore"
	"github.com/pkg/errors"

	"github.com/filecoin-project/venus-vmcore/pkg/config"
)

// Version is the version of the repo layout this package reads and writes.
const Version uint = 1

// headKey holds the state root the last command left behind.
var headKey = datastore.NewKey("/vmcore/head")

// ErrNoHead is returned before a genesis state has been written.
var ErrNoHead = errors.New("repo has no state head")

// Datastore is the datastore interface provided by the repo
type Datastore interface {
	datastore.Batching
}

// Repo is a representation of all persistent data of a vmcore instance.
type Repo interface {
	Config() *config.Config
	// ReplaceConfig replaces the current config, with the newly passed in one.
	ReplaceConfig(cfg *config.Config) error

	// Datastore holds the blocks and the head pointer.
	Datastore() Datastore
	// Blockstore is the blockstore of state and code blocks.
	Blockstore() blockstore.Blockstore

	// Head returns the current state root.
	Head(ctx context.Context) (cid.Cid, error)
	// SetHead records a new state root.
	SetHead(ctx context.Context, root cid.Cid) error

	// Version returns the current repo version.
	Version() uint

	// Path returns the repo path.
	Path() (string, error)

	// Close shuts down the repo.
	Close() error
}

func loadHead(ctx context.Context, ds datastore.Datastore) (cid.Cid, error) {
	raw, err := ds.Get(ctx, headKey)
	if err == datastore.ErrNotFound {
		return cid.Undef, ErrNoHead
	}
	if err != nil {
		return cid.Undef, errors.Wrap(err, "reading head")
	}
	c, err := cid.Cast(raw)
	if err != nil {
		return cid.Undef, errors.Wrap(err, "decoding head")
	}
	return c, nil
}

func storeHead(ctx context.Context, ds datastore.Datastore, root cid.Cid) error {
	if !root.Defined() {
		return errors.New("cannot set an undefined head")
	}
	if err := ds.Put(ctx, headKey, root.Bytes()); err != nil {
		return errors.Wrap(err, "writing head")
	}
	return ds.Sync(ctx, headKey)
}
