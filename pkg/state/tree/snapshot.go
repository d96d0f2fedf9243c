package tree

import (
	"github.com/filecoin-project/go-address"

	"github.com/filecoin-project/venus-vmcore/pkg/types"
)

type stateSnaps struct {
	layers []*stateSnapLayer
}

type stateSnapLayer struct {
	actors       map[address.Address]streeOp
	resolveCache map[address.Address]address.Address
}

func newStateSnapLayer() *stateSnapLayer {
	return &stateSnapLayer{
		actors:       make(map[address.Address]streeOp),
		resolveCache: make(map[address.Address]address.Address),
	}
}

type streeOp struct {
	Act    types.Actor
	Delete bool
}

func newStateSnaps() *stateSnaps {
	ss := &stateSnaps{}
	ss.addLayer()
	return ss
}

func (ss *stateSnaps) addLayer() {
	ss.layers = append(ss.layers, newStateSnapLayer())
}

func (ss *stateSnaps) dropLayer() {
	ss.layers[len(ss.layers)-1] = nil // allow it to be GCed
	ss.layers = ss.layers[:len(ss.layers)-1]
}

func (ss *stateSnaps) mergeLastLayer() {
	last := ss.layers[len(ss.layers)-1]
	nextLast := ss.layers[len(ss.layers)-2]

	for k, v := range last.actors {
		nextLast.actors[k] = v
	}

	for k, v := range last.resolveCache {
		nextLast.resolveCache[k] = v
	}

	ss.dropLayer()
}

func (ss *stateSnaps) resolveAddress(addr address.Address) (address.Address, bool) {
	for i := len(ss.layers) - 1; i >= 0; i-- {
		resa, ok := ss.layers[i].resolveCache[addr]
		if ok {
			return resa, true
		}
	}
	return address.Undef, false
}

func (ss *stateSnaps) cacheResolveAddress(addr, resa address.Address) {
	ss.layers[len(ss.layers)-1].resolveCache[addr] = resa
}

// getActor returns the pending record of addr. deleted is true when the
// actor was removed in a layer above the flushed state.
func (ss *stateSnaps) getActor(addr address.Address) (act *types.Actor, deleted bool) {
	for i := len(ss.layers) - 1; i >= 0; i-- {
		op, ok := ss.layers[i].actors[addr]
		if ok {
			if op.Delete {
				return nil, true
			}
			return op.Act.Copy(), false
		}
	}
	return nil, false
}

func (ss *stateSnaps) setActor(addr address.Address, act *types.Actor) {
	ss.layers[len(ss.layers)-1].actors[addr] = streeOp{Act: *act.Copy()}
}

func (ss *stateSnaps) deleteActor(addr address.Address) {
	ss.layers[len(ss.layers)-1].actors[addr] = streeOp{Delete: true}
}

// pending collapses all layers into the effective set of changes.
func (ss *stateSnaps) pending() map[address.Address]streeOp {
	out := make(map[address.Address]streeOp)
	for i := len(ss.layers) - 1; i >= 0; i-- {
		for k, v := range ss.layers[i].actors {
			if _, ok := out[k]; !ok {
				out[k] = v
			}
		}
	}
	return out
}
