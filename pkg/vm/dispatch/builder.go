package dispatch

import (
	"github.com/ipfs/go-cid"

	"github.com/filecoin-project/venus-vmcore/pkg/vm/vmerrors"
)

// CodeLoader allows you to load an actor's code based on its id.
type CodeLoader struct {
	actors map[cid.Cid]Actor
}

// GetActorImpl returns the dispatcher for the actor with the given code.
func (cl CodeLoader) GetActorImpl(code cid.Cid) (Dispatcher, error) {
	actor, ok := cl.actors[code]
	if !ok {
		return nil, vmerrors.Newf(vmerrors.ExecutionFault, "no native actor for code %s", code)
	}
	return &actorDispatcher{code: code, actor: actor}, nil
}

// GetActor returns the actor registered for code.
func (cl CodeLoader) GetActor(code cid.Cid) (Actor, bool) {
	actor, ok := cl.actors[code]
	return actor, ok
}

// Codes lists the registered code CIDs.
func (cl CodeLoader) Codes() []cid.Cid {
	out := make([]cid.Cid, 0, len(cl.actors))
	for c := range cl.actors {
		out = append(out, c)
	}
	return out
}

// Builder helps you add actors to a CodeLoader.
type Builder struct {
	actors map[cid.Cid]Actor
}

// NewBuilder creates a builder to generate a CodeLoader.
func NewBuilder() *Builder {
	return &Builder{
		actors: make(map[cid.Cid]Actor),
	}
}

// Add lets you add an actor dispatch table for a given code.
func (b *Builder) Add(actor Actor) *Builder {
	b.actors[actor.Code()] = actor
	return b
}

// AddMany adds several actors.
func (b *Builder) AddMany(actors ...Actor) *Builder {
	for _, a := range actors {
		b.Add(a)
	}
	return b
}

// Build builds the code loader. The builder can keep being used afterwards.
func (b *Builder) Build() CodeLoader {
	actors := make(map[cid.Cid]Actor, len(b.actors))
	for c, a := range b.actors {
		actors[c] = a
	}
	return CodeLoader{actors: actors}
}
