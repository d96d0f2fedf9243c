package register

import (
	"sync"

	"github.com/filecoin-project/venus-vmcore/pkg/vm/builtin/account"
	"github.com/filecoin-project/venus-vmcore/pkg/vm/builtin/system"
	"github.com/filecoin-project/venus-vmcore/pkg/vm/dispatch"
	"github.com/filecoin-project/venus-vmcore/pkg/vm/initactor"
)

// DefaultActorBuilder holds the native actors that ship with the VM.
// Tests may add their own before the first call to GetDefaultActors.
var DefaultActorBuilder = dispatch.NewBuilder()
var loadOnce sync.Once
var defaultActors dispatch.CodeLoader

// BuiltinActors lists the native singletons and the account actor.
func BuiltinActors() []dispatch.Actor {
	return []dispatch.Actor{
		system.Actor{},
		initactor.Actor{},
		account.Actor{},
	}
}

func GetDefaultActors() *dispatch.CodeLoader {
	loadOnce.Do(func() {
		DefaultActorBuilder.AddMany(BuiltinActors()...)
		defaultActors = DefaultActorBuilder.Build()
	})

	return &defaultActors
}
