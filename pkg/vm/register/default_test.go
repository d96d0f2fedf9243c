package register

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tf "github.com/filecoin-project/venus-vmcore/pkg/testhelpers/testflags"
	"github.com/filecoin-project/venus-vmcore/pkg/vm/builtin"
)

func TestDefaultActors(t *testing.T) {
	tf.UnitTest(t)

	loader := GetDefaultActors()
	assert.Same(t, loader, GetDefaultActors())
	assert.Len(t, loader.Codes(), 3)

	for _, c := range loader.Codes() {
		_, err := loader.GetActorImpl(c)
		require.NoError(t, err)
	}
	_, ok := loader.GetActor(builtin.AccountActorCodeID)
	assert.True(t, ok)
	_, ok = loader.GetActor(builtin.InitActorCodeID)
	assert.True(t, ok)
	_, ok = loader.GetActor(builtin.SystemActorCodeID)
	assert.True(t, ok)
}
