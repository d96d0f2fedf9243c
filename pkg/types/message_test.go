package types

import (
	"testing"

	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tf "github.com/filecoin-project/venus-vmcore/pkg/testhelpers/testflags"
)

func newTestMessage(t *testing.T) *Message {
	from, err := address.NewSecp256k1Address([]byte("from"))
	require.NoError(t, err)
	to, err := address.NewIDAddress(1000)
	require.NoError(t, err)
	return NewMessage(from, to, 3, abi.NewTokenAmount(42), 2, []byte{0x80})
}

func TestMessageEncoding(t *testing.T) {
	tf.UnitTest(t)

	msg := newTestMessage(t)
	msg.GasLimit = 1000
	raw, err := msg.Marshal()
	require.NoError(t, err)

	decoded, err := DecodeMessage(raw)
	require.NoError(t, err)
	assert.True(t, msg.Equals(decoded))

	c1, err := msg.Cid()
	require.NoError(t, err)
	c2, err := decoded.Cid()
	require.NoError(t, err)
	assert.Equal(t, c1, c2)

	decoded.Nonce++
	c3, err := decoded.Cid()
	require.NoError(t, err)
	assert.NotEqual(t, c1, c3)

	msg.Version = 1
	raw, err = msg.Marshal()
	require.NoError(t, err)
	_, err = DecodeMessage(raw)
	assert.Error(t, err)
}

func TestMessageValidForExecution(t *testing.T) {
	tf.UnitTest(t)

	assert.NoError(t, newTestMessage(t).ValidForExecution())

	msg := newTestMessage(t)
	msg.To = address.Undef
	assert.Error(t, msg.ValidForExecution())

	msg = newTestMessage(t)
	msg.Value = abi.NewTokenAmount(-1)
	assert.Error(t, msg.ValidForExecution())

	msg = newTestMessage(t)
	msg.GasLimit = 0
	assert.Error(t, msg.ValidForExecution())
}
