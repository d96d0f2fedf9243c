package testhelpers

import (
	"fmt"
	"testing"

	"github.com/filecoin-project/go-address"
	"github.com/stretchr/testify/require"
)

// RequireIDAddress returns the ID address of i.
func RequireIDAddress(t *testing.T, i int) address.Address {
	a, err := address.NewIDAddress(uint64(i))
	require.NoError(t, err)
	return a
}

// NewForTestGetter returns a closure that returns a secp256k1 address unique to
// that invocation. The address is unique wrt the closure returned, not globally.
func NewForTestGetter() func() address.Address {
	i := 0
	return func() address.Address {
		s := fmt.Sprintf("address%d", i)
		i++
		newAddr, err := address.NewSecp256k1Address([]byte(s))
		if err != nil {
			panic(err)
		}
		return newAddr
	}
}

// NewBLSForTest returns a BLS address derived from seed. The key bytes are not
// a valid curve point, which does not matter to the VM.
func NewBLSForTest(t *testing.T, seed byte) address.Address {
	pub := make([]byte, address.BlsPublicKeyBytes)
	for i := range pub {
		pub[i] = seed + byte(i)
	}
	a, err := address.NewBLSAddress(pub)
	require.NoError(t, err)
	return a
}
