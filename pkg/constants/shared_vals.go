package constants

import (
	"github.com/filecoin-project/go-state-types/network"
	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

const TestNetworkVersion = network.Version16

// DefaultNetworkName is used when neither the config nor genesis names a network.
const DefaultNetworkName = "vmcore-localnet"

// BlockGasLimit is the maximum amount of gas a single top-level message may consume.
const BlockGasLimit = 10_000_000_000

// MaxCallDepth bounds the nesting of inter-actor sends within one call tree.
// Deep recursion also costs gas, this is the hard stop before the host stack does.
const MaxCallDepth = 4096

// DefaultModuleCacheSize is the number of compiled actor modules kept per machine.
const DefaultModuleCacheSize = 128

// MaxBlocksPerCall bounds the block registry of a single frame.
const MaxBlocksPerCall = 1024

// MaxBlockSize is the largest parameter, return or state block a frame may create.
const MaxBlockSize = 1 << 20

// DefaultCidBuilder is the cid builder used for state objects and linked blocks.
var DefaultCidBuilder = cid.V1Builder{Codec: cid.DagCBOR, MhType: multihash.BLAKE2B_MIN + 31}
