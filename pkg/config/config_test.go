package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filecoin-project/venus-vmcore/pkg/constants"
	tf "github.com/filecoin-project/venus-vmcore/pkg/testhelpers/testflags"
)

func TestDefaults(t *testing.T) {
	tf.UnitTest(t)

	cfg := NewDefaultConfig()

	assert.Equal(t, constants.DefaultNetworkName, cfg.VM.NetworkName)
	assert.Equal(t, int64(constants.BlockGasLimit), cfg.VM.GasLimit)
	assert.Equal(t, constants.MaxCallDepth, cfg.VM.MaxCallDepth)
	assert.True(t, cfg.VM.EnableWasm)
	assert.Equal(t, "badgerds", cfg.Datastore.Type)
	assert.NoError(t, cfg.Validate())

	mctx := cfg.VM.MachineContext()
	assert.Equal(t, constants.DefaultNetworkName, mctx.NetworkName)
	assert.Equal(t, constants.MaxCallDepth, mctx.MaxCallDepth)
	assert.NotNil(t, mctx.Pricelist)
}

func TestConfigRoundtrip(t *testing.T) {
	tf.UnitTest(t)

	cfg := NewDefaultConfig()
	cfg.VM.NetworkName = "roundtrip"
	cfg.Datastore.Type = "memory"

	cfgpath := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, cfg.WriteFile(cfgpath))

	cfgout, err := ReadFile(cfgpath)
	require.NoError(t, err)
	assert.Equal(t, cfg, cfgout)

	// rewriting a shorter config must not leave a tail behind
	cfg.VM.NetworkName = "rt"
	require.NoError(t, cfg.WriteFile(cfgpath))
	cfgout, err = ReadFile(cfgpath)
	require.NoError(t, err)
	assert.Equal(t, "rt", cfgout.VM.NetworkName)
}

func TestConfigReadFileDefaults(t *testing.T) {
	tf.UnitTest(t)

	t.Run("partial section", func(t *testing.T) {
		cfgpath := createConfigFile(t, `
[vm]
  networkName = "partial"
  maxCallDepth = 16
`)
		cfg, err := ReadFile(cfgpath)
		require.NoError(t, err)

		assert.Equal(t, "partial", cfg.VM.NetworkName)
		assert.Equal(t, 16, cfg.VM.MaxCallDepth)
		assert.Equal(t, int64(constants.BlockGasLimit), cfg.VM.GasLimit)
		assert.Equal(t, "badgerds", cfg.Datastore.Type)
	})

	t.Run("empty file", func(t *testing.T) {
		cfg, err := ReadFile(createConfigFile(t, ""))
		require.NoError(t, err)
		assert.Equal(t, NewDefaultConfig(), cfg)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := ReadFile(createConfigFile(t, "[vm\nnope"))
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := ReadFile(filepath.Join(t.TempDir(), "nope.toml"))
		assert.True(t, os.IsNotExist(err))
	})
}

func TestValidate(t *testing.T) {
	tf.UnitTest(t)

	for name, mutate := range map[string]func(*Config){
		"empty network":  func(c *Config) { c.VM.NetworkName = "" },
		"zero gas":       func(c *Config) { c.VM.GasLimit = 0 },
		"too much gas":   func(c *Config) { c.VM.GasLimit = constants.BlockGasLimit + 1 },
		"zero depth":     func(c *Config) { c.VM.MaxCallDepth = 0 },
		"zero cache":     func(c *Config) { c.VM.ModuleCacheSize = 0 },
		"unknown dstore": func(c *Config) { c.Datastore.Type = "leveldb" },
	} {
		cfg := NewDefaultConfig()
		mutate(cfg)
		assert.Error(t, cfg.Validate(), name)
	}
}

func TestConfigGet(t *testing.T) {
	tf.UnitTest(t)

	cfg := NewDefaultConfig()

	out, err := cfg.Get("vm.networkName")
	require.NoError(t, err)
	assert.Equal(t, cfg.VM.NetworkName, out)

	out, err = cfg.Get("datastore")
	require.NoError(t, err)
	assert.Equal(t, cfg.Datastore, out)

	for _, key := range []string{"vm.", ".vm", "invalidfield", "vm.networkName.toomuch", "network-name"} {
		_, err := cfg.Get(key)
		assert.Error(t, err, key)
	}
}

func TestConfigSet(t *testing.T) {
	tf.UnitTest(t)

	t.Run("set leaf values", func(t *testing.T) {
		cfg := NewDefaultConfig()

		_, err := cfg.Set("vm.networkName", `"setnet"`)
		require.NoError(t, err)
		assert.Equal(t, "setnet", cfg.VM.NetworkName)

		_, err = cfg.Set("vm.maxCallDepth", `32`)
		require.NoError(t, err)
		assert.Equal(t, 32, cfg.VM.MaxCallDepth)
		// neighbours are left alone
		assert.Equal(t, "setnet", cfg.VM.NetworkName)

		_, err = cfg.Set("vm.enableWasm", `false`)
		require.NoError(t, err)
		assert.False(t, cfg.VM.EnableWasm)
	})

	t.Run("set table value", func(t *testing.T) {
		cfg := NewDefaultConfig()

		_, err := cfg.Set("datastore", `{type = "memory", path = "mushroom"}`)
		require.NoError(t, err)
		assert.Equal(t, "memory", cfg.Datastore.Type)
		assert.Equal(t, "mushroom", cfg.Datastore.Path)

		_, err = cfg.Set("log", "level = \"debug\"")
		require.NoError(t, err)
		assert.Equal(t, "debug", cfg.Log.Level)
	})

	t.Run("invalid set", func(t *testing.T) {
		cfg := NewDefaultConfig()

		_, err := cfg.Set("datastore.nope", `"fake key"`)
		assert.Error(t, err)

		_, err = cfg.Set("vm.gasLimit", `"not a number"`)
		assert.Error(t, err)

		_, err = cfg.Set("datastore", "{type = \"memory\",\npath = \"x\"}")
		assert.Error(t, err)

		_, err = cfg.Set("vm", `"strings aren't structs"`)
		assert.Error(t, err)
	})
}

func createConfigFile(t *testing.T, content string) string {
	cfgpath := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(cfgpath, []byte(content), 0644))
	return cfgpath
}
