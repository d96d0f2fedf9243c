package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"

	"github.com/filecoin-project/venus-vmcore/pkg/constants"
	"github.com/filecoin-project/venus-vmcore/pkg/vm/machine"
)

// Config is an in memory representation of the vmcore configuration file
type Config struct {
	VM        *VMConfig        `toml:"vm"`
	Datastore *DatastoreConfig `toml:"datastore"`
	Log       *LogConfig       `toml:"log"`
}

// VMConfig holds the options of the machine messages execute on.
type VMConfig struct {
	NetworkName     string `toml:"networkName"`
	GasLimit        int64  `toml:"gasLimit"`
	MaxCallDepth    int    `toml:"maxCallDepth"`
	ModuleCacheSize int    `toml:"moduleCacheSize"`
	EnableWasm      bool   `toml:"enableWasm"`
}

func newDefaultVMConfig() *VMConfig {
	return &VMConfig{
		NetworkName:     constants.DefaultNetworkName,
		GasLimit:        constants.BlockGasLimit,
		MaxCallDepth:    constants.MaxCallDepth,
		ModuleCacheSize: constants.DefaultModuleCacheSize,
		EnableWasm:      true,
	}
}

// MachineContext turns the vm section into the context of a new machine.
func (c *VMConfig) MachineContext() machine.MachineContext {
	mctx := machine.DefaultMachineContext(c.NetworkName)
	mctx.MaxCallDepth = c.MaxCallDepth
	mctx.ModuleCacheSize = c.ModuleCacheSize
	return mctx
}

// DatastoreConfig holds all the configuration options for the datastore.
type DatastoreConfig struct {
	Type string `toml:"type"`
	Path string `toml:"path"`
}

func newDefaultDatastoreConfig() *DatastoreConfig {
	return &DatastoreConfig{
		Type: "badgerds",
		Path: "badger",
	}
}

// LogConfig sets the level of every vmcore logger.
type LogConfig struct {
	Level string `toml:"level"`
}

func newDefaultLogConfig() *LogConfig {
	return &LogConfig{
		Level: "info",
	}
}

// NewDefaultConfig returns a config object with all the fields filled out to
// their default values
func NewDefaultConfig() *Config {
	return &Config{
		VM:        newDefaultVMConfig(),
		Datastore: newDefaultDatastoreConfig(),
		Log:       newDefaultLogConfig(),
	}
}

// Validate checks values a machine cannot run with.
func (cfg *Config) Validate() error {
	if cfg.VM.NetworkName == "" {
		return errors.New("vm.networkName must not be empty")
	}
	if cfg.VM.GasLimit <= 0 || cfg.VM.GasLimit > constants.BlockGasLimit {
		return errors.Errorf("vm.gasLimit must be in (0, %d]", constants.BlockGasLimit)
	}
	if cfg.VM.MaxCallDepth <= 0 {
		return errors.New("vm.maxCallDepth must be positive")
	}
	if cfg.VM.ModuleCacheSize <= 0 {
		return errors.New("vm.moduleCacheSize must be positive")
	}
	switch cfg.Datastore.Type {
	case "badgerds", "memory":
	default:
		return errors.Errorf("unknown datastore type %q", cfg.Datastore.Type)
	}
	return nil
}

// WriteFile writes the config to the given filepath.
func (cfg *Config) WriteFile(file string) error {
	f, err := os.OpenFile(file, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	if err := toml.NewEncoder(f).Encode(*cfg); err != nil {
		_ = f.Close()
		return err
	}

	return f.Close()
}

// ReadFile reads a config file from disk. Missing keys keep their defaults.
func ReadFile(file string) (*Config, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close() // nolint: errcheck

	cfg := NewDefaultConfig()
	if _, err := toml.DecodeReader(f, cfg); err != nil {
		return nil, errors.Wrapf(err, "decoding config %s", file)
	}

	return cfg, nil
}

// traverseConfig contains the shared traversal logic for getting and setting
// config values.  It uses reflection to find the sub-struct referenced by `key`
// and applies a processing function to the referenced struct
func (cfg *Config) traverseConfig(key string,
	f func(reflect.Value, string) (interface{}, error)) (interface{}, error) {
	v := reflect.Indirect(reflect.ValueOf(cfg))
	keyTags := strings.Split(key, ".")
OUTER:
	for j, keyTag := range keyTags {
		switch v.Type().Kind() {
		case reflect.Struct:
			for i := 0; i < v.NumField(); i++ {
				tomlTag := strings.Split(
					v.Type().Field(i).Tag.Get("toml"),
					",")[0]
				if tomlTag == keyTag {
					v = v.Field(i)
					if j == len(keyTags)-1 {
						return f(v, key)
					}
					v = reflect.Indirect(v) // only attempt one dereference
					continue OUTER
				}
			}
		case reflect.Array, reflect.Slice:
			i64, err := strconv.ParseUint(keyTag, 0, 0)
			if err != nil {
				return nil, fmt.Errorf("non-integer key into slice")
			}
			i := int(i64)
			if i > v.Len()-1 {
				return nil, fmt.Errorf("key into slice out of range")
			}
			v = v.Index(i)
			if j == len(keyTags)-1 {
				return f(v, key)
			}
			v = reflect.Indirect(v)
			continue OUTER
		}

		return nil, fmt.Errorf("key: %s invalid for config", key)
	}
	return nil, fmt.Errorf("empty key is invalid")
}

// prependKey includes the TOML key in the tomlVal blob. Tables get "[key]\n"
// prepended, everything else, inline tables included, gets "k = ".
func prependKey(tomlVal string, key string, fieldT reflect.Type) string {
	ks := strings.Split(key, ".")
	k := ks[len(ks)-1]
	fieldK := fieldT.Kind()
	if fieldK == reflect.Ptr {
		fieldK = fieldT.Elem().Kind()
	}

	if fieldK == reflect.Struct {
		tomlVal = strings.TrimSpace(tomlVal)
		if strings.HasPrefix(tomlVal, "{") {
			return fmt.Sprintf("%s=%s", k, tomlVal)
		}
		return fmt.Sprintf("[%s]\n%s", k, tomlVal)
	}
	return fmt.Sprintf("%s=%s", k, tomlVal)
}

// fieldToSet decodes tomlVal into a value of type fieldT.
func fieldToSet(key string, tomlVal string, fieldT reflect.Type) (reflect.Value, error) {
	tomlValKey := prependKey(tomlVal, key, fieldT)
	ks := strings.Split(key, ".")
	k := ks[len(ks)-1]

	field := reflect.StructField{
		Name: "Field",
		Type: fieldT,
		Tag:  reflect.StructTag("toml:" + "\"" + k + "\""),
	}
	recvT := reflect.StructOf([]reflect.StructField{field})
	valToRecv := reflect.New(recvT)

	if _, err := toml.Decode(tomlValKey, valToRecv.Interface()); err != nil {
		return valToRecv, errors.Wrapf(err, "input could not be marshaled to sub-config at: %s", key)
	}
	return valToRecv.Elem().Field(0), nil
}

// Set sets the config sub-struct referenced by `key`, e.g. 'vm.gasLimit'
// or 'datastore', to the toml value tomlVal.
func (cfg *Config) Set(key string, tomlVal string) (interface{}, error) {
	f := func(v reflect.Value, key string) (interface{}, error) {
		setT := v.Type()
		recvT := setT
		if setT.Kind() == reflect.Ptr {
			recvT = setT.Elem()
		}

		valToSet, err := fieldToSet(key, tomlVal, recvT)
		if err != nil {
			return nil, err
		}
		if setT.Kind() == reflect.Ptr {
			ptr := reflect.New(recvT)
			ptr.Elem().Set(valToSet)
			valToSet = ptr
		}

		v.Set(valToSet)
		return v.Interface(), nil
	}

	return cfg.traverseConfig(key, f)
}

// Get gets the config sub-struct referenced by `key`, e.g. 'vm.networkName'
func (cfg *Config) Get(key string) (interface{}, error) {
	f := func(v reflect.Value, key string) (interface{}, error) {
		return v.Interface(), nil
	}

	return cfg.traverseConfig(key, f)
}
