package enginetest

import (
	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"

	"github.com/filecoin-project/venus-vmcore/pkg/vm/engine"
)

// Wasm binaries used by engine and call manager tests.
var (
	// IdentityModule returns its parameter handle.
	IdentityModule = ModuleSpec{Body: localGet(0)}.Encode()

	// TrapModule executes `unreachable`.
	TrapModule = ModuleSpec{Body: unreachable}.Encode()

	// NoEntryModule defines the function but exports nothing.
	NoEntryModule = ModuleSpec{Body: localGet(0), NoExport: true}.Encode()

	// MethodNumberModule returns message.method_number() as its result handle.
	MethodNumberModule = scalarModule("method_number")

	// CallerModule returns message.caller() as its result handle.
	CallerModule = scalarModule("caller")

	// ReceiverModule returns message.receiver() as its result handle.
	ReceiverModule = scalarModule("receiver")

	// BlockStatModule returns ipld.block_stat(param), the size of the parameter block.
	BlockStatModule = ModuleSpec{
		Imports: []Import{{Module: "ipld", Name: "block_stat", Params: []byte{I32}, Results: []byte{I32}}},
		Body:    concat(localGet(0), call(0)),
	}.Encode()

	// EchoModule reads its parameters into memory and returns a copy.
	EchoModule = ReadParamsModule(1024)

	// ValueReceivedModule returns the encoded value it received as a raw block.
	ValueReceivedModule = ModuleSpec{
		Imports: []Import{
			{Module: "message", Name: "value_received", Params: []byte{I32, I32}, Results: []byte{I32}},
			blockCreateImport,
		},
		Pages:  1,
		Locals: 1,
		Body: concat(
			i32Const(0), i32Const(64), call(0), localSet(1),
			i64Const(int64(engine.CodecRaw)), i32Const(0), localGet(1), call(1),
		),
	}.Encode()

	// StateModule charges StateModuleGas, links its parameter block, makes it
	// the new state root, then opens the root and returns its handle.
	StateModule = ModuleSpec{
		Imports: []Import{
			{Module: "gas", Name: "charge", Params: []byte{I32, I32, I64}},
			{Module: "ipld", Name: "block_link", Params: []byte{I32, I32, I32}, Results: []byte{I32}},
			{Module: "self", Name: "set_root", Params: []byte{I32, I32}},
			{Module: "self", Name: "root", Params: []byte{I32, I32}, Results: []byte{I32}},
			{Module: "ipld", Name: "block_open", Params: []byte{I32, I32}, Results: []byte{I32}},
		},
		Pages:  1,
		Data:   []Segment{{Offset: 0, Data: []byte(stateChargeName)}},
		Locals: 1,
		Body: concat(
			i32Const(0), i32Const(int32(len(stateChargeName))), i64Const(StateModuleGas), call(0),
			localGet(0), i32Const(128), i32Const(64), call(1), localSet(1),
			i32Const(128), localGet(1), call(2),
			i32Const(256), i32Const(64), call(3), localSet(1),
			i32Const(256), localGet(1), call(4),
		),
	}.Encode()
)

// StateModuleGas is the gas StateModule charges for itself.
const StateModuleGas = 10

const stateChargeName = "OnStateModule"

var blockCreateImport = Import{Module: "ipld", Name: "block_create", Params: []byte{I64, I32, I32}, Results: []byte{I32}}

func scalarModule(fn string) []byte {
	return ModuleSpec{
		Imports: []Import{{Module: "message", Name: fn, Results: []byte{I64}}},
		Body:    concat(call(0), i32WrapI64),
	}.Encode()
}

// ReadParamsModule reads up to length bytes of its parameter block into
// memory with ipld.block_read and returns them as a new raw block. length
// may exceed the module's single page of memory.
func ReadParamsModule(length uint32) []byte {
	return ModuleSpec{
		Imports: []Import{
			{Module: "ipld", Name: "block_read", Params: []byte{I32, I32, I32, I32}, Results: []byte{I32}},
			blockCreateImport,
		},
		Pages:  1,
		Locals: 1,
		Body: concat(
			localGet(0), i32Const(0), i32Const(0), i32Const(int32(length)), call(0), localSet(1),
			i64Const(int64(engine.CodecRaw)), i32Const(0), localGet(1), call(1),
		),
	}.Encode()
}

// SendModule forwards its parameter handle to method of to with value
// attached and returns the handle of the reply.
func SendModule(to address.Address, method abi.MethodNum, value abi.TokenAmount) []byte {
	val, err := value.Bytes()
	if err != nil {
		panic(err)
	}
	toBytes := to.Bytes()
	return ModuleSpec{
		Imports: []Import{
			{Module: "send", Name: "send", Params: []byte{I32, I32, I64, I32, I32, I32}, Results: []byte{I32}},
		},
		Pages: 1,
		Data: []Segment{
			{Offset: 0, Data: toBytes},
			{Offset: 128, Data: val},
		},
		Body: concat(
			i32Const(0), i32Const(int32(len(toBytes))),
			i64Const(int64(method)),
			localGet(0),
			i32Const(128), i32Const(int32(len(val))),
			call(0),
		),
	}.Encode()
}
