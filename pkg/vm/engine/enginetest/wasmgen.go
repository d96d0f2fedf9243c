package enginetest

import (
	"bytes"
)

// Value types.
const (
	I32 byte = 0x7f
	I64 byte = 0x7e
)

var wasmHeader = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

// Import is a host function imported by a test module.
type Import struct {
	Module  string
	Name    string
	Params  []byte
	Results []byte
}

// Segment is data copied into linear memory at instantiation.
type Segment struct {
	Offset uint32
	Data   []byte
}

// ModuleSpec describes a module with one defined function of type
// (i32) -> i32, exported as "invoke" unless NoExport is set. Imported
// functions take indices 0..len(Imports)-1.
type ModuleSpec struct {
	Imports []Import
	// Pages of linear memory, none when zero.
	Pages uint32
	Data  []Segment
	// Locals are i32 locals declared after the parameter.
	Locals   uint32
	Body     []byte
	NoExport bool
}

// Encode assembles the binary module.
func (ms ModuleSpec) Encode() []byte {
	types := [][]byte{funcType([]byte{I32}, []byte{I32})}
	typeIndex := func(ft []byte) uint32 {
		for i, t := range types {
			if bytes.Equal(t, ft) {
				return uint32(i)
			}
		}
		types = append(types, ft)
		return uint32(len(types) - 1)
	}

	var imports [][]byte
	for _, imp := range ms.Imports {
		idx := typeIndex(funcType(imp.Params, imp.Results))
		imports = append(imports, concat(name(imp.Module), name(imp.Name), []byte{0x00}, uleb(uint64(idx))))
	}

	out := concat(wasmHeader, section(0x01, vec(types)))
	if len(imports) > 0 {
		out = append(out, section(0x02, vec(imports))...)
	}
	out = append(out, section(0x03, vec([][]byte{uleb(0)}))...)
	if ms.Pages > 0 {
		out = append(out, section(0x05, vec([][]byte{concat([]byte{0x00}, uleb(uint64(ms.Pages)))}))...)
	}
	if !ms.NoExport {
		entry := concat(name("invoke"), []byte{0x00}, uleb(uint64(len(ms.Imports))))
		out = append(out, section(0x07, vec([][]byte{entry}))...)
	}

	locals := vec(nil)
	if ms.Locals > 0 {
		locals = vec([][]byte{concat(uleb(uint64(ms.Locals)), []byte{I32})})
	}
	body := concat(locals, ms.Body, []byte{0x0b})
	out = append(out, section(0x0a, vec([][]byte{concat(uleb(uint64(len(body))), body)}))...)

	var segments [][]byte
	for _, seg := range ms.Data {
		if len(seg.Data) == 0 {
			continue
		}
		segments = append(segments, concat(
			[]byte{0x00},
			i32Const(int32(seg.Offset)), []byte{0x0b},
			uleb(uint64(len(seg.Data))), seg.Data,
		))
	}
	if len(segments) > 0 {
		out = append(out, section(0x0b, vec(segments))...)
	}
	return out
}

func funcType(params, results []byte) []byte {
	return concat([]byte{0x60}, uleb(uint64(len(params))), params, uleb(uint64(len(results))), results)
}

func section(id byte, payload []byte) []byte {
	return concat([]byte{id}, uleb(uint64(len(payload))), payload)
}

func vec(items [][]byte) []byte {
	return concat(append([][]byte{uleb(uint64(len(items)))}, items...)...)
}

func name(s string) []byte {
	return concat(uleb(uint64(len(s))), []byte(s))
}

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func uleb(v uint64) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			out = append(out, b|0x80)
			continue
		}
		return append(out, b)
	}
}

func sleb(v int64) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			return append(out, b)
		}
		out = append(out, b|0x80)
	}
}

// Instructions.

func localGet(i uint32) []byte { return concat([]byte{0x20}, uleb(uint64(i))) }
func localSet(i uint32) []byte { return concat([]byte{0x21}, uleb(uint64(i))) }
func call(i uint32) []byte     { return concat([]byte{0x10}, uleb(uint64(i))) }
func i32Const(v int32) []byte  { return concat([]byte{0x41}, sleb(int64(v))) }
func i64Const(v int64) []byte  { return concat([]byte{0x42}, sleb(v)) }

var (
	unreachable = []byte{0x00}
	i32WrapI64  = []byte{0xa7}
)
