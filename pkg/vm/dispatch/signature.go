package dispatch

import (
	"bytes"
	"reflect"

	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/cbor"
	"golang.org/x/xerrors"
)

// MethodSignature wraps a specific method and allows you to encode/decodes input/output bytes into concrete types.
type MethodSignature interface {
	// ArgNil returns a nil interface for the typed argument expected by the actor method.
	ArgNil() reflect.Value
	// ArgInterface returns the typed argument expected by the actor method, decoded from raw.
	ArgInterface(raw []byte) (interface{}, error)
	// NumIn is the number of method arguments including the runtime.
	NumIn() int
}

type methodSignature struct {
	method reflect.Value
}

var _ MethodSignature = (*methodSignature)(nil)

var emptyValueType = reflect.TypeOf(&abi.EmptyValue{})

func (ms *methodSignature) NumIn() int {
	return ms.method.Type().NumIn()
}

func (ms *methodSignature) ArgNil() reflect.Value {
	t := ms.method.Type().In(1)
	return reflect.New(t).Elem()
}

func (ms *methodSignature) ArgInterface(raw []byte) (interface{}, error) {
	t := ms.method.Type().In(1)
	if t.Kind() != reflect.Ptr {
		return nil, xerrors.Errorf("method parameter %s must be a pointer", t)
	}

	v := reflect.New(t.Elem())
	obj := v.Interface()

	if len(raw) == 0 && t == emptyValueType {
		return obj, nil
	}

	um, ok := obj.(cbor.Unmarshaler)
	if !ok {
		return nil, xerrors.Errorf("method parameter %s is not cbor unmarshalable", t)
	}
	if err := um.UnmarshalCBOR(bytes.NewReader(raw)); err != nil {
		return nil, err
	}
	return obj, nil
}
