package dispatch

import (
	"bytes"
	"reflect"

	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/cbor"
	"github.com/ipfs/go-cid"

	"github.com/filecoin-project/venus-vmcore/pkg/vm/vmerrors"
)

// Actor is the interface all native actors have to implement.
type Actor interface {
	// Exports has a list of method available on the actor, indexed by method number.
	Exports() []interface{}
	// Code returns the code ID for this actor.
	Code() cid.Cid

	// State returns a new State object for this actor. This can be used to
	// decode the actor's state.
	State() cbor.Er
}

// Dispatcher allows for dynamic method dispatching on an actor.
type Dispatcher interface {
	// Dispatch will call the given method on the actor and pass the arguments.
	//
	// - The `ctx` argument will be coerced to the type the method expects in its first argument.
	// - `params` is decoded into the type of the second argument of the target method.
	Dispatch(method abi.MethodNum, ctx interface{}, params []byte) ([]byte, error)
	// Signature is a helper function that returns the signature for a given method.
	//
	// Note: This is intended to be used by tests and tools.
	Signature(method abi.MethodNum) (MethodSignature, error)
}

type actorDispatcher struct {
	code  cid.Cid
	actor Actor
}

var _ Dispatcher = (*actorDispatcher)(nil)

// Dispatch implements `Dispatcher`.
func (d *actorDispatcher) Dispatch(methodNum abi.MethodNum, ctx interface{}, params []byte) ([]byte, error) {
	// get method signature
	m, err := d.signature(methodNum)
	if err != nil {
		return nil, err
	}

	// build args to pass to the method
	args := []reflect.Value{
		// the ctx will be automatically coerced
		reflect.ValueOf(ctx),
	}

	if m.NumIn() > 1 {
		obj, err := m.ArgInterface(params)
		if err != nil {
			return nil, vmerrors.Wrapf(vmerrors.SerializationError, err, "failed to decode params for method %d", methodNum)
		}
		args = append(args, reflect.ValueOf(obj))
	}

	// invoke the method
	out := m.method.Call(args)

	if len(out) == 2 && !out[1].IsNil() {
		return nil, out[1].Interface().(error)
	}

	// method returns unit
	// Note: we need to check for `IsNil()` here because Go doesnt work if you do `== nil` on the interface
	if len(out) == 0 || (out[0].Kind() != reflect.Struct && out[0].IsNil()) {
		return nil, nil
	}

	switch ret := out[0].Interface().(type) {
	case []byte:
		return ret, nil
	case *abi.EmptyValue:
		return nil, nil
	case cbor.Marshaler:
		buf := new(bytes.Buffer)
		if err := ret.MarshalCBOR(buf); err != nil {
			return nil, vmerrors.Wrap(vmerrors.SerializationError, err, "failed to marshal response to cbor")
		}
		return buf.Bytes(), nil
	default:
		return nil, vmerrors.Newf(vmerrors.SerializationError, "could not determine type for response from method %d", methodNum)
	}
}

func (d *actorDispatcher) signature(methodID abi.MethodNum) (*methodSignature, error) {
	exports := d.actor.Exports()

	// get method entry
	methodIdx := (uint64)(methodID)
	if uint64(len(exports)) <= methodIdx {
		return nil, vmerrors.Newf(vmerrors.ExecutionFault, "method undefined. method: %d, code: %s", methodID, d.code)
	}
	entry := exports[methodIdx]
	if entry == nil {
		return nil, vmerrors.Newf(vmerrors.ExecutionFault, "method undefined. method: %d, code: %s", methodID, d.code)
	}

	ventry := reflect.ValueOf(entry)
	if ventry.Kind() != reflect.Func {
		return nil, vmerrors.Newf(vmerrors.ExecutionFault, "export %d of %s is not a method", methodID, d.code)
	}
	return &methodSignature{method: ventry}, nil
}

// Signature implements `Dispatcher`.
func (d *actorDispatcher) Signature(methodNum abi.MethodNum) (MethodSignature, error) {
	return d.signature(methodNum)
}
