package vmerrors

import "fmt"

// Fault is the panic value for VM invariant violations, such as touching a
// call manager whose execution context is lent to a kernel. A Fault is a bug
// in the VM, not a property of the message being executed.
type Fault struct {
	Msg string
}

func (f Fault) Error() string {
	return "vm fault: " + f.Msg
}

// Faultf panics with a Fault.
func Faultf(format string, args ...interface{}) {
	panic(Fault{Msg: fmt.Sprintf(format, args...)})
}

// IsFault reports whether a recovered panic value is a Fault.
func IsFault(r interface{}) bool {
	switch r.(type) {
	case Fault, *Fault:
		return true
	}
	return false
}
