// package osc builds and sends Open Sound Control messages and bundles over
// UDP, per the OSC 1.0 spec (https://ccrma.stanford.edu/groups/osc/spec-1_0.html)
//
// Only the outbound path exists: values are encoded into padded, type-tagged
// datagrams and written to a resolved peer. See the dispatch package for the
// coalescing cache that rate-limits updates.
package osc

import (
	"sync"

	"golang.org/x/exp/constraints"
)

var bufPool = sync.Pool{
	New: func() any {
		b := make([]byte, 0, MaxMessageSize)
		return &b
	},
}

func getBuf() []byte {
	b := bufPool.Get().(*[]byte)
	return (*b)[:0]
}

func putBuf(b []byte) {
	// Bundles can grow a buffer well past the usual message size, don't
	// keep those around.
	if cap(b) > 4*MaxMessageSize {
		return
	}
	bufPool.Put(&b)
}

// AsString returns a String argument.
func AsString(s string) String {
	return String(s)
}

// AsInt32 converts any integer to an Int32 argument. Values outside the int32
// range wrap, as with a normal Go conversion.
func AsInt32[T constraints.Integer](i T) Int32 {
	return Int32(i)
}

// AsFloat32 converts any number to a Float32 argument.
func AsFloat32[T constraints.Integer | constraints.Float](n T) Float32 {
	return Float32(n)
}

// AsBool returns True or False.
func AsBool(b bool) Argument {
	if b {
		return True{}
	}
	return False{}
}
