package osc

import "errors"

var (
	// ErrResolve means the host or port of an Endpoint could not be
	// resolved to any address.
	ErrResolve = errors.New("osc: cannot resolve address")
	// ErrSocket means none of the resolved addresses yielded a usable
	// socket.
	ErrSocket = errors.New("osc: cannot open socket")
	// ErrNotAllocated is returned by operations on a nil or released
	// handle, or on an Address the Endpoint never registered.
	ErrNotAllocated = errors.New("osc: handle not allocated")
	// ErrSend wraps failures of the underlying datagram write.
	ErrSend = errors.New("osc: send failed")
	// ErrOverflow means a value or packet exceeds one of the encoding
	// limits.
	ErrOverflow = errors.New("osc: encoding limit exceeded")
	// ErrUnsupportedType is returned for values that cannot be encoded: a
	// nil Argument, or a string or address containing a NUL byte.
	ErrUnsupportedType = errors.New("osc: unsupported value type")
)
