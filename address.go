package osc

import "fmt"

// MaxAddresses is the most address patterns one Endpoint can register.
const MaxAddresses = 1024

// Address is an address pattern registered on an Endpoint with
// AppendAddress. Its encoding is done once, at registration, and reused by
// every send through it.
type Address int

type registeredAddress struct {
	pattern string
	encoded []byte
}

// AppendAddress encodes pattern and registers it with e, returning the
// Address to send through. Addresses are numbered from 0 in registration
// order. Registering the same pattern twice yields two Addresses.
//
// The error wraps ErrOverflow if pattern is too long or e already holds
// MaxAddresses patterns.
func (e *Endpoint) AppendAddress(pattern string) (Address, error) {
	if err := e.usable(); err != nil {
		return -1, err
	}
	encoded, err := appendAddress(nil, pattern)
	if err != nil {
		return -1, err
	}
	e.addrMu.Lock()
	defer e.addrMu.Unlock()
	if len(e.addrs) >= MaxAddresses {
		return -1, fmt.Errorf("registering %q: %d addresses already registered: %w", pattern, MaxAddresses, ErrOverflow)
	}
	e.addrs = append(e.addrs, registeredAddress{pattern: pattern, encoded: encoded})
	return Address(len(e.addrs) - 1), nil
}

// Pattern returns the pattern a was registered with.
func (e *Endpoint) Pattern(a Address) (string, error) {
	ra, err := e.lookup(a)
	if err != nil {
		return "", err
	}
	return ra.pattern, nil
}

func (e *Endpoint) lookup(a Address) (registeredAddress, error) {
	if err := e.usable(); err != nil {
		return registeredAddress{}, err
	}
	e.addrMu.RLock()
	defer e.addrMu.RUnlock()
	if a < 0 || int(a) >= len(e.addrs) {
		return registeredAddress{}, fmt.Errorf("%w: address %d of %d", ErrNotAllocated, a, len(e.addrs))
	}
	return e.addrs[a], nil
}

// SendArgsTo sends args to the registered Address a. It returns an error
// wrapping ErrNotAllocated, and sends nothing, if a was not registered on e.
func (e *Endpoint) SendArgsTo(a Address, args ...Argument) (int, error) {
	ra, err := e.lookup(a)
	if err != nil {
		return 0, err
	}
	b := append(getBuf(), ra.encoded...)
	b, err = appendArguments(b, 0, ra.pattern, args)
	defer putBuf(b)
	if err != nil {
		return 0, err
	}
	return e.Send(b)
}

func (e *Endpoint) SendInt32To(a Address, v int32) (int, error) {
	return e.SendArgsTo(a, Int32(v))
}

func (e *Endpoint) SendFloat32To(a Address, v float32) (int, error) {
	return e.SendArgsTo(a, Float32(v))
}

// SendFloatsTo sends all of values to a in one message.
func (e *Endpoint) SendFloatsTo(a Address, values ...float32) (int, error) {
	return e.SendArgsTo(a, floats(values)...)
}

func (e *Endpoint) SendStringTo(a Address, v string) (int, error) {
	return e.SendArgsTo(a, String(v))
}

func (e *Endpoint) SendBlobTo(a Address, v []byte) (int, error) {
	return e.SendArgsTo(a, Blob(v))
}

func (e *Endpoint) SendTrueTo(a Address) (int, error) {
	return e.SendArgsTo(a, True{})
}

func (e *Endpoint) SendFalseTo(a Address) (int, error) {
	return e.SendArgsTo(a, False{})
}

func (e *Endpoint) SendBoolTo(a Address, v bool) (int, error) {
	if v {
		return e.SendTrueTo(a)
	}
	return e.SendFalseTo(a)
}

// SendValueTo is SendValue for a registered Address.
func (e *Endpoint) SendValueTo(a Address, v Argument) (int, error) {
	if v == nil {
		return 0, fmt.Errorf("%w: %T", ErrUnsupportedType, v)
	}
	return e.SendArgsTo(a, v)
}
