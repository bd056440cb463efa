package osc

import "fmt"

// SendMessage encodes msg and sends it as one datagram.
func (e *Endpoint) SendMessage(msg Message) (int, error) {
	if err := e.usable(); err != nil {
		return 0, err
	}
	b, err := msg.Append(getBuf())
	defer putBuf(b)
	if err != nil {
		return 0, err
	}
	return e.Send(b)
}

// SendBundle encodes bu and sends it as one datagram.
func (e *Endpoint) SendBundle(bu Bundle) (int, error) {
	if err := e.usable(); err != nil {
		return 0, err
	}
	b, err := bu.Append(getBuf())
	defer putBuf(b)
	if err != nil {
		return 0, err
	}
	return e.Send(b)
}

// SendArgs builds a message to pattern from args and sends it.
func (e *Endpoint) SendArgs(pattern string, args ...Argument) (int, error) {
	return e.SendMessage(NewMessage(pattern, args...))
}

func (e *Endpoint) SendInt32(pattern string, v int32) (int, error) {
	return e.SendArgs(pattern, Int32(v))
}

func (e *Endpoint) SendFloat32(pattern string, v float32) (int, error) {
	return e.SendArgs(pattern, Float32(v))
}

// SendFloats sends all of values in one message, tagged ",fff...".
func (e *Endpoint) SendFloats(pattern string, values ...float32) (int, error) {
	return e.SendArgs(pattern, floats(values)...)
}

func floats(values []float32) []Argument {
	args := make([]Argument, len(values))
	for i, v := range values {
		args[i] = Float32(v)
	}
	return args
}

func (e *Endpoint) SendString(pattern, v string) (int, error) {
	return e.SendArgs(pattern, String(v))
}

func (e *Endpoint) SendBlob(pattern string, v []byte) (int, error) {
	return e.SendArgs(pattern, Blob(v))
}

// SendTrue sends a message whose only content is the type tag 'T'.
func (e *Endpoint) SendTrue(pattern string) (int, error) {
	return e.SendArgs(pattern, True{})
}

// SendFalse sends a message whose only content is the type tag 'F'.
func (e *Endpoint) SendFalse(pattern string) (int, error) {
	return e.SendArgs(pattern, False{})
}

func (e *Endpoint) SendBool(pattern string, v bool) (int, error) {
	if v {
		return e.SendTrue(pattern)
	}
	return e.SendFalse(pattern)
}

// SendValue sends v with the matching typed send. A nil v sends nothing and
// returns ErrUnsupportedType.
func (e *Endpoint) SendValue(pattern string, v Argument) (int, error) {
	switch v := v.(type) {
	case Int32:
		return e.SendInt32(pattern, int32(v))
	case Float32:
		return e.SendFloat32(pattern, float32(v))
	case String:
		return e.SendString(pattern, string(v))
	case Blob:
		return e.SendBlob(pattern, v)
	case True:
		return e.SendTrue(pattern)
	case False:
		return e.SendFalse(pattern)
	default:
		return 0, fmt.Errorf("%w: %T", ErrUnsupportedType, v)
	}
}
