package osc

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

// Encoding limits. They bound what Append will produce rather than any
// internal array, exceeding one is reported as ErrOverflow.
const (
	// MaxAddressLength is the largest encoded address pattern, including
	// its terminator and padding.
	MaxAddressLength = 128
	// MaxTypeTagLength is the largest encoded type tag string, including
	// the leading ',' and padding. It allows up to 62 arguments.
	MaxTypeTagLength = 64
	// MaxStringLength is the largest encoded string argument.
	MaxStringLength = 256
	// MaxBlobLength is the largest blob payload, not counting the size
	// prefix.
	MaxBlobLength = 256
	// MaxMessageSize is the largest single encoded message.
	MaxMessageSize = 1024
	// MaxPacketSize is the largest datagram, the most a UDP payload over
	// IPv4 can hold. It bounds bundles.
	MaxPacketSize = 65507
)

// AlignedLen returns n rounded up to the next multiple of 4. The result is
// never less than 4, an OSC string always has at least one terminating byte.
func AlignedLen(n int) int {
	if n <= 0 {
		return 4
	}
	return ((n-1)>>2)<<2 + 4
}

// pad appends zeros to b until the bytes written since start are a multiple
// of 4.
func pad(b []byte, start int) []byte {
	for (len(b)-start)%4 > 0 {
		b = append(b, 0)
	}
	return b
}

// Message represents an OSC message.
type Message struct {
	// Pattern is the address pattern, a string beginning with a "/".
	Pattern string
	// Arguments is the values.
	Arguments []Argument
}

// NewMessage returns a message for the pattern with the given arguments.
func NewMessage(pattern string, args ...Argument) Message {
	return Message{Pattern: pattern, Arguments: args}
}

// TypeTags returns the unpadded type tag string, e.g. ",if".
func (m Message) TypeTags() string {
	typeTag := make([]rune, 0, len(m.Arguments)+1)
	typeTag = append(typeTag, ',')
	for _, a := range m.Arguments {
		typeTag = append(typeTag, a.TypeTag())
	}
	return string(typeTag)
}

// Append encodes the message and appends it to the provided slice. If any
// part of the message exceeds its limit b is returned unchanged along with an
// error wrapping ErrOverflow.
func (m Message) Append(b []byte) ([]byte, error) {
	start := len(b)
	b, err := appendAddress(b, m.Pattern)
	if err != nil {
		return b[:start], err
	}
	return appendArguments(b, start, m.Pattern, m.Arguments)
}

// appendAddress appends the padded address pattern.
func appendAddress(b []byte, pattern string) ([]byte, error) {
	start := len(b)
	if strings.IndexByte(pattern, 0) >= 0 {
		return b, fmt.Errorf("address %q contains a NUL byte: %w", pattern, ErrUnsupportedType)
	}
	b = String(pattern).Append(b)
	if n := len(b) - start; n > MaxAddressLength {
		return b[:start], fmt.Errorf("address %q encodes to %d bytes, limit %d: %w", pattern, n, MaxAddressLength, ErrOverflow)
	}
	return b, nil
}

// appendArguments appends the type tag string and args to a message whose
// address already occupies b[start:].
func appendArguments(b []byte, start int, pattern string, args []Argument) ([]byte, error) {
	for i, a := range args {
		if a == nil {
			return b[:start], fmt.Errorf("argument %d is nil: %w", i, ErrUnsupportedType)
		}
	}
	tt := String(Message{Arguments: args}.TypeTags())
	mark := len(b)
	b = tt.Append(b)
	if n := len(b) - mark; n > MaxTypeTagLength {
		return b[:start], fmt.Errorf("type tag string for %d arguments encodes to %d bytes, limit %d: %w", len(args), n, MaxTypeTagLength, ErrOverflow)
	}

	for i, a := range args {
		if err := checkArgument(a); err != nil {
			return b[:start], fmt.Errorf("argument %d: %w", i, err)
		}
		b = a.Append(b)
	}
	if n := len(b) - start; n > MaxMessageSize {
		return b[:start], fmt.Errorf("message to %q encodes to %d bytes, limit %d: %w", pattern, n, MaxMessageSize, ErrOverflow)
	}
	return b, nil
}

// MarshalBinary returns the encoded message.
func (m Message) MarshalBinary() ([]byte, error) {
	return m.Append(nil)
}

func (m Message) String() string {
	var sb strings.Builder
	sb.WriteString(m.Pattern)
	sb.WriteByte(' ')
	sb.WriteString(m.TypeTags())
	for _, a := range m.Arguments {
		fmt.Fprintf(&sb, " %v", a)
	}
	return sb.String()
}

// checkArgument reports arguments that would not survive encoding: strings
// and blobs over their limits, and strings a receiver would cut short at an
// interior NUL.
func checkArgument(a Argument) error {
	switch a := a.(type) {
	case String:
		if strings.IndexByte(string(a), 0) >= 0 {
			return fmt.Errorf("string %q contains a NUL byte: %w", string(a), ErrUnsupportedType)
		}
		if n := AlignedLen(len(a) + 1); n > MaxStringLength {
			return fmt.Errorf("string encodes to %d bytes, limit %d: %w", n, MaxStringLength, ErrOverflow)
		}
	case Blob:
		if n := len(a); n > MaxBlobLength {
			return fmt.Errorf("blob of %d bytes, limit %d: %w", n, MaxBlobLength, ErrOverflow)
		}
	}
	return nil
}

// Argument represents an OSC value. The set of implementations is closed:
// Int32, Float32, String, Blob, True and False.
type Argument interface {
	// TypeTag must return the type tag of the argument, a single character.
	TypeTag() rune
	// Append appends the binary representation of the argument to the
	// provided byte slice.
	Append([]byte) []byte

	argument()
}

// Int32 is the OSC int32: a "32-bit big-endian two’s complement integer"
type Int32 int32

func (Int32) TypeTag() rune { return 'i' }
func (Int32) argument()     {}

func (i Int32) Append(b []byte) []byte {
	return binary.BigEndian.AppendUint32(b, uint32(i))
}

func (i Int32) String() string {
	return fmt.Sprintf("Int32(%d)", i)
}

// Float32 is a normal float32: "32-bit big-endian IEEE 754 floating point
// number"
type Float32 float32

func (Float32) TypeTag() rune { return 'f' }
func (Float32) argument()     {}

func (f Float32) Append(b []byte) []byte {
	return binary.BigEndian.AppendUint32(b, math.Float32bits(float32(f)))
}

func (f Float32) String() string {
	return fmt.Sprintf("Float32(%f)", f)
}

// String is an ASCII or UTF-8 string, on the wire it's null-terminated and
// padded for alignment.
type String string

func (String) TypeTag() rune { return 's' }
func (String) argument()     {}

func (s String) Append(b []byte) []byte {
	start := len(b)
	b = append(b, s...)
	// 0 pad at least once, at most 4 times until the total length is a
	// multiple of 4 bytes.
	b = append(b, 0)
	return pad(b, start)
}

func (s String) String() string {
	return fmt.Sprintf("String(%q)", string(s))
}

// Blob is arbitrary binary data. On the wire it's an int32 size followed by
// the bytes, padded for alignment.
type Blob []byte

func (Blob) TypeTag() rune { return 'b' }
func (Blob) argument()     {}

func (bl Blob) Append(b []byte) []byte {
	start := len(b)
	b = binary.BigEndian.AppendUint32(b, uint32(len(bl)))
	b = append(b, bl...)
	return pad(b, start)
}

func (bl Blob) String() string {
	return fmt.Sprintf("Blob(%d bytes)", len(bl))
}

/*
   Additional mandatory types from the OSC 1.1 NIME paper
   (https://ccrma.stanford.edu/groups/osc/files/2009-NIME-OSC-1.1.pdf)
*/

// True is a boolean true, it contains no data.
type True struct{}

func (True) TypeTag() rune          { return 'T' }
func (True) Append(b []byte) []byte { return b }
func (True) String() string         { return "True" }
func (True) argument()              {}

// False is a boolean false value, it contains no data.
type False struct{}

func (False) TypeTag() rune          { return 'F' }
func (False) Append(b []byte) []byte { return b }
func (False) String() string         { return "False" }
func (False) argument()              {}
