package osc

import (
	"encoding/binary"
	"fmt"
	"maps"
	"math"
	"slices"
	"time"
)

// bundleTag is "#bundle" with its terminating null, already 8 bytes.
const bundleTag = "#bundle\x00"

// TimeTag is an OSC timetag: a "64-bit big-endian fixed-point time tag" with
// the same encoding used by NTP. The high 32 bits are seconds since 1900, the
// low 32 bits the fraction of a second.
type TimeTag uint64

// Immediate is the special time tag meaning "dispatch now".
const Immediate TimeTag = 1

// epoch is the starting point for TimeTags.
var epoch = time.Date(1900, time.January, 1, 0, 0, 0, 0, time.UTC)

// TimeTagFromTime converts a time to a TimeTag. Anything at or before the
// epoch becomes Immediate.
func TimeTagFromTime(t time.Time) TimeTag {
	seconds := t.Sub(epoch).Seconds()
	if seconds <= 0 {
		return Immediate
	}
	// The highest 4 bytes are the integer number of seconds and
	// the lowest four bytes are however much of the fractional part
	// fits in.
	const stepsPerSecond = float64(int64(1) << 32)
	base, frac := math.Modf(seconds)
	return TimeTag((uint64(base) << 32) + uint64(frac*stepsPerSecond))
}

// Time returns the time the tag represents. Immediate has no meaningful time
// and returns the zero time.
func (t TimeTag) Time() time.Time {
	if t == Immediate {
		return time.Time{}
	}
	seconds := float64(t >> 32)
	seconds += float64(t&0xffffffff) / float64(1<<32)
	return epoch.Add(time.Duration(seconds * float64(time.Second)))
}

func (t TimeTag) Append(b []byte) []byte {
	return binary.BigEndian.AppendUint64(b, uint64(t))
}

func (t TimeTag) String() string {
	if t == Immediate {
		return "TimeTag(immediate)"
	}
	return fmt.Sprintf("TimeTag(%v)", t.Time())
}

// Bundle groups messages that a receiver should treat as simultaneous.
type Bundle struct {
	// Time is when the receiver should dispatch the messages. The zero
	// value is encoded as Immediate.
	Time TimeTag
	// Messages are the bundle elements.
	Messages []Message
}

// NewBundle builds an immediate bundle with one single-argument message per
// entry. Entries are ordered by address so the encoding is stable.
func NewBundle(entries map[string]Argument) Bundle {
	b := Bundle{
		Time:     Immediate,
		Messages: make([]Message, 0, len(entries)),
	}
	for _, addr := range slices.Sorted(maps.Keys(entries)) {
		b.Messages = append(b.Messages, NewMessage(addr, entries[addr]))
	}
	return b
}

// Append encodes the bundle and appends it to the provided slice. Each
// element is prefixed with its big-endian int32 size. If any message fails to
// encode, or the bundle as a whole exceeds MaxPacketSize, b is returned
// unchanged along with the error.
func (bu Bundle) Append(b []byte) ([]byte, error) {
	start := len(b)
	b = append(b, bundleTag...)
	tt := bu.Time
	if tt == 0 {
		tt = Immediate
	}
	b = tt.Append(b)

	for i, m := range bu.Messages {
		// Reserve the size and fill it in once we know it.
		sizeAt := len(b)
		b = append(b, 0, 0, 0, 0)
		var err error
		b, err = m.Append(b)
		if err != nil {
			return b[:start], fmt.Errorf("bundle element %d: %w", i, err)
		}
		binary.BigEndian.PutUint32(b[sizeAt:], uint32(len(b)-sizeAt-4))
	}
	if n := len(b) - start; n > MaxPacketSize {
		return b[:start], fmt.Errorf("bundle of %d messages encodes to %d bytes, limit %d: %w", len(bu.Messages), n, MaxPacketSize, ErrOverflow)
	}
	return b, nil
}

// MarshalBinary returns the encoded bundle.
func (bu Bundle) MarshalBinary() ([]byte, error) {
	return bu.Append(nil)
}
