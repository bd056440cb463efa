package osc

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestAppendAddress(t *testing.T) {
	e := NewEndpoint(&stubConn{}, testPeer)
	for i, p := range []string{"/a", "/synth/freq", "/a"} {
		a, err := e.AppendAddress(p)
		if err != nil {
			t.Fatalf("AppendAddress(%q): %v", p, err)
		}
		if int(a) != i {
			t.Errorf("AppendAddress(%q) = %d, want %d", p, a, i)
		}
		if got, err := e.Pattern(a); err != nil || got != p {
			t.Errorf("Pattern(%d) = %q, %v, want %q", a, got, err, p)
		}
	}

	for _, c := range []struct {
		pattern string
		wantErr error
	}{
		{"/" + strings.Repeat("a", MaxAddressLength-1), ErrOverflow},
		{"/a\x00b", ErrUnsupportedType},
	} {
		if a, err := e.AppendAddress(c.pattern); !errors.Is(err, c.wantErr) {
			t.Errorf("AppendAddress(%q) = %d, %v, want %v", c.pattern, a, err, c.wantErr)
		}
	}
	if _, err := e.Pattern(3); !errors.Is(err, ErrNotAllocated) {
		t.Errorf("failed registrations took an Address: %v", err)
	}
}

func TestAppendAddressFull(t *testing.T) {
	e := NewEndpoint(&stubConn{}, testPeer)
	for i := 0; i < MaxAddresses; i++ {
		if _, err := e.AppendAddress(fmt.Sprintf("/ch/%d", i)); err != nil {
			t.Fatalf("AppendAddress #%d: %v", i, err)
		}
	}
	if _, err := e.AppendAddress("/one/more"); !errors.Is(err, ErrOverflow) {
		t.Errorf("AppendAddress past %d = %v, want ErrOverflow", MaxAddresses, err)
	}
}

func TestSendToMatchesSendByPattern(t *testing.T) {
	const pattern = "/synth/osc1/freq"
	for _, c := range []struct {
		name      string
		byPattern func(*Endpoint) (int, error)
		byAddress func(*Endpoint, Address) (int, error)
	}{{
		name:      "Int32",
		byPattern: func(e *Endpoint) (int, error) { return e.SendInt32(pattern, -12) },
		byAddress: func(e *Endpoint, a Address) (int, error) { return e.SendInt32To(a, -12) },
	}, {
		name:      "Float32",
		byPattern: func(e *Endpoint) (int, error) { return e.SendFloat32(pattern, 440) },
		byAddress: func(e *Endpoint, a Address) (int, error) { return e.SendFloat32To(a, 440) },
	}, {
		name:      "Floats",
		byPattern: func(e *Endpoint) (int, error) { return e.SendFloats(pattern, 1, 2) },
		byAddress: func(e *Endpoint, a Address) (int, error) { return e.SendFloatsTo(a, 1, 2) },
	}, {
		name:      "String",
		byPattern: func(e *Endpoint) (int, error) { return e.SendString(pattern, "saw") },
		byAddress: func(e *Endpoint, a Address) (int, error) { return e.SendStringTo(a, "saw") },
	}, {
		name:      "Blob",
		byPattern: func(e *Endpoint) (int, error) { return e.SendBlob(pattern, []byte{1, 2, 3, 4, 5}) },
		byAddress: func(e *Endpoint, a Address) (int, error) { return e.SendBlobTo(a, []byte{1, 2, 3, 4, 5}) },
	}, {
		name:      "Bool",
		byPattern: func(e *Endpoint) (int, error) { return e.SendBool(pattern, true) },
		byAddress: func(e *Endpoint, a Address) (int, error) { return e.SendBoolTo(a, true) },
	}, {
		name:      "False",
		byPattern: func(e *Endpoint) (int, error) { return e.SendFalse(pattern) },
		byAddress: func(e *Endpoint, a Address) (int, error) { return e.SendFalseTo(a) },
	}, {
		name:      "Value",
		byPattern: func(e *Endpoint) (int, error) { return e.SendValue(pattern, Int32(9)) },
		byAddress: func(e *Endpoint, a Address) (int, error) { return e.SendValueTo(a, Int32(9)) },
	}} {
		t.Run(c.name, func(t *testing.T) {
			wantConn := &stubConn{}
			wantN, err := c.byPattern(NewEndpoint(wantConn, testPeer))
			if err != nil {
				t.Fatal(err)
			}

			conn := &stubConn{}
			e := NewEndpoint(conn, testPeer)
			a, err := e.AppendAddress(pattern)
			if err != nil {
				t.Fatal(err)
			}
			n, err := c.byAddress(e, a)
			if err != nil {
				t.Fatal(err)
			}
			if n != wantN {
				t.Errorf("sent %d bytes, want %d", n, wantN)
			}
			if got, want := conn.received(), wantConn.received(); !bytes.Equal(got, want) {
				t.Errorf("sent % x, want % x", got, want)
			}
		})
	}
}

func TestSendToUnregistered(t *testing.T) {
	conn := &stubConn{}
	e := NewEndpoint(conn, testPeer)
	if _, err := e.AppendAddress("/a"); err != nil {
		t.Fatal(err)
	}
	for _, a := range []Address{-1, 1, MaxAddresses} {
		if n, err := e.SendInt32To(a, 1); !errors.Is(err, ErrNotAllocated) || n != 0 {
			t.Errorf("SendInt32To(%d) = %d, %v, want 0, ErrNotAllocated", a, n, err)
		}
	}
	if _, err := e.SendValueTo(0, nil); !errors.Is(err, ErrUnsupportedType) {
		t.Errorf("SendValueTo(nil) = %v, want ErrUnsupportedType", err)
	}
	if _, err := e.SendFloatsTo(0, make([]float32, MaxTypeTagLength)...); !errors.Is(err, ErrOverflow) {
		t.Errorf("SendFloatsTo with too many values = %v, want ErrOverflow", err)
	}
	if len(conn.writes) != 0 {
		t.Errorf("%d writes after failed sends, want 0", len(conn.writes))
	}

	e.Close()
	if _, err := e.SendTrueTo(0); !errors.Is(err, ErrNotAllocated) {
		t.Errorf("SendTrueTo after Close = %v, want ErrNotAllocated", err)
	}
	if _, err := e.AppendAddress("/b"); !errors.Is(err, ErrNotAllocated) {
		t.Errorf("AppendAddress after Close = %v, want ErrNotAllocated", err)
	}
}
