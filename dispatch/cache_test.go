package dispatch

import (
	"fmt"
	"math/rand"
	"reflect"
	"testing"

	osc "github.com/pfcm/oscsend"
)

func entries(b osc.Bundle) map[string]osc.Argument {
	m := make(map[string]osc.Argument)
	for _, msg := range b.Messages {
		m[msg.Pattern] = msg.Arguments[0]
	}
	return m
}

func TestCacheReplace(t *testing.T) {
	c := NewCache(Replace)
	c.Set("/a", osc.Int32(1))
	c.Set("/a", osc.Int32(2))
	c.Set("/b", osc.String("x"))
	if n := c.Pending("/a"); n != 1 {
		t.Errorf("Pending(/a) = %d, want 1", n)
	}

	b := c.Take()
	want := map[string]osc.Argument{"/a": osc.Int32(2), "/b": osc.String("x")}
	if got := entries(b); !reflect.DeepEqual(got, want) {
		t.Errorf("first Take = %v, want %v", got, want)
	}
	if b.Time != osc.Immediate {
		t.Errorf("Take time tag = %v, want Immediate", b.Time)
	}
	if b := c.Take(); len(b.Messages) != 0 {
		t.Errorf("second Take = %v, want nothing", b.Messages)
	}

	// Drained addresses stay.
	if got := c.Addresses(); !reflect.DeepEqual(got, []string{"/a", "/b"}) {
		t.Errorf("Addresses() = %v", got)
	}
	c.Set("/a", osc.Int32(3))
	if got := entries(c.Take()); !reflect.DeepEqual(got, map[string]osc.Argument{"/a": osc.Int32(3)}) {
		t.Errorf("Take after re-arm = %v", got)
	}
}

func TestCacheAccumulate(t *testing.T) {
	c := NewCache(Accumulate)
	c.Set("/a", osc.Int32(1))
	c.Set("/a", osc.Int32(2))
	c.Set("/a", osc.Int32(3))
	c.Set("/b", osc.True{})
	if n := c.Pending("/a"); n != 3 {
		t.Errorf("Pending(/a) = %d, want 3", n)
	}

	for i, want := range []map[string]osc.Argument{
		{"/a": osc.Int32(1), "/b": osc.True{}},
		{"/a": osc.Int32(2)},
		{"/a": osc.Int32(3)},
		{},
	} {
		if got := entries(c.Take()); !reflect.DeepEqual(got, want) {
			t.Errorf("Take %d = %v, want %v", i, got, want)
		}
	}
}

func TestCacheOrder(t *testing.T) {
	for _, p := range []Policy{Replace, Accumulate} {
		c := NewCache(p)
		var order []string
		seen := map[string]bool{}
		for i := 0; i < 200; i++ {
			addr := fmt.Sprintf("/ch/%d", rand.Intn(40))
			if !seen[addr] {
				seen[addr] = true
				order = append(order, addr)
			}
			c.Set(addr, osc.Int32(i))
		}
		if got := c.Addresses(); !reflect.DeepEqual(got, order) {
			t.Errorf("%v: Addresses() = %v, want %v", p, got, order)
		}
		b := c.Take()
		if len(b.Messages) != len(order) {
			t.Fatalf("%v: Take returned %d messages, want %d", p, len(b.Messages), len(order))
		}
		for i, m := range b.Messages {
			if m.Pattern != order[i] {
				t.Errorf("%v: message %d is %q, want %q", p, i, m.Pattern, order[i])
			}
		}
	}
}

func TestCacheAccumulateFIFO(t *testing.T) {
	c := NewCache(Accumulate)
	const n = 100
	for i := 0; i < n; i++ {
		c.Set("/a", osc.Int32(i))
		if i%3 == 0 {
			c.Set("/b", osc.Int32(i))
		}
	}
	var gotA, gotB []osc.Argument
	for {
		b := c.Take()
		if len(b.Messages) == 0 {
			break
		}
		for _, m := range b.Messages {
			switch m.Pattern {
			case "/a":
				gotA = append(gotA, m.Arguments[0])
			case "/b":
				gotB = append(gotB, m.Arguments[0])
			}
		}
	}
	if len(gotA) != n {
		t.Fatalf("/a drained %d values, want %d", len(gotA), n)
	}
	for i, v := range gotA {
		if v != osc.Int32(i) {
			t.Fatalf("/a value %d = %v, want %d", i, v, i)
		}
	}
	for i, v := range gotB {
		if v != osc.Int32(3*i) {
			t.Fatalf("/b value %d = %v, want %d", i, v, 3*i)
		}
	}
}

func TestPolicyString(t *testing.T) {
	if Replace.String() != "replace" || Accumulate.String() != "accumulate" || Policy(9).String() != "unknown" {
		t.Errorf("Policy strings: %v %v %v", Replace, Accumulate, Policy(9))
	}
}
