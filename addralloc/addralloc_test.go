package addralloc

import (
	"testing"

	"github.com/ecconet/ecconet/token"
)

type fixedGUID [4]uint32

func (g fixedGUID) GetGUID() [4]uint32 { return g }

var scenarioAGUID = fixedGUID{0xEE4CAD97, 0x331CE9EC, 0x9E957DBC, 0xA4A69FE5}

type sentToken struct {
	key   token.Key
	value int32
}

func recorder() (Sender, *[]sentToken) {
	var sent []sentToken
	return func(key token.Key, value int32) {
		sent = append(sent, sentToken{key: key, value: value})
	}, &sent
}

func TestFirstTickBroadcastsRequestAddress(t *testing.T) {
	send, sent := recorder()
	a := New(scenarioAGUID, send, false, 0, nil)

	a.Tick(0)

	if a.State() != Proposing {
		t.Fatalf("state = %v, want Proposing", a.State())
	}
	if len(*sent) != 1 || (*sent)[0].key != token.KeyRequestAddress {
		t.Fatalf("sent = %+v, want a single KeyRequestAddress", *sent)
	}
	p := (*sent)[0].value
	if p <= 0 || p > 120 {
		t.Fatalf("candidate %d out of range", p)
	}
}

func TestCollisionProducesDifferentProposal(t *testing.T) {
	send, sent := recorder()
	a := New(scenarioAGUID, send, false, 0, nil)

	a.Tick(0)
	first := (*sent)[0].value

	a.OnToken(token.KeyResponseAddressInUse, first)
	if a.State() != Unassigned {
		t.Fatalf("state after collision = %v, want Unassigned", a.State())
	}

	a.Tick(10)
	if len(*sent) != 2 {
		t.Fatalf("sent = %+v, want two proposals", *sent)
	}
	second := (*sent)[1].value
	if second == first {
		t.Fatalf("second proposal %d equals first %d, want a distinct value", second, first)
	}
}

func TestAdoptsAfterClaimTimeoutWithoutCollision(t *testing.T) {
	send, sent := recorder()
	a := New(scenarioAGUID, send, false, 0, nil)

	a.Tick(0)
	p := (*sent)[0].value

	a.Tick(99)
	if a.IsValid() {
		t.Fatal("address adopted before the 100ms claim timer fired")
	}

	a.Tick(100)
	if !a.IsValid() {
		t.Fatal("address not adopted after the claim timer fired")
	}
	if int32(a.Address()) != p {
		t.Fatalf("adopted address %d, want proposal %d", a.Address(), p)
	}
	last := (*sent)[len(*sent)-1]
	if last.key != token.KeyResponseAddressInUse || last.value != p {
		t.Fatalf("final broadcast = %+v, want KeyResponseAddressInUse(%d)", last, p)
	}
}

func TestRespondsToRequestForOurAddress(t *testing.T) {
	send, sent := recorder()
	a := New(scenarioAGUID, send, false, 0, nil)
	a.Tick(0)
	a.Tick(100) // adopts

	*sent = nil
	a.OnToken(token.KeyRequestAddress, int32(a.Address()))

	if len(*sent) != 1 || (*sent)[0].key != token.KeyResponseAddressInUse || (*sent)[0].value != int32(a.Address()) {
		t.Fatalf("sent = %+v, want a defending KeyResponseAddressInUse", *sent)
	}
}

func TestCollisionOnWorkingAddressResetsToUnassigned(t *testing.T) {
	send, _ := recorder()
	a := New(scenarioAGUID, send, false, 0, nil)
	a.Tick(0)
	a.Tick(100)

	a.OnFrameSource(a.Address())

	if a.State() != Unassigned {
		t.Fatalf("state after defended collision = %v, want Unassigned", a.State())
	}
}

func TestStaticAddressNeverNegotiates(t *testing.T) {
	send, sent := recorder()
	a := New(scenarioAGUID, send, true, 42, nil)

	if !a.IsValid() || a.Address() != 42 {
		t.Fatalf("static allocator not immediately assigned to 42: valid=%v addr=%d", a.IsValid(), a.Address())
	}
	a.Tick(0)
	a.OnFrameSource(42)
	if len(*sent) != 0 {
		t.Fatalf("static allocator sent %+v, want no negotiation traffic", *sent)
	}
	if a.State() != Assigned {
		t.Fatalf("static allocator state = %v, want Assigned", a.State())
	}
}
