package ftp

import (
	"testing"

	"github.com/ecconet/ecconet/hostcap"
	"github.com/ecconet/ecconet/hostfake"
	"github.com/ecconet/ecconet/token"
)

type fixedGUID struct{ g [4]uint32 }

func (f fixedGUID) GetGUID() [4]uint32 { return f.g }

// wireHarness wires a Client and Server back to back so tests can drive full
// request/response round trips without a transmitter/receiver in between.
type wireHarness struct {
	server     *Server
	client     *Client
	serverAddr uint8
	clientAddr uint8
}

func newHarness(store *Store, guid hostcap.GUIDSource) *wireHarness {
	h := &wireHarness{serverAddr: 5, clientAddr: 9}
	h.server = NewServer(store, guid, nil)
	h.client = NewClient(func(addr uint8, key token.Key, payload []byte) {
		respKey, respPayload, ok := h.server.HandleRequest(0, h.clientAddr, key, payload)
		if ok {
			h.client.OnResponse(0, h.serverAddr, respKey, respPayload)
		}
	})
	return h
}

// TestReadFileScenarioE reproduces §8 Scenario E: a 300-byte file split into
// a 256-byte and a 44-byte segment, completing with a matching checksum.
func TestReadFileScenarioE(t *testing.T) {
	flash := hostfake.NewFlash()
	volumes := fakeVolumes{}
	store := NewStore(flash, volumes)

	data := make([]byte, 300)
	for i := range data {
		data[i] = byte(i)
	}
	vol := volumes.FileToVolume("abc.txt")
	flash.FlashWrite(vol, 0, data)
	store.headers["abc.txt"] = FileHeader{Name: "abc.txt", Size: 300, Checksum: Checksum(data)}
	store.dataOffset["abc.txt"] = 0

	h := newHarness(store, fixedGUID{})

	var result Result
	got := h.client.ReadFile(0, h.serverAddr, "abc.txt", func(r Result) { result = r })
	if !got {
		t.Fatal("ReadFile refused to start")
	}

	if result.Code != ResponseOK {
		t.Fatalf("result code = %v, want ResponseOK", result.Code)
	}
	if len(result.Data) != 300 {
		t.Fatalf("payload length = %d, want 300", len(result.Data))
	}
	for i, b := range result.Data {
		if b != byte(i) {
			t.Fatalf("payload[%d] = %d, want %d", i, b, i)
		}
	}
}

func TestReadFileNotFound(t *testing.T) {
	flash := hostfake.NewFlash()
	store := NewStore(flash, fakeVolumes{})
	h := newHarness(store, fixedGUID{})

	var result Result
	h.client.ReadFile(0, h.serverAddr, "missing.txt", func(r Result) { result = r })

	if result.Code != ResponseClientError {
		t.Fatalf("result code = %v, want ResponseClientError", result.Code)
	}
}

func TestWriteFileRequiresMatchingAccessCode(t *testing.T) {
	flash := hostfake.NewFlash()
	store := NewStore(flash, fakeVolumes{})
	h := newHarness(store, fixedGUID{g: [4]uint32{1, 2, 3, 4}})

	var result Result
	h.client.WriteFile(0, h.serverAddr, "new.txt", []byte("hello"), 0xDEADBEEF, func(r Result) { result = r })

	if result.Code != ResponseClientError {
		t.Fatalf("result code = %v, want ResponseClientError for a wrong access code", result.Code)
	}
}

func TestWriteFileRoundTrip(t *testing.T) {
	flash := hostfake.NewFlash()
	store := NewStore(flash, fakeVolumes{})
	guid := fixedGUID{g: [4]uint32{1, 2, 3, 4}}
	h := newHarness(store, guid)

	payload := make([]byte, 300)
	for i := range payload {
		payload[i] = byte(i)
	}

	var result Result
	h.client.WriteFile(0, h.serverAddr, "new.txt", payload, AccessCode(guid.g), func(r Result) { result = r })

	if result.Code != ResponseOK {
		t.Fatalf("result code = %v, want ResponseOK", result.Code)
	}
	hdr, ok := store.Info("new.txt")
	if !ok || hdr.Size != 300 {
		t.Fatalf("stored header = %+v, ok=%v", hdr, ok)
	}
	seg0, _ := store.ReadSegment("new.txt", 0)
	if len(seg0) != 256 || seg0[0] != 0 {
		t.Fatalf("segment 0 = %v", seg0)
	}
}

type fakeVolumes struct{}

func (fakeVolumes) FileToVolume(name string) uint16 { return 0 }
