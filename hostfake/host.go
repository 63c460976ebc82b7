package hostfake

import (
	"sync"

	"github.com/ecconet/ecconet/hostcap"
)

// GUID is a fixed hostcap.GUIDSource, used in tests that must reproduce a
// specific address proposal deterministically (§8 Property 6).
type GUID struct{ words [4]uint32 }

// NewGUID returns a GUIDSource that always reports words.
func NewGUID(words [4]uint32) *GUID { return &GUID{words: words} }

// GetGUID implements hostcap.GUIDSource.
func (g *GUID) GetGUID() [4]uint32 { return g.words }

// TokenLog is a hostcap.TokenSink that records every delivered token, for
// test assertions against the "application receives" scenarios of §8.
type TokenLog struct {
	mu     sync.Mutex
	tokens []LoggedToken
}

// LoggedToken is one recorded TokenCallback invocation.
type LoggedToken struct {
	Address uint8
	Key     uint16
	Value   int32
	Flags   uint8
}

// NewTokenLog returns an empty TokenLog.
func NewTokenLog() *TokenLog { return &TokenLog{} }

// TokenCallback implements hostcap.TokenSink.
func (l *TokenLog) TokenCallback(address uint8, key uint16, value int32, flags uint8) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tokens = append(l.tokens, LoggedToken{Address: address, Key: key, Value: value, Flags: flags})
}

// Tokens returns a copy of every token recorded so far.
func (l *TokenLog) Tokens() []LoggedToken {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]LoggedToken, len(l.tokens))
	copy(out, l.tokens)
	return out
}

// Volumes is a trivial hostcap.VolumeResolver that always resolves to volume
// 0, matching spec.md §6's single-volume persisted-file set.
type Volumes struct{}

// FileToVolume implements hostcap.VolumeResolver.
func (Volumes) FileToVolume(name string) uint16 { return 0 }

// NoOverride is a hostcap.FTPReadHandler that always falls through to the
// default flash-backed read path.
type NoOverride struct{}

// FTPReadOverride implements hostcap.FTPReadHandler.
func (NoOverride) FTPReadOverride(requester uint8, info hostcap.FileInfo) ([]byte, hostcap.FTPOverrideResult) {
	return nil, hostcap.FTPDefault
}
