// Package ftp implements the shared read/write/delete file-transfer state
// machine described in §4.7. Both the server and client sides run over the
// ordinary receiver/transmitter path; this package models their state
// machines and wire payload shapes, leaving frame-level transport to Core's
// router. Grounded on the teacher's connection-oriented state machines
// (explicit named states advanced only by inbound events and timeouts, no
// goroutines), generalized from a link handshake to a segmented file
// transfer. A Server serves one client at a time; the Server and Client on
// one node do not check each other's state, so a node can serve a request
// while its own Client has a transfer in progress.
package ftp

import (
	"encoding/binary"

	"github.com/ecconet/ecconet/hostcap"
	"github.com/ecconet/ecconet/wire"
)

const (
	segmentSize    = 256
	responseTimeoutMS = 1000
)

// ResponseCode is the fixed set of outcomes a client transaction can end
// with, delivered to the requester's callback.
type ResponseCode uint8

const (
	ResponseOK ResponseCode = iota
	ResponseClientError
	ResponseTransactionTimedOut
	ResponseChecksumError
	ResponseFileNotFound
	ResponseAccessDenied
)

// AccessCode computes the scrambled per-device access code gating write and
// delete requests, from the device GUID's four words.
func AccessCode(guid [4]uint32) uint32 {
	g0, g1, g2, g3 := guid[0], guid[1], guid[2], guid[3]
	return ((g0 ^ g3) >> (g0 >> 3 & 3)) ^ g2 ^ 0x5EB9417D ^ g1
}

// FileHeader is the metadata flash keeps alongside a stored file's bytes.
type FileHeader struct {
	Name      string
	Size      uint32
	Checksum  uint16
	TimestampMS uint32
	Deleted   bool
}

// Store is the flash-backed catalogue of files the server answers requests
// against. One Store spans every volume: each file's volume comes from the
// VolumeResolver.
type Store struct {
	flash      hostcap.FlashDevice
	volumes    hostcap.VolumeResolver
	headers    map[string]FileHeader
	dataOffset map[string]uint32
	nextOffset uint32
}

// NewStore returns an empty Store.
func NewStore(flash hostcap.FlashDevice, volumes hostcap.VolumeResolver) *Store {
	return &Store{
		flash:      flash,
		volumes:    volumes,
		headers:    make(map[string]FileHeader),
		dataOffset: make(map[string]uint32),
	}
}

// Info returns a file's header, if present and not deleted.
func (s *Store) Info(name string) (FileHeader, bool) {
	h, ok := s.headers[name]
	if !ok || h.Deleted {
		return FileHeader{}, false
	}
	return h, true
}

// ReadSegment returns segment segIdx (0-based, segmentSize bytes except
// possibly the last) of a stored file.
func (s *Store) ReadSegment(name string, segIdx uint16) ([]byte, bool) {
	h, ok := s.Info(name)
	if !ok {
		return nil, false
	}
	offset := s.dataOffset[name] + uint32(segIdx)*segmentSize
	remaining := int(h.Size) - int(segIdx)*segmentSize
	if remaining <= 0 {
		return nil, false
	}
	n := remaining
	if n > segmentSize {
		n = segmentSize
	}
	buf := make([]byte, n)
	vol := s.volumes.FileToVolume(name)
	if s.flash.FlashRead(vol, offset, buf) != hostcap.FlashOK {
		return nil, false
	}
	return buf, true
}

// StartWrite allocates a new file header of the declared size.
func (s *Store) StartWrite(name string, size uint32, checksum uint16, now uint32) {
	s.headers[name] = FileHeader{Name: name, Size: size, Checksum: checksum, TimestampMS: now}
	s.dataOffset[name] = s.nextOffset
	s.nextOffset += size
}

// WriteSegment stores one 256-byte segment at its declared index.
func (s *Store) WriteSegment(name string, segIdx uint16, data []byte) bool {
	h, ok := s.headers[name]
	if !ok {
		return false
	}
	offset := s.dataOffset[name] + uint32(segIdx)*segmentSize
	vol := s.volumes.FileToVolume(name)
	return s.flash.FlashWrite(vol, offset, data) == hostcap.FlashOK && !h.Deleted
}

// Delete tags a file header deleted without reclaiming its flash space.
func (s *Store) Delete(name string) bool {
	h, ok := s.headers[name]
	if !ok {
		return false
	}
	h.Deleted = true
	s.headers[name] = h
	return true
}

// Checksum computes the CRC16 of a file's full stored bytes, for a client's
// post-transfer verification.
func Checksum(data []byte) uint16 { return wire.Checksum(data) }

// encodeSegmentHeader/decodeSegmentHeader pack a segment index as the wire
// payload prefix ahead of segment bytes.
func encodeSegmentHeader(segIdx uint16) []byte {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, segIdx)
	return b
}

func decodeSegmentHeader(data []byte) (uint16, []byte, bool) {
	if len(data) < 2 {
		return 0, nil, false
	}
	return binary.BigEndian.Uint16(data[0:2]), data[2:], true
}
