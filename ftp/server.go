package ftp

import (
	"log/slog"

	"github.com/ecconet/ecconet/hostcap"
	"github.com/ecconet/ecconet/token"
)

// nullClient marks "no transaction in progress" for a Server's currentClient.
const nullClient = 0xFF

// Server answers file requests from at most one client at a time, per
// §4.7's mutual-exclusion rule. Grounded on the teacher's link state machine
// (one connection slot, timeout-driven reset), generalized to a small
// per-request dispatch table.
type Server struct {
	store   *Store
	guid    hostcap.GUIDSource
	overrideHandler hostcap.FTPReadHandler
	log     *slog.Logger

	currentClient uint8
	deadlineMS    uint32
	active        bool

	// pendingReadName is set while a FileReadStart's response is still being
	// segmented out, so FileReadSegment can validate against it.
	pendingReadName string
	// pendingWriteName is the file currently accepting WriteSegment calls.
	pendingWriteName string
}

// NewServer returns an idle server over store, using guid to compute the
// write/delete access code. overrideHandler may be nil.
func NewServer(store *Store, guid hostcap.GUIDSource, overrideHandler hostcap.FTPReadHandler) *Server {
	return &Server{store: store, guid: guid, overrideHandler: overrideHandler, currentClient: nullClient, log: slog.Default()}
}

// SetLogger overrides the server's logger; a nil logger is ignored.
func (s *Server) SetLogger(l *slog.Logger) {
	if l != nil {
		s.log = l
	}
}

// reject logs and builds the client-error response common to every rejected
// FTP request.
func (s *Server) reject(clientAddr uint8, reason string) (token.Key, []byte, bool) {
	s.log.Warn("ftp request rejected", slog.Int("client", int(clientAddr)), slog.String("reason", reason))
	return token.KeyResponseFtpClientError, nil, true
}

// Tick expires a stalled transaction after its 1000ms response window.
func (s *Server) Tick(now uint32) {
	if s.active && int32(now-s.deadlineMS) >= 0 {
		s.reset()
	}
}

func (s *Server) reset() {
	s.active = false
	s.currentClient = nullClient
	s.pendingReadName = ""
	s.pendingWriteName = ""
}

func (s *Server) accessCode() uint32 { return AccessCode(s.guid.GetGUID()) }

// HandleRequest processes one inbound FTP request key/payload from
// clientAddr, returning the response key/payload to send back. ok is false
// only when key is not an FTP request key at all.
func (s *Server) HandleRequest(now uint32, clientAddr uint8, key token.Key, payload []byte) (token.Key, []byte, bool) {
	if s.active && clientAddr != s.currentClient && key != token.KeyRequestFileTransferComplete {
		return s.reject(clientAddr, "server busy with another client")
	}

	switch key {
	case token.KeyRequestFileInfo:
		return s.handleInfo(now, clientAddr, payload)
	case token.KeyRequestFileReadStart:
		return s.handleReadStart(now, clientAddr, payload)
	case token.KeyRequestFileReadSegment:
		return s.handleReadSegment(clientAddr, payload)
	case token.KeyRequestFileWriteStart:
		return s.handleWriteStart(now, clientAddr, payload)
	case token.KeyRequestFileWriteSegment:
		return s.handleWriteSegment(clientAddr, payload)
	case token.KeyRequestFileDelete:
		return s.handleDelete(clientAddr, payload)
	case token.KeyRequestFileTransferComplete:
		s.reset()
		return token.KeyResponseFileTransferComplete, nil, true
	default:
		return 0, nil, false
	}
}

func (s *Server) begin(now uint32, clientAddr uint8) {
	s.active = true
	s.currentClient = clientAddr
	s.deadlineMS = now + responseTimeoutMS
}

func (s *Server) handleInfo(now uint32, clientAddr uint8, payload []byte) (token.Key, []byte, bool) {
	name, _, ok := decodeName(payload)
	if !ok {
		return s.reject(clientAddr, "malformed file-info request")
	}
	s.begin(now, clientAddr)

	if s.overrideHandler != nil {
		if data, res := s.overrideHandler.FTPReadOverride(clientAddr, hostcap.FileInfo{Name: name}); res == hostcap.FTPOverride {
			return token.KeyResponseFileInfo, encodeFileInfoResponse(name, uint32(len(data))), true
		}
	}
	h, found := s.store.Info(name)
	if !found {
		return s.reject(clientAddr, "file not found")
	}
	return token.KeyResponseFileInfo, encodeFileInfoResponse(name, h.Size), true
}

func (s *Server) handleReadStart(now uint32, clientAddr uint8, payload []byte) (token.Key, []byte, bool) {
	name, _, ok := decodeName(payload)
	if !ok {
		return s.reject(clientAddr, "malformed read-start request")
	}
	s.begin(now, clientAddr)

	h, found := s.store.Info(name)
	if !found {
		return s.reject(clientAddr, "file not found")
	}
	s.pendingReadName = name
	return token.KeyResponseFileInfo, encodeReadStartResponse(name, h.Size, h.Checksum), true
}

func (s *Server) handleReadSegment(clientAddr uint8, payload []byte) (token.Key, []byte, bool) {
	segIdx, _, ok := decodeSegmentHeader(payload)
	if !ok || s.pendingReadName == "" {
		return s.reject(clientAddr, "read segment requested with no active read")
	}
	data, found := s.store.ReadSegment(s.pendingReadName, segIdx)
	if !found {
		return s.reject(clientAddr, "segment out of range")
	}
	return token.KeyResponseFileReadSegment, append(encodeSegmentHeader(segIdx), data...), true
}

func (s *Server) handleWriteStart(now uint32, clientAddr uint8, payload []byte) (token.Key, []byte, bool) {
	name, size, checksum, accessCode, ok := decodeWriteStartRequest(payload)
	if !ok {
		return s.reject(clientAddr, "malformed write-start request")
	}
	if accessCode != s.accessCode() {
		return s.reject(clientAddr, "bad access code")
	}
	s.begin(now, clientAddr)
	s.store.StartWrite(name, size, checksum, now)
	s.pendingWriteName = name
	return token.KeyResponseFileWriteReady, encodeName(name), true
}

func (s *Server) handleWriteSegment(clientAddr uint8, payload []byte) (token.Key, []byte, bool) {
	segIdx, data, ok := decodeSegmentHeader(payload)
	if !ok || s.pendingWriteName == "" {
		return s.reject(clientAddr, "write segment requested with no active write")
	}
	if !s.store.WriteSegment(s.pendingWriteName, segIdx, data) {
		return s.reject(clientAddr, "segment write failed")
	}
	return token.KeyResponseFileWriteSegmentOK, encodeSegmentHeader(segIdx), true
}

func (s *Server) handleDelete(clientAddr uint8, payload []byte) (token.Key, []byte, bool) {
	name, accessCode, ok := decodeDeleteRequest(payload)
	if !ok || accessCode != s.accessCode() {
		return s.reject(clientAddr, "bad delete request or access code")
	}
	if !s.store.Delete(name) {
		return s.reject(clientAddr, "file not found")
	}
	return token.KeyResponseFileDeleteOK, encodeName(name), true
}
