package ftp

import "github.com/ecconet/ecconet/token"

// Result is delivered to the requester's callback when a transaction ends.
type Result struct {
	Code    ResponseCode
	Name    string
	Data    []byte // full reassembled bytes, for a completed read
}

// Callback receives the outcome of one client-driven FTP transaction.
type Callback func(Result)

// Send emits one FTP request key/payload to the server at addr.
type Send func(addr uint8, key token.Key, payload []byte)

type clientOp int

const (
	opNone clientOp = iota
	opReadInfo
	opReadSegment
	opWriteStart
	opWriteSegment
	opDelete
)

// Client drives one file transfer at a time against a remote Server.
// Grounded on the teacher's request/response link state machine, generalized
// from a single handshake into a segment-driven transfer loop.
type Client struct {
	send Send

	op         clientOp
	serverAddr uint8
	expected   token.Key
	deadlineMS uint32
	callback   Callback

	name       string
	remaining  int
	nextSeg    uint16
	buf        []byte
	checksum   uint16
	writeData  []byte
}

// NewClient returns an idle client that emits requests via send.
func NewClient(send Send) *Client { return &Client{send: send} }

// Busy reports whether a transaction is in progress.
func (c *Client) Busy() bool { return c.op != opNone }

func (c *Client) start(now uint32, serverAddr uint8, op clientOp, expected token.Key, cb Callback) {
	c.op = op
	c.serverAddr = serverAddr
	c.expected = expected
	c.deadlineMS = now + responseTimeoutMS
	c.callback = cb
}

func (c *Client) finish(code ResponseCode, data []byte) {
	cb := c.callback
	name := c.name
	c.op = opNone
	c.callback = nil
	c.buf = nil
	c.writeData = nil
	if cb != nil {
		cb(Result{Code: code, Name: name, Data: data})
	}
}

// ReadFile begins reading name from the server at serverAddr, delivering the
// full reassembled bytes to cb on completion.
func (c *Client) ReadFile(now uint32, serverAddr uint8, name string, cb Callback) bool {
	if c.Busy() {
		return false
	}
	c.name = name
	c.buf = nil
	c.start(now, serverAddr, opReadInfo, token.KeyResponseFileInfo, cb)
	c.send(serverAddr, token.KeyRequestFileReadStart, encodeName(name))
	return true
}

// WriteFile begins writing data under name to the server at serverAddr.
func (c *Client) WriteFile(now uint32, serverAddr uint8, name string, data []byte, accessCode uint32, cb Callback) bool {
	if c.Busy() {
		return false
	}
	c.name = name
	c.writeData = data
	c.nextSeg = 0
	c.start(now, serverAddr, opWriteStart, token.KeyResponseFileWriteReady, cb)
	c.send(serverAddr, token.KeyRequestFileWriteStart, encodeWriteStartRequest(name, uint32(len(data)), Checksum(data), accessCode))
	return true
}

// DeleteFile requests deletion of name on the server at serverAddr.
func (c *Client) DeleteFile(now uint32, serverAddr uint8, name string, accessCode uint32, cb Callback) bool {
	if c.Busy() {
		return false
	}
	c.name = name
	c.start(now, serverAddr, opDelete, token.KeyResponseFileDeleteOK, cb)
	c.send(serverAddr, token.KeyRequestFileDelete, encodeDeleteRequest(name, accessCode))
	return true
}

// Tick ends the in-flight transaction with a timeout once its deadline has
// passed.
func (c *Client) Tick(now uint32) {
	if c.Busy() && int32(now-c.deadlineMS) >= 0 {
		c.completeTransaction(ResponseTransactionTimedOut, nil)
	}
}

// OnResponse delivers one inbound response from the server this client is
// transacting with. Responses from any other sender, or while idle, are
// ignored.
func (c *Client) OnResponse(now uint32, from uint8, key token.Key, payload []byte) {
	if !c.Busy() || from != c.serverAddr {
		return
	}
	if key != c.expected {
		c.completeTransaction(ResponseClientError, nil)
		return
	}

	switch c.op {
	case opReadInfo:
		c.onReadStart(now, payload)
	case opReadSegment:
		c.onReadSegment(now, payload)
	case opWriteStart:
		c.onWriteReady(now)
	case opWriteSegment:
		c.onWriteSegmentAck(now)
	case opDelete:
		c.completeTransaction(ResponseOK, nil)
	}
}

func (c *Client) onReadStart(now uint32, payload []byte) {
	name, size, checksum, ok := decodeReadStartResponse(payload)
	if !ok || name != c.name {
		c.completeTransaction(ResponseClientError, nil)
		return
	}
	c.remaining = int(size)
	c.checksum = checksum
	c.nextSeg = 0
	c.op = opReadSegment
	c.expected = token.KeyResponseFileReadSegment
	c.deadlineMS = now + responseTimeoutMS
	c.send(c.serverAddr, token.KeyRequestFileReadSegment, encodeSegmentHeader(c.nextSeg))
}

func (c *Client) onReadSegment(now uint32, payload []byte) {
	segIdx, data, ok := decodeSegmentHeader(payload)
	if !ok || segIdx != c.nextSeg {
		c.completeTransaction(ResponseClientError, nil)
		return
	}
	c.buf = append(c.buf, data...)
	c.remaining -= len(data)
	c.nextSeg++

	if c.remaining <= 0 {
		if Checksum(c.buf) != c.checksum {
			c.completeTransaction(ResponseChecksumError, c.buf)
			return
		}
		c.completeTransaction(ResponseOK, c.buf)
		return
	}
	c.deadlineMS = now + responseTimeoutMS
	c.send(c.serverAddr, token.KeyRequestFileReadSegment, encodeSegmentHeader(c.nextSeg))
}

func (c *Client) onWriteReady(now uint32) {
	c.op = opWriteSegment
	c.expected = token.KeyResponseFileWriteSegmentOK
	c.deadlineMS = now + responseTimeoutMS
	c.sendNextWriteSegment(now)
}

func (c *Client) sendNextWriteSegment(now uint32) {
	start := int(c.nextSeg) * segmentSize
	end := start + segmentSize
	if end > len(c.writeData) {
		end = len(c.writeData)
	}
	c.deadlineMS = now + responseTimeoutMS
	c.send(c.serverAddr, token.KeyRequestFileWriteSegment, append(encodeSegmentHeader(c.nextSeg), c.writeData[start:end]...))
}

func (c *Client) onWriteSegmentAck(now uint32) {
	c.nextSeg++
	if int(c.nextSeg)*segmentSize >= len(c.writeData) {
		c.completeTransaction(ResponseOK, nil)
		return
	}
	c.sendNextWriteSegment(now)
}

// completeTransaction always sends FileTransferComplete to free the
// server's slot before invoking the requester callback. The client is
// marked idle first, so a reply to that notification is ignored rather
// than treated as an unexpected response.
func (c *Client) completeTransaction(code ResponseCode, data []byte) {
	c.op = opNone
	c.send(c.serverAddr, token.KeyRequestFileTransferComplete, nil)
	c.finish(code, data)
}
