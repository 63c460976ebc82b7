package core

import (
	"github.com/ecconet/ecconet/codec"
	"github.com/ecconet/ecconet/receiver"
	"github.com/ecconet/ecconet/token"
)

// routeMessage implements §4.8's dispatch: the message's first key decides
// everything. A PatternSync key carries no separate value at all — its
// pattern enumeration is the key body itself — and fans straight out to
// every sequencer. FTP response/request keys go straight to the client or
// server without ever touching the codec, since ftp's own wire.go already
// shapes those payloads. Anything else is a compressed run of ordinary
// tokens: its event index is observed unconditionally, then the run is
// decoded and each token fed back through dispatchToken, gated by whether
// the message is itself fresh enough to bother with.
func (c *Core) routeMessage(now uint32, msg receiver.Message) {
	if len(msg.Payload) < 3 {
		return // too short to carry an event index byte and a key
	}
	eventIdxByte := msg.Payload[0]
	rest := msg.Payload[1:]
	firstKey := token.KeyFromBytes(rest[0], rest[1])
	body := rest[2:]

	switch {
	case firstKey.Prefix() == token.PrefixPatternSync:
		c.sequencers.OnSync(now, msg.Sender, c.Address(), firstKey.Body(), c.sinksFor)

	case token.IsFTPResponse(firstKey):
		c.ftpClient.OnResponse(now, msg.Sender, firstKey, body)

	case token.IsFTPRequest(firstKey):
		if respKey, respPayload, ok := c.ftpServer.HandleRequest(now, msg.Sender, firstKey, body); ok {
			c.sendFTPRequest(msg.Sender, respKey, respPayload)
		}

	default:
		c.eventIdx.Observe(eventIdxByte)
		size, known := token.ValueSize(firstKey)
		isCommand := firstKey.Prefix() == token.PrefixCommand && known && len(msg.Payload) == 3+size
		if msg.IsEvent || isCommand || !c.eventIdx.IsExpired(eventIdxByte) {
			codec.Decompress(rest, msg.Sender, func(t token.Token) {
				c.dispatchToken(now, t)
			})
		}
	}
}

// dispatchToken feeds one decoded token to every subsystem it concerns, per
// §4.8: the address allocator always sees it; the rule engine and sequencer
// controller only see it once this node has a valid address; the
// application callback always sees it, regardless of routing outcome.
func (c *Core) dispatchToken(now uint32, t token.Token) {
	c.allocator.OnToken(t.Key, t.Value)

	if c.AddressValid() {
		switch t.Key.Prefix() {
		case token.PrefixInputStatus, token.PrefixOutputStatus:
			c.rules.OnToken(t)
		case token.PrefixCommand:
			c.sequencers.Dispatch(uint32(now), uint32(c.Address()), t.Address, t.Key, t.Value, c.sinksFor)
		}
	}

	if c.cfg.App != nil {
		c.cfg.App.TokenCallback(t.Address, uint16(t.Key), t.Value, uint8(t.Flags))
	}
}
