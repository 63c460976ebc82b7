package core

import "github.com/ecconet/ecconet/codec"

// tickOrchestrator implements §4.8's periodic broadcast: once the rule
// engine has something should-broadcast, no sender filter is suppressing
// multi-frame reception, and this node has a valid address, a broadcast
// opens every (1000 - 60 + our address) ms and the rule engine's exposed
// variable table is compressed straight onto the wire.
func (c *Core) tickOrchestrator(now uint32) {
	if !c.AddressValid() || c.recv.FilterActive() {
		return
	}
	tokens := c.rules.BroadcastTokens()
	if len(tokens) == 0 {
		return
	}
	if c.orchestratorArmed && int32(now-c.orchestratorDeadline) < 0 {
		return
	}

	c.xmit.Start(0, tokens[0].Key)
	for _, b := range codec.Compress(tokens) {
		c.xmit.AddByte(b)
	}
	c.xmit.Finish()

	c.orchestratorDeadline = now + orchestratorBaseIntervalMS + uint32(c.Address())
	c.orchestratorArmed = true
}
