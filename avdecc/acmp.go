/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package avdecc

import (
	"fmt"
	"time"

	adecc "github.com/ptpavb/endpoint/wire/adecc"
)

// acmpCommandTimeout is the per-leg response timeout for the nine-way
// connection handshake, §4.9.
const acmpCommandTimeout = 250 * time.Millisecond

// talkerConnection is one active or pending listener attached to a
// talker stream source, §4.9.
type talkerConnection struct {
	listenerEntityID adecc.EntityID
	listenerUniqueID adecc.UniqueID
}

// TalkerState is the talker entity's side of ACMP: it tracks which
// listeners are connected to each of its stream sources and enforces
// the exclusive-connection flag, §4.9.
type TalkerState struct {
	StreamID  map[adecc.UniqueID]uint64
	DestMAC   map[adecc.UniqueID][6]byte
	exclusive map[adecc.UniqueID]bool
	conns     map[adecc.UniqueID][]talkerConnection
}

// NewTalkerState builds an empty talker-side ACMP state table.
func NewTalkerState() *TalkerState {
	return &TalkerState{
		StreamID:  make(map[adecc.UniqueID]uint64),
		DestMAC:   make(map[adecc.UniqueID][6]byte),
		exclusive: make(map[adecc.UniqueID]bool),
		conns:     make(map[adecc.UniqueID][]talkerConnection),
	}
}

// HandleConnect processes a CONNECT_TX_COMMAND, §4.9's talker leg.
func (t *TalkerState) HandleConnect(cmd *adecc.ACMP) *adecc.ACMP {
	resp := *cmd
	resp.MessageType = adecc.ACMPConnectTXResponse
	streamID, ok := t.StreamID[cmd.TalkerUniqueID]
	if !ok {
		resp.Status = adecc.ACMPStatusTalkerNoStreamIndex
		return &resp
	}
	if t.exclusive[cmd.TalkerUniqueID] && len(t.conns[cmd.TalkerUniqueID]) > 0 {
		resp.Status = adecc.ACMPStatusTalkerExclusive
		return &resp
	}
	t.conns[cmd.TalkerUniqueID] = append(t.conns[cmd.TalkerUniqueID], talkerConnection{
		listenerEntityID: cmd.ListenerEntityID,
		listenerUniqueID: cmd.ListenerUniqueID,
	})
	resp.StreamID = streamID
	resp.DestMAC = t.DestMAC[cmd.TalkerUniqueID]
	resp.ConnectionCount = uint16(len(t.conns[cmd.TalkerUniqueID]))
	resp.Status = adecc.ACMPStatusSuccess
	return &resp
}

// HandleDisconnect processes a DISCONNECT_TX_COMMAND, §4.9's talker leg.
func (t *TalkerState) HandleDisconnect(cmd *adecc.ACMP) *adecc.ACMP {
	resp := *cmd
	resp.MessageType = adecc.ACMPDisconnectTXResponse
	conns := t.conns[cmd.TalkerUniqueID]
	for i, c := range conns {
		if c.listenerEntityID == cmd.ListenerEntityID && c.listenerUniqueID == cmd.ListenerUniqueID {
			t.conns[cmd.TalkerUniqueID] = append(conns[:i], conns[i+1:]...)
			resp.Status = adecc.ACMPStatusSuccess
			resp.ConnectionCount = uint16(len(t.conns[cmd.TalkerUniqueID]))
			return &resp
		}
	}
	resp.Status = adecc.ACMPStatusNotConnected
	return &resp
}

// ListenerConnection is one listener sink's current ACMP binding,
// §4.9.
type ListenerConnection struct {
	Connected bool
	TalkerEntityID adecc.EntityID
	TalkerUniqueID adecc.UniqueID
	StreamID       uint64
}

// ListenerState is the listener entity's side of ACMP, §4.9.
type ListenerState struct {
	conns map[adecc.UniqueID]*ListenerConnection
}

// NewListenerState builds an empty listener-side ACMP state table.
func NewListenerState() *ListenerState {
	return &ListenerState{conns: make(map[adecc.UniqueID]*ListenerConnection)}
}

// HandleConnect processes a CONNECT_RX_COMMAND, §4.9's listener leg.
// The command is expected to already carry the talker's stream
// parameters, as relayed by the controller after the talker leg
// succeeded.
func (l *ListenerState) HandleConnect(cmd *adecc.ACMP) *adecc.ACMP {
	resp := *cmd
	resp.MessageType = adecc.ACMPConnectRXResponse
	c, ok := l.conns[cmd.ListenerUniqueID]
	if ok && c.Connected {
		resp.Status = adecc.ACMPStatusListenerExclusive
		return &resp
	}
	l.conns[cmd.ListenerUniqueID] = &ListenerConnection{
		Connected:      true,
		TalkerEntityID: cmd.TalkerEntityID,
		TalkerUniqueID: cmd.TalkerUniqueID,
		StreamID:       cmd.StreamID,
	}
	resp.Status = adecc.ACMPStatusSuccess
	return &resp
}

// HandleDisconnect processes a DISCONNECT_RX_COMMAND, §4.9's listener leg.
func (l *ListenerState) HandleDisconnect(cmd *adecc.ACMP) *adecc.ACMP {
	resp := *cmd
	resp.MessageType = adecc.ACMPDisconnectRXResponse
	c, ok := l.conns[cmd.ListenerUniqueID]
	if !ok || !c.Connected {
		resp.Status = adecc.ACMPStatusNotConnected
		return &resp
	}
	delete(l.conns, cmd.ListenerUniqueID)
	resp.Status = adecc.ACMPStatusSuccess
	return &resp
}

// Get returns the current connection state of one listener sink.
func (l *ListenerState) Get(unique adecc.UniqueID) (*ListenerConnection, bool) {
	c, ok := l.conns[unique]
	return c, ok
}

// connectPhase is where a ConnectionController's in-flight request is
// in the nine-way handshake, §4.9.
type connectPhase uint8

const (
	phaseAwaitingTalker connectPhase = iota
	phaseAwaitingListener
)

type pendingConnect struct {
	request *adecc.ACMP
	phase   connectPhase
	sentAt  time.Time
}

// ConnectionController drives the controller's side of the nine-way
// ACMP handshake: CONNECT_TX to the talker, then CONNECT_RX to the
// listener carrying the talker's stream parameters, §4.9.
type ConnectionController struct {
	nextSeq  uint16
	inflight map[uint16]*pendingConnect
	now      func() time.Time
}

// NewConnectionController builds an empty controller.
func NewConnectionController() *ConnectionController {
	return &ConnectionController{inflight: make(map[uint16]*pendingConnect), now: time.Now}
}

// Connect begins a connection request: returns the CONNECT_TX_COMMAND
// to send to the talker. The controller surfaces the CONNECT_RX
// command to send next from ReceiveTalkerResponse.
func (c *ConnectionController) Connect(talker, listener adecc.EntityID, talkerUnique, listenerUnique adecc.UniqueID) *adecc.ACMP {
	seq := c.nextSeq
	c.nextSeq++
	cmd := &adecc.ACMP{
		MessageType:      adecc.ACMPConnectTXCommand,
		TalkerEntityID:   talker,
		ListenerEntityID: listener,
		TalkerUniqueID:   talkerUnique,
		ListenerUniqueID: listenerUnique,
		SequenceID:       seq,
	}
	c.inflight[seq] = &pendingConnect{request: cmd, phase: phaseAwaitingTalker, sentAt: c.now()}
	return cmd
}

// ReceiveTalkerResponse advances a request past its talker leg,
// returning the CONNECT_RX_COMMAND to send to the listener.
func (c *ConnectionController) ReceiveTalkerResponse(resp *adecc.ACMP) (*adecc.ACMP, error) {
	p, ok := c.inflight[resp.SequenceID]
	if !ok || p.phase != phaseAwaitingTalker {
		return nil, fmt.Errorf("avdecc: ACMP talker response sequence_id %d not awaiting talker", resp.SequenceID)
	}
	if resp.Status != adecc.ACMPStatusSuccess {
		delete(c.inflight, resp.SequenceID)
		return nil, fmt.Errorf("avdecc: talker refused connection: status %d", resp.Status)
	}
	next := &adecc.ACMP{
		MessageType:      adecc.ACMPConnectRXCommand,
		StreamID:         resp.StreamID,
		TalkerEntityID:   p.request.TalkerEntityID,
		ListenerEntityID: p.request.ListenerEntityID,
		TalkerUniqueID:   p.request.TalkerUniqueID,
		ListenerUniqueID: p.request.ListenerUniqueID,
		DestMAC:          resp.DestMAC,
		SequenceID:       resp.SequenceID,
	}
	p.phase = phaseAwaitingListener
	p.request = next
	p.sentAt = c.now()
	return next, nil
}

// ReceiveListenerResponse completes a connection request.
func (c *ConnectionController) ReceiveListenerResponse(resp *adecc.ACMP) error {
	p, ok := c.inflight[resp.SequenceID]
	if !ok || p.phase != phaseAwaitingListener {
		return fmt.Errorf("avdecc: ACMP listener response sequence_id %d not awaiting listener", resp.SequenceID)
	}
	delete(c.inflight, resp.SequenceID)
	if resp.Status != adecc.ACMPStatusSuccess {
		return fmt.Errorf("avdecc: listener refused connection: status %d", resp.Status)
	}
	return nil
}

// TimedOut returns the sequence IDs of requests whose current leg has
// exceeded acmpCommandTimeout without a response, §4.9.
func (c *ConnectionController) TimedOut(now time.Time) []uint16 {
	var out []uint16
	for seq, p := range c.inflight {
		if now.Sub(p.sentAt) > acmpCommandTimeout {
			out = append(out, seq)
		}
	}
	return out
}

// Abandon drops an in-flight request, e.g. after TimedOut reports it.
func (c *ConnectionController) Abandon(seq uint16) {
	delete(c.inflight, seq)
}
