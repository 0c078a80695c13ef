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

// aecpInflightTimeout and aecpMaxRetries bound how long a controller
// waits for an AEM response before retrying, and how many times it
// retries before giving up, §4.9.
const (
	aecpInflightTimeout = 250 * time.Millisecond
	aecpMaxRetries      = 3
)

// EntityModel is the server side of AECP: it owns an EntityDescriptor
// and the acquire/lock exclusion state over it, §4.8/§4.9.
type EntityModel struct {
	Descriptor *EntityDescriptor

	acquiredBy adecc.EntityID
	acquired   bool
	lockedBy   adecc.EntityID
	locked     bool
	lockUntil  time.Time
	now        func() time.Time
}

// NewEntityModel wraps a descriptor in AECP command handling.
func NewEntityModel(d *EntityDescriptor) *EntityModel {
	return &EntityModel{Descriptor: d, now: time.Now}
}

// HandleCommand applies one received AEM command from controller,
// returning the response to send back, §4.9. Unknown command types
// answer UNKNOWN_COMMAND rather than being silently dropped;
// READ_DESCRIPTOR answers NOT_IMPLEMENTED.
func (m *EntityModel) HandleCommand(cmd *adecc.AEM) *adecc.AEM {
	resp := &adecc.AEM{
		MessageType:        adecc.AECPAEMResponse,
		Status:             adecc.AECPStatusSuccess,
		EntityID:           m.Descriptor.EntityID,
		ControllerEntityID: cmd.ControllerEntityID,
		CommandType:        cmd.CommandType,
		SequenceID:         cmd.SequenceID,
		Payload:            cmd.Payload,
	}
	switch cmd.CommandType {
	case adecc.AEMAcquireEntity:
		resp.Status = m.acquire(cmd.ControllerEntityID, cmd.Payload)
	case adecc.AEMLockEntity:
		resp.Status = m.lock(cmd.ControllerEntityID, cmd.Payload)
	case adecc.AEMReadDescriptor:
		resp.Status = adecc.AECPStatusNotImplemented
	default:
		resp.Status = adecc.AECPStatusUnknownCommand
	}
	return resp
}

// acquireReleaseFlag mirrors AEM ACQUIRE_ENTITY's flags field, bit 0:
// set to release instead of acquire, §4.9.
const acquireReleaseFlag = 0x1

func (m *EntityModel) acquire(controller adecc.EntityID, flags []byte) adecc.AECPStatus {
	release := len(flags) > 0 && flags[0]&acquireReleaseFlag != 0
	if release {
		if m.acquired && m.acquiredBy == controller {
			m.acquired = false
		}
		return adecc.AECPStatusSuccess
	}
	if m.acquired && m.acquiredBy != controller {
		return adecc.AECPStatusEntityAcquired
	}
	m.acquired = true
	m.acquiredBy = controller
	return adecc.AECPStatusSuccess
}

const lockReleaseFlag = 0x1

// defaultLockDuration is how long a lock survives without renewal,
// §4.9.
const defaultLockDuration = 60 * time.Second

func (m *EntityModel) lock(controller adecc.EntityID, flags []byte) adecc.AECPStatus {
	release := len(flags) > 0 && flags[0]&lockReleaseFlag != 0
	now := m.now()
	if m.locked && now.After(m.lockUntil) {
		m.locked = false
	}
	if release {
		if m.locked && m.lockedBy == controller {
			m.locked = false
		}
		return adecc.AECPStatusSuccess
	}
	if m.locked && m.lockedBy != controller {
		return adecc.AECPStatusEntityLocked
	}
	m.locked = true
	m.lockedBy = controller
	m.lockUntil = now.Add(defaultLockDuration)
	return adecc.AECPStatusSuccess
}

// pendingCommand is one in-flight AEM command awaiting a response,
// §4.9.
type pendingCommand struct {
	cmd     *adecc.AEM
	target  adecc.EntityID
	sentAt  time.Time
	retries int
}

// Controller is the client side of AECP: it tracks in-flight commands
// per sequence_id and retries with exponential backoff, §4.9.
type Controller struct {
	nextSeq  uint16
	inflight map[uint16]*pendingCommand
	now      func() time.Time
}

// NewController builds an empty AECP controller.
func NewController() *Controller {
	return &Controller{inflight: make(map[uint16]*pendingCommand), now: time.Now}
}

// Send assigns a sequence_id to cmd, records it as in-flight and
// returns the command ready for transmission. cmd.EntityID must
// already be set to the target entity.
func (c *Controller) Send(cmd *adecc.AEM) *adecc.AEM {
	cmd.SequenceID = c.nextSeq
	c.nextSeq++
	c.inflight[cmd.SequenceID] = &pendingCommand{cmd: cmd, target: cmd.EntityID, sentAt: c.now()}
	return cmd
}

// ReceiveResponse matches a received AEM response to its in-flight
// command and retires it, returning an error if no matching command
// is outstanding.
func (c *Controller) ReceiveResponse(resp *adecc.AEM) error {
	p, ok := c.inflight[resp.SequenceID]
	if !ok {
		return fmt.Errorf("avdecc: AECP response sequence_id %d has no in-flight command", resp.SequenceID)
	}
	if p.target != resp.EntityID {
		return fmt.Errorf("avdecc: AECP response from %#x does not match target %#x", resp.EntityID, p.target)
	}
	delete(c.inflight, resp.SequenceID)
	return nil
}

// RetryDue returns the commands whose inflight timeout has elapsed,
// reassigning their retry deadline, §4.9's 250ms timeout with
// exponential backoff. Commands that have exhausted aecpMaxRetries
// are dropped and returned separately as failures.
func (c *Controller) RetryDue(now time.Time) (retry []*adecc.AEM, failed []*adecc.AEM) {
	for seq, p := range c.inflight {
		backoff := aecpInflightTimeout << p.retries
		if now.Sub(p.sentAt) < backoff {
			continue
		}
		if p.retries >= aecpMaxRetries {
			failed = append(failed, p.cmd)
			delete(c.inflight, seq)
			continue
		}
		p.retries++
		p.sentAt = now
		retry = append(retry, p.cmd)
	}
	return retry, failed
}

// Pending reports how many commands are currently in flight.
func (c *Controller) Pending() int { return len(c.inflight) }
