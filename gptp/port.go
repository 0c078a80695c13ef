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

package gptp

import (
	"time"

	ptp "github.com/ptpavb/endpoint/wire/ptp"
)

// PortState is one of the 802.1AS port states, §4.2.
type PortState uint8

// Port states.
const (
	StateInitializing PortState = iota
	StateFaulty
	StateDisabled
	StateListening
	StatePreMaster
	StateMaster
	StatePassive
	StateUncalibrated
	StateSlave
)

func (s PortState) String() string {
	switch s {
	case StateInitializing:
		return "INITIALIZING"
	case StateFaulty:
		return "FAULTY"
	case StateDisabled:
		return "DISABLED"
	case StateListening:
		return "LISTENING"
	case StatePreMaster:
		return "PRE_MASTER"
	case StateMaster:
		return "MASTER"
	case StatePassive:
		return "PASSIVE"
	case StateUncalibrated:
		return "UNCALIBRATED"
	case StateSlave:
		return "SLAVE"
	}
	return "UNKNOWN"
}

// PortEvent is one of the port FSM's driving events, §4.2.
type PortEvent uint8

// Port events.
const (
	EventPowerUp PortEvent = iota
	EventInitialize
	EventFaultCleared
	EventDesignatedEnabled
	EventDesignatedDisabled
	EventAnnounceReceived
	EventSyncReceived
	EventAnnounceReceiptTimeout
	EventSyncReceiptTimeout
	EventBetterMasterDetected
	EventRecommendedStateChange
)

// Port is a single 802.1AS port's state machine plus its owned
// foreign-master store, driven from one periodic tick, §5.
type Port struct {
	Identity         ptp.PortIdentity
	Local            ClockDataset
	AsCapable        bool
	state            PortState
	stateEnteredAt   time.Time
	foreignMasters   *ForeignMasterStore
	lastAnnounceRx   time.Time
	lastSyncRx       time.Time
	AnnounceInterval time.Duration
	SyncInterval     time.Duration
	sink             EventSink
	now              func() time.Time
}

// NewPort constructs a port in INITIALIZING state with its own
// foreign-master store, §4.2/§5 ("The foreign-master store is owned
// by the BMCA engine and not shared").
func NewPort(id ptp.PortIdentity, local ClockDataset, sink EventSink) *Port {
	p := &Port{
		Identity:         id,
		Local:            local,
		state:            StateInitializing,
		AnnounceInterval: time.Second,
		SyncInterval:     125 * time.Millisecond,
		sink:             sink,
		now:              time.Now,
	}
	p.stateEnteredAt = p.now()
	p.foreignMasters = NewForeignMasterStore(p.AnnounceInterval)
	return p
}

// setState transitions the port and resets the state-entry clock used
// by LISTENING's announce-receipt timeout baseline.
func (p *Port) setState(next PortState) {
	if next == p.state {
		return
	}
	p.state = next
	p.stateEnteredAt = p.now()
}

// State returns the port's current state.
func (p *Port) State() PortState { return p.state }

// ForeignMasters exposes the owned foreign-master store for test and
// diagnostic inspection.
func (p *Port) ForeignMasters() *ForeignMasterStore { return p.foreignMasters }

// HandleEvent drives the FSM, §4.2's transition table (illustrative
// there, made total here: every event not explicitly listed for the
// current state is a no-op).
func (p *Port) HandleEvent(e PortEvent) {
	switch p.state {
	case StateInitializing:
		if e == EventInitialize {
			if p.AsCapable {
				p.setState(StateListening)
			} else {
				p.setState(StateDisabled)
			}
		}
	case StateFaulty:
		if e == EventFaultCleared {
			p.setState(StateInitializing)
		}
	case StateDisabled:
		if e == EventDesignatedEnabled {
			p.setState(StateInitializing)
		}
	case StateListening:
		switch e {
		case EventAnnounceReceived:
			p.setState(p.recommendedState())
		case EventAnnounceReceiptTimeout:
			p.setState(StateMaster)
		case EventDesignatedDisabled:
			p.setState(StateDisabled)
		}
	case StatePreMaster, StateMaster:
		switch e {
		case EventBetterMasterDetected, EventRecommendedStateChange:
			p.setState(p.recommendedState())
		case EventDesignatedDisabled:
			p.setState(StateDisabled)
		}
	case StatePassive:
		switch e {
		case EventRecommendedStateChange, EventBetterMasterDetected:
			p.setState(p.recommendedState())
		case EventDesignatedDisabled:
			p.setState(StateDisabled)
		}
	case StateUncalibrated:
		switch e {
		case EventSyncReceived:
			p.setState(StateSlave)
		case EventRecommendedStateChange:
			if next := p.recommendedState(); next != StateUncalibrated && next != StateSlave {
				p.setState(next)
			}
		}
	case StateSlave:
		switch e {
		case EventAnnounceReceiptTimeout, EventSyncReceiptTimeout:
			p.foreignMasters.Reset()
			p.setState(StateListening)
		case EventRecommendedStateChange:
			p.setState(p.recommendedState())
		}
	}
}

// recommendedState runs the BMCA state decision, §4.3: no qualified
// foreign master recommends MASTER; otherwise the best foreign master
// is compared against the local dataset.
func (p *Port) recommendedState() PortState {
	best := p.foreignMasters.Best()
	if best == nil {
		return StateMaster
	}
	cmp := Dscmp(best.Latest, p.Local.Announce(p.Identity, 0))
	switch cmp {
	case Unknown:
		return StatePassive
	case ABetter, ABetterTopo:
		return StateUncalibrated
	default:
		return StateMaster
	}
}

// ReceiveAnnounce feeds a validated, deduplicated Announce into the
// foreign-master store and raises the corresponding event, §4.6.
func (p *Port) ReceiveAnnounce(a *ptp.Announce, now time.Time) {
	p.lastAnnounceRx = now
	p.foreignMasters.Update(a)
	p.HandleEvent(EventAnnounceReceived)
}

// ReceiveSync records a Sync arrival for the receipt-timeout machine.
func (p *Port) ReceiveSync(now time.Time) {
	p.lastSyncRx = now
	p.HandleEvent(EventSyncReceived)
}

// Tick advances the timeout machines, §4.2/§4.6: announce_receipt =
// 3x announce_interval, sync_receipt = 3x sync_interval, both
// relative and driven by the periodic tick.
func (p *Port) Tick(now time.Time) {
	p.foreignMasters.Expire()
	prev := p.state
	switch p.state {
	case StateSlave, StateUncalibrated:
		if !p.lastAnnounceRx.IsZero() && now.Sub(p.lastAnnounceRx) > 3*p.AnnounceInterval {
			p.HandleEvent(EventAnnounceReceiptTimeout)
		} else if !p.lastSyncRx.IsZero() && now.Sub(p.lastSyncRx) > 3*p.SyncInterval {
			p.HandleEvent(EventSyncReceiptTimeout)
		}
	case StateListening:
		// baseline is the later of state entry and the last announce
		// actually received while listening.
		baseline := p.stateEnteredAt
		if p.lastAnnounceRx.After(baseline) {
			baseline = p.lastAnnounceRx
		}
		if now.Sub(baseline) > 3*p.AnnounceInterval {
			p.HandleEvent(EventAnnounceReceiptTimeout)
		}
	}
	if p.state != prev {
		p.notify(Event{Kind: EventSyncStateChanged})
	}
}

func (p *Port) notify(e Event) {
	if p.sink != nil {
		p.sink.Notify(e)
	}
}
