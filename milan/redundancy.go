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

package milan

import "time"

// defaultSwitchoverTimeout is how long the primary leg of a redundant
// pair may go without a received frame before the secondary takes
// over, §4.10.
const defaultSwitchoverTimeout = 50 * time.Millisecond

// RedundantLeg identifies which half of a redundant stream pair last
// delivered data, §4.10.
type RedundantLeg uint8

// Redundant stream legs.
const (
	LegPrimary RedundantLeg = iota
	LegSecondary
)

func (l RedundantLeg) String() string {
	if l == LegPrimary {
		return "primary"
	}
	return "secondary"
}

// RedundantStreamPair watches a primary/secondary AVTP stream pair
// and reports which leg is currently feeding the listener, §4.10.
// One instance exists per redundant pair; it is not shared, §5.
type RedundantStreamPair struct {
	SwitchoverTimeout time.Duration

	active        RedundantLeg
	lastPrimary   time.Time
	lastSecondary time.Time
	now           func() time.Time
}

// NewRedundantStreamPair builds a watchdog defaulting to the primary
// leg and the spec's default switchover timeout, §4.10.
func NewRedundantStreamPair() *RedundantStreamPair {
	return &RedundantStreamPair{
		SwitchoverTimeout: defaultSwitchoverTimeout,
		active:            LegPrimary,
		now:               time.Now,
	}
}

// ReceivePrimary records a frame arrival on the primary leg.
func (p *RedundantStreamPair) ReceivePrimary(now time.Time) {
	p.lastPrimary = now
}

// ReceiveSecondary records a frame arrival on the secondary leg.
func (p *RedundantStreamPair) ReceiveSecondary(now time.Time) {
	p.lastSecondary = now
}

// Active returns the leg currently selected to feed the listener's
// presentation buffer.
func (p *RedundantStreamPair) Active() RedundantLeg { return p.active }

// Evaluate runs the switchover predicate, §4.10: the active leg fails
// over to the other if it has not delivered a frame within
// SwitchoverTimeout while the other leg is current. It returns true
// if a switchover occurred.
func (p *RedundantStreamPair) Evaluate(now time.Time) bool {
	switch p.active {
	case LegPrimary:
		if p.lastPrimary.IsZero() || now.Sub(p.lastPrimary) <= p.SwitchoverTimeout {
			return false
		}
		if p.lastSecondary.IsZero() || now.Sub(p.lastSecondary) > p.SwitchoverTimeout {
			return false // neither leg healthy; stay put rather than flap
		}
		p.active = LegSecondary
		return true
	case LegSecondary:
		if p.lastSecondary.IsZero() || now.Sub(p.lastSecondary) <= p.SwitchoverTimeout {
			return false
		}
		if p.lastPrimary.IsZero() || now.Sub(p.lastPrimary) > p.SwitchoverTimeout {
			return false
		}
		p.active = LegPrimary
		return true
	}
	return false
}
