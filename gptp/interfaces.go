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

// HardwareClock is consumed by the servo to read and discipline the
// local clock, §6. Host runtimes back this with a PHC or the system
// clock; clock.PHCClock implements it over CLOCK_ADJTIME.
type HardwareClock interface {
	CaptureTimestamp() (ptp.Timestamp, error)
	ResolutionNS() uint32
	AdjustPhase(offset ptp.TimeInterval) error
	AdjustFrequency(ppb float64) error
	SetTime(ts ptp.Timestamp) error
}

// NetworkPort is consumed for frame I/O, §6. Raw-frame transmit and
// receive, NIC drivers and timestamping hardware live on the host
// runtime's side of this interface, outside this module.
type NetworkPort interface {
	SendFrame(b []byte) error
	OnReceive(cb func(b []byte, rxTimestamp time.Time))
	MACAddress() [6]byte
}

// EventKind enumerates the upward events a port or engine produces,
// §6.
type EventKind uint8

// Upward event kinds.
const (
	EventSyncStateChanged EventKind = iota
	EventPathDelayMeasurement
	EventFaultOccurred
	EventFaultCleared
)

// Event is a single upward notification. Fields not relevant to Kind
// are left zero.
type Event struct {
	Kind       EventKind
	OffsetNS   int64
	FreqPPB    float64
	PathDelay  time.Duration
	FaultMsg   string
}

// EventSink receives upward events produced by a port's state
// machines. Implementations must not block.
type EventSink interface {
	Notify(Event)
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(Event)

// Notify implements EventSink.
func (f EventSinkFunc) Notify(e Event) { f(e) }
