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
	"fmt"
	"time"

	ptp "github.com/ptpavb/endpoint/wire/ptp"
	"github.com/ptpavb/endpoint/servo"
)

// SyncState is the convergence state of a SyncEngine, §4.5.
type SyncState uint8

// Sync engine states.
const (
	SyncUnsynchronized SyncState = iota
	SyncCalibrating
	SyncSynchronized
	SyncHoldover
	SyncLost
)

func (s SyncState) String() string {
	switch s {
	case SyncUnsynchronized:
		return "UNSYNCHRONIZED"
	case SyncCalibrating:
		return "CALIBRATING"
	case SyncSynchronized:
		return "SYNCHRONIZED"
	case SyncHoldover:
		return "HOLDOVER"
	case SyncLost:
		return "LOST"
	}
	return "UNKNOWN"
}

// defaultMinSamples, defaultMaxOffsetThreshold and
// defaultCalibrationPeriod bound how long a port spends in
// CALIBRATING before it is allowed to report SYNCHRONIZED, §4.5.
const (
	defaultMinSamples         = 4
	defaultMaxOffsetThreshold = 1000 * time.Nanosecond
	defaultCalibrationPeriod  = 2 * time.Second
	defaultHoldoverTimeout    = 3 * time.Second
	defaultPhaseStepThreshold = time.Millisecond
)

// SyncEngine applies the PI servo to the offset computed from each
// Sync/Follow_Up pair and disciplines a HardwareClock, §4.5. One
// instance exists per SLAVE port; it is not shared, §5.
type SyncEngine struct {
	Clock HardwareClock
	Servo *servo.PiServo

	PhaseStepThreshold time.Duration
	MinSamples         int
	MaxOffsetThreshold time.Duration
	CalibrationPeriod  time.Duration
	HoldoverTimeout    time.Duration

	state            SyncState
	consecutiveGood  int
	calibrationStart time.Time
	lastSampleAt     time.Time
	sink             EventSink
	now              func() time.Time
}

// NewSyncEngine builds a sync engine around a PI servo configured with
// the teacher's default gains, disciplining clock, §4.5.
func NewSyncEngine(clock HardwareClock, sink EventSink) *SyncEngine {
	base := servo.DefaultServoConfig()
	base.FirstStepThreshold = int64(defaultPhaseStepThreshold)
	base.StepThreshold = int64(defaultPhaseStepThreshold) * 10
	pi := servo.NewPiServo(base, servo.DefaultPiServoCfg(), 0)
	pi.SyncInterval(0.125)

	return &SyncEngine{
		Clock:              clock,
		Servo:              pi,
		PhaseStepThreshold: defaultPhaseStepThreshold,
		MinSamples:         defaultMinSamples,
		MaxOffsetThreshold: defaultMaxOffsetThreshold,
		CalibrationPeriod:  defaultCalibrationPeriod,
		HoldoverTimeout:    defaultHoldoverTimeout,
		sink:               sink,
		now:                time.Now,
	}
}

// State returns the engine's current convergence state.
func (e *SyncEngine) State() SyncState { return e.state }

// Sample consumes one completed Sync/Follow_Up pair, §4.5:
//
//	offset = (T2 - T1) - mean_link_delay
//
// It disciplines the clock via frequency adjustment, stepping the
// phase directly instead when the offset exceeds
// PhaseStepThreshold, and advances the convergence state machine.
func (e *SyncEngine) Sample(t1, t2 ptp.Timestamp, meanLinkDelay time.Duration, pathDelayValid bool, localTs time.Time) (time.Duration, error) {
	offset := t2.Time().Sub(t1.Time()) - meanLinkDelay
	e.lastSampleAt = e.now()

	if !pathDelayValid {
		e.consecutiveGood = 0
		e.setState(SyncCalibrating)
		return offset, nil
	}

	if abs(offset) > e.PhaseStepThreshold {
		if err := e.Clock.AdjustPhase(ptp.NewTimeInterval(float64(offset.Nanoseconds()))); err != nil {
			return offset, fmt.Errorf("gptp: phase step failed: %w", err)
		}
		e.Servo.Unlock()
		e.consecutiveGood = 0
		e.calibrationStart = e.now()
		e.setState(SyncCalibrating)
		return offset, nil
	}

	ppb, servoState := e.Servo.Sample(offset.Nanoseconds(), uint64(localTs.UnixNano()))
	if err := e.Clock.AdjustFrequency(ppb); err != nil {
		return offset, fmt.Errorf("gptp: frequency adjust failed: %w", err)
	}

	if servoState == servo.StateJump {
		e.consecutiveGood = 0
		e.calibrationStart = e.now()
		e.setState(SyncCalibrating)
		return offset, nil
	}

	if abs(offset) <= e.MaxOffsetThreshold {
		if e.consecutiveGood == 0 {
			e.calibrationStart = e.now()
		}
		e.consecutiveGood++
	} else {
		e.consecutiveGood = 0
		e.setState(SyncCalibrating)
		return offset, nil
	}

	if e.consecutiveGood >= e.MinSamples && e.now().Sub(e.calibrationStart) >= e.CalibrationPeriod {
		e.setState(SyncSynchronized)
	} else {
		e.setState(SyncCalibrating)
	}
	return offset, nil
}

// Tick checks the holdover timeout independent of sample arrival,
// §4.5: a SYNCHRONIZED engine that stops receiving samples enters
// HOLDOVER and then LOST.
func (e *SyncEngine) Tick(now time.Time) {
	if e.state != SyncSynchronized && e.state != SyncHoldover {
		return
	}
	if e.lastSampleAt.IsZero() {
		return
	}
	since := now.Sub(e.lastSampleAt)
	switch {
	case since > 2*e.HoldoverTimeout:
		e.setState(SyncLost)
	case since > e.HoldoverTimeout:
		e.setState(SyncHoldover)
	}
}

// Reset drops all convergence history, used on SLAVE -> LISTENING, §4.2.
func (e *SyncEngine) Reset() {
	e.consecutiveGood = 0
	e.lastSampleAt = time.Time{}
	e.Servo.Unlock()
	e.setState(SyncUnsynchronized)
}

func (e *SyncEngine) setState(next SyncState) {
	if next == e.state {
		return
	}
	e.state = next
	if e.sink != nil {
		e.sink.Notify(Event{Kind: EventSyncStateChanged})
	}
}

func abs(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
