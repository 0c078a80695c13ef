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

package clock

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"

	ptp "github.com/ptpavb/endpoint/wire/ptp"
)

// PHCClock disciplines a Linux PTP hardware clock (or the system
// clock, via unix.CLOCK_REALTIME) through CLOCK_ADJTIME, implementing
// the gptp.HardwareClock interface consumed by the servo, §6.
type PHCClock struct {
	ClockID      int32
	ResolutionNs uint32
}

// NewSystemClock builds a PHCClock backed by CLOCK_REALTIME, for
// hosts without a dedicated PHC.
func NewSystemClock() *PHCClock {
	return &PHCClock{ClockID: unix.CLOCK_REALTIME, ResolutionNs: 1}
}

// NewPHCClock builds a PHCClock backed by a /dev/ptpN character
// device's dynamic clockid, as produced by FDToClockID.
func NewPHCClock(clockID int32) *PHCClock {
	return &PHCClock{ClockID: clockID, ResolutionNs: 1}
}

// FDToClockID converts a /dev/ptpN file descriptor to the dynamic
// clockid CLOCK_ADJTIME expects, per clock_gettime(2)'s
// "dynamic clockid" encoding.
func FDToClockID(fd uintptr) int32 {
	return int32((int(^fd) << 3) | 3)
}

// CaptureTimestamp reads the clock's current time via CLOCK_ADJTIME's
// state-query mode (an empty Timex).
func (c *PHCClock) CaptureTimestamp() (ptp.Timestamp, error) {
	tx := &unix.Timex{}
	if _, err := Adjtime(c.ClockID, tx); err != nil {
		return ptp.Timestamp{}, fmt.Errorf("clock: read time: %w", err)
	}
	return ptp.NewTimestamp(time.Unix(tx.Time.Sec, tx.Time.Usec*1000)), nil
}

// ResolutionNS reports the clock's timestamp resolution in
// nanoseconds, used by the path-delay engine to bound its threshold
// comparisons.
func (c *PHCClock) ResolutionNS() uint32 { return c.ResolutionNs }

// AdjustPhase steps the clock by offset, §4.5's phase-correction path
// for offsets exceeding the servo's step threshold.
func (c *PHCClock) AdjustPhase(offset ptp.TimeInterval) error {
	_, err := Step(c.ClockID, time.Duration(offset.Nanoseconds()))
	if err != nil {
		return fmt.Errorf("clock: step: %w", err)
	}
	return nil
}

// AdjustFrequency applies a servo-computed frequency correction in
// parts-per-billion, §4.5's steady-state sync path.
func (c *PHCClock) AdjustFrequency(ppb float64) error {
	_, err := AdjFreqPPB(c.ClockID, ppb)
	if err != nil {
		return fmt.Errorf("clock: adjust frequency: %w", err)
	}
	return nil
}

// SetTime sets the clock directly, used for the initial coarse jam
// sync before the servo starts disciplining it.
func (c *PHCClock) SetTime(ts ptp.Timestamp) error {
	now, err := c.CaptureTimestamp()
	if err != nil {
		return err
	}
	return c.AdjustPhase(ptp.NewTimeInterval(float64(ts.Time().Sub(now.Time()).Nanoseconds())))
}
