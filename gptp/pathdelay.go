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
)

// neighborRateRatioMin/Max bound a valid neighbor rate ratio estimate,
// §4.4; outside this range the measurement is discarded and the
// filter reset.
const (
	neighborRateRatioMin = 0.998
	neighborRateRatioMax = 1.002
)

// defaultAllowedLostResponses is the number of consecutive PDelay_Resp
// timeouts tolerated before the path is marked unmeasured, §4.4.
const defaultAllowedLostResponses = 3

// defaultNeighborPropDelayThresh is the default as_capable cutoff,
// §4.4: 800 microseconds.
const defaultNeighborPropDelayThresh = 800 * time.Microsecond

// defaultMeanLinkDelayWeight is the exponential moving average weight
// applied to each new delay sample, §4.4.
const defaultMeanLinkDelayWeight = 1.0 / 8

// pdelayExchange accumulates the four timestamps of one in-flight
// PDelay_Req/Resp/Resp_Follow_Up round, §4.4.
type pdelayExchange struct {
	sequenceID uint16
	t1         time.Time
	t2         time.Time
	t3         time.Time
}

// PathDelayEngine implements the peer-to-peer path-delay mechanism,
// §4.4. One engine instance exists per port; it is not shared, §5.
type PathDelayEngine struct {
	NeighborPropDelayThresh time.Duration
	MeanLinkDelayWeight     float64
	AllowedLostResponses    int

	meanLinkDelay      time.Duration
	neighborRateRatio  float64
	asCapable          bool
	lostResponses      int
	ceased             bool
	inflight           *pdelayExchange
	prevT2, prevT3     time.Time
	havePrevTimestamps bool
}

// NewPathDelayEngine builds an engine with the spec's defaults, §4.4.
func NewPathDelayEngine() *PathDelayEngine {
	return &PathDelayEngine{
		NeighborPropDelayThresh: defaultNeighborPropDelayThresh,
		MeanLinkDelayWeight:     defaultMeanLinkDelayWeight,
		AllowedLostResponses:    defaultAllowedLostResponses,
		neighborRateRatio:       1.0,
	}
}

// BeginRequest records T1 for a newly transmitted PDelay_Req.
func (e *PathDelayEngine) BeginRequest(sequenceID uint16, t1 time.Time) {
	e.inflight = &pdelayExchange{sequenceID: sequenceID, t1: t1}
}

// ReceiveResponse records T2 carried by a matching PDelay_Resp.
func (e *PathDelayEngine) ReceiveResponse(sequenceID uint16, t2 time.Time) error {
	if e.inflight == nil || e.inflight.sequenceID != sequenceID {
		return fmt.Errorf("pathdelay: PDelay_Resp sequence_id %d does not match in-flight request", sequenceID)
	}
	e.inflight.t2 = t2
	return nil
}

// ReceiveResponseFollowUp records T3 carried by the matching
// PDelay_Resp_Follow_Up and completes the exchange via complete, using
// the caller-supplied T4.
func (e *PathDelayEngine) ReceiveResponseFollowUp(sequenceID uint16, t3 time.Time, t4 time.Time) (time.Duration, error) {
	if e.inflight == nil || e.inflight.sequenceID != sequenceID {
		return 0, fmt.Errorf("pathdelay: PDelay_Resp_Follow_Up sequence_id %d does not match in-flight request", sequenceID)
	}
	e.inflight.t3 = t3
	return e.complete(t4)
}

// complete computes mean one-way delay from the four timestamps,
// corrected by the neighbor rate ratio, §4.4:
//
//	meanDelay = ((T4-T1) - (T3-T2)) / 2
//
// and updates the neighbor rate ratio estimate from the previous
// exchange's T2/T3 pair.
func (e *PathDelayEngine) complete(t4 time.Time) (time.Duration, error) {
	ex := e.inflight
	e.inflight = nil

	turnaround := ex.t3.Sub(ex.t2)
	roundTrip := t4.Sub(ex.t1)
	raw := (roundTrip - turnaround) / 2

	if e.havePrevTimestamps {
		dT3 := ex.t3.Sub(e.prevT3).Seconds()
		dT2 := ex.t2.Sub(e.prevT2).Seconds()
		if dT2 != 0 {
			ratio := dT3 / dT2
			if ratio < neighborRateRatioMin || ratio > neighborRateRatioMax {
				e.resetFilter()
				return 0, fmt.Errorf("pathdelay: neighbor rate ratio %.6f out of range [%.3f, %.3f]", ratio, neighborRateRatioMin, neighborRateRatioMax)
			}
			e.neighborRateRatio = ratio
		}
	}
	e.prevT2, e.prevT3 = ex.t2, ex.t3
	e.havePrevTimestamps = true

	corrected := time.Duration(float64(raw) * e.neighborRateRatio)
	if e.meanLinkDelay == 0 {
		e.meanLinkDelay = corrected
	} else {
		w := e.MeanLinkDelayWeight
		e.meanLinkDelay = time.Duration((1-w)*float64(e.meanLinkDelay) + w*float64(corrected))
	}
	e.asCapable = e.meanLinkDelay <= e.NeighborPropDelayThresh
	e.lostResponses = 0
	return e.meanLinkDelay, nil
}

// Timeout records a PDelay_Resp (or Resp_Follow_Up) that never
// arrived for the in-flight request, §4.4.
func (e *PathDelayEngine) Timeout() {
	e.inflight = nil
	e.lostResponses++
	if e.lostResponses > e.AllowedLostResponses {
		e.asCapable = false
		e.havePrevTimestamps = false
	}
}

// Cease implements the Milan-profile cessation requirement, §4.4: the
// initiator stops sending PDelay_Req on a link where the same
// sequence_id has elicited multiple distinct responders.
func (e *PathDelayEngine) Cease() {
	e.ceased = true
	e.asCapable = false
}

// Ceased reports whether this link has been ceased and needs an
// operator reset to resume, §4.4.
func (e *PathDelayEngine) Ceased() bool { return e.ceased }

// ResetCeased clears the cessation latch on operator command.
func (e *PathDelayEngine) ResetCeased() { e.ceased = false }

func (e *PathDelayEngine) resetFilter() {
	e.havePrevTimestamps = false
	e.neighborRateRatio = 1.0
}

// MeanLinkDelay returns the current filtered mean link delay.
func (e *PathDelayEngine) MeanLinkDelay() time.Duration { return e.meanLinkDelay }

// NeighborRateRatio returns the current neighbor rate ratio estimate.
func (e *PathDelayEngine) NeighborRateRatio() float64 { return e.neighborRateRatio }

// AsCapable reports whether the link currently qualifies as
// AS-capable per the neighbor_prop_delay_thresh check, §4.4.
func (e *PathDelayEngine) AsCapable() bool { return e.asCapable }
