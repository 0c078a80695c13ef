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

import ptp "github.com/ptpavb/endpoint/wire/ptp"

// ClockDataset is the local clock's view of itself, advertised in
// Announce messages when the port is MASTER.
type ClockDataset struct {
	GrandmasterIdentity     ptp.ClockIdentity
	GrandmasterPriority1    uint8
	GrandmasterClockQuality ptp.ClockQuality
	GrandmasterPriority2    uint8
	StepsRemoved            uint16
}

// Announce builds an Announce message from the dataset, as sent by
// the announce Tx machine while the port is MASTER, §4.6.
func (d *ClockDataset) Announce(sourcePortIdentity ptp.PortIdentity, sequenceID uint16) *ptp.Announce {
	return &ptp.Announce{
		Header: ptp.Header{
			SdoIDAndMsgType:    ptp.NewSdoIDAndMsgType(ptp.MessageAnnounce, 0),
			Version:            ptp.Version,
			SourcePortIdentity: sourcePortIdentity,
			SequenceID:         sequenceID,
		},
		GrandmasterPriority1:    d.GrandmasterPriority1,
		GrandmasterClockQuality: d.GrandmasterClockQuality,
		GrandmasterPriority2:    d.GrandmasterPriority2,
		GrandmasterIdentity:     d.GrandmasterIdentity,
		StepsRemoved:            d.StepsRemoved,
	}
}

// accuracyNS is the normative ClockAccuracy → nanosecond table, §9.
// Values with no entry here (below 0x20, or 0x2C and above other than
// 0xFE) report the 0xFE (unknown) entry, 10 ms.
var accuracyNS = map[ptp.ClockAccuracy]float64{
	0x20: 25,
	0x21: 100,
	0x22: 250,
	0x23: 1000,
	0x24: 2500,
	0x25: 10000,
	0x26: 25000,
	0x27: 100000,
	0x28: 250000,
	0x29: 1000000,
	0x2A: 2500000,
	0x2B: 10000000,
	0xFE: 10000000,
}

// AccuracyNS returns the nanosecond bound associated with a
// ClockAccuracy enumeration value, §9.
func AccuracyNS(a ptp.ClockAccuracy) float64 {
	if ns, ok := accuracyNS[a]; ok {
		return ns
	}
	return accuracyNS[0xFE]
}
