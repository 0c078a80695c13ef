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

// Package gptp implements the 802.1AS control plane: the port state
// machine, the best master clock algorithm, the path-delay and
// sync/servo engines and announce aging, all driven off wire/ptp.
package gptp

import ptp "github.com/ptpavb/endpoint/wire/ptp"

// Dataset is the outcome of comparing two announce messages, §4.3.
type Dataset int

// Dataset comparison outcomes.
const (
	Unknown Dataset = iota
	ABetter
	ABetterTopo
	BBetter
	BBetterTopo
)

// Dscmp2 is the topology-only comparison used to break a tie between
// two announce messages naming the same grandmaster: it compares
// stepsRemoved, falling back to the sender's port identity when
// stepsRemoved also matches, §4.3.
func Dscmp2(a, b *ptp.Announce) Dataset {
	as, bs := a.SourcePortIdentity, b.SourcePortIdentity
	ar, br := a.StepsRemoved, b.StepsRemoved
	switch {
	case ar > br+1:
		return BBetterTopo
	case br > ar+1:
		return ABetter
	case ar > br:
		if as.ClockIdentity == bs.ClockIdentity {
			return Unknown
		}
		return BBetterTopo
	case ar < br:
		return ABetter
	default:
		if as.ClockIdentity == bs.ClockIdentity {
			return Unknown
		}
		if as.ClockIdentity < bs.ClockIdentity {
			return ABetterTopo
		}
		return BBetterTopo
	}
}

// Dscmp implements the standard's dataset comparison, §4.3: an ordered
// comparison of priority1, clock_quality (class, then accuracy, then
// offsetScaledLogVariance), priority2 and finally grandmaster_identity
// as the deciding tiebreak. Two announces naming the same grandmaster
// carry no useful dataset ordering here; callers fall back to Dscmp2
// to break that tie on topology instead.
func Dscmp(a, b *ptp.Announce) Dataset {
	if a.GrandmasterIdentity == b.GrandmasterIdentity {
		return Unknown
	}
	if a.GrandmasterPriority1 != b.GrandmasterPriority1 {
		return pick(a.GrandmasterPriority1 < b.GrandmasterPriority1)
	}
	if a.GrandmasterClockQuality.ClockClass != b.GrandmasterClockQuality.ClockClass {
		return pick(a.GrandmasterClockQuality.ClockClass < b.GrandmasterClockQuality.ClockClass)
	}
	if a.GrandmasterClockQuality.ClockAccuracy != b.GrandmasterClockQuality.ClockAccuracy {
		return pick(a.GrandmasterClockQuality.ClockAccuracy < b.GrandmasterClockQuality.ClockAccuracy)
	}
	if a.GrandmasterClockQuality.OffsetScaledLogVariance != b.GrandmasterClockQuality.OffsetScaledLogVariance {
		return pick(a.GrandmasterClockQuality.OffsetScaledLogVariance < b.GrandmasterClockQuality.OffsetScaledLogVariance)
	}
	if a.GrandmasterPriority2 != b.GrandmasterPriority2 {
		return pick(a.GrandmasterPriority2 < b.GrandmasterPriority2)
	}
	return pick(a.GrandmasterIdentity < b.GrandmasterIdentity)
}

// TelcoDscmp is the telecom-profile dataset comparison, §4.3: the
// announce's own GrandmasterPriority1 is ignored; clock_quality and
// priority2 are compared as in Dscmp, then a locally configured
// priority per candidate (localPriority), and finally
// grandmaster_identity. As with Dscmp, two announces naming the same
// grandmaster carry no dataset ordering here — callers fall back to
// Dscmp2 for that tie.
func TelcoDscmp(a, b *ptp.Announce, localPriorityA, localPriorityB uint8) Dataset {
	if a.GrandmasterIdentity == b.GrandmasterIdentity {
		return Unknown
	}
	if a.GrandmasterClockQuality.ClockClass != b.GrandmasterClockQuality.ClockClass {
		return pick(a.GrandmasterClockQuality.ClockClass < b.GrandmasterClockQuality.ClockClass)
	}
	if a.GrandmasterClockQuality.ClockAccuracy != b.GrandmasterClockQuality.ClockAccuracy {
		return pick(a.GrandmasterClockQuality.ClockAccuracy < b.GrandmasterClockQuality.ClockAccuracy)
	}
	if a.GrandmasterClockQuality.OffsetScaledLogVariance != b.GrandmasterClockQuality.OffsetScaledLogVariance {
		return pick(a.GrandmasterClockQuality.OffsetScaledLogVariance < b.GrandmasterClockQuality.OffsetScaledLogVariance)
	}
	if a.GrandmasterPriority2 != b.GrandmasterPriority2 {
		return pick(a.GrandmasterPriority2 < b.GrandmasterPriority2)
	}
	if localPriorityA != localPriorityB {
		return pick(localPriorityA < localPriorityB)
	}
	return pick(a.GrandmasterIdentity < b.GrandmasterIdentity)
}

func pick(aWins bool) Dataset {
	if aWins {
		return ABetter
	}
	return BBetter
}
